package loader

import "fmt"

// LoaderError reports a failing stage of a chain.
type LoaderError struct {
	LoaderID string
	Path     string
	Cause    error
}

func (e *LoaderError) Error() string {
	return fmt.Sprintf("loader %s failed on %s: %v", e.LoaderID, e.Path, e.Cause)
}

func (e *LoaderError) Unwrap() error { return e.Cause }

// NoLoaderError reports a file that no rule claims and that is not a
// pass-through asset.
type NoLoaderError struct {
	Path string
}

func (e *NoLoaderError) Error() string {
	return fmt.Sprintf("no loader rule matches %s", e.Path)
}
