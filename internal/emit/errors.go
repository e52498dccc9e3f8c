package emit

import "fmt"

// IOError reports a file that could not be written.
type IOError struct {
	Chunk string // chunk or artifact name
	Path  string
	Err   error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("write %s (%s): %v", e.Path, e.Chunk, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }
