package loader

import "context"

// identityLoader passes content through untouched.
type identityLoader struct {
	base
}

func (l *identityLoader) Transform(_ context.Context, in *Input) (*Output, error) {
	return &Output{Content: in.Content, Map: in.Map}, nil
}
