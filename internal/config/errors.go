package config

import "fmt"

// ConfigError reports an invalid configuration. Field is the dotted path of
// the offending value, e.g. "loaderRules[1].chain[0].options".
type ConfigError struct {
	Field string
	Msg   string
	Err   error
}

func (e *ConfigError) Error() string {
	msg := e.Msg
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = msg + ": " + e.Err.Error()
		}
	}
	if e.Field == "" {
		return "config: " + msg
	}
	return fmt.Sprintf("config: %s: %s", e.Field, msg)
}

func (e *ConfigError) Unwrap() error { return e.Err }

func fieldErr(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

func wrapErr(field string, err error) *ConfigError {
	return &ConfigError{Field: field, Err: err}
}
