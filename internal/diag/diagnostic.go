package diag

import "fmt"

type Diagnostic struct {
	Severity Severity
	Code     Code
	Path     string
	Message  string
	Err      error
}

func (d Diagnostic) String() string {
	if d.Path == "" {
		return fmt.Sprintf("%s %s: %s", d.Severity, d.Code, d.Message)
	}
	return fmt.Sprintf("%s %s: %s: %s", d.Severity, d.Code, d.Path, d.Message)
}

// FromError builds an error diagnostic whose message is err's text.
func FromError(code Code, path string, err error) Diagnostic {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return Diagnostic{
		Severity: SevError,
		Code:     code,
		Path:     path,
		Message:  msg,
		Err:      err,
	}
}
