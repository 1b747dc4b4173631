package model

import (
	"fmt"
	"strings"
)

// ValidationError is a recoverable per-field failure. Widgets surface it
// inline; it never aborts a request.
type ValidationError struct {
	Field    string
	Messages []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %q: %s", e.Field, strings.Join(e.Messages, "; "))
}

// ConfigurationError reports form or field settings that make processing
// impossible. It is raised before any sink runs and is not shown to visitors.
type ConfigurationError struct {
	Form    string
	Setting string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Form == "" {
		return fmt.Sprintf("configuration error: %s: %s", e.Setting, e.Message)
	}
	return fmt.Sprintf("configuration error in form %q: %s: %s", e.Form, e.Setting, e.Message)
}

// UploadIntegrityError reports a failure while moving or indexing a file that
// already passed validation.
type UploadIntegrityError struct {
	Field string
	Path  string
	Err   error
}

func (e *UploadIntegrityError) Error() string {
	return fmt.Sprintf("upload %q could not be stored at %q: %v", e.Field, e.Path, e.Err)
}

func (e *UploadIntegrityError) Unwrap() error { return e.Err }

// TransportError reports a failed mailer or database collaborator call.
type TransportError struct {
	Sink string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s sink failed: %v", e.Sink, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
