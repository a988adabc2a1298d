// FILE: lixenwraith/registry/errors.go
package registry

import (
	"errors"
	"fmt"
)

// Construction and lookup errors
var (
	// ErrConfigNotFound is returned when a file backing a source does not exist
	ErrConfigNotFound = errors.New("configuration file not found")

	// ErrUnknownKey is returned for keys without a registered option.
	// Save also returns it for the password key.
	ErrUnknownKey = errors.New("unknown configuration key")

	// ErrDuplicateKey is returned when two options share a key
	ErrDuplicateKey = errors.New("duplicate configuration key")

	// ErrDuplicateSource is returned when two sources share a name
	ErrDuplicateSource = errors.New("duplicate configuration source")

	// ErrDuplicateProvider is returned when two providers share a concrete type
	ErrDuplicateProvider = errors.New("duplicate option provider")

	// ErrCLIParse wraps malformed command-line arguments
	ErrCLIParse = errors.New("failed to parse command-line arguments")
)

// Save pipeline errors, in the order the checks run
var (
	ErrAuthenticationDisabled      = errors.New("configuration update is disabled")
	ErrAuthenticationFailed        = errors.New("configuration update password mismatch")
	ErrUnknownSource               = errors.New("unknown configuration source")
	ErrSourceNotWritable           = errors.New("configuration source is not writable")
	ErrNonDynamicOnTransientSource = errors.New("non-dynamic option on transient source")
	ErrInvalidValue                = errors.New("invalid configuration value")
	ErrSaveFailed                  = errors.New("configuration source failed to save")

	// ErrSaveNotSupported is returned by Source.Save when IsSavingPossible is false
	ErrSaveNotSupported = errors.New("saving is not supported by this source")
)

// SaveError is returned by Registry.Save. Error() yields a message suitable for
// showing to an operator verbatim; errors.Is matches the Kind sentinel.
type SaveError struct {
	Kind   error
	Key    string
	Source string
	msg    string
	cause  error
}

func (e *SaveError) Error() string {
	return e.msg
}

// Unwrap exposes both the kind sentinel and the underlying cause, if any.
func (e *SaveError) Unwrap() []error {
	if e.cause != nil {
		return []error{e.Kind, e.cause}
	}
	return []error{e.Kind}
}

func newSaveError(kind error, key, source, format string, args ...any) *SaveError {
	return &SaveError{
		Kind:   kind,
		Key:    key,
		Source: source,
		msg:    fmt.Sprintf(format, args...),
	}
}

// ConversionError reports a raw string that could not be parsed into an option's type
type ConversionError struct {
	Value  string // raw input, already masked for sensitive options
	Target string // human-readable type name, e.g. "Boolean"
	Err    error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("Can't convert '%s' to %s.", e.Value, e.Target)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}
