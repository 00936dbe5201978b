package provider

import "fmt"

// ConfigurationError is returned by New when the provider source is missing
// or incomplete.
type ConfigurationError struct {
	Field   string // Name of the offending source field, empty for the source itself
	Message string // Human-readable error message
	Err     error  // Underlying error, if any
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = fmt.Sprintf("[%s]: %s", e.Field, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("provider configuration error %s: %v", msg, e.Err)
	}
	return "provider configuration error " + msg
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// ValidationError reports an evaluation context attribute that is not a
// string tree.
type ValidationError struct {
	Field   string // Dotted path of the offending attribute, e.g. "personProperties.tags"
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid evaluation context [%s]: %s", e.Field, e.Message)
}

// TypeMismatchError is returned when PostHog resolves a flag to a value of a
// different type than the caller asked for.
type TypeMismatchError struct {
	FlagKey  string
	Actual   string
	Expected string
}

// Error implements the error interface.
func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("flag value %s had unexpected type %s, expected %s", e.FlagKey, e.Actual, e.Expected)
}

// ParseError is returned when a flag payload is not valid JSON.
type ParseError struct {
	FlagKey string
	Err     error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("error parsing payload for flag %s: %v", e.FlagKey, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
