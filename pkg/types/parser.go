package types

import "fmt"

// ParseError represents a file-local failure to build a syntax tree
type ParseError struct {
	File     string
	Language Language
	Message  string
	Err      error // underlying cause, may be nil
}

// Error implements the error interface
func (pe *ParseError) Error() string {
	if pe.File == "" {
		return fmt.Sprintf("parse %s: %s", pe.Language, pe.Message)
	}
	return fmt.Sprintf("parse %s (%s): %s", pe.File, pe.Language, pe.Message)
}

// Unwrap exposes ErrParseFailure and the underlying cause
func (pe *ParseError) Unwrap() []error {
	if pe.Err != nil {
		return []error{ErrParseFailure, pe.Err}
	}
	return []error{ErrParseFailure}
}
