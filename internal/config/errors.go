package config

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a logical document name is not registered or
// its file does not exist.
var ErrNotFound = errors.New("config: document not found")

// ParseError reports that a flow document could not be decoded.
type ParseError struct {
	Name string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("config: parse %s: %v", e.Name, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ValidationError reports that a flow document decoded but failed its schema
// contract. Field names the offending part of the document.
type ValidationError struct {
	Name  string
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: validate %s: field %s: %v", e.Name, e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }
