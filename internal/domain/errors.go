package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ParseError means the query text could not be turned into any filter.
// The caller can fix it by rephrasing.
type ParseError struct {
	Query           string
	Reason          string
	SupportedFields []string
}

func (e *ParseError) Error() string {
	msg := "could not understand query"
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if len(e.SupportedFields) > 0 {
		msg += " (supported fields: " + strings.Join(e.SupportedFields, ", ") + ")"
	}
	return msg
}

// CompilationError means a filter set referenced a field, operator or value
// outside the catalog. It is never executed.
type CompilationError struct {
	Field    string
	Operator string
	Reason   string
}

func (e *CompilationError) Error() string {
	switch {
	case e.Field != "" && e.Operator != "":
		return fmt.Sprintf("compile filter %q with operator %q: %s", e.Field, e.Operator, e.Reason)
	case e.Field != "":
		return fmt.Sprintf("compile filter %q: %s", e.Field, e.Reason)
	default:
		return "compile filter set: " + e.Reason
	}
}

// StorageError wraps a data store failure (connection loss, provider rate
// limit, timeout).
type StorageError struct {
	Err     error
	Backend string
	Op      string
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Backend, e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError wraps err unless it already is a StorageError
func NewStorageError(backend, op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Backend: backend, Op: op, Err: err}
}

// IsParseError reports whether err is or wraps a ParseError
func IsParseError(err error) bool {
	var target *ParseError
	return errors.As(err, &target)
}

// IsCompilationError reports whether err is or wraps a CompilationError
func IsCompilationError(err error) bool {
	var target *CompilationError
	return errors.As(err, &target)
}

// IsStorageError reports whether err is or wraps a StorageError
func IsStorageError(err error) bool {
	var target *StorageError
	return errors.As(err, &target)
}
