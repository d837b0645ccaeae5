package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNoValidRows   = errors.New("no_valid_rows")
	ErrEmptyFile     = errors.New("empty_file")
	ErrFileTooLarge  = errors.New("file_too_large")
	ErrIngestBusy    = errors.New("ingest_in_progress")
	ErrInvalidSource = errors.New("invalid_source")
)

// SchemaError rejects a whole file before any row is looked at.
type SchemaError struct {
	MissingColumns []string
	Detail         string
}

func (e *SchemaError) Error() string {
	if len(e.MissingColumns) > 0 {
		return "missing required columns: " + strings.Join(e.MissingColumns, ", ")
	}
	if e.Detail != "" {
		return "invalid file: " + e.Detail
	}
	return "invalid file"
}

// RowValidationError explains why a single row was skipped.
type RowValidationError struct {
	Line   int
	Column string
	Err    error
}

func (e *RowValidationError) Error() string {
	if e.Column == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Column, e.Err)
}

func (e *RowValidationError) Unwrap() error { return e.Err }

// NoValidRowsError is returned when every row failed validation.
type NoValidRowsError struct {
	Invalid []InvalidRow
}

func (e *NoValidRowsError) Error() string {
	return fmt.Sprintf("no valid rows (%d invalid)", len(e.Invalid))
}

func (e *NoValidRowsError) Is(target error) bool { return target == ErrNoValidRows }

// LookupError means existing records could not be read, so nothing was written.
type LookupError struct {
	UploadID string
	Err      error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("lookup existing records: %v", e.Err)
}

func (e *LookupError) Unwrap() error { return e.Err }

// PersistenceError means the commit transaction was rolled back.
type PersistenceError struct {
	UploadID string
	Err      error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("commit upload %s: %v", e.UploadID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
