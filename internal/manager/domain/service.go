package domain

import (
	"context"
	"errors"
	"io"
)

type UpsertRequest struct {
	ManagerEmail string `json:"manager_email"`
	ManagerName  string `json:"manager_name"`
	Director     string `json:"director"`
	Department   string `json:"department"`
}

type ListRequest struct {
	Department string `form:"department"`
	Query      string `form:"q"`
}

type ListResponse struct {
	Managers []ManagerRecord `json:"managers"`
}

// RejectedRow is a roster line that was not imported.
type RejectedRow struct {
	Line   int    `json:"line"`
	Email  string `json:"email"`
	Reason string `json:"reason"`
}

type ImportResult struct {
	Imported   int           `json:"imported"`
	Duplicates int           `json:"duplicates"`
	Rejected   []RejectedRow `json:"rejected"`
}

type Service interface {
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	Get(ctx context.Context, email string) (ManagerRecord, error)
	Upsert(ctx context.Context, email string, req UpsertRequest) (ManagerRecord, error)
	Delete(ctx context.Context, email string) error
	// Import replaces the whole roster with the rows of a roster export.
	Import(ctx context.Context, r io.Reader) (ImportResult, error)
}

var (
	ErrInvalidEmail        = errors.New("invalid_email")
	ErrInvalidManagerEmail = errors.New("invalid_manager_email")
	ErrNotFound            = errors.New("not_found")
	ErrEmptyRoster         = errors.New("empty_roster")
)
