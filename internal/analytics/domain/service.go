package domain

import (
	"context"
	"errors"
)

type RangeRequest struct {
	Start string `form:"start"`
	End   string `form:"end"`
}

type QueryRequest struct {
	RangeRequest
	Department string `form:"department"`
}

type TopRequest struct {
	QueryRequest
	Limit int `form:"limit"`
}

type Service interface {
	Bounds(ctx context.Context) (Bounds, error)
	// ResolveRange fills a missing start or end from the stored date bounds.
	ResolveRange(ctx context.Context, req RangeRequest) (Range, error)
	InactiveUsers(ctx context.Context, req QueryRequest) ([]InactiveUser, error)
	TopActiveUsers(ctx context.Context, req TopRequest) ([]UserTotal, error)
	UserActivity(ctx context.Context, req QueryRequest) (Activity, error)
	Summary(ctx context.Context, req RangeRequest) (Summary, error)
	DepartmentRollup(ctx context.Context, req RangeRequest) ([]DepartmentStat, error)
}

var (
	ErrInvalidDate  = errors.New("invalid_date")
	ErrInvalidRange = errors.New("invalid_range")
	ErrInvalidLimit = errors.New("invalid_limit")
)
