package domain

import (
	"context"

	"gorm.io/gorm"
)

// SummaryTotals is the raw aggregate behind Summary.
type SummaryTotals struct {
	Records                  int64
	TotalUsers               int64
	ActiveUsers              int64
	SubscriptionIncludedReqs int64
	UsageBasedReqs           int64
}

type Repository interface {
	Bounds(ctx context.Context, db *gorm.DB) (Bounds, error)
	Inactive(ctx context.Context, db *gorm.DB, q Query) ([]InactiveUser, error)
	Top(ctx context.Context, db *gorm.DB, q Query, limit int) ([]UserTotal, error)
	Activity(ctx context.Context, db *gorm.DB, q Query) ([]UserActivity, error)
	Totals(ctx context.Context, db *gorm.DB, r Range) (SummaryTotals, error)
	UsedUsers(ctx context.Context, db *gorm.DB, r Range) (int64, error)
	Departments(ctx context.Context, db *gorm.DB, r Range) ([]DepartmentStat, error)
	DepartmentNames(ctx context.Context, db *gorm.DB) ([]string, error)
}
