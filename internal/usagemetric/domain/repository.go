package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	FindByKeys(ctx context.Context, db *gorm.DB, keys []Key) ([]MetricRecord, error)
	InsertBatch(ctx context.Context, db *gorm.DB, records []MetricRecord) error
	Update(ctx context.Context, db *gorm.DB, record MetricRecord) error
	Count(ctx context.Context, db *gorm.DB) (int64, error)
}
