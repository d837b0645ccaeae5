package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type ListFilter struct {
	Status Status
	Cursor *Cursor
	Limit  int
}

type Cursor struct {
	UploadedAt time.Time
	UploadID   string
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, m *UploadMetadata) error
	FindByID(ctx context.Context, db *gorm.DB, uploadID string) (*UploadMetadata, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]UploadMetadata, error)
	CountByStatus(ctx context.Context, db *gorm.DB, status Status) (int64, error)
}
