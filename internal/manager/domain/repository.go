package domain

import (
	"context"

	"gorm.io/gorm"
)

type ListFilter struct {
	Department string
	Query      string
}

type Repository interface {
	FindByEmail(ctx context.Context, db *gorm.DB, email string) (*ManagerRecord, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]ManagerRecord, error)
	Upsert(ctx context.Context, db *gorm.DB, record *ManagerRecord) error
	Delete(ctx context.Context, db *gorm.DB, email string) (bool, error)
	DeleteAll(ctx context.Context, db *gorm.DB) error
	InsertBatch(ctx context.Context, db *gorm.DB, records []ManagerRecord) error
}
