package repository

import (
	"context"
	"strings"

	"github.com/smallbiznis/usagelens/internal/manager/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const insertBatchSize = 200

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.ManagerRecord, error) {
	var rec domain.ManagerRecord
	err := db.WithContext(ctx).Raw(
		`SELECT email, manager_email, manager_name, director, department, updated_at
		 FROM manager_data WHERE email = ?`,
		email,
	).Scan(&rec).Error
	if err != nil {
		return nil, err
	}
	if rec.Email == "" {
		return nil, nil
	}
	return &rec, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.ManagerRecord, error) {
	stmt := db.WithContext(ctx).Model(&domain.ManagerRecord{})
	if dept := strings.TrimSpace(filter.Department); dept != "" {
		stmt = stmt.Where("department = ?", dept)
	}
	if q := strings.ToLower(strings.TrimSpace(filter.Query)); q != "" {
		like := "%" + q + "%"
		stmt = stmt.Where("email LIKE ? OR LOWER(manager_name) LIKE ?", like, like)
	}

	var out []domain.ManagerRecord
	if err := stmt.Order("email asc").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, rec *domain.ManagerRecord) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"manager_email", "manager_name", "director", "department", "updated_at"}),
	}).Create(rec).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, email string) (bool, error) {
	res := db.WithContext(ctx).Exec(`DELETE FROM manager_data WHERE email = ?`, email)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) DeleteAll(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).Exec(`DELETE FROM manager_data`).Error
}

func (r *repo) InsertBatch(ctx context.Context, db *gorm.DB, records []domain.ManagerRecord) error {
	if len(records) == 0 {
		return nil
	}
	return db.WithContext(ctx).CreateInBatches(records, insertBatchSize).Error
}
