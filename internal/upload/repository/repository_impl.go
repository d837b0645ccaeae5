package repository

import (
	"context"

	"github.com/smallbiznis/usagelens/internal/upload/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, m *domain.UploadMetadata) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO metadata (
			upload_id, uploaded_at, source_filename, source, size_bytes,
			row_count_new, row_count_updated, row_count_unchanged, row_count_invalid,
			status, error_detail, invalid_sample
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.UploadID,
		m.UploadedAt,
		m.SourceFilename,
		m.Source,
		m.SizeBytes,
		m.RowCountNew,
		m.RowCountUpdated,
		m.RowCountUnchanged,
		m.RowCountInvalid,
		m.Status,
		m.ErrorDetail,
		m.InvalidSample,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, uploadID string) (*domain.UploadMetadata, error) {
	var m domain.UploadMetadata
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM metadata WHERE upload_id = ?`,
		uploadID,
	).Scan(&m).Error
	if err != nil {
		return nil, err
	}
	if m.UploadID == "" {
		return nil, nil
	}
	return &m, nil
}

// List returns uploads newest first. It fetches one row beyond Limit so the
// caller can tell whether another page exists.
func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.UploadMetadata, error) {
	stmt := db.WithContext(ctx).Model(&domain.UploadMetadata{})
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.Cursor != nil {
		stmt = stmt.Where("(uploaded_at < ?) OR (uploaded_at = ? AND upload_id < ?)",
			filter.Cursor.UploadedAt,
			filter.Cursor.UploadedAt,
			filter.Cursor.UploadID,
		)
	}
	stmt = stmt.Order("uploaded_at desc, upload_id desc")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}

	var out []domain.UploadMetadata
	if err := stmt.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repo) CountByStatus(ctx context.Context, db *gorm.DB, status domain.Status) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Raw(`SELECT COUNT(*) FROM metadata WHERE status = ?`, status).Scan(&n).Error
	return n, err
}
