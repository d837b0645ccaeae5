package domain

import (
	"time"

	"gorm.io/datatypes"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

type Source string

const (
	SourceCSVUpload Source = "csv_upload"
	SourceAPISync   Source = "api_sync"
	SourceCLI       Source = "cli"
)

func (s Source) Valid() bool {
	switch s {
	case SourceCSVUpload, SourceAPISync, SourceCLI:
		return true
	default:
		return false
	}
}

// UploadMetadata is the audit row written once per ingestion attempt.
type UploadMetadata struct {
	UploadID          string         `json:"upload_id" gorm:"column:upload_id;type:varchar(32);primaryKey"`
	UploadedAt        time.Time      `json:"uploaded_at" gorm:"column:uploaded_at;not null;index:ix_metadata_uploaded_at"`
	SourceFilename    string         `json:"source_filename" gorm:"column:source_filename;type:varchar(512);not null"`
	Source            Source         `json:"source" gorm:"column:source;type:varchar(32);not null"`
	SizeBytes         int64          `json:"size_bytes" gorm:"column:size_bytes;not null"`
	RowCountNew       int            `json:"row_count_new" gorm:"column:row_count_new;not null"`
	RowCountUpdated   int            `json:"row_count_updated" gorm:"column:row_count_updated;not null"`
	RowCountUnchanged int            `json:"row_count_unchanged" gorm:"column:row_count_unchanged;not null"`
	RowCountInvalid   int            `json:"row_count_invalid" gorm:"column:row_count_invalid;not null"`
	Status            Status         `json:"status" gorm:"column:status;type:varchar(16);not null"`
	ErrorDetail       *string        `json:"error_detail,omitempty" gorm:"column:error_detail"`
	InvalidSample     datatypes.JSON `json:"invalid_sample,omitempty" gorm:"column:invalid_sample"`
}

func (UploadMetadata) TableName() string { return "metadata" }
