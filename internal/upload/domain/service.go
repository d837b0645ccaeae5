package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/usagelens/pkg/db/pagination"
)

type ListRequest struct {
	pagination.Pagination
	Status string `form:"status"`
}

type ListResponse struct {
	pagination.PageInfo
	Uploads []UploadMetadata `json:"uploads"`
}

type Service interface {
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	Get(ctx context.Context, uploadID string) (*UploadMetadata, error)
}

var (
	ErrNotFound         = errors.New("not_found")
	ErrInvalidStatus    = errors.New("invalid_status")
	ErrInvalidPageToken = errors.New("invalid_page_token")
)
