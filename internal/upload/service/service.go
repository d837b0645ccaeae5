package service

import (
	"context"
	"strings"
	"time"

	"github.com/smallbiznis/usagelens/internal/upload/domain"
	"github.com/smallbiznis/usagelens/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo domain.Repository
}

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("upload.service"),
		repo: p.Repo,
	}
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	filter := domain.ListFilter{Limit: req.Size()}

	if status := strings.TrimSpace(req.Status); status != "" {
		switch domain.Status(status) {
		case domain.StatusSuccess, domain.StatusPartial, domain.StatusFailed:
			filter.Status = domain.Status(status)
		default:
			return domain.ListResponse{}, domain.ErrInvalidStatus
		}
	}

	if token := strings.TrimSpace(req.PageToken); token != "" {
		decoded, err := pagination.DecodeCursor(token)
		if err != nil {
			return domain.ListResponse{}, domain.ErrInvalidPageToken
		}
		uploadedAt, err := time.Parse(time.RFC3339Nano, decoded.CreatedAt)
		if err != nil || decoded.ID == "" {
			return domain.ListResponse{}, domain.ErrInvalidPageToken
		}
		filter.Cursor = &domain.Cursor{UploadedAt: uploadedAt, UploadID: decoded.ID}
	}

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return domain.ListResponse{}, err
	}

	page, info := pagination.Page(items, filter.Limit, func(m domain.UploadMetadata) pagination.Cursor {
		return pagination.Cursor{ID: m.UploadID, CreatedAt: m.UploadedAt.UTC().Format(time.RFC3339Nano)}
	})
	if page == nil {
		page = []domain.UploadMetadata{}
	}
	return domain.ListResponse{PageInfo: info, Uploads: page}, nil
}

func (s *Service) Get(ctx context.Context, uploadID string) (*domain.UploadMetadata, error) {
	uploadID = strings.TrimSpace(uploadID)
	if uploadID == "" {
		return nil, domain.ErrNotFound
	}
	m, err := s.repo.FindByID(ctx, s.db, uploadID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, domain.ErrNotFound
	}
	return m, nil
}
