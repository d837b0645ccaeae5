package service

import (
	"context"
	"fmt"
	"io"
	"strings"

	auditdomain "github.com/smallbiznis/usagelens/internal/audit/domain"
	"github.com/smallbiznis/usagelens/internal/clock"
	"github.com/smallbiznis/usagelens/internal/ingest/csvtable"
	ingestdomain "github.com/smallbiznis/usagelens/internal/ingest/domain"
	"github.com/smallbiznis/usagelens/internal/manager/domain"
	"github.com/smallbiznis/usagelens/pkg/validation"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Roster export headers.
const (
	ColumnWorkEmail    = "Work Email"
	ColumnManagerName  = "Manager: Name"
	ColumnDirector     = "Director"
	ColumnDepartment   = "Department Name (from Employment)"
	ColumnManagerEmail = "Manager Email"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	Repo     domain.Repository
	AuditSvc auditdomain.Service `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	repo     domain.Repository
	auditSvc auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("manager.service"),
		clock:    p.Clock,
		repo:     p.Repo,
		auditSvc: p.AuditSvc,
	}
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	items, err := s.repo.List(ctx, s.db, domain.ListFilter{
		Department: req.Department,
		Query:      req.Query,
	})
	if err != nil {
		return domain.ListResponse{}, err
	}
	if items == nil {
		items = []domain.ManagerRecord{}
	}
	return domain.ListResponse{Managers: items}, nil
}

func (s *Service) Get(ctx context.Context, email string) (domain.ManagerRecord, error) {
	key, err := normalizeEmail(email)
	if err != nil {
		return domain.ManagerRecord{}, err
	}
	rec, err := s.repo.FindByEmail(ctx, s.db, key)
	if err != nil {
		return domain.ManagerRecord{}, err
	}
	if rec == nil {
		return domain.ManagerRecord{}, domain.ErrNotFound
	}
	return *rec, nil
}

func (s *Service) Upsert(ctx context.Context, email string, req domain.UpsertRequest) (domain.ManagerRecord, error) {
	key, err := normalizeEmail(email)
	if err != nil {
		return domain.ManagerRecord{}, err
	}
	managerEmail, err := optionalEmail(req.ManagerEmail)
	if err != nil {
		return domain.ManagerRecord{}, domain.ErrInvalidManagerEmail
	}

	rec := domain.ManagerRecord{
		Email:        key,
		ManagerEmail: managerEmail,
		ManagerName:  strings.TrimSpace(req.ManagerName),
		Director:     strings.TrimSpace(req.Director),
		Department:   strings.TrimSpace(req.Department),
		UpdatedAt:    s.clock.Now().UTC(),
	}
	if err := s.repo.Upsert(ctx, s.db, &rec); err != nil {
		return domain.ManagerRecord{}, err
	}

	s.emitAudit(ctx, auditdomain.ActionManagerUpsert, &key, map[string]any{
		"manager_name": rec.ManagerName,
		"director":     rec.Director,
		"department":   rec.Department,
	})
	return rec, nil
}

func (s *Service) Delete(ctx context.Context, email string) error {
	key, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	deleted, err := s.repo.Delete(ctx, s.db, key)
	if err != nil {
		return err
	}
	if !deleted {
		return domain.ErrNotFound
	}
	s.emitAudit(ctx, auditdomain.ActionManagerDelete, &key, nil)
	return nil
}

func (s *Service) Import(ctx context.Context, r io.Reader) (domain.ImportResult, error) {
	table, err := csvtable.Decode(r)
	if err != nil {
		return domain.ImportResult{}, err
	}
	if !table.HasColumn(ColumnWorkEmail) {
		return domain.ImportResult{}, &ingestdomain.SchemaError{MissingColumns: []string{ColumnWorkEmail}}
	}

	now := s.clock.Now().UTC()
	result := domain.ImportResult{Rejected: []domain.RejectedRow{}}
	index := map[string]int{}
	records := make([]domain.ManagerRecord, 0, len(table.Rows))

	for _, row := range table.Rows {
		raw := row.Values[ColumnWorkEmail]
		if row.Problem != "" {
			result.Rejected = append(result.Rejected, domain.RejectedRow{Line: row.Line, Email: raw, Reason: row.Problem})
			continue
		}
		key, err := normalizeEmail(raw)
		if err != nil {
			result.Rejected = append(result.Rejected, domain.RejectedRow{Line: row.Line, Email: raw, Reason: "invalid work email"})
			continue
		}
		managerEmail, err := optionalEmail(row.Values[ColumnManagerEmail])
		if err != nil {
			result.Rejected = append(result.Rejected, domain.RejectedRow{Line: row.Line, Email: raw, Reason: "invalid manager email"})
			continue
		}
		rec := domain.ManagerRecord{
			Email:        key,
			ManagerEmail: managerEmail,
			ManagerName:  strings.TrimSpace(row.Values[ColumnManagerName]),
			Director:     strings.TrimSpace(row.Values[ColumnDirector]),
			Department:   strings.TrimSpace(row.Values[ColumnDepartment]),
			UpdatedAt:    now,
		}
		// a later row for the same person replaces the earlier one
		if at, seen := index[key]; seen {
			records[at] = rec
			result.Duplicates++
			continue
		}
		index[key] = len(records)
		records = append(records, rec)
	}

	if len(records) == 0 {
		return result, domain.ErrEmptyRoster
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.DeleteAll(ctx, tx); err != nil {
			return err
		}
		return s.repo.InsertBatch(ctx, tx, records)
	})
	if err != nil {
		return domain.ImportResult{}, fmt.Errorf("replace roster: %w", err)
	}
	result.Imported = len(records)

	s.log.Info("roster imported",
		zap.Int("imported", result.Imported),
		zap.Int("rejected", len(result.Rejected)),
		zap.Int("duplicates", result.Duplicates),
	)
	s.emitAudit(ctx, auditdomain.ActionManagerImport, nil, map[string]any{
		"imported": result.Imported,
		"rejected": len(result.Rejected),
	})
	return result, nil
}

func (s *Service) emitAudit(ctx context.Context, action string, targetID *string, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	_ = s.auditSvc.AuditLog(ctx, action, "manager", targetID, metadata)
}

func normalizeEmail(raw string) (string, error) {
	email := strings.TrimSpace(raw)
	if email == "" || !validation.IsValidEmail(email) {
		return "", domain.ErrInvalidEmail
	}
	return validation.NormalizeEmail(email), nil
}

func optionalEmail(raw string) (*string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	email, err := normalizeEmail(raw)
	if err != nil {
		return nil, err
	}
	return &email, nil
}
