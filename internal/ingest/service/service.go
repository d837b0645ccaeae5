// Package service runs an upload through validation, normalization,
// reconciliation and commit.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/smallbiznis/usagelens/internal/archive"
	"github.com/smallbiznis/usagelens/internal/config"
	"github.com/smallbiznis/usagelens/internal/ingest/committer"
	"github.com/smallbiznis/usagelens/internal/ingest/csvtable"
	"github.com/smallbiznis/usagelens/internal/ingest/domain"
	"github.com/smallbiznis/usagelens/internal/ingest/normalizer"
	"github.com/smallbiznis/usagelens/internal/ingest/reconcile"
	"github.com/smallbiznis/usagelens/internal/ingest/validator"
	"github.com/smallbiznis/usagelens/internal/observability/logger"
	"github.com/smallbiznis/usagelens/internal/observability/metrics"
	"github.com/smallbiznis/usagelens/internal/observability/tracing"
	"github.com/smallbiznis/usagelens/internal/ratelimit"
	uploaddomain "github.com/smallbiznis/usagelens/internal/upload/domain"
	usagemetric "github.com/smallbiznis/usagelens/internal/usagemetric/domain"
	"github.com/smallbiznis/usagelens/pkg/telemetry/correlation"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	// LockKey serializes ingestions across every process sharing the lock backend.
	LockKey = "usagelens:ingest"
	// lockTTL bounds how long a crashed holder blocks others; a live holder
	// renews the lease every lockTTL/3.
	lockTTL = 2 * time.Minute
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	Settings      *config.SettingsHolder
	Locker        ratelimit.Locker
	Records       usagemetric.Repository
	Committer     *committer.Committer
	Archive       archive.Store          `optional:"true"`
	Metrics       *metrics.Metrics       `optional:"true"`
	IngestMetrics *metrics.IngestMetrics `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	settings      *config.SettingsHolder
	locker        ratelimit.Locker
	records       usagemetric.Repository
	committer     *committer.Committer
	archive       archive.Store
	metrics       *metrics.Metrics
	ingestMetrics *metrics.IngestMetrics
	leaseTTL      time.Duration
}

func New(p Params) domain.Service {
	store := p.Archive
	if store == nil {
		store = archive.Noop{}
	}
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("ingest.service"),
		settings:      p.Settings,
		locker:        p.Locker,
		records:       p.Records,
		committer:     p.Committer,
		archive:       store,
		metrics:       p.Metrics,
		ingestMetrics: p.IngestMetrics,
		leaseTTL:      lockTTL,
	}
}

func (s *Service) Ingest(ctx context.Context, req domain.Request) (*domain.Result, error) {
	source := req.Source
	if source == "" {
		source = uploaddomain.SourceCSVUpload
	}
	if !source.Valid() {
		return nil, domain.ErrInvalidSource
	}
	if req.Body == nil {
		return nil, domain.ErrEmptyFile
	}

	body, err := s.readBody(req.Body)
	if err != nil {
		s.ingestMetrics.IncFailure("read", err)
		return nil, err
	}

	table, err := csvtable.Decode(bytes.NewReader(body))
	if err != nil {
		s.ingestMetrics.IncFailure("decode", err)
		return nil, err
	}

	origin := domain.Origin{Filename: req.Filename, Source: source, SizeBytes: int64(len(body))}
	res, err := s.IngestTable(ctx, table, origin)

	if uploadID := uploadIDOf(res, err); uploadID != "" {
		key := archive.Key(uploadID, req.Filename)
		if aerr := s.archive.Put(context.WithoutCancel(ctx), key, body, "text/csv"); aerr != nil {
			logger.WithContext(ctx, s.log).Warn("archive upload failed",
				zap.String("upload_id", uploadID),
				zap.String("key", key),
				zap.Error(aerr),
			)
		}
	}
	return res, err
}

func (s *Service) IngestTable(ctx context.Context, table domain.RawTable, origin domain.Origin) (res *domain.Result, err error) {
	if origin.Source == "" {
		origin.Source = uploaddomain.SourceCSVUpload
	}
	if !origin.Source.Valid() {
		return nil, domain.ErrInvalidSource
	}

	ctx, cid := correlation.EnsureCorrelationID(ctx)
	ctx, span := tracing.Tracer().Start(ctx, "ingest.run", trace.WithAttributes(
		attribute.String("ingest.source", string(origin.Source)),
		attribute.String("ingest.filename", origin.Filename),
		attribute.Int("ingest.rows", len(table.Rows)),
	))
	defer func() { tracing.EndSpan(span, err) }()

	started := time.Now()
	log := logger.WithContext(ctx, s.log).With(
		zap.String("source", string(origin.Source)),
		zap.String("filename", origin.Filename),
	)
	defer func() {
		s.ingestMetrics.ObserveDuration(string(origin.Source), time.Since(started))
		status := string(uploaddomain.StatusFailed)
		if res != nil {
			status = string(res.Status)
		}
		s.ingestMetrics.IncUpload(status, string(origin.Source))
		s.metrics.RecordUpload(ctx, string(origin.Source), status)
	}()

	_, validateSpan := tracing.Tracer().Start(ctx, "ingest.validate")
	validation, err := validator.Validate(table)
	tracing.EndSpan(validateSpan, err)
	if err != nil {
		s.ingestMetrics.IncFailure("validate", err)
		s.ingestMetrics.AddRows("invalid", len(validation.InvalidRows))
		log.Info("upload rejected", zap.Error(err))
		return nil, err
	}
	_, normalizeSpan := tracing.Tracer().Start(ctx, "ingest.normalize")
	records, duplicates := normalizer.NormalizeAll(validation.ValidRows)
	normalizeSpan.End()
	info := domain.UploadInfo{Origin: origin, InvalidRows: validation.InvalidRows}

	if err := ctx.Err(); err != nil {
		return nil, s.abort(ctx, log, info, "cancelled", err)
	}

	token, ok, err := s.locker.TryLock(ctx, LockKey, s.leaseTTL)
	if err != nil {
		s.ingestMetrics.IncFailure("lock", err)
		return nil, fmt.Errorf("acquire ingest lock: %w", err)
	}
	if !ok {
		return nil, s.abort(ctx, log, info, "busy", domain.ErrIngestBusy)
	}
	stopRenew := s.renewLease(ctx, log, token)
	defer func() {
		stopRenew()
		if rerr := s.locker.Release(context.WithoutCancel(ctx), LockKey, token); rerr != nil {
			log.Warn("release ingest lock", zap.Error(rerr))
		}
	}()

	plan, err := s.plan(ctx, records)
	if err != nil {
		s.ingestMetrics.IncFailure("lookup", err)
		var lookupErr *domain.LookupError
		if !errors.As(err, &lookupErr) {
			lookupErr = &domain.LookupError{Err: err}
		}
		meta, ferr := s.committer.RecordFailure(ctx, "", info, lookupErr)
		if ferr != nil {
			log.Error("failed to record failed upload", zap.Error(ferr))
		} else {
			lookupErr.UploadID = meta.UploadID
		}
		log.Error("upload lookup failed", zap.Error(err))
		return nil, lookupErr
	}

	if err := ctx.Err(); err != nil {
		return nil, s.abort(ctx, log, info, "cancelled", err)
	}

	_, commitSpan := tracing.Tracer().Start(ctx, "ingest.commit")
	meta, err := s.committer.Commit(ctx, plan, info)
	tracing.EndSpan(commitSpan, err)
	if err != nil {
		s.ingestMetrics.IncFailure("commit", err)
		log.Error("upload commit failed", zap.Error(err))
		return nil, err
	}

	invalid := validation.InvalidRows
	if invalid == nil {
		invalid = []domain.InvalidRow{}
	}
	res = &domain.Result{
		UploadID:   meta.UploadID,
		Status:     meta.Status,
		New:        len(plan.ToInsert),
		Updated:    len(plan.ToUpdate),
		Unchanged:  plan.UnchangedCount,
		Duplicates: duplicates,
		Invalid:    invalid,
	}

	s.ingestMetrics.AddRows("new", res.New)
	s.ingestMetrics.AddRows("updated", res.Updated)
	s.ingestMetrics.AddRows("unchanged", res.Unchanged)
	s.ingestMetrics.AddRows("invalid", len(res.Invalid))
	s.ingestMetrics.AddRows("duplicate", res.Duplicates)
	s.metrics.RecordRows(ctx, "new", res.New)
	s.metrics.RecordRows(ctx, "updated", res.Updated)
	s.metrics.RecordRows(ctx, "unchanged", res.Unchanged)
	s.metrics.RecordRows(ctx, "invalid", len(res.Invalid))

	log.Info("upload ingested",
		zap.String("upload_id", res.UploadID),
		zap.String("correlation_id", cid),
		zap.String("status", string(res.Status)),
		zap.Int("new", res.New),
		zap.Int("updated", res.Updated),
		zap.Int("unchanged", res.Unchanged),
		zap.Int("invalid", len(res.Invalid)),
		zap.Int("duplicates_in_file", res.Duplicates),
	)
	return res, nil
}

// plan loads the stored counterparts of records and classifies them.
func (s *Service) plan(ctx context.Context, records []usagemetric.MetricRecord) (domain.ReconciliationPlan, error) {
	ctx, span := tracing.Tracer().Start(ctx, "ingest.reconcile")
	var err error
	defer func() { tracing.EndSpan(span, err) }()

	keys := make([]usagemetric.Key, len(records))
	for i, rec := range records {
		keys[i] = rec.Key()
	}
	existing, err := s.records.FindByKeys(ctx, s.db, keys)
	if err != nil {
		return domain.ReconciliationPlan{}, &domain.LookupError{Err: err}
	}
	stored := make(map[usagemetric.Key]usagemetric.MetricRecord, len(existing))
	for _, rec := range existing {
		stored[rec.Key()] = rec
	}

	var plan domain.ReconciliationPlan
	plan, err = reconcile.Reconcile(records, reconcile.FromMap(stored))
	return plan, err
}

func (s *Service) readBody(r io.Reader) ([]byte, error) {
	limit := config.DefaultSettings().Ingest.MaxUploadBytes()
	if s.settings != nil {
		limit = s.settings.Get().Ingest.MaxUploadBytes()
	}
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(body)) > limit {
		return nil, domain.ErrFileTooLarge
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, domain.ErrEmptyFile
	}
	return body, nil
}

func uploadIDOf(res *domain.Result, err error) string {
	if res != nil {
		return res.UploadID
	}
	var perr *domain.PersistenceError
	if errors.As(err, &perr) {
		return perr.UploadID
	}
	var lerr *domain.LookupError
	if errors.As(err, &lerr) {
		return lerr.UploadID
	}
	return ""
}

// abort records a failed attempt for an upload that passed validation but
// never reached commit. The returned error is cause itself.
func (s *Service) abort(ctx context.Context, log *zap.Logger, info domain.UploadInfo, stage string, cause error) error {
	s.ingestMetrics.IncFailure(stage, cause)
	meta, err := s.committer.RecordFailure(ctx, "", info, cause)
	if err != nil {
		log.Error("failed to record failed upload", zap.Error(err))
		return cause
	}
	log.Warn("upload aborted before commit",
		zap.String("upload_id", meta.UploadID),
		zap.String("stage", stage),
		zap.Error(cause),
	)
	return cause
}

// renewLease keeps the ingest lock alive while lookup and commit run. The
// returned func stops renewal and waits for the renewer to exit.
func (s *Service) renewLease(ctx context.Context, log *zap.Logger, token string) func() {
	interval := s.leaseTTL / 3
	if interval <= 0 {
		return func() {}
	}
	ctx = context.WithoutCancel(ctx)
	done := make(chan struct{})
	exited := make(chan struct{})

	go func() {
		defer close(exited)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				ok, err := s.locker.Extend(ctx, LockKey, token, s.leaseTTL)
				if err != nil {
					log.Warn("renew ingest lock", zap.Error(err))
					continue
				}
				if !ok {
					log.Error("ingest lock lost while holding it")
					return
				}
			}
		}
	}()

	return func() {
		close(done)
		<-exited
	}
}
