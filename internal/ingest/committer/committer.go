// Package committer writes a reconciliation plan and its upload metadata as
// one atomic unit.
package committer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/usagelens/internal/clock"
	"github.com/smallbiznis/usagelens/internal/config"
	"github.com/smallbiznis/usagelens/internal/ingest/domain"
	uploaddomain "github.com/smallbiznis/usagelens/internal/upload/domain"
	usagemetric "github.com/smallbiznis/usagelens/internal/usagemetric/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const maxErrorDetail = 2000

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Settings *config.SettingsHolder
	Records  usagemetric.Repository
	Uploads  uploaddomain.Repository
}

type Committer struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	settings *config.SettingsHolder
	records  usagemetric.Repository
	uploads  uploaddomain.Repository
}

func New(p Params) *Committer {
	return &Committer{
		db:       p.DB,
		log:      p.Log.Named("ingest.committer"),
		genID:    p.GenID,
		clock:    p.Clock,
		settings: p.Settings,
		records:  p.Records,
		uploads:  p.Uploads,
	}
}

// NewUploadID allocates an identifier for an ingestion attempt.
func (c *Committer) NewUploadID() string {
	return c.genID.Generate().String()
}

// Commit applies plan inside a single transaction and records the upload.
// On failure nothing from the plan survives, a failed metadata row is
// written separately and a *domain.PersistenceError is returned.
func (c *Committer) Commit(ctx context.Context, plan domain.ReconciliationPlan, info domain.UploadInfo) (*uploaddomain.UploadMetadata, error) {
	uploadID := c.NewUploadID()
	now := c.clock.Now().UTC()

	inserts := make([]usagemetric.MetricRecord, len(plan.ToInsert))
	for i, rec := range plan.ToInsert {
		rec.CreatedAt = now
		rec.UpdatedAt = now
		inserts[i] = rec
	}

	status := uploaddomain.StatusSuccess
	if len(info.InvalidRows) > 0 {
		status = uploaddomain.StatusPartial
	}
	meta := c.metadata(uploadID, now, info)
	meta.RowCountNew = len(plan.ToInsert)
	meta.RowCountUpdated = len(plan.ToUpdate)
	meta.RowCountUnchanged = plan.UnchangedCount
	meta.Status = status

	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := c.records.InsertBatch(ctx, tx, inserts); err != nil {
			return err
		}
		for _, rec := range plan.ToUpdate {
			rec.UpdatedAt = now
			if err := c.records.Update(ctx, tx, rec); err != nil {
				return err
			}
		}
		return c.uploads.Insert(ctx, tx, meta)
	})
	if err != nil {
		perr := &domain.PersistenceError{UploadID: uploadID, Err: err}
		if _, ferr := c.RecordFailure(ctx, uploadID, info, perr); ferr != nil {
			c.log.Error("failed to record failed upload",
				zap.String("upload_id", uploadID),
				zap.Error(ferr),
			)
		}
		return nil, perr
	}
	return meta, nil
}

// RecordFailure writes a failed metadata row in its own transaction. It
// outlives cancellation of ctx so an aborted request still leaves a trace.
func (c *Committer) RecordFailure(ctx context.Context, uploadID string, info domain.UploadInfo, cause error) (*uploaddomain.UploadMetadata, error) {
	if uploadID == "" {
		uploadID = c.NewUploadID()
	}
	meta := c.metadata(uploadID, c.clock.Now().UTC(), info)
	meta.Status = uploaddomain.StatusFailed
	if cause != nil {
		detail := cause.Error()
		if len(detail) > maxErrorDetail {
			detail = detail[:maxErrorDetail]
		}
		meta.ErrorDetail = &detail
	}

	ctx = context.WithoutCancel(ctx)
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return c.uploads.Insert(ctx, tx, meta)
	})
	if err != nil {
		return nil, err
	}
	return meta, nil
}

func (c *Committer) metadata(uploadID string, at time.Time, info domain.UploadInfo) *uploaddomain.UploadMetadata {
	return &uploaddomain.UploadMetadata{
		UploadID:        uploadID,
		UploadedAt:      at,
		SourceFilename:  info.Filename,
		Source:          info.Source,
		SizeBytes:       info.SizeBytes,
		RowCountInvalid: len(info.InvalidRows),
		InvalidSample:   c.invalidSample(info.InvalidRows),
	}
}

func (c *Committer) invalidSample(rows []domain.InvalidRow) datatypes.JSON {
	if len(rows) == 0 {
		return nil
	}
	limit := config.DefaultSettings().Ingest.InvalidRowSample
	if c.settings != nil {
		limit = c.settings.Get().Ingest.InvalidRowSample
	}
	if limit >= 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	raw, err := json.Marshal(rows)
	if err != nil {
		c.log.Warn("encode invalid row sample", zap.Error(err))
		return nil
	}
	return datatypes.JSON(raw)
}
