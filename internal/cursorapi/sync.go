package cursorapi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	auditdomain "github.com/smallbiznis/usagelens/internal/audit/domain"
	"github.com/smallbiznis/usagelens/internal/clock"
	"github.com/smallbiznis/usagelens/internal/config"
	ingestdomain "github.com/smallbiznis/usagelens/internal/ingest/domain"
	"github.com/smallbiznis/usagelens/internal/observability/metrics"
	uploaddomain "github.com/smallbiznis/usagelens/internal/upload/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

var ErrInvalidRange = errors.New("invalid_sync_range")

// SyncRequest bounds the pull by calendar date, both ends inclusive. Empty
// values fall back to the configured start epoch and the current time.
type SyncRequest struct {
	Start string `json:"start" form:"start"`
	End   string `json:"end" form:"end"`
}

type SyncParams struct {
	fx.In

	Log     *zap.Logger
	Config  config.Config
	Clock   clock.Clock
	Client  *Client
	Ingest  ingestdomain.Service
	Audit   auditdomain.Service `optional:"true"`
	Metrics *metrics.Metrics    `optional:"true"`
}

type Syncer struct {
	log        *zap.Logger
	clock      clock.Clock
	client     *Client
	ingest     ingestdomain.Service
	audit      auditdomain.Service
	metrics    *metrics.Metrics
	startEpoch int64
}

func NewSyncer(p SyncParams) *Syncer {
	return &Syncer{
		log:        p.Log.Named("cursorapi.sync"),
		clock:      p.Clock,
		client:     p.Client,
		ingest:     p.Ingest,
		audit:      p.Audit,
		metrics:    p.Metrics,
		startEpoch: p.Config.Cursor.StartDateEpoch,
	}
}

// Sync fetches the requested window and ingests it with source api_sync.
func (s *Syncer) Sync(ctx context.Context, req SyncRequest) (res *ingestdomain.Result, err error) {
	start, end, err := s.window(req)
	if err != nil {
		return nil, err
	}

	defer func() {
		outcome := "success"
		if err != nil {
			outcome = "failed"
		}
		s.metrics.RecordSync(ctx, outcome)
		s.recordAudit(ctx, start, end, res, err)
	}()

	entries, err := s.client.FetchDailyUsage(ctx, start, end)
	if err != nil {
		s.log.Warn("cursor api fetch failed", zap.Error(err))
		return nil, err
	}

	table := ToTable(entries)
	origin := ingestdomain.Origin{
		Filename: fmt.Sprintf("cursor-api_%s_%s", start.UTC().Format(dateLayout), end.UTC().Format(dateLayout)),
		Source:   uploaddomain.SourceAPISync,
	}
	res, err = s.ingest.IngestTable(ctx, table, origin)
	if err != nil {
		return nil, err
	}
	s.log.Info("cursor api sync completed",
		zap.String("upload_id", res.UploadID),
		zap.Int("entries", len(entries)),
		zap.String("status", string(res.Status)),
	)
	return res, nil
}

func (s *Syncer) window(req SyncRequest) (time.Time, time.Time, error) {
	start := time.Unix(s.startEpoch, 0).UTC()
	end := s.clock.Now().UTC()

	if v := strings.TrimSpace(req.Start); v != "" {
		t, err := time.ParseInLocation(dateLayout, v, time.UTC)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: start %q", ErrInvalidRange, v)
		}
		start = t
	}
	if v := strings.TrimSpace(req.End); v != "" {
		t, err := time.ParseInLocation(dateLayout, v, time.UTC)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: end %q", ErrInvalidRange, v)
		}
		end = t.Add(24*time.Hour - time.Millisecond)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end before start", ErrInvalidRange)
	}
	return start, end, nil
}

func (s *Syncer) recordAudit(ctx context.Context, start, end time.Time, res *ingestdomain.Result, err error) {
	if s.audit == nil {
		return
	}
	meta := map[string]any{
		"start": start.Format(dateLayout),
		"end":   end.Format(dateLayout),
	}
	var target *string
	if res != nil {
		target = &res.UploadID
		meta["status"] = string(res.Status)
		meta["new"] = res.New
		meta["updated"] = res.Updated
		meta["unchanged"] = res.Unchanged
		meta["invalid"] = len(res.Invalid)
	}
	if err != nil {
		meta["error"] = err.Error()
	}
	if auditErr := s.audit.AuditLog(context.WithoutCancel(ctx), auditdomain.ActionSyncRun, "upload", target, meta); auditErr != nil {
		s.log.Warn("failed to record sync audit", zap.Error(auditErr))
	}
}
