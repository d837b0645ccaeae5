package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/usagelens/internal/clock"
	"github.com/smallbiznis/usagelens/internal/config"
	"github.com/smallbiznis/usagelens/internal/ingest/committer"
	"github.com/smallbiznis/usagelens/internal/ingest/domain"
	"github.com/smallbiznis/usagelens/internal/ratelimit"
	uploaddomain "github.com/smallbiznis/usagelens/internal/upload/domain"
	uploadrepo "github.com/smallbiznis/usagelens/internal/upload/repository"
	usagemetric "github.com/smallbiznis/usagelens/internal/usagemetric/domain"
	metricrepo "github.com/smallbiznis/usagelens/internal/usagemetric/repository"
	"github.com/smallbiznis/usagelens/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const csvHeader = "Date,Email,Is Active,Subscription Included Reqs\n"

type memArchive struct {
	mu   sync.Mutex
	keys []string
}

func (m *memArchive) Put(_ context.Context, key string, _ []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = append(m.keys, key)
	return nil
}

type failingUpdates struct {
	usagemetric.Repository
}

func (failingUpdates) Update(context.Context, *gorm.DB, usagemetric.MetricRecord) error {
	return errors.New("disk I/O error")
}

type failingLookup struct {
	usagemetric.Repository
}

func (failingLookup) FindByKeys(context.Context, *gorm.DB, []usagemetric.Key) ([]usagemetric.MetricRecord, error) {
	return nil, errors.New("database is locked")
}

type harness struct {
	db      *gorm.DB
	svc     domain.Service
	locker  ratelimit.Locker
	archive *memArchive
	clock   *clock.FakeClock
}

func newHarness(t *testing.T, records usagemetric.Repository, settings config.Settings) *harness {
	t.Helper()

	db := dbtest.New(t, &usagemetric.MetricRecord{}, &uploaddomain.UploadMetadata{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	if records == nil {
		records = metricrepo.Provide()
	}
	holder := config.NewStaticSettingsHolder(settings)
	fake := clock.NewFakeClock(time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC))
	locker := ratelimit.NewLocalLocker()
	store := &memArchive{}

	c := committer.New(committer.Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    fake,
		Settings: holder,
		Records:  records,
		Uploads:  uploadrepo.Provide(),
	})
	svc := New(Params{
		DB:        db,
		Log:       zap.NewNop(),
		Settings:  holder,
		Locker:    locker,
		Records:   records,
		Committer: c,
		Archive:   store,
	})
	return &harness{db: db, svc: svc, locker: locker, archive: store, clock: fake}
}

func (h *harness) ingest(t *testing.T, body string) (*domain.Result, error) {
	t.Helper()
	return h.svc.Ingest(context.Background(), domain.Request{
		Filename: "usage.csv",
		Body:     strings.NewReader(body),
	})
}

func (h *harness) stored(t *testing.T) []usagemetric.MetricRecord {
	t.Helper()
	var out []usagemetric.MetricRecord
	require.NoError(t, h.db.Order("date, email").Find(&out).Error)
	return out
}

func (h *harness) uploads(t *testing.T) []uploaddomain.UploadMetadata {
	t.Helper()
	var out []uploaddomain.UploadMetadata
	require.NoError(t, h.db.Order("uploaded_at, upload_id").Find(&out).Error)
	return out
}

func TestIngestReuploadIsIdempotent(t *testing.T) {
	h := newHarness(t, nil, config.DefaultSettings())
	body := csvHeader +
		"2024-01-01T09:00:00Z,alice@x.com,true,4\n" +
		"2024-01-01T09:00:00Z,Bob@X.com,false,0\n" +
		"2024-01-02T09:00:00Z,alice@x.com,true,7\n"

	first, err := h.ingest(t, body)
	require.NoError(t, err)
	assert.Equal(t, 3, first.New)
	assert.Equal(t, uploaddomain.StatusSuccess, first.Status)
	snapshot := h.stored(t)

	h.clock.Advance(time.Hour)
	second, err := h.ingest(t, body)
	require.NoError(t, err)
	assert.Equal(t, 0, second.New)
	assert.Equal(t, 0, second.Updated)
	assert.Equal(t, 3, second.Unchanged)
	assert.Equal(t, snapshot, h.stored(t))
	assert.Len(t, h.uploads(t), 2)
}

func TestIngestNeverDuplicatesKeys(t *testing.T) {
	h := newHarness(t, nil, config.DefaultSettings())
	bodies := []string{
		csvHeader + "2024-01-01,a@x.com,true,1\n2024-01-01,b@x.com,true,1\n",
		csvHeader + "2024-01-01T23:59:59Z,A@x.com,true,2\n2024-01-02,b@x.com,false,0\n",
		csvHeader + "2024-01-01T00:00:01Z,a@X.COM,false,2\n",
	}
	for _, body := range bodies {
		_, err := h.ingest(t, body)
		require.NoError(t, err)
	}

	records := h.stored(t)
	seen := map[usagemetric.Key]bool{}
	for _, rec := range records {
		assert.False(t, seen[rec.Key()], "duplicate key %v", rec.Key())
		seen[rec.Key()] = true
	}
	assert.Len(t, records, 3)
	assert.False(t, records[0].IsActive)
	assert.Equal(t, "a@X.COM", records[0].DisplayEmail)
}

func TestIngestLastRowInFileWins(t *testing.T) {
	h := newHarness(t, nil, config.DefaultSettings())
	res, err := h.ingest(t, csvHeader+
		"2024-01-01,a@x.com,true,5\n"+
		"2024-01-01,a@x.com,true,9\n")
	require.NoError(t, err)
	assert.Equal(t, 1, res.New)
	assert.Equal(t, 1, res.Duplicates)

	records := h.stored(t)
	require.Len(t, records, 1)
	assert.Equal(t, int64(9), records[0].SubscriptionIncludedReqs)
}

func TestIngestCommitFailureRollsBack(t *testing.T) {
	h := newHarness(t, nil, config.DefaultSettings())
	_, err := h.ingest(t, csvHeader+"2024-01-01,a@x.com,true,1\n")
	require.NoError(t, err)
	before := h.stored(t)

	// Same database, but every update fails after inserts were staged.
	broken := &harness{db: h.db, archive: &memArchive{}, clock: h.clock}
	node, _ := snowflake.NewNode(2)
	c := committer.New(committer.Params{
		DB:       h.db,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    h.clock,
		Settings: config.NewStaticSettingsHolder(config.DefaultSettings()),
		Records:  failingUpdates{metricrepo.Provide()},
		Uploads:  uploadrepo.Provide(),
	})
	broken.svc = New(Params{
		DB:        h.db,
		Log:       zap.NewNop(),
		Locker:    ratelimit.NewLocalLocker(),
		Records:   metricrepo.Provide(),
		Committer: c,
		Archive:   broken.archive,
	})

	_, err = broken.ingest(t, csvHeader+
		"2024-01-01,a@x.com,true,2\n"+
		"2024-01-01,new@x.com,true,3\n")

	var perr *domain.PersistenceError
	require.True(t, errors.As(err, &perr))
	assert.NotEmpty(t, perr.UploadID)
	assert.Equal(t, before, h.stored(t))

	var failed []uploaddomain.UploadMetadata
	for _, m := range h.uploads(t) {
		if m.Status == uploaddomain.StatusFailed {
			failed = append(failed, m)
		}
	}
	require.Len(t, failed, 1)
	assert.Equal(t, perr.UploadID, failed[0].UploadID)
	require.NotNil(t, failed[0].ErrorDetail)
	assert.Contains(t, *failed[0].ErrorDetail, "disk I/O error")
	assert.Equal(t, []string{"uploads/" + perr.UploadID + "/usage.csv"}, broken.archive.keys)
}

func TestIngestReportsInvalidRows(t *testing.T) {
	h := newHarness(t, nil, config.DefaultSettings())
	var b strings.Builder
	b.WriteString(csvHeader)
	for i := 0; i < 10; i++ {
		date := fmt.Sprintf("2024-01-%02d", i+1)
		if i == 2 || i == 5 {
			date = "not a date"
		}
		fmt.Fprintf(&b, "%s,user%d@x.com,true,%d\n", date, i, i)
	}

	res, err := h.ingest(t, b.String())
	require.NoError(t, err)
	require.Len(t, res.Invalid, 2)
	for _, row := range res.Invalid {
		assert.Contains(t, row.Reason, "Date")
	}
	assert.Equal(t, 8, res.New)
	assert.Equal(t, uploaddomain.StatusPartial, res.Status)

	uploads := h.uploads(t)
	require.Len(t, uploads, 1)
	assert.Equal(t, 2, uploads[0].RowCountInvalid)
	assert.NotEmpty(t, uploads[0].InvalidSample)
}

func TestIngestRejectsWholeFile(t *testing.T) {
	h := newHarness(t, nil, config.DefaultSettings())

	_, err := h.ingest(t, "Date,Email\n2024-01-01,a@x.com\n")
	var schemaErr *domain.SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, []string{"Is Active", "Subscription Included Reqs"}, schemaErr.MissingColumns)

	_, err = h.ingest(t, csvHeader+"bad,a@x.com,true,1\n")
	assert.ErrorIs(t, err, domain.ErrNoValidRows)

	_, err = h.ingest(t, "  \n")
	assert.ErrorIs(t, err, domain.ErrEmptyFile)

	assert.Empty(t, h.uploads(t))
	assert.Empty(t, h.stored(t))
}

func TestIngestFileTooLarge(t *testing.T) {
	settings := config.DefaultSettings()
	settings.Ingest.MaxUploadMB = 1
	h := newHarness(t, nil, settings)

	_, err := h.ingest(t, csvHeader+strings.Repeat("x", 1<<20))
	assert.ErrorIs(t, err, domain.ErrFileTooLarge)
}

func TestIngestBusyWhileLocked(t *testing.T) {
	h := newHarness(t, nil, config.DefaultSettings())
	_, ok, err := h.locker.TryLock(context.Background(), LockKey, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = h.ingest(t, csvHeader+"2024-01-01,a@x.com,true,1\n")
	assert.ErrorIs(t, err, domain.ErrIngestBusy)
	assert.Empty(t, h.stored(t))

	uploads := h.uploads(t)
	require.Len(t, uploads, 1)
	assert.Equal(t, uploaddomain.StatusFailed, uploads[0].Status)
	require.NotNil(t, uploads[0].ErrorDetail)
	assert.Contains(t, *uploads[0].ErrorDetail, domain.ErrIngestBusy.Error())
}

func TestIngestLookupFailureRecordsAttempt(t *testing.T) {
	h := newHarness(t, failingLookup{metricrepo.Provide()}, config.DefaultSettings())

	_, err := h.ingest(t, csvHeader+"2024-01-01,a@x.com,true,1\n")
	var lookupErr *domain.LookupError
	require.True(t, errors.As(err, &lookupErr))

	uploads := h.uploads(t)
	require.Len(t, uploads, 1)
	assert.Equal(t, uploaddomain.StatusFailed, uploads[0].Status)
	assert.Equal(t, lookupErr.UploadID, uploads[0].UploadID)
	assert.Empty(t, h.stored(t))
}

func TestIngestTableFromSync(t *testing.T) {
	h := newHarness(t, nil, config.DefaultSettings())
	table := domain.RawTable{
		Header: []string{"Date", "Email", "Is Active", "Subscription Included Reqs", "Usage Based Reqs"},
		Rows: []domain.RawRow{{Line: 1, Values: map[string]string{
			"Date": "2024-01-05T00:00:00Z", "Email": "a@x.com", "Is Active": "true",
			"Subscription Included Reqs": "3", "Usage Based Reqs": "0",
		}}},
	}

	res, err := h.svc.IngestTable(context.Background(), table, domain.Origin{Filename: "cursor-api", Source: uploaddomain.SourceAPISync})
	require.NoError(t, err)
	assert.Equal(t, 1, res.New)
	assert.Empty(t, h.archive.keys)

	records := h.stored(t)
	require.Len(t, records, 1)
	require.NotNil(t, records[0].UsageBasedReqs)
	assert.Equal(t, int64(0), *records[0].UsageBasedReqs)
	assert.Equal(t, uploaddomain.SourceAPISync, h.uploads(t)[0].Source)

	_, err = h.svc.IngestTable(context.Background(), table, domain.Origin{Source: "ftp"})
	assert.ErrorIs(t, err, domain.ErrInvalidSource)
}

func TestIngestArchivesOriginal(t *testing.T) {
	h := newHarness(t, nil, config.DefaultSettings())
	res, err := h.ingest(t, csvHeader+"2024-01-01,a@x.com,true,1\n")
	require.NoError(t, err)
	assert.Equal(t, []string{"uploads/" + res.UploadID + "/usage.csv"}, h.archive.keys)
}

type cancellingLookup struct {
	usagemetric.Repository
	cancel context.CancelFunc
}

func (c cancellingLookup) FindByKeys(ctx context.Context, tx *gorm.DB, keys []usagemetric.Key) ([]usagemetric.MetricRecord, error) {
	c.cancel()
	return c.Repository.FindByKeys(context.WithoutCancel(ctx), tx, keys)
}

const seedBody = csvHeader +
	"2024-01-01,alice@x.com,true,4\n" +
	"2024-01-02,bob@x.com,false,0\n"

const changedBody = csvHeader +
	"2024-01-01,alice@x.com,true,9\n" +
	"2024-01-03,carol@x.com,true,1\n"

func TestIngestCancelledBeforeLockLeavesStorageUnchanged(t *testing.T) {
	h := newHarness(t, nil, config.DefaultSettings())
	_, err := h.ingest(t, seedBody)
	require.NoError(t, err)
	before := h.stored(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = h.svc.Ingest(ctx, domain.Request{Filename: "usage.csv", Body: strings.NewReader(changedBody)})
	require.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, before, h.stored(t))
	uploads := h.uploads(t)
	require.Len(t, uploads, 2)
	assert.Equal(t, uploaddomain.StatusFailed, uploads[1].Status)

	_, ok, err := h.locker.TryLock(context.Background(), LockKey, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "lock is free after the aborted attempt")
}

func TestIngestCancelledAfterLookupLeavesStorageUnchanged(t *testing.T) {
	h := newHarness(t, nil, config.DefaultSettings())
	_, err := h.ingest(t, seedBody)
	require.NoError(t, err)
	before := h.stored(t)
	require.Len(t, before, 2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.svc.(*Service).records = cancellingLookup{Repository: metricrepo.Provide(), cancel: cancel}

	_, err = h.svc.Ingest(ctx, domain.Request{Filename: "usage.csv", Body: strings.NewReader(changedBody)})
	require.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, before, h.stored(t))
	uploads := h.uploads(t)
	require.Len(t, uploads, 2)
	assert.Equal(t, uploaddomain.StatusSuccess, uploads[0].Status)
	assert.Equal(t, uploaddomain.StatusFailed, uploads[1].Status)
}

type slowLookup struct {
	usagemetric.Repository
	delay  time.Duration
	locker ratelimit.Locker
	stolen *bool
}

func (s slowLookup) FindByKeys(ctx context.Context, tx *gorm.DB, keys []usagemetric.Key) ([]usagemetric.MetricRecord, error) {
	time.Sleep(s.delay)
	_, ok, err := s.locker.TryLock(ctx, LockKey, time.Minute)
	if err == nil && ok {
		*s.stolen = true
	}
	return s.Repository.FindByKeys(ctx, tx, keys)
}

func TestIngestRenewsLockDuringLongRuns(t *testing.T) {
	var stolen bool
	h := newHarness(t, nil, config.DefaultSettings())
	svc := h.svc.(*Service)
	svc.records = slowLookup{Repository: metricrepo.Provide(), delay: 150 * time.Millisecond, locker: h.locker, stolen: &stolen}
	svc.leaseTTL = 45 * time.Millisecond

	res, err := h.ingest(t, seedBody)
	require.NoError(t, err)
	assert.Equal(t, 2, res.New)
	assert.False(t, stolen, "a second writer acquired the lock while the first was still running")
}
