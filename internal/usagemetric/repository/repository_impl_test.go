package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/smallbiznis/usagelens/internal/usagemetric/domain"
	"github.com/smallbiznis/usagelens/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(date, email string, reqs int64) domain.MetricRecord {
	now := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	return domain.MetricRecord{
		Date:                     date,
		Email:                    email,
		DisplayEmail:             email,
		IsActive:                 reqs > 0,
		SubscriptionIncludedReqs: reqs,
		CreatedAt:                now,
		UpdatedAt:                now,
	}
}

func TestFindByKeysReturnsOnlyRequestedKeys(t *testing.T) {
	db := dbtest.New(t, &domain.MetricRecord{})
	r := Provide()
	ctx := context.Background()

	require.NoError(t, r.InsertBatch(ctx, db, []domain.MetricRecord{
		record("2024-01-01", "a@x.com", 1),
		record("2024-01-01", "b@x.com", 2),
		record("2024-01-02", "a@x.com", 3),
	}))

	got, err := r.FindByKeys(ctx, db, []domain.Key{
		{Date: "2024-01-01", Email: "a@x.com"},
		{Date: "2024-01-02", Email: "a@x.com"},
		{Date: "2024-01-03", Email: "a@x.com"},
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].SubscriptionIncludedReqs)
	assert.Equal(t, int64(3), got[1].SubscriptionIncludedReqs)
}

func TestFindByKeysChunksLargeLookups(t *testing.T) {
	db := dbtest.New(t, &domain.MetricRecord{})
	r := Provide()
	ctx := context.Background()

	var (
		records []domain.MetricRecord
		keys    []domain.Key
	)
	for i := 0; i < lookupChunkSize+25; i++ {
		email := fmt.Sprintf("user%04d@x.com", i)
		records = append(records, record("2024-01-01", email, int64(i)))
		keys = append(keys, domain.Key{Date: "2024-01-01", Email: email})
	}
	require.NoError(t, r.InsertBatch(ctx, db, records))

	got, err := r.FindByKeys(ctx, db, keys)
	require.NoError(t, err)
	assert.Len(t, got, len(records))
}

func TestInsertRejectsDuplicateKey(t *testing.T) {
	db := dbtest.New(t, &domain.MetricRecord{})
	r := Provide()
	ctx := context.Background()

	require.NoError(t, r.InsertBatch(ctx, db, []domain.MetricRecord{record("2024-01-01", "a@x.com", 1)}))
	err := r.InsertBatch(ctx, db, []domain.MetricRecord{record("2024-01-01", "a@x.com", 2)})
	assert.Error(t, err)

	n, err := r.Count(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestUpdateOverwritesValuesIncludingNulls(t *testing.T) {
	db := dbtest.New(t, &domain.MetricRecord{})
	r := Provide()
	ctx := context.Background()

	seed := record("2024-01-01", "a@x.com", 1)
	usage := int64(4)
	seed.UsageBasedReqs = &usage
	require.NoError(t, r.InsertBatch(ctx, db, []domain.MetricRecord{seed}))

	changed := record("2024-01-01", "a@x.com", 9)
	changed.UpdatedAt = seed.UpdatedAt.Add(time.Hour)
	require.NoError(t, r.Update(ctx, db, changed))

	got, err := r.FindByKeys(ctx, db, []domain.Key{seed.Key()})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(9), got[0].SubscriptionIncludedReqs)
	assert.Nil(t, got[0].UsageBasedReqs)
}

func TestUpdateMissingRecord(t *testing.T) {
	db := dbtest.New(t, &domain.MetricRecord{})
	err := Provide().Update(context.Background(), db, record("2024-01-01", "ghost@x.com", 1))
	assert.True(t, errors.Is(err, domain.ErrRecordNotFound))
}
