package cursorapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/smallbiznis/usagelens/internal/config"
	"github.com/smallbiznis/usagelens/pkg/telemetry/correlation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig(url string) config.Config {
	return config.Config{Cursor: config.CursorConfig{
		APIKey:         "key_123",
		APIURL:         url,
		StartDateEpoch: config.DefaultCursorStartDateEpoch,
		TimeoutSeconds: 5,
	}}
}

func TestFetchDailyUsage(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer key_123", r.Header.Get("Authorization"))
		assert.Equal(t, "cid-1", r.Header.Get(correlation.Header))

		var body usageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, start.UnixMilli(), body.StartDate)
		assert.Equal(t, end.UnixMilli(), body.EndDate)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"date":1704067200000,"email":"A@x.com","isActive":true,"subscriptionIncludedReqs":4,"usageBasedReqs":1}]}`))
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL), zap.NewNop())
	ctx := correlation.ContextWithCorrelationID(context.Background(), "cid-1")
	entries, err := client.FetchDailyUsage(ctx, start, end)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "A@x.com", entries[0].Email)
	assert.True(t, entries[0].IsActive)
	require.NotNil(t, entries[0].SubscriptionIncludedReqs)
	assert.Equal(t, int64(4), *entries[0].SubscriptionIncludedReqs)
	assert.Nil(t, entries[0].TotalLinesAdded)
}

func TestFetchDailyUsageErrors(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		client := NewClient(config.Config{}, zap.NewNop())
		_, err := client.FetchDailyUsage(context.Background(), time.Now(), time.Now())
		assert.ErrorIs(t, err, ErrNotConfigured)
	})

	t.Run("unauthorized", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer srv.Close()

		_, err := NewClient(testConfig(srv.URL), zap.NewNop()).FetchDailyUsage(context.Background(), time.Now(), time.Now())
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("server error after retries", func(t *testing.T) {
		calls := 0
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("upstream down"))
		}))
		defer srv.Close()

		cfg := testConfig(srv.URL)
		cfg.Cursor.RetryMax = 1
		client := NewClient(cfg, zap.NewNop())
		client.http.RetryWaitMin = time.Millisecond
		client.http.RetryWaitMax = time.Millisecond

		_, err := client.FetchDailyUsage(context.Background(), time.Now(), time.Now())
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
		assert.Equal(t, "upstream down", apiErr.Body)
		assert.Equal(t, 2, calls)
	})
}
