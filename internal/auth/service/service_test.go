package service

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/usagelens/internal/auth/domain"
	"github.com/smallbiznis/usagelens/internal/auth/password"
	"github.com/smallbiznis/usagelens/internal/auth/session"
	"github.com/smallbiznis/usagelens/internal/clock"
	"github.com/smallbiznis/usagelens/internal/config"
	"github.com/smallbiznis/usagelens/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T, admin config.AdminConfig, clk *clock.FakeClock, limiter ratelimit.Limiter) domain.Service {
	t.Helper()
	return New(Params{
		Log:     zap.NewNop(),
		Config:  config.Config{Admin: admin, SessionTTLMinute: 60},
		Clock:   clk,
		Store:   session.NewMemoryStore(clk),
		Limiter: limiter,
	})
}

func TestLoginPlaintextPassword(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC))
	svc := newTestService(t, config.AdminConfig{Username: "ops", Password: "hunter22"}, clk, nil)
	ctx := context.Background()

	_, err := svc.Login(ctx, domain.LoginRequest{Username: "ops", Password: "wrong"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	_, err = svc.Login(ctx, domain.LoginRequest{Username: "other", Password: "hunter22"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	res, err := svc.Login(ctx, domain.LoginRequest{Username: " ops ", Password: "hunter22"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.RawToken)
	assert.Equal(t, clk.Now().Add(time.Hour), res.ExpiresAt)
	assert.Equal(t, "ops", res.Session.Username)

	sess, err := svc.Authenticate(ctx, res.RawToken)
	require.NoError(t, err)
	assert.Equal(t, "ops", sess.Username)

	clk.Advance(61 * time.Minute)
	_, err = svc.Authenticate(ctx, res.RawToken)
	assert.Error(t, err)
}

func TestLoginHashedPassword(t *testing.T) {
	hash, err := password.Hash("hunter22")
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Now())
	svc := newTestService(t, config.AdminConfig{Username: "ops", PasswordHash: hash}, clk, nil)

	_, err = svc.Login(context.Background(), domain.LoginRequest{Username: "ops", Password: hash})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	_, err = svc.Login(context.Background(), domain.LoginRequest{Username: "ops", Password: "hunter22"})
	assert.NoError(t, err)
}

func TestLoginDisabledWithoutCredentials(t *testing.T) {
	svc := newTestService(t, config.AdminConfig{}, clock.NewFakeClock(time.Now()), nil)
	assert.False(t, svc.Enabled())

	_, err := svc.Login(context.Background(), domain.LoginRequest{Username: "", Password: ""})
	assert.ErrorIs(t, err, domain.ErrAuthDisabled)
}

func TestLoginThrottledPerIP(t *testing.T) {
	limiter := ratelimit.NewInMemoryLimiter(0.001, 2)
	svc := newTestService(t, config.AdminConfig{Username: "ops", Password: "hunter22"}, clock.NewFakeClock(time.Now()), limiter)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := svc.Login(ctx, domain.LoginRequest{Username: "ops", Password: "nope", IPAddress: "10.0.0.1"})
		assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	}
	_, err := svc.Login(ctx, domain.LoginRequest{Username: "ops", Password: "hunter22", IPAddress: "10.0.0.1"})
	assert.ErrorIs(t, err, domain.ErrTooManyAttempts)

	_, err = svc.Login(ctx, domain.LoginRequest{Username: "ops", Password: "hunter22", IPAddress: "10.0.0.2"})
	assert.NoError(t, err)
}

func TestLogoutRevokesSession(t *testing.T) {
	svc := newTestService(t, config.AdminConfig{Username: "ops", Password: "hunter22"}, clock.NewFakeClock(time.Now()), nil)
	ctx := context.Background()

	res, err := svc.Login(ctx, domain.LoginRequest{Username: "ops", Password: "hunter22"})
	require.NoError(t, err)
	require.NoError(t, svc.Logout(ctx, res.RawToken))

	_, err = svc.Authenticate(ctx, res.RawToken)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.ErrorIs(t, svc.Logout(ctx, ""), domain.ErrSessionNotFound)
}
