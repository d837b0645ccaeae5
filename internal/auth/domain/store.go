package domain

import (
	"context"
	"time"
)

// SessionStore keeps sessions keyed by token hash. Get returns
// ErrSessionNotFound for unknown or expired entries.
type SessionStore interface {
	Save(ctx context.Context, tokenHash string, session Session, ttl time.Duration) error
	Get(ctx context.Context, tokenHash string) (*Session, error)
	Delete(ctx context.Context, tokenHash string) error
}
