package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/usagelens/internal/auth/domain"
	"github.com/smallbiznis/usagelens/internal/clock"
)

const redisKeyPrefix = "usagelens:session:"

// NewStore picks Redis when a client is configured, memory otherwise.
func NewStore(client *redis.Client, clk clock.Clock) domain.SessionStore {
	if client == nil {
		return NewMemoryStore(clk)
	}
	return NewRedisStore(client)
}

type MemoryStore struct {
	mu       sync.Mutex
	clock    clock.Clock
	sessions map[string]domain.Session
}

func NewMemoryStore(clk clock.Clock) *MemoryStore {
	if clk == nil {
		clk = clock.System()
	}
	return &MemoryStore{clock: clk, sessions: map[string]domain.Session{}}
}

func (s *MemoryStore) Save(_ context.Context, tokenHash string, session domain.Session, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	for hash, existing := range s.sessions {
		if existing.Expired(now) {
			delete(s.sessions, hash)
		}
	}
	s.sessions[tokenHash] = session
	return nil
}

func (s *MemoryStore) Get(_ context.Context, tokenHash string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[tokenHash]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if session.Expired(s.clock.Now()) {
		delete(s.sessions, tokenHash)
		return nil, domain.ErrSessionNotFound
	}
	return &session, nil
}

func (s *MemoryStore) Delete(_ context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, tokenHash)
	return nil
}

// RedisStore lets several server replicas share sessions. Expiry is left to
// the key TTL.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Save(ctx context.Context, tokenHash string, session domain.Session, ttl time.Duration) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, redisKeyPrefix+tokenHash, payload, ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, tokenHash string) (*domain.Session, error) {
	payload, err := s.client.Get(ctx, redisKeyPrefix+tokenHash).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	var session domain.Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, domain.ErrInvalidSession
	}
	return &session, nil
}

func (s *RedisStore) Delete(ctx context.Context, tokenHash string) error {
	return s.client.Del(ctx, redisKeyPrefix+tokenHash).Err()
}
