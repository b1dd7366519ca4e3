package invoice

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var (
	// ErrUnavailable means the backend could not serve the operation.
	ErrUnavailable = errors.New("store_unavailable")
	// ErrNotFound means the invoice is absent or expired.
	ErrNotFound = errors.New("invoice not found")
	// ErrDuplicateID means Create was called with an id that already
	// exists. IDs are generated internally, so this is a programming error.
	ErrDuplicateID = errors.New("duplicate payment id")
)

// Store is the invoice lifecycle contract shared by both backends.
type Store interface {
	// Create inserts a fresh invoice and arms its TTL.
	Create(ctx context.Context, inv *Invoice) error
	// Get returns the invoice, or nil when it is absent or expired.
	Get(ctx context.Context, paymentID string) (*Invoice, error)
	// MarkUsed atomically flips used=false→true. On an already-used
	// invoice it is a no-op reporting alreadyUsed=true; usedAt is never
	// rewritten. Exactly one concurrent caller observes alreadyUsed=false.
	MarkUsed(ctx context.Context, paymentID string) (alreadyUsed bool, err error)
	// Delete removes the invoice unconditionally.
	Delete(ctx context.Context, paymentID string) error
	// Stats reports the live invoice population.
	Stats(ctx context.Context) (Stats, error)
	// Backend names the active backend ("redis" or "memory").
	Backend() string
	// Close releases backend resources.
	Close() error
}

// Config selects and tunes the backend.
type Config struct {
	// RedisURL is the external KV connection string; empty disables Redis.
	RedisURL string
	// TTL overrides DefaultTTL when positive.
	TTL time.Duration
}

// New builds the process-wide store. Redis is attempted when configured;
// any boot failure falls back to the in-memory backend. A Redis store that
// fails later degrades through the failover wrapper, never the other way
// around: re-entering Redis mid-process would split the invoice space.
func New(ctx context.Context, cfg Config, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.Default()
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	if cfg.RedisURL == "" {
		logger.Info("invoice store using in-memory backend", "reason", "no redis url configured")
		return NewMemoryStore(ttl)
	}

	redisStore, err := NewRedisStore(ctx, cfg.RedisURL, ttl)
	if err != nil {
		logger.Warn("invoice store falling back to in-memory backend",
			"error", err)
		return NewMemoryStore(ttl)
	}

	logger.Info("invoice store using redis backend")
	return &failoverStore{
		primary:  redisStore,
		fallback: NewMemoryStore(ttl),
		logger:   logger,
	}
}

// failoverStore serves from Redis until the first transient failure, then
// swaps permanently to the in-memory fallback. The swap is one-way by
// design choice recorded in DESIGN.md.
type failoverStore struct {
	mu       sync.RWMutex
	degraded bool

	primary  *RedisStore
	fallback *MemoryStore
	logger   *slog.Logger
}

func (s *failoverStore) active() Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.degraded {
		return s.fallback
	}
	return s.primary
}

// degrade swaps to the fallback backend. Idempotent under concurrency.
func (s *failoverStore) degrade(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.degraded {
		return
	}
	s.degraded = true
	s.logger.Error("invoice store degraded to in-memory backend", "error", err)
	_ = s.primary.Close()
}

// transient reports whether err indicates a backend failure rather than a
// domain outcome.
func transient(err error) bool {
	return err != nil &&
		!errors.Is(err, ErrNotFound) &&
		!errors.Is(err, ErrDuplicateID)
}

func (s *failoverStore) Create(ctx context.Context, inv *Invoice) error {
	err := s.active().Create(ctx, inv)
	if transient(err) {
		s.degrade(err)
		return s.fallback.Create(ctx, inv)
	}
	return err
}

func (s *failoverStore) Get(ctx context.Context, paymentID string) (*Invoice, error) {
	inv, err := s.active().Get(ctx, paymentID)
	if transient(err) {
		s.degrade(err)
		return s.fallback.Get(ctx, paymentID)
	}
	return inv, err
}

func (s *failoverStore) MarkUsed(ctx context.Context, paymentID string) (bool, error) {
	alreadyUsed, err := s.active().MarkUsed(ctx, paymentID)
	if transient(err) {
		s.degrade(err)
		return s.fallback.MarkUsed(ctx, paymentID)
	}
	return alreadyUsed, err
}

func (s *failoverStore) Delete(ctx context.Context, paymentID string) error {
	err := s.active().Delete(ctx, paymentID)
	if transient(err) {
		s.degrade(err)
		return s.fallback.Delete(ctx, paymentID)
	}
	return err
}

func (s *failoverStore) Stats(ctx context.Context) (Stats, error) {
	stats, err := s.active().Stats(ctx)
	if transient(err) {
		s.degrade(err)
		return s.fallback.Stats(ctx)
	}
	return stats, err
}

func (s *failoverStore) Backend() string {
	return s.active().Backend()
}

func (s *failoverStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.degraded {
		_ = s.primary.Close()
	}
	return s.fallback.Close()
}
