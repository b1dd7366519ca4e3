package invoice

import (
	"context"
	"sync"
	"time"
)

// sweepInterval is how often the in-memory backend evicts expired entries.
// Lookups also check expiry, so the sweep only bounds memory growth.
const sweepInterval = 15 * time.Minute

type memoryEntry struct {
	invoice   *Invoice
	expiresAt time.Time
}

// MemoryStore is the in-process fallback backend. All operations are
// mutex-guarded, which gives MarkUsed its read-modify-write atomicity.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
	ttl     time.Duration

	stopOnce sync.Once
	stop     chan struct{}
}

// NewMemoryStore creates an in-memory store and starts its sweep loop.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &MemoryStore{
		entries: make(map[string]*memoryEntry),
		ttl:     ttl,
		stop:    make(chan struct{}),
	}
	go s.sweepLoop()
	return s
}

func (s *MemoryStore) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep(time.Now())
		}
	}
}

// sweep evicts entries past their TTL.
func (s *MemoryStore) sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, entry := range s.entries {
		if now.After(entry.expiresAt) {
			delete(s.entries, id)
		}
	}
}

func (s *MemoryStore) Create(_ context.Context, inv *Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.entries[inv.PaymentID]; ok && time.Now().Before(entry.expiresAt) {
		return ErrDuplicateID
	}
	s.entries[inv.PaymentID] = &memoryEntry{
		invoice:   inv.clone(),
		expiresAt: inv.CreatedAt.Add(s.ttl),
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, paymentID string) (*Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[paymentID]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, nil
	}
	return entry.invoice.clone(), nil
}

func (s *MemoryStore) MarkUsed(_ context.Context, paymentID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[paymentID]
	if !ok || time.Now().After(entry.expiresAt) {
		return false, ErrNotFound
	}
	if entry.invoice.Used {
		return true, nil
	}
	usedAt := time.Now().UTC()
	entry.invoice.Used = true
	entry.invoice.UsedAt = &usedAt
	return false, nil
}

func (s *MemoryStore) Delete(_ context.Context, paymentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, paymentID)
	return nil
}

func (s *MemoryStore) Stats(_ context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{Backend: s.Backend()}
	now := time.Now()
	for _, entry := range s.entries {
		if now.After(entry.expiresAt) {
			continue
		}
		stats.Total++
		if entry.invoice.Used {
			stats.Used++
		} else {
			stats.Unused++
		}
	}
	return stats, nil
}

func (s *MemoryStore) Backend() string { return "memory" }

// Close stops the sweep loop. Safe to call more than once.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}
