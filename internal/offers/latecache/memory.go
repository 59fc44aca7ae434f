package latecache

import (
	"context"
	"sync"
	"time"

	"offer_compare_backend/internal/offers/domain"
)

type memoryEntry struct {
	offers  []domain.Offer
	updated time.Time
}

// MemoryStore is a process-local Store guarded by a single mutex.
// With a zero TTL entries live until consumed.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *MemoryStore) Record(_ context.Context, key string, offers []domain.Offer) error {
	if len(offers) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || s.expired(e, s.now()) {
		e = &memoryEntry{}
		s.entries[key] = e
	}
	e.offers = append(e.offers, offers...)
	e.updated = s.now()
	return nil
}

func (s *MemoryStore) Consume(_ context.Context, key string) ([]domain.Offer, error) {
	s.mu.Lock()
	e, ok := s.entries[key]
	delete(s.entries, key)
	s.mu.Unlock()

	if !ok || s.expired(e, s.now()) {
		return []domain.Offer{}, nil
	}
	return e.offers, nil
}

// Len reports the number of live entries.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Sweep drops entries older than the TTL and returns how many were removed.
func (s *MemoryStore) Sweep(now time.Time) int {
	if s.ttl <= 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, e := range s.entries {
		if s.expired(e, now) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// TTL reports the configured expiry; zero means entries never expire.
func (s *MemoryStore) TTL() time.Duration {
	return s.ttl
}

func (s *MemoryStore) expired(e *memoryEntry, now time.Time) bool {
	return s.ttl > 0 && now.Sub(e.updated) > s.ttl
}
