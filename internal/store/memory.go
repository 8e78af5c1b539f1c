package store

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for tests and single-instance
// deployments without redis. Expiry is checked lazily on access.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]memoryItem

	// now is swappable so tests can advance time.
	now func() time.Time
}

type memoryItem struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

func NewMemory() *MemoryStore {
	return &MemoryStore{
		items: make(map[string]memoryItem),
		now:   time.Now,
	}
}

// SetClock replaces the time source. Test hook only.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[key]
	if !ok || s.expired(item) {
		delete(s.items, key)
		return "", ErrNotFound
	}
	return item.value, nil
}

func (s *MemoryStore) SetWithTTL(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[key] = memoryItem{value: value, expiresAt: s.deadline(ttl)}
	return nil
}

func (s *MemoryStore) IncrWithTTL(_ context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	if item, ok := s.items[key]; ok && !s.expired(item) {
		n, _ = strconv.ParseInt(item.value, 10, 64)
	}
	n++
	s.items[key] = memoryItem{value: strconv.FormatInt(n, 10), expiresAt: s.deadline(ttl)}
	return n, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, key)
	return nil
}

func (s *MemoryStore) expired(item memoryItem) bool {
	return !item.expiresAt.IsZero() && s.now().After(item.expiresAt)
}

func (s *MemoryStore) deadline(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return s.now().Add(ttl)
}
