package session

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const defaultMemoryEntries = 10000

// MemoryStore keeps sessions in a bounded LRU. Every entry shares the idle TTL
// given at construction; the oldest sessions are evicted when the store is full.
type MemoryStore struct {
	sessions *expirable.LRU[string, Data]
}

func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreSize(defaultMemoryEntries, DefaultIdleTTL)
}

func NewMemoryStoreSize(size int, ttl time.Duration) *MemoryStore {
	if size <= 0 {
		size = defaultMemoryEntries
	}
	return &MemoryStore{sessions: expirable.NewLRU[string, Data](size, nil, ttl)}
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Data, error) {
	data, ok := s.sessions.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return &data, nil
}

// Set stores a copy of data. The ttl argument is bounded by the store-wide TTL.
func (s *MemoryStore) Set(_ context.Context, id string, data *Data, _ time.Duration) error {
	s.sessions.Add(id, *data)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.sessions.Remove(id)
	return nil
}

func (s *MemoryStore) Close() error {
	s.sessions.Purge()
	return nil
}
