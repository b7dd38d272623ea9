package settings

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

var ErrNotFound = errors.New("setting not found")

// Store reads and writes raw setting values.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	SetMany(ctx context.Context, values map[string]string) error
	All(ctx context.Context) (map[string]string, error)
}

const defaultCacheSize = 256

// CachedStore keeps settings in an in-process LRU. Every write through it
// purges the cache, so readers on this instance observe their own writes.
type CachedStore struct {
	backend Store

	mu         sync.Mutex
	values     *lru.Cache[string, string]
	complete   bool
	generation uint64
}

func NewCachedStore(backend Store) (*CachedStore, error) {
	values, err := lru.New[string, string](defaultCacheSize)
	if err != nil {
		return nil, err
	}
	return &CachedStore{backend: backend, values: values}, nil
}

func (s *CachedStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	value, ok := s.values.Get(key)
	complete := s.complete
	s.mu.Unlock()

	if ok {
		return value, nil
	}
	if complete {
		return "", ErrNotFound
	}

	values, err := s.All(ctx)
	if err != nil {
		return "", err
	}
	if value, ok := values[key]; ok {
		return value, nil
	}
	return "", ErrNotFound
}

// All returns every setting. A backend read that overlaps a write is
// returned to the caller but not cached.
func (s *CachedStore) All(ctx context.Context) (map[string]string, error) {
	s.mu.Lock()
	if s.complete {
		snapshot := make(map[string]string, s.values.Len())
		for _, key := range s.values.Keys() {
			if value, ok := s.values.Peek(key); ok {
				snapshot[key] = value
			}
		}
		s.mu.Unlock()
		return snapshot, nil
	}
	generation := s.generation
	s.mu.Unlock()

	values, err := s.backend.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation == generation {
		s.values.Purge()
		for key, value := range values {
			s.values.Add(key, value)
		}
		s.complete = len(values) <= defaultCacheSize
	}
	return maps.Clone(values), nil
}

func (s *CachedStore) Set(ctx context.Context, key, value string) error {
	return s.SetMany(ctx, map[string]string{key: value})
}

func (s *CachedStore) SetMany(ctx context.Context, values map[string]string) error {
	defer s.Invalidate()
	return s.backend.SetMany(ctx, values)
}

// Invalidate drops every cached value.
func (s *CachedStore) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values.Purge()
	s.complete = false
	s.generation++
}
