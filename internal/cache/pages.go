package cache

import (
	"context"
	"strings"
	"sync"
)

// PageStore keeps rendered pages keyed by request path plus query.
type PageStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, page []byte) error
	// Invalidate drops every page affected by a change at path.
	Invalidate(ctx context.Context, path string) (int, error)
}

// Key builds the page key for a request path and raw query.
func Key(path, rawQuery string) string {
	if rawQuery == "" {
		return path
	}
	return path + "?" + rawQuery
}

// Affected reports whether the page stored under key must be dropped after
// a change at path. That is path itself with any query, everything below
// it, and the exact pages of its ancestors, which summarise it.
func Affected(path, key string) bool {
	keyPath := key
	if i := strings.IndexByte(key, '?'); i >= 0 {
		keyPath = key[:i]
	}
	path = normalize(path)
	keyPath = normalize(keyPath)

	switch {
	case path == "/" || keyPath == "/":
		return true
	case keyPath == path || strings.HasPrefix(keyPath, path+"/"):
		return true
	default:
		return strings.HasPrefix(path, keyPath+"/")
	}
}

func normalize(p string) string {
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}
	if p == "" {
		return "/"
	}
	return p
}

// MemoryStore is a process-local PageStore backed by LRUCache.
type MemoryStore struct {
	lru *LRUCache[[]byte]
}

func NewMemoryStore(lru *LRUCache[[]byte]) *MemoryStore {
	return &MemoryStore{lru: lru}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	page, ok := s.lru.Get(key)
	return page, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, page []byte) error {
	s.lru.Set(key, page)
	return nil
}

func (s *MemoryStore) Invalidate(_ context.Context, path string) (int, error) {
	return s.lru.DeleteFunc(func(key string) bool { return Affected(path, key) }), nil
}

// FencedStore wraps a PageStore so that a page loaded before an
// invalidation is never stored after it. Writes go through SetAt with the
// epoch read before the load began.
type FencedStore struct {
	PageStore

	mu    sync.RWMutex
	epoch uint64
}

func NewFencedStore(store PageStore) *FencedStore {
	return &FencedStore{PageStore: store}
}

// Epoch returns the number of invalidations seen so far.
func (s *FencedStore) Epoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

// SetAt stores page unless an invalidation happened since epoch. It reports
// whether the page was stored.
func (s *FencedStore) SetAt(ctx context.Context, key string, page []byte, epoch uint64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.epoch != epoch {
		return false, nil
	}
	if err := s.PageStore.Set(ctx, key, page); err != nil {
		return false, err
	}
	return true, nil
}

func (s *FencedStore) Invalidate(ctx context.Context, path string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	return s.PageStore.Invalidate(ctx, path)
}
