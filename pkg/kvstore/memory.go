package kvstore

import (
	"context"
	"strings"
	"sync"
	"time"
)

const (
	attrPrefix  = "attr:"
	loginPrefix = "login:"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// MemoryStore is a process-local Store. Namespace isolation uses disjoint
// key prefixes instead of separate databases. Expired entries are dropped
// lazily on read and swept by a background goroutine when a cleanup
// interval is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ticker  *time.Ticker
	done    chan struct{}
}

// NewMemoryStore creates an in-memory store. A cleanupInterval of 0 disables
// the background sweep; expired entries are still invisible to reads.
func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]memoryEntry),
		done:    make(chan struct{}),
	}

	if cleanupInterval > 0 {
		s.ticker = time.NewTicker(cleanupInterval)
		go s.cleanupLoop()
	}

	return s
}

// Close stops the cleanup goroutine.
func (s *MemoryStore) Close() error {
	if s.ticker != nil {
		s.ticker.Stop()
		close(s.done)
	}
	return nil
}

func (s *MemoryStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.put(attrPrefix+key, value, ttl)
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	return s.get(attrPrefix + key)
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	return s.delete(attrPrefix + key)
}

func (s *MemoryStore) Contains(ctx context.Context, key string) (bool, error) {
	_, err := s.get(attrPrefix + key)
	if err != nil {
		if err == ErrNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *MemoryStore) Size(ctx context.Context) (int64, error) {
	return s.size(attrPrefix), nil
}

func (s *MemoryStore) LoginPut(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.put(loginPrefix+key, value, ttl)
}

func (s *MemoryStore) LoginGet(ctx context.Context, key string) ([]byte, error) {
	return s.get(loginPrefix + key)
}

func (s *MemoryStore) LoginDelete(ctx context.Context, key string) error {
	return s.delete(loginPrefix + key)
}

func (s *MemoryStore) LoginContains(ctx context.Context, key string) (bool, error) {
	_, err := s.get(loginPrefix + key)
	if err != nil {
		if err == ErrNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *MemoryStore) LoginSize(ctx context.Context) (int64, error) {
	return s.size(loginPrefix), nil
}

func (s *MemoryStore) put(key string, value []byte, ttl time.Duration) error {
	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{
		value:     valueCopy,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

func (s *MemoryStore) get(key string) ([]byte, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	if entry.expired(time.Now()) {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return nil, ErrNotFound
	}

	valueCopy := make([]byte, len(entry.value))
	copy(valueCopy, entry.value)
	return valueCopy, nil
}

func (s *MemoryStore) delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

func (s *MemoryStore) size(prefix string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	var n int64
	for key, entry := range s.entries {
		if strings.HasPrefix(key, prefix) && !entry.expired(now) {
			n++
		}
	}
	return n
}

func (s *MemoryStore) cleanupLoop() {
	for {
		select {
		case <-s.ticker.C:
			s.sweep()
		case <-s.done:
			return
		}
	}
}

func (s *MemoryStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for key, entry := range s.entries {
		if entry.expired(now) {
			delete(s.entries, key)
		}
	}
}
