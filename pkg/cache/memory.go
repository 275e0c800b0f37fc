package cache

import (
	"context"
	"slices"
	"sync"
	"time"
)

// DefaultMaxEntries 进程内缓存默认容量
const DefaultMaxEntries = 300

// 满时至少淘汰 1/cullFraction 的条目
const cullFraction = 3

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore 进程内缓存，条目数不超过 maxEntries
type MemoryStore struct {
	mu         sync.RWMutex
	entries    map[string]memoryEntry
	maxEntries int
	now        func() time.Time
}

// NewMemoryStore maxEntries <= 0 时使用 DefaultMaxEntries
func NewMemoryStore(maxEntries int) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &MemoryStore{entries: make(map[string]memoryEntry), maxEntries: maxEntries, now: time.Now}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrMiss
	}
	if !s.now().Before(e.expiresAt) {
		s.mu.Lock()
		// 可能已被并发写入覆盖，重新检查
		if cur, ok := s.entries[key]; ok && !s.now().Before(cur.expiresAt) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return nil, ErrMiss
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	buf := make([]byte, len(value))
	copy(buf, value)
	s.mu.Lock()
	now := s.now()
	if _, exists := s.entries[key]; !exists && len(s.entries) >= s.maxEntries {
		s.cullLocked(now)
	}
	s.entries[key] = memoryEntry{value: buf, expiresAt: now.Add(ttl)}
	s.mu.Unlock()
	return nil
}

// cullLocked 先清掉过期条目；仍然满时按到期时间淘汰最早的一批
func (s *MemoryStore) cullLocked(now time.Time) {
	for k, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, k)
		}
	}
	if len(s.entries) < s.maxEntries {
		return
	}
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b string) int {
		return s.entries[a].expiresAt.Compare(s.entries[b].expiresAt)
	})
	n := max(len(keys)/cullFraction, len(keys)-s.maxEntries+1)
	for _, k := range keys[:n] {
		delete(s.entries, k)
	}
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	s.entries = make(map[string]memoryEntry)
	s.mu.Unlock()
	return nil
}

// Len 当前条目数（含已过期未清理的）
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
