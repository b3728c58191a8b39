package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore хранит окна в памяти процесса. Подходит для одиночного
// инстанса; при нескольких репликах нужен RedisStore.
type MemoryStore struct {
	window time.Duration

	mu   sync.Mutex
	seen map[string]time.Time
	now  func() time.Time
}

// NewMemoryStore создаёт MemoryStore с указанным окном.
func NewMemoryStore(window time.Duration) *MemoryStore {
	return &MemoryStore{
		window: window,
		seen:   make(map[string]time.Time),
		now:    time.Now,
	}
}

// Allow реализует Store.
func (s *MemoryStore) Allow(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	until, ok := s.seen[key]
	if ok && now.Before(until) {
		return false, nil
	}

	// Попутно выбрасываем истёкшие записи, чтобы карта не росла бесконечно.
	for k, u := range s.seen {
		if !now.Before(u) {
			delete(s.seen, k)
		}
	}

	s.seen[key] = now.Add(s.window)
	return true, nil
}
