// Package memory is a process-local fhe.StringStorage.
package memory

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	value     string
	expiresAt time.Time
}

type Storage struct {
	mu   sync.RWMutex
	now  func() time.Time
	data map[string]entry
}

func NewStorage() *Storage {
	return &Storage{now: time.Now, data: make(map[string]entry)}
}

func (s *Storage) GetItem(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	e, ok := s.data[key]
	s.mu.RUnlock()
	if !ok {
		return "", false, nil
	}
	if !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt) {
		s.mu.Lock()
		delete(s.data, key)
		s.mu.Unlock()
		return "", false, nil
	}
	return e.value, true, nil
}

func (s *Storage) SetItem(_ context.Context, key, value string, expiresAt time.Time) error {
	s.mu.Lock()
	s.data[key] = entry{value: value, expiresAt: expiresAt}
	s.mu.Unlock()
	return nil
}

func (s *Storage) RemoveItem(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
	return nil
}
