package code

import (
	"context"
	"sync"
	"time"

	"warden/internal/auth/models"
	id "warden/pkg/domain"
)

type slot struct {
	userID  id.UserID
	purpose models.Purpose
}

type InMemoryCodeStore struct {
	mu    sync.Mutex
	codes map[slot]*models.OneTimeCode
}

func New() *InMemoryCodeStore {
	return &InMemoryCodeStore{codes: make(map[slot]*models.OneTimeCode)}
}

func (s *InMemoryCodeStore) Upsert(_ context.Context, c *models.OneTimeCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.codes[slot{c.UserID, c.Purpose}] = &cp
	return nil
}

func (s *InMemoryCodeStore) Find(_ context.Context, userID id.UserID, purpose models.Purpose) (*models.OneTimeCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.codes[slot{userID, purpose}]
	if !ok {
		return nil, errCodeNotFound()
	}
	cp := *c
	return &cp, nil
}

// Consume removes the code with codeID. Only one caller can win.
func (s *InMemoryCodeStore) Consume(_ context.Context, codeID id.CodeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, c := range s.codes {
		if c.ID == codeID {
			delete(s.codes, k)
			return nil
		}
	}
	return ErrConsumed
}

func (s *InMemoryCodeStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k, c := range s.codes {
		if c.IsExpired(now) {
			delete(s.codes, k)
			n++
		}
	}
	return n, nil
}

func (s *InMemoryCodeStore) DeleteByUser(_ context.Context, userID id.UserID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k := range s.codes {
		if k.userID == userID {
			delete(s.codes, k)
			n++
		}
	}
	return n, nil
}
