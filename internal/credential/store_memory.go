package credential

import (
	"context"
	"sync"
	"time"

	id "qrlink/pkg/domain"
)

// InMemoryStore implements Store for tests and database-less runs.
type InMemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	byUser map[id.UserID][]Record
}

// NewInMemoryStore creates an empty in-memory credential store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		nextID: 1,
		byUser: make(map[id.UserID][]Record),
	}
}

func (s *InMemoryStore) Save(ctx context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec.ID = s.nextID
	s.nextID++
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	s.byUser[rec.UserID] = append(s.byUser[rec.UserID], *rec)
	return nil
}

func (s *InMemoryStore) ListByUser(ctx context.Context, userID id.UserID) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := s.byUser[userID]
	out := make([]Record, len(recs))
	// Newest first, matching the Postgres store's ordering.
	for i, r := range recs {
		out[len(recs)-1-i] = r
	}
	return out, nil
}

func (s *InMemoryStore) Count(ctx context.Context, userID id.UserID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byUser[userID]), nil
}
