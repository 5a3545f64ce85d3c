package apiprofile

import (
	"context"
	"sort"
	"sync"
	"time"

	"qrlink/internal/linker/models"
	id "qrlink/pkg/domain"
	"qrlink/pkg/platform/sentinel"
)

// InMemoryStore implements Store for tests and database-less runs.
type InMemoryStore struct {
	mu       sync.RWMutex
	nextID   id.ProfileID
	profiles map[id.ProfileID]models.APIProfile
}

// NewInMemoryStore creates an empty in-memory profile store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		nextID:   1,
		profiles: make(map[id.ProfileID]models.APIProfile),
	}
}

// Create assigns an ID and stores the profile. Names are unique.
func (s *InMemoryStore) Create(ctx context.Context, profile *models.APIProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.profiles {
		if p.Name == profile.Name {
			return sentinel.ErrConflict
		}
	}

	profile.ID = s.nextID
	s.nextID++
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = time.Now()
	}
	profile.Active = true
	s.profiles[profile.ID] = *profile
	return nil
}

// GetByID returns the profile or sentinel.ErrNotFound.
func (s *InMemoryStore) GetByID(ctx context.Context, profileID id.ProfileID) (models.APIProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[profileID]
	if !ok {
		return models.APIProfile{}, sentinel.ErrNotFound
	}
	return p, nil
}

// ListActive returns active profiles ordered by ID.
func (s *InMemoryStore) ListActive(ctx context.Context) ([]models.APIProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.APIProfile, 0, len(s.profiles))
	for _, p := range s.profiles {
		if p.Active {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Deactivate marks the profile inactive. Missing rows are ErrNotFound.
func (s *InMemoryStore) Deactivate(ctx context.Context, profileID id.ProfileID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[profileID]
	if !ok {
		return sentinel.ErrNotFound
	}
	p.Active = false
	s.profiles[profileID] = p
	return nil
}
