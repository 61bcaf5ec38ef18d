package patients

import (
	"context"
	"sync"
)

// Repository provides access to patient profiles.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Patient, error)
	GetByUserID(ctx context.Context, userID string) (*Patient, error)
}

// InMemoryRepository is a Repository for tests and local development.
type InMemoryRepository struct {
	mu   sync.RWMutex
	byID map[string]*Patient
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{byID: map[string]*Patient{}}
}

func (r *InMemoryRepository) Add(p *Patient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *p
	r.byID[p.ID] = &copied
}

func (r *InMemoryRepository) GetByID(_ context.Context, id string) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byID[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	copied := *p
	return &copied, nil
}

func (r *InMemoryRepository) GetByUserID(_ context.Context, userID string) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.byID {
		if p.UserID == userID {
			copied := *p
			return &copied, nil
		}
	}
	return nil, ErrPatientNotFound
}
