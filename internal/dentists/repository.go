package dentists

import (
	"context"
	"sync"
)

// Repository provides access to dentist profiles. List must return dentists
// in a stable order; auto-assignment tie-breaking depends on it.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Dentist, error)
	GetByUserID(ctx context.Context, userID string) (*Dentist, error)
	List(ctx context.Context) ([]*Dentist, error)
}

// InMemoryRepository is a Repository for tests and local development.
type InMemoryRepository struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]*Dentist
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{byID: map[string]*Dentist{}}
}

// Add registers a dentist. Insertion order is the enumeration order.
func (r *InMemoryRepository) Add(d *Dentist) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[d.ID]; !exists {
		r.order = append(r.order, d.ID)
	}
	copied := *d
	r.byID[d.ID] = &copied
}

func (r *InMemoryRepository) GetByID(_ context.Context, id string) (*Dentist, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byID[id]
	if !ok {
		return nil, ErrDentistNotFound
	}
	copied := *d
	return &copied, nil
}

func (r *InMemoryRepository) GetByUserID(_ context.Context, userID string) (*Dentist, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, id := range r.order {
		if r.byID[id].UserID == userID {
			copied := *r.byID[id]
			return &copied, nil
		}
	}
	return nil, ErrDentistNotFound
}

func (r *InMemoryRepository) List(_ context.Context) ([]*Dentist, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Dentist, 0, len(r.order))
	for _, id := range r.order {
		copied := *r.byID[id]
		out = append(out, &copied)
	}
	return out, nil
}
