package payments

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// Repository persists payment records keyed by checkout request id.
//
// UpsertPending and ApplyResult may run in either order for the same key:
// the gateway can deliver a callback before the initiator's bookkeeping
// write lands. Whichever runs second must converge on the same final record,
// and ApplyResult must never downgrade a SUCCESS row.
type Repository interface {
	// UpsertPending records the initiation. It is a no-op when a record for
	// the checkout request id already exists.
	UpsertPending(ctx context.Context, p *Payment) error
	// ApplyResult records the callback outcome. Re-applying the same result
	// is a no-op; a SUCCESS row is never overwritten.
	ApplyResult(ctx context.Context, p *Payment) error
	GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*Payment, error)
	List(ctx context.Context, filter ListFilter) ([]*Payment, error)
	Stats(ctx context.Context) (*Stats, error)
}

// ListFilter narrows and pages the admin listing. A zero value lists
// everything, newest first. From and To bound created_at as a half-open
// interval [From, To); Search matches phone number or receipt,
// case-insensitive.
type ListFilter struct {
	Status Status
	From   *time.Time
	To     *time.Time
	Search string
	Limit  int
	Offset int
}

// defaultListLimit caps unpaged listings in every repository implementation.
const defaultListLimit = 100

func (f ListFilter) matches(p *Payment) bool {
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	if f.From != nil && p.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && !p.CreatedAt.Before(*f.To) {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(p.PhoneNumber), needle) &&
			!strings.Contains(strings.ToLower(p.MpesaReceiptNumber), needle) {
			return false
		}
	}
	return true
}

// InMemoryRepository is the storage used in tests and local development.
type InMemoryRepository struct {
	mu       sync.Mutex
	byKey    map[string]*Payment
	inserted map[string]int
	next     int
	now      func() time.Time
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		byKey:    make(map[string]*Payment),
		inserted: make(map[string]int),
		now:      time.Now,
	}
}

// WithClock overrides the timestamp source for tests.
func (r *InMemoryRepository) WithClock(now func() time.Time) *InMemoryRepository {
	r.now = now
	return r
}

func (r *InMemoryRepository) UpsertPending(ctx context.Context, p *Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byKey[p.CheckoutRequestID]; exists {
		return nil
	}
	stored := *p
	stored.Status = StatusPending
	stored.CreatedAt = r.now()
	stored.UpdatedAt = stored.CreatedAt
	r.byKey[p.CheckoutRequestID] = &stored
	r.inserted[p.CheckoutRequestID] = r.next
	r.next++
	return nil
}

func (r *InMemoryRepository) ApplyResult(ctx context.Context, p *Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.byKey[p.CheckoutRequestID]
	if !ok {
		stored := *p
		stored.CreatedAt = r.now()
		stored.UpdatedAt = stored.CreatedAt
		r.byKey[p.CheckoutRequestID] = &stored
		r.inserted[p.CheckoutRequestID] = r.next
		r.next++
		return nil
	}
	if existing.Status == StatusSuccess && p.Status != StatusSuccess {
		return nil
	}

	existing.MerchantRequestID = p.MerchantRequestID
	existing.Status = p.Status
	existing.ResultCode = p.ResultCode
	existing.ResultDesc = p.ResultDesc
	existing.MpesaReceiptNumber = p.MpesaReceiptNumber
	existing.TransactionDate = p.TransactionDate
	existing.RawCallback = p.RawCallback
	if p.Amount != 0 {
		existing.Amount = p.Amount
	}
	if p.PhoneNumber != "" {
		existing.PhoneNumber = p.PhoneNumber
	}
	existing.UpdatedAt = r.now()
	return nil
}

func (r *InMemoryRepository) GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.byKey[checkoutRequestID]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	copied := *p
	return &copied, nil
}

func (r *InMemoryRepository) List(ctx context.Context, filter ListFilter) ([]*Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Payment, 0, len(r.byKey))
	for _, p := range r.byKey {
		if !filter.matches(p) {
			continue
		}
		copied := *p
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		return r.inserted[out[i].CheckoutRequestID] > r.inserted[out[j].CheckoutRequestID]
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *InMemoryRepository) Stats(ctx context.Context) (*Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := &Stats{}
	for _, p := range r.byKey {
		stats.Total++
		switch p.Status {
		case StatusPending:
			stats.Pending++
		case StatusSuccess:
			stats.Success++
			stats.AmountSettled += p.Amount
		case StatusFailed:
			stats.Failed++
		}
	}
	return stats, nil
}
