package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dentalink/clinic-platform/internal/identity"
	"github.com/dentalink/clinic-platform/internal/observability/metrics"
	"github.com/dentalink/clinic-platform/pkg/logging"
)

// pushGateway is the slice of the Daraja client the initiator needs.
type pushGateway interface {
	AccessToken(ctx context.Context) (string, error)
	STKPush(ctx context.Context, token string, amount int, phone string) (*STKPushResponse, error)
}

// velocityGuard is satisfied by VelocityChecker.
type velocityGuard interface {
	Check(ctx context.Context, phone string) (*VelocityResult, error)
}

// InitiateRequest is the payment initiation payload.
type InitiateRequest struct {
	Amount      int    `json:"amount"`
	PhoneNumber string `json:"phoneNumber"`
}

// Service drives payment initiation and lookups. The gateway call is the
// source of truth for initiation: once the push is accepted the local
// PENDING record is best-effort bookkeeping, and a write failure there is
// logged but never turns a successful push into a client-facing error. The
// callback path converges the record either way.
type Service struct {
	repo     Repository
	gateway  pushGateway
	velocity velocityGuard
	metrics  *metrics.ClinicMetrics
	logger   *logging.Logger
	now      func() time.Time
}

func NewService(repo Repository, gateway pushGateway, velocity velocityGuard, m *metrics.ClinicMetrics, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		repo:     repo,
		gateway:  gateway,
		velocity: velocity,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock overrides the timestamp source for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Initiate sends an STK push and records the resulting PENDING payment.
func (s *Service) Initiate(ctx context.Context, caller identity.Identity, req InitiateRequest) (*STKPushResponse, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if req.PhoneNumber == "" {
		return nil, ErrInvalidPhone
	}
	phone := NormalizePhone(req.PhoneNumber)

	if s.velocity != nil {
		result, err := s.velocity.Check(ctx, phone)
		if err == nil && result != nil && !result.Allowed {
			return nil, fmt.Errorf("%w: %s", ErrVelocityExceeded, result.Message)
		}
	}

	token, err := s.gateway.AccessToken(ctx)
	if err != nil {
		s.metrics.ObserveSTKPush("token_error")
		return nil, err
	}

	resp, err := s.gateway.STKPush(ctx, token, req.Amount, phone)
	if err != nil {
		s.metrics.ObserveSTKPush("gateway_error")
		return nil, err
	}
	s.metrics.ObserveSTKPush("accepted")

	key := resp.CheckoutRequestID
	if key == "" {
		// The gateway acknowledged without a correlation id; keep a record
		// under a synthetic key so the attempt is still auditable.
		key = "PENDING_" + s.now().Format(timestampLayout)
	}
	pending := &Payment{
		ID:                uuid.NewString(),
		MerchantRequestID: resp.MerchantRequestID,
		CheckoutRequestID: key,
		Amount:            float64(req.Amount),
		PhoneNumber:       phone,
		UserID:            caller.UserID,
		Status:            StatusPending,
	}
	if err := s.repo.UpsertPending(ctx, pending); err != nil {
		s.logger.Error("failed to record pending payment",
			"error", err,
			"checkout_request_id", key,
			"phone", phone,
		)
	}

	s.logger.Info("stk push initiated",
		"checkout_request_id", key,
		"amount", req.Amount,
		"user_id", caller.UserID,
	)
	return resp, nil
}

// Status returns a payment by checkout request id. Patients and dentists can
// only see their own records; admins can see any. Records without an owner,
// such as callback-before-initiation rows, are admin only.
func (s *Service) Status(ctx context.Context, caller identity.Identity, checkoutRequestID string) (*Payment, error) {
	p, err := s.repo.GetByCheckoutRequestID(ctx, checkoutRequestID)
	if err != nil {
		return nil, err
	}
	if caller.Role != identity.RoleAdmin && p.UserID != caller.UserID {
		return nil, ErrPermissionDenied
	}
	return p, nil
}

// List returns payment records, newest first. Admin only.
func (s *Service) List(ctx context.Context, caller identity.Identity, filter ListFilter) ([]*Payment, error) {
	if caller.Role != identity.RoleAdmin {
		return nil, ErrPermissionDenied
	}
	return s.repo.List(ctx, filter)
}

// Report assembles the admin payment report over an optional date range.
// Unlike List it is not paged by default; it pulls up to reportRecordCap
// detail rows and totals the settled amount across them.
func (s *Service) Report(ctx context.Context, caller identity.Identity, filter ListFilter) (*Report, error) {
	if caller.Role != identity.RoleAdmin {
		return nil, ErrPermissionDenied
	}
	if filter.Limit <= 0 {
		filter.Limit = reportRecordCap
	}
	records, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	report := &Report{
		GeneratedAt:  s.now(),
		From:         filter.From,
		To:           filter.To,
		TotalRecords: len(records),
		Payments:     records,
	}
	if report.Payments == nil {
		report.Payments = []*Payment{}
	}
	for _, p := range records {
		if p.Status == StatusSuccess {
			report.AmountSettled += p.Amount
		}
	}
	return report, nil
}

// Overview returns aggregate payment counts. Admin only.
func (s *Service) Overview(ctx context.Context, caller identity.Identity) (*Stats, error) {
	if caller.Role != identity.RoleAdmin {
		return nil, ErrPermissionDenied
	}
	return s.repo.Stats(ctx)
}
