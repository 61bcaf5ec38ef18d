package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/dentalink/clinic-platform/internal/observability/metrics"
	"github.com/dentalink/clinic-platform/pkg/logging"
)

type stkCallbackEnvelope struct {
	Body struct {
		StkCallback stkCallback `json:"stkCallback"`
	} `json:"Body"`
}

type stkCallback struct {
	MerchantRequestID string `json:"MerchantRequestID"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
	ResultCode        int    `json:"ResultCode"`
	ResultDesc        string `json:"ResultDesc"`
	CallbackMetadata  struct {
		Item []metadataItem `json:"Item"`
	} `json:"CallbackMetadata"`
}

// metadataItem values arrive as a mix of numbers and strings, so they are
// kept raw until flattening.
type metadataItem struct {
	Name  string          `json:"Name"`
	Value json.RawMessage `json:"Value"`
}

// CallbackResult is what the webhook handler reports back to the gateway.
type CallbackResult struct {
	Success           bool
	Message           string
	CheckoutRequestID string
}

// ErrUnparseableCallback marks the only callback class that is rejected
// instead of acknowledged.
var ErrUnparseableCallback = fmt.Errorf("callback body is missing or malformed")

// Reconciler converges the local payment record with the gateway's
// asynchronous callback. Processing is idempotent per checkout request id:
// replaying a callback re-applies the same terminal state without error.
type Reconciler struct {
	repo    Repository
	metrics *metrics.ClinicMetrics
	logger  *logging.Logger
	now     func() time.Time
}

func NewReconciler(repo Repository, m *metrics.ClinicMetrics, logger *logging.Logger) *Reconciler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Reconciler{
		repo:    repo,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// Process applies one raw callback payload. It returns
// ErrUnparseableCallback when the payload cannot be decoded or carries no
// checkout request id; any other error is a persistence fault.
func (r *Reconciler) Process(ctx context.Context, payload []byte) (*CallbackResult, error) {
	ctx, span := paymentsTracer.Start(ctx, "callback.process")
	defer span.End()
	start := r.now()

	if len(payload) == 0 {
		return nil, ErrUnparseableCallback
	}
	var envelope stkCallbackEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		r.logger.Error("failed to decode stk callback", "error", err)
		return nil, ErrUnparseableCallback
	}
	cb := envelope.Body.StkCallback
	if cb.CheckoutRequestID == "" {
		return nil, ErrUnparseableCallback
	}
	span.SetAttributes(
		attribute.String("dentalink.checkout_request_id", cb.CheckoutRequestID),
		attribute.Int("dentalink.result_code", cb.ResultCode),
	)

	if cb.ResultCode != 0 {
		return r.recordFailure(ctx, cb, payload, start)
	}
	return r.recordSuccess(ctx, cb, payload, start)
}

func (r *Reconciler) recordSuccess(ctx context.Context, cb stkCallback, payload []byte, start time.Time) (*CallbackResult, error) {
	meta := flattenMetadata(cb.CallbackMetadata.Item)

	p := &Payment{
		ID:                 uuid.NewString(),
		MerchantRequestID:  cb.MerchantRequestID,
		CheckoutRequestID:  cb.CheckoutRequestID,
		Amount:             metaFloat(meta, "Amount"),
		PhoneNumber:        metaString(meta, "PhoneNumber"),
		Status:             StatusSuccess,
		ResultCode:         cb.ResultCode,
		ResultDesc:         cb.ResultDesc,
		MpesaReceiptNumber: metaString(meta, "MpesaReceiptNumber"),
		TransactionDate:    parseTransactionDate(metaString(meta, "TransactionDate")),
		RawCallback:        json.RawMessage(payload),
	}
	if err := r.repo.ApplyResult(ctx, p); err != nil {
		r.metrics.ObserveCallback("error", r.now().Sub(start).Seconds())
		return nil, fmt.Errorf("payments: apply success callback: %w", err)
	}

	r.metrics.ObserveCallback("success", r.now().Sub(start).Seconds())
	r.logger.Info("payment confirmed",
		"checkout_request_id", cb.CheckoutRequestID,
		"receipt", p.MpesaReceiptNumber,
		"amount", p.Amount,
	)
	return &CallbackResult{
		Success:           true,
		Message:           "Payment recorded successfully",
		CheckoutRequestID: cb.CheckoutRequestID,
	}, nil
}

func (r *Reconciler) recordFailure(ctx context.Context, cb stkCallback, payload []byte, start time.Time) (*CallbackResult, error) {
	p := &Payment{
		ID:                uuid.NewString(),
		MerchantRequestID: cb.MerchantRequestID,
		CheckoutRequestID: cb.CheckoutRequestID,
		Status:            StatusFailed,
		ResultCode:        cb.ResultCode,
		ResultDesc:        cb.ResultDesc,
		RawCallback:       json.RawMessage(payload),
	}
	if err := r.repo.ApplyResult(ctx, p); err != nil {
		r.metrics.ObserveCallback("error", r.now().Sub(start).Seconds())
		return nil, fmt.Errorf("payments: apply failed callback: %w", err)
	}

	r.metrics.ObserveCallback("failed", r.now().Sub(start).Seconds())
	r.logger.Info("payment failed at gateway",
		"checkout_request_id", cb.CheckoutRequestID,
		"result_code", cb.ResultCode,
		"result_desc", cb.ResultDesc,
	)
	return &CallbackResult{
		Success:           false,
		Message:           cb.ResultDesc,
		CheckoutRequestID: cb.CheckoutRequestID,
	}, nil
}

// flattenMetadata turns the provider's item list into a name to value map.
func flattenMetadata(items []metadataItem) map[string]string {
	out := make(map[string]string, len(items))
	for _, item := range items {
		if item.Name == "" || len(item.Value) == 0 {
			continue
		}
		var asString string
		if err := json.Unmarshal(item.Value, &asString); err == nil {
			out[item.Name] = asString
			continue
		}
		// Numeric values keep their literal form; trailing ".0" noise from
		// whole-number floats is stripped so receipt-style fields stay clean.
		out[item.Name] = strings.TrimSuffix(string(item.Value), ".0")
	}
	return out
}

func metaString(meta map[string]string, name string) string {
	return meta[name]
}

func metaFloat(meta map[string]string, name string) float64 {
	f, err := strconv.ParseFloat(meta[name], 64)
	if err != nil {
		return 0
	}
	return f
}

// parseTransactionDate parses the provider's compact 14-digit timestamp.
// Anything malformed yields nil rather than an error; the raw payload is
// retained for audit either way.
func parseTransactionDate(value string) *time.Time {
	if len(value) != len(timestampLayout) {
		return nil
	}
	ts, err := time.Parse(timestampLayout, value)
	if err != nil {
		return nil
	}
	return &ts
}
