package payments

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dentalink/clinic-platform/internal/identity"
	"github.com/dentalink/clinic-platform/pkg/logging"
)

// Handler exposes the payment API over HTTP.
type Handler struct {
	service    *Service
	reconciler *Reconciler
	logger     *logging.Logger
}

func NewHandler(service *Service, reconciler *Reconciler, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, reconciler: reconciler, logger: logger}
}

// Initiate handles POST /payments/initiate requests
func (h *Handler) Initiate(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing identity", nil)
		return
	}

	var req InitiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	resp, err := h.service.Initiate(r.Context(), caller, req)
	if err != nil {
		h.logger.Error("payment initiation failed", "error", err, "user_id", caller.UserID)
		writePaymentError(w, "Error initiating payment", err)
		return
	}
	writeData(w, http.StatusOK, "Payment initiated successfully", resp)
}

// Callback handles the gateway's asynchronous POST. A parseable callback is
// always acknowledged with 200 regardless of the business outcome; only a
// missing or malformed body is rejected.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid callback body", err)
		return
	}

	result, err := h.reconciler.Process(r.Context(), payload)
	if err != nil {
		if errors.Is(err, ErrUnparseableCallback) {
			writeError(w, http.StatusBadRequest, "Invalid callback body", err)
			return
		}
		h.logger.Error("callback processing failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Error processing callback", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": result.Success,
		"message": result.Message,
	})
}

// Status handles GET /payments/{checkoutRequestId} requests
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing identity", nil)
		return
	}

	payment, err := h.service.Status(r.Context(), caller, chi.URLParam(r, "checkoutRequestId"))
	if err != nil {
		writePaymentError(w, "Error retrieving payment", err)
		return
	}
	writeData(w, http.StatusOK, "Payment retrieved successfully", payment)
}

// List handles GET /payments requests (admin only)
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing identity", nil)
		return
	}

	filter, err := parseListFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date filter", err)
		return
	}
	payments, err := h.service.List(r.Context(), caller, filter)
	if err != nil {
		writePaymentError(w, "Error retrieving payments", err)
		return
	}
	if payments == nil {
		payments = []*Payment{}
	}
	writeData(w, http.StatusOK, "Payments retrieved successfully", payments)
}

// Overview handles GET /payments/stats requests (admin only)
func (h *Handler) Overview(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing identity", nil)
		return
	}

	stats, err := h.service.Overview(r.Context(), caller)
	if err != nil {
		writePaymentError(w, "Error retrieving payment stats", err)
		return
	}
	writeData(w, http.StatusOK, "Payment stats retrieved successfully", stats)
}

// Report handles GET /payments/report requests (admin only). With
// format=csv the report is streamed as an attachment; otherwise the full
// JSON report is returned.
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing identity", nil)
		return
	}

	filter, err := parseListFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date filter", err)
		return
	}
	report, err := h.service.Report(r.Context(), caller, filter)
	if err != nil {
		writePaymentError(w, "Error generating payment report", err)
		return
	}

	if r.URL.Query().Get("format") == "csv" {
		writeReportCSV(w, report)
		return
	}
	writeData(w, http.StatusOK, "Payment report generated successfully", report)
}

func writeReportCSV(w http.ResponseWriter, report *Report) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename=payment-report.csv`)
	w.WriteHeader(http.StatusOK)

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{
		"Checkout Request ID", "Merchant Request ID", "User ID", "Phone",
		"Amount", "Status", "Mpesa Receipt", "Transaction Date", "Created Date",
	})
	for _, p := range report.Payments {
		txDate := ""
		if p.TransactionDate != nil {
			txDate = p.TransactionDate.Format(time.RFC3339)
		}
		_ = cw.Write([]string{
			p.CheckoutRequestID,
			p.MerchantRequestID,
			p.UserID,
			p.PhoneNumber,
			strconv.FormatFloat(p.Amount, 'f', 2, 64),
			string(p.Status),
			p.MpesaReceiptNumber,
			txDate,
			p.CreatedAt.Format(time.RFC3339),
		})
	}
	cw.Flush()
}

// parseListFilter reads the listing query params. from/to are calendar
// dates; to covers the whole named day.
func parseListFilter(r *http.Request) (ListFilter, error) {
	q := r.URL.Query()
	filter := ListFilter{
		Status: Status(q.Get("status")),
		Search: q.Get("search"),
		Limit:  queryInt(r, "limit"),
		Offset: queryInt(r, "offset"),
	}
	if v := q.Get("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return ListFilter{}, fmt.Errorf("payments: invalid from date %q: %w", v, err)
		}
		filter.From = &t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return ListFilter{}, fmt.Errorf("payments: invalid to date %q: %w", v, err)
		}
		end := t.AddDate(0, 0, 1)
		filter.To = &end
	}
	return filter, nil
}

func queryInt(r *http.Request, key string) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v < 0 {
		return 0
	}
	return v
}

func writePaymentError(w http.ResponseWriter, message string, err error) {
	status := http.StatusInternalServerError
	var gatewayErr *GatewayError
	switch {
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrInvalidPhone):
		status = http.StatusBadRequest
	case errors.Is(err, ErrVelocityExceeded):
		status = http.StatusTooManyRequests
	case errors.Is(err, ErrPermissionDenied):
		status = http.StatusForbidden
	case errors.Is(err, ErrPaymentNotFound):
		status = http.StatusNotFound
	case errors.As(err, &gatewayErr):
		// Surface the provider's payload with a 500 like any other upstream
		// fault; err.Error() carries the gateway body.
		status = http.StatusInternalServerError
	}
	writeError(w, status, message, err)
}

func writeData(w http.ResponseWriter, status int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"message": message,
		"data":    data,
	})
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	body := map[string]any{"message": message}
	if err != nil {
		body["error"] = err.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
