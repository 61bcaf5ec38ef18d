package payments

import (
	"encoding/json"
	"time"
)

// Status is the lifecycle state of a payment record.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

// Terminal reports whether the status accepts no further transitions.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// Payment is the local record of an STK push. CheckoutRequestID is the sole
// correlation key between the initiation and the gateway's asynchronous
// callback, so it is unique in storage and every write is keyed by it.
type Payment struct {
	ID                 string          `json:"id"`
	MerchantRequestID  string          `json:"merchantRequestId,omitempty"`
	CheckoutRequestID  string          `json:"checkoutRequestId"`
	Amount             float64         `json:"amount"`
	PhoneNumber        string          `json:"phoneNumber"`
	UserID             string          `json:"userId,omitempty"`
	Status             Status          `json:"status"`
	ResultCode         int             `json:"resultCode"`
	ResultDesc         string          `json:"resultDesc,omitempty"`
	MpesaReceiptNumber string          `json:"mpesaReceiptNumber,omitempty"`
	TransactionDate    *time.Time      `json:"transactionDate,omitempty"`
	RawCallback        json.RawMessage `json:"-"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

// Stats summarizes payment records for the admin dashboard.
type Stats struct {
	Total         int     `json:"total"`
	Pending       int     `json:"pending"`
	Success       int     `json:"success"`
	Failed        int     `json:"failed"`
	AmountSettled float64 `json:"amountSettled"`
}

// reportRecordCap bounds the detail rows pulled into a single report.
const reportRecordCap = 10000

// Report is the admin payment report: per-payment detail over an optional
// date range plus the settled total across the selection.
type Report struct {
	GeneratedAt   time.Time  `json:"generatedAt"`
	From          *time.Time `json:"from,omitempty"`
	To            *time.Time `json:"to,omitempty"`
	TotalRecords  int        `json:"totalRecords"`
	AmountSettled float64    `json:"amountSettled"`
	Payments      []*Payment `json:"payments"`
}
