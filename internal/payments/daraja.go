package payments

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/dentalink/clinic-platform/pkg/logging"
)

var paymentsTracer = otel.Tracer("dentalink.internal.payments")

const timestampLayout = "20060102150405"

// DarajaClient talks to the M-Pesa Daraja API: a short-lived bearer token is
// fetched per push, then the STK request is signed with the shortcode
// password and submitted.
type DarajaClient struct {
	baseURL        string
	consumerKey    string
	consumerSecret string
	shortCode      string
	passKey        string
	callbackURL    string
	accountRef     string
	httpClient     *http.Client
	logger         *logging.Logger
	now            func() time.Time
}

// DarajaConfig carries the gateway credentials and endpoints.
type DarajaConfig struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	PassKey        string
	CallbackURL    string
	AccountRef     string
	Timeout        time.Duration
}

func NewDarajaClient(cfg DarajaConfig, logger *logging.Logger) *DarajaClient {
	if logger == nil {
		logger = logging.Default()
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://sandbox.safaricom.co.ke"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	accountRef := cfg.AccountRef
	if accountRef == "" {
		accountRef = "Dentalink"
	}
	return &DarajaClient{
		baseURL:        strings.TrimRight(baseURL, "/"),
		consumerKey:    cfg.ConsumerKey,
		consumerSecret: cfg.ConsumerSecret,
		shortCode:      cfg.ShortCode,
		passKey:        cfg.PassKey,
		callbackURL:    cfg.CallbackURL,
		accountRef:     accountRef,
		httpClient:     &http.Client{Timeout: timeout},
		logger:         logger,
		now:            time.Now,
	}
}

// WithClock overrides the timestamp source for tests.
func (c *DarajaClient) WithClock(now func() time.Time) *DarajaClient {
	c.now = now
	return c
}

// STKPushResponse is the gateway's synchronous acknowledgement. The
// CheckoutRequestID correlates the eventual callback with this push.
type STKPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

// AccessToken fetches a short-lived bearer token using the consumer
// credentials.
func (c *DarajaClient) AccessToken(ctx context.Context) (string, error) {
	ctx, span := paymentsTracer.Start(ctx, "daraja.access_token")
	defer span.End()

	url := c.baseURL + "/oauth/v1/generate?grant_type=client_credentials"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("payments: token request: %w", err)
	}
	basic := base64.StdEncoding.EncodeToString([]byte(c.consumerKey + ":" + c.consumerSecret))
	req.Header.Set("Authorization", "Basic "+basic)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("payments: token http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(resp.Body)
		return "", &GatewayError{StatusCode: resp.StatusCode, Body: body}
	}

	var parsed struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("payments: token decode: %w", err)
	}
	if parsed.AccessToken == "" {
		return "", fmt.Errorf("payments: token response missing access_token")
	}
	return parsed.AccessToken, nil
}

// STKPush submits a push-payment request for the given amount and an
// already normalized phone number.
func (c *DarajaClient) STKPush(ctx context.Context, token string, amount int, phone string) (*STKPushResponse, error) {
	ctx, span := paymentsTracer.Start(ctx, "daraja.stk_push")
	defer span.End()
	span.SetAttributes(attribute.Int("dentalink.amount", amount))

	timestamp := c.now().Format(timestampLayout)
	password := base64.StdEncoding.EncodeToString([]byte(c.shortCode + c.passKey + timestamp))

	body := map[string]any{
		"BusinessShortCode": c.shortCode,
		"Password":          password,
		"Timestamp":         timestamp,
		"TransactionType":   "CustomerPayBillOnline",
		"Amount":            amount,
		"PartyA":            phone,
		"PartyB":            c.shortCode,
		"PhoneNumber":       phone,
		"CallBackURL":       c.callbackURL,
		"AccountReference":  c.accountRef,
		"TransactionDesc":   c.accountRef + " payment",
	}
	reqBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("payments: stk payload: %w", err)
	}

	url := c.baseURL + "/mpesa/stkpush/v1/processrequest"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("payments: stk request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("payments: stk http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, &GatewayError{StatusCode: resp.StatusCode, Body: respBody}
	}

	var parsed STKPushResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("payments: stk decode: %w", err)
	}
	return &parsed, nil
}

// NormalizePhone converts a local "07..." subscriber number to the
// international "2547..." form the gateway expects.
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if strings.HasPrefix(phone, "0") {
		return "254" + phone[1:]
	}
	return phone
}
