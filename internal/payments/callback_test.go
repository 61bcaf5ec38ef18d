package payments

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dentalink/clinic-platform/pkg/logging"
)

func successCallback(checkoutID, receipt string) []byte {
	return []byte(fmt.Sprintf(`{
		"Body": {
			"stkCallback": {
				"MerchantRequestID": "mr-1",
				"CheckoutRequestID": %q,
				"ResultCode": 0,
				"ResultDesc": "The service request is processed successfully.",
				"CallbackMetadata": {
					"Item": [
						{"Name": "Amount", "Value": 1500},
						{"Name": "MpesaReceiptNumber", "Value": %q},
						{"Name": "TransactionDate", "Value": 20250601143000},
						{"Name": "PhoneNumber", "Value": 254712345678}
					]
				}
			}
		}
	}`, checkoutID, receipt))
}

func failureCallback(checkoutID string, code int, desc string) []byte {
	return []byte(fmt.Sprintf(`{
		"Body": {
			"stkCallback": {
				"MerchantRequestID": "mr-1",
				"CheckoutRequestID": %q,
				"ResultCode": %d,
				"ResultDesc": %q
			}
		}
	}`, checkoutID, code, desc))
}

func TestCallbackSuccessFillsPayment(t *testing.T) {
	repo := NewInMemoryRepository()
	rec := NewReconciler(repo, nil, logging.Default())
	ctx := context.Background()

	require.NoError(t, repo.UpsertPending(ctx, &Payment{
		ID: "pay-1", CheckoutRequestID: "ws_1", Amount: 1500,
		PhoneNumber: "254712345678", UserID: "u1", Status: StatusPending,
	}))

	result, err := rec.Process(ctx, successCallback("ws_1", "SFC123XYZ"))
	require.NoError(t, err)
	assert.True(t, result.Success)

	stored, err := repo.GetByCheckoutRequestID(ctx, "ws_1")
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, stored.Status)
	assert.Equal(t, "SFC123XYZ", stored.MpesaReceiptNumber)
	assert.Equal(t, 1500.0, stored.Amount)
	assert.Equal(t, "254712345678", stored.PhoneNumber)
	assert.Equal(t, "u1", stored.UserID, "pending record's owner survives the callback")
	require.NotNil(t, stored.TransactionDate)
	assert.Equal(t, time.Date(2025, 6, 1, 14, 30, 0, 0, time.UTC), *stored.TransactionDate)
	assert.NotEmpty(t, stored.RawCallback)
}

func TestCallbackSuccessIsIdempotent(t *testing.T) {
	repo := NewInMemoryRepository()
	rec := NewReconciler(repo, nil, logging.Default())
	ctx := context.Background()

	payload := successCallback("ws_1", "SFC123XYZ")
	_, err := rec.Process(ctx, payload)
	require.NoError(t, err)

	// Replaying the identical callback is a no-op, not an error.
	result, err := rec.Process(ctx, payload)
	require.NoError(t, err)
	assert.True(t, result.Success)

	all, err := repo.List(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 1, "no duplicate row from the replay")
	assert.Equal(t, StatusSuccess, all[0].Status)
	assert.Equal(t, "SFC123XYZ", all[0].MpesaReceiptNumber)
}

func TestCallbackBeforeInitiationConverges(t *testing.T) {
	repo := NewInMemoryRepository()
	rec := NewReconciler(repo, nil, logging.Default())
	ctx := context.Background()

	// The gateway's callback can land before the initiator's bookkeeping
	// write. The late pending upsert must not clobber the terminal state.
	_, err := rec.Process(ctx, successCallback("ws_race", "SFC999"))
	require.NoError(t, err)

	require.NoError(t, repo.UpsertPending(ctx, &Payment{
		ID: "pay-late", CheckoutRequestID: "ws_race", Amount: 1500, Status: StatusPending,
	}))

	stored, err := repo.GetByCheckoutRequestID(ctx, "ws_race")
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, stored.Status)
	assert.Equal(t, "SFC999", stored.MpesaReceiptNumber)
}

func TestCallbackFailureRecordsTerminalState(t *testing.T) {
	repo := NewInMemoryRepository()
	rec := NewReconciler(repo, nil, logging.Default())
	ctx := context.Background()

	require.NoError(t, repo.UpsertPending(ctx, &Payment{
		ID: "pay-1", CheckoutRequestID: "ws_2", Amount: 500, Status: StatusPending,
	}))

	result, err := rec.Process(ctx, failureCallback("ws_2", 1, "Insufficient funds"))
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "Insufficient funds", result.Message)

	stored, err := repo.GetByCheckoutRequestID(ctx, "ws_2")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, stored.Status)
	assert.Equal(t, 1, stored.ResultCode)
	assert.Equal(t, "Insufficient funds", stored.ResultDesc)
	assert.Equal(t, 500.0, stored.Amount, "pending amount kept when the failure carries none")
}

func TestCallbackFailureNeverDowngradesSuccess(t *testing.T) {
	repo := NewInMemoryRepository()
	rec := NewReconciler(repo, nil, logging.Default())
	ctx := context.Background()

	_, err := rec.Process(ctx, successCallback("ws_3", "SFC777"))
	require.NoError(t, err)

	// A stray failure callback after settlement must not rewrite history.
	result, err := rec.Process(ctx, failureCallback("ws_3", 1032, "Request cancelled by user"))
	require.NoError(t, err)
	assert.False(t, result.Success)

	stored, err := repo.GetByCheckoutRequestID(ctx, "ws_3")
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, stored.Status)
	assert.Equal(t, "SFC777", stored.MpesaReceiptNumber)
}

func TestCallbackUnparseable(t *testing.T) {
	rec := NewReconciler(NewInMemoryRepository(), nil, logging.Default())
	ctx := context.Background()

	for _, payload := range [][]byte{
		nil,
		[]byte(""),
		[]byte("not json"),
		[]byte(`{"Body": {"stkCallback": {"ResultCode": 0}}}`),
	} {
		_, err := rec.Process(ctx, payload)
		assert.ErrorIs(t, err, ErrUnparseableCallback, "payload %q", payload)
	}
}

func TestCallbackMalformedTransactionDate(t *testing.T) {
	repo := NewInMemoryRepository()
	rec := NewReconciler(repo, nil, logging.Default())
	ctx := context.Background()

	payload := []byte(`{
		"Body": {
			"stkCallback": {
				"CheckoutRequestID": "ws_4",
				"ResultCode": 0,
				"ResultDesc": "ok",
				"CallbackMetadata": {
					"Item": [
						{"Name": "Amount", "Value": 100},
						{"Name": "MpesaReceiptNumber", "Value": "SFC001"},
						{"Name": "TransactionDate", "Value": 202506}
					]
				}
			}
		}
	}`)
	_, err := rec.Process(ctx, payload)
	require.NoError(t, err)

	stored, err := repo.GetByCheckoutRequestID(ctx, "ws_4")
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, stored.Status, "bad date fails soft, payment still settles")
	assert.Nil(t, stored.TransactionDate)
}

func TestCallbackPersistenceFaultSurfaces(t *testing.T) {
	rec := NewReconciler(failingRepo{}, nil, logging.Default())

	_, err := rec.Process(context.Background(), successCallback("ws_5", "SFC002"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrUnparseableCallback))
}

func TestParseTransactionDate(t *testing.T) {
	if got := parseTransactionDate("20250601143000"); got == nil || !got.Equal(time.Date(2025, 6, 1, 14, 30, 0, 0, time.UTC)) {
		t.Errorf("unexpected parse result: %v", got)
	}
	for _, bad := range []string{"", "2025", "2025060114300", "20251301143000", "abcdefghijklmn"} {
		if got := parseTransactionDate(bad); got != nil {
			t.Errorf("parseTransactionDate(%q) = %v, want nil", bad, got)
		}
	}
}

type failingRepo struct{}

func (failingRepo) UpsertPending(context.Context, *Payment) error { return errors.New("db down") }
func (failingRepo) ApplyResult(context.Context, *Payment) error   { return errors.New("db down") }
func (failingRepo) GetByCheckoutRequestID(context.Context, string) (*Payment, error) {
	return nil, errors.New("db down")
}
func (failingRepo) List(context.Context, ListFilter) ([]*Payment, error) {
	return nil, errors.New("db down")
}
func (failingRepo) Stats(context.Context) (*Stats, error)    { return nil, errors.New("db down") }
