package payments

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
)

func TestPostgresUpsertPendingIgnoresConflict(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	repo := NewPostgresRepositoryWithQuerier(mock)

	// ON CONFLICT DO NOTHING: zero rows affected is still a clean write.
	mock.ExpectExec("INSERT INTO payments").
		WithArgs("pay-1", "mr-1", "ws_1", 1500.0, "254712345678", "u1").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	err = repo.UpsertPending(context.Background(), &Payment{
		ID: "pay-1", MerchantRequestID: "mr-1", CheckoutRequestID: "ws_1",
		Amount: 1500, PhoneNumber: "254712345678", UserID: "u1", Status: StatusPending,
	})
	if err != nil {
		t.Fatalf("upsert pending: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresApplyResult(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	repo := NewPostgresRepositoryWithQuerier(mock)
	txDate := time.Date(2025, 6, 1, 14, 30, 0, 0, time.UTC)
	raw := json.RawMessage(`{"Body":{}}`)

	mock.ExpectExec("INSERT INTO payments").
		WithArgs("pay-1", "mr-1", "ws_1", 1500.0, "254712345678", "SUCCESS",
			0, "ok", "SFC123", &txDate, raw).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = repo.ApplyResult(context.Background(), &Payment{
		ID: "pay-1", MerchantRequestID: "mr-1", CheckoutRequestID: "ws_1",
		Amount: 1500, PhoneNumber: "254712345678", Status: StatusSuccess,
		ResultCode: 0, ResultDesc: "ok", MpesaReceiptNumber: "SFC123",
		TransactionDate: &txDate, RawCallback: raw,
	})
	if err != nil {
		t.Fatalf("apply result: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresGetByCheckoutRequestIDNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	repo := NewPostgresRepositoryWithQuerier(mock)
	mock.ExpectQuery("SELECT (.+) FROM payments WHERE checkout_request_id").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	if _, err := repo.GetByCheckoutRequestID(context.Background(), "missing"); !errors.Is(err, ErrPaymentNotFound) {
		t.Fatalf("expected ErrPaymentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresListWithFilters(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	repo := NewPostgresRepositoryWithQuerier(mock)
	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	txDate := time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC)
	created := time.Date(2025, 6, 15, 14, 29, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT (.+) FROM payments WHERE status = \$1 AND created_at >= \$2 AND created_at < \$3 ORDER BY created_at DESC LIMIT \$4 OFFSET \$5`).
		WithArgs("SUCCESS", from, to, 100, 0).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "merchant_request_id", "checkout_request_id", "amount", "phone_number",
			"user_id", "status", "result_code", "result_desc", "mpesa_receipt_number",
			"transaction_date", "raw_callback", "created_at", "updated_at",
		}).AddRow(
			"pay-1", "mr-1", "ws_1", 1500.0, "254712345678",
			"u1", "SUCCESS", 0, "ok", "SFC123",
			&txDate, json.RawMessage(`{}`), created, created,
		))

	got, err := repo.List(context.Background(), ListFilter{Status: StatusSuccess, From: &from, To: &to})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].CheckoutRequestID != "ws_1" || got[0].Status != StatusSuccess {
		t.Errorf("unexpected result: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresStats(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	repo := NewPostgresRepositoryWithQuerier(mock)
	mock.ExpectQuery("SELECT status, COUNT").
		WillReturnRows(pgxmock.NewRows([]string{"status", "count", "settled"}).
			AddRow("PENDING", 2, 0.0).
			AddRow("SUCCESS", 3, 4500.0).
			AddRow("FAILED", 1, 0.0))

	stats, err := repo.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	want := Stats{Total: 6, Pending: 2, Success: 3, Failed: 1, AmountSettled: 4500}
	if *stats != want {
		t.Errorf("stats = %+v, want %+v", *stats, want)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
