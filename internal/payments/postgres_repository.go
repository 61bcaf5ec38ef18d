package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores payments with a unique checkout_request_id. The
// ON CONFLICT clauses make both writes safe to run in either order and safe
// to replay; the status guard keeps a SUCCESS row from being overwritten.
type PostgresRepository struct {
	pool pgxQuerier
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("payments: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

// NewPostgresRepositoryWithQuerier allows injecting a mock for tests.
func NewPostgresRepositoryWithQuerier(q pgxQuerier) *PostgresRepository {
	return &PostgresRepository{pool: q}
}

const paymentColumns = `id, merchant_request_id, checkout_request_id, amount, phone_number,
	user_id, status, result_code, result_desc, mpesa_receipt_number, transaction_date,
	raw_callback, created_at, updated_at`

func (r *PostgresRepository) UpsertPending(ctx context.Context, p *Payment) error {
	query := `
		INSERT INTO payments (
			id, merchant_request_id, checkout_request_id, amount, phone_number, user_id, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, 'PENDING')
		ON CONFLICT (checkout_request_id) DO NOTHING
	`
	_, err := r.pool.Exec(ctx, query,
		p.ID,
		p.MerchantRequestID,
		p.CheckoutRequestID,
		p.Amount,
		p.PhoneNumber,
		p.UserID,
	)
	if err != nil {
		return fmt.Errorf("payments: insert pending failed: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ApplyResult(ctx context.Context, p *Payment) error {
	query := `
		INSERT INTO payments (
			id, merchant_request_id, checkout_request_id, amount, phone_number, status,
			result_code, result_desc, mpesa_receipt_number, transaction_date, raw_callback
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (checkout_request_id) DO UPDATE SET
			merchant_request_id = EXCLUDED.merchant_request_id,
			amount = CASE WHEN EXCLUDED.amount <> 0 THEN EXCLUDED.amount ELSE payments.amount END,
			phone_number = CASE WHEN EXCLUDED.phone_number <> '' THEN EXCLUDED.phone_number ELSE payments.phone_number END,
			status = EXCLUDED.status,
			result_code = EXCLUDED.result_code,
			result_desc = EXCLUDED.result_desc,
			mpesa_receipt_number = EXCLUDED.mpesa_receipt_number,
			transaction_date = EXCLUDED.transaction_date,
			raw_callback = EXCLUDED.raw_callback,
			updated_at = now()
		WHERE payments.status <> 'SUCCESS' OR EXCLUDED.status = 'SUCCESS'
	`
	_, err := r.pool.Exec(ctx, query,
		p.ID,
		p.MerchantRequestID,
		p.CheckoutRequestID,
		p.Amount,
		p.PhoneNumber,
		string(p.Status),
		p.ResultCode,
		p.ResultDesc,
		p.MpesaReceiptNumber,
		p.TransactionDate,
		p.RawCallback,
	)
	if err != nil {
		return fmt.Errorf("payments: apply result failed: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE checkout_request_id = $1`
	p, err := scanPayment(r.pool.QueryRow(ctx, query, checkoutRequestID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *PostgresRepository) List(ctx context.Context, filter ListFilter) ([]*Payment, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	var conds []string
	var args []any
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conds = append(conds, fmt.Sprintf("created_at < $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		conds = append(conds, fmt.Sprintf("(phone_number ILIKE $%d OR mpesa_receipt_number ILIKE $%d)", len(args), len(args)))
	}

	query := `SELECT ` + paymentColumns + ` FROM payments`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))
	args = append(args, filter.Offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("payments: list failed: %w", err)
	}
	defer rows.Close()

	var out []*Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("payments: list rows failed: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) Stats(ctx context.Context) (*Stats, error) {
	query := `
		SELECT status, COUNT(*), COALESCE(SUM(amount) FILTER (WHERE status = 'SUCCESS'), 0)
		FROM payments
		GROUP BY status
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("payments: stats failed: %w", err)
	}
	defer rows.Close()

	stats := &Stats{}
	for rows.Next() {
		var status string
		var count int
		var settled float64
		if err := rows.Scan(&status, &count, &settled); err != nil {
			return nil, fmt.Errorf("payments: scan stats failed: %w", err)
		}
		stats.Total += count
		switch Status(status) {
		case StatusPending:
			stats.Pending = count
		case StatusSuccess:
			stats.Success = count
			stats.AmountSettled = settled
		case StatusFailed:
			stats.Failed = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("payments: stats rows failed: %w", err)
	}
	return stats, nil
}

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	var status string
	if err := row.Scan(
		&p.ID,
		&p.MerchantRequestID,
		&p.CheckoutRequestID,
		&p.Amount,
		&p.PhoneNumber,
		&p.UserID,
		&status,
		&p.ResultCode,
		&p.ResultDesc,
		&p.MpesaReceiptNumber,
		&p.TransactionDate,
		&p.RawCallback,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("payments: scan failed: %w", err)
	}
	p.Status = Status(status)
	return &p, nil
}
