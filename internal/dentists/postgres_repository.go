package dentists

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgxQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores dentist profiles in the relational database.
type PostgresRepository struct {
	pool pgxQuerier
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("dentists: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

// NewPostgresRepositoryWithQuerier allows injecting a mock for tests.
func NewPostgresRepositoryWithQuerier(q pgxQuerier) *PostgresRepository {
	return &PostgresRepository{pool: q}
}

const dentistColumns = `id, user_id, first_name, last_name, email, phone, specialty, created_at`

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Dentist, error) {
	query := `SELECT ` + dentistColumns + ` FROM dentists WHERE id = $1`
	return r.scanOne(r.pool.QueryRow(ctx, query, id))
}

func (r *PostgresRepository) GetByUserID(ctx context.Context, userID string) (*Dentist, error) {
	query := `SELECT ` + dentistColumns + ` FROM dentists WHERE user_id = $1`
	return r.scanOne(r.pool.QueryRow(ctx, query, userID))
}

// List returns all dentists in creation order. The order is stable so that
// least-loaded assignment breaks ties deterministically.
func (r *PostgresRepository) List(ctx context.Context) ([]*Dentist, error) {
	query := `SELECT ` + dentistColumns + ` FROM dentists ORDER BY created_at, id`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("dentists: list failed: %w", err)
	}
	defer rows.Close()

	var out []*Dentist
	for rows.Next() {
		var d Dentist
		if err := rows.Scan(&d.ID, &d.UserID, &d.FirstName, &d.LastName, &d.Email, &d.Phone, &d.Specialty, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("dentists: scan failed: %w", err)
		}
		out = append(out, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dentists: rows failed: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) scanOne(row pgx.Row) (*Dentist, error) {
	var d Dentist
	if err := row.Scan(&d.ID, &d.UserID, &d.FirstName, &d.LastName, &d.Email, &d.Phone, &d.Specialty, &d.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDentistNotFound
		}
		return nil, fmt.Errorf("dentists: select failed: %w", err)
	}
	return &d, nil
}
