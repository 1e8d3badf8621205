package order

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

type Repository interface {
	GetByID(ctx context.Context, id int64) (*Order, error)
	// LockByID loads the order with a row lock held until tx ends.
	LockByID(ctx context.Context, tx *sql.Tx, id int64) (*Order, error)
	UpdateState(ctx context.Context, tx *sql.Tx, id int64, state string) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

const selectOrder = `
	SELECT id, total_number, total_currency, state, billing_profile_id, created_at, updated_at
	FROM orders
	WHERE id = $1
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*Order, error) {
	var (
		o       Order
		profile sql.NullInt64
	)
	err := row.Scan(
		&o.ID,
		&o.Total.Number,
		&o.Total.Currency,
		&o.State,
		&profile,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if profile.Valid {
		o.BillingProfileID = &profile.Int64
	}
	o.Total.Currency = strings.TrimSpace(o.Total.Currency)
	return &o, nil
}

func (r *repository) GetByID(ctx context.Context, id int64) (*Order, error) {
	return scanOrder(r.db.QueryRowContext(ctx, selectOrder, id))
}

func (r *repository) LockByID(ctx context.Context, tx *sql.Tx, id int64) (*Order, error) {
	return scanOrder(tx.QueryRowContext(ctx, selectOrder+" FOR UPDATE", id))
}

func (r *repository) UpdateState(ctx context.Context, tx *sql.Tx, id int64, state string) error {
	if state == "" {
		return ErrInvalidState
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET state = $1, updated_at = now()
		WHERE id = $2
	`, state, id)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrOrderNotFound
	}
	return nil
}
