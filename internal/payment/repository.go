package payment

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

type Repository interface {
	GetByID(ctx context.Context, id int64) (*Payment, error)
	// LockByID loads the payment with a row lock held until tx ends.
	LockByID(ctx context.Context, tx *sql.Tx, id int64) (*Payment, error)
	// FindByRemote returns every payment for the triple, lowest id first.
	FindByRemote(ctx context.Context, tx *sql.Tx, orderID int64, remoteID, remoteState string) ([]*Payment, error)
	// Create inserts p or, when the triple already exists, updates its state.
	// It reports whether a new row was inserted.
	Create(ctx context.Context, tx *sql.Tx, p *Payment) (bool, error)
	UpdateState(ctx context.Context, tx *sql.Tx, id int64, state State) error
	UpdateRefund(ctx context.Context, tx *sql.Tx, id int64, refunded decimal.Decimal, state State) error

	SaveCallback(ctx context.Context, rec CallbackRecord) (int64, error)
	MarkCallbackProcessed(ctx context.Context, callbackID int64) error
	MarkCallbackFailed(ctx context.Context, callbackID int64, reason string) error
}

// CallbackRecord is the audit copy of one gateway delivery.
type CallbackRecord struct {
	Channel    Channel
	TranRef    string
	RespStatus string
	CartID     string
	Payload    json.RawMessage
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

const paymentColumns = `
	id, order_id, gateway, state, state_message, amount, currency, refunded_amount,
	remote_id, remote_state, authorized_at, created_at, updated_at
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPayment(row rowScanner) (*Payment, error) {
	var (
		p          Payment
		kind, msg  string
		authorized sql.NullTime
	)
	err := row.Scan(
		&p.ID,
		&p.OrderID,
		&p.Gateway,
		&kind,
		&msg,
		&p.Amount.Number,
		&p.Amount.Currency,
		&p.RefundedAmount,
		&p.RemoteID,
		&p.RemoteState,
		&authorized,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	p.State = ParseState(kind, msg)
	p.Amount.Currency = strings.TrimSpace(p.Amount.Currency)
	if authorized.Valid {
		p.AuthorizedAt = authorized.Time
	}
	return &p, nil
}

func (r *repository) GetByID(ctx context.Context, id int64) (*Payment, error) {
	return scanPayment(r.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id))
}

func (r *repository) LockByID(ctx context.Context, tx *sql.Tx, id int64) (*Payment, error) {
	return scanPayment(tx.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1 FOR UPDATE`, id))
}

func (r *repository) FindByRemote(
	ctx context.Context,
	tx *sql.Tx,
	orderID int64,
	remoteID string,
	remoteState string,
) ([]*Payment, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE order_id = $1 AND remote_id = $2 AND remote_state = $3
		ORDER BY id
	`, orderID, remoteID, remoteState)
	if err != nil {
		return nil, err
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
	return out, rows.Err()
}

func (r *repository) Create(ctx context.Context, tx *sql.Tx, p *Payment) (bool, error) {
	// An unmapped state never overwrites a stored one.
	const q = `
	INSERT INTO payments (
		order_id,
		gateway,
		state,
		state_message,
		amount,
		currency,
		refunded_amount,
		remote_id,
		remote_state,
		authorized_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (order_id, remote_id, remote_state)
	DO UPDATE SET
		state = CASE WHEN EXCLUDED.state = 'unmapped' THEN payments.state ELSE EXCLUDED.state END,
		state_message = CASE WHEN EXCLUDED.state = 'unmapped' THEN payments.state_message ELSE EXCLUDED.state_message END,
		updated_at = now()
	RETURNING id, created_at, updated_at, (xmax = 0) AS inserted;
	`

	var inserted bool
	err := tx.QueryRowContext(ctx, q,
		p.OrderID,
		p.Gateway,
		string(p.State.Kind),
		p.State.Message,
		p.Amount.Number,
		p.Amount.Currency,
		p.RefundedAmount,
		p.RemoteID,
		p.RemoteState,
		p.AuthorizedAt,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt, &inserted)
	if err != nil {
		return false, err
	}
	return inserted, nil
}

func (r *repository) UpdateState(ctx context.Context, tx *sql.Tx, id int64, state State) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE payments
		SET state = $1, state_message = $2, updated_at = now()
		WHERE id = $3
	`, string(state.Kind), state.Message, id)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

func (r *repository) UpdateRefund(
	ctx context.Context,
	tx *sql.Tx,
	id int64,
	refunded decimal.Decimal,
	state State,
) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE payments
		SET refunded_amount = $1, state = $2, state_message = $3, updated_at = now()
		WHERE id = $4
	`, refunded, string(state.Kind), state.Message, id)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

// ----------------- Callback ledger -----------------

func (r *repository) SaveCallback(ctx context.Context, rec CallbackRecord) (int64, error) {
	const q = `
	INSERT INTO payment_callbacks (
		gateway,
		channel,
		tran_ref,
		resp_status,
		cart_id,
		payload
	)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING id;
	`

	payload := rec.Payload
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}

	var id int64
	err := r.db.QueryRowContext(
		ctx,
		q,
		GatewayID,
		string(rec.Channel),
		rec.TranRef,
		rec.RespStatus,
		rec.CartID,
		string(payload),
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r *repository) MarkCallbackProcessed(ctx context.Context, callbackID int64) error {
	const q = `
	UPDATE payment_callbacks
	SET processed_at = now(), process_error = NULL
	WHERE id = $1;
	`

	_, err := r.db.ExecContext(ctx, q, callbackID)
	return err
}

func (r *repository) MarkCallbackFailed(ctx context.Context, callbackID int64, reason string) error {
	const q = `
	UPDATE payment_callbacks
	SET process_error = $2
	WHERE id = $1;
	`

	_, err := r.db.ExecContext(ctx, q, callbackID, reason)
	return err
}
