package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dmehra2102/qr-order-flow/internal/payment/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

const sessionColumns = `id, order_id, attempt, receipt, COALESCE(gateway_order_id, ''), amount, currency, state,
	COALESCE(payment_id, ''), COALESCE(error_reason, ''), created_at, updated_at`

func (r *Repository) Insert(ctx context.Context, s domain.Session) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO payment_sessions
		(id, order_id, attempt, receipt, gateway_order_id, amount, currency, state, payment_id, error_reason, created_at, updated_at)
		VALUES ($1,$2,$3,$4,NULLIF($5,''),$6,$7,$8,NULLIF($9,''),NULLIF($10,''),$11,$12)`,
		s.ID, s.OrderID, s.Attempt, s.Receipt, s.GatewayOrderID, s.Amount, s.Currency, string(s.State),
		s.PaymentID, s.ErrorReason, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: %s", domain.ErrActiveSession, pgErr.ConstraintName)
		}
		return fmt.Errorf("insert payment session: %w", err)
	}
	return nil
}

// Save writes the session. A paid session is only ever rewritten as paid;
// any other write to it returns domain.ErrSessionSettled.
func (r *Repository) Save(ctx context.Context, s domain.Session) error {
	ct, err := r.pool.Exec(ctx, `UPDATE payment_sessions
		SET gateway_order_id=NULLIF($2,''), state=$3, payment_id=NULLIF($4,''), error_reason=NULLIF($5,''), updated_at=$6
		WHERE id=$1 AND (state <> 'paid' OR $3 = 'paid')`,
		s.ID, s.GatewayOrderID, string(s.State), s.PaymentID, s.ErrorReason, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update payment session: %w", err)
	}
	if ct.RowsAffected() > 0 {
		return nil
	}

	var state string
	err = r.pool.QueryRow(ctx, `SELECT state FROM payment_sessions WHERE id=$1`, s.ID).Scan(&state)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("read payment session state: %w", err)
	}
	return domain.ErrSessionSettled
}

func (r *Repository) Latest(ctx context.Context, orderID string) (domain.Session, bool, error) {
	s, err := scanSession(r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM payment_sessions
		WHERE order_id=$1 ORDER BY attempt DESC LIMIT 1`, orderID))
	if errors.Is(err, domain.ErrSessionNotFound) {
		return domain.Session{}, false, nil
	}
	if err != nil {
		return domain.Session{}, false, err
	}
	return s, true, nil
}

func (r *Repository) ByGatewayOrder(ctx context.Context, gatewayOrderID string) (domain.Session, error) {
	return scanSession(r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM payment_sessions WHERE gateway_order_id=$1`, gatewayOrderID))
}

func scanSession(row pgx.Row) (domain.Session, error) {
	var (
		s     domain.Session
		state string
	)
	err := row.Scan(&s.ID, &s.OrderID, &s.Attempt, &s.Receipt, &s.GatewayOrderID, &s.Amount, &s.Currency,
		&state, &s.PaymentID, &s.ErrorReason, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("scan payment session: %w", err)
	}
	s.State = domain.State(state)
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	return s, nil
}
