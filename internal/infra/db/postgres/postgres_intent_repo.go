package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"resume-checkout/internal/domain"
	"resume-checkout/internal/domain/model"
	"resume-checkout/internal/domain/ports/repository"
)

var _ repository.IntentRepository = (*intentRepo)(nil)

type intentRepo struct{ pool *pgxpool.Pool }

func NewIntentRepo(pool *pgxpool.Pool) *intentRepo {
	return &intentRepo{pool: pool}
}

const intentColumns = `deposit_id, session_id, plan, amount, currency, phone, provider, country,
  status, provider_status, reference, failure_reason, created_at, updated_at, paid_at, attempts`

func (r *intentRepo) Save(ctx context.Context, tx repository.Tx, p *model.PaymentIntent) error {
	const q = `
INSERT INTO payment_intents (
  deposit_id, session_id, plan, amount, currency, phone, provider, country,
  status, provider_status, reference, failure_reason, created_at, updated_at, paid_at, attempts
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16
) ON CONFLICT (deposit_id) DO UPDATE SET
  status=$9, provider_status=$10, reference=$11, failure_reason=$12, updated_at=$14, paid_at=$15, attempts=$16;`

	_, err := execSQL(ctx, r.pool, tx, q,
		p.DepositID, p.SessionID, p.Plan, p.Amount, p.Currency, p.Phone, p.Provider, p.Country,
		p.Status, p.ProviderStatus, p.Reference, p.FailureReason, p.CreatedAt, p.UpdatedAt, p.PaidAt, p.Attempts)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// unique partial index: one non-terminal intent per session
			return domain.ErrActiveIntentExists
		}
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *intentRepo) FindByDepositID(ctx context.Context, tx repository.Tx, depositID string) (*model.PaymentIntent, error) {
	q := `SELECT ` + intentColumns + ` FROM payment_intents WHERE deposit_id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, depositID)
	if err != nil {
		return nil, err
	}
	return scanIntent(row)
}

func (r *intentRepo) FindActiveBySession(ctx context.Context, tx repository.Tx, sessionID string) (*model.PaymentIntent, error) {
	q := `SELECT ` + intentColumns + ` FROM payment_intents
WHERE session_id=$1 AND status IN ('pending','processing')
ORDER BY created_at DESC LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, sessionID)
	if err != nil {
		return nil, err
	}
	return scanIntent(row)
}

func (r *intentRepo) IncrementAttempts(ctx context.Context, tx repository.Tx, depositID string) (int, error) {
	const q = `UPDATE payment_intents SET attempts=attempts+1 WHERE deposit_id=$1 RETURNING attempts;`
	row, err := pickRow(ctx, r.pool, tx, q, depositID)
	if err != nil {
		return 0, err
	}
	var attempts int
	if err := row.Scan(&attempts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrNotFound
		}
		return 0, domain.ErrReadDatabaseRow
	}
	return attempts, nil
}

func (r *intentRepo) DeleteTerminalBefore(ctx context.Context, tx repository.Tx, cutoff time.Time) ([]string, error) {
	const q = `DELETE FROM payment_intents
WHERE status IN ('completed','failed','timed_out') AND updated_at < $1
RETURNING deposit_id;`
	rows, err := pickRows(ctx, r.pool, tx, q, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *intentRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.IntentStatus]int, error) {
	const q = `SELECT status, COUNT(*) FROM payment_intents GROUP BY status;`
	rows, err := pickRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[model.IntentStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		counts[model.IntentStatus(status)] = n
	}
	return counts, rows.Err()
}

func scanIntent(row pgx.Row) (*model.PaymentIntent, error) {
	p := &model.PaymentIntent{}
	err := row.Scan(&p.DepositID, &p.SessionID, &p.Plan, &p.Amount, &p.Currency, &p.Phone, &p.Provider, &p.Country,
		&p.Status, &p.ProviderStatus, &p.Reference, &p.FailureReason, &p.CreatedAt, &p.UpdatedAt, &p.PaidAt, &p.Attempts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}
