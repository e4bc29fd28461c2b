package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrTicketInvalid covers missing, expired, and already-consumed tickets;
// callers must not be able to tell them apart.
var ErrTicketInvalid = errors.New("reset ticket invalid or expired")

type ResetTicketRow struct {
	ID         string
	UserID     string
	TicketHash string
	ExpiresAt  time.Time
	ConsumedAt *time.Time
	CreatedAt  time.Time
}

type ResetTicketsRepo struct {
	pool *pgxpool.Pool
}

func NewResetTicketsRepo(pool *pgxpool.Pool) *ResetTicketsRepo {
	return &ResetTicketsRepo{pool: pool}
}

func (r *ResetTicketsRepo) Create(ctx context.Context, row ResetTicketRow) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO password_resets (id, user_id, ticket_hash, expires_at, consumed_at, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		`,
		row.ID, row.UserID, row.TicketHash, row.ExpiresAt, row.ConsumedAt, row.CreatedAt,
	)
	return err
}

// ConsumeAndSetPassword burns the ticket and writes the new password hash in
// one transaction, with the ticket row locked so two concurrent resets
// cannot both succeed. Returns the user id the ticket was bound to.
func (r *ResetTicketsRepo) ConsumeAndSetPassword(ctx context.Context, ticketHash, newPasswordHash string) (string, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})

	if err != nil {
		return "", err
	}

	defer func() { _ = tx.Rollback(ctx) }()

	row, err := r.getByHashForUpdate(ctx, tx, ticketHash)

	if err != nil {
		return "", err
	}

	if row.ConsumedAt != nil || time.Now().UTC().After(row.ExpiresAt) {
		return "", ErrTicketInvalid
	}

	tag, err := tx.Exec(ctx, `
		UPDATE users
		SET password_hash = $2, updated_at = NOW()
		WHERE id = $1
	`, row.UserID, newPasswordHash)

	if err != nil {
		return "", err
	}

	if tag.RowsAffected() == 0 {
		// account deleted out from under the ticket
		return "", ErrTicketInvalid
	}

	_, err = tx.Exec(ctx, `
		UPDATE password_resets
		SET consumed_at = NOW()
		WHERE id = $1
	`, row.ID)

	if err != nil {
		return "", err
	}

	err = tx.Commit(ctx)

	if err != nil {
		return "", err
	}

	return row.UserID, nil
}

func (r *ResetTicketsRepo) getByHashForUpdate(ctx context.Context, tx pgx.Tx, ticketHash string) (ResetTicketRow, error) {
	var row ResetTicketRow

	err := tx.QueryRow(ctx, `
		SELECT id, user_id, ticket_hash, expires_at, consumed_at, created_at
		FROM password_resets
		WHERE ticket_hash = $1
		FOR UPDATE
	`, ticketHash).Scan(
		&row.ID,
		&row.UserID,
		&row.TicketHash,
		&row.ExpiresAt,
		&row.ConsumedAt,
		&row.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ResetTicketRow{}, ErrTicketInvalid
		}

		return ResetTicketRow{}, err
	}

	return row, nil
}
