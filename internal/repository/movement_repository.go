package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"account-ledger/internal/domain"
	"account-ledger/internal/errors"
)

const movementColumns = `m.id, m.account_id, a.account_number, m.sequence, m.kind, m.amount, m.balance, m.created_at`

type movementRepository struct {
	db     SQLExecutor
	logger *slog.Logger
}

func NewMovementRepository(db SQLExecutor, logger *slog.Logger) domain.MovementRepository {
	return &movementRepository{
		db:     db,
		logger: logger,
	}
}

func (r *movementRepository) CreateMovement(ctx context.Context, m *domain.Movement) error {
	query := `
		INSERT INTO movements (account_id, sequence, kind, amount, balance, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err := r.db.QueryRowContext(ctx,
		query,
		m.AccountID,
		m.Sequence,
		m.Kind,
		m.Amount.StringFixed(2),
		m.Balance.StringFixed(2),
		m.CreatedAt,
	).Scan(&m.ID)

	if err != nil {
		if isUniqueViolation(err, "idx_movements_account_sequence") {
			r.logger.Warn("Movement sequence already taken", "account_id", m.AccountID, "sequence", m.Sequence)
			return errors.ErrConcurrentModification.WithCause(err)
		}
		r.logger.Error("Failed to create movement", "account_id", m.AccountID, "error", err)
		return classify(err, "failed to create movement")
	}

	r.logger.Info("Movement created successfully",
		"movement_id", m.ID,
		"account_id", m.AccountID,
		"kind", m.Kind,
		"amount", m.Amount.String(),
		"balance", m.Balance.String(),
	)
	return nil
}

func (r *movementRepository) GetMovement(ctx context.Context, id int64) (*domain.Movement, error) {
	query := `
		SELECT ` + movementColumns + `
		FROM movements m JOIN accounts a ON a.id = m.account_id
		WHERE m.id = $1
	`

	m, err := r.scanMovement(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			r.logger.Warn("Movement not found", "movement_id", id)
			return nil, errors.ErrMovementNotFound
		}
		r.logger.Error("Failed to get movement", "movement_id", id, "error", err)
		return nil, classify(err, "failed to get movement")
	}
	return m, nil
}

func (r *movementRepository) GetLatestMovement(ctx context.Context, accountID int64) (*domain.Movement, error) {
	query := `
		SELECT ` + movementColumns + `
		FROM movements m JOIN accounts a ON a.id = m.account_id
		WHERE m.account_id = $1
		ORDER BY m.sequence DESC
		LIMIT 1
	`

	m, err := r.scanMovement(r.db.QueryRowContext(ctx, query, accountID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.Error("Failed to get latest movement", "account_id", accountID, "error", err)
		return nil, classify(err, "failed to get latest movement")
	}
	return m, nil
}

func (r *movementRepository) ListMovementsByAccount(ctx context.Context, accountID int64) ([]*domain.Movement, error) {
	query := `
		SELECT ` + movementColumns + `
		FROM movements m JOIN accounts a ON a.id = m.account_id
		WHERE m.account_id = $1
		ORDER BY m.sequence DESC
	`

	return r.queryMovements(ctx, query, accountID)
}

func (r *movementRepository) ListMovementsByClient(ctx context.Context, clientID int64) ([]*domain.Movement, error) {
	query := `
		SELECT ` + movementColumns + `
		FROM movements m JOIN accounts a ON a.id = m.account_id
		WHERE a.client_id = $1
		ORDER BY m.created_at DESC, m.id DESC
	`

	return r.queryMovements(ctx, query, clientID)
}

func (r *movementRepository) ListMovementsByClientInRange(ctx context.Context, clientID int64, from, to time.Time) ([]*domain.Movement, error) {
	query := `
		SELECT ` + movementColumns + `
		FROM movements m JOIN accounts a ON a.id = m.account_id
		WHERE a.client_id = $1 AND m.created_at >= $2 AND m.created_at < $3
		ORDER BY m.created_at, m.id
	`

	return r.queryMovements(ctx, query, clientID, from, to)
}

func (r *movementRepository) queryMovements(ctx context.Context, query string, args ...interface{}) ([]*domain.Movement, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list movements", "error", err)
		return nil, classify(err, "failed to list movements")
	}
	defer rows.Close()

	movements := []*domain.Movement{}
	for rows.Next() {
		m, err := r.scanMovement(rows)
		if err != nil {
			r.logger.Error("Failed to scan movement", "error", err)
			return nil, classify(err, "failed to scan movement")
		}
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "failed to list movements")
	}
	return movements, nil
}

func (r *movementRepository) scanMovement(row rowScanner) (*domain.Movement, error) {
	var m domain.Movement
	var amountStr, balanceStr string

	if err := row.Scan(
		&m.ID,
		&m.AccountID,
		&m.AccountNumber,
		&m.Sequence,
		&m.Kind,
		&amountStr,
		&balanceStr,
		&m.CreatedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if m.Amount, err = decimal.NewFromString(amountStr); err != nil {
		return nil, errors.Internal(err, "failed to parse movement amount")
	}
	if m.Balance, err = decimal.NewFromString(balanceStr); err != nil {
		return nil, errors.Internal(err, "failed to parse movement balance")
	}
	m.CreatedAt = m.CreatedAt.UTC()
	return &m, nil
}
