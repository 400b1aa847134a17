package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type MovementKind string

const (
	MovementDeposit    MovementKind = "DEPOSIT"
	MovementWithdrawal MovementKind = "WITHDRAWAL"
)

// Movement is immutable once stored. Amount is stored as the unsigned magnitude; Kind gives the direction.
type Movement struct {
	ID            int64           `json:"movement_id"`
	AccountID     int64           `json:"account_id"`
	AccountNumber string          `json:"account_number,omitempty"`
	Sequence      int64           `json:"sequence"`
	Kind          MovementKind    `json:"kind"`
	Amount        decimal.Decimal `json:"amount"`
	Balance       decimal.Decimal `json:"balance"`
	CreatedAt     time.Time       `json:"created_at"`
}

// SignedAmount returns the magnitude with its direction applied.
func (m *Movement) SignedAmount() decimal.Decimal {
	if m.Kind == MovementWithdrawal {
		return m.Amount.Neg()
	}
	return m.Amount
}

type MovementRepository interface {
	// CreateMovement appends m; a second movement with the same (account, sequence)
	// is rejected as a concurrent modification.
	CreateMovement(ctx context.Context, m *Movement) error
	GetMovement(ctx context.Context, id int64) (*Movement, error)
	// GetLatestMovement returns nil, nil when the account has no movements.
	GetLatestMovement(ctx context.Context, accountID int64) (*Movement, error)
	// ListMovementsByAccount returns newest first.
	ListMovementsByAccount(ctx context.Context, accountID int64) ([]*Movement, error)
	ListMovementsByClient(ctx context.Context, clientID int64) ([]*Movement, error)
	// ListMovementsByClientInRange returns movements with from <= created_at < to, oldest first.
	ListMovementsByClientInRange(ctx context.Context, clientID int64, from, to time.Time) ([]*Movement, error)
}
