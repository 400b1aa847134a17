package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type AccountStatus string

const (
	AccountStatusActive    AccountStatus = "ACTIVE"
	AccountStatusBlocked   AccountStatus = "BLOCKED"
	AccountStatusCancelled AccountStatus = "CANCELLED"
	AccountStatusDeleted   AccountStatus = "DELETED"
)

// Assignable reports whether s may be set through a plain status change.
// DELETED is only reachable through logical deletion.
func (s AccountStatus) Assignable() bool {
	switch s {
	case AccountStatusActive, AccountStatusBlocked, AccountStatusCancelled:
		return true
	}
	return false
}

// Account has no balance field: the balance is the snapshot of its latest movement.
type Account struct {
	ID             int64           `json:"account_id"`
	AccountNumber  string          `json:"account_number"`
	AccountType    string          `json:"account_type"`
	InitialDeposit decimal.Decimal `json:"initial_deposit"`
	Status         AccountStatus   `json:"status"`
	ClientID       int64           `json:"client_id"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

type AccountRepository interface {
	CreateAccount(ctx context.Context, account *Account) error
	GetAccount(ctx context.Context, id int64) (*Account, error)
	// GetAccountForUpdate locks the account row until the surrounding transaction ends.
	GetAccountForUpdate(ctx context.Context, id int64) (*Account, error)
	GetAccountByNumber(ctx context.Context, number string) (*Account, error)
	AccountNumberExists(ctx context.Context, number string) (bool, error)
	ListAccounts(ctx context.Context) ([]*Account, error)
	ListAccountsByClient(ctx context.Context, clientID int64) ([]*Account, error)
	ListAccountsByClientAndStatus(ctx context.Context, clientID int64, status AccountStatus) ([]*Account, error)
	// UpdateAccountStatus changes the status only if it still equals from.
	UpdateAccountStatus(ctx context.Context, id int64, from, to AccountStatus) (*Account, error)
}
