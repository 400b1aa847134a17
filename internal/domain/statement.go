package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Statement struct {
	ClientID       int64              `json:"client_id"`
	ClientName     string             `json:"client_name,omitempty"`
	Identification string             `json:"identification,omitempty"`
	StartDate      time.Time          `json:"start_date"`
	EndDate        time.Time          `json:"end_date"`
	GeneratedAt    time.Time          `json:"generated_at"`
	Accounts       []AccountStatement `json:"accounts"`
	TotalBalance   decimal.Decimal    `json:"total_balance"`
}

type AccountStatement struct {
	AccountID     int64            `json:"account_id"`
	AccountNumber string           `json:"account_number"`
	AccountType   string           `json:"account_type"`
	Status        AccountStatus    `json:"status"`
	Balance       decimal.Decimal  `json:"balance"`
	Movements     []MovementDetail `json:"movements"`
}

type MovementDetail struct {
	MovementID   int64           `json:"movement_id"`
	Date         time.Time       `json:"date"`
	Kind         MovementKind    `json:"kind"`
	Amount       decimal.Decimal `json:"amount"`
	Description  string          `json:"description"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
}
