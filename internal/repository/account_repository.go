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

const accountColumns = `id, account_number, account_type, initial_deposit, status, client_id, created_at, updated_at`

type accountRepository struct {
	db     SQLExecutor
	logger *slog.Logger
}

func NewAccountRepository(db SQLExecutor, logger *slog.Logger) domain.AccountRepository {
	return &accountRepository{
		db:     db,
		logger: logger,
	}
}

func (r *accountRepository) CreateAccount(ctx context.Context, account *domain.Account) error {
	query := `
		INSERT INTO accounts (account_number, account_type, initial_deposit, status, client_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING id
	`

	now := time.Now().UTC()
	err := r.db.QueryRowContext(ctx,
		query,
		account.AccountNumber,
		account.AccountType,
		account.InitialDeposit.StringFixed(2),
		account.Status,
		account.ClientID,
		now,
	).Scan(&account.ID)

	if err != nil {
		if isUniqueViolation(err, "idx_accounts_account_number") {
			r.logger.Warn("Account number collision", "account_number", account.AccountNumber)
			return errors.ErrDuplicateAccountNumber
		}
		r.logger.Error("Failed to create account", "account_number", account.AccountNumber, "error", err)
		return classify(err, "failed to create account")
	}

	account.CreatedAt = now
	account.UpdatedAt = now
	r.logger.Info("Account created successfully", "account_id", account.ID, "account_number", account.AccountNumber)
	return nil
}

func (r *accountRepository) GetAccount(ctx context.Context, id int64) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	return r.scanAccount(r.db.QueryRowContext(ctx, query, id), "account_id", id)
}

func (r *accountRepository) GetAccountForUpdate(ctx context.Context, id int64) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 FOR UPDATE`

	return r.scanAccount(r.db.QueryRowContext(ctx, query, id), "account_id", id)
}

func (r *accountRepository) GetAccountByNumber(ctx context.Context, number string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_number = $1`

	return r.scanAccount(r.db.QueryRowContext(ctx, query, number), "account_number", number)
}

func (r *accountRepository) AccountNumberExists(ctx context.Context, number string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM accounts WHERE account_number = $1)`, number).Scan(&exists)
	if err != nil {
		r.logger.Error("Failed to check account number", "account_number", number, "error", err)
		return false, classify(err, "failed to check account number")
	}
	return exists, nil
}

func (r *accountRepository) ListAccounts(ctx context.Context) ([]*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY id`

	return r.queryAccounts(ctx, query)
}

func (r *accountRepository) ListAccountsByClient(ctx context.Context, clientID int64) ([]*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE client_id = $1 ORDER BY id`

	return r.queryAccounts(ctx, query, clientID)
}

func (r *accountRepository) ListAccountsByClientAndStatus(ctx context.Context, clientID int64, status domain.AccountStatus) ([]*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE client_id = $1 AND status = $2 ORDER BY id`

	return r.queryAccounts(ctx, query, clientID, status)
}

func (r *accountRepository) UpdateAccountStatus(ctx context.Context, id int64, from, to domain.AccountStatus) (*domain.Account, error) {
	query := `
		UPDATE accounts
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
		RETURNING ` + accountColumns

	account, err := r.scanAccount(r.db.QueryRowContext(ctx, query, to, time.Now().UTC(), id, from), "account_id", id)
	if err == nil {
		r.logger.Info("Account status updated", "account_id", id, "from", from, "to", to)
		return account, nil
	}
	if !errors.Is(err, errors.ErrAccountNotFound) {
		return nil, err
	}

	// No row matched: either the account is gone or its status moved under us.
	if _, getErr := r.GetAccount(ctx, id); getErr != nil {
		return nil, getErr
	}
	r.logger.Warn("Account status changed concurrently", "account_id", id, "expected", from)
	return nil, errors.ErrConcurrentModification.WithDetailsf("account %d is no longer %s", id, from)
}

func (r *accountRepository) queryAccounts(ctx context.Context, query string, args ...interface{}) ([]*domain.Account, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list accounts", "error", err)
		return nil, classify(err, "failed to list accounts")
	}
	defer rows.Close()

	accounts := []*domain.Account{}
	for rows.Next() {
		account, err := r.scanAccount(rows, "", nil)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "failed to list accounts")
	}
	return accounts, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *accountRepository) scanAccount(row rowScanner, key string, value interface{}) (*domain.Account, error) {
	var account domain.Account
	var depositStr string

	err := row.Scan(
		&account.ID,
		&account.AccountNumber,
		&account.AccountType,
		&depositStr,
		&account.Status,
		&account.ClientID,
		&account.CreatedAt,
		&account.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			r.logger.Warn("Account not found", key, value)
			return nil, errors.ErrAccountNotFound
		}
		r.logger.Error("Failed to get account", key, value, "error", err)
		return nil, classify(err, "failed to get account")
	}

	deposit, err := decimal.NewFromString(depositStr)
	if err != nil {
		r.logger.Error("Failed to parse initial deposit", "account_id", account.ID, "initial_deposit", depositStr, "error", err)
		return nil, errors.Internal(err, "failed to parse initial deposit")
	}

	account.InitialDeposit = deposit
	return &account, nil
}
