package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"account-ledger/internal/domain"
	"account-ledger/internal/errors"
	"account-ledger/internal/lock"
	"account-ledger/internal/metrics"
)

// DefaultAccountType is used for accounts opened on the client's behalf.
const DefaultAccountType = "SAVINGS"

type AccountService struct {
	store   domain.Store
	ledger  *LedgerService
	locker  lock.Locker
	numbers NumberGenerator
	logger  *slog.Logger
}

func NewAccountService(store domain.Store, ledger *LedgerService, locker lock.Locker, numbers NumberGenerator, logger *slog.Logger) *AccountService {
	if numbers == nil {
		numbers = RandomAccountNumbers()
	}
	return &AccountService{
		store:   store,
		ledger:  ledger,
		locker:  locker,
		numbers: numbers,
		logger:  logger,
	}
}

type CreateAccountRequest struct {
	AccountType    string
	InitialDeposit decimal.Decimal
	ClientID       int64
}

func (s *AccountService) CreateAccount(ctx context.Context, req CreateAccountRequest) (*domain.Account, error) {
	s.logger.Info("Creating account",
		"client_id", req.ClientID,
		"account_type", req.AccountType,
		"initial_deposit", req.InitialDeposit.String())

	accountType := strings.TrimSpace(req.AccountType)
	if accountType == "" {
		return nil, errors.ErrInvalidInput.WithDetails("account type is required")
	}
	if req.InitialDeposit.IsNegative() {
		return nil, errors.ErrInvalidAmount.WithDetails("initial deposit must not be negative")
	}
	if !req.InitialDeposit.Equal(req.InitialDeposit.Round(2)) {
		return nil, errors.ErrInvalidAmount.WithDetails("initial deposit must have at most two decimal places")
	}
	if req.InitialDeposit.GreaterThan(maxMovementAmount) {
		return nil, errors.ErrInvalidAmount.WithDetailsf("initial deposit must not exceed %s", maxMovementAmount.StringFixed(2))
	}
	if req.ClientID <= 0 {
		return nil, errors.ErrInvalidInput.WithDetails("client id must be positive")
	}
	if _, err := s.store.Client().GetClient(ctx, req.ClientID); err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= maxNumberAttempts; attempt++ {
		number := s.numbers()

		exists, err := s.store.Account().AccountNumberExists(ctx, number)
		if err != nil {
			return nil, err
		}
		if exists {
			s.logger.Warn("Account number collision", "account_number", number, "attempt", attempt)
			continue
		}

		account, err := s.insertAccount(ctx, accountType, req, number)
		if errors.Is(err, errors.ErrDuplicateAccountNumber) {
			s.logger.Warn("Account number taken concurrently", "account_number", number, "attempt", attempt)
			continue
		}
		if err != nil {
			logFailure(s.logger, "Failed to create account", err, "client_id", req.ClientID)
			return nil, err
		}

		s.logger.Info("Account created successfully", "account_id", account.ID, "account_number", account.AccountNumber)
		return account, nil
	}

	s.logger.Error("Account number space exhausted", "client_id", req.ClientID, "attempts", maxNumberAttempts)
	return nil, errors.ErrAccountNumberExhausted
}

// insertAccount persists the account and its opening deposit atomically.
func (s *AccountService) insertAccount(ctx context.Context, accountType string, req CreateAccountRequest, number string) (*domain.Account, error) {
	account := &domain.Account{
		AccountNumber:  number,
		AccountType:    accountType,
		InitialDeposit: req.InitialDeposit,
		Status:         domain.AccountStatusActive,
		ClientID:       req.ClientID,
	}

	err := s.store.WithTransaction(ctx, func(tx domain.Store) error {
		if err := tx.Account().CreateAccount(ctx, account); err != nil {
			return err
		}
		_, err := s.ledger.RecordInitialMovement(ctx, tx, account)
		return err
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (s *AccountService) GetAccount(ctx context.Context, accountID int64) (*domain.Account, error) {
	s.logger.Info("Getting account", "account_id", accountID)

	if accountID <= 0 {
		return nil, errors.ErrInvalidAccountID
	}
	return s.store.Account().GetAccount(ctx, accountID)
}

func (s *AccountService) GetAccountByNumber(ctx context.Context, number string) (*domain.Account, error) {
	s.logger.Info("Getting account by number", "account_number", number)

	if strings.TrimSpace(number) == "" {
		return nil, errors.ErrInvalidInput.WithDetails("account number is required")
	}
	return s.store.Account().GetAccountByNumber(ctx, number)
}

// GetAccountsByClient returns every account of the client regardless of status.
func (s *AccountService) GetAccountsByClient(ctx context.Context, clientID int64) ([]*domain.Account, error) {
	s.logger.Info("Getting accounts by client", "client_id", clientID)

	if clientID <= 0 {
		return nil, errors.ErrInvalidInput.WithDetails("client id must be positive")
	}
	return s.store.Account().ListAccountsByClient(ctx, clientID)
}

func (s *AccountService) ListAccounts(ctx context.Context) ([]*domain.Account, error) {
	s.logger.Info("Listing accounts")
	return s.store.Account().ListAccounts(ctx)
}

// ChangeStatus moves the account between ACTIVE, BLOCKED and CANCELLED. Cancelling
// requires a zero balance; a DELETED account must go through Reactivate.
func (s *AccountService) ChangeStatus(ctx context.Context, accountID int64, target domain.AccountStatus) (*domain.Account, error) {
	s.logger.Info("Changing account status", "account_id", accountID, "status", target)

	if accountID <= 0 {
		return nil, errors.ErrInvalidAccountID
	}
	if !target.Assignable() {
		return nil, errors.ErrInvalidStatus.WithDetailsf("status %q cannot be assigned, expected ACTIVE, BLOCKED or CANCELLED", target)
	}

	return s.transition(ctx, accountID, "change_status", func(tx domain.Store, account *domain.Account) (domain.AccountStatus, error) {
		if account.Status == domain.AccountStatusDeleted {
			return "", errors.ErrAccountDeleted
		}
		if target == domain.AccountStatusCancelled && account.Status != domain.AccountStatusCancelled {
			if err := requireZeroBalance(ctx, tx, account); err != nil {
				return "", err
			}
		}
		return target, nil
	})
}

// DeleteLogically marks an ACTIVE account with a zero balance as DELETED. Rows are never removed.
func (s *AccountService) DeleteLogically(ctx context.Context, accountID int64) (*domain.Account, error) {
	s.logger.Info("Deleting account", "account_id", accountID)

	if accountID <= 0 {
		return nil, errors.ErrInvalidAccountID
	}

	return s.transition(ctx, accountID, "delete", func(tx domain.Store, account *domain.Account) (domain.AccountStatus, error) {
		if account.Status != domain.AccountStatusActive {
			return "", errors.ErrAccountNotActive.WithDetailsf("account %s is %s", account.AccountNumber, account.Status)
		}
		if err := requireZeroBalance(ctx, tx, account); err != nil {
			return "", err
		}
		return domain.AccountStatusDeleted, nil
	})
}

func (s *AccountService) Reactivate(ctx context.Context, accountID int64) (*domain.Account, error) {
	s.logger.Info("Reactivating account", "account_id", accountID)

	if accountID <= 0 {
		return nil, errors.ErrInvalidAccountID
	}

	return s.transition(ctx, accountID, "reactivate", func(tx domain.Store, account *domain.Account) (domain.AccountStatus, error) {
		if account.Status != domain.AccountStatusDeleted {
			return "", errors.ErrAccountNotDeleted.WithDetailsf("account %s is %s", account.AccountNumber, account.Status)
		}
		return domain.AccountStatusActive, nil
	})
}

// EnsureDefaultAccount opens a zero-balance savings account for a client that has none.
// It returns nil when the client already holds an account.
func (s *AccountService) EnsureDefaultAccount(ctx context.Context, clientID int64) (*domain.Account, error) {
	accounts, err := s.GetAccountsByClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if len(accounts) > 0 {
		return nil, nil
	}

	s.logger.Info("Opening default account", "client_id", clientID)
	return s.CreateAccount(ctx, CreateAccountRequest{
		AccountType:    DefaultAccountType,
		InitialDeposit: decimal.Zero,
		ClientID:       clientID,
	})
}

// guardFunc inspects the locked account and returns the status to move it to.
type guardFunc func(tx domain.Store, account *domain.Account) (domain.AccountStatus, error)

// transition applies a status change under the same serialization point movements use,
// so an account never changes state in the middle of a movement.
func (s *AccountService) transition(ctx context.Context, accountID int64, operation string, guard guardFunc) (*domain.Account, error) {
	var (
		updated *domain.Account
		changed bool
	)
	err := withAccountLock(ctx, s.locker, accountID, func() error {
		return retryConflicts(ctx, s.logger, s.ledger.retries, operation, func() error {
			return s.store.WithTransaction(ctx, func(tx domain.Store) error {
				account, err := tx.Account().GetAccountForUpdate(ctx, accountID)
				if err != nil {
					return err
				}
				target, err := guard(tx, account)
				if err != nil {
					return err
				}
				if target == account.Status {
					updated, changed = account, false
					return nil
				}
				updated, err = tx.Account().UpdateAccountStatus(ctx, accountID, account.Status, target)
				changed = err == nil
				return err
			})
		})
	})
	if err != nil {
		logFailure(s.logger, "Account status change rejected", err, "account_id", accountID, "operation", operation)
		return nil, err
	}
	if !changed {
		s.logger.Debug("Account already in requested status", "account_id", accountID, "status", updated.Status)
		return updated, nil
	}

	metrics.AccountTransitionsTotal.WithLabelValues(string(updated.Status)).Inc()
	s.logger.Info("Account status changed", "account_id", accountID, "status", updated.Status)
	return updated, nil
}

func requireZeroBalance(ctx context.Context, tx domain.Store, account *domain.Account) error {
	balance, err := balanceIn(ctx, tx, account.ID)
	if err != nil {
		return err
	}
	if !balance.IsZero() {
		return errors.ErrAccountHasBalance.WithDetailsf("account %s holds %s", account.AccountNumber, balance.StringFixed(2))
	}
	return nil
}
