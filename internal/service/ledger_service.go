package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"account-ledger/internal/domain"
	"account-ledger/internal/errors"
	"account-ledger/internal/lock"
	"account-ledger/internal/metrics"
)

// DefaultMovementRetries bounds how often a movement is re-attempted after a conflict.
const DefaultMovementRetries = 3

var (
	minMovementAmount = decimal.New(1, -2)
	maxMovementAmount = decimal.NewFromInt(1_000_000)
)

// LedgerService records movements and derives balances from them. A balance is never
// stored: it is the snapshot carried by the account's latest movement.
type LedgerService struct {
	store   domain.Store
	locker  lock.Locker
	logger  *slog.Logger
	retries int
	now     func() time.Time
}

type LedgerOption func(*LedgerService)

// WithMovementRetries sets the attempts made before a conflict is returned to the caller.
func WithMovementRetries(n int) LedgerOption {
	return func(s *LedgerService) {
		if n > 0 {
			s.retries = n
		}
	}
}

func WithClock(now func() time.Time) LedgerOption {
	return func(s *LedgerService) {
		s.now = now
	}
}

func NewLedgerService(store domain.Store, locker lock.Locker, logger *slog.Logger, opts ...LedgerOption) *LedgerService {
	s := &LedgerService{
		store:   store,
		locker:  locker,
		logger:  logger,
		retries: DefaultMovementRetries,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterMovement applies a signed amount to the account: positive amounts are
// deposits, negative ones withdrawals. The returned record carries the amount as
// supplied while the stored movement keeps the unsigned magnitude.
func (s *LedgerService) RegisterMovement(ctx context.Context, accountNumber string, amount decimal.Decimal) (*domain.Movement, error) {
	s.logger.Info("Registering movement", "account_number", accountNumber, "amount", amount.String())

	kind := movementKind(amount)
	movement, err := s.registerMovement(ctx, accountNumber, amount)

	outcome := "ok"
	if err != nil {
		outcome = string(errors.From(err).Code)
	}
	metrics.MovementsTotal.WithLabelValues(string(kind), outcome).Inc()

	if err != nil {
		logFailure(s.logger, "Movement rejected", err, "account_number", accountNumber, "amount", amount.String())
		return nil, err
	}

	s.logger.Info("Movement registered successfully",
		"movement_id", movement.ID,
		"account_id", movement.AccountID,
		"kind", movement.Kind,
		"balance", movement.Balance.String())

	result := *movement
	result.Amount = amount
	return &result, nil
}

func (s *LedgerService) registerMovement(ctx context.Context, accountNumber string, amount decimal.Decimal) (*domain.Movement, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	if strings.TrimSpace(accountNumber) == "" {
		return nil, errors.ErrInvalidInput.WithDetails("account number is required")
	}

	account, err := s.store.Account().GetAccountByNumber(ctx, accountNumber)
	if err != nil {
		return nil, err
	}

	var movement *domain.Movement
	err = withAccountLock(ctx, s.locker, account.ID, func() error {
		return retryConflicts(ctx, s.logger, s.retries, "register_movement", func() error {
			return s.store.WithTransaction(ctx, func(tx domain.Store) error {
				m, err := s.appendMovement(ctx, tx, account.ID, amount)
				movement = m
				return err
			})
		})
	})
	if err != nil {
		return nil, err
	}
	return movement, nil
}

// appendMovement extends the account's balance chain by one link. It must run inside
// a transaction while the caller holds the account lock.
func (s *LedgerService) appendMovement(ctx context.Context, tx domain.Store, accountID int64, amount decimal.Decimal) (*domain.Movement, error) {
	account, err := tx.Account().GetAccountForUpdate(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.Status != domain.AccountStatusActive {
		return nil, errors.ErrAccountNotActive.WithDetailsf("account %s is %s", account.AccountNumber, account.Status)
	}

	latest, err := tx.Movement().GetLatestMovement(ctx, accountID)
	if err != nil {
		return nil, err
	}

	balance := decimal.Zero
	sequence := int64(1)
	createdAt := s.now().UTC()
	if latest != nil {
		balance = latest.Balance
		sequence = latest.Sequence + 1
		if createdAt.Before(latest.CreatedAt) {
			createdAt = latest.CreatedAt
		}
	}

	magnitude := amount.Abs()
	next := balance.Add(amount)
	if next.IsNegative() {
		return nil, errors.ErrInsufficientFunds.WithDetailsf("available balance %s is less than %s",
			balance.StringFixed(2), magnitude.StringFixed(2))
	}

	movement := &domain.Movement{
		AccountID:     accountID,
		AccountNumber: account.AccountNumber,
		Sequence:      sequence,
		Kind:          movementKind(amount),
		Amount:        magnitude,
		Balance:       next,
		CreatedAt:     createdAt,
	}
	if err := tx.Movement().CreateMovement(ctx, movement); err != nil {
		return nil, err
	}
	return movement, nil
}

// RecordInitialMovement books the opening deposit of a freshly inserted account. tx must
// be the transaction the account was inserted in. Nothing is recorded for a zero deposit.
func (s *LedgerService) RecordInitialMovement(ctx context.Context, tx domain.Store, account *domain.Account) (*domain.Movement, error) {
	if !account.InitialDeposit.IsPositive() {
		return nil, nil
	}

	movement := &domain.Movement{
		AccountID:     account.ID,
		AccountNumber: account.AccountNumber,
		Sequence:      1,
		Kind:          domain.MovementDeposit,
		Amount:        account.InitialDeposit,
		Balance:       account.InitialDeposit,
		CreatedAt:     s.now().UTC(),
	}
	if err := tx.Movement().CreateMovement(ctx, movement); err != nil {
		return nil, err
	}

	metrics.MovementsTotal.WithLabelValues(string(domain.MovementDeposit), "ok").Inc()
	s.logger.Info("Initial movement recorded", "account_id", account.ID, "amount", account.InitialDeposit.String())
	return movement, nil
}

// AvailableBalance returns the snapshot of the account's latest movement, or zero.
// It does not check that the account exists.
func (s *LedgerService) AvailableBalance(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	return balanceIn(ctx, s.store, accountID)
}

func (s *LedgerService) GetBalance(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	s.logger.Info("Getting balance", "account_id", accountID)

	if accountID <= 0 {
		return decimal.Zero, errors.ErrInvalidAccountID
	}
	if _, err := s.store.Account().GetAccount(ctx, accountID); err != nil {
		return decimal.Zero, err
	}
	return s.AvailableBalance(ctx, accountID)
}

func (s *LedgerService) GetMovementsByAccount(ctx context.Context, accountID int64) ([]*domain.Movement, error) {
	s.logger.Info("Getting movements by account", "account_id", accountID)

	if accountID <= 0 {
		return nil, errors.ErrInvalidAccountID
	}
	if _, err := s.store.Account().GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	return s.store.Movement().ListMovementsByAccount(ctx, accountID)
}

func (s *LedgerService) GetMovementsByClient(ctx context.Context, clientID int64) ([]*domain.Movement, error) {
	s.logger.Info("Getting movements by client", "client_id", clientID)

	if clientID <= 0 {
		return nil, errors.ErrInvalidInput.WithDetails("client id must be positive")
	}
	return s.store.Movement().ListMovementsByClient(ctx, clientID)
}

func (s *LedgerService) GetMovement(ctx context.Context, movementID int64) (*domain.Movement, error) {
	s.logger.Info("Getting movement", "movement_id", movementID)

	if movementID <= 0 {
		return nil, errors.ErrInvalidInput.WithDetails("movement id must be positive")
	}
	return s.store.Movement().GetMovement(ctx, movementID)
}

func balanceIn(ctx context.Context, store domain.Store, accountID int64) (decimal.Decimal, error) {
	latest, err := store.Movement().GetLatestMovement(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	if latest == nil {
		return decimal.Zero, nil
	}
	return latest.Balance, nil
}

func movementKind(amount decimal.Decimal) domain.MovementKind {
	if amount.IsNegative() {
		return domain.MovementWithdrawal
	}
	return domain.MovementDeposit
}

func validateAmount(amount decimal.Decimal) error {
	if amount.IsZero() {
		return errors.ErrInvalidAmount.WithDetails("amount must not be zero")
	}
	magnitude := amount.Abs()
	if !magnitude.Equal(magnitude.Round(2)) {
		return errors.ErrInvalidAmount.WithDetails("amount must have at most two decimal places")
	}
	if magnitude.LessThan(minMovementAmount) || magnitude.GreaterThan(maxMovementAmount) {
		return errors.ErrInvalidAmount.WithDetailsf("amount must be between %s and %s",
			minMovementAmount.StringFixed(2), maxMovementAmount.StringFixed(2))
	}
	return nil
}

// withAccountLock runs fn while holding the account's serialization point.
func withAccountLock(ctx context.Context, locker lock.Locker, accountID int64, fn func() error) error {
	start := time.Now()
	release, err := locker.Acquire(ctx, lock.AccountKey(accountID))
	metrics.LockWaitDuration.Observe(time.Since(start).Seconds())
	if errors.Is(err, lock.ErrNotAcquired) {
		return errors.Conflict(err, "account is busy, retry the request")
	}
	if err != nil {
		return errors.Internal(err, "failed to acquire account lock")
	}
	defer release()
	return fn()
}

func retryConflicts(ctx context.Context, logger *slog.Logger, attempts int, operation string, fn func() error) error {
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil || !errors.From(err).Retryable() || attempt >= attempts || ctx.Err() != nil {
			return err
		}
		metrics.MovementRetriesTotal.Inc()
		logger.Warn("Retrying after concurrent modification", "operation", operation, "attempt", attempt, "error", err)
	}
}

// logFailure logs domain rejections as warnings and everything else as errors.
func logFailure(logger *slog.Logger, msg string, err error, args ...any) {
	args = append(args, "error", err)
	if appErr := errors.From(err); appErr.Kind == errors.KindInternal && appErr.Code != errors.RequestCanceled {
		logger.Error(msg, args...)
		return
	}
	logger.Warn(msg, args...)
}
