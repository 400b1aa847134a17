package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"account-ledger/internal/domain"
	"account-ledger/internal/errors"
)

// DefaultStatementConcurrency caps parallel balance reads for one statement.
const DefaultStatementConcurrency = 8

// ReportService assembles client statements. It only reads and takes no account locks,
// so a statement is a point-in-time view per account, not across accounts.
type ReportService struct {
	store       domain.Store
	ledger      *LedgerService
	logger      *slog.Logger
	concurrency int
	now         func() time.Time
}

func NewReportService(store domain.Store, ledger *LedgerService, logger *slog.Logger, concurrency int) *ReportService {
	if concurrency <= 0 {
		concurrency = DefaultStatementConcurrency
	}
	return &ReportService{
		store:       store,
		ledger:      ledger,
		logger:      logger,
		concurrency: concurrency,
		now:         ledger.now,
	}
}

// BuildStatement reports the client's ACTIVE accounts with their current balances and the
// movements made between start and end, both dates inclusive.
func (s *ReportService) BuildStatement(ctx context.Context, clientID int64, start, end time.Time) (*domain.Statement, error) {
	s.logger.Info("Building statement", "client_id", clientID, "start", start.Format(time.DateOnly), "end", end.Format(time.DateOnly))

	if clientID <= 0 {
		return nil, errors.ErrInvalidInput.WithDetails("client id must be positive")
	}
	from, to, err := statementRange(start, end, s.now())
	if err != nil {
		return nil, err
	}

	accounts, err := s.store.Account().ListAccountsByClientAndStatus(ctx, clientID, domain.AccountStatusActive)
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		s.logger.Warn("No active accounts for statement", "client_id", clientID)
		return nil, errors.ErrNoActiveAccounts.WithDetailsf("client %d", clientID)
	}

	movements, err := s.store.Movement().ListMovementsByClientInRange(ctx, clientID, from, to)
	if err != nil {
		return nil, err
	}
	if len(movements) == 0 {
		s.logger.Warn("No movements in statement range", "client_id", clientID)
		return nil, errors.ErrNoMovementsInRange.WithDetailsf("client %d between %s and %s",
			clientID, from.Format(time.DateOnly), end.Format(time.DateOnly))
	}

	balances, err := s.balances(ctx, accounts)
	if err != nil {
		return nil, err
	}

	byAccount := make(map[int64][]*domain.Movement, len(accounts))
	for _, m := range movements {
		byAccount[m.AccountID] = append(byAccount[m.AccountID], m)
	}

	statement := &domain.Statement{
		ClientID:     clientID,
		StartDate:    from,
		EndDate:      to.AddDate(0, 0, -1),
		GeneratedAt:  s.now().UTC(),
		Accounts:     make([]domain.AccountStatement, 0, len(accounts)),
		TotalBalance: decimal.Zero,
	}
	for i, account := range accounts {
		details := make([]domain.MovementDetail, 0, len(byAccount[account.ID]))
		for _, m := range byAccount[account.ID] {
			details = append(details, movementDetail(m))
		}
		statement.Accounts = append(statement.Accounts, domain.AccountStatement{
			AccountID:     account.ID,
			AccountNumber: account.AccountNumber,
			AccountType:   account.AccountType,
			Status:        account.Status,
			Balance:       balances[i],
			Movements:     details,
		})
		statement.TotalBalance = statement.TotalBalance.Add(balances[i])
	}

	s.withHolder(ctx, statement)

	s.logger.Info("Statement built successfully",
		"client_id", clientID,
		"accounts", len(statement.Accounts),
		"total_balance", statement.TotalBalance.String())
	return statement, nil
}

// balances reads each account's current balance concurrently, in account order.
func (s *ReportService) balances(ctx context.Context, accounts []*domain.Account) ([]decimal.Decimal, error) {
	balances := make([]decimal.Decimal, len(accounts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, account := range accounts {
		g.Go(func() error {
			balance, err := s.ledger.AvailableBalance(gctx, account.ID)
			if err != nil {
				return err
			}
			balances[i] = balance
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return balances, nil
}

// withHolder fills in the holder's name. The statement is still valid without it.
func (s *ReportService) withHolder(ctx context.Context, statement *domain.Statement) {
	client, err := s.store.Client().GetClient(ctx, statement.ClientID)
	if err != nil {
		s.logger.Warn("Statement without holder details", "client_id", statement.ClientID, "error", err)
		return
	}
	if client.Person != nil {
		statement.ClientName = client.Person.Name
		statement.Identification = client.Person.Identification
	}
}

func movementDetail(m *domain.Movement) domain.MovementDetail {
	description := fmt.Sprintf("Credit of $%s", m.Amount.StringFixed(2))
	if m.Kind == domain.MovementWithdrawal {
		description = fmt.Sprintf("Debit of $%s", m.Amount.StringFixed(2))
	}
	return domain.MovementDetail{
		MovementID:   m.ID,
		Date:         m.CreatedAt,
		Kind:         m.Kind,
		Amount:       m.Amount,
		Description:  description,
		BalanceAfter: m.Balance,
	}
}

// statementRange validates the requested dates and returns the half-open interval
// [start 00:00, day after end 00:00) in UTC.
func statementRange(start, end, now time.Time) (time.Time, time.Time, error) {
	if start.IsZero() || end.IsZero() {
		return time.Time{}, time.Time{}, errors.ErrInvalidDateRange.
			WithReason(errors.ReasonMissingDates).
			WithDetails("start and end dates are required")
	}

	from := startOfDay(start)
	last := startOfDay(end)
	today := startOfDay(now.UTC())

	if from.After(last) {
		return time.Time{}, time.Time{}, errors.ErrInvalidDateRange.
			WithReason(errors.ReasonStartAfterEnd).
			WithDetails("start date is after end date")
	}
	if oneYearAfter(from).Before(last) {
		return time.Time{}, time.Time{}, errors.ErrInvalidDateRange.
			WithReason(errors.ReasonRangeTooLong).
			WithDetails("range must not exceed one year")
	}
	if from.After(today) || last.After(today) {
		return time.Time{}, time.Time{}, errors.ErrInvalidDateRange.
			WithReason(errors.ReasonFutureDate).
			WithDetails("dates must not be in the future")
	}
	return from, last.AddDate(0, 0, 1), nil
}

// oneYearAfter clamps a leap day to February 28 instead of rolling into March.
func oneYearAfter(t time.Time) time.Time {
	next := t.AddDate(1, 0, 0)
	if next.Day() != t.Day() {
		next = next.AddDate(0, 0, -next.Day())
	}
	return next
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
