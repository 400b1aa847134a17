package service

import (
	"context"
	"regexp"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/shopspring/decimal"

	"account-ledger/internal/domain"
	"account-ledger/internal/errors"
	"account-ledger/internal/lock"
	"account-ledger/internal/metrics"
)

func (s *ServiceTestSuite) TestCreateAccountRecordsInitialDeposit() {
	account := s.openAccount("100")

	s.Regexp(regexp.MustCompile(`^\d{10}$`), account.AccountNumber)
	s.Equal(domain.AccountStatusActive, account.Status)
	s.assertDecimal("100", s.balance(account))

	movements, err := s.ledger.GetMovementsByAccount(s.ctx, account.ID)
	s.Require().NoError(err)
	s.Require().Len(movements, 1)
	s.Equal(domain.MovementDeposit, movements[0].Kind)
	s.assertDecimal("100", movements[0].Amount)
	s.assertDecimal("100", movements[0].Balance)
}

func (s *ServiceTestSuite) TestCreateAccountWithoutDepositHasNoMovement() {
	account := s.openAccount("0")

	s.Zero(s.movementCount(account))
	s.assertDecimal("0", s.balance(account))
}

func (s *ServiceTestSuite) TestCreateAccountValidation() {
	cases := []struct {
		name string
		req  CreateAccountRequest
		want *errors.AppError
	}{
		{"blank type", CreateAccountRequest{AccountType: "  ", ClientID: testClientID}, errors.ErrInvalidInput},
		{"negative deposit", CreateAccountRequest{AccountType: "SAVINGS", InitialDeposit: decimal.NewFromInt(-1), ClientID: testClientID}, errors.ErrInvalidAmount},
		{"three decimals", CreateAccountRequest{AccountType: "SAVINGS", InitialDeposit: decimal.RequireFromString("1.001"), ClientID: testClientID}, errors.ErrInvalidAmount},
		{"missing client", CreateAccountRequest{AccountType: "SAVINGS"}, errors.ErrInvalidInput},
		{"unknown client", CreateAccountRequest{AccountType: "SAVINGS", ClientID: 99}, errors.ErrClientNotFound},
	}
	for _, tc := range cases {
		_, err := s.accounts.CreateAccount(s.ctx, tc.req)
		s.True(errors.Is(err, tc.want), "%s: got %v", tc.name, err)
	}

	accounts, err := s.accounts.ListAccounts(s.ctx)
	s.Require().NoError(err)
	s.Empty(accounts)
}

func (s *ServiceTestSuite) TestCreateAccountRetriesNumberCollisions() {
	s.accounts = NewAccountService(s.store, s.ledger, s.locker, fixedNumbers("0000000001", "0000000001", "0000000002"), s.logger)

	first := s.openAccount("0")
	second := s.openAccount("0")

	s.Equal("0000000001", first.AccountNumber)
	s.Equal("0000000002", second.AccountNumber)
}

func (s *ServiceTestSuite) TestCreateAccountFailsWhenNumbersAreExhausted() {
	s.accounts = NewAccountService(s.store, s.ledger, s.locker, fixedNumbers("0000000001"), s.logger)
	s.openAccount("0")

	_, err := s.accounts.CreateAccount(s.ctx, CreateAccountRequest{AccountType: "SAVINGS", ClientID: testClientID})
	s.True(errors.Is(err, errors.ErrAccountNumberExhausted))
	s.Equal(errors.KindFatal, errors.KindOf(err))
}

func (s *ServiceTestSuite) TestAccountLookups() {
	account := s.openAccount("5")

	byID, err := s.accounts.GetAccount(s.ctx, account.ID)
	s.Require().NoError(err)
	s.Equal(account.AccountNumber, byID.AccountNumber)

	byNumber, err := s.accounts.GetAccountByNumber(s.ctx, account.AccountNumber)
	s.Require().NoError(err)
	s.Equal(account.ID, byNumber.ID)

	owned, err := s.accounts.GetAccountsByClient(s.ctx, testClientID)
	s.Require().NoError(err)
	s.Len(owned, 1)

	none, err := s.accounts.GetAccountsByClient(s.ctx, 77)
	s.Require().NoError(err)
	s.Empty(none)

	_, err = s.accounts.GetAccount(s.ctx, 0)
	s.True(errors.Is(err, errors.ErrInvalidAccountID))
}

func (s *ServiceTestSuite) TestDeleteRequiresActiveAndZeroBalance() {
	account := s.openAccount("10")

	_, err := s.accounts.DeleteLogically(s.ctx, account.ID)
	s.True(errors.Is(err, errors.ErrAccountHasBalance))

	_, err = s.move(account, "-10")
	s.Require().NoError(err)

	deleted, err := s.accounts.DeleteLogically(s.ctx, account.ID)
	s.Require().NoError(err)
	s.Equal(domain.AccountStatusDeleted, deleted.Status)

	_, err = s.accounts.DeleteLogically(s.ctx, account.ID)
	s.True(errors.Is(err, errors.ErrAccountNotActive))

	_, err = s.move(account, "5")
	s.True(errors.Is(err, errors.ErrAccountNotActive))

	blocked := s.openAccount("0")
	_, err = s.accounts.ChangeStatus(s.ctx, blocked.ID, domain.AccountStatusBlocked)
	s.Require().NoError(err)
	_, err = s.accounts.DeleteLogically(s.ctx, blocked.ID)
	s.True(errors.Is(err, errors.ErrAccountNotActive))
}

func (s *ServiceTestSuite) TestReactivateOnlyFromDeleted() {
	account := s.openAccount("0")

	_, err := s.accounts.Reactivate(s.ctx, account.ID)
	s.True(errors.Is(err, errors.ErrAccountNotDeleted))
	s.Equal(errors.KindInvalidState, errors.KindOf(err))

	_, err = s.accounts.DeleteLogically(s.ctx, account.ID)
	s.Require().NoError(err)

	reactivated, err := s.accounts.Reactivate(s.ctx, account.ID)
	s.Require().NoError(err)
	s.Equal(domain.AccountStatusActive, reactivated.Status)

	_, err = s.move(account, "5")
	s.NoError(err)

	_, err = s.accounts.Reactivate(s.ctx, 404)
	s.True(errors.Is(err, errors.ErrAccountNotFound))
}

func (s *ServiceTestSuite) TestChangeStatus() {
	account := s.openAccount("10")

	blocked, err := s.accounts.ChangeStatus(s.ctx, account.ID, domain.AccountStatusBlocked)
	s.Require().NoError(err)
	s.Equal(domain.AccountStatusBlocked, blocked.Status)

	active, err := s.accounts.ChangeStatus(s.ctx, account.ID, domain.AccountStatusActive)
	s.Require().NoError(err)
	s.Equal(domain.AccountStatusActive, active.Status)

	_, err = s.accounts.ChangeStatus(s.ctx, account.ID, domain.AccountStatusDeleted)
	s.True(errors.Is(err, errors.ErrInvalidStatus))
	s.Equal(errors.KindInvalidInput, errors.KindOf(err))

	_, err = s.accounts.ChangeStatus(s.ctx, account.ID, domain.AccountStatus("FROZEN"))
	s.True(errors.Is(err, errors.ErrInvalidStatus))

	_, err = s.accounts.ChangeStatus(s.ctx, account.ID, domain.AccountStatusCancelled)
	s.True(errors.Is(err, errors.ErrAccountHasBalance))

	_, err = s.move(account, "-10")
	s.Require().NoError(err)
	cancelled, err := s.accounts.ChangeStatus(s.ctx, account.ID, domain.AccountStatusCancelled)
	s.Require().NoError(err)
	s.Equal(domain.AccountStatusCancelled, cancelled.Status)

	empty := s.openAccount("0")
	_, err = s.accounts.DeleteLogically(s.ctx, empty.ID)
	s.Require().NoError(err)
	_, err = s.accounts.ChangeStatus(s.ctx, empty.ID, domain.AccountStatusActive)
	s.True(errors.Is(err, errors.ErrAccountDeleted))
	s.Equal(errors.KindInvalidState, errors.KindOf(err))
}

func counterValue(c prometheus.Counter) float64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

func (s *ServiceTestSuite) TestChangeStatusToCurrentStatusRecordsNothing() {
	account := s.openAccount("0")
	blocked := metrics.AccountTransitionsTotal.WithLabelValues(string(domain.AccountStatusBlocked))
	active := metrics.AccountTransitionsTotal.WithLabelValues(string(domain.AccountStatusActive))

	before := counterValue(active)
	same, err := s.accounts.ChangeStatus(s.ctx, account.ID, domain.AccountStatusActive)
	s.Require().NoError(err)
	s.Equal(domain.AccountStatusActive, same.Status)
	s.Equal(before, counterValue(active))

	before = counterValue(blocked)
	_, err = s.accounts.ChangeStatus(s.ctx, account.ID, domain.AccountStatusBlocked)
	s.Require().NoError(err)
	s.Equal(before+1, counterValue(blocked))
}

func (s *ServiceTestSuite) TestTransitionsWaitForAccountLock() {
	account := s.openAccount("0")
	deleted := s.openAccount("0")
	_, err := s.accounts.DeleteLogically(s.ctx, deleted.ID)
	s.Require().NoError(err)

	for _, id := range []int64{account.ID, deleted.ID} {
		release, err := s.locker.Acquire(s.ctx, lock.AccountKey(id))
		s.Require().NoError(err)
		defer release()
	}

	transitions := map[string]func(context.Context) error{
		"change status": func(ctx context.Context) error {
			_, err := s.accounts.ChangeStatus(ctx, account.ID, domain.AccountStatusBlocked)
			return err
		},
		"delete": func(ctx context.Context) error {
			_, err := s.accounts.DeleteLogically(ctx, account.ID)
			return err
		},
		"reactivate": func(ctx context.Context) error {
			_, err := s.accounts.Reactivate(ctx, deleted.ID)
			return err
		},
	}
	for name, run := range transitions {
		ctx, cancel := context.WithTimeout(s.ctx, 50*time.Millisecond)
		err := run(ctx)
		cancel()
		s.Equal(errors.KindConflict, errors.KindOf(err), name)
	}

	current, err := s.accounts.GetAccount(s.ctx, account.ID)
	s.Require().NoError(err)
	s.Equal(domain.AccountStatusActive, current.Status)
	current, err = s.accounts.GetAccount(s.ctx, deleted.ID)
	s.Require().NoError(err)
	s.Equal(domain.AccountStatusDeleted, current.Status)
}

func (s *ServiceTestSuite) TestDeleteWaitsForMovementInFlight() {
	account := s.openAccount("0")
	store := newPausingStore(s.store)
	s.wire(store)

	moved := make(chan error, 1)
	go func() {
		_, err := s.move(account, "25")
		moved <- err
	}()
	select {
	case <-store.paused:
	case <-time.After(5 * time.Second):
		s.FailNow("movement never reached the store")
	}

	deleted := make(chan error, 1)
	go func() {
		_, err := s.accounts.DeleteLogically(s.ctx, account.ID)
		deleted <- err
	}()
	select {
	case err := <-deleted:
		s.FailNow("delete finished while a movement was in flight", "%v", err)
	case <-time.After(100 * time.Millisecond):
	}

	close(store.resume)
	s.Require().NoError(<-moved)
	err := <-deleted
	s.True(errors.Is(err, errors.ErrAccountHasBalance), "got %v", err)
	s.assertDecimal("25", s.balance(account))
}

func (s *ServiceTestSuite) TestEnsureDefaultAccount() {
	created, err := s.accounts.EnsureDefaultAccount(s.ctx, testClientID)
	s.Require().NoError(err)
	s.Require().NotNil(created)
	s.Equal(DefaultAccountType, created.AccountType)
	s.assertDecimal("0", s.balance(created))

	again, err := s.accounts.EnsureDefaultAccount(s.ctx, testClientID)
	s.Require().NoError(err)
	s.Nil(again)
}
