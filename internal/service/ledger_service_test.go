package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"account-ledger/internal/domain"
	"account-ledger/internal/errors"
	"account-ledger/internal/lock"
)

func (s *ServiceTestSuite) TestBalanceIsZeroWithoutMovements() {
	account := s.openAccount("0")

	s.assertDecimal("0", s.balance(account))
	s.Zero(s.movementCount(account))
}

func (s *ServiceTestSuite) TestBalanceFollowsSignedSum() {
	account := s.openAccount("0")
	amounts := []string{"10.50", "200", "-0.50", "-110", "1000000", "-999999.99"}

	sum := decimal.Zero
	for _, amount := range amounts {
		_, err := s.move(account, amount)
		s.Require().NoError(err, amount)
		sum = sum.Add(decimal.RequireFromString(amount))
		s.True(sum.Equal(s.balance(account)), "after %s", amount)
	}
	s.assertDecimal("100.01", s.balance(account))
}

func (s *ServiceTestSuite) TestDepositThenWithdraw() {
	account := s.openAccount("100")

	deposit, err := s.move(account, "50")
	s.Require().NoError(err)
	s.Equal(domain.MovementDeposit, deposit.Kind)
	s.assertDecimal("150", deposit.Balance)

	withdrawal, err := s.move(account, "-30")
	s.Require().NoError(err)
	s.Equal(domain.MovementWithdrawal, withdrawal.Kind)
	s.assertDecimal("-30", withdrawal.Amount)
	s.assertDecimal("120", withdrawal.Balance)

	stored, err := s.ledger.GetMovement(s.ctx, withdrawal.ID)
	s.Require().NoError(err)
	s.assertDecimal("30", stored.Amount)
	s.Equal(account.AccountNumber, stored.AccountNumber)

	s.assertDecimal("120", s.balance(account))
	s.Equal(3, s.movementCount(account))
}

func (s *ServiceTestSuite) TestInsufficientFundsLeavesStoreUnchanged() {
	account := s.openAccount("20")

	_, err := s.move(account, "-20.01")
	s.True(errors.Is(err, errors.ErrInsufficientFunds))
	s.Equal(errors.KindInsufficientFunds, errors.KindOf(err))

	s.assertDecimal("20", s.balance(account))
	s.Equal(1, s.movementCount(account))

	_, err = s.move(account, "-20")
	s.Require().NoError(err)
	s.assertDecimal("0", s.balance(account))
}

func (s *ServiceTestSuite) TestAmountBounds() {
	account := s.openAccount("500")

	for _, amount := range []string{"0", "0.00", "0.001", "-0.009", "1000000.01", "-1000000.01", "12.345"} {
		_, err := s.move(account, amount)
		s.True(errors.Is(err, errors.ErrInvalidAmount), amount)
	}
	s.Equal(1, s.movementCount(account))

	for _, amount := range []string{"0.01", "-0.01", "1000000", "-1000000.00"} {
		_, err := s.move(account, amount)
		s.NoError(err, amount)
	}
}

func (s *ServiceTestSuite) TestUnknownAccountNumber() {
	_, err := s.ledger.RegisterMovement(s.ctx, "9999999999", decimal.NewFromInt(10))
	s.True(errors.Is(err, errors.ErrAccountNotFound))

	_, err = s.ledger.GetBalance(s.ctx, 404)
	s.True(errors.Is(err, errors.ErrAccountNotFound))

	_, err = s.ledger.GetMovementsByAccount(s.ctx, 404)
	s.True(errors.Is(err, errors.ErrAccountNotFound))

	_, err = s.ledger.GetMovement(s.ctx, 404)
	s.True(errors.Is(err, errors.ErrMovementNotFound))
}

func (s *ServiceTestSuite) TestNonActiveAccountsRejectMovements() {
	for _, status := range []domain.AccountStatus{domain.AccountStatusBlocked, domain.AccountStatusCancelled} {
		account := s.openAccount("0")
		_, err := s.accounts.ChangeStatus(s.ctx, account.ID, status)
		s.Require().NoError(err)

		_, err = s.move(account, "10")
		s.True(errors.Is(err, errors.ErrAccountNotActive), status)
		s.Equal(errors.KindInvalidState, errors.KindOf(err))
		s.Contains(errors.From(err).Details, string(status))
		s.Zero(s.movementCount(account))
	}
}

func (s *ServiceTestSuite) TestTimestampsNeverGoBackwards() {
	account := s.openAccount("10")
	first, err := s.move(account, "1")
	s.Require().NoError(err)

	s.clock.Set(first.CreatedAt.Add(-time.Hour))
	second, err := s.move(account, "1")
	s.Require().NoError(err)

	s.False(second.CreatedAt.Before(first.CreatedAt))
	s.Equal(first.Sequence+1, second.Sequence)
}

func (s *ServiceTestSuite) TestConcurrentMovementsKeepChainConsistent() {
	account := s.openAccount("1000")

	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		amount := "10"
		if i%2 == 1 {
			amount = "-5"
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.move(account, amount)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.NoError(err)
	}

	s.assertDecimal("1125", s.balance(account))

	movements, err := s.ledger.GetMovementsByAccount(s.ctx, account.ID)
	s.Require().NoError(err)
	s.Require().Len(movements, 51)

	// Newest first: walk the chain backwards.
	for i := 0; i < len(movements)-1; i++ {
		current, previous := movements[i], movements[i+1]
		s.Equal(previous.Sequence+1, current.Sequence)
		s.True(previous.Balance.Add(current.SignedAmount()).Equal(current.Balance),
			"link %d: %s %s -> %s", current.Sequence, previous.Balance, current.SignedAmount(), current.Balance)
	}
	s.Zero(s.locker.Len())
}

func (s *ServiceTestSuite) TestConflictsAreRetried() {
	account := s.openAccount("0")

	remaining := &atomic.Int32{}
	s.wire(conflictingStore{Store: s.store, remaining: remaining})

	remaining.Store(DefaultMovementRetries - 1)
	movement, err := s.move(account, "10")
	s.Require().NoError(err)
	s.Equal(int64(1), movement.Sequence)

	remaining.Store(DefaultMovementRetries)
	_, err = s.move(account, "10")
	s.True(errors.Is(err, errors.ErrConcurrentModification))
	s.Equal(errors.KindConflict, errors.KindOf(err))
	s.assertDecimal("10", s.balance(account))
}

func (s *ServiceTestSuite) TestLockWaitHonorsDeadline() {
	account := s.openAccount("10")

	release, err := s.locker.Acquire(s.ctx, lock.AccountKey(account.ID))
	s.Require().NoError(err)
	defer release()

	ctx, cancel := context.WithTimeout(s.ctx, 50*time.Millisecond)
	defer cancel()

	_, err = s.ledger.RegisterMovement(ctx, account.AccountNumber, decimal.NewFromInt(1))
	s.Equal(errors.KindConflict, errors.KindOf(err))
	s.Equal(1, s.movementCount(account))
}
