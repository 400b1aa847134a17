package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"account-ledger/internal/domain"
	"account-ledger/internal/errors"
)

func newAccount(number string, clientID int64) *domain.Account {
	return &domain.Account{
		AccountNumber:  number,
		AccountType:    "SAVINGS",
		InitialDeposit: decimal.Zero,
		Status:         domain.AccountStatusActive,
		ClientID:       clientID,
	}
}

func deposit(accountID, seq int64, amount, balance string, at time.Time) *domain.Movement {
	return &domain.Movement{
		AccountID: accountID,
		Sequence:  seq,
		Kind:      domain.MovementDeposit,
		Amount:    decimal.RequireFromString(amount),
		Balance:   decimal.RequireFromString(balance),
		CreatedAt: at,
	}
}

func TestAccountNumberUniqueness(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	require.NoError(t, store.Account().CreateAccount(ctx, newAccount("0000000001", 1)))
	err := store.Account().CreateAccount(ctx, newAccount("0000000001", 2))
	assert.True(t, errors.Is(err, errors.ErrDuplicateAccountNumber))

	exists, err := store.Account().AccountNumberExists(ctx, "0000000001")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestReturnedAccountsAreCopies(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	account := newAccount("0000000001", 1)
	require.NoError(t, store.Account().CreateAccount(ctx, account))

	got, err := store.Account().GetAccount(ctx, account.ID)
	require.NoError(t, err)
	got.Status = domain.AccountStatusDeleted

	again, err := store.Account().GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AccountStatusActive, again.Status)
}

func TestUpdateAccountStatusIsConditional(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	account := newAccount("0000000001", 1)
	require.NoError(t, store.Account().CreateAccount(ctx, account))

	updated, err := store.Account().UpdateAccountStatus(ctx, account.ID, domain.AccountStatusActive, domain.AccountStatusBlocked)
	require.NoError(t, err)
	assert.Equal(t, domain.AccountStatusBlocked, updated.Status)

	_, err = store.Account().UpdateAccountStatus(ctx, account.ID, domain.AccountStatusActive, domain.AccountStatusCancelled)
	assert.True(t, errors.Is(err, errors.ErrConcurrentModification))

	_, err = store.Account().UpdateAccountStatus(ctx, 42, domain.AccountStatusActive, domain.AccountStatusBlocked)
	assert.True(t, errors.Is(err, errors.ErrAccountNotFound))
}

func TestMovementSequenceIsUniquePerAccount(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	a := newAccount("0000000001", 1)
	b := newAccount("0000000002", 1)
	require.NoError(t, store.Account().CreateAccount(ctx, a))
	require.NoError(t, store.Account().CreateAccount(ctx, b))

	now := time.Now().UTC()
	require.NoError(t, store.Movement().CreateMovement(ctx, deposit(a.ID, 1, "10", "10", now)))
	require.NoError(t, store.Movement().CreateMovement(ctx, deposit(b.ID, 1, "10", "10", now)))

	err := store.Movement().CreateMovement(ctx, deposit(a.ID, 1, "5", "15", now))
	assert.True(t, errors.Is(err, errors.ErrConcurrentModification))

	latest, err := store.Movement().GetLatestMovement(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), latest.Sequence)
	assert.Equal(t, "0000000001", latest.AccountNumber)
}

func TestLatestMovementFollowsSequence(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	a := newAccount("0000000001", 1)
	require.NoError(t, store.Account().CreateAccount(ctx, a))

	latest, err := store.Movement().GetLatestMovement(ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, latest)

	at := time.Now().UTC()
	require.NoError(t, store.Movement().CreateMovement(ctx, deposit(a.ID, 1, "10", "10", at)))
	require.NoError(t, store.Movement().CreateMovement(ctx, deposit(a.ID, 2, "5", "15", at)))

	latest, err = store.Movement().GetLatestMovement(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("15").Equal(latest.Balance))

	list, err := store.Movement().ListMovementsByAccount(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(2), list[0].Sequence)
}

func TestClientRangeIsHalfOpen(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	a := newAccount("0000000001", 7)
	other := newAccount("0000000002", 8)
	require.NoError(t, store.Account().CreateAccount(ctx, a))
	require.NoError(t, store.Account().CreateAccount(ctx, other))

	day := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Movement().CreateMovement(ctx, deposit(a.ID, 1, "10", "10", day)))
	require.NoError(t, store.Movement().CreateMovement(ctx, deposit(a.ID, 2, "10", "20", day.Add(23*time.Hour))))
	require.NoError(t, store.Movement().CreateMovement(ctx, deposit(a.ID, 3, "10", "30", day.AddDate(0, 0, 1))))
	require.NoError(t, store.Movement().CreateMovement(ctx, deposit(other.ID, 1, "10", "10", day)))

	inRange, err := store.Movement().ListMovementsByClientInRange(ctx, 7, day, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, inRange, 2)
	assert.Equal(t, int64(1), inRange[0].Sequence)
	assert.Equal(t, int64(2), inRange[1].Sequence)

	all, err := store.Movement().ListMovementsByClient(ctx, 7)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, int64(3), all[0].Sequence)
}

func TestTransactionCommitsOrDiscards(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	err := store.WithTransaction(ctx, func(tx domain.Store) error {
		if err := tx.Account().CreateAccount(ctx, newAccount("0000000001", 1)); err != nil {
			return err
		}
		return tx.WithTransaction(ctx, func(inner domain.Store) error {
			return errors.ErrInsufficientFunds
		})
	})
	assert.True(t, errors.Is(err, errors.ErrInsufficientFunds))

	_, err = store.Account().GetAccountByNumber(ctx, "0000000001")
	assert.True(t, errors.Is(err, errors.ErrAccountNotFound))

	err = store.WithTransaction(ctx, func(tx domain.Store) error {
		return tx.Account().CreateAccount(ctx, newAccount("0000000002", 1))
	})
	require.NoError(t, err)

	account, err := store.Account().GetAccountByNumber(ctx, "0000000002")
	require.NoError(t, err)
	assert.Equal(t, int64(2), account.ID, "ids consumed by a discarded transaction are not reused")
}

func TestTransactionReadsItsOwnWrites(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	err := store.WithTransaction(ctx, func(tx domain.Store) error {
		account := newAccount("0000000001", 5)
		require.NoError(t, tx.Account().CreateAccount(ctx, account))
		require.NoError(t, tx.Movement().CreateMovement(ctx, deposit(account.ID, 1, "40", "40", time.Now().UTC())))

		latest, err := tx.Movement().GetLatestMovement(ctx, account.ID)
		require.NoError(t, err)
		assert.Equal(t, "0000000001", latest.AccountNumber)

		owned, err := tx.Account().ListAccountsByClient(ctx, 5)
		require.NoError(t, err)
		assert.Len(t, owned, 1)

		_, err = store.Account().GetAccountByNumber(ctx, "0000000001")
		assert.True(t, errors.Is(err, errors.ErrAccountNotFound), "uncommitted writes stay private")
		return nil
	})
	require.NoError(t, err)

	list, err := store.Movement().ListMovementsByClient(ctx, 5)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, decimal.RequireFromString("40").Equal(list[0].Balance))
}

func TestCommitRejectsAccountChangedSinceRead(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	account := newAccount("0000000001", 1)
	require.NoError(t, store.Account().CreateAccount(ctx, account))

	err := store.WithTransaction(ctx, func(tx domain.Store) error {
		if _, err := tx.Account().GetAccountForUpdate(ctx, account.ID); err != nil {
			return err
		}
		_, err := store.Account().UpdateAccountStatus(ctx, account.ID, domain.AccountStatusActive, domain.AccountStatusBlocked)
		require.NoError(t, err)
		return tx.Movement().CreateMovement(ctx, deposit(account.ID, 1, "10", "10", time.Now().UTC()))
	})
	assert.True(t, errors.Is(err, errors.ErrConcurrentModification))

	latest, err := store.Movement().GetLatestMovement(ctx, account.ID)
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestCommitRejectsSequenceTakenMeanwhile(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	account := newAccount("0000000001", 1)
	require.NoError(t, store.Account().CreateAccount(ctx, account))
	now := time.Now().UTC()

	err := store.WithTransaction(ctx, func(tx domain.Store) error {
		if err := tx.Movement().CreateMovement(ctx, deposit(account.ID, 1, "10", "10", now)); err != nil {
			return err
		}
		require.NoError(t, store.Movement().CreateMovement(ctx, deposit(account.ID, 1, "99", "99", now)))
		return nil
	})
	assert.True(t, errors.Is(err, errors.ErrConcurrentModification))

	list, err := store.Movement().ListMovementsByAccount(ctx, account.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, decimal.RequireFromString("99").Equal(list[0].Balance))
}

func TestCommitRejectsNumberTakenMeanwhile(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	err := store.WithTransaction(ctx, func(tx domain.Store) error {
		if err := tx.Account().CreateAccount(ctx, newAccount("0000000001", 1)); err != nil {
			return err
		}
		require.NoError(t, store.Account().CreateAccount(ctx, newAccount("0000000001", 2)))
		return nil
	})
	assert.True(t, errors.Is(err, errors.ErrDuplicateAccountNumber))

	owned, err := store.Account().ListAccountsByClient(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, owned)
}

func TestCanceledContextDoesNotCommit(t *testing.T) {
	store := NewStore()
	ctx, cancel := context.WithCancel(context.Background())

	err := store.WithTransaction(ctx, func(tx domain.Store) error {
		cancel()
		return tx.Account().CreateAccount(ctx, newAccount("0000000001", 1))
	})
	assert.Equal(t, errors.RequestCanceled, errors.From(err).Code)

	exists, err := store.Account().AccountNumberExists(context.Background(), "0000000001")
	require.NoError(t, err)
	assert.False(t, exists)
}

func BenchmarkAppendToLargeStore(b *testing.B) {
	ctx := context.Background()
	store := NewStore()
	now := time.Now().UTC()

	accounts := make([]*domain.Account, 200)
	for i := range accounts {
		accounts[i] = newAccount(fmt.Sprintf("%010d", i+1), 1)
		require.NoError(b, store.Account().CreateAccount(ctx, accounts[i]))
	}
	sequences := make([]int64, len(accounts))
	for i := 0; i < 20_000; i++ {
		n := i % len(accounts)
		sequences[n]++
		require.NoError(b, store.Movement().CreateMovement(ctx, deposit(accounts[n].ID, sequences[n], "1", "1", now)))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		n := i % len(accounts)
		sequences[n]++
		err := store.WithTransaction(ctx, func(tx domain.Store) error {
			if _, err := tx.Account().GetAccountForUpdate(ctx, accounts[n].ID); err != nil {
				return err
			}
			if _, err := tx.Movement().GetLatestMovement(ctx, accounts[n].ID); err != nil {
				return err
			}
			return tx.Movement().CreateMovement(ctx, deposit(accounts[n].ID, sequences[n], "1", "1", now))
		})
		if err != nil {
			b.Fatal(err)
		}
	}
}

func TestSeededClients(t *testing.T) {
	store := NewStore(&domain.Client{
		ID:     3,
		Status: "ACTIVE",
		Person: &domain.Person{ID: 9, Name: "Marianela Montalvo", Identification: "0102030405"},
	})

	client, err := store.Client().GetClient(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "Marianela Montalvo", client.Person.Name)

	_, err = store.Client().GetClient(context.Background(), 4)
	assert.True(t, errors.Is(err, errors.ErrClientNotFound))
}
