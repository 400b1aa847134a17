package memory

import (
	"cmp"
	"context"
	"slices"
	"time"

	"account-ledger/internal/domain"
	"account-ledger/internal/errors"
)

type accountRepository struct {
	store *Store
}

func copyAccount(a *domain.Account) *domain.Account {
	cp := *a
	return &cp
}

func (r *accountRepository) CreateAccount(ctx context.Context, account *domain.Account) error {
	return r.store.write(func(tx *Store) error {
		if _, taken := tx.tx.numbers[account.AccountNumber]; taken {
			return errors.ErrDuplicateAccountNumber
		}
		var taken bool
		tx.view(func(st *state) { _, taken = st.numbers[account.AccountNumber] })
		if taken {
			return errors.ErrDuplicateAccountNumber
		}

		now := time.Now().UTC()
		account.ID = tx.data.nextAccountID.Add(1)
		account.CreatedAt = now
		account.UpdatedAt = now

		tx.tx.accounts[account.ID] = copyAccount(account)
		tx.tx.numbers[account.AccountNumber] = account.ID
		tx.tx.created = append(tx.tx.created, account.ID)
		return nil
	})
}

func (r *accountRepository) GetAccount(ctx context.Context, id int64) (*domain.Account, error) {
	a, ok := r.store.account(id)
	if !ok {
		return nil, errors.ErrAccountNotFound
	}
	return copyAccount(a), nil
}

// GetAccountForUpdate records the version read; commit fails if it changed meanwhile.
func (r *accountRepository) GetAccountForUpdate(ctx context.Context, id int64) (*domain.Account, error) {
	if r.store.tx == nil {
		return r.GetAccount(ctx, id)
	}
	a, ok := r.store.lockAccount(id)
	if !ok {
		return nil, errors.ErrAccountNotFound
	}
	return copyAccount(a), nil
}

func (r *accountRepository) GetAccountByNumber(ctx context.Context, number string) (*domain.Account, error) {
	id, ok := r.store.accountID(number)
	if !ok {
		return nil, errors.ErrAccountNotFound
	}
	return r.GetAccount(ctx, id)
}

func (r *accountRepository) AccountNumberExists(ctx context.Context, number string) (bool, error) {
	_, exists := r.store.accountID(number)
	return exists, nil
}

func (r *accountRepository) ListAccounts(ctx context.Context) ([]*domain.Account, error) {
	var ids []int64
	r.store.view(func(st *state) {
		ids = make([]int64, 0, len(st.accounts))
		for id := range st.accounts {
			ids = append(ids, id)
		}
	})
	if r.store.tx != nil {
		ids = append(ids, r.store.tx.created...)
	}
	return r.collect(ids, func(*domain.Account) bool { return true }), nil
}

func (r *accountRepository) ListAccountsByClient(ctx context.Context, clientID int64) ([]*domain.Account, error) {
	return r.collect(r.store.clientAccountIDs(clientID), func(*domain.Account) bool { return true }), nil
}

func (r *accountRepository) ListAccountsByClientAndStatus(ctx context.Context, clientID int64, status domain.AccountStatus) ([]*domain.Account, error) {
	return r.collect(r.store.clientAccountIDs(clientID), func(a *domain.Account) bool { return a.Status == status }), nil
}

func (r *accountRepository) UpdateAccountStatus(ctx context.Context, id int64, from, to domain.AccountStatus) (*domain.Account, error) {
	var out *domain.Account
	err := r.store.write(func(tx *Store) error {
		a, ok := tx.lockAccount(id)
		if !ok {
			return errors.ErrAccountNotFound
		}
		if a.Status != from {
			return errors.ErrConcurrentModification.WithDetailsf("account %d is no longer %s", id, from)
		}
		updated := copyAccount(a)
		updated.Status = to
		updated.UpdatedAt = time.Now().UTC()
		tx.tx.accounts[id] = updated
		out = copyAccount(updated)
		return nil
	})
	return out, err
}

func (r *accountRepository) collect(ids []int64, keep func(*domain.Account) bool) []*domain.Account {
	accounts := []*domain.Account{}
	for _, id := range ids {
		if a, ok := r.store.account(id); ok && keep(a) {
			accounts = append(accounts, copyAccount(a))
		}
	}
	slices.SortFunc(accounts, func(a, b *domain.Account) int { return cmp.Compare(a.ID, b.ID) })
	return accounts
}

func (s *Store) accountID(number string) (int64, bool) {
	if s.tx != nil {
		if id, ok := s.tx.numbers[number]; ok {
			return id, true
		}
	}
	var (
		id int64
		ok bool
	)
	s.view(func(st *state) { id, ok = st.numbers[number] })
	return id, ok
}

// clientAccountIDs lists the ids of the client's accounts visible to s.
func (s *Store) clientAccountIDs(clientID int64) []int64 {
	var ids []int64
	s.view(func(st *state) { ids = slices.Clone(st.byClient[clientID]) })
	if s.tx != nil {
		for _, id := range s.tx.created {
			if s.tx.accounts[id].ClientID == clientID {
				ids = append(ids, id)
			}
		}
	}
	return ids
}
