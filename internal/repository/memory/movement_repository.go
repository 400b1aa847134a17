package memory

import (
	"cmp"
	"context"
	"slices"
	"time"

	"account-ledger/internal/domain"
	"account-ledger/internal/errors"
)

type movementRepository struct {
	store *Store
}

func (r *movementRepository) copyMovement(m *domain.Movement) *domain.Movement {
	cp := *m
	if a, ok := r.store.account(m.AccountID); ok {
		cp.AccountNumber = a.AccountNumber
	}
	return &cp
}

func (r *movementRepository) CreateMovement(ctx context.Context, m *domain.Movement) error {
	return r.store.write(func(tx *Store) error {
		if _, ok := tx.account(m.AccountID); !ok {
			return errors.ErrAccountNotFound
		}
		if tx.sequenceTaken(m.AccountID, m.Sequence) {
			return errors.ErrConcurrentModification
		}

		m.ID = tx.data.nextMovementID.Add(1)
		stored := *m
		stored.AccountNumber = ""
		tx.tx.movements = append(tx.tx.movements, &stored)
		if head := tx.tx.heads[m.AccountID]; head == nil || m.Sequence > head.Sequence {
			tx.tx.heads[m.AccountID] = &stored
		}
		return nil
	})
}

func (r *movementRepository) GetMovement(ctx context.Context, id int64) (*domain.Movement, error) {
	var (
		m  *domain.Movement
		ok bool
	)
	r.store.view(func(st *state) { m, ok = st.movements[id] })
	if !ok && r.store.tx != nil {
		for _, pending := range r.store.tx.movements {
			if pending.ID == id {
				m, ok = pending, true
			}
		}
	}
	if !ok {
		return nil, errors.ErrMovementNotFound
	}
	return r.copyMovement(m), nil
}

func (r *movementRepository) GetLatestMovement(ctx context.Context, accountID int64) (*domain.Movement, error) {
	var latest *domain.Movement
	r.store.view(func(st *state) { latest = st.heads[accountID] })
	if r.store.tx != nil {
		if head := r.store.tx.heads[accountID]; head != nil && (latest == nil || head.Sequence > latest.Sequence) {
			latest = head
		}
	}
	if latest == nil {
		return nil, nil
	}
	return r.copyMovement(latest), nil
}

func (r *movementRepository) ListMovementsByAccount(ctx context.Context, accountID int64) ([]*domain.Movement, error) {
	movements := r.collect([]int64{accountID}, func(*domain.Movement) bool { return true })
	slices.SortFunc(movements, func(a, b *domain.Movement) int { return cmp.Compare(b.Sequence, a.Sequence) })
	return movements, nil
}

func (r *movementRepository) ListMovementsByClient(ctx context.Context, clientID int64) ([]*domain.Movement, error) {
	movements := r.byClient(clientID, func(*domain.Movement) bool { return true })
	slices.Reverse(movements)
	return movements, nil
}

func (r *movementRepository) ListMovementsByClientInRange(ctx context.Context, clientID int64, from, to time.Time) ([]*domain.Movement, error) {
	return r.byClient(clientID, func(m *domain.Movement) bool {
		return !m.CreatedAt.Before(from) && m.CreatedAt.Before(to)
	}), nil
}

// byClient returns the client's matching movements oldest first.
func (r *movementRepository) byClient(clientID int64, keep func(*domain.Movement) bool) []*domain.Movement {
	movements := r.collect(r.store.clientAccountIDs(clientID), keep)
	slices.SortFunc(movements, func(a, b *domain.Movement) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return movements
}

// collect gathers the visible movements of the given accounts.
func (r *movementRepository) collect(accountIDs []int64, keep func(*domain.Movement) bool) []*domain.Movement {
	var matched []*domain.Movement
	r.store.view(func(st *state) {
		for _, id := range accountIDs {
			for _, m := range st.chains[id] {
				if keep(m) {
					matched = append(matched, m)
				}
			}
		}
	})
	if r.store.tx != nil {
		for _, m := range r.store.tx.movements {
			if slices.Contains(accountIDs, m.AccountID) && keep(m) {
				matched = append(matched, m)
			}
		}
	}

	movements := make([]*domain.Movement, 0, len(matched))
	for _, m := range matched {
		movements = append(movements, r.copyMovement(m))
	}
	return movements
}

func (s *Store) sequenceTaken(accountID, sequence int64) bool {
	for _, m := range s.tx.movements {
		if m.AccountID == accountID && m.Sequence == sequence {
			return true
		}
	}
	var taken bool
	s.view(func(st *state) { _, taken = st.chains[accountID][sequence] })
	return taken
}
