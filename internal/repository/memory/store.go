// Package memory is an in-process implementation of domain.Store with the same
// uniqueness and not-found semantics as the Postgres store.
//
// A transaction records its writes in a journal and reads through it to the committed
// data. Commit checks the journal against the committed data and merges it in one step:
// an account read for update or written must be unchanged since it was read, account
// numbers must still be free and movement sequences must still be unused. A failed check
// discards the journal with a conflict, the way a row lock or unique index would.
package memory

import (
	"context"
	"sync"
	"sync/atomic"

	"account-ledger/internal/domain"
	"account-ledger/internal/errors"
)

type state struct {
	accounts  map[int64]*domain.Account
	numbers   map[string]int64
	byClient  map[int64][]int64
	movements map[int64]*domain.Movement
	// chains indexes each account's movements by sequence; heads holds the highest one.
	chains  map[int64]map[int64]*domain.Movement
	heads   map[int64]*domain.Movement
	clients map[int64]*domain.Client

	// Ids are drawn outside commit and never handed out twice, like a database sequence.
	nextAccountID  atomic.Int64
	nextMovementID atomic.Int64
}

func newState() *state {
	return &state{
		accounts:  make(map[int64]*domain.Account),
		numbers:   make(map[string]int64),
		byClient:  make(map[int64][]int64),
		movements: make(map[int64]*domain.Movement),
		chains:    make(map[int64]map[int64]*domain.Movement),
		heads:     make(map[int64]*domain.Movement),
		clients:   make(map[int64]*domain.Client),
	}
}

// journal holds the writes of one open transaction. Stored records are never mutated
// in place, so pointers are shared freely between the journal and the committed state.
type journal struct {
	accounts map[int64]*domain.Account
	created  []int64
	numbers  map[string]int64
	// read maps every account locked or written to the committed record it was read at.
	read      map[int64]*domain.Account
	movements []*domain.Movement
	heads     map[int64]*domain.Movement
}

func newJournal() *journal {
	return &journal{
		accounts: make(map[int64]*domain.Account),
		numbers:  make(map[string]int64),
		read:     make(map[int64]*domain.Account),
		heads:    make(map[int64]*domain.Movement),
	}
}

type Store struct {
	mu   *sync.RWMutex
	data *state
	tx   *journal
}

var _ domain.Store = (*Store)(nil)

// NewStore returns an empty store holding the given read-only clients.
func NewStore(clients ...*domain.Client) *Store {
	s := &Store{
		mu:   &sync.RWMutex{},
		data: newState(),
	}
	for _, c := range clients {
		s.SeedClient(c)
	}
	return s
}

// SeedClient registers a client as if the client service had created it.
func (s *Store) SeedClient(c *domain.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.clients[c.ID] = copyClient(c)
}

func (s *Store) Account() domain.AccountRepository {
	return &accountRepository{store: s}
}

func (s *Store) Movement() domain.MovementRepository {
	return &movementRepository{store: s}
}

func (s *Store) Client() domain.ClientRepository {
	return &clientRepository{store: s}
}

// WithTransaction runs fn against a journaled view and commits it if fn succeeds.
// Other callers keep reading and writing while fn runs.
func (s *Store) WithTransaction(ctx context.Context, fn func(domain.Store) error) error {
	if s.tx != nil {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return errors.Canceled(err, "failed to begin transaction")
	}

	tx := s.begin()
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return errors.Canceled(err, "failed to commit transaction")
	}
	return s.commit(tx.tx)
}

func (s *Store) begin() *Store {
	return &Store{mu: s.mu, data: s.data, tx: newJournal()}
}

// write runs a single write in the open transaction, or in its own one.
func (s *Store) write(fn func(tx *Store) error) error {
	if s.tx != nil {
		return fn(s)
	}
	tx := s.begin()
	if err := fn(tx); err != nil {
		return err
	}
	return s.commit(tx.tx)
}

func (s *Store) view(fn func(st *state)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.data)
}

func (s *Store) commit(j *journal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.data

	for id, seen := range j.read {
		if st.accounts[id] != seen {
			return errors.ErrConcurrentModification.WithDetailsf("account %d changed since it was read", id)
		}
	}
	for number := range j.numbers {
		if _, taken := st.numbers[number]; taken {
			return errors.ErrDuplicateAccountNumber
		}
	}
	for _, m := range j.movements {
		if _, taken := st.chains[m.AccountID][m.Sequence]; taken {
			return errors.ErrConcurrentModification.WithDetailsf("sequence %d of account %d is taken", m.Sequence, m.AccountID)
		}
	}

	for _, id := range j.created {
		a := j.accounts[id]
		st.byClient[a.ClientID] = append(st.byClient[a.ClientID], id)
	}
	for id, a := range j.accounts {
		st.accounts[id] = a
	}
	for number, id := range j.numbers {
		st.numbers[number] = id
	}
	for _, m := range j.movements {
		st.movements[m.ID] = m
		chain, ok := st.chains[m.AccountID]
		if !ok {
			chain = make(map[int64]*domain.Movement)
			st.chains[m.AccountID] = chain
		}
		chain[m.Sequence] = m
		if head := st.heads[m.AccountID]; head == nil || m.Sequence > head.Sequence {
			st.heads[m.AccountID] = m
		}
	}
	return nil
}

// account returns the record visible to s: the journal's version first, then the
// committed one.
func (s *Store) account(id int64) (*domain.Account, bool) {
	if s.tx != nil {
		if a, ok := s.tx.accounts[id]; ok {
			return a, true
		}
	}
	var (
		a  *domain.Account
		ok bool
	)
	s.view(func(st *state) { a, ok = st.accounts[id] })
	return a, ok
}

// lockAccount remembers the committed version of an account so commit can tell
// whether someone else changed it in between.
func (s *Store) lockAccount(id int64) (*domain.Account, bool) {
	if a, ok := s.tx.accounts[id]; ok {
		return a, true
	}
	var (
		a  *domain.Account
		ok bool
	)
	s.view(func(st *state) { a, ok = st.accounts[id] })
	if ok {
		if _, seen := s.tx.read[id]; !seen {
			s.tx.read[id] = a
		}
	}
	return a, ok
}

func copyClient(c *domain.Client) *domain.Client {
	cp := *c
	if c.Person != nil {
		p := *c.Person
		cp.Person = &p
	}
	return &cp
}
