package memory

import (
	"context"

	"account-ledger/internal/domain"
	"account-ledger/internal/errors"
)

type clientRepository struct {
	store *Store
}

func (r *clientRepository) GetClient(ctx context.Context, id int64) (*domain.Client, error) {
	var (
		c  *domain.Client
		ok bool
	)
	r.store.view(func(st *state) { c, ok = st.clients[id] })
	if !ok {
		return nil, errors.ErrClientNotFound
	}
	return copyClient(c), nil
}
