package domain

import "context"

// Store is the unit of work shared by the services.
type Store interface {
	Account() AccountRepository
	Movement() MovementRepository
	Client() ClientRepository
	// WithTransaction runs fn against a transactional view of the store. Calling it on a
	// view that is already transactional joins the running transaction.
	WithTransaction(ctx context.Context, fn func(Store) error) error
}
