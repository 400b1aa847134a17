package repository

import (
	"context"

	"github.com/lib/pq"

	"account-ledger/internal/errors"
)

const (
	pqUniqueViolation      = "23505"
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
	pqLockNotAvailable     = "55P03"
	pqQueryCanceled        = "57014"
)

// classify turns a driver error into an AppError. Contention becomes a conflict the
// caller may retry, an abandoned query is reported as canceled, anything else is internal.
func classify(err error, message string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqSerializationFailure, pqDeadlockDetected, pqLockNotAvailable:
			return errors.Conflict(err, message)
		case pqQueryCanceled:
			return errors.Canceled(err, message)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errors.Canceled(err, message)
	}
	return errors.Internal(err, message)
}

func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == pqUniqueViolation && (constraint == "" || pqErr.Constraint == constraint)
}
