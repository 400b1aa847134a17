package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"account-ledger/internal/domain"
	"account-ledger/internal/errors"
)

type clientRepository struct {
	db     SQLExecutor
	logger *slog.Logger
}

// NewClientRepository reads clients registered by the client service. The ledger never writes them.
func NewClientRepository(db SQLExecutor, logger *slog.Logger) domain.ClientRepository {
	return &clientRepository{
		db:     db,
		logger: logger,
	}
}

func (r *clientRepository) GetClient(ctx context.Context, id int64) (*domain.Client, error) {
	query := `
		SELECT c.id, c.status, p.id, p.name, p.identification
		FROM clients c LEFT JOIN persons p ON p.id = c.person_id
		WHERE c.id = $1
	`

	var client domain.Client
	var personID sql.NullInt64
	var name, identification sql.NullString

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&client.ID,
		&client.Status,
		&personID,
		&name,
		&identification,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			r.logger.Warn("Client not found", "client_id", id)
			return nil, errors.ErrClientNotFound
		}
		r.logger.Error("Failed to get client", "client_id", id, "error", err)
		return nil, classify(err, "failed to get client")
	}

	if personID.Valid {
		client.Person = &domain.Person{
			ID:             personID.Int64,
			Name:           name.String,
			Identification: identification.String,
		}
	}
	return &client, nil
}
