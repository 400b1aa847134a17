package domain

import "context"

type Person struct {
	ID             int64  `json:"person_id"`
	Name           string `json:"name"`
	Identification string `json:"identification"`
}

// Client is owned by the client-registration service; the ledger only reads it.
type Client struct {
	ID     int64   `json:"client_id"`
	Status string  `json:"status"`
	Person *Person `json:"person,omitempty"`
}

type ClientRepository interface {
	GetClient(ctx context.Context, id int64) (*Client, error)
}
