package remote

import (
	"context"
	"errors"

	"laundriku/agent/internal/domain"
)

var ErrNotFound = errors.New("not found")

// Store is the agent's view of the remote relational store. The schema is a
// fixed external contract; the access pattern is conditional customer insert,
// transaction header insert, bulk item insert, and payment insert, plus the
// catalog/directory reads that feed the reference data cache.
type Store interface {
	Ping(ctx context.Context) error

	// FindCustomerByName does an exact name match. Duplicate names bind to an
	// arbitrary one of them; this is inherited behavior, kept deliberately.
	FindCustomerByName(ctx context.Context, name string) (*domain.RemoteCustomer, error)
	CreateCustomer(ctx context.Context, customer domain.RemoteCustomerCreate) (*domain.RemoteCustomer, error)

	// CreateTransaction inserts a header and returns the server-assigned ID
	// and invoice number.
	CreateTransaction(ctx context.Context, tx domain.RemoteTransactionCreate) (*domain.RemoteTransaction, error)
	// CreateTransactionItems is all-or-nothing: either every line lands or
	// none do.
	CreateTransactionItems(ctx context.Context, items []domain.RemoteItemCreate) error
	CreatePayment(ctx context.Context, payment domain.RemotePaymentCreate) error

	ListServices(ctx context.Context) ([]domain.RemoteService, error)
	ListCustomers(ctx context.Context) ([]domain.RemoteCustomer, error)
}
