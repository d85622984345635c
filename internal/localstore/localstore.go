package localstore

import (
	"context"
	"errors"

	"laundriku/agent/internal/domain"
)

var (
	// ErrNotInitialized is returned by any operation invoked before a
	// successful Init. This is a programmer error, not a retryable condition.
	ErrNotInitialized = errors.New("local store not initialized")
	ErrNotFound       = errors.New("not found")
	ErrInvalidRecord  = errors.New("invalid record")
)

// Store is the local durable store owning all offline collections. Puts are
// insert-or-replace by primary key; field-level updates are read-modify-write
// at the caller. The sync reconciler is the only writer of the synced and
// sync_error fields.
type Store interface {
	// Init is idempotent and safe to call from concurrent callers. It must
	// complete before any other operation.
	Init(ctx context.Context) error

	PutPendingTransaction(ctx context.Context, tx domain.PendingTransaction) error
	GetPendingTransaction(ctx context.Context, localID string) (*domain.PendingTransaction, error)
	// ListUnsyncedTransactions returns records with synced=false ordered by
	// creation time ascending, for predictable invoice sequencing.
	ListUnsyncedTransactions(ctx context.Context) ([]domain.PendingTransaction, error)
	DeletePendingTransaction(ctx context.Context, localID string) error
	// DeleteSyncedTransactions removes every record with synced=true and
	// reports how many were removed.
	DeleteSyncedTransactions(ctx context.Context) (int, error)
	CountUnsynced(ctx context.Context) (int, error)

	// ReplaceCachedServices swaps the whole cached set atomically: a reader
	// never observes the empty state between clear and rewrite.
	ReplaceCachedServices(ctx context.Context, services []domain.CachedService) error
	ListCachedServices(ctx context.Context) ([]domain.CachedService, error)
	ReplaceCachedCustomers(ctx context.Context, customers []domain.CachedCustomer) error
	ListCachedCustomers(ctx context.Context) ([]domain.CachedCustomer, error)

	PutSyncQueueItem(ctx context.Context, item domain.SyncQueueItem) error
	ListSyncQueueItems(ctx context.Context, typeTag string) ([]domain.SyncQueueItem, error)
	DeleteSyncQueueItem(ctx context.Context, id string) error

	Close() error
}
