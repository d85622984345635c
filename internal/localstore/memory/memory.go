package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"laundriku/agent/internal/domain"
	"laundriku/agent/internal/localstore"
)

// Store is an in-memory localstore.Store for tests and dev mode. It enforces
// the same init-before-use contract as the durable implementation.
type Store struct {
	mu          sync.RWMutex
	initialized bool
	pending     map[string]domain.PendingTransaction
	services    map[int64]domain.CachedService
	customers   map[int64]domain.CachedCustomer
	syncQueue   map[string]domain.SyncQueueItem
}

func New() *Store {
	return &Store{}
}

func (s *Store) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}
	s.pending = make(map[string]domain.PendingTransaction)
	s.services = make(map[int64]domain.CachedService)
	s.customers = make(map[int64]domain.CachedCustomer)
	s.syncQueue = make(map[string]domain.SyncQueueItem)
	s.initialized = true
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialized = false
	return nil
}

func (s *Store) PutPendingTransaction(_ context.Context, tx domain.PendingTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return localstore.ErrNotInitialized
	}
	if tx.LocalID == "" || len(tx.Items) == 0 {
		return localstore.ErrInvalidRecord
	}

	tx.Items = append([]domain.PendingItem(nil), tx.Items...)
	s.pending[tx.LocalID] = tx
	return nil
}

func (s *Store) GetPendingTransaction(_ context.Context, localID string) (*domain.PendingTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, localstore.ErrNotInitialized
	}
	tx, ok := s.pending[localID]
	if !ok {
		return nil, localstore.ErrNotFound
	}
	copied := tx
	copied.Items = append([]domain.PendingItem(nil), tx.Items...)
	return &copied, nil
}

func (s *Store) ListUnsyncedTransactions(_ context.Context) ([]domain.PendingTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, localstore.ErrNotInitialized
	}

	unsynced := make([]domain.PendingTransaction, 0, len(s.pending))
	for _, tx := range s.pending {
		if tx.Synced {
			continue
		}
		copied := tx
		copied.Items = append([]domain.PendingItem(nil), tx.Items...)
		unsynced = append(unsynced, copied)
	}
	sort.Slice(unsynced, func(i, j int) bool {
		return unsynced[i].CreatedAt.Before(unsynced[j].CreatedAt)
	})
	return unsynced, nil
}

func (s *Store) DeletePendingTransaction(_ context.Context, localID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return localstore.ErrNotInitialized
	}
	delete(s.pending, localID)
	return nil
}

func (s *Store) DeleteSyncedTransactions(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return 0, localstore.ErrNotInitialized
	}

	removed := 0
	for id, tx := range s.pending {
		if tx.Synced {
			delete(s.pending, id)
			removed++
		}
	}
	return removed, nil
}

func (s *Store) CountUnsynced(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return 0, localstore.ErrNotInitialized
	}

	count := 0
	for _, tx := range s.pending {
		if !tx.Synced {
			count++
		}
	}
	return count, nil
}

func (s *Store) ReplaceCachedServices(_ context.Context, services []domain.CachedService) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return localstore.ErrNotInitialized
	}

	replacement := make(map[int64]domain.CachedService, len(services))
	for _, svc := range services {
		replacement[svc.ID] = svc
	}
	s.services = replacement
	return nil
}

func (s *Store) ListCachedServices(_ context.Context) ([]domain.CachedService, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, localstore.ErrNotInitialized
	}

	services := make([]domain.CachedService, 0, len(s.services))
	for _, svc := range s.services {
		services = append(services, svc)
	}
	sort.Slice(services, func(i, j int) bool {
		return strings.ToLower(services[i].Name) < strings.ToLower(services[j].Name)
	})
	return services, nil
}

func (s *Store) ReplaceCachedCustomers(_ context.Context, customers []domain.CachedCustomer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return localstore.ErrNotInitialized
	}

	replacement := make(map[int64]domain.CachedCustomer, len(customers))
	for _, c := range customers {
		replacement[c.ID] = c
	}
	s.customers = replacement
	return nil
}

func (s *Store) ListCachedCustomers(_ context.Context) ([]domain.CachedCustomer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, localstore.ErrNotInitialized
	}

	customers := make([]domain.CachedCustomer, 0, len(s.customers))
	for _, c := range s.customers {
		customers = append(customers, c)
	}
	sort.Slice(customers, func(i, j int) bool {
		return strings.ToLower(customers[i].Name) < strings.ToLower(customers[j].Name)
	})
	return customers, nil
}

func (s *Store) PutSyncQueueItem(_ context.Context, item domain.SyncQueueItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return localstore.ErrNotInitialized
	}
	if item.ID == "" || item.Type == "" || item.Action == "" {
		return localstore.ErrInvalidRecord
	}
	s.syncQueue[item.ID] = item
	return nil
}

func (s *Store) ListSyncQueueItems(_ context.Context, typeTag string) ([]domain.SyncQueueItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, localstore.ErrNotInitialized
	}

	items := make([]domain.SyncQueueItem, 0, len(s.syncQueue))
	for _, item := range s.syncQueue {
		if typeTag != "" && item.Type != typeTag {
			continue
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}

func (s *Store) DeleteSyncQueueItem(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return localstore.ErrNotInitialized
	}
	delete(s.syncQueue, id)
	return nil
}
