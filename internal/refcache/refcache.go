package refcache

import (
	"context"
	"fmt"
	"log"
	"strings"

	"laundriku/agent/internal/domain"
	"laundriku/agent/internal/localstore"
	"laundriku/agent/internal/remote"
)

// OnlineChecker gates cache refreshes on connectivity.
type OnlineChecker interface {
	Online() bool
}

// Cache maintains a local read-only mirror of the remote service catalog and
// customer directory so the capture UI works offline. Reads always hit the
// local store; Refresh is the only path that talks to the remote.
type Cache struct {
	store   localstore.Store
	remote  remote.Store
	checker OnlineChecker
}

func New(store localstore.Store, remoteStore remote.Store, checker OnlineChecker) *Cache {
	return &Cache{store: store, remote: remoteStore, checker: checker}
}

// Refresh replaces both mirrors from the remote. When offline it is a silent
// no-op: the stale mirror stays in place rather than being cleared. Each
// mirror is swapped atomically, so a reader never observes an empty window
// between old and new data.
func (c *Cache) Refresh(ctx context.Context) error {
	if !c.checker.Online() {
		log.Printf("[refcache] offline, keeping cached reference data")
		return nil
	}

	services, err := c.remote.ListServices(ctx)
	if err != nil {
		return fmt.Errorf("list remote services: %w", err)
	}
	cachedServices := make([]domain.CachedService, len(services))
	for i, svc := range services {
		cachedServices[i] = domain.CachedService{
			ID:       svc.ID,
			Name:     svc.Name,
			Type:     svc.Type,
			Price:    svc.Price,
			IsActive: svc.IsActive,
		}
	}
	if err := c.store.ReplaceCachedServices(ctx, cachedServices); err != nil {
		return fmt.Errorf("replace cached services: %w", err)
	}

	customers, err := c.remote.ListCustomers(ctx)
	if err != nil {
		return fmt.Errorf("list remote customers: %w", err)
	}
	cachedCustomers := make([]domain.CachedCustomer, len(customers))
	for i, cust := range customers {
		cachedCustomers[i] = domain.CachedCustomer{
			ID:          cust.ID,
			Name:        cust.Name,
			Phone:       cust.Phone,
			Address:     cust.Address,
			TotalOrders: cust.TotalOrders,
		}
	}
	if err := c.store.ReplaceCachedCustomers(ctx, cachedCustomers); err != nil {
		return fmt.Errorf("replace cached customers: %w", err)
	}

	log.Printf("[refcache] refreshed %d services, %d customers", len(cachedServices), len(cachedCustomers))
	return nil
}

// ListServices returns the cached catalog.
func (c *Cache) ListServices(ctx context.Context) ([]domain.CachedService, error) {
	return c.store.ListCachedServices(ctx)
}

// SearchCustomers matches case-insensitively on a name substring, or on a raw
// phone substring. An empty query returns the whole directory.
func (c *Cache) SearchCustomers(ctx context.Context, query string) ([]domain.CachedCustomer, error) {
	customers, err := c.store.ListCachedCustomers(ctx)
	if err != nil {
		return nil, err
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return customers, nil
	}

	lowered := strings.ToLower(query)
	matched := make([]domain.CachedCustomer, 0, len(customers))
	for _, cust := range customers {
		if strings.Contains(strings.ToLower(cust.Name), lowered) || strings.Contains(cust.Phone, query) {
			matched = append(matched, cust)
		}
	}
	return matched, nil
}
