package refcache

import (
	"context"
	"testing"

	"laundriku/agent/internal/domain"
	localmemory "laundriku/agent/internal/localstore/memory"
	remotememory "laundriku/agent/internal/remote/memory"
)

type staticChecker bool

func (c staticChecker) Online() bool { return bool(c) }

func newTestCache(t *testing.T, online bool) (*Cache, *localmemory.Store, *remotememory.Store) {
	t.Helper()
	local := localmemory.New()
	if err := local.Init(context.Background()); err != nil {
		t.Fatalf("init local store: %v", err)
	}
	rm := remotememory.NewSeeded()
	return New(local, rm, staticChecker(online)), local, rm
}

func TestRefreshMirrorsRemoteData(t *testing.T) {
	cache, _, _ := newTestCache(t, true)
	ctx := context.Background()

	if err := cache.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	services, err := cache.ListServices(ctx)
	if err != nil {
		t.Fatalf("list services: %v", err)
	}
	if len(services) == 0 {
		t.Fatal("expected mirrored services")
	}

	customers, err := cache.SearchCustomers(ctx, "")
	if err != nil {
		t.Fatalf("search customers: %v", err)
	}
	if len(customers) != 3 {
		t.Fatalf("customers = %d, want 3", len(customers))
	}
}

func TestRefreshOfflineKeepsStaleMirror(t *testing.T) {
	local := localmemory.New()
	if err := local.Init(context.Background()); err != nil {
		t.Fatalf("init local store: %v", err)
	}
	rm := remotememory.NewSeeded()
	ctx := context.Background()

	online := New(local, rm, staticChecker(true))
	if err := online.Refresh(ctx); err != nil {
		t.Fatalf("initial refresh: %v", err)
	}

	// Same local store, now offline: a refresh must not wipe the mirror.
	offline := New(local, rm, staticChecker(false))
	if err := offline.Refresh(ctx); err != nil {
		t.Fatalf("offline refresh must be a silent no-op, got %v", err)
	}

	services, err := offline.ListServices(ctx)
	if err != nil {
		t.Fatalf("list services: %v", err)
	}
	if len(services) == 0 {
		t.Fatal("offline refresh cleared the mirror")
	}
	customers, err := offline.SearchCustomers(ctx, "Siti")
	if err != nil {
		t.Fatalf("offline search: %v", err)
	}
	if len(customers) != 1 {
		t.Fatalf("offline search hits = %d, want 1", len(customers))
	}
}

func TestRefreshReplacesRemovedRows(t *testing.T) {
	cache, _, _ := newTestCache(t, true)
	ctx := context.Background()

	if err := cache.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	before, _ := cache.ListServices(ctx)

	// Fresh remote with no catalog: the mirror must shrink, not merge.
	small := remotememory.New()
	if _, err := small.CreateCustomer(ctx, domain.RemoteCustomerCreate{Name: "Baru"}); err != nil {
		t.Fatalf("seed customer: %v", err)
	}
	cache.remote = small

	if err := cache.Refresh(ctx); err != nil {
		t.Fatalf("second refresh: %v", err)
	}
	after, err := cache.ListServices(ctx)
	if err != nil {
		t.Fatalf("list services: %v", err)
	}
	if len(after) >= len(before) {
		t.Fatalf("mirror not replaced: before=%d after=%d", len(before), len(after))
	}
	customers, err := cache.SearchCustomers(ctx, "")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(customers) != 1 || customers[0].Name != "Baru" {
		t.Fatalf("customers after replace = %+v", customers)
	}
}

func TestSearchCustomers(t *testing.T) {
	cache, _, _ := newTestCache(t, true)
	ctx := context.Background()

	if err := cache.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	cases := []struct {
		query string
		want  int
	}{
		{"siti", 1},
		{"SALIM", 1},
		{"0812", 2},
		{"tidak-ada", 0},
		{"  ", 3},
	}

	for _, tc := range cases {
		got, err := cache.SearchCustomers(ctx, tc.query)
		if err != nil {
			t.Fatalf("search %q: %v", tc.query, err)
		}
		if len(got) != tc.want {
			t.Fatalf("search %q = %d hits, want %d", tc.query, len(got), tc.want)
		}
	}
}
