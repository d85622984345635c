package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"laundriku/agent/internal/domain"
	"laundriku/agent/internal/events"
	localmemory "laundriku/agent/internal/localstore/memory"
	"laundriku/agent/internal/queue"
	"laundriku/agent/internal/refcache"
	remotememory "laundriku/agent/internal/remote/memory"
	"laundriku/agent/internal/syncer"
)

type onlineChecker bool

func (c onlineChecker) Online() bool { return bool(c) }

type testEnv struct {
	api     *API
	handler http.Handler
	local   *localmemory.Store
	remote  *remotememory.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	local := localmemory.New()
	if err := local.Init(context.Background()); err != nil {
		t.Fatalf("init local store: %v", err)
	}
	rm := remotememory.NewSeeded()
	publisher := events.NewNoopPublisher()

	q := queue.NewManager(local, publisher, 1)
	cache := refcache.New(local, rm, onlineChecker(true))
	reconciler := syncer.NewReconciler(local, rm, onlineChecker(true), publisher)

	auth := NewAuthManager("test-secret-0123456789-0123456789-ok", time.Hour)
	if err := auth.SeedUser("admin", "rahasia-admin", "admin"); err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	if err := auth.SeedUser("kasir", "rahasia-kasir", "kasir"); err != nil {
		t.Fatalf("seed kasir: %v", err)
	}

	api := New(q, cache, reconciler, auth, "http://127.0.0.1:3000")
	return &testEnv{api: api, handler: api.Handler(), local: local, remote: rm}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any, withCSRF bool) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if withCSRF {
		req.Header.Set("X-CSRF-Token", e.api.generateCSRFToken())
	}

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) login(t *testing.T, username, password string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{
		Username: username,
		Password: password,
	}, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp domain.LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if resp.AccessToken == "" {
		t.Fatal("empty access token")
	}
	return resp.AccessToken
}

func enqueueBody() domain.EnqueueRequest {
	return domain.EnqueueRequest{
		CustomerName: "Siti Rahma",
		Items: []domain.PendingItem{
			{ServiceName: "Cuci Kering", Qty: 2, Price: 7000, Subtotal: 14000},
		},
		TotalAmount:   14000,
		PaidAmount:    14000,
		PaymentMethod: domain.PaymentMethodCash,
		PaymentStatus: domain.PaymentStatusPaid,
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/healthz", "", nil, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{
		Username: "admin",
		Password: "salah",
	}, false)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestEnqueueRequiresAuth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/v1/transactions", "", enqueueBody(), true)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestEnqueueRequiresCSRF(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "kasir", "rahasia-kasir")

	rec := env.do(t, http.MethodPost, "/api/v1/transactions", token, enqueueBody(), false)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestCaptureAndSyncFlow(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "kasir", "rahasia-kasir")

	rec := env.do(t, http.MethodPost, "/api/v1/transactions", token, enqueueBody(), true)
	if rec.Code != http.StatusCreated {
		t.Fatalf("enqueue status = %d: %s", rec.Code, rec.Body.String())
	}
	var result domain.EnqueueResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.PendingCount != 1 {
		t.Fatalf("pending count = %d, want 1", result.PendingCount)
	}

	// Captured sale is attributed to the authenticated kasir, not the default.
	stored, err := env.local.GetPendingTransaction(context.Background(), result.LocalID)
	if err != nil {
		t.Fatalf("load stored transaction: %v", err)
	}
	if stored.OperatorID != 2 {
		t.Fatalf("operator id = %d, want 2 (kasir)", stored.OperatorID)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/transactions/pending-count", token, nil, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("pending-count status = %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/sync", token, nil, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("sync status = %d: %s", rec.Code, rec.Body.String())
	}
	var report domain.SyncReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.Succeeded != 1 || report.Failed != 0 {
		t.Fatalf("report = %+v", report)
	}
	if env.remote.TransactionCount() != 1 {
		t.Fatalf("remote transactions = %d, want 1", env.remote.TransactionCount())
	}

	rec = env.do(t, http.MethodGet, "/api/v1/sync/status", token, nil, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("sync status endpoint = %d", rec.Code)
	}
	var status domain.SyncStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.PendingCount != 0 || status.LastReport == nil {
		t.Fatalf("status = %+v", status)
	}
}

func TestEnqueueValidationSurfacesBadRequest(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "kasir", "rahasia-kasir")

	body := enqueueBody()
	body.TotalAmount = 1
	rec := env.do(t, http.MethodPost, "/api/v1/transactions", token, body, true)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body.String())
	}
}

func TestCatalogRefreshAndSearch(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "kasir", "rahasia-kasir")

	rec := env.do(t, http.MethodPost, "/api/v1/catalog/refresh", token, nil, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/api/v1/catalog/services", token, nil, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("services status = %d", rec.Code)
	}
	var services struct {
		Services []domain.CachedService `json:"services"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &services); err != nil {
		t.Fatalf("decode services: %v", err)
	}
	if len(services.Services) == 0 {
		t.Fatal("expected cached services after refresh")
	}

	rec = env.do(t, http.MethodGet, "/api/v1/customers/search?q=siti", token, nil, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("search status = %d", rec.Code)
	}
	var customers struct {
		Customers []domain.CachedCustomer `json:"customers"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &customers); err != nil {
		t.Fatalf("decode customers: %v", err)
	}
	if len(customers.Customers) != 1 {
		t.Fatalf("search hits = %d, want 1", len(customers.Customers))
	}
}

func TestKasirManagementIsAdminOnly(t *testing.T) {
	env := newTestEnv(t)

	kasirToken := env.login(t, "kasir", "rahasia-kasir")
	rec := env.do(t, http.MethodGet, "/api/v1/users/kasir", kasirToken, nil, false)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("kasir listing kasir accounts = %d, want 403", rec.Code)
	}

	adminToken := env.login(t, "admin", "rahasia-admin")
	rec = env.do(t, http.MethodPost, "/api/v1/users/kasir", adminToken, domain.KasirCreateRequest{
		Username: "kasir2",
		Password: "rahasia-kasir2",
	}, true)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create kasir status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/api/v1/users/kasir", adminToken, nil, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("list kasir status = %d", rec.Code)
	}
	var listing struct {
		Kasir []domain.KasirUser `json:"kasir"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listing); err != nil {
		t.Fatalf("decode listing: %v", err)
	}
	if len(listing.Kasir) != 2 {
		t.Fatalf("kasir accounts = %d, want 2", len(listing.Kasir))
	}

	// The new account can log in right away.
	env.login(t, "kasir2", "rahasia-kasir2")
}

func TestLoginRateLimit(t *testing.T) {
	env := newTestEnv(t)

	for i := 0; i < 5; i++ {
		rec := env.do(t, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{
			Username: "admin",
			Password: "salah",
		}, false)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d status = %d, want 401", i, rec.Code)
		}
	}

	rec := env.do(t, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{
		Username: "admin",
		Password: "salah",
	}, false)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
}
