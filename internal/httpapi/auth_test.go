package httpapi

import (
	"sync"
	"testing"
	"time"

	"laundriku/agent/internal/domain"
)

func seededAuth(t *testing.T, ttl time.Duration) *AuthManager {
	t.Helper()
	auth := NewAuthManager("test-secret-0123456789-0123456789-ok", ttl)
	if err := auth.SeedUser("admin", "rahasia-admin", "admin"); err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	return auth
}

func TestTokenRoundTrip(t *testing.T) {
	auth := seededAuth(t, time.Hour)

	resp, err := auth.Login(domain.LoginRequest{Username: "Admin ", Password: "rahasia-admin"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp.Role != "admin" {
		t.Fatalf("role = %q, want admin", resp.Role)
	}

	actor, err := auth.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if actor.Username != "admin" || actor.Role != "admin" {
		t.Fatalf("actor = %+v", actor)
	}
	if actor.UserID != 1 {
		t.Fatalf("user id = %d, want 1", actor.UserID)
	}
}

func TestParseRejectsTamperedToken(t *testing.T) {
	auth := seededAuth(t, time.Hour)

	resp, err := auth.Login(domain.LoginRequest{Username: "admin", Password: "rahasia-admin"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	tampered := resp.AccessToken[:len(resp.AccessToken)-2] + "xx"
	if _, err := auth.ParseToken(tampered); err == nil {
		t.Fatal("tampered token accepted")
	}

	other := NewAuthManager("another-secret-entirely-0123456789", time.Hour)
	if _, err := other.ParseToken(resp.AccessToken); err == nil {
		t.Fatal("token signed with a different secret accepted")
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	auth := seededAuth(t, time.Millisecond)

	resp, err := auth.Login(domain.LoginRequest{Username: "admin", Password: "rahasia-admin"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	time.Sleep(5 * time.Millisecond)
	if _, err := auth.ParseToken(resp.AccessToken); err == nil {
		t.Fatal("expired token accepted")
	}
}

func TestCreateKasirValidation(t *testing.T) {
	auth := seededAuth(t, time.Hour)

	cases := []struct {
		name string
		req  domain.KasirCreateRequest
	}{
		{"short username", domain.KasirCreateRequest{Username: "ab", Password: "rahasia"}},
		{"username with space", domain.KasirCreateRequest{Username: "kasir dua", Password: "rahasia"}},
		{"short password", domain.KasirCreateRequest{Username: "kasir2", Password: "abc"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := auth.CreateKasir(tc.req); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}

	created, err := auth.CreateKasir(domain.KasirCreateRequest{Username: "Kasir2", Password: "rahasia"})
	if err != nil {
		t.Fatalf("create kasir: %v", err)
	}
	if created.Username != "kasir2" || created.Role != "kasir" {
		t.Fatalf("created = %+v", created)
	}

	if _, err := auth.CreateKasir(domain.KasirCreateRequest{Username: "kasir2", Password: "rahasia"}); err == nil {
		t.Fatal("duplicate username accepted")
	}

	if _, err := auth.Login(domain.LoginRequest{Username: "kasir2", Password: "rahasia"}); err != nil {
		t.Fatalf("new kasir cannot log in: %v", err)
	}
}

func TestCreateKasirConcurrentDuplicates(t *testing.T) {
	auth := seededAuth(t, time.Hour)

	const workers = 8
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := auth.CreateKasir(domain.KasirCreateRequest{
				Username: "kasir2",
				Password: "rahasia",
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		}
	}
	if succeeded != 1 {
		t.Fatalf("concurrent creates of one username succeeded %d times, want 1", succeeded)
	}
	if got := len(auth.ListKasir()); got != 1 {
		t.Fatalf("kasir accounts = %d, want 1", got)
	}
}

func TestSeedUserSkipsEmptyPassword(t *testing.T) {
	auth := NewAuthManager("test-secret-0123456789-0123456789-ok", time.Hour)
	if err := auth.SeedUser("kasir", "", "kasir"); err != nil {
		t.Fatalf("empty seed must be a no-op: %v", err)
	}
	if _, err := auth.Login(domain.LoginRequest{Username: "kasir", Password: ""}); err == nil {
		t.Fatal("unseeded account must not log in")
	}
}
