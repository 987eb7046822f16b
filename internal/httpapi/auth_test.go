package httpapi

import (
	"context"
	"strings"
	"testing"
	"time"

	"dukani/backend/internal/domain"
	"dukani/backend/internal/store/memory"
)

func newTestAuth(t *testing.T) (*AuthManager, *memory.Store) {
	t.Helper()
	repo := memory.New()
	now := time.Now().UTC()
	for _, u := range []domain.UserAccount{
		{Username: "admin", Password: "admin-secret", Role: "admin", Active: true, CreatedAt: now},
		{Username: "clerk", Password: "clerk-secret", Role: "clerk", Active: true, CreatedAt: now},
	} {
		if err := repo.CreateUser(context.Background(), u); err != nil {
			t.Fatalf("seed user %s: %v", u.Username, err)
		}
	}
	return NewAuthManager("unit-test-secret", time.Hour, repo), repo
}

func TestLoginIssuesParseableToken(t *testing.T) {
	auth, _ := newTestAuth(t)

	resp, err := auth.Login(domain.LoginRequest{Username: "Admin", Password: "admin-secret"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp.Role != "admin" {
		t.Fatalf("expected admin role, got %s", resp.Role)
	}
	if _, err := time.Parse(time.RFC3339, resp.ExpiresAt); err != nil {
		t.Fatalf("expires_at must be RFC3339, got %q", resp.ExpiresAt)
	}

	actor, err := auth.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if actor.Username != "admin" || actor.Role != "admin" {
		t.Fatalf("unexpected actor: %+v", actor)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	auth, _ := newTestAuth(t)

	if _, err := auth.Login(domain.LoginRequest{Username: "admin", Password: "wrong"}); err == nil {
		t.Fatalf("expected login failure for wrong password")
	}
	if _, err := auth.Login(domain.LoginRequest{Username: "nobody", Password: "admin-secret"}); err == nil {
		t.Fatalf("expected login failure for unknown user")
	}
}

func TestParseTokenRejectsForeignSignature(t *testing.T) {
	auth, _ := newTestAuth(t)
	other := NewAuthManager("a-completely-different-secret", time.Hour, nil)

	token, err := other.sign("admin", "admin", time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := auth.ParseToken(token); err == nil {
		t.Fatalf("token signed with another secret must be rejected")
	}
}

func TestBootstrapUpgradesPlaintextPasswords(t *testing.T) {
	_, repo := newTestAuth(t)

	users, err := repo.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	for _, u := range users {
		if !strings.HasPrefix(u.Password, "$2") {
			t.Fatalf("password for %s should be bcrypt-hashed after bootstrap, got %q", u.Username, u.Password)
		}
	}
}

func TestCreateClerkValidation(t *testing.T) {
	auth, _ := newTestAuth(t)

	cases := []struct {
		name string
		req  domain.ClerkCreateRequest
	}{
		{"short username", domain.ClerkCreateRequest{Username: "ab", Password: "secret1"}},
		{"username with space", domain.ClerkCreateRequest{Username: "new clerk", Password: "secret1"}},
		{"short password", domain.ClerkCreateRequest{Username: "newclerk", Password: "123"}},
		{"duplicate", domain.ClerkCreateRequest{Username: "clerk", Password: "secret1"}},
	}
	for _, tc := range cases {
		if _, err := auth.CreateClerk(tc.req); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestCreateClerkPersistsAndCanLogin(t *testing.T) {
	auth, repo := newTestAuth(t)

	created, err := auth.CreateClerk(domain.ClerkCreateRequest{Username: "Mireille", Password: "caisse2026"})
	if err != nil {
		t.Fatalf("create clerk: %v", err)
	}
	if created.Username != "mireille" || created.Role != "clerk" || !created.Active {
		t.Fatalf("unexpected clerk: %+v", created)
	}

	users, err := repo.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	found := false
	for _, u := range users {
		if u.Username == "mireille" {
			found = true
			if !strings.HasPrefix(u.Password, "$2") {
				t.Fatalf("stored clerk password must be hashed, got %q", u.Password)
			}
		}
	}
	if !found {
		t.Fatalf("clerk account must be persisted in the user store")
	}

	if _, err := auth.Login(domain.LoginRequest{Username: "mireille", Password: "caisse2026"}); err != nil {
		t.Fatalf("new clerk should be able to log in: %v", err)
	}
}

func TestSetClerkActiveBlocksLogin(t *testing.T) {
	auth, _ := newTestAuth(t)

	if err := auth.SetClerkActive("clerk", false); err != nil {
		t.Fatalf("deactivate clerk: %v", err)
	}
	if _, err := auth.Login(domain.LoginRequest{Username: "clerk", Password: "clerk-secret"}); err == nil {
		t.Fatalf("inactive clerk must not log in")
	}

	if err := auth.SetClerkActive("admin", false); err == nil {
		t.Fatalf("admin accounts must not be manageable through the clerk endpoint")
	}

	if err := auth.SetClerkActive("clerk", true); err != nil {
		t.Fatalf("reactivate clerk: %v", err)
	}
	if _, err := auth.Login(domain.LoginRequest{Username: "clerk", Password: "clerk-secret"}); err != nil {
		t.Fatalf("reactivated clerk should log in again: %v", err)
	}
}

func TestListClerksExcludesAdmins(t *testing.T) {
	auth, _ := newTestAuth(t)

	clerks := auth.ListClerks()
	if len(clerks) != 1 || clerks[0].Username != "clerk" {
		t.Fatalf("expected only the clerk account, got %+v", clerks)
	}
}
