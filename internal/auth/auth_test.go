package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ziadkadry99/classrag/internal/access"
	"github.com/ziadkadry99/classrag/internal/db"
)

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "correct horse battery staple" {
		t.Fatal("hash equals plaintext")
	}
	if !CheckPassword("correct horse battery staple", hash) {
		t.Error("CheckPassword rejected the right password")
	}
	if CheckPassword("wrong", hash) {
		t.Error("CheckPassword accepted a wrong password")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	tokens := NewTokens("test-secret", time.Hour)

	signed, err := tokens.Issue("user-1", access.RoleStudent)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	principal, err := tokens.Verify(signed)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if principal.ID != "user-1" || principal.Role != access.RoleStudent {
		t.Errorf("principal: %+v", principal)
	}
}

func TestTokenExpired(t *testing.T) {
	tokens := NewTokens("test-secret", -time.Minute)

	signed, err := tokens.Issue("user-1", access.RoleStudent)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := tokens.Verify(signed); err == nil {
		t.Fatal("Verify accepted an expired token")
	}
}

func TestTokenWrongSecret(t *testing.T) {
	signed, err := NewTokens("secret-a", time.Hour).Issue("user-1", access.RoleTeacher)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := NewTokens("secret-b", time.Hour).Verify(signed); err == nil {
		t.Fatal("Verify accepted a token signed with a different secret")
	}
}

func TestTokenGarbage(t *testing.T) {
	tokens := NewTokens("test-secret", time.Hour)
	for _, s := range []string{"", "not-a-token", "a.b.c"} {
		if _, err := tokens.Verify(s); err == nil {
			t.Errorf("Verify(%q) succeeded", s)
		}
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewStore(database)
}

func TestStore_CreateAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatal(err)
	}
	created, err := store.CreateUser(ctx, User{
		Email:        "alice@school.test",
		Name:         "Alice",
		Role:         access.RoleTeacher,
		PasswordHash: hash,
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if created.ID == "" {
		t.Fatal("CreateUser did not assign an ID")
	}

	principal, err := store.Authenticate(ctx, "alice@school.test", "hunter2")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if principal.ID != created.ID || principal.Role != access.RoleTeacher {
		t.Errorf("principal: %+v", principal)
	}
}

func TestStore_AuthenticateFailuresAreOpaque(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	hash, _ := HashPassword("hunter2")
	if _, err := store.CreateUser(ctx, User{
		Email: "bob@school.test", Name: "Bob", Role: access.RoleStudent, PasswordHash: hash,
	}); err != nil {
		t.Fatal(err)
	}

	_, errUnknown := store.Authenticate(ctx, "nobody@school.test", "hunter2")
	_, errWrongPw := store.Authenticate(ctx, "bob@school.test", "wrong")
	if errUnknown == nil || errWrongPw == nil {
		t.Fatal("Authenticate accepted bad credentials")
	}
	if errUnknown.Error() != errWrongPw.Error() {
		t.Errorf("failure modes are distinguishable: %q vs %q", errUnknown, errWrongPw)
	}
}

func TestStore_RejectsInvalidRole(t *testing.T) {
	store := newTestStore(t)
	_, err := store.CreateUser(context.Background(), User{
		Email: "x@school.test", Name: "X", Role: "principal", PasswordHash: "h",
	})
	if err == nil {
		t.Fatal("CreateUser accepted an invalid role")
	}
}

func TestStore_DuplicateEmailRejected(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	u := User{Email: "dup@school.test", Name: "D", Role: access.RoleStudent, PasswordHash: "h"}
	if _, err := store.CreateUser(ctx, u); err != nil {
		t.Fatal(err)
	}
	if _, err := store.CreateUser(ctx, u); err == nil {
		t.Fatal("CreateUser accepted a duplicate email")
	}
}

func TestMiddleware(t *testing.T) {
	tokens := NewTokens("test-secret", time.Hour)

	var seen access.Principal
	handler := Middleware(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = PrincipalFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	// No header.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no header: status %d, want 401", rec.Code)
	}

	// Bad token.
	rec = httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad token: status %d, want 401", rec.Code)
	}

	// Valid token.
	signed, err := tokens.Issue("user-9", access.RoleStudent)
	if err != nil {
		t.Fatal(err)
	}
	rec = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid token: status %d, want 200", rec.Code)
	}
	if seen.ID != "user-9" || seen.Role != access.RoleStudent {
		t.Errorf("principal in context: %+v", seen)
	}
}

func TestRequireRole(t *testing.T) {
	tokens := NewTokens("test-secret", time.Hour)
	handler := Middleware(tokens)(RequireRole(access.RoleTeacher, access.RoleAdmin)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})))

	serve := func(role access.Role) int {
		signed, err := tokens.Issue("u", role)
		if err != nil {
			t.Fatal(err)
		}
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Bearer "+signed)
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := serve(access.RoleStudent); code != http.StatusForbidden {
		t.Errorf("student: status %d, want 403", code)
	}
	if code := serve(access.RoleTeacher); code != http.StatusOK {
		t.Errorf("teacher: status %d, want 200", code)
	}
	if code := serve(access.RoleAdmin); code != http.StatusOK {
		t.Errorf("admin: status %d, want 200", code)
	}
}
