package auth

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeUsersFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "users.toml")
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("writing users file: %v", err)
	}
	return path
}

func TestPlaintextPasswordsHashedOnLoad(t *testing.T) {
	path := writeUsersFile(t, `
[[users]]
username = "dj"
password = "supersecret"
role = "user"
created = "2026-01-01 00:00:00"
`)

	store, err := NewUserStore(path)
	if err != nil {
		t.Fatalf("NewUserStore: %v", err)
	}

	if !store.Authenticate("dj", "supersecret") {
		t.Error("valid credentials rejected")
	}
	if store.Authenticate("dj", "wrong") {
		t.Error("wrong password accepted")
	}
	if store.Authenticate("nobody", "supersecret") {
		t.Error("unknown user accepted")
	}

	// The plaintext password must have been replaced on disk.
	saved, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading saved users file: %v", err)
	}
	if strings.Contains(string(saved), "supersecret") {
		t.Error("plaintext password still present in users file")
	}
}

func TestMissingUsersFileCreatesDefaultAdmin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.toml")

	store, err := NewUserStore(path)
	if err != nil {
		t.Fatalf("NewUserStore: %v", err)
	}
	if store.GetUser("admin") == nil {
		t.Error("default admin user not created")
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("users file not written: %v", err)
	}
}

func TestGetUserHidesPasswordHash(t *testing.T) {
	path := writeUsersFile(t, `
[[users]]
username = "dj"
password = "supersecret"
role = "admin"
created = "2026-01-01 00:00:00"
`)

	store, err := NewUserStore(path)
	if err != nil {
		t.Fatalf("NewUserStore: %v", err)
	}

	user := store.GetUser("dj")
	if user == nil {
		t.Fatal("GetUser returned nil for existing user")
	}
	if user.Password != "" {
		t.Error("GetUser exposed the password hash")
	}
	if user.Role != "admin" {
		t.Errorf("Role = %q, want admin", user.Role)
	}
}

func TestLoginLogoutFlow(t *testing.T) {
	path := writeUsersFile(t, `
[[users]]
username = "dj"
password = "supersecret"
role = "user"
created = "2026-01-01 00:00:00"
`)

	service, err := NewService(path, false)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	recorder := httptest.NewRecorder()
	session, err := service.Login(recorder, "dj", "supersecret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if session.Username != "dj" {
		t.Errorf("session username = %q", session.Username)
	}

	cookies := recorder.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != "curator_session" {
		t.Fatalf("expected curator_session cookie, got %v", cookies)
	}

	// Replaying the cookie authenticates the request.
	req := httptest.NewRequest(http.MethodGet, "/api/tracks", nil)
	req.AddCookie(cookies[0])
	got, ok := service.SessionFromRequest(req)
	if !ok || got.Username != "dj" {
		t.Errorf("SessionFromRequest = (%v, %v)", got, ok)
	}

	// After logout the session is gone.
	service.Logout(httptest.NewRecorder(), req)
	if _, ok := service.SessionFromRequest(req); ok {
		t.Error("session still valid after logout")
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	path := writeUsersFile(t, `
[[users]]
username = "dj"
password = "supersecret"
role = "user"
created = "2026-01-01 00:00:00"
`)

	service, err := NewService(path, false)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	if _, err := service.Login(httptest.NewRecorder(), "dj", "nope"); err == nil {
		t.Error("expected error for bad password")
	}
}
