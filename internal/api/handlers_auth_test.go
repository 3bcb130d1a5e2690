package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/benardngware/somanamimi2/internal/domain"
	"github.com/benardngware/somanamimi2/internal/store"
)

type authRepoStub struct {
	store.Repository

	usersByEmail map[string]*domain.User
	nextID       int64
	created      *domain.User
}

func (s *authRepoStub) CreateUser(ctx context.Context, user *domain.User) (int64, error) {
	if _, exists := s.usersByEmail[user.Email]; exists {
		return 0, store.ErrEmailTaken
	}
	s.nextID++
	s.created = user
	if s.usersByEmail == nil {
		s.usersByEmail = map[string]*domain.User{}
	}
	s.usersByEmail[user.Email] = user
	return s.nextID, nil
}

func (s *authRepoStub) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, ok := s.usersByEmail[email]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	return user, nil
}

func (s *authRepoStub) FindUserByID(ctx context.Context, userID int64) (*domain.User, error) {
	for _, user := range s.usersByEmail {
		if user.ID == userID {
			return user, nil
		}
	}
	return nil, store.ErrUserNotFound
}

func newAuthTestServer(t *testing.T, repo *authRepoStub) (string, *TokenManager) {
	t.Helper()
	tokens := NewTokenManager("test-secret", time.Hour)
	handlers := NewHandlers(repo, nil, nil, tokens)
	server := httptest.NewServer(Routes(handlers, tokens, repo))
	t.Cleanup(server.Close)
	return server.URL, tokens
}

func TestRegisterHandler_CreatesUserAndReturnsToken(t *testing.T) {
	repo := &authRepoStub{}
	serverURL, tokens := newAuthTestServer(t, repo)

	body := `{"name":"Jane","email":"jane@example.com","password":"hunter22"}`
	resp, err := http.Post(serverURL+"/auth/register", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	var auth domain.AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if auth.Token == "" {
		t.Fatal("expected a session token")
	}
	if auth.Role != domain.RoleUser {
		t.Fatalf("registration must never mint an admin, got role %q", auth.Role)
	}
	if repo.created == nil {
		t.Fatal("expected the user to be persisted")
	}
	if repo.created.PasswordHash == "hunter22" {
		t.Fatal("password must be stored hashed")
	}
	if bcrypt.CompareHashAndPassword([]byte(repo.created.PasswordHash), []byte("hunter22")) != nil {
		t.Fatal("stored hash does not verify against the password")
	}

	userID, err := tokens.ParseUserID(auth.Token)
	if err != nil || userID != auth.ID {
		t.Fatalf("token subject mismatch: id=%d err=%v", userID, err)
	}
}

func TestRegisterHandler_DuplicateEmailConflicts(t *testing.T) {
	repo := &authRepoStub{usersByEmail: map[string]*domain.User{
		"jane@example.com": {ID: 1, Email: "jane@example.com"},
	}}
	serverURL, _ := newAuthTestServer(t, repo)

	body := `{"name":"Jane","email":"jane@example.com","password":"hunter22"}`
	resp, err := http.Post(serverURL+"/auth/register", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for a taken email, got %d", resp.StatusCode)
	}
}

func TestRegisterHandler_MissingFields(t *testing.T) {
	serverURL, _ := newAuthTestServer(t, &authRepoStub{})

	resp, err := http.Post(serverURL+"/auth/register", "application/json", strings.NewReader(`{"email":"jane@example.com"}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing fields, got %d", resp.StatusCode)
	}
}

func TestLoginHandler_ValidCredentials(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("hunter22"), bcrypt.MinCost)
	repo := &authRepoStub{usersByEmail: map[string]*domain.User{
		"jane@example.com": {
			ID:              1,
			Name:            "Jane",
			Email:           "jane@example.com",
			PasswordHash:    string(hash),
			Role:            domain.RoleUser,
			HasSubscription: true,
		},
	}}
	serverURL, _ := newAuthTestServer(t, repo)

	resp, err := http.Post(serverURL+"/auth/login", "application/json",
		strings.NewReader(`{"email":"jane@example.com","password":"hunter22"}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var auth domain.AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if auth.Token == "" {
		t.Fatal("expected a session token")
	}
	if !auth.HasSubscription {
		t.Fatal("login response must surface the subscription flag")
	}
}

func TestLoginHandler_WrongPasswordAndUnknownEmailLookAlike(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("hunter22"), bcrypt.MinCost)
	repo := &authRepoStub{usersByEmail: map[string]*domain.User{
		"jane@example.com": {ID: 1, Email: "jane@example.com", PasswordHash: string(hash)},
	}}
	serverURL, _ := newAuthTestServer(t, repo)

	for _, body := range []string{
		`{"email":"jane@example.com","password":"wrong"}`,
		`{"email":"nobody@example.com","password":"hunter22"}`,
	} {
		resp, err := http.Post(serverURL+"/auth/login", "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("expected 401 for %s, got %d", body, resp.StatusCode)
		}
	}
}

func TestMeHandler_ReturnsFreshUserRow(t *testing.T) {
	repo := &authRepoStub{usersByEmail: map[string]*domain.User{
		"jane@example.com": {
			ID:              1,
			Name:            "Jane",
			Email:           "jane@example.com",
			Role:            domain.RoleUser,
			HasSubscription: true,
		},
	}}
	serverURL, tokens := newAuthTestServer(t, repo)

	token, err := tokens.Generate(repo.usersByEmail["jane@example.com"])
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	req, _ := http.NewRequest(http.MethodGet, serverURL+"/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var user domain.User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !user.HasSubscription {
		t.Fatal("expected the subscription flag straight from the store")
	}
}
