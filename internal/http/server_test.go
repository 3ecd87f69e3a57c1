package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/devpetry/vipi-matrizes/internal/crypto"
	"github.com/devpetry/vipi-matrizes/internal/db"
	"github.com/devpetry/vipi-matrizes/internal/model"
	"github.com/devpetry/vipi-matrizes/internal/repository"
)

var tokenPattern = regexp.MustCompile(`token=([0-9a-f]{64})`)

// recordingSender captures recovery emails instead of delivering them.
type recordingSender struct {
	mu     sync.Mutex
	bodies []string
}

func (r *recordingSender) Send(_ context.Context, _, _, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bodies = append(r.bodies, body)
	return nil
}

func (r *recordingSender) lastToken(t *testing.T) string {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.bodies) == 0 {
		t.Fatalf("no recovery email captured")
	}
	match := tokenPattern.FindStringSubmatch(r.bodies[len(r.bodies)-1])
	if match == nil {
		t.Fatalf("no token in recovery email")
	}
	return match[1]
}

type testEnv struct {
	app    *httptest.Server
	store  *repository.Store
	sender *recordingSender
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	pool := openTestDB(t)
	if pool == nil {
		return nil
	}
	t.Cleanup(pool.Close)

	store := repository.NewStore(pool)
	sender := &recordingSender{}
	server := NewServer(testConfig(), store, sender, nil, nil)
	app := httptest.NewServer(server.Router())
	t.Cleanup(app.Close)

	return &testEnv{app: app, store: store, sender: sender}
}

func openTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("MATRIZES_TEST_DB")
	if url == "" {
		url = os.Getenv("DATABASE_URL")
	}
	if url == "" {
		t.Skip("MATRIZES_TEST_DB or DATABASE_URL not set")
		return nil
	}
	ctx := context.Background()
	if err := db.Migrate(ctx, url); err != nil {
		t.Skipf("migrations failed: %v", err)
		return nil
	}
	pool, err := db.NewPool(ctx, url)
	if err != nil {
		t.Skipf("db unavailable: %v", err)
		return nil
	}
	return pool
}

func (env *testEnv) createUser(t *testing.T, password string, role model.Role) model.User {
	t.Helper()
	hash, err := crypto.HashPassword(password)
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}
	now := time.Now().UTC()
	user := model.User{
		ID:           uuid.NewString(),
		Name:         "Test User",
		Email:        uuid.NewString() + "@example.local",
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := env.store.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("create user error: %v", err)
	}
	return user
}

func postJSON(t *testing.T, url string, payload interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		t.Fatalf("encode error: %v", err)
	}
	resp, err := http.Post(url, "application/json", &buf)
	if err != nil {
		t.Fatalf("http error: %v", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	var body map[string]interface{}
	_ = json.Unmarshal(raw, &body)
	return resp, body
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	env := newTestEnv(t)
	if env == nil {
		return
	}
	user := env.createUser(t, "correct-password", model.RoleCollaborator)

	respWrongPassword, bodyWrongPassword := postJSON(t, env.app.URL+"/auth/login", map[string]string{
		"email":    user.Email,
		"password": "wrong-password",
	})
	respUnknownEmail, bodyUnknownEmail := postJSON(t, env.app.URL+"/auth/login", map[string]string{
		"email":    "nobody-" + uuid.NewString() + "@example.local",
		"password": "wrong-password",
	})

	if respWrongPassword.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong password: expected 401, got %d", respWrongPassword.StatusCode)
	}
	if respUnknownEmail.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unknown email: expected 401, got %d", respUnknownEmail.StatusCode)
	}
	if bodyWrongPassword["error"] != bodyUnknownEmail["error"] {
		t.Fatalf("failure bodies differ: %v vs %v", bodyWrongPassword, bodyUnknownEmail)
	}
}

func TestRecoveryResponseDoesNotRevealRegistration(t *testing.T) {
	env := newTestEnv(t)
	if env == nil {
		return
	}
	user := env.createUser(t, "some-password", model.RoleCollaborator)

	respKnown, bodyKnown := postJSON(t, env.app.URL+"/auth/recover", map[string]string{
		"email": user.Email,
	})
	respUnknown, bodyUnknown := postJSON(t, env.app.URL+"/auth/recover", map[string]string{
		"email": "nobody-" + uuid.NewString() + "@example.local",
	})

	if respKnown.StatusCode != http.StatusOK || respUnknown.StatusCode != http.StatusOK {
		t.Fatalf("expected 200/200, got %d/%d", respKnown.StatusCode, respUnknown.StatusCode)
	}
	if bodyKnown["message"] != bodyUnknown["message"] {
		t.Fatalf("messages differ: %v vs %v", bodyKnown, bodyUnknown)
	}
}

func TestRecoveryEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	if env == nil {
		return
	}
	user := env.createUser(t, "OldSecret1", model.RoleCollaborator)

	resp, _ := postJSON(t, env.app.URL+"/auth/recover", map[string]string{"email": user.Email})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("recover: expected 200, got %d", resp.StatusCode)
	}
	token := env.sender.lastToken(t)

	resp, _ = postJSON(t, env.app.URL+"/auth/reset", map[string]string{
		"token":    token,
		"password": "Secret123",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reset: expected 200, got %d", resp.StatusCode)
	}

	// Recovery fields are cleared after redemption.
	updated, err := env.store.GetUserByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("get user error: %v", err)
	}
	if updated.RecoveryTokenHash != nil || updated.RecoveryTokenExpiresAt != nil {
		t.Fatalf("expected recovery fields cleared")
	}

	resp, _ = postJSON(t, env.app.URL+"/auth/login", map[string]string{
		"email":    user.Email,
		"password": "Secret123",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login with new password: expected 200, got %d", resp.StatusCode)
	}

	resp, _ = postJSON(t, env.app.URL+"/auth/login", map[string]string{
		"email":    user.Email,
		"password": "OldSecret1",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("login with old password: expected 401, got %d", resp.StatusCode)
	}

	// A second redemption of the same token fails generically.
	resp, body := postJSON(t, env.app.URL+"/auth/reset", map[string]string{
		"token":    token,
		"password": "AnotherSecret1",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("reused token: expected 400, got %d", resp.StatusCode)
	}
	if body["error"] != "invalid_or_expired_token" {
		t.Fatalf("reused token: unexpected body %v", body)
	}
}

func TestRecoveryTokenSingleUseUnderConcurrency(t *testing.T) {
	env := newTestEnv(t)
	if env == nil {
		return
	}
	user := env.createUser(t, "OldSecret1", model.RoleCollaborator)

	resp, _ := postJSON(t, env.app.URL+"/auth/recover", map[string]string{"email": user.Email})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("recover: expected 200, got %d", resp.StatusCode)
	}
	token := env.sender.lastToken(t)

	const attempts = 2
	statuses := make([]int, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			payload, _ := json.Marshal(map[string]string{
				"token":    token,
				"password": "Secret123",
			})
			resp, err := http.Post(env.app.URL+"/auth/reset", "application/json", bytes.NewReader(payload))
			if err != nil {
				return
			}
			resp.Body.Close()
			statuses[i] = resp.StatusCode
		}(i)
	}
	wg.Wait()

	success, failure := 0, 0
	for _, status := range statuses {
		switch status {
		case http.StatusOK:
			success++
		case http.StatusBadRequest:
			failure++
		default:
			t.Fatalf("unexpected status %d", status)
		}
	}
	if success != 1 || failure != 1 {
		t.Fatalf("expected exactly one winner, got %d successes and %d failures", success, failure)
	}
}

func TestExpiredTokenIsRejected(t *testing.T) {
	env := newTestEnv(t)
	if env == nil {
		return
	}
	user := env.createUser(t, "OldSecret1", model.RoleCollaborator)

	token, err := crypto.NewRecoveryToken()
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	expired := time.Now().UTC().Add(-time.Millisecond)
	if err := env.store.SetRecoveryToken(context.Background(), user.ID, crypto.HashToken(token), expired); err != nil {
		t.Fatalf("set token error: %v", err)
	}

	resp, body := postJSON(t, env.app.URL+"/auth/reset", map[string]string{
		"token":    token,
		"password": "Secret123",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if body["error"] != "invalid_or_expired_token" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestNewTokenInvalidatesPreviousToken(t *testing.T) {
	env := newTestEnv(t)
	if env == nil {
		return
	}
	user := env.createUser(t, "OldSecret1", model.RoleCollaborator)

	resp, _ := postJSON(t, env.app.URL+"/auth/recover", map[string]string{"email": user.Email})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first recover: expected 200, got %d", resp.StatusCode)
	}
	firstToken := env.sender.lastToken(t)

	resp, _ = postJSON(t, env.app.URL+"/auth/recover", map[string]string{"email": user.Email})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("second recover: expected 200, got %d", resp.StatusCode)
	}
	secondToken := env.sender.lastToken(t)
	if firstToken == secondToken {
		t.Fatalf("expected a fresh token per request")
	}

	resp, _ = postJSON(t, env.app.URL+"/auth/reset", map[string]string{
		"token":    firstToken,
		"password": "Secret123",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("stale token: expected 400, got %d", resp.StatusCode)
	}

	resp, _ = postJSON(t, env.app.URL+"/auth/reset", map[string]string{
		"token":    secondToken,
		"password": "Secret123",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("fresh token: expected 200, got %d", resp.StatusCode)
	}
}

func TestResetRejectsPasswordReuse(t *testing.T) {
	env := newTestEnv(t)
	if env == nil {
		return
	}
	user := env.createUser(t, "SameSecret1", model.RoleCollaborator)

	resp, _ := postJSON(t, env.app.URL+"/auth/recover", map[string]string{"email": user.Email})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("recover: expected 200, got %d", resp.StatusCode)
	}
	token := env.sender.lastToken(t)

	resp, body := postJSON(t, env.app.URL+"/auth/reset", map[string]string{
		"token":    token,
		"password": "SameSecret1",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if body["error"] != "password_reuse" {
		t.Fatalf("unexpected body %v", body)
	}

	// The reuse rejection does not consume the token.
	resp, _ = postJSON(t, env.app.URL+"/auth/reset", map[string]string{
		"token":    token,
		"password": "DifferentSecret1",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 after retry, got %d", resp.StatusCode)
	}
}

func TestSoftDeletedUserCannotLogInOrRecover(t *testing.T) {
	env := newTestEnv(t)
	if env == nil {
		return
	}
	user := env.createUser(t, "Secret123", model.RoleCollaborator)

	deleted, err := env.store.SoftDeleteUser(context.Background(), user.ID, time.Now().UTC())
	if err != nil || !deleted {
		t.Fatalf("soft delete failed: deleted=%v err=%v", deleted, err)
	}

	resp, _ := postJSON(t, env.app.URL+"/auth/login", map[string]string{
		"email":    user.Email,
		"password": "Secret123",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for soft-deleted user, got %d", resp.StatusCode)
	}

	emails := len(env.sender.bodies)
	resp, _ = postJSON(t, env.app.URL+"/auth/recover", map[string]string{"email": user.Email})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected generic 200, got %d", resp.StatusCode)
	}
	if len(env.sender.bodies) != emails {
		t.Fatalf("expected no recovery email for soft-deleted user")
	}
}
