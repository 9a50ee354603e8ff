package http_handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/evgeniivall/notes-auth-micro/internal/application/auth"
	"github.com/evgeniivall/notes-auth-micro/internal/application/users"
	"github.com/evgeniivall/notes-auth-micro/internal/domain"
	"github.com/evgeniivall/notes-auth-micro/internal/infrastructure/memory"
	"github.com/evgeniivall/notes-auth-micro/internal/infrastructure/security"
	"github.com/evgeniivall/notes-auth-micro/internal/transport/http/middleware"
	"github.com/evgeniivall/notes-auth-micro/internal/transport/http/response"
)

// plainHasher keeps handler tests fast; bcrypt has its own tests.
type plainHasher struct{}

func (plainHasher) Hash(_ context.Context, pw string) (string, error) { return "plain:" + pw, nil }

func (plainHasher) Compare(_ context.Context, hash, pw string) error {
	if hash != "plain:"+pw {
		return errors.New("mismatch")
	}
	return nil
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// failingNotifier rejects every password reset email.
type failingNotifier struct{ *memory.LogNotifier }

func (failingNotifier) NotifyPasswordReset(context.Context, auth.PasswordResetEvent) error {
	return errors.New("smtp down")
}

// auditLog records audit events by action.
type auditLog struct {
	mu      sync.Mutex
	entries []map[string]string
}

func (a *auditLog) record(action string, fields map[string]string) {
	e := map[string]string{"action": action}
	for k, v := range fields {
		e[k] = v
	}
	a.mu.Lock()
	a.entries = append(a.entries, e)
	a.mu.Unlock()
}

func (a *auditLog) last(action string) (map[string]string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := len(a.entries) - 1; i >= 0; i-- {
		if a.entries[i]["action"] == action {
			return a.entries[i], true
		}
	}
	return nil, false
}

type harness struct {
	t        *testing.T
	clock    *testClock
	repo     *memory.UserRepo
	notifier *memory.LogNotifier
	audits   *auditLog
	handler  http.Handler
}

func newHarness(t *testing.T) *harness {
	return newHarnessWithNotifier(t, nil)
}

func newHarnessWithNotifier(t *testing.T, override auth.Notifier) *harness {
	t.Helper()

	clock := &testClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	repo := memory.NewUserRepo()
	notifier := memory.NewLogNotifier(zerolog.Nop())

	var n auth.Notifier = notifier
	if override != nil {
		n = override
	}

	signer := security.NewJWTSigner("test-secret-that-is-long-enough", "notes-auth", 90).WithClock(clock.Now)
	resets := security.NewResetTokens(10 * time.Minute).WithClock(clock.Now)

	audits := &auditLog{}
	authSvc := auth.NewService(repo, plainHasher{}, signer, resets, n, auth.Config{AppURL: "https://notes.test"}).
		WithClock(clock.Now).
		WithAsync(func(f func()) { f() }).
		WithAudit(audits.record)
	usersSvc := users.NewService(repo, plainHasher{}).WithClock(clock.Now)

	ah := NewAuthHandler(authSvc, false)
	ah.now = clock.Now
	uh := NewUsersHandler(usersSvc)

	guard := middleware.Auth(signer, repo, response.WriteError)
	adminOnly := middleware.RestrictTo(response.WriteError, domain.RoleAdmin)

	r := chi.NewRouter()
	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/signup", ah.Signup)
		r.Post("/login", ah.Login)
		r.Post("/logout", ah.Logout)
		r.Post("/forgetPassword", ah.ForgetPassword)
		r.Patch("/resetPassword/{token}", ah.ResetPassword)
		r.Group(func(r chi.Router) {
			r.Use(guard)
			r.Post("/introspect", ah.Introspect)
			r.Post("/authenticate", ah.Introspect)
			r.Patch("/changePassword", ah.ChangePassword)
			r.Patch("/changePassword/{userId}", ah.ChangePassword)
		})
	})
	r.Route("/api/v1/users", func(r chi.Router) {
		r.Use(guard)
		r.Get("/me", uh.Me)
		r.Group(func(r chi.Router) {
			r.Use(adminOnly)
			r.Get("/", uh.List)
			r.Post("/", uh.Create)
			r.Get("/{id}", uh.Get)
			r.Patch("/{id}", uh.Update)
			r.Delete("/{id}", uh.Delete)
		})
	})

	return &harness{t: t, clock: clock, repo: repo, notifier: notifier, audits: audits, handler: r}
}

// do sends a JSON request; token, if set, goes into the Authorization header.
func (h *harness) do(method, path, token string, body any) *httptest.ResponseRecorder {
	h.t.Helper()

	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, mustJSONBody(h.t, body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	h.handler.ServeHTTP(rr, req)
	return rr
}

func (h *harness) signup(name, email, pw string) (string, string) {
	h.t.Helper()

	rr := h.do(http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"name": name, "email": email, "password": pw,
	})
	if rr.Code != http.StatusCreated {
		h.t.Fatalf("signup: expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	var data struct {
		User  struct{ ID string } `json:"user"`
		Token string              `json:"token"`
	}
	mustReadEnvelope(h.t, rr.Body, &data)
	return data.User.ID, data.Token
}

// seedAdmin stores an admin directly and returns a session token for it.
func (h *harness) seedAdmin() (domain.User, string) {
	h.t.Helper()

	u, err := h.repo.Create(context.Background(), domain.User{
		ID:           uuid.NewString(),
		Name:         "Root Admin",
		Email:        "admin@notes.test",
		PasswordHash: "plain:admin-pass-123",
		Role:         domain.RoleAdmin,
		Active:       true,
	})
	if err != nil {
		h.t.Fatalf("seed admin: %v", err)
	}

	rr := h.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": u.Email, "password": "admin-pass-123",
	})
	if rr.Code != http.StatusOK {
		h.t.Fatalf("admin login: %d %s", rr.Code, rr.Body.String())
	}
	var data struct{ Token string }
	mustReadEnvelope(h.t, rr.Body, &data)
	return u, data.Token
}

func (h *harness) lastResetToken() string {
	h.t.Helper()

	sent := h.notifier.PasswordResets()
	if len(sent) == 0 {
		h.t.Fatalf("no password reset email was sent")
	}
	url := sent[len(sent)-1].URL
	i := strings.LastIndex(url, "/")
	return url[i+1:]
}
