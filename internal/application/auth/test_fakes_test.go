package auth

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/evgeniivall/notes-auth-micro/internal/domain"
)

/*
Shared audit capture
*/

type auditEntry struct {
	action string
	fields map[string]string
}

/*
Fakes for ports
*/

type fakeUserRepo struct {
	mu sync.Mutex

	byID map[string]domain.User

	// injected errors (if set, method returns error)
	getByIDErr     error
	getByEmailErr  error
	getByDigestErr error
	createErr      error
	updateErr      func(upd domain.UserUpdate) error

	// record calls
	updates     []domain.UserUpdate
	clearCtxErr error // ctx.Err() seen by the last ClearResetToken update
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byID: map[string]domain.User{}}
}

func (f *fakeUserRepo) put(u domain.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[u.ID] = u
}

func (f *fakeUserRepo) get(id string) domain.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byID[id]
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.getByEmailErr != nil {
		return domain.User{}, f.getByEmailErr
	}
	for _, u := range f.byID {
		if u.Active && u.Email == email {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrUserNotFound()
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.getByIDErr != nil {
		return domain.User{}, f.getByIDErr
	}
	u, ok := f.byID[id]
	if !ok || !u.Active {
		return domain.User{}, domain.ErrUserNotFound()
	}
	return u, nil
}

func (f *fakeUserRepo) GetByResetTokenDigest(ctx context.Context, digest string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.getByDigestErr != nil {
		return domain.User{}, f.getByDigestErr
	}
	for _, u := range f.byID {
		if u.Active && digest != "" && u.ResetTokenDigest == digest {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrUserNotFound()
}

func (f *fakeUserRepo) Create(ctx context.Context, u domain.User) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.createErr != nil {
		return domain.User{}, f.createErr
	}
	for _, existing := range f.byID {
		if existing.Email == u.Email {
			return domain.User{}, domain.ErrEmailAlreadyExists()
		}
	}
	f.byID[u.ID] = u
	return u, nil
}

func (f *fakeUserRepo) Update(ctx context.Context, id string, upd domain.UserUpdate) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if upd.ClearResetToken {
		f.clearCtxErr = ctx.Err()
	}
	if f.updateErr != nil {
		if err := f.updateErr(upd); err != nil {
			return domain.User{}, err
		}
	}
	u, ok := f.byID[id]
	if !ok || !u.Active {
		return domain.User{}, domain.ErrUserNotFound()
	}
	if !upd.ResetTokenMatches(u) {
		return domain.User{}, domain.ErrResetTokenInvalid()
	}
	u = upd.Apply(u)
	f.byID[id] = u
	f.updates = append(f.updates, upd)
	return u, nil
}

type fakeHasher struct {
	mu         sync.Mutex
	hashFn     func(pw string) (string, error)
	compareErr error    // returned instead of comparing, if set
	compares   []string // hashes compared against
}

func (h *fakeHasher) Hash(ctx context.Context, password string) (string, error) {
	if h.hashFn != nil {
		return h.hashFn(password)
	}
	return "hash:" + password, nil
}

func (h *fakeHasher) Compare(ctx context.Context, hash string, password string) error {
	h.mu.Lock()
	h.compares = append(h.compares, hash)
	h.mu.Unlock()

	if h.compareErr != nil {
		return h.compareErr
	}
	if hash == "hash:"+password {
		return nil
	}
	return errors.New("mismatch")
}

type fakeSessions struct {
	issueErr error
	issued   []string
}

func (s *fakeSessions) Issue(userID string) (SessionToken, error) {
	if s.issueErr != nil {
		return SessionToken{}, s.issueErr
	}
	s.issued = append(s.issued, userID)
	return SessionToken{Token: "session(" + userID + ")", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (s *fakeSessions) Verify(token string) (SessionClaims, error) {
	if !strings.HasPrefix(token, "session(") {
		return SessionClaims{}, domain.ErrTokenInvalid()
	}
	return SessionClaims{UserID: strings.TrimSuffix(strings.TrimPrefix(token, "session("), ")")}, nil
}

type fakeResets struct {
	clock *fakeClock
	ttl   time.Duration
	seq   int
	err   error
}

func (r *fakeResets) Generate() (ResetToken, error) {
	if r.err != nil {
		return ResetToken{}, r.err
	}
	r.seq++
	raw := "raw-" + strconv.Itoa(r.seq)
	return ResetToken{Raw: raw, Digest: r.Digest(raw), ExpiresAt: r.clock.Now().Add(r.ttl)}, nil
}

func (r *fakeResets) Digest(raw string) string { return "digest(" + raw + ")" }

func (r *fakeResets) TTL() time.Duration { return r.ttl }

type fakeNotifier struct {
	mu         sync.Mutex
	welcomeErr error
	resetErr   error
	onReset    func(PasswordResetEvent) // runs before resetErr is returned

	welcome []WelcomeEvent
	resets  []PasswordResetEvent
}

func (n *fakeNotifier) NotifyWelcome(ctx context.Context, evt WelcomeEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.welcome = append(n.welcome, evt)
	return n.welcomeErr
}

func (n *fakeNotifier) NotifyPasswordReset(ctx context.Context, evt PasswordResetEvent) error {
	n.mu.Lock()
	n.resets = append(n.resets, evt)
	hook, err := n.onReset, n.resetErr
	n.mu.Unlock()

	if hook != nil {
		hook(evt)
	}
	return err
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

/*
Service factory for tests
*/

type testEnv struct {
	svc      *Service
	users    *fakeUserRepo
	hasher   *fakeHasher
	sessions *fakeSessions
	resets   *fakeResets
	notifier *fakeNotifier
	clock    *fakeClock
	audits   *[]auditEntry
}

func newSvcForTest(t *testing.T) testEnv {
	t.Helper()

	clock := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	env := testEnv{
		users:    newFakeUserRepo(),
		hasher:   &fakeHasher{},
		sessions: &fakeSessions{},
		resets:   &fakeResets{clock: clock, ttl: 10 * time.Minute},
		notifier: &fakeNotifier{},
		clock:    clock,
		audits:   &[]auditEntry{},
	}

	var auditMu sync.Mutex
	env.svc = NewService(env.users, env.hasher, env.sessions, env.resets, env.notifier, Config{
		AppURL: "https://notes.example.com/",
	}).
		WithClock(clock.Now).
		WithAsync(func(f func()) { f() }).
		WithAudit(func(action string, fields map[string]string) {
			cp := map[string]string{}
			for k, v := range fields {
				cp[k] = v
			}
			auditMu.Lock()
			*env.audits = append(*env.audits, auditEntry{action: action, fields: cp})
			auditMu.Unlock()
		})

	if env.svc == nil {
		t.Fatalf("svc is nil")
	}
	return env
}

// seedUser stores an active user whose password is pw.
func (e testEnv) seedUser(id, email, pw string, role domain.Role) domain.User {
	u := domain.User{
		ID:           id,
		Name:         "Ann Lee",
		Email:        email,
		PasswordHash: "hash:" + pw,
		Role:         role,
		Active:       true,
	}
	e.users.put(u)
	return u
}

/*
Small assertions
*/

func domainCode(err error) string {
	if err == nil {
		return ""
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return de.Code
	}
	return "non_domain_error"
}

func requireDomainCode(t *testing.T, err error, wantCode string) {
	t.Helper()
	got := domainCode(err)
	if got != wantCode {
		t.Fatalf("expected domain code %q, got %q (err=%v)", wantCode, got, err)
	}
}

func lastAudit(audits *[]auditEntry) (auditEntry, bool) {
	if audits == nil || len(*audits) == 0 {
		return auditEntry{}, false
	}
	return (*audits)[len(*audits)-1], true
}

func requireAuditAction(t *testing.T, audits *[]auditEntry, wantAction string) auditEntry {
	t.Helper()
	e, ok := lastAudit(audits)
	if !ok {
		t.Fatalf("expected audit entry, got none")
	}
	if e.action != wantAction {
		t.Fatalf("expected audit action %q, got %q", wantAction, e.action)
	}
	return e
}

func requireAuditField(t *testing.T, e auditEntry, k, want string) {
	t.Helper()
	got := strings.TrimSpace(e.fields[k])
	if got != want {
		t.Fatalf("expected audit field %q=%q, got %q (all=%v)", k, want, got, e.fields)
	}
}
