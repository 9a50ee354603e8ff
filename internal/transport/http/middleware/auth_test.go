package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/evgeniivall/notes-auth-micro/internal/application/auth"
	"github.com/evgeniivall/notes-auth-micro/internal/domain"
	"github.com/evgeniivall/notes-auth-micro/internal/infrastructure/security"
)

// ---- fakes ----

type fakeVerifier struct {
	claims auth.SessionClaims
	err    error
	calls  int
	gotTok string
}

func (f *fakeVerifier) Verify(token string) (auth.SessionClaims, error) {
	f.calls++
	f.gotTok = token
	return f.claims, f.err
}

type fakeUsers struct {
	user  domain.User
	err   error
	calls int
	gotID string
}

func (u *fakeUsers) GetByID(ctx context.Context, id string) (domain.User, error) {
	u.calls++
	u.gotID = id
	return u.user, u.err
}

type writeErrRecorder struct {
	calls int
	last  error
}

func (w *writeErrRecorder) fn(rw http.ResponseWriter, _ *http.Request, err error) {
	w.calls++
	w.last = err
	rw.WriteHeader(http.StatusTeapot)
}

// next handler checks context injection
type nextRecorder struct {
	calls int
	got   domain.User
}

func (n *nextRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n.calls++
	n.got, _ = UserFromContext(r.Context())
	w.WriteHeader(http.StatusOK)
}

var issuedAt = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func validClaims() auth.SessionClaims {
	return auth.SessionClaims{UserID: "u-1", IssuedAt: issuedAt, ExpiresAt: issuedAt.Add(time.Hour)}
}

func activeUser() domain.User {
	return domain.User{ID: "u-1", Name: "Ann", Email: "ann@example.com", Role: domain.RoleAdmin, Active: true}
}

func runAuthMW(t *testing.T, verifier SessionVerifier, users UserReader, req *http.Request) (*writeErrRecorder, *nextRecorder) {
	t.Helper()

	we := &writeErrRecorder{}
	nx := &nextRecorder{}
	Auth(verifier, users, we.fn)(nx).ServeHTTP(httptest.NewRecorder(), req)
	return we, nx
}

func bearer(tok string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	return req
}

// ---- tests ----

func TestAuth_NoToken_ReturnsTokenMissing(t *testing.T) {
	v := &fakeVerifier{}
	cases := map[string]*http.Request{
		"nothing":          httptest.NewRequest(http.MethodGet, "/x", nil),
		"empty bearer":     bearer("   "),
		"loggedout cookie": httptest.NewRequest(http.MethodGet, "/x", nil),
	}
	cases["loggedout cookie"].AddCookie(&http.Cookie{Name: security.SessionCookieName, Value: security.LoggedOutValue})

	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			we, nx := runAuthMW(t, v, &fakeUsers{}, req)
			if nx.calls != 0 || we.calls != 1 {
				t.Fatalf("expected rejection, next=%d writeErr=%d", nx.calls, we.calls)
			}
			if !domain.Is(we.last, "token_missing") {
				t.Fatalf("expected token_missing, got %v", we.last)
			}
		})
	}
	if v.calls != 0 {
		t.Fatalf("verifier should not be called without a token")
	}
}

func TestAuth_BearerWinsOverCookie(t *testing.T) {
	v := &fakeVerifier{claims: validClaims()}
	req := bearer("from-header")
	req.AddCookie(&http.Cookie{Name: security.SessionCookieName, Value: "from-cookie"})

	we, nx := runAuthMW(t, v, &fakeUsers{user: activeUser()}, req)

	if we.calls != 0 || nx.calls != 1 {
		t.Fatalf("expected pass, writeErr=%v", we.last)
	}
	if v.gotTok != "from-header" {
		t.Fatalf("expected header token, got %q", v.gotTok)
	}
}

func TestAuth_CookieUsedWithoutBearer(t *testing.T) {
	v := &fakeVerifier{claims: validClaims()}
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Basic abc")
	req.AddCookie(&http.Cookie{Name: security.SessionCookieName, Value: "from-cookie"})

	we, nx := runAuthMW(t, v, &fakeUsers{user: activeUser()}, req)

	if we.calls != 0 || nx.calls != 1 {
		t.Fatalf("expected pass, writeErr=%v", we.last)
	}
	if v.gotTok != "from-cookie" {
		t.Fatalf("expected cookie token, got %q", v.gotTok)
	}
}

func TestAuth_VerifierReturnsError_PropagatesToWriteErr(t *testing.T) {
	for _, want := range []*domain.Error{domain.ErrTokenExpired(), domain.ErrTokenInvalid()} {
		v := &fakeVerifier{err: want}
		u := &fakeUsers{}

		we, nx := runAuthMW(t, v, u, bearer("abc"))

		if nx.calls != 0 || we.calls != 1 {
			t.Fatalf("expected rejection")
		}
		if !domain.Is(we.last, want.Code) {
			t.Fatalf("expected %s, got %v", want.Code, we.last)
		}
		if u.calls != 0 {
			t.Fatalf("users must not be read for a bad token")
		}
	}
}

func TestAuth_ClaimsMissingUserID_ReturnsTokenInvalid(t *testing.T) {
	v := &fakeVerifier{claims: auth.SessionClaims{UserID: "   ", IssuedAt: issuedAt}}
	u := &fakeUsers{}

	we, nx := runAuthMW(t, v, u, bearer("abc"))

	if nx.calls != 0 || !domain.Is(we.last, "token_invalid") {
		t.Fatalf("expected token_invalid, got %v", we.last)
	}
	if u.calls != 0 {
		t.Fatalf("expected users not called, got %d", u.calls)
	}
}

func TestAuth_UserGone_ReturnsUserNoLongerExists(t *testing.T) {
	v := &fakeVerifier{claims: validClaims()}
	u := &fakeUsers{err: domain.ErrUserNotFound()}

	we, nx := runAuthMW(t, v, u, bearer("tok"))

	if nx.calls != 0 || !domain.Is(we.last, "user_no_longer_exists") {
		t.Fatalf("expected user_no_longer_exists, got %v", we.last)
	}
	if u.gotID != "u-1" {
		t.Fatalf("expected lookup of u-1, got %q", u.gotID)
	}
}

func TestAuth_StoreError_ReturnsThatError(t *testing.T) {
	v := &fakeVerifier{claims: validClaims()}
	u := &fakeUsers{err: domain.ErrDBUnavailable(errors.New("db down"))}

	we, nx := runAuthMW(t, v, u, bearer("tok"))

	if nx.calls != 0 || !domain.Is(we.last, "db_unavailable") {
		t.Fatalf("expected db_unavailable, got %v", we.last)
	}
}

func TestAuth_PasswordChangedAfterIssue_ReturnsPasswordChanged(t *testing.T) {
	later := issuedAt.Add(time.Second)
	usr := activeUser()
	usr.PasswordChangedAt = &later

	we, nx := runAuthMW(t, &fakeVerifier{claims: validClaims()}, &fakeUsers{user: usr}, bearer("tok"))

	if nx.calls != 0 || !domain.Is(we.last, "password_changed") {
		t.Fatalf("expected password_changed, got %v", we.last)
	}
}

func TestAuth_PasswordChangedInSameSecond_StillValid(t *testing.T) {
	sameSecond := issuedAt.Add(500 * time.Millisecond)
	usr := activeUser()
	usr.PasswordChangedAt = &sameSecond

	we, nx := runAuthMW(t, &fakeVerifier{claims: validClaims()}, &fakeUsers{user: usr}, bearer("tok"))

	if we.calls != 0 || nx.calls != 1 {
		t.Fatalf("expected pass, got %v", we.last)
	}
}

func TestAuth_Valid_InjectsUser(t *testing.T) {
	earlier := issuedAt.Add(-time.Hour)
	usr := activeUser()
	usr.PasswordChangedAt = &earlier

	we, nx := runAuthMW(t, &fakeVerifier{claims: validClaims()}, &fakeUsers{user: usr}, bearer("tok"))

	if we.calls != 0 {
		t.Fatalf("expected writeErr not called, got %v", we.last)
	}
	if nx.calls != 1 || nx.got.ID != "u-1" || nx.got.Role != domain.RoleAdmin {
		t.Fatalf("expected user in context, got %+v", nx.got)
	}
}

// ---- RestrictTo ----

func TestRestrictTo(t *testing.T) {
	cases := []struct {
		name     string
		ctx      func(context.Context) context.Context
		wantCode string
	}{
		{"no user", func(c context.Context) context.Context { return c }, "token_missing"},
		{"wrong role", func(c context.Context) context.Context {
			return WithUser(c, domain.User{ID: "u", Role: domain.RoleUser})
		}, "forbidden"},
		{"allowed", func(c context.Context) context.Context {
			return WithUser(c, domain.User{ID: "u", Role: domain.RoleAdmin})
		}, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			we := &writeErrRecorder{}
			nx := &nextRecorder{}
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			req = req.WithContext(tc.ctx(req.Context()))

			RestrictTo(we.fn, domain.RoleAdmin)(nx).ServeHTTP(httptest.NewRecorder(), req)

			if tc.wantCode == "" {
				if nx.calls != 1 || we.calls != 0 {
					t.Fatalf("expected pass, got %v", we.last)
				}
				return
			}
			if nx.calls != 0 || !domain.Is(we.last, tc.wantCode) {
				t.Fatalf("expected %s, got %v", tc.wantCode, we.last)
			}
		})
	}
}
