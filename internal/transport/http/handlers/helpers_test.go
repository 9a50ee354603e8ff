package http_handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/evgeniivall/notes-auth-micro/internal/domain"
	"github.com/evgeniivall/notes-auth-micro/internal/transport/http/middleware"
)

// mustJSONBody marshals v to JSON and returns an io.Reader for request body.
func mustJSONBody(t *testing.T, v any) io.Reader {
	t.Helper()

	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("json marshal: %v", err)
	}
	return bytes.NewReader(b)
}

// envelope mirrors response.Envelope with the data left raw.
type envelope struct {
	Status  string            `json:"status"`
	Results *int              `json:"results"`
	Data    json.RawMessage   `json:"data"`
	Message string            `json:"message"`
	Code    string            `json:"code"`
	Meta    map[string]string `json:"meta"`
}

// mustReadEnvelope decodes a jsend body. When out is non-nil the data member
// is decoded into it.
func mustReadEnvelope(t *testing.T, r io.Reader, out any) envelope {
	t.Helper()

	raw, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("decode json failed; body=%s", string(raw))
	}
	if out != nil {
		if len(env.Data) == 0 {
			t.Fatalf("expected data in body=%s", string(raw))
		}
		if err := json.Unmarshal(env.Data, out); err != nil {
			t.Fatalf("decode data failed; body=%s err=%v", string(raw), err)
		}
	}
	return env
}

// readCookie finds cookie by name from response headers.
func readCookie(res *http.Response, name string) *http.Cookie {
	for _, c := range res.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// withUserCtx injects an already resolved user, as the auth guard would.
func withUserCtx(req *http.Request, u domain.User) *http.Request {
	return req.WithContext(middleware.WithUser(req.Context(), u))
}

// withURLParam injects chi URL param (e.g. /users/{id}) into request context.
func withURLParam(req *http.Request, key, val string) *http.Request {
	rctx := chi.RouteContext(req.Context())
	if rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, val)

	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	return req.WithContext(ctx)
}
