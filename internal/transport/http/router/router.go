package router

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/evgeniivall/notes-auth-micro/internal/domain"
	"github.com/evgeniivall/notes-auth-micro/internal/transport/http/middleware"
	"github.com/evgeniivall/notes-auth-micro/internal/transport/http/response"
)

type HealthHandler interface {
	Healthz(w http.ResponseWriter, r *http.Request)
	Readyz(w http.ResponseWriter, r *http.Request)
}

type AuthHandler interface {
	Signup(w http.ResponseWriter, r *http.Request)
	Login(w http.ResponseWriter, r *http.Request)
	Logout(w http.ResponseWriter, r *http.Request)
	Introspect(w http.ResponseWriter, r *http.Request)

	// Password reset / change
	ForgetPassword(w http.ResponseWriter, r *http.Request)
	ResetPassword(w http.ResponseWriter, r *http.Request)
	ChangePassword(w http.ResponseWriter, r *http.Request)
}

type UsersHandler interface {
	Me(w http.ResponseWriter, r *http.Request)

	// Admin
	List(w http.ResponseWriter, r *http.Request)
	Create(w http.ResponseWriter, r *http.Request)
	Get(w http.ResponseWriter, r *http.Request)
	Update(w http.ResponseWriter, r *http.Request)
	Delete(w http.ResponseWriter, r *http.Request)
}

type Middleware = func(http.Handler) http.Handler

type Deps struct {
	Health HealthHandler
	Auth   AuthHandler
	Users  UsersHandler

	AuthMW  Middleware
	AdminMW Middleware

	// Optional; nil means not applied.
	CSRFMW        Middleware
	LoginLimitMW  Middleware
	SignupLimitMW Middleware
	ForgotLimitMW Middleware
	InternalMW    Middleware

	// Served at /metrics when set.
	Metrics http.Handler

	// TrustProxy makes X-Forwarded-For / X-Real-IP the client address.
	TrustProxy bool
}

func orNoop(mw Middleware) Middleware {
	if mw == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return mw
}

func New(deps Deps) (http.Handler, error) {
	if deps.Health == nil {
		return nil, fmt.Errorf("nil Health handler")
	}
	if deps.Auth == nil {
		return nil, fmt.Errorf("nil Auth handler")
	}
	if deps.Users == nil {
		return nil, fmt.Errorf("nil Users handler")
	}
	if deps.AuthMW == nil {
		return nil, fmt.Errorf("nil Auth middleware")
	}
	if deps.AdminMW == nil {
		return nil, fmt.Errorf("nil Admin middleware")
	}

	csrf := orNoop(deps.CSRFMW)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if deps.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.Recover(response.WritePanic))
	r.Use(middleware.AccessLog)
	r.Use(middleware.Metrics)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.WriteError(w, r, domain.ErrRouteNotFound(r.URL.Path))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.WriteError(w, r, domain.ErrRouteNotFound(r.URL.Path))
	})

	r.Get("/healthz", deps.Health.Healthz)
	r.Get("/readyz", deps.Health.Readyz)
	if deps.Metrics != nil {
		r.With(orNoop(deps.InternalMW)).Handle("/metrics", deps.Metrics)
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(csrf)

		r.With(orNoop(deps.SignupLimitMW)).Post("/signup", deps.Auth.Signup)
		r.With(orNoop(deps.LoginLimitMW)).Post("/login", deps.Auth.Login)
		r.Post("/logout", deps.Auth.Logout)

		r.With(orNoop(deps.ForgotLimitMW)).Post("/forgetPassword", deps.Auth.ForgetPassword)
		r.Patch("/resetPassword/{token}", deps.Auth.ResetPassword)

		r.Group(func(r chi.Router) {
			r.Use(deps.AuthMW)
			r.Post("/introspect", deps.Auth.Introspect)
			r.Post("/authenticate", deps.Auth.Introspect)
			r.Patch("/changePassword", deps.Auth.ChangePassword)
			r.Patch("/changePassword/{userId}", deps.Auth.ChangePassword)
		})
	})

	r.Route("/api/v1/users", func(r chi.Router) {
		r.Use(csrf)
		r.Use(deps.AuthMW)

		r.Get("/me", deps.Users.Me)

		r.Group(func(r chi.Router) {
			r.Use(deps.AdminMW)
			r.Get("/", deps.Users.List)
			r.Post("/", deps.Users.Create)
			r.Get("/{id}", deps.Users.Get)
			r.Patch("/{id}", deps.Users.Update)
			r.Delete("/{id}", deps.Users.Delete)
		})
	})

	return r, nil
}
