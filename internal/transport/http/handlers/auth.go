package http_handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/evgeniivall/notes-auth-micro/internal/application/auth"
	"github.com/evgeniivall/notes-auth-micro/internal/domain"
	"github.com/evgeniivall/notes-auth-micro/internal/infrastructure/security"
	"github.com/evgeniivall/notes-auth-micro/internal/logger"
	"github.com/evgeniivall/notes-auth-micro/internal/transport/http/dto"
	"github.com/evgeniivall/notes-auth-micro/internal/transport/http/middleware"
	"github.com/evgeniivall/notes-auth-micro/internal/transport/http/response"
)

// ResetEmailSentMessage is returned by forgetPassword whether or not the email is known.
const ResetEmailSentMessage = "Password reset URL was send to your email."

type AuthHandler struct {
	svc           *auth.Service
	secureCookies bool
	now           func() time.Time
}

func NewAuthHandler(svc *auth.Service, secureCookies bool) *AuthHandler {
	return &AuthHandler{
		svc:           svc,
		secureCookies: secureCookies,
		now:           time.Now,
	}
}

// bind decodes the JSON body into req and validates it.
func bind(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := response.DecodeJSON(w, r, req); err != nil {
		response.WriteError(w, r, err)
		return false
	}
	if err := dto.Validate(req); err != nil {
		response.WriteError(w, r, err)
		return false
	}
	return true
}

func (h *AuthHandler) setSession(w http.ResponseWriter, tok auth.SessionToken) {
	security.SetSessionCookie(w, tok.Token, tok.ExpiresAt, h.secureCookies)
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req dto.SignupRequest
	if !bind(w, r, &req) {
		return
	}

	res, err := h.svc.Signup(r.Context(), auth.SignupInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		response.WriteError(w, r, err)
		return
	}

	logger.WithCtx(r.Context()).Info().
		Str("user_id", res.User.ID).
		Msg("user_signed_up")

	h.setSession(w, res.Session)
	response.Created(w, dto.AuthData{
		User:  dto.NewUserView(res.User),
		Token: res.Session.Token,
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if !bind(w, r, &req) {
		return
	}

	res, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		status := "error"
		if domain.Is(err, "invalid_credentials") {
			status = "invalid_credentials"
		}
		middleware.LoginAttemptsTotal.WithLabelValues(status).Inc()
		response.WriteError(w, r, err)
		return
	}
	middleware.LoginAttemptsTotal.WithLabelValues("success").Inc()

	logger.WithCtx(r.Context()).Info().
		Str("user_id", res.User.ID).
		Msg("user_logged_in")

	h.setSession(w, res.Session)
	response.OK(w, dto.TokenData{Token: res.Session.Token})
}

// Logout needs no session: it only overwrites the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.svc.Logout(r.Context(), middleware.SessionToken(r))

	security.SetLoggedOutCookie(w, h.now(), h.secureCookies)
	response.OK(w, nil)
}

// Introspect handles POST /introspect and its /authenticate alias.
func (h *AuthHandler) Introspect(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.UserFromContext(r.Context())
	if !ok {
		response.WriteError(w, r, domain.ErrTokenMissing())
		return
	}
	id := h.svc.Introspect(u)
	response.OK(w, dto.IdentityData{ID: id.ID, Role: string(id.Role)})
}

func (h *AuthHandler) ForgetPassword(w http.ResponseWriter, r *http.Request) {
	var req dto.ForgetPasswordRequest
	if !bind(w, r, &req) {
		return
	}

	err := h.svc.ForgetPassword(r.Context(), req.Email)
	switch {
	case err == nil:
		middleware.PasswordResetsTotal.WithLabelValues("requested", "success").Inc()
	case domain.Is(err, "user_not_found"):
		// same answer as a real send, so emails cannot be enumerated
		middleware.PasswordResetsTotal.WithLabelValues("requested", "unknown_email").Inc()
	default:
		middleware.PasswordResetsTotal.WithLabelValues("requested", "error").Inc()
		response.WriteError(w, r, err)
		return
	}

	response.OK(w, dto.MessageData{Message: ResetEmailSentMessage})
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req dto.ResetPasswordRequest
	if !bind(w, r, &req) {
		return
	}

	res, err := h.svc.ResetPassword(r.Context(), chi.URLParam(r, "token"), req.Password)
	if err != nil {
		middleware.PasswordResetsTotal.WithLabelValues("completed", "error").Inc()
		response.WriteError(w, r, err)
		return
	}
	middleware.PasswordResetsTotal.WithLabelValues("completed", "success").Inc()

	h.setSession(w, res.Session)
	response.OK(w, dto.TokenData{Token: res.Session.Token})
}

// ChangePassword handles PATCH /changePassword/{userId}. Without a path id the
// body id is used, and without either the current user's own password is changed.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.UserFromContext(r.Context())
	if !ok {
		response.WriteError(w, r, domain.ErrTokenMissing())
		return
	}

	var req dto.ChangePasswordRequest
	if !bind(w, r, &req) {
		return
	}

	target := strings.TrimSpace(chi.URLParam(r, "userId"))
	if target == "" {
		target = strings.TrimSpace(req.ID)
	}
	if target == "" {
		target = actor.ID
	}

	res, err := h.svc.ChangePassword(r.Context(), auth.ChangePasswordInput{
		ActorID:         actor.ID,
		ActorRole:       actor.Role,
		UserID:          target,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.Password,
	})
	if err != nil {
		response.WriteError(w, r, err)
		return
	}

	// An admin changing someone else's password keeps their own session.
	if res.User.ID == actor.ID {
		h.setSession(w, res.Session)
	}
	response.OK(w, dto.TokenData{Token: res.Session.Token})
}
