package http_handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/evgeniivall/notes-auth-micro/internal/application/users"
	"github.com/evgeniivall/notes-auth-micro/internal/domain"
	"github.com/evgeniivall/notes-auth-micro/internal/transport/http/dto"
	"github.com/evgeniivall/notes-auth-micro/internal/transport/http/middleware"
	"github.com/evgeniivall/notes-auth-micro/internal/transport/http/response"
)

type UsersHandler struct {
	svc *users.Service
}

func NewUsersHandler(svc *users.Service) *UsersHandler {
	return &UsersHandler{svc: svc}
}

// List handles GET /users?role=admin&createdAt[gte]=2024-01-01&sort=-createdAt&fields=name,email&page=2&limit=10
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	q, err := users.ParseListQuery(r.URL.Query())
	if err != nil {
		response.WriteError(w, r, err)
		return
	}

	list, err := h.svc.List(r.Context(), q)
	if err != nil {
		response.WriteError(w, r, err)
		return
	}

	out := make([]any, 0, len(list))
	for _, u := range list {
		out = append(out, dto.Project(u, q.Fields))
	}
	response.List(w, dto.UsersData{Users: out}, len(out))
}

func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, r, err)
		return
	}
	response.OK(w, dto.UserData{User: dto.NewUserView(u)})
}

func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateUserRequest
	if !bind(w, r, &req) {
		return
	}

	actorID, _ := middleware.UserIDFromContext(r.Context())
	u, err := h.svc.Create(r.Context(), actorID, users.CreateInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		response.WriteError(w, r, err)
		return
	}
	response.Created(w, dto.UserData{User: dto.NewUserView(u)})
}

func (h *UsersHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateUserRequest
	if !bind(w, r, &req) {
		return
	}

	actorID, _ := middleware.UserIDFromContext(r.Context())
	u, err := h.svc.Update(r.Context(), actorID, chi.URLParam(r, "id"), users.UpdateInput{
		Name:  req.Name,
		Email: req.Email,
	})
	if err != nil {
		response.WriteError(w, r, err)
		return
	}
	response.OK(w, dto.UserData{User: dto.NewUserView(u)})
}

func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actorID, _ := middleware.UserIDFromContext(r.Context())
	if err := h.svc.Delete(r.Context(), actorID, chi.URLParam(r, "id")); err != nil {
		response.WriteError(w, r, err)
		return
	}
	response.NoContent(w)
}

// Me returns the profile of the user resolved by the guard.
func (h *UsersHandler) Me(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.UserFromContext(r.Context())
	if !ok {
		response.WriteError(w, r, domain.ErrTokenMissing())
		return
	}
	response.OK(w, dto.UserData{User: dto.NewUserView(u)})
}
