package membership

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"loanledger/internal/api"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the membership subrouter. Login is open; everything
// else requires an admin actor.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/login", h.handleLogin)
	r.Get("/", h.handleList)
	r.Post("/", h.handleRegister)
	r.Get("/{username}", h.handleGet)
	r.Patch("/{username}/active", h.handleSetActive)
	r.Patch("/{username}/role", h.handleSetRole)
	r.Post("/{username}/password", h.handleChangePassword)
	return r
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicateUsername):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, ErrInvalidRole):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	member, err := h.service.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		api.WriteError(w, statusFor(err), err.Error())
		return
	}
	api.WriteJSON(w, http.StatusOK, member)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	if _, ok := api.RequireAdmin(w, r); !ok {
		return
	}
	api.WriteJSON(w, http.StatusOK, h.service.Members(r.Context()))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	if _, ok := api.RequireAdmin(w, r); !ok {
		return
	}
	member, err := h.service.Member(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		api.WriteError(w, statusFor(err), err.Error())
		return
	}
	api.WriteJSON(w, http.StatusOK, member)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	actor, ok := api.RequireAdmin(w, r)
	if !ok {
		return
	}
	var req struct {
		Username  string `json:"username"`
		Password  string `json:"password"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Email     string `json:"email"`
		Role      string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Role == "" {
		req.Role = RoleUser
	}
	member, err := h.service.Register(r.Context(), actor, req.Username, req.Password, req.FirstName, req.LastName, req.Email, req.Role)
	if err != nil {
		api.WriteError(w, statusFor(err), err.Error())
		return
	}
	api.WriteJSON(w, http.StatusCreated, member)
}

func (h *Handler) handleSetActive(w http.ResponseWriter, r *http.Request) {
	actor, ok := api.RequireAdmin(w, r)
	if !ok {
		return
	}
	var req struct {
		Active bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.service.SetActive(r.Context(), actor, chi.URLParam(r, "username"), req.Active); err != nil {
		api.WriteError(w, statusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleSetRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := api.RequireAdmin(w, r)
	if !ok {
		return
	}
	var req struct {
		Role string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.service.SetRole(r.Context(), actor, chi.URLParam(r, "username"), req.Role); err != nil {
		api.WriteError(w, statusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	actor, ok := api.RequireAdmin(w, r)
	if !ok {
		return
	}
	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.service.ChangePassword(r.Context(), actor, chi.URLParam(r, "username"), req.Password); err != nil {
		api.WriteError(w, statusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusOK)
}
