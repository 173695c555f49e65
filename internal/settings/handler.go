package settings

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"loanledger/internal/api"
	"loanledger/internal/store"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.handleGet)
	r.Put("/", h.handleUpdate)
	return r
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	if _, ok := api.Actor(w, r); !ok {
		return
	}
	api.WriteJSON(w, http.StatusOK, h.service.Get())
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	actor, ok := api.RequireAdmin(w, r)
	if !ok {
		return
	}
	var next Settings
	if err := json.NewDecoder(r.Body).Decode(&next); err != nil {
		api.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.service.Update(r.Context(), actor, next); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrInvalid) {
			status = http.StatusUnprocessableEntity
		} else if errors.Is(err, store.ErrStorage) {
			status = http.StatusServiceUnavailable
		}
		api.WriteError(w, status, err.Error())
		return
	}
	api.WriteJSON(w, http.StatusOK, h.service.Get())
}
