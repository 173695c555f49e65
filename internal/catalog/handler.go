package catalog

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"loanledger/internal/api"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the catalog subrouter. Mutations require an admin
// actor; reads require any authenticated actor.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.handleList)
	r.Post("/", h.handleAdd)
	r.Get("/{id}", h.handleGet)
	r.Put("/{id}", h.handleUpdate)
	r.Delete("/{id}", h.handleRemove)
	return r
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrOutOfStock), errors.Is(err, ErrCopiesOutstanding):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidStock):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func bookID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

type bookRequest struct {
	Title    string `json:"title"`
	Author   string `json:"author"`
	ISBN     string `json:"isbn"`
	Category string `json:"category"`
	Stock    int    `json:"stock"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	if _, ok := api.Actor(w, r); !ok {
		return
	}
	if q := r.URL.Query().Get("q"); q != "" {
		api.WriteJSON(w, http.StatusOK, h.service.Search(r.Context(), q))
		return
	}
	api.WriteJSON(w, http.StatusOK, h.service.Books(r.Context()))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	if _, ok := api.Actor(w, r); !ok {
		return
	}
	id, err := bookID(r)
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid book ID")
		return
	}
	book, err := h.service.Book(r.Context(), id)
	if err != nil {
		api.WriteError(w, statusFor(err), err.Error())
		return
	}
	api.WriteJSON(w, http.StatusOK, book)
}

func (h *Handler) handleAdd(w http.ResponseWriter, r *http.Request) {
	actor, ok := api.RequireAdmin(w, r)
	if !ok {
		return
	}
	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	book, err := h.service.AddBook(r.Context(), actor, req.Title, req.Author, req.ISBN, req.Category, req.Stock)
	if err != nil {
		api.WriteError(w, statusFor(err), err.Error())
		return
	}
	api.WriteJSON(w, http.StatusCreated, book)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	actor, ok := api.RequireAdmin(w, r)
	if !ok {
		return
	}
	id, err := bookID(r)
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid book ID")
		return
	}
	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	book, err := h.service.UpdateBook(r.Context(), actor, id, req.Title, req.Author, req.ISBN, req.Category, req.Stock)
	if err != nil {
		api.WriteError(w, statusFor(err), err.Error())
		return
	}
	api.WriteJSON(w, http.StatusOK, book)
}

func (h *Handler) handleRemove(w http.ResponseWriter, r *http.Request) {
	actor, ok := api.RequireAdmin(w, r)
	if !ok {
		return
	}
	id, err := bookID(r)
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid book ID")
		return
	}
	if err := h.service.RemoveBook(r.Context(), actor, id); err != nil {
		api.WriteError(w, statusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
