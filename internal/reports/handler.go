package reports

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"loanledger/internal/api"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/history", h.handleHistory)
	r.Get("/fines", h.handleFines)
	r.Get("/popular", h.handlePopular)
	return r
}

func historyFilter(r *http.Request) (HistoryFilter, error) {
	var f HistoryFilter
	q := r.URL.Query()
	if s := q.Get("from"); s != "" {
		t, err := api.ParseDate(s)
		if err != nil {
			return f, err
		}
		f.From = t
	}
	if s := q.Get("to"); s != "" {
		t, err := api.ParseDate(s)
		if err != nil {
			return f, err
		}
		f.To = t
	}
	f.Username = q.Get("username")
	if s := q.Get("book_id"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return f, err
		}
		f.BookID = id
	}
	return f, nil
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	if _, ok := api.RequireAdmin(w, r); !ok {
		return
	}
	f, err := historyFilter(r)
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, summary := h.service.LendingHistory(r.Context(), f)

	if r.URL.Query().Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="lending_history_report.csv"`)
		if err := h.service.WriteCSV(w, records); err != nil {
			api.WriteError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	api.WriteJSON(w, http.StatusOK, map[string]any{
		"records": records,
		"summary": summary,
	})
}

func (h *Handler) handleFines(w http.ResponseWriter, r *http.Request) {
	if _, ok := api.RequireAdmin(w, r); !ok {
		return
	}
	api.WriteJSON(w, http.StatusOK, h.service.Fines(r.Context()))
}

func (h *Handler) handlePopular(w http.ResponseWriter, r *http.Request) {
	if _, ok := api.RequireAdmin(w, r); !ok {
		return
	}
	n := 10
	if s := r.URL.Query().Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 {
			api.WriteError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		n = v
	}
	api.WriteJSON(w, http.StatusOK, h.service.PopularBooks(r.Context(), n))
}
