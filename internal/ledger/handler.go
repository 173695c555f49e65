package ledger

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"loanledger/internal/api"
	"loanledger/internal/catalog"
	"loanledger/internal/membership"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the loan subrouter. Issue and return are admin desk
// operations, matching the original circulation workflow.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/issue", h.handleIssue)
	r.Post("/return", h.handleReturn)
	r.Get("/", h.handleList)
	r.Get("/open", h.handleOpen)
	r.Get("/overdue/dashboard", h.handleDashboardOverdue)
	r.Get("/overdue/issues", h.handleIssueOverdue)
	r.Get("/member/{username}", h.handleForUser)
	r.Get("/{id}", h.handleGet)
	return r
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, catalog.ErrNotFound), errors.Is(err, membership.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyReturned), errors.Is(err, catalog.ErrOutOfStock), errors.Is(err, ErrLoanLimitExceeded):
		return http.StatusConflict
	case errors.Is(err, ErrIneligibleMember):
		return http.StatusForbidden
	case errors.Is(err, ErrInvalidFine), errors.Is(err, ErrInvalidReturnDate):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// queryDate reads a YYYY-MM-DD query parameter, defaulting to today.
func queryDate(r *http.Request, key string) (time.Time, error) {
	if s := r.URL.Query().Get(key); s != "" {
		return api.ParseDate(s)
	}
	return time.Now(), nil
}

func (h *Handler) handleIssue(w http.ResponseWriter, r *http.Request) {
	actor, ok := api.RequireAdmin(w, r)
	if !ok {
		return
	}
	var req struct {
		Username  string `json:"username"`
		BookID    int64  `json:"book_id"`
		IssueDate string `json:"issue_date,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	issueDate := time.Now()
	if req.IssueDate != "" {
		var err error
		if issueDate, err = api.ParseDate(req.IssueDate); err != nil {
			api.WriteError(w, http.StatusBadRequest, "invalid issue_date")
			return
		}
	}

	loan, err := h.service.Issue(r.Context(), actor, req.Username, req.BookID, issueDate)
	if err != nil {
		api.WriteError(w, statusFor(err), err.Error())
		return
	}
	api.WriteJSON(w, http.StatusCreated, loan)
}

func (h *Handler) handleReturn(w http.ResponseWriter, r *http.Request) {
	actor, ok := api.RequireAdmin(w, r)
	if !ok {
		return
	}
	var req struct {
		LoanID     string          `json:"loan_id"`
		ReturnDate string          `json:"return_date,omitempty"`
		FinePaid   decimal.Decimal `json:"fine_paid"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	loanID, err := uuid.Parse(req.LoanID)
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid loan_id")
		return
	}

	returnDate := time.Now()
	if req.ReturnDate != "" {
		if returnDate, err = api.ParseDate(req.ReturnDate); err != nil {
			api.WriteError(w, http.StatusBadRequest, "invalid return_date")
			return
		}
	}

	loan, err := h.service.Return(r.Context(), actor, loanID, returnDate, req.FinePaid)
	if err != nil {
		api.WriteError(w, statusFor(err), err.Error())
		return
	}
	api.WriteJSON(w, http.StatusOK, loan)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	if _, ok := api.RequireAdmin(w, r); !ok {
		return
	}
	api.WriteJSON(w, http.StatusOK, h.service.Loans(r.Context()))
}

func (h *Handler) handleOpen(w http.ResponseWriter, r *http.Request) {
	if _, ok := api.RequireAdmin(w, r); !ok {
		return
	}
	api.WriteJSON(w, http.StatusOK, h.service.OpenLoans(r.Context()))
}

func (h *Handler) handleDashboardOverdue(w http.ResponseWriter, r *http.Request) {
	if _, ok := api.RequireAdmin(w, r); !ok {
		return
	}
	asOf, err := queryDate(r, "as_of")
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid as_of")
		return
	}
	api.WriteJSON(w, http.StatusOK, h.service.DashboardOverdue(r.Context(), asOf))
}

func (h *Handler) handleIssueOverdue(w http.ResponseWriter, r *http.Request) {
	if _, ok := api.RequireAdmin(w, r); !ok {
		return
	}
	asOf, err := queryDate(r, "as_of")
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid as_of")
		return
	}
	api.WriteJSON(w, http.StatusOK, h.service.IssueOverdue(r.Context(), asOf))
}

func (h *Handler) handleForUser(w http.ResponseWriter, r *http.Request) {
	if _, ok := api.RequireAdmin(w, r); !ok {
		return
	}
	api.WriteJSON(w, http.StatusOK, h.service.LoansForUser(r.Context(), chi.URLParam(r, "username")))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	if _, ok := api.RequireAdmin(w, r); !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid loan ID")
		return
	}
	loan, err := h.service.Loan(r.Context(), id)
	if err != nil {
		api.WriteError(w, statusFor(err), err.Error())
		return
	}
	api.WriteJSON(w, http.StatusOK, loan)
}
