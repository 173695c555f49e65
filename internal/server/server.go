// Package server assembles the HTTP surface: middleware, actor
// resolution, and the per-domain subrouters.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"loanledger/internal/api"
	"loanledger/internal/audit"
	"loanledger/internal/catalog"
	"loanledger/internal/ledger"
	"loanledger/internal/membership"
	"loanledger/internal/reports"
	"loanledger/internal/settings"
)

// Server wires the services into one chi router.
type Server struct {
	catalog  catalog.Service
	members  membership.Service
	ledger   ledger.Service
	settings *settings.Service
	reports  *reports.Service
	recorder audit.Recorder
	log      *zap.Logger
}

// New creates the server.
func New(cat catalog.Service, members membership.Service, ldg ledger.Service, st *settings.Service, rep *reports.Service, rec audit.Recorder, log *zap.Logger) *Server {
	return &Server{
		catalog:  cat,
		members:  members,
		ledger:   ldg,
		settings: st,
		reports:  rep,
		recorder: rec,
		log:      log,
	}
}

// Handler returns the router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.withActor)
		r.Mount("/books", catalog.NewHandler(s.catalog).Routes())
		r.Mount("/members", membership.NewHandler(s.members).Routes())
		r.Mount("/loans", ledger.NewHandler(s.ledger).Routes())
		r.Mount("/settings", settings.NewHandler(s.settings).Routes())
		r.Mount("/reports", reports.NewHandler(s.reports).Routes())
		r.Get("/audit", s.handleAuditList)
		r.Get("/dashboard", s.handleDashboard)
	})

	return r
}

// withActor resolves the X-Actor header against the roster and attaches
// the resulting actor to the request context. Requests without the
// header pass through unauthenticated; handlers decide what they
// require.
func (s *Server) withActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username := r.Header.Get("X-Actor")
		if username == "" {
			next.ServeHTTP(w, r)
			return
		}

		member, err := s.members.Member(r.Context(), username)
		if err != nil || !member.Active {
			api.WriteError(w, http.StatusUnauthorized, "unknown or inactive actor")
			return
		}

		ctx := audit.WithActor(r.Context(), audit.Actor{
			Username: member.Username,
			Role:     member.Role,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) handleAuditList(w http.ResponseWriter, r *http.Request) {
	if _, ok := api.RequireAdmin(w, r); !ok {
		return
	}

	var f audit.Filter
	q := r.URL.Query()
	f.Action = q.Get("action")
	f.Username = q.Get("username")
	if v := q.Get("from"); v != "" {
		t, err := api.ParseDate(v)
		if err != nil {
			api.WriteError(w, http.StatusBadRequest, "invalid from date")
			return
		}
		f.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := api.ParseDate(v)
		if err != nil {
			api.WriteError(w, http.StatusBadRequest, "invalid to date")
			return
		}
		// Inclusive of the whole day.
		f.To = t.Add(24*time.Hour - time.Nanosecond)
	}

	events, err := s.recorder.List(r.Context(), f)
	if err != nil {
		api.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	api.WriteJSON(w, http.StatusOK, events)
}

// handleDashboard serves the landing-page statistics: total books,
// active members, copies on loan, and the dashboard overdue count.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if _, ok := api.Actor(w, r); !ok {
		return
	}
	ctx := r.Context()

	books := s.catalog.Books(ctx)
	onLoan := 0
	for _, b := range books {
		onLoan += b.OnLoan()
	}

	activeMembers := 0
	for _, m := range s.members.Members(ctx) {
		if m.Active {
			activeMembers++
		}
	}

	api.WriteJSON(w, http.StatusOK, map[string]int{
		"total_books":    len(books),
		"active_members": activeMembers,
		"books_on_loan":  onLoan,
		"overdue_books":  len(s.ledger.DashboardOverdue(ctx, time.Now())),
	})
}
