// Package api holds small helpers shared by the per-domain HTTP
// handlers.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"loanledger/internal/audit"
)

// WriteJSON writes v as a JSON response.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// WriteError writes a JSON error body.
func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, map[string]string{"error": msg})
}

// Actor pulls the authenticated actor from the request context, writing
// 401 when none is present.
func Actor(w http.ResponseWriter, r *http.Request) (audit.Actor, bool) {
	actor, ok := audit.ActorFromContext(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "authentication required")
	}
	return actor, ok
}

// RequireAdmin is Actor plus an admin-role check, writing 403 for
// non-admin actors.
func RequireAdmin(w http.ResponseWriter, r *http.Request) (audit.Actor, bool) {
	actor, ok := Actor(w, r)
	if !ok {
		return actor, false
	}
	if actor.Role != "admin" {
		WriteError(w, http.StatusForbidden, "admin role required")
		return actor, false
	}
	return actor, true
}

// ParseDate parses a YYYY-MM-DD value.
func ParseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}
