// Package metrics exposes the process-wide Prometheus collectors served
// on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// IssuesTotal counts successful book issues.
	IssuesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "loanledger_issues_total",
		Help: "Number of books issued.",
	})

	// ReturnsTotal counts successful book returns.
	ReturnsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "loanledger_returns_total",
		Help: "Number of books returned.",
	})

	// FinesCollected accumulates fines paid on return, in currency units.
	FinesCollected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "loanledger_fines_collected_total",
		Help: "Total fines collected on returns.",
	})
)
