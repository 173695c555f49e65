package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"loanledger/internal/audit"
	"loanledger/internal/settings"
)

// SettingsSource yields the current library settings. The ledger reads
// them at issue and return time, never caching across operations.
type SettingsSource interface {
	Get() settings.Settings
}

// Service defines the interface for the loan ledger.
type Service interface {
	// Issue lends one copy of a book to a member. Preconditions are
	// checked in order: eligibility, loan limit, availability; the first
	// failure wins and nothing is mutated.
	Issue(ctx context.Context, actor audit.Actor, username string, bookID int64, issueDate time.Time) (*Loan, error)

	// Return closes an open loan, collects finePaid, and releases the
	// copy back to the catalog.
	Return(ctx context.Context, actor audit.Actor, loanID uuid.UUID, returnDate time.Time, finePaid decimal.Decimal) (*Loan, error)

	// DashboardOverdue lists open loans whose age in days exceeds the
	// current loan period setting. This is the dashboard metric and
	// deliberately ignores each loan's own expected return date.
	DashboardOverdue(ctx context.Context, asOf time.Time) []*Loan

	// IssueOverdue lists open loans past their own expected return date.
	IssueOverdue(ctx context.Context, asOf time.Time) []*Loan

	Loan(ctx context.Context, id uuid.UUID) (*Loan, error)
	Loans(ctx context.Context) []*Loan
	OpenLoans(ctx context.Context) []*Loan
	LoansForUser(ctx context.Context, username string) []*Loan
	OpenLoanCount(ctx context.Context, username string) int
}
