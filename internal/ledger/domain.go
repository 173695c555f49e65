// Package ledger owns loan records and the issue/return state machine.
// A loan moves from issued to returned exactly once; a returned loan is
// immutable. The ledger is the only writer of the catalog's available
// counts, which keeps available = stock - open loans at all times.
package ledger

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	StatusIssued   = "issued"
	StatusReturned = "returned"
)

var (
	// ErrIneligibleMember means the member is missing, inactive, or not
	// a borrower-role account.
	ErrIneligibleMember = errors.New("member is not eligible to borrow")

	// ErrLoanLimitExceeded means the member already holds the maximum
	// number of open loans.
	ErrLoanLimitExceeded = errors.New("loan limit exceeded")

	// ErrNotFound means no loan carries the requested ID.
	ErrNotFound = errors.New("loan not found")

	// ErrAlreadyReturned rejects a second return of the same loan.
	ErrAlreadyReturned = errors.New("loan already returned")

	// ErrInvalidFine rejects a fine payment outside [0, fine owed].
	ErrInvalidFine = errors.New("fine amount out of range")

	// ErrInvalidReturnDate rejects return dates before the issue date.
	ErrInvalidReturnDate = errors.New("return date precedes issue date")
)

// Loan records one book copy lent to one member. ReturnDate is nil while
// the loan is open; Status mirrors it.
type Loan struct {
	ID                 uuid.UUID       `json:"id"`
	Username           string          `json:"username"`
	BookID             int64           `json:"book_id"`
	IssueDate          time.Time       `json:"issue_date"`
	ExpectedReturnDate time.Time       `json:"expected_return_date"`
	ReturnDate         *time.Time      `json:"return_date,omitempty"`
	FinePaid           decimal.Decimal `json:"fine_paid"`
	Status             string          `json:"status"`
}

// Open reports whether the loan has not been returned.
func (l Loan) Open() bool {
	return l.ReturnDate == nil
}

// DateOnly truncates t to a calendar day at UTC midnight. All loan date
// arithmetic happens on these values.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// wholeDays is the number of whole calendar days from a to b, negative
// when b precedes a. Both arguments must be DateOnly values.
func wholeDays(a, b time.Time) int {
	return int(b.Sub(a) / (24 * time.Hour))
}

// DaysOverdue is the count of whole days the return landed past the
// expected return date, never negative. Returning on the expected date
// itself is zero days overdue.
func DaysOverdue(expected, returned time.Time) int {
	d := wholeDays(DateOnly(expected), DateOnly(returned))
	if d < 0 {
		return 0
	}
	return d
}

// FineOwed is daysOverdue * finePerDay.
func FineOwed(expected, returned time.Time, finePerDay decimal.Decimal) decimal.Decimal {
	return finePerDay.Mul(decimal.NewFromInt(int64(DaysOverdue(expected, returned))))
}
