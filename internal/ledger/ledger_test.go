package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"loanledger/internal/audit"
	"loanledger/internal/catalog"
	"loanledger/internal/membership"
	"loanledger/internal/settings"
	"loanledger/internal/store"
)

type fixture struct {
	catalog  catalog.Service
	members  membership.Service
	settings *settings.Service
	ledger   Service
	loanSnap *store.MemoryCollection[Loan]
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	rec := audit.NewMemoryRecorder()
	log := zap.NewNop()

	settingsSvc, err := settings.NewService(ctx, store.NewMemoryDocument[settings.Settings](), rec, log)
	require.NoError(t, err)
	catalogSvc, err := catalog.NewService(ctx, store.NewMemoryCollection[catalog.Book](), rec, log)
	require.NoError(t, err)
	memberSvc, err := membership.NewService(ctx, store.NewMemoryCollection[membership.Record](), rec, log)
	require.NoError(t, err)

	_, err = memberSvc.Register(ctx, audit.System, "alice", "pw-alice", "Alice", "Smith", "alice@example.com", membership.RoleUser)
	require.NoError(t, err)

	loanSnap := store.NewMemoryCollection[Loan]()
	ledgerSvc, err := NewService(ctx, loanSnap, catalogSvc, memberSvc, settingsSvc, rec, log)
	require.NoError(t, err)

	return &fixture{
		catalog:  catalogSvc,
		members:  memberSvc,
		settings: settingsSvc,
		ledger:   ledgerSvc,
		loanSnap: loanSnap,
	}
}

func (f *fixture) addBook(t *testing.T, title string, stock int) int64 {
	t.Helper()
	b, err := f.catalog.AddBook(context.Background(), audit.System, title, "Author", "", "", stock)
	require.NoError(t, err)
	return b.ID
}

func (f *fixture) available(t *testing.T, bookID int64) int {
	t.Helper()
	b, err := f.catalog.Book(context.Background(), bookID)
	require.NoError(t, err)
	return b.Available
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestIssueReturnRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bookID := f.addBook(t, "Dune", 3)

	issued := day(2025, time.March, 1)
	loan, err := f.ledger.Issue(ctx, audit.System, "alice", bookID, issued)
	require.NoError(t, err)
	assert.Equal(t, StatusIssued, loan.Status)
	assert.True(t, loan.Open())
	assert.Equal(t, issued, loan.IssueDate)
	assert.Equal(t, day(2025, time.March, 15), loan.ExpectedReturnDate, "default loan period is 14 days")
	assert.Equal(t, 2, f.available(t, bookID))
	assert.Equal(t, 1, f.ledger.OpenLoanCount(ctx, "alice"))

	// Returning on the expected date owes nothing.
	returned, err := f.ledger.Return(ctx, audit.System, loan.ID, loan.ExpectedReturnDate, decimal.Zero)
	require.NoError(t, err)
	assert.Equal(t, StatusReturned, returned.Status)
	assert.False(t, returned.Open())
	require.NotNil(t, returned.ReturnDate)
	assert.Equal(t, day(2025, time.March, 15), *returned.ReturnDate)
	assert.True(t, returned.FinePaid.IsZero())
	assert.Equal(t, 3, f.available(t, bookID))
	assert.Equal(t, 0, f.ledger.OpenLoanCount(ctx, "alice"))
}

func TestIssueOutOfStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bookID := f.addBook(t, "Dune", 1)

	_, err := f.ledger.Issue(ctx, audit.System, "alice", bookID, day(2025, time.March, 1))
	require.NoError(t, err)

	_, err = f.members.Register(ctx, audit.System, "bob", "pw-bob", "Bob", "Jones", "bob@example.com", membership.RoleUser)
	require.NoError(t, err)

	_, err = f.ledger.Issue(ctx, audit.System, "bob", bookID, day(2025, time.March, 2))
	assert.ErrorIs(t, err, catalog.ErrOutOfStock)
	assert.Len(t, f.ledger.Loans(ctx), 1, "failed issue leaves no loan behind")
	assert.Equal(t, 0, f.available(t, bookID))
}

func TestIssueIneligibleMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bookID := f.addBook(t, "Dune", 2)

	// Unknown member.
	_, err := f.ledger.Issue(ctx, audit.System, "nobody", bookID, day(2025, time.March, 1))
	assert.ErrorIs(t, err, ErrIneligibleMember)

	// Admin accounts do not borrow.
	_, err = f.ledger.Issue(ctx, audit.System, "admin", bookID, day(2025, time.March, 1))
	assert.ErrorIs(t, err, ErrIneligibleMember)

	// Deactivated member.
	require.NoError(t, f.members.SetActive(ctx, audit.System, "alice", false))
	_, err = f.ledger.Issue(ctx, audit.System, "alice", bookID, day(2025, time.March, 1))
	assert.ErrorIs(t, err, ErrIneligibleMember)

	assert.Equal(t, 2, f.available(t, bookID))
}

func TestIssueLoanLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Default limit is five open loans per member.
	for i := 0; i < 5; i++ {
		bookID := f.addBook(t, "Book", 1)
		_, err := f.ledger.Issue(ctx, audit.System, "alice", bookID, day(2025, time.March, 1))
		require.NoError(t, err)
	}

	sixth := f.addBook(t, "One Too Many", 1)
	_, err := f.ledger.Issue(ctx, audit.System, "alice", sixth, day(2025, time.March, 2))
	assert.ErrorIs(t, err, ErrLoanLimitExceeded)
	assert.Equal(t, 1, f.available(t, sixth), "rejected issue must not reserve a copy")

	// Returning one frees a slot.
	loans := f.ledger.OpenLoans(ctx)
	_, err = f.ledger.Return(ctx, audit.System, loans[0].ID, day(2025, time.March, 3), decimal.Zero)
	require.NoError(t, err)
	_, err = f.ledger.Issue(ctx, audit.System, "alice", sixth, day(2025, time.March, 3))
	assert.NoError(t, err)
}

func TestReturnAlreadyReturned(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bookID := f.addBook(t, "Dune", 1)

	loan, err := f.ledger.Issue(ctx, audit.System, "alice", bookID, day(2025, time.March, 1))
	require.NoError(t, err)
	first, err := f.ledger.Return(ctx, audit.System, loan.ID, day(2025, time.March, 10), decimal.Zero)
	require.NoError(t, err)

	_, err = f.ledger.Return(ctx, audit.System, loan.ID, day(2025, time.March, 20), decimal.Zero)
	assert.ErrorIs(t, err, ErrAlreadyReturned)

	// The second attempt changed nothing.
	got, err := f.ledger.Loan(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, *first.ReturnDate, *got.ReturnDate)
	assert.Equal(t, 1, f.available(t, bookID))
}

func TestReturnUnknownLoan(t *testing.T) {
	f := newFixture(t)

	_, err := f.ledger.Return(context.Background(), audit.System, uuid.New(), day(2025, time.March, 1), decimal.Zero)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReturnBeforeIssueDate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bookID := f.addBook(t, "Dune", 1)

	loan, err := f.ledger.Issue(ctx, audit.System, "alice", bookID, day(2025, time.March, 10))
	require.NoError(t, err)

	_, err = f.ledger.Return(ctx, audit.System, loan.ID, day(2025, time.March, 9), decimal.Zero)
	assert.ErrorIs(t, err, ErrInvalidReturnDate)

	got, err := f.ledger.Loan(ctx, loan.ID)
	require.NoError(t, err)
	assert.True(t, got.Open())
	assert.Equal(t, 0, f.available(t, bookID))
}

func TestReturnFineValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bookID := f.addBook(t, "Dune", 1)

	// Issued March 1, 14-day period: due March 15. Returned March 21 is
	// six days overdue at $1.00/day, so the fine owed is $6.00.
	loan, err := f.ledger.Issue(ctx, audit.System, "alice", bookID, day(2025, time.March, 1))
	require.NoError(t, err)
	lateReturn := day(2025, time.March, 21)

	_, err = f.ledger.Return(ctx, audit.System, loan.ID, lateReturn, decimal.NewFromFloat(7.00))
	assert.ErrorIs(t, err, ErrInvalidFine, "paying more than owed is rejected")

	_, err = f.ledger.Return(ctx, audit.System, loan.ID, lateReturn, decimal.NewFromFloat(-1.00))
	assert.ErrorIs(t, err, ErrInvalidFine)

	// A rejected payment leaves the loan open and the copy out.
	got, err := f.ledger.Loan(ctx, loan.ID)
	require.NoError(t, err)
	assert.True(t, got.Open())
	assert.Equal(t, 0, f.available(t, bookID))

	// Partial payment up to the amount owed is accepted.
	returned, err := f.ledger.Return(ctx, audit.System, loan.ID, lateReturn, decimal.NewFromFloat(6.00))
	require.NoError(t, err)
	assert.True(t, returned.FinePaid.Equal(decimal.NewFromFloat(6.00)))
	assert.Equal(t, 1, f.available(t, bookID))
}

func TestOverdueViewsDivergeAfterSettingsChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bookID := f.addBook(t, "Dune", 1)

	// Issued under the default 14-day period: due March 15.
	loan, err := f.ledger.Issue(ctx, audit.System, "alice", bookID, day(2025, time.March, 1))
	require.NoError(t, err)

	// Shorten the loan period mid-loan.
	cfg := f.settings.Get()
	cfg.LoanPeriodDays = 7
	require.NoError(t, f.settings.Update(ctx, audit.System, cfg))

	// Ten days in: the dashboard view applies the current 7-day period,
	// while the per-loan view honors the due date fixed at issue time.
	asOf := day(2025, time.March, 11)
	dashboard := f.ledger.DashboardOverdue(ctx, asOf)
	require.Len(t, dashboard, 1)
	assert.Equal(t, loan.ID, dashboard[0].ID)
	assert.Empty(t, f.ledger.IssueOverdue(ctx, asOf))

	// Past the original due date both views agree.
	later := day(2025, time.March, 16)
	assert.Len(t, f.ledger.DashboardOverdue(ctx, later), 1)
	assert.Len(t, f.ledger.IssueOverdue(ctx, later), 1)

	// A returned loan drops out of both.
	_, err = f.ledger.Return(ctx, audit.System, loan.ID, later, decimal.Zero)
	require.NoError(t, err)
	assert.Empty(t, f.ledger.DashboardOverdue(ctx, later))
	assert.Empty(t, f.ledger.IssueOverdue(ctx, later))
}

func TestIssuePersistFailureReleasesCopy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bookID := f.addBook(t, "Dune", 1)

	f.loanSnap.FailReplace = errors.New("disk full")
	_, err := f.ledger.Issue(ctx, audit.System, "alice", bookID, day(2025, time.March, 1))
	assert.ErrorIs(t, err, store.ErrStorage)

	assert.Empty(t, f.ledger.Loans(ctx))
	assert.Equal(t, 1, f.available(t, bookID), "reserved copy is released on failure")

	f.loanSnap.FailReplace = nil
	_, err = f.ledger.Issue(ctx, audit.System, "alice", bookID, day(2025, time.March, 1))
	assert.NoError(t, err)
}

func TestReturnPersistFailureKeepsLoanOpen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bookID := f.addBook(t, "Dune", 1)

	loan, err := f.ledger.Issue(ctx, audit.System, "alice", bookID, day(2025, time.March, 1))
	require.NoError(t, err)

	f.loanSnap.FailReplace = errors.New("disk full")
	_, err = f.ledger.Return(ctx, audit.System, loan.ID, day(2025, time.March, 10), decimal.Zero)
	assert.ErrorIs(t, err, store.ErrStorage)

	got, err := f.ledger.Loan(ctx, loan.ID)
	require.NoError(t, err)
	assert.True(t, got.Open())
	assert.True(t, got.FinePaid.IsZero())
	assert.Equal(t, 0, f.available(t, bookID), "released copy is re-reserved on failure")
}

func TestLoansForUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bookID := f.addBook(t, "Dune", 3)

	_, err := f.members.Register(ctx, audit.System, "bob", "pw-bob", "Bob", "Jones", "bob@example.com", membership.RoleUser)
	require.NoError(t, err)

	_, err = f.ledger.Issue(ctx, audit.System, "alice", bookID, day(2025, time.March, 1))
	require.NoError(t, err)
	_, err = f.ledger.Issue(ctx, audit.System, "bob", bookID, day(2025, time.March, 2))
	require.NoError(t, err)
	_, err = f.ledger.Issue(ctx, audit.System, "alice", bookID, day(2025, time.March, 3))
	require.NoError(t, err)

	loans := f.ledger.LoansForUser(ctx, "alice")
	require.Len(t, loans, 2)
	assert.Equal(t, day(2025, time.March, 1), loans[0].IssueDate, "loans come back in issue order")
	assert.Equal(t, day(2025, time.March, 3), loans[1].IssueDate)
}

func TestFineMath(t *testing.T) {
	perDay := decimal.NewFromFloat(1.50)
	expected := day(2025, time.March, 15)

	tests := []struct {
		name     string
		returned time.Time
		days     int
		owed     string
	}{
		{"early return", day(2025, time.March, 10), 0, "0"},
		{"on the due date", expected, 0, "0"},
		{"one day late", day(2025, time.March, 16), 1, "1.5"},
		{"six days late", day(2025, time.March, 21), 6, "9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.days, DaysOverdue(expected, tt.returned))
			assert.Equal(t, tt.owed, FineOwed(expected, tt.returned, perDay).String())
		})
	}
}

func TestDateOnly(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*60*60)
	stamp := time.Date(2025, time.March, 1, 3, 30, 0, 0, loc) // Feb 28 22:30 UTC
	assert.Equal(t, day(2025, time.February, 28), DateOnly(stamp))
	assert.Equal(t, day(2025, time.March, 1), DateOnly(day(2025, time.March, 1)))
}
