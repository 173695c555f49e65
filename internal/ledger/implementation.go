package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"loanledger/internal/audit"
	"loanledger/internal/catalog"
	"loanledger/internal/membership"
	"loanledger/internal/metrics"
	"loanledger/internal/store"
)

// service implements the Service interface. A single mutex spans every
// issue/return from the eligibility check through both mutations, so no
// interleaving can reserve a copy that does not exist or double-release
// one.
type service struct {
	mu    sync.Mutex
	loans map[uuid.UUID]*Loan
	order []uuid.UUID // issue order

	catalog  catalog.Service
	members  membership.Service
	settings SettingsSource
	snap     store.Collection[Loan]
	rec      audit.Recorder
	log      *zap.Logger
}

// NewService loads the loan snapshot and wires the collaborators.
func NewService(ctx context.Context, snap store.Collection[Loan], cat catalog.Service, members membership.Service, st SettingsSource, rec audit.Recorder, log *zap.Logger) (Service, error) {
	items, err := snap.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}

	s := &service{
		loans:    make(map[uuid.UUID]*Loan, len(items)),
		catalog:  cat,
		members:  members,
		settings: st,
		snap:     snap,
		rec:      rec,
		log:      log,
	}
	for i := range items {
		l := items[i]
		s.loans[l.ID] = &l
		s.order = append(s.order, l.ID)
	}
	return s, nil
}

// snapshot builds the persisted form in issue order. Callers hold mu.
func (s *service) snapshot() []Loan {
	out := make([]Loan, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.loans[id])
	}
	return out
}

func (s *service) persist(ctx context.Context) error {
	if err := s.snap.Replace(ctx, s.snapshot()); err != nil {
		return fmt.Errorf("%w: persist ledger: %v", store.ErrStorage, err)
	}
	return nil
}

func (s *service) record(ctx context.Context, action string, actor audit.Actor, details string) {
	if err := s.rec.Record(ctx, audit.New(action, actor, details)); err != nil {
		s.log.Warn("audit record failed", zap.String("action", action), zap.Error(err))
	}
}

// openCountLocked counts open loans for a member. Callers hold mu.
func (s *service) openCountLocked(username string) int {
	n := 0
	for _, id := range s.order {
		l := s.loans[id]
		if l.Username == username && l.Open() {
			n++
		}
	}
	return n
}

func (s *service) Issue(ctx context.Context, actor audit.Actor, username string, bookID int64, issueDate time.Time) (*Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := s.settings.Get()

	if !s.members.IsEligible(ctx, username) {
		return nil, ErrIneligibleMember
	}
	if held := s.openCountLocked(username); held >= cfg.MaxBooksPerUser {
		return nil, fmt.Errorf("%w: %s holds %d of %d", ErrLoanLimitExceeded, username, held, cfg.MaxBooksPerUser)
	}
	if err := s.catalog.ReserveCopy(ctx, bookID); err != nil {
		return nil, err
	}

	issued := DateOnly(issueDate)
	loan := &Loan{
		ID:                 uuid.New(),
		Username:           username,
		BookID:             bookID,
		IssueDate:          issued,
		ExpectedReturnDate: issued.AddDate(0, 0, cfg.LoanPeriodDays),
		FinePaid:           decimal.Zero,
		Status:             StatusIssued,
	}
	s.loans[loan.ID] = loan
	s.order = append(s.order, loan.ID)

	if err := s.persist(ctx); err != nil {
		delete(s.loans, loan.ID)
		s.order = s.order[:len(s.order)-1]
		s.log.Warn("compensating failed issue", zap.Int64("book_id", bookID), zap.Error(err))
		if relErr := s.catalog.ReleaseCopy(ctx, bookID); relErr != nil {
			s.log.Error("failed to compensate reserved copy", zap.Int64("book_id", bookID), zap.Error(relErr))
		}
		return nil, err
	}

	s.record(ctx, "Issue Book", actor, fmt.Sprintf("issued book %d to %s", bookID, username))
	metrics.IssuesTotal.Inc()
	s.log.Info("book issued",
		zap.String("loan_id", loan.ID.String()),
		zap.String("username", username),
		zap.Int64("book_id", bookID),
		zap.Time("expected_return", loan.ExpectedReturnDate),
	)
	copied := *loan
	return &copied, nil
}

func (s *service) Return(ctx context.Context, actor audit.Actor, loanID uuid.UUID, returnDate time.Time, finePaid decimal.Decimal) (*Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	loan, ok := s.loans[loanID]
	if !ok {
		return nil, ErrNotFound
	}
	if !loan.Open() {
		return nil, ErrAlreadyReturned
	}

	returned := DateOnly(returnDate)
	if returned.Before(loan.IssueDate) {
		return nil, ErrInvalidReturnDate
	}

	cfg := s.settings.Get()
	owed := FineOwed(loan.ExpectedReturnDate, returned, cfg.FinePerDay)
	if finePaid.IsNegative() || finePaid.GreaterThan(owed) {
		return nil, fmt.Errorf("%w: paid %s, owed %s", ErrInvalidFine, finePaid, owed)
	}

	if err := s.catalog.ReleaseCopy(ctx, loan.BookID); err != nil {
		return nil, err
	}

	prev := *loan
	loan.ReturnDate = &returned
	loan.FinePaid = finePaid
	loan.Status = StatusReturned

	if err := s.persist(ctx); err != nil {
		*loan = prev
		s.log.Warn("compensating failed return", zap.Int64("book_id", loan.BookID), zap.Error(err))
		if resErr := s.catalog.ReserveCopy(ctx, loan.BookID); resErr != nil {
			s.log.Error("failed to compensate released copy", zap.Int64("book_id", loan.BookID), zap.Error(resErr))
		}
		return nil, err
	}

	s.record(ctx, "Return Book", actor, fmt.Sprintf("book %d returned by %s, fine %s", loan.BookID, loan.Username, finePaid))
	metrics.ReturnsTotal.Inc()
	if fine, _ := finePaid.Float64(); fine > 0 {
		metrics.FinesCollected.Add(fine)
	}
	s.log.Info("book returned",
		zap.String("loan_id", loanID.String()),
		zap.String("username", loan.Username),
		zap.Int64("book_id", loan.BookID),
		zap.String("fine_paid", finePaid.String()),
	)
	copied := *loan
	return &copied, nil
}

func (s *service) DashboardOverdue(ctx context.Context, asOf time.Time) []*Loan {
	cfg := s.settings.Get()
	day := DateOnly(asOf)

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*Loan
	for _, id := range s.order {
		l := s.loans[id]
		if l.Open() && wholeDays(l.IssueDate, day) > cfg.LoanPeriodDays {
			copied := *l
			out = append(out, &copied)
		}
	}
	return out
}

func (s *service) IssueOverdue(ctx context.Context, asOf time.Time) []*Loan {
	day := DateOnly(asOf)

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*Loan
	for _, id := range s.order {
		l := s.loans[id]
		if l.Open() && day.After(l.ExpectedReturnDate) {
			copied := *l
			out = append(out, &copied)
		}
	}
	return out
}

func (s *service) Loan(ctx context.Context, id uuid.UUID) (*Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	loan, ok := s.loans[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *loan
	return &copied, nil
}

func (s *service) Loans(ctx context.Context) []*Loan {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Loan, 0, len(s.order))
	for _, id := range s.order {
		copied := *s.loans[id]
		out = append(out, &copied)
	}
	return out
}

func (s *service) OpenLoans(ctx context.Context) []*Loan {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*Loan
	for _, id := range s.order {
		if l := s.loans[id]; l.Open() {
			copied := *l
			out = append(out, &copied)
		}
	}
	return out
}

func (s *service) LoansForUser(ctx context.Context, username string) []*Loan {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*Loan
	for _, id := range s.order {
		if l := s.loans[id]; l.Username == username {
			copied := *l
			out = append(out, &copied)
		}
	}
	return out
}

func (s *service) OpenLoanCount(ctx context.Context, username string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openCountLocked(username)
}
