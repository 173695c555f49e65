// Package reports derives read-only views over the ledger, catalog, and
// membership snapshots: lending history, fines collected, and popular
// titles. Nothing here mutates state.
package reports

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"loanledger/internal/catalog"
	"loanledger/internal/ledger"
	"loanledger/internal/membership"
)

// HistoryFilter narrows lending history. Zero fields match everything;
// the date window applies to the issue date.
type HistoryFilter struct {
	From     time.Time
	To       time.Time
	Username string
	BookID   int64
}

// Record is one row of lending history, joined against the catalog and
// roster for display names.
type Record struct {
	LoanID             string          `json:"loan_id"`
	Username           string          `json:"username"`
	MemberName         string          `json:"member_name"`
	BookID             int64           `json:"book_id"`
	BookTitle          string          `json:"book_title"`
	IssueDate          time.Time       `json:"issue_date"`
	ExpectedReturnDate time.Time       `json:"expected_return_date"`
	ReturnDate         *time.Time      `json:"return_date,omitempty"`
	Status             string          `json:"status"`
	FinePaid           decimal.Decimal `json:"fine_paid"`
}

// Summary aggregates a filtered history slice.
type Summary struct {
	TotalRecords int             `json:"total_records"`
	Returned     int             `json:"returned"`
	StillOut     int             `json:"still_out"`
	TotalFines   decimal.Decimal `json:"total_fines"`
}

// FineSummary aggregates returns that collected a fine.
type FineSummary struct {
	Total   decimal.Decimal `json:"total"`
	Count   int             `json:"count"`
	Average decimal.Decimal `json:"average"`
}

// BookCount pairs a book with its all-time issue count.
type BookCount struct {
	BookID int64  `json:"book_id"`
	Title  string `json:"title"`
	Issues int    `json:"issues"`
}

// Service builds reports from the live services' snapshot accessors.
type Service struct {
	ledger  ledger.Service
	catalog catalog.Service
	members membership.Service
}

// NewService wires the read-only collaborators.
func NewService(ldg ledger.Service, cat catalog.Service, members membership.Service) *Service {
	return &Service{ledger: ldg, catalog: cat, members: members}
}

func (s *Service) memberName(ctx context.Context, username string) string {
	m, err := s.members.Member(ctx, username)
	if err != nil {
		return username
	}
	return m.FullName()
}

func (s *Service) bookTitle(ctx context.Context, id int64) string {
	b, err := s.catalog.Book(ctx, id)
	if err != nil {
		return fmt.Sprintf("book %d", id)
	}
	return b.Title
}

func (f HistoryFilter) matches(l *ledger.Loan) bool {
	if f.Username != "" && l.Username != f.Username {
		return false
	}
	if f.BookID != 0 && l.BookID != f.BookID {
		return false
	}
	if !f.From.IsZero() && l.IssueDate.Before(ledger.DateOnly(f.From)) {
		return false
	}
	if !f.To.IsZero() && l.IssueDate.After(ledger.DateOnly(f.To)) {
		return false
	}
	return true
}

// LendingHistory returns the filtered history in issue order plus its
// summary.
func (s *Service) LendingHistory(ctx context.Context, f HistoryFilter) ([]Record, Summary) {
	var records []Record
	summary := Summary{TotalFines: decimal.Zero}

	for _, l := range s.ledger.Loans(ctx) {
		if !f.matches(l) {
			continue
		}
		records = append(records, Record{
			LoanID:             l.ID.String(),
			Username:           l.Username,
			MemberName:         s.memberName(ctx, l.Username),
			BookID:             l.BookID,
			BookTitle:          s.bookTitle(ctx, l.BookID),
			IssueDate:          l.IssueDate,
			ExpectedReturnDate: l.ExpectedReturnDate,
			ReturnDate:         l.ReturnDate,
			Status:             l.Status,
			FinePaid:           l.FinePaid,
		})
		summary.TotalRecords++
		if l.Open() {
			summary.StillOut++
		} else {
			summary.Returned++
		}
		summary.TotalFines = summary.TotalFines.Add(l.FinePaid)
	}
	return records, summary
}

// Fines summarizes all returns that collected a positive fine.
func (s *Service) Fines(ctx context.Context) FineSummary {
	out := FineSummary{Total: decimal.Zero, Average: decimal.Zero}
	for _, l := range s.ledger.Loans(ctx) {
		if l.FinePaid.IsPositive() {
			out.Total = out.Total.Add(l.FinePaid)
			out.Count++
		}
	}
	if out.Count > 0 {
		out.Average = out.Total.Div(decimal.NewFromInt(int64(out.Count))).Round(2)
	}
	return out
}

// PopularBooks returns the top n books by all-time issue count, most
// issued first. Ties break by book ID for a stable order.
func (s *Service) PopularBooks(ctx context.Context, n int) []BookCount {
	counts := make(map[int64]int)
	for _, l := range s.ledger.Loans(ctx) {
		counts[l.BookID]++
	}

	out := make([]BookCount, 0, len(counts))
	for id, c := range counts {
		out = append(out, BookCount{BookID: id, Title: s.bookTitle(ctx, id), Issues: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Issues != out[j].Issues {
			return out[i].Issues > out[j].Issues
		}
		return out[i].BookID < out[j].BookID
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// WriteCSV streams history records to w with a header row.
func (s *Service) WriteCSV(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	header := []string{"loan_id", "username", "member_name", "book_id", "book_title", "issue_date", "expected_return_date", "return_date", "status", "fine_paid"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	const day = "2006-01-02"
	for _, r := range records {
		returned := ""
		if r.ReturnDate != nil {
			returned = r.ReturnDate.Format(day)
		}
		row := []string{
			r.LoanID,
			r.Username,
			r.MemberName,
			fmt.Sprintf("%d", r.BookID),
			r.BookTitle,
			r.IssueDate.Format(day),
			r.ExpectedReturnDate.Format(day),
			returned,
			r.Status,
			r.FinePaid.StringFixed(2),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
