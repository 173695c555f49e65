// Package settings holds the process-wide library configuration: fine
// rate, loan period, per-user limits, and contact details. The values
// live in a single persisted document and are read by the ledger at
// issue and return time.
package settings

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"loanledger/internal/audit"
	"loanledger/internal/store"
)

var ErrInvalid = errors.New("invalid settings")

// Settings is the library configuration document.
type Settings struct {
	LibraryName     string          `json:"library_name"`
	ContactEmail    string          `json:"contact_email"`
	ContactPhone    string          `json:"contact_phone"`
	OperatingHours  string          `json:"operating_hours"`
	FinePerDay      decimal.Decimal `json:"fine_per_day"`
	MaxBooksPerUser int             `json:"max_books_per_user"`
	LoanPeriodDays  int             `json:"loan_period_days"`
}

// Default returns the configuration a fresh deployment starts with.
func Default() Settings {
	return Settings{
		LibraryName:     "Central Library",
		ContactEmail:    "contact@library.com",
		ContactPhone:    "123-456-7890",
		OperatingHours:  "9:00 AM - 6:00 PM",
		FinePerDay:      decimal.NewFromFloat(1.00),
		MaxBooksPerUser: 5,
		LoanPeriodDays:  14,
	}
}

func (s Settings) validate() error {
	if s.FinePerDay.IsNegative() {
		return fmt.Errorf("%w: fine per day must not be negative", ErrInvalid)
	}
	if s.MaxBooksPerUser < 1 {
		return fmt.Errorf("%w: max books per user must be at least 1", ErrInvalid)
	}
	if s.LoanPeriodDays < 1 {
		return fmt.Errorf("%w: loan period must be at least 1 day", ErrInvalid)
	}
	if s.LibraryName == "" {
		return fmt.Errorf("%w: library name is required", ErrInvalid)
	}
	return nil
}

// Service serves the current settings and applies administrative updates.
type Service struct {
	mu      sync.RWMutex
	current Settings
	snap    store.Document[Settings]
	rec     audit.Recorder
	log     *zap.Logger
}

// NewService loads the persisted settings, falling back to Default for a
// fresh deployment.
func NewService(ctx context.Context, snap store.Document[Settings], rec audit.Recorder, log *zap.Logger) (*Service, error) {
	current, ok, err := snap.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	if !ok {
		current = Default()
	}
	return &Service{current: current, snap: snap, rec: rec, log: log}, nil
}

// Get returns a copy of the current settings.
func (s *Service) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Update validates and persists new settings. On a persistence failure
// the previous settings stay in effect.
func (s *Service) Update(ctx context.Context, actor audit.Actor, next Settings) error {
	if err := next.validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.current
	s.current = next
	if err := s.snap.Replace(ctx, next); err != nil {
		s.current = prev
		return fmt.Errorf("%w: persist settings: %v", store.ErrStorage, err)
	}

	if err := s.rec.Record(ctx, audit.New("Update Settings", actor, "library settings changed")); err != nil {
		s.log.Warn("audit record failed", zap.Error(err))
	}
	s.log.Info("settings updated", zap.String("actor", actor.Username))
	return nil
}
