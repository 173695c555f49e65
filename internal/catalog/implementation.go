package catalog

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"loanledger/internal/audit"
	"loanledger/internal/store"
)

// service implements the Service interface over an in-memory index that
// is persisted as a whole-collection snapshot after every mutation.
type service struct {
	mu     sync.RWMutex
	books  map[int64]*Book
	order  []int64 // catalog insertion order
	nextID int64

	snap store.Collection[Book]
	rec  audit.Recorder
	log  *zap.Logger
}

// NewService loads the catalog snapshot and builds the ID index.
func NewService(ctx context.Context, snap store.Collection[Book], rec audit.Recorder, log *zap.Logger) (Service, error) {
	items, err := snap.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	s := &service{
		books:  make(map[int64]*Book, len(items)),
		nextID: 1,
		snap:   snap,
		rec:    rec,
		log:    log,
	}
	for i := range items {
		b := items[i]
		s.books[b.ID] = &b
		s.order = append(s.order, b.ID)
		if b.ID >= s.nextID {
			s.nextID = b.ID + 1
		}
	}
	return s, nil
}

// snapshot builds the persisted form in insertion order. Callers hold mu.
func (s *service) snapshot() []Book {
	out := make([]Book, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.books[id])
	}
	return out
}

func (s *service) persist(ctx context.Context) error {
	if err := s.snap.Replace(ctx, s.snapshot()); err != nil {
		return fmt.Errorf("%w: persist catalog: %v", store.ErrStorage, err)
	}
	return nil
}

func (s *service) record(ctx context.Context, action string, actor audit.Actor, details string) {
	if err := s.rec.Record(ctx, audit.New(action, actor, details)); err != nil {
		s.log.Warn("audit record failed", zap.String("action", action), zap.Error(err))
	}
}

func (s *service) AddBook(ctx context.Context, actor audit.Actor, title, author, isbn, category string, stock int) (*Book, error) {
	if stock < 0 {
		return nil, ErrInvalidStock
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	book := &Book{
		ID:        s.nextID,
		Title:     title,
		Author:    author,
		ISBN:      isbn,
		Category:  category,
		Stock:     stock,
		Available: stock,
		AddedOn:   time.Now().UTC(),
	}
	s.books[book.ID] = book
	s.order = append(s.order, book.ID)
	s.nextID++

	if err := s.persist(ctx); err != nil {
		delete(s.books, book.ID)
		s.order = s.order[:len(s.order)-1]
		s.nextID--
		return nil, err
	}

	s.record(ctx, "Add Book", actor, fmt.Sprintf("added %q by %s", title, author))
	s.log.Info("book added", zap.Int64("book_id", book.ID), zap.String("title", title))
	copied := *book
	return &copied, nil
}

func (s *service) UpdateBook(ctx context.Context, actor audit.Actor, id int64, title, author, isbn, category string, stock int) (*Book, error) {
	if stock < 0 {
		return nil, ErrInvalidStock
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	book, ok := s.books[id]
	if !ok {
		return nil, ErrNotFound
	}
	onLoan := book.OnLoan()
	if stock < onLoan {
		return nil, fmt.Errorf("%w: %d copies out", ErrCopiesOutstanding, onLoan)
	}

	prev := *book
	book.Title = title
	book.Author = author
	book.ISBN = isbn
	book.Category = category
	book.Stock = stock
	book.Available = stock - onLoan

	if err := s.persist(ctx); err != nil {
		*book = prev
		return nil, err
	}

	s.record(ctx, "Update Book", actor, fmt.Sprintf("updated %q", title))
	copied := *book
	return &copied, nil
}

func (s *service) RemoveBook(ctx context.Context, actor audit.Actor, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	book, ok := s.books[id]
	if !ok {
		return ErrNotFound
	}
	if book.OnLoan() > 0 {
		return fmt.Errorf("%w: %d copies out", ErrCopiesOutstanding, book.OnLoan())
	}

	idx := -1
	for i, oid := range s.order {
		if oid == id {
			idx = i
			break
		}
	}
	delete(s.books, id)
	s.order = append(s.order[:idx], s.order[idx+1:]...)

	if err := s.persist(ctx); err != nil {
		s.books[id] = book
		s.order = append(s.order, 0)
		copy(s.order[idx+1:], s.order[idx:])
		s.order[idx] = id
		return err
	}

	s.record(ctx, "Remove Book", actor, fmt.Sprintf("removed %q", book.Title))
	s.log.Info("book removed", zap.Int64("book_id", id))
	return nil
}

func (s *service) Book(ctx context.Context, id int64) (*Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	book, ok := s.books[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *book
	return &copied, nil
}

func (s *service) Books(ctx context.Context) []*Book {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Book, 0, len(s.order))
	for _, id := range s.order {
		copied := *s.books[id]
		out = append(out, &copied)
	}
	return out
}

// Search matches a case-insensitive substring against title, author,
// ISBN, and category, returning hits in catalog insertion order.
func (s *service) Search(ctx context.Context, query string) []*Book {
	q := strings.ToLower(strings.TrimSpace(query))

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Book
	for _, id := range s.order {
		b := s.books[id]
		if q == "" ||
			strings.Contains(strings.ToLower(b.Title), q) ||
			strings.Contains(strings.ToLower(b.Author), q) ||
			strings.Contains(strings.ToLower(b.ISBN), q) ||
			strings.Contains(strings.ToLower(b.Category), q) {
			copied := *b
			out = append(out, &copied)
		}
	}
	return out
}

func (s *service) ReserveCopy(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	book, ok := s.books[id]
	if !ok {
		return ErrNotFound
	}
	if book.Available <= 0 {
		return ErrOutOfStock
	}

	book.Available--
	if err := s.persist(ctx); err != nil {
		book.Available++
		return err
	}
	return nil
}

func (s *service) ReleaseCopy(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	book, ok := s.books[id]
	if !ok {
		return ErrNotFound
	}
	if book.Available >= book.Stock {
		// A correct caller never over-releases; cap at stock.
		return nil
	}

	book.Available++
	if err := s.persist(ctx); err != nil {
		book.Available--
		return err
	}
	return nil
}
