package catalog

import (
	"errors"
	"time"
)

var (
	// ErrNotFound means no book carries the requested ID.
	ErrNotFound = errors.New("book not found")

	// ErrOutOfStock means every copy of the book is on loan.
	ErrOutOfStock = errors.New("no copies available")

	// ErrCopiesOutstanding blocks removing or shrinking a book while
	// open loans still reference its copies.
	ErrCopiesOutstanding = errors.New("copies are still on loan")

	// ErrInvalidStock rejects nonsensical stock counts.
	ErrInvalidStock = errors.New("stock must not be negative")
)

// Book is one catalog record. Available tracks copies not currently on
// loan and is mutated only through ReserveCopy and ReleaseCopy; the
// invariant 0 <= Available <= Stock holds at all times.
type Book struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	ISBN      string    `json:"isbn"`
	Category  string    `json:"category"`
	Stock     int       `json:"stock"`
	Available int       `json:"available"`
	AddedOn   time.Time `json:"added_on"`
}

// OnLoan is the number of copies currently checked out.
func (b Book) OnLoan() int {
	return b.Stock - b.Available
}
