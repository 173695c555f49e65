package catalog

import (
	"context"

	"loanledger/internal/audit"
)

// Service defines the interface for the catalog service.
type Service interface {
	AddBook(ctx context.Context, actor audit.Actor, title, author, isbn, category string, stock int) (*Book, error)
	UpdateBook(ctx context.Context, actor audit.Actor, id int64, title, author, isbn, category string, stock int) (*Book, error)
	RemoveBook(ctx context.Context, actor audit.Actor, id int64) error
	Book(ctx context.Context, id int64) (*Book, error)
	Books(ctx context.Context) []*Book
	Search(ctx context.Context, query string) []*Book

	// ReserveCopy and ReleaseCopy are the only mutations of Available.
	// The ledger calls them while executing an issue or return.
	ReserveCopy(ctx context.Context, id int64) error
	ReleaseCopy(ctx context.Context, id int64) error
}
