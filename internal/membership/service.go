package membership

import (
	"context"

	"loanledger/internal/audit"
)

// Service defines the interface for the membership service.
type Service interface {
	Register(ctx context.Context, actor audit.Actor, username, password, firstName, lastName, email, role string) (*Member, error)
	Authenticate(ctx context.Context, username, password string) (*Member, error)
	Member(ctx context.Context, username string) (*Member, error)
	Members(ctx context.Context) []*Member

	// IsEligible reports whether a member may borrow: the member exists,
	// is active, and holds the user role.
	IsEligible(ctx context.Context, username string) bool

	SetActive(ctx context.Context, actor audit.Actor, username string, active bool) error
	SetRole(ctx context.Context, actor audit.Actor, username, role string) error
	ChangePassword(ctx context.Context, actor audit.Actor, username, newPassword string) error
}
