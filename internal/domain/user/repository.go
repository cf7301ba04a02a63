package user

import (
	"context"
	"time"
)

// IDAccountPair maps an engine-report identity to a user row.
type IDAccountPair struct {
	ID            uint
	AccountNumber string
}

// Repository is the persistence contract for the user aggregate.
type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uint) (*User, error)
	GetByAccountNumber(ctx context.Context, accountNumber string) (*User, error)
	List(ctx context.Context) ([]*User, error)
	ListByStatus(ctx context.Context, status Status) ([]*User, error)
	ListByActiveNode(ctx context.Context, nodeID uint) ([]*User, error)
	ListIDAccountPairs(ctx context.Context) ([]IDAccountPair, error)
	// ListAutoDeleteCandidates returns users whose status has been expired
	// (or, when includeLimited, limited) for at least their effective
	// auto-delete window as of now. Deletion is the caller's responsibility.
	ListAutoDeleteCandidates(ctx context.Context, now time.Time, defaultDays int, includeLimited bool) ([]*User, error)
	Update(ctx context.Context, u *User) error
	Delete(ctx context.Context, id uint) error
}
