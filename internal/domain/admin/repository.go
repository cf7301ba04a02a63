package admin

import "context"

// Repository is the persistence contract for administrators.
type Repository interface {
	Create(ctx context.Context, a *Admin) error
	GetByID(ctx context.Context, id uint) (*Admin, error)
	GetByUsername(ctx context.Context, username string) (*Admin, error)
	List(ctx context.Context) ([]*Admin, error)
	Update(ctx context.Context, a *Admin) error
	Delete(ctx context.Context, id uint) error
}
