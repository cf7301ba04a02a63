package usecases

import (
	"context"
	"time"

	"github.com/veilnet-io/veilnet/internal/domain/admin"
	"github.com/veilnet-io/veilnet/internal/shared/config"
	"github.com/veilnet-io/veilnet/internal/shared/errors"
	"github.com/veilnet-io/veilnet/internal/shared/logger"
)

type AdminResult struct {
	ID        uint      `json:"id"`
	Username  string    `json:"username"`
	IsSudo    bool      `json:"is_sudo"`
	CreatedAt time.Time `json:"created_at"`
}

func newAdminResult(a *admin.Admin) *AdminResult {
	return &AdminResult{
		ID:        a.ID(),
		Username:  a.Username(),
		IsSudo:    a.IsSudo(),
		CreatedAt: a.CreatedAt(),
	}
}

type CreateAdminCommand struct {
	Username string
	Password string
	IsSudo   bool
}

type UpdateAdminCommand struct {
	Username string
	Password *string
	IsSudo   *bool
}

// ManageAdminsUseCase covers admin account CRUD.
type ManageAdminsUseCase struct {
	admins     admin.Repository
	bcryptCost int
	logger     logger.Interface
}

func NewManageAdminsUseCase(admins admin.Repository, cfg *config.AuthConfig, log logger.Interface) *ManageAdminsUseCase {
	return &ManageAdminsUseCase{admins: admins, bcryptCost: cfg.BcryptCost, logger: log}
}

func (uc *ManageAdminsUseCase) Create(ctx context.Context, cmd CreateAdminCommand) (*AdminResult, error) {
	a, err := admin.NewAdmin(cmd.Username, cmd.Password, cmd.IsSudo, uc.bcryptCost)
	if err != nil {
		return nil, errors.NewValidationError(err.Error())
	}
	if err := uc.admins.Create(ctx, a); err != nil {
		return nil, err
	}
	uc.logger.Infow("admin created", "username", a.Username(), "is_sudo", a.IsSudo())
	return newAdminResult(a), nil
}

func (uc *ManageAdminsUseCase) Get(ctx context.Context, username string) (*AdminResult, error) {
	a, err := uc.admins.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return newAdminResult(a), nil
}

func (uc *ManageAdminsUseCase) List(ctx context.Context) ([]*AdminResult, error) {
	admins, err := uc.admins.List(ctx)
	if err != nil {
		return nil, err
	}
	results := make([]*AdminResult, 0, len(admins))
	for _, a := range admins {
		results = append(results, newAdminResult(a))
	}
	return results, nil
}

// Update patches the password and sudo flag. A password change invalidates
// previously issued tokens through the reset timestamp.
func (uc *ManageAdminsUseCase) Update(ctx context.Context, cmd UpdateAdminCommand) (*AdminResult, error) {
	a, err := uc.admins.GetByUsername(ctx, cmd.Username)
	if err != nil {
		return nil, err
	}
	if cmd.Password != nil {
		if err := a.SetPassword(*cmd.Password, uc.bcryptCost); err != nil {
			return nil, errors.NewValidationError(err.Error())
		}
	}
	if cmd.IsSudo != nil {
		a.SetSudo(*cmd.IsSudo)
	}
	if err := uc.admins.Update(ctx, a); err != nil {
		return nil, err
	}
	return newAdminResult(a), nil
}

func (uc *ManageAdminsUseCase) Delete(ctx context.Context, username string) error {
	a, err := uc.admins.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	return uc.admins.Delete(ctx, a.ID())
}
