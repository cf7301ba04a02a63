package usecases

import (
	"context"

	nodeservices "github.com/veilnet-io/veilnet/internal/application/node/services"
	"github.com/veilnet-io/veilnet/internal/domain/node"
	"github.com/veilnet-io/veilnet/internal/domain/user"
	"github.com/veilnet-io/veilnet/internal/infrastructure/cache"
	"github.com/veilnet-io/veilnet/internal/shared/logger"
)

type DeleteUserUseCase struct {
	users      user.Repository
	reminders  user.ReminderRepository
	usage      node.UsageRepository
	presence   *cache.PresenceCache
	operations *nodeservices.Operations
	logger     logger.Interface
}

func NewDeleteUserUseCase(
	users user.Repository,
	reminders user.ReminderRepository,
	usage node.UsageRepository,
	presence *cache.PresenceCache,
	operations *nodeservices.Operations,
	log logger.Interface,
) *DeleteUserUseCase {
	return &DeleteUserUseCase{
		users:      users,
		reminders:  reminders,
		usage:      usage,
		presence:   presence,
		operations: operations,
		logger:     log,
	}
}

// Execute deactivates the user first so the node's config drops the
// credentials, then removes the row and its satellite data.
func (uc *DeleteUserUseCase) Execute(ctx context.Context, accountNumber string) error {
	u, err := uc.users.GetByAccountNumber(ctx, accountNumber)
	if err != nil {
		return err
	}

	if u.ActiveNodeID() != nil {
		if err := uc.operations.DeactivateUser(ctx, accountNumber); err != nil {
			uc.logger.Warnw("failed to deactivate user before delete",
				"user_id", u.ID(), "error", err)
		}
	}

	if err := uc.reminders.DeleteByUser(ctx, u.ID()); err != nil {
		uc.logger.Warnw("failed to delete user reminders", "user_id", u.ID(), "error", err)
	}
	if err := uc.usage.DeleteUserUsage(ctx, u.ID()); err != nil {
		uc.logger.Warnw("failed to delete user usage rows", "user_id", u.ID(), "error", err)
	}
	uc.presence.Forget(ctx, u.ID())

	if err := uc.users.Delete(ctx, u.ID()); err != nil {
		return err
	}
	uc.logger.Infow("user deleted", "id", u.ID(), "account_number", accountNumber)
	return nil
}
