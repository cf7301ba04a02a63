package usage

import (
	"context"

	nodeservices "github.com/veilnet-io/veilnet/internal/application/node/services"
	"github.com/veilnet-io/veilnet/internal/domain/node"
	"github.com/veilnet-io/veilnet/internal/domain/user"
	"github.com/veilnet-io/veilnet/internal/infrastructure/cache"
	"github.com/veilnet-io/veilnet/internal/shared/biztime"
	"github.com/veilnet-io/veilnet/internal/shared/logger"
)

// AutoDelete removes users whose terminal status has outlived the
// auto-delete window.
type AutoDelete struct {
	users      user.Repository
	reminders  user.ReminderRepository
	usage      node.UsageRepository
	presence   *cache.PresenceCache
	operations *nodeservices.Operations
	logger     logger.Interface

	// DefaultDays applies to users without a per-user window; zero or
	// negative disables the default. IncludeLimited extends the sweep to
	// limited users.
	DefaultDays    int
	IncludeLimited bool
}

// NewAutoDelete creates the auto-delete sweep.
func NewAutoDelete(
	users user.Repository,
	reminders user.ReminderRepository,
	usage node.UsageRepository,
	presence *cache.PresenceCache,
	operations *nodeservices.Operations,
	defaultDays int,
	includeLimited bool,
	log logger.Interface,
) *AutoDelete {
	return &AutoDelete{
		users:          users,
		reminders:      reminders,
		usage:          usage,
		presence:       presence,
		operations:     operations,
		logger:         log,
		DefaultDays:    defaultDays,
		IncludeLimited: includeLimited,
	}
}

// Tick deactivates and deletes every eligible user.
func (a *AutoDelete) Tick(ctx context.Context) error {
	candidates, err := a.users.ListAutoDeleteCandidates(ctx, biztime.NowUTC(), a.DefaultDays, a.IncludeLimited)
	if err != nil {
		return err
	}

	for _, u := range candidates {
		if u.ActiveNodeID() != nil {
			if err := a.operations.DeactivateUser(ctx, u.AccountNumber()); err != nil {
				a.logger.Warnw("failed to deactivate user before auto-delete", "user_id", u.ID(), "error", err)
			}
		}
		if err := a.reminders.DeleteByUser(ctx, u.ID()); err != nil {
			a.logger.Warnw("failed to delete reminders on auto-delete", "user_id", u.ID(), "error", err)
		}
		if err := a.usage.DeleteUserUsage(ctx, u.ID()); err != nil {
			a.logger.Warnw("failed to delete usage rows on auto-delete", "user_id", u.ID(), "error", err)
		}
		a.presence.Forget(ctx, u.ID())
		if err := a.users.Delete(ctx, u.ID()); err != nil {
			a.logger.Errorw("auto-delete failed", "user_id", u.ID(), "error", err)
			continue
		}
		a.logger.Infow("user auto-deleted", "user_id", u.ID(), "status", u.Status())
	}
	return nil
}
