package usage

import (
	"context"
	"time"

	nodeservices "github.com/veilnet-io/veilnet/internal/application/node/services"
	"github.com/veilnet-io/veilnet/internal/domain/node"
	"github.com/veilnet-io/veilnet/internal/domain/user"
	"github.com/veilnet-io/veilnet/internal/shared/biztime"
	"github.com/veilnet-io/veilnet/internal/shared/db"
	"github.com/veilnet-io/veilnet/internal/shared/goroutine"
	"github.com/veilnet-io/veilnet/internal/shared/logger"
)

// PeriodicReset zeroes usage for users whose reset strategy interval has
// elapsed.
type PeriodicReset struct {
	users      user.Repository
	resets     user.UsageResetRepository
	reminders  user.ReminderRepository
	usage      node.UsageRepository
	tm         *db.TransactionManager
	operations *nodeservices.Operations
	logger     logger.Interface
}

// NewPeriodicReset creates the periodic reset job.
func NewPeriodicReset(
	users user.Repository,
	resets user.UsageResetRepository,
	reminders user.ReminderRepository,
	usage node.UsageRepository,
	tm *db.TransactionManager,
	operations *nodeservices.Operations,
	log logger.Interface,
) *PeriodicReset {
	return &PeriodicReset{
		users:      users,
		resets:     resets,
		reminders:  reminders,
		usage:      usage,
		tm:         tm,
		operations: operations,
		logger:     log,
	}
}

// Tick resets every user whose interval is due. Limited users come back
// active and get reapplied to their node.
func (p *PeriodicReset) Tick(ctx context.Context) error {
	now := biztime.NowUTC()

	all, err := p.users.List(ctx)
	if err != nil {
		return err
	}

	for _, u := range all {
		if !u.IsResetDue(now) {
			continue
		}
		wasLimited := u.Status() == user.StatusLimited
		before := u.ResetUsage(now)

		err := p.tm.RunInTransaction(ctx, func(txCtx context.Context) error {
			if err := p.users.Update(txCtx, u); err != nil {
				return err
			}
			if err := p.resets.Create(txCtx, &user.UsageReset{UserID: u.ID(), UsedTrafficAtReset: before}); err != nil {
				return err
			}
			if err := p.usage.DeleteUserUsage(txCtx, u.ID()); err != nil {
				return err
			}
			return p.reminders.DeleteByUser(txCtx, u.ID())
		})
		if err != nil {
			p.logger.Errorw("periodic reset failed", "user_id", u.ID(), "error", err)
			continue
		}
		p.logger.Infow("periodic usage reset", "user_id", u.ID(), "strategy", u.ResetStrategy(), "traffic_at_reset", before)

		if wasLimited {
			userID := u.ID()
			goroutine.SafeGo(p.logger, "reapply-after-periodic-reset", func() {
				ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
				defer cancel()
				if err := p.operations.ReapplyUser(ctx, userID); err != nil {
					p.logger.Warnw("user reapply after periodic reset failed", "user_id", userID, "error", err)
				}
			})
		}
	}
	return nil
}
