package usecases

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

type ResetUserUsageUseCase struct {
	users      user.Repository
	resets     user.UsageResetRepository
	reminders  user.ReminderRepository
	usage      node.UsageRepository
	tm         *db.TransactionManager
	operations *nodeservices.Operations
	logger     logger.Interface
}

func NewResetUserUsageUseCase(
	users user.Repository,
	resets user.UsageResetRepository,
	reminders user.ReminderRepository,
	usage node.UsageRepository,
	tm *db.TransactionManager,
	operations *nodeservices.Operations,
	log logger.Interface,
) *ResetUserUsageUseCase {
	return &ResetUserUsageUseCase{
		users:      users,
		resets:     resets,
		reminders:  reminders,
		usage:      usage,
		tm:         tm,
		operations: operations,
		logger:     log,
	}
}

// Execute zeroes the counter, records the audit row, clears per-node usage
// history and fired reminders, all in one transaction. A formerly limited
// user comes back active and is reapplied to its node.
func (uc *ResetUserUsageUseCase) Execute(ctx context.Context, accountNumber string) (*UserResult, error) {
	u, err := uc.users.GetByAccountNumber(ctx, accountNumber)
	if err != nil {
		return nil, err
	}

	wasLimited := u.Status() == user.StatusLimited
	before := u.ResetUsage(biztime.NowUTC())

	err = uc.tm.RunInTransaction(ctx, func(txCtx context.Context) error {
		if err := uc.users.Update(txCtx, u); err != nil {
			return err
		}
		if err := uc.resets.Create(txCtx, &user.UsageReset{UserID: u.ID(), UsedTrafficAtReset: before}); err != nil {
			return err
		}
		if err := uc.usage.DeleteUserUsage(txCtx, u.ID()); err != nil {
			return err
		}
		return uc.reminders.DeleteByUser(txCtx, u.ID())
	})
	if err != nil {
		return nil, err
	}

	if wasLimited {
		userID := u.ID()
		goroutine.SafeGo(uc.logger, "reapply-after-reset", func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			if err := uc.operations.ReapplyUser(ctx, userID); err != nil {
				uc.logger.Warnw("user reapply after reset failed", "user_id", userID, "error", err)
			}
		})
	}

	uc.logger.Infow("user usage reset", "id", u.ID(), "traffic_at_reset", before)
	return NewUserResult(u), nil
}
