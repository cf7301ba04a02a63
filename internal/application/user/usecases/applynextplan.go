package usecases

import (
	"context"
	"time"

	nodeservices "github.com/veilnet-io/veilnet/internal/application/node/services"
	"github.com/veilnet-io/veilnet/internal/domain/user"
	"github.com/veilnet-io/veilnet/internal/shared/biztime"
	"github.com/veilnet-io/veilnet/internal/shared/errors"
	"github.com/veilnet-io/veilnet/internal/shared/goroutine"
	"github.com/veilnet-io/veilnet/internal/shared/logger"
)

type ApplyNextPlanUseCase struct {
	users      user.Repository
	operations *nodeservices.Operations
	logger     logger.Interface
}

func NewApplyNextPlanUseCase(users user.Repository, operations *nodeservices.Operations, log logger.Interface) *ApplyNextPlanUseCase {
	return &ApplyNextPlanUseCase{users: users, operations: operations, logger: log}
}

// Execute applies the pending plan immediately, without waiting for the
// review job's triggers.
func (uc *ApplyNextPlanUseCase) Execute(ctx context.Context, accountNumber string) (*UserResult, error) {
	u, err := uc.users.GetByAccountNumber(ctx, accountNumber)
	if err != nil {
		return nil, err
	}

	if err := u.ApplyNextPlan(biztime.NowUTC()); err != nil {
		return nil, errors.NewValidationError(err.Error())
	}
	if err := uc.users.Update(ctx, u); err != nil {
		return nil, err
	}

	userID := u.ID()
	goroutine.SafeGo(uc.logger, "reapply-after-next-plan", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := uc.operations.ReapplyUser(ctx, userID); err != nil {
			uc.logger.Warnw("user reapply after next plan failed", "user_id", userID, "error", err)
		}
	})

	uc.logger.Infow("next plan applied", "id", u.ID())
	return NewUserResult(u), nil
}
