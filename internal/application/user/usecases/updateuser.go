package usecases

import (
	"context"
	"time"

	"github.com/veilnet-io/veilnet/internal/domain/user"
	"github.com/veilnet-io/veilnet/internal/shared/biztime"
	"github.com/veilnet-io/veilnet/internal/shared/errors"
	"github.com/veilnet-io/veilnet/internal/shared/goroutine"
	"github.com/veilnet-io/veilnet/internal/shared/logger"
)

// NodeReconciler reapplies a user's node binding after persisted changes.
// The node operations service is the production implementation.
type NodeReconciler interface {
	ReapplyUser(ctx context.Context, userID uint) error
}

// Tri-state patch fields: nil leaves the value alone; the inner pointer
// being nil clears it.
type UpdateUserCommand struct {
	AccountNumber string

	Status               *string
	DataLimit            **int64
	ExpireAt             **time.Time
	OnHoldExpireDuration *int64
	OnHoldTimeout        *time.Time
	ResetStrategy        *string
	AutoDeleteInDays     **int
	Proxies              *[]ProxyInput
	NextPlan             **NextPlanResult
}

type UpdateUserUseCase struct {
	users      user.Repository
	reconciler NodeReconciler
	logger     logger.Interface
}

func NewUpdateUserUseCase(users user.Repository, reconciler NodeReconciler, log logger.Interface) *UpdateUserUseCase {
	return &UpdateUserUseCase{users: users, reconciler: reconciler, logger: log}
}

// Execute patches the user. Limit and expiry changes re-derive limited and
// expired status; any change reconciles the user's active node in the
// background.
func (uc *UpdateUserUseCase) Execute(ctx context.Context, cmd UpdateUserCommand) (*UserResult, error) {
	u, err := uc.users.GetByAccountNumber(ctx, cmd.AccountNumber)
	if err != nil {
		return nil, err
	}

	if cmd.DataLimit != nil {
		if err := u.SetDataLimit(*cmd.DataLimit); err != nil {
			return nil, errors.NewValidationError(err.Error())
		}
	}
	if cmd.Status != nil {
		switch user.Status(*cmd.Status) {
		case user.StatusActive:
			// Leaving on_hold converts the stored duration into a real
			// expiry, exactly like an automatic hold release would.
			if u.Status() == user.StatusOnHold {
				if err := u.ReleaseHold(biztime.NowUTC()); err != nil {
					return nil, errors.NewValidationError(err.Error())
				}
			} else {
				u.Activate()
			}
		case user.StatusDisabled:
			u.Disable()
		case user.StatusOnHold:
			duration := u.OnHoldExpireDuration()
			if cmd.OnHoldExpireDuration != nil {
				duration = cmd.OnHoldExpireDuration
			}
			if duration == nil {
				return nil, errors.NewValidationError("on-hold users require on_hold_expire_duration")
			}
			if err := u.SetOnHold(*duration, cmd.OnHoldTimeout); err != nil {
				return nil, errors.NewValidationError(err.Error())
			}
		default:
			return nil, errors.NewValidationError("status must be active, disabled or on_hold")
		}
	} else if cmd.OnHoldExpireDuration != nil && u.Status() == user.StatusOnHold {
		if err := u.SetOnHold(*cmd.OnHoldExpireDuration, cmd.OnHoldTimeout); err != nil {
			return nil, errors.NewValidationError(err.Error())
		}
	}
	if cmd.ExpireAt != nil {
		if err := u.SetExpire(*cmd.ExpireAt); err != nil {
			return nil, errors.NewValidationError(err.Error())
		}
	}
	if cmd.ResetStrategy != nil {
		if err := u.SetResetStrategy(user.ResetStrategy(*cmd.ResetStrategy)); err != nil {
			return nil, errors.NewValidationError(err.Error())
		}
	}
	if cmd.AutoDeleteInDays != nil {
		if err := u.SetAutoDelete(*cmd.AutoDeleteInDays); err != nil {
			return nil, errors.NewValidationError(err.Error())
		}
	}
	if cmd.Proxies != nil {
		proxies, err := buildProxies(*cmd.Proxies)
		if err != nil {
			return nil, err
		}
		if err := u.SetProxies(proxies); err != nil {
			return nil, errors.NewValidationError(err.Error())
		}
	}
	if cmd.NextPlan != nil {
		if *cmd.NextPlan == nil {
			u.SetNextPlan(nil)
		} else {
			plan := *cmd.NextPlan
			u.SetNextPlan(&user.NextPlan{
				DataLimit:           plan.DataLimit,
				ExpireSeconds:       plan.ExpireSeconds,
				AddRemainingTraffic: plan.AddRemainingTraffic,
				FireOnEither:        plan.FireOnEither,
			})
		}
	}

	if err := uc.users.Update(ctx, u); err != nil {
		return nil, err
	}

	userID := u.ID()
	goroutine.SafeGo(uc.logger, "reapply-user", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := uc.reconciler.ReapplyUser(ctx, userID); err != nil {
			uc.logger.Warnw("user reapply after update failed", "user_id", userID, "error", err)
		}
	})

	return NewUserResult(u), nil
}
