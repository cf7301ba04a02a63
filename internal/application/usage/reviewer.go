package usage

import (
	"context"
	"time"

	"github.com/veilnet-io/veilnet/internal/domain/user"
	"github.com/veilnet-io/veilnet/internal/shared/biztime"
	"github.com/veilnet-io/veilnet/internal/shared/goroutine"
	"github.com/veilnet-io/veilnet/internal/shared/logger"
)

// NodeReconciler reapplies a user's node binding after a state change.
// The node operations service is the production implementation.
type NodeReconciler interface {
	ReapplyUser(ctx context.Context, userID uint) error
}

// Reviewer walks active and on-hold users and applies the status rules:
// quota exhaustion, expiry, next-plan triggers and hold release. Every
// transition reconciles the user's node in the background.
type Reviewer struct {
	users      user.Repository
	reconciler NodeReconciler
	logger     logger.Interface
}

// NewReviewer creates the status reviewer.
func NewReviewer(users user.Repository, reconciler NodeReconciler, log logger.Interface) *Reviewer {
	return &Reviewer{users: users, reconciler: reconciler, logger: log}
}

// Tick runs one review round.
func (r *Reviewer) Tick(ctx context.Context) error {
	now := biztime.NowUTC()

	active, err := r.users.ListByStatus(ctx, user.StatusActive)
	if err != nil {
		return err
	}
	for _, u := range active {
		r.reviewActive(ctx, u, now)
	}

	onHold, err := r.users.ListByStatus(ctx, user.StatusOnHold)
	if err != nil {
		return err
	}
	for _, u := range onHold {
		r.reviewOnHold(ctx, u, now)
	}
	return nil
}

func (r *Reviewer) reviewActive(ctx context.Context, u *user.User, now time.Time) {
	limitHit := u.IsDataLimitReached()
	expired := u.IsExpired(now)
	if !limitHit && !expired {
		return
	}

	// A pending plan can absorb the trigger instead of demoting the user.
	if plan := u.NextPlan(); plan != nil {
		if plan.FireOnEither || (limitHit && expired) {
			if err := u.ApplyNextPlan(now); err == nil {
				if err := r.users.Update(ctx, u); err != nil {
					r.logger.Errorw("failed to persist next plan application", "user_id", u.ID(), "error", err)
					return
				}
				r.logger.Infow("next plan applied by review", "user_id", u.ID())
				r.reapply(u.ID())
				return
			}
		}
	}

	if limitHit {
		u.MarkLimited()
		r.logger.Infow("user reached data limit", "user_id", u.ID(), "used", u.UsedTraffic())
	} else {
		u.MarkExpired()
		r.logger.Infow("user expired", "user_id", u.ID())
	}
	if err := r.users.Update(ctx, u); err != nil {
		r.logger.Errorw("failed to persist status transition", "user_id", u.ID(), "error", err)
		return
	}
	r.reapply(u.ID())
}

func (r *Reviewer) reviewOnHold(ctx context.Context, u *user.User, now time.Time) {
	if !u.ShouldReleaseHold(now) {
		return
	}
	if err := u.ReleaseHold(now); err != nil {
		r.logger.Errorw("failed to release hold", "user_id", u.ID(), "error", err)
		return
	}
	if err := r.users.Update(ctx, u); err != nil {
		r.logger.Errorw("failed to persist hold release", "user_id", u.ID(), "error", err)
		return
	}
	r.logger.Infow("on-hold user activated", "user_id", u.ID(), "expire_at", u.ExpireAt())
	r.reapply(u.ID())
}

func (r *Reviewer) reapply(userID uint) {
	goroutine.SafeGo(r.logger, "reapply-after-review", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := r.reconciler.ReapplyUser(ctx, userID); err != nil {
			r.logger.Warnw("user reapply after review failed", "user_id", userID, "error", err)
		}
	})
}
