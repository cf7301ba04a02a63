package usage

import (
	"context"

	"github.com/veilnet-io/veilnet/internal/domain/user"
	"github.com/veilnet-io/veilnet/internal/shared/biztime"
	"github.com/veilnet-io/veilnet/internal/shared/logger"
)

// ReminderSweep evicts notification reminders past their expiry.
type ReminderSweep struct {
	reminders user.ReminderRepository
	logger    logger.Interface
}

// NewReminderSweep creates the reminder eviction job.
func NewReminderSweep(reminders user.ReminderRepository, log logger.Interface) *ReminderSweep {
	return &ReminderSweep{reminders: reminders, logger: log}
}

// Tick removes expired reminder rows.
func (r *ReminderSweep) Tick(ctx context.Context) error {
	removed, err := r.reminders.DeleteExpired(ctx, biztime.NowUTC())
	if err != nil {
		return err
	}
	if removed > 0 {
		r.logger.Infow("expired reminders removed", "count", removed)
	}
	return nil
}
