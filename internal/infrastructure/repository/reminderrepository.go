package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/veilnet-io/veilnet/internal/domain/user"
	"github.com/veilnet-io/veilnet/internal/infrastructure/persistence/models"
	"github.com/veilnet-io/veilnet/internal/shared/db"
	apperrors "github.com/veilnet-io/veilnet/internal/shared/errors"
	"github.com/veilnet-io/veilnet/internal/shared/logger"
)

// ReminderRepositoryImpl implements the user.ReminderRepository interface
type ReminderRepositoryImpl struct {
	db     *gorm.DB
	logger logger.Interface
}

// NewReminderRepository creates a new reminder repository instance
func NewReminderRepository(gdb *gorm.DB, log logger.Interface) user.ReminderRepository {
	return &ReminderRepositoryImpl{db: gdb, logger: log}
}

// Create marks a fired threshold. Duplicate (user, type, threshold) rows
// surface as conflicts so callers can treat re-fires as already-sent.
func (r *ReminderRepositoryImpl) Create(ctx context.Context, rem *user.Reminder) error {
	model := &models.ReminderModel{
		UserID:    rem.UserID,
		Type:      string(rem.Type),
		Threshold: rem.Threshold,
		ExpiresAt: rem.ExpiresAt,
	}

	tx := db.GetTxFromContext(ctx, r.db)
	if err := tx.Create(model).Error; err != nil {
		if apperrors.IsDuplicateError(err) {
			return apperrors.NewConflictError("reminder already recorded")
		}
		return fmt.Errorf("failed to create reminder: %w", err)
	}
	rem.ID = model.ID
	return nil
}

// ListByUser returns all recorded reminders for a user.
func (r *ReminderRepositoryImpl) ListByUser(ctx context.Context, userID uint) ([]user.Reminder, error) {
	var modelList []models.ReminderModel
	tx := db.GetTxFromContext(ctx, r.db)
	if err := tx.Where("user_id = ?", userID).Find(&modelList).Error; err != nil {
		return nil, fmt.Errorf("failed to list reminders: %w", err)
	}

	reminders := make([]user.Reminder, 0, len(modelList))
	for _, m := range modelList {
		reminders = append(reminders, user.Reminder{
			ID:        m.ID,
			UserID:    m.UserID,
			Type:      user.ReminderType(m.Type),
			Threshold: m.Threshold,
			ExpiresAt: m.ExpiresAt,
		})
	}
	return reminders, nil
}

// DeleteByUser clears all reminders of a user, used on usage reset so
// thresholds can fire again in the new cycle.
func (r *ReminderRepositoryImpl) DeleteByUser(ctx context.Context, userID uint) error {
	tx := db.GetTxFromContext(ctx, r.db)
	if err := tx.Where("user_id = ?", userID).Delete(&models.ReminderModel{}).Error; err != nil {
		return fmt.Errorf("failed to delete reminders: %w", err)
	}
	return nil
}

// DeleteExpired evicts reminders past their expiry and returns the count.
func (r *ReminderRepositoryImpl) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tx := db.GetTxFromContext(ctx, r.db)
	result := tx.Where("expires_at IS NOT NULL AND expires_at <= ?", now).Delete(&models.ReminderModel{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete expired reminders: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		r.logger.Debugw("expired reminders evicted", "count", result.RowsAffected)
	}
	return result.RowsAffected, nil
}
