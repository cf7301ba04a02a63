package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/veilnet-io/veilnet/internal/domain/user"
	"github.com/veilnet-io/veilnet/internal/infrastructure/persistence/models"
	"github.com/veilnet-io/veilnet/internal/shared/db"
	"github.com/veilnet-io/veilnet/internal/shared/logger"
)

// UsageResetRepositoryImpl implements the user.UsageResetRepository interface
type UsageResetRepositoryImpl struct {
	db     *gorm.DB
	logger logger.Interface
}

// NewUsageResetRepository creates a new usage reset repository instance
func NewUsageResetRepository(gdb *gorm.DB, log logger.Interface) user.UsageResetRepository {
	return &UsageResetRepositoryImpl{db: gdb, logger: log}
}

// Create appends a reset audit row.
func (r *UsageResetRepositoryImpl) Create(ctx context.Context, reset *user.UsageReset) error {
	model := &models.UsageResetModel{
		UserID:             reset.UserID,
		UsedTrafficAtReset: reset.UsedTrafficAtReset,
	}

	tx := db.GetTxFromContext(ctx, r.db)
	if err := tx.Create(model).Error; err != nil {
		return fmt.Errorf("failed to record usage reset: %w", err)
	}
	reset.ID = model.ID
	reset.CreatedAt = model.CreatedAt
	return nil
}

// ListByUser returns the reset history of a user, newest first.
func (r *UsageResetRepositoryImpl) ListByUser(ctx context.Context, userID uint) ([]user.UsageReset, error) {
	var modelList []models.UsageResetModel
	tx := db.GetTxFromContext(ctx, r.db)
	err := tx.Where("user_id = ?", userID).Order("created_at DESC").Find(&modelList).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list usage resets: %w", err)
	}

	resets := make([]user.UsageReset, 0, len(modelList))
	for _, m := range modelList {
		resets = append(resets, user.UsageReset{
			ID:                 m.ID,
			UserID:             m.UserID,
			UsedTrafficAtReset: m.UsedTrafficAtReset,
			CreatedAt:          m.CreatedAt,
		})
	}
	return resets, nil
}
