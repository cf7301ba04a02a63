package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/veilnet-io/veilnet/internal/domain/admin"
	"github.com/veilnet-io/veilnet/internal/infrastructure/persistence/mappers"
	"github.com/veilnet-io/veilnet/internal/infrastructure/persistence/models"
	"github.com/veilnet-io/veilnet/internal/shared/db"
	apperrors "github.com/veilnet-io/veilnet/internal/shared/errors"
	"github.com/veilnet-io/veilnet/internal/shared/logger"
)

// AdminRepositoryImpl implements the admin.Repository interface
type AdminRepositoryImpl struct {
	db     *gorm.DB
	mapper mappers.AdminMapper
	logger logger.Interface
}

// NewAdminRepository creates a new admin repository instance
func NewAdminRepository(gdb *gorm.DB, log logger.Interface) admin.Repository {
	return &AdminRepositoryImpl{
		db:     gdb,
		mapper: mappers.NewAdminMapper(),
		logger: log,
	}
}

// Create persists a new admin.
func (r *AdminRepositoryImpl) Create(ctx context.Context, a *admin.Admin) error {
	model := r.mapper.ToModel(a)

	tx := db.GetTxFromContext(ctx, r.db)
	if err := tx.Create(model).Error; err != nil {
		if apperrors.IsDuplicateError(err) {
			return apperrors.NewConflictError("admin with this username already exists")
		}
		r.logger.Errorw("failed to create admin", "error", err)
		return fmt.Errorf("failed to create admin: %w", err)
	}

	if err := a.SetID(model.ID); err != nil {
		return fmt.Errorf("failed to set admin ID: %w", err)
	}
	r.logger.Infow("admin created", "id", model.ID, "username", model.Username)
	return nil
}

// GetByID loads an admin by ID.
func (r *AdminRepositoryImpl) GetByID(ctx context.Context, id uint) (*admin.Admin, error) {
	var model models.AdminModel
	tx := db.GetTxFromContext(ctx, r.db)
	if err := tx.First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("admin not found", fmt.Sprintf("id=%d", id))
		}
		return nil, fmt.Errorf("failed to get admin: %w", err)
	}
	return r.mapper.ToEntity(&model)
}

// GetByUsername loads an admin by username, case-insensitively.
func (r *AdminRepositoryImpl) GetByUsername(ctx context.Context, username string) (*admin.Admin, error) {
	var model models.AdminModel
	tx := db.GetTxFromContext(ctx, r.db)
	err := tx.Where("username = ?", strings.ToLower(strings.TrimSpace(username))).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("admin not found", fmt.Sprintf("username=%s", username))
		}
		return nil, fmt.Errorf("failed to get admin: %w", err)
	}
	return r.mapper.ToEntity(&model)
}

// List returns all admins ordered by ID.
func (r *AdminRepositoryImpl) List(ctx context.Context) ([]*admin.Admin, error) {
	var modelList []models.AdminModel
	tx := db.GetTxFromContext(ctx, r.db)
	if err := tx.Order("id ASC").Find(&modelList).Error; err != nil {
		return nil, fmt.Errorf("failed to list admins: %w", err)
	}

	admins := make([]*admin.Admin, 0, len(modelList))
	for i := range modelList {
		a, err := r.mapper.ToEntity(&modelList[i])
		if err != nil {
			continue
		}
		admins = append(admins, a)
	}
	return admins, nil
}

// Update persists the full admin state.
func (r *AdminRepositoryImpl) Update(ctx context.Context, a *admin.Admin) error {
	model := r.mapper.ToModel(a)

	tx := db.GetTxFromContext(ctx, r.db)
	result := tx.Model(&models.AdminModel{}).
		Where("id = ?", model.ID).
		Updates(map[string]interface{}{
			"password_hash":     model.PasswordHash,
			"is_sudo":           model.IsSudo,
			"password_reset_at": model.PasswordResetAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update admin: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NewNotFoundError("admin not found", fmt.Sprintf("id=%d", model.ID))
	}
	return nil
}

// Delete soft-deletes an admin.
func (r *AdminRepositoryImpl) Delete(ctx context.Context, id uint) error {
	tx := db.GetTxFromContext(ctx, r.db)
	result := tx.Delete(&models.AdminModel{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete admin: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NewNotFoundError("admin not found", fmt.Sprintf("id=%d", id))
	}
	return nil
}
