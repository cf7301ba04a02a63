// Package repository provides GORM-backed implementations of the domain
// repository interfaces.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/veilnet-io/veilnet/internal/domain/user"
	"github.com/veilnet-io/veilnet/internal/infrastructure/persistence/mappers"
	"github.com/veilnet-io/veilnet/internal/infrastructure/persistence/models"
	"github.com/veilnet-io/veilnet/internal/shared/db"
	apperrors "github.com/veilnet-io/veilnet/internal/shared/errors"
	"github.com/veilnet-io/veilnet/internal/shared/logger"
)

// UserRepositoryImpl implements the user.Repository interface
type UserRepositoryImpl struct {
	db     *gorm.DB
	mapper mappers.UserMapper
	logger logger.Interface
}

// NewUserRepository creates a new user repository instance
func NewUserRepository(gdb *gorm.DB, log logger.Interface) user.Repository {
	return &UserRepositoryImpl{
		db:     gdb,
		mapper: mappers.NewUserMapper(),
		logger: log,
	}
}

// Create persists a new user together with its proxies and next plan.
func (r *UserRepositoryImpl) Create(ctx context.Context, u *user.User) error {
	model, err := r.mapper.ToModel(u)
	if err != nil {
		return fmt.Errorf("failed to map user entity: %w", err)
	}

	tx := db.GetTxFromContext(ctx, r.db)
	if err := tx.Create(model).Error; err != nil {
		if apperrors.IsDuplicateError(err) {
			return apperrors.NewConflictError("user with this account number already exists")
		}
		r.logger.Errorw("failed to create user", "error", err)
		return fmt.Errorf("failed to create user: %w", err)
	}

	if err := u.SetID(model.ID); err != nil {
		return fmt.Errorf("failed to set user ID: %w", err)
	}
	for i, p := range u.Proxies() {
		p.SetUserID(model.ID)
		if i < len(model.Proxies) {
			p.SetID(model.Proxies[i].ID)
		}
	}

	r.logger.Infow("user created", "id", model.ID, "account_number", model.AccountNumber)
	return nil
}

// GetByID loads a user aggregate with proxies and next plan.
func (r *UserRepositoryImpl) GetByID(ctx context.Context, id uint) (*user.User, error) {
	var model models.UserModel
	tx := db.GetTxFromContext(ctx, r.db)
	err := tx.Preload("Proxies").Preload("NextPlan").First(&model, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("user not found", fmt.Sprintf("id=%d", id))
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return r.mapper.ToEntity(&model)
}

// GetByAccountNumber loads a user by its canonical account number.
func (r *UserRepositoryImpl) GetByAccountNumber(ctx context.Context, accountNumber string) (*user.User, error) {
	var model models.UserModel
	tx := db.GetTxFromContext(ctx, r.db)
	err := tx.Preload("Proxies").Preload("NextPlan").
		Where("account_number = ?", accountNumber).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("user not found", fmt.Sprintf("account_number=%s", accountNumber))
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return r.mapper.ToEntity(&model)
}

// List returns all users.
func (r *UserRepositoryImpl) List(ctx context.Context) ([]*user.User, error) {
	return r.list(ctx, func(q *gorm.DB) *gorm.DB { return q })
}

// ListByStatus returns all users currently in the given status.
func (r *UserRepositoryImpl) ListByStatus(ctx context.Context, status user.Status) ([]*user.User, error) {
	return r.list(ctx, func(q *gorm.DB) *gorm.DB {
		return q.Where("status = ?", status.String())
	})
}

// ListByActiveNode returns all users whose credentials live on the node.
func (r *UserRepositoryImpl) ListByActiveNode(ctx context.Context, nodeID uint) ([]*user.User, error) {
	return r.list(ctx, func(q *gorm.DB) *gorm.DB {
		return q.Where("active_node_id = ?", nodeID)
	})
}

func (r *UserRepositoryImpl) list(ctx context.Context, scope func(*gorm.DB) *gorm.DB) ([]*user.User, error) {
	var modelList []models.UserModel
	tx := db.GetTxFromContext(ctx, r.db)
	err := scope(tx.Preload("Proxies").Preload("NextPlan")).
		Order("id ASC").
		Find(&modelList).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	users := make([]*user.User, 0, len(modelList))
	for i := range modelList {
		u, err := r.mapper.ToEntity(&modelList[i])
		if err != nil {
			r.logger.Errorw("skipping unmappable user row", "id", modelList[i].ID, "error", err)
			continue
		}
		users = append(users, u)
	}
	return users, nil
}

// ListIDAccountPairs returns the minimal identity projection used to match
// engine traffic reports back to user rows.
func (r *UserRepositoryImpl) ListIDAccountPairs(ctx context.Context) ([]user.IDAccountPair, error) {
	var pairs []user.IDAccountPair
	tx := db.GetTxFromContext(ctx, r.db)
	err := tx.Model(&models.UserModel{}).
		Select("id", "account_number").
		Find(&pairs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list id/account pairs: %w", err)
	}
	return pairs, nil
}

// ListAutoDeleteCandidates returns users whose terminal status has persisted
// past their effective auto-delete window.
func (r *UserRepositoryImpl) ListAutoDeleteCandidates(ctx context.Context, now time.Time, defaultDays int, includeLimited bool) ([]*user.User, error) {
	statuses := []string{user.StatusExpired.String()}
	if includeLimited {
		statuses = append(statuses, user.StatusLimited.String())
	}

	// Rows with an explicit per-user window use it; the rest fall back to
	// the panel default. A negative per-user value opts the user out.
	var modelList []models.UserModel
	tx := db.GetTxFromContext(ctx, r.db)
	err := tx.Preload("Proxies").Preload("NextPlan").
		Where("status IN ?", statuses).
		Where(
			"(auto_delete_in_days IS NULL AND ? > 0 AND last_status_change <= ?) OR "+
				"(auto_delete_in_days > 0 AND last_status_change <= DATE_SUB(?, INTERVAL auto_delete_in_days DAY))",
			defaultDays, now.Add(-time.Duration(defaultDays)*24*time.Hour), now,
		).
		Find(&modelList).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list auto-delete candidates: %w", err)
	}

	users := make([]*user.User, 0, len(modelList))
	for i := range modelList {
		u, err := r.mapper.ToEntity(&modelList[i])
		if err != nil {
			continue
		}
		users = append(users, u)
	}
	return users, nil
}

// Update persists the full aggregate state, replacing proxies and next plan.
func (r *UserRepositoryImpl) Update(ctx context.Context, u *user.User) error {
	model, err := r.mapper.ToModel(u)
	if err != nil {
		return fmt.Errorf("failed to map user entity: %w", err)
	}

	tx := db.GetTxFromContext(ctx, r.db)
	err = tx.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.UserModel{}).
			Where("id = ?", model.ID).
			Updates(map[string]interface{}{
				"admin_id":                  model.AdminID,
				"status":                    model.Status,
				"data_limit":                model.DataLimit,
				"used_traffic":              model.UsedTraffic,
				"expire_at":                 model.ExpireAt,
				"on_hold_expire_duration":   model.OnHoldExpireDuration,
				"on_hold_timeout":           model.OnHoldTimeout,
				"data_limit_reset_strategy": model.DataLimitResetStrategy,
				"active_node_id":            model.ActiveNodeID,
				"online_at":                 model.OnlineAt,
				"auto_delete_in_days":       model.AutoDeleteInDays,
				"last_traffic_reset_at":     model.LastTrafficResetAt,
				"last_status_change":        model.LastStatusChange,
				"sub_revoked_at":            model.SubRevokedAt,
				"sub_updated_at":            model.SubUpdatedAt,
				"edited_at":                 model.EditedAt,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to update user: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return apperrors.NewNotFoundError("user not found", fmt.Sprintf("id=%d", model.ID))
		}

		// Proxies are replaced wholesale: secrets rotate together on revoke.
		if err := tx.Where("user_id = ?", model.ID).Delete(&models.ProxyModel{}).Error; err != nil {
			return fmt.Errorf("failed to clear proxies: %w", err)
		}
		for i := range model.Proxies {
			model.Proxies[i].ID = 0
			model.Proxies[i].UserID = model.ID
			if err := tx.Create(&model.Proxies[i]).Error; err != nil {
				return fmt.Errorf("failed to save proxy: %w", err)
			}
		}

		if err := tx.Where("user_id = ?", model.ID).Delete(&models.NextPlanModel{}).Error; err != nil {
			return fmt.Errorf("failed to clear next plan: %w", err)
		}
		if model.NextPlan != nil {
			model.NextPlan.ID = 0
			model.NextPlan.UserID = model.ID
			if err := tx.Create(model.NextPlan).Error; err != nil {
				return fmt.Errorf("failed to save next plan: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		r.logger.Errorw("failed to update user", "id", model.ID, "error", err)
		return err
	}
	return nil
}

// Delete soft-deletes the user row; proxies and next plan cascade.
func (r *UserRepositoryImpl) Delete(ctx context.Context, id uint) error {
	tx := db.GetTxFromContext(ctx, r.db)
	result := tx.Delete(&models.UserModel{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete user: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NewNotFoundError("user not found", fmt.Sprintf("id=%d", id))
	}
	r.logger.Infow("user deleted", "id", id)
	return nil
}
