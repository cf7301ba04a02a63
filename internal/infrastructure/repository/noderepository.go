package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/veilnet-io/veilnet/internal/domain/node"
	"github.com/veilnet-io/veilnet/internal/infrastructure/persistence/mappers"
	"github.com/veilnet-io/veilnet/internal/infrastructure/persistence/models"
	"github.com/veilnet-io/veilnet/internal/shared/db"
	apperrors "github.com/veilnet-io/veilnet/internal/shared/errors"
	"github.com/veilnet-io/veilnet/internal/shared/logger"
)

// NodeRepositoryImpl implements the node.Repository interface
type NodeRepositoryImpl struct {
	db     *gorm.DB
	mapper mappers.NodeMapper
	logger logger.Interface
}

// NewNodeRepository creates a new node repository instance
func NewNodeRepository(gdb *gorm.DB, log logger.Interface) node.Repository {
	return &NodeRepositoryImpl{
		db:     gdb,
		mapper: mappers.NewNodeMapper(),
		logger: log,
	}
}

// Create persists a new node.
func (r *NodeRepositoryImpl) Create(ctx context.Context, n *node.Node) error {
	model := r.mapper.ToModel(n)

	tx := db.GetTxFromContext(ctx, r.db)
	if err := tx.Create(model).Error; err != nil {
		if apperrors.IsDuplicateError(err) {
			return apperrors.NewConflictError("node with this name already exists")
		}
		r.logger.Errorw("failed to create node", "error", err)
		return fmt.Errorf("failed to create node: %w", err)
	}

	if err := n.SetID(model.ID); err != nil {
		return fmt.Errorf("failed to set node ID: %w", err)
	}
	r.logger.Infow("node created", "id", model.ID, "name", model.Name)
	return nil
}

// GetByID loads a node by ID.
func (r *NodeRepositoryImpl) GetByID(ctx context.Context, id uint) (*node.Node, error) {
	var model models.NodeModel
	tx := db.GetTxFromContext(ctx, r.db)
	if err := tx.First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("node not found", fmt.Sprintf("id=%d", id))
		}
		return nil, fmt.Errorf("failed to get node: %w", err)
	}
	return r.mapper.ToEntity(&model)
}

// GetByName loads a node by its unique name.
func (r *NodeRepositoryImpl) GetByName(ctx context.Context, name string) (*node.Node, error) {
	var model models.NodeModel
	tx := db.GetTxFromContext(ctx, r.db)
	if err := tx.Where("name = ?", name).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("node not found", fmt.Sprintf("name=%s", name))
		}
		return nil, fmt.Errorf("failed to get node: %w", err)
	}
	return r.mapper.ToEntity(&model)
}

// List returns all nodes ordered by ID.
func (r *NodeRepositoryImpl) List(ctx context.Context) ([]*node.Node, error) {
	var modelList []models.NodeModel
	tx := db.GetTxFromContext(ctx, r.db)
	if err := tx.Order("id ASC").Find(&modelList).Error; err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}

	nodes := make([]*node.Node, 0, len(modelList))
	for i := range modelList {
		n, err := r.mapper.ToEntity(&modelList[i])
		if err != nil {
			r.logger.Errorw("skipping unmappable node row", "id", modelList[i].ID, "error", err)
			continue
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// Update persists the full node state.
func (r *NodeRepositoryImpl) Update(ctx context.Context, n *node.Node) error {
	model := r.mapper.ToModel(n)

	tx := db.GetTxFromContext(ctx, r.db)
	result := tx.Model(&models.NodeModel{}).
		Where("id = ?", model.ID).
		Updates(map[string]interface{}{
			"name":               model.Name,
			"address":            model.Address,
			"rpc_port":           model.RPCPort,
			"stats_port":         model.StatsPort,
			"usage_coefficient":  model.UsageCoefficient,
			"status":             model.Status,
			"message":            model.Message,
			"engine_version":     model.EngineVersion,
			"client_cert_pem":    model.ClientCertPEM,
			"client_key_pem":     model.ClientKeyPEM,
			"last_status_change": model.LastStatusChange,
			"updated_at":         model.UpdatedAt,
		})
	if result.Error != nil {
		if apperrors.IsDuplicateError(result.Error) {
			return apperrors.NewConflictError("node with this name already exists")
		}
		return fmt.Errorf("failed to update node: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NewNotFoundError("node not found", fmt.Sprintf("id=%d", model.ID))
	}
	return nil
}

// Delete soft-deletes the node; service configs cascade.
func (r *NodeRepositoryImpl) Delete(ctx context.Context, id uint) error {
	tx := db.GetTxFromContext(ctx, r.db)
	result := tx.Delete(&models.NodeModel{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete node: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NewNotFoundError("node not found", fmt.Sprintf("id=%d", id))
	}
	r.logger.Infow("node deleted", "id", id)
	return nil
}
