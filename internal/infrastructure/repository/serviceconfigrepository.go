package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/veilnet-io/veilnet/internal/domain/node"
	"github.com/veilnet-io/veilnet/internal/infrastructure/persistence/mappers"
	"github.com/veilnet-io/veilnet/internal/infrastructure/persistence/models"
	"github.com/veilnet-io/veilnet/internal/shared/db"
	apperrors "github.com/veilnet-io/veilnet/internal/shared/errors"
	"github.com/veilnet-io/veilnet/internal/shared/logger"
)

// ServiceConfigRepositoryImpl implements the node.ServiceConfigRepository interface
type ServiceConfigRepositoryImpl struct {
	db     *gorm.DB
	mapper mappers.ServiceConfigMapper
	logger logger.Interface
}

// NewServiceConfigRepository creates a new service config repository instance
func NewServiceConfigRepository(gdb *gorm.DB, log logger.Interface) node.ServiceConfigRepository {
	return &ServiceConfigRepositoryImpl{
		db:     gdb,
		mapper: mappers.NewServiceConfigMapper(),
		logger: log,
	}
}

// Create persists a new inbound definition. The stored engine tag is filled
// with the default form after insert so later renames keep it stable.
func (r *ServiceConfigRepositoryImpl) Create(ctx context.Context, sc *node.ServiceConfig) error {
	if err := sc.Validate(); err != nil {
		return apperrors.NewValidationError(err.Error())
	}

	model, err := r.mapper.ToModel(sc)
	if err != nil {
		return fmt.Errorf("failed to map service config: %w", err)
	}

	// The (node_id, engine_tag) key is unique, so rows created without an
	// explicit tag get a collision-free placeholder for the insert and are
	// backfilled with the ID-derived form once the insert assigned one.
	pending := model.EngineTag == ""
	if pending {
		model.EngineTag = pendingEngineTag()
	}

	tx := db.GetTxFromContext(ctx, r.db)
	err = tx.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(model).Error; err != nil {
			if apperrors.IsDuplicateError(err) {
				return apperrors.NewConflictError("service with this engine tag already exists on the node")
			}
			return fmt.Errorf("failed to create service config: %w", err)
		}
		if pending {
			model.EngineTag = fmt.Sprintf("veilnet_service_%d", model.ID)
			if err := tx.Model(model).Update("engine_tag", model.EngineTag).Error; err != nil {
				return fmt.Errorf("failed to persist engine tag: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		r.logger.Errorw("failed to create service config", "error", err)
		return err
	}

	sc.ID = model.ID
	sc.EngineTag = model.EngineTag
	r.logger.Infow("service config created", "id", model.ID, "node_id", model.NodeID, "tag", model.EngineTag)
	return nil
}

// pendingEngineTag returns a unique placeholder tag for a row created
// without an explicit one.
func pendingEngineTag() string {
	return "veilnet_pending_" + uuid.NewString()
}

// GetByID loads an inbound definition by ID.
func (r *ServiceConfigRepositoryImpl) GetByID(ctx context.Context, id uint) (*node.ServiceConfig, error) {
	var model models.ServiceConfigModel
	tx := db.GetTxFromContext(ctx, r.db)
	if err := tx.First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("service config not found", fmt.Sprintf("id=%d", id))
		}
		return nil, fmt.Errorf("failed to get service config: %w", err)
	}
	return r.mapper.ToEntity(&model)
}

// ListByNode returns all inbound definitions of a node ordered by ID.
func (r *ServiceConfigRepositoryImpl) ListByNode(ctx context.Context, nodeID uint) ([]*node.ServiceConfig, error) {
	var modelList []models.ServiceConfigModel
	tx := db.GetTxFromContext(ctx, r.db)
	if err := tx.Where("node_id = ?", nodeID).Order("id ASC").Find(&modelList).Error; err != nil {
		return nil, fmt.Errorf("failed to list service configs: %w", err)
	}

	configs := make([]*node.ServiceConfig, 0, len(modelList))
	for i := range modelList {
		sc, err := r.mapper.ToEntity(&modelList[i])
		if err != nil {
			r.logger.Errorw("skipping unmappable service config row", "id", modelList[i].ID, "error", err)
			continue
		}
		configs = append(configs, sc)
	}
	return configs, nil
}

// Update persists the full inbound definition. The engine tag is immutable
// once set.
func (r *ServiceConfigRepositoryImpl) Update(ctx context.Context, sc *node.ServiceConfig) error {
	if err := sc.Validate(); err != nil {
		return apperrors.NewValidationError(err.Error())
	}

	model, err := r.mapper.ToModel(sc)
	if err != nil {
		return fmt.Errorf("failed to map service config: %w", err)
	}

	tx := db.GetTxFromContext(ctx, r.db)
	result := tx.Model(&models.ServiceConfigModel{}).
		Where("id = ?", model.ID).
		Updates(map[string]interface{}{
			"name":               model.Name,
			"enabled":            model.Enabled,
			"protocol":           model.Protocol,
			"listen_address":     model.ListenAddress,
			"listen_port":        model.ListenPort,
			"network":            model.Network,
			"security":           model.Security,
			"ws_path":            model.WSPath,
			"grpc_service_name":  model.GRPCServiceName,
			"sni":                model.SNI,
			"fingerprint":        model.Fingerprint,
			"reality_public_key": model.RealityPublicKey,
			"reality_short_id":   model.RealityShortID,
			"advanced_protocol":  model.AdvancedProtocol,
			"advanced_stream":    model.AdvancedStream,
			"advanced_tls":       model.AdvancedTLS,
			"advanced_reality":   model.AdvancedReality,
			"advanced_sniffing":  model.AdvancedSniffing,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update service config: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NewNotFoundError("service config not found", fmt.Sprintf("id=%d", model.ID))
	}
	return nil
}

// Delete removes an inbound definition.
func (r *ServiceConfigRepositoryImpl) Delete(ctx context.Context, id uint) error {
	tx := db.GetTxFromContext(ctx, r.db)
	result := tx.Delete(&models.ServiceConfigModel{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete service config: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NewNotFoundError("service config not found", fmt.Sprintf("id=%d", id))
	}
	return nil
}
