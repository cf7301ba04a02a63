package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/veilnet-io/veilnet/internal/domain/node"
	"github.com/veilnet-io/veilnet/internal/infrastructure/persistence/models"
	"github.com/veilnet-io/veilnet/internal/shared/db"
	apperrors "github.com/veilnet-io/veilnet/internal/shared/errors"
	"github.com/veilnet-io/veilnet/internal/shared/logger"
)

// CertificateRepositoryImpl implements the node.CertificateRepository interface
type CertificateRepositoryImpl struct {
	db     *gorm.DB
	logger logger.Interface
}

// NewCertificateRepository creates a new certificate repository instance
func NewCertificateRepository(gdb *gorm.DB, log logger.Interface) node.CertificateRepository {
	return &CertificateRepositoryImpl{db: gdb, logger: log}
}

// GetCA returns the fleet CA row.
func (r *CertificateRepositoryImpl) GetCA(ctx context.Context) (*node.Certificate, error) {
	var model models.CertificateModel
	tx := db.GetTxFromContext(ctx, r.db)
	err := tx.Where("kind = ?", string(node.CertificateKindCA)).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("certificate authority not found")
		}
		return nil, fmt.Errorf("failed to get CA: %w", err)
	}
	return certToEntity(&model), nil
}

// SaveCA inserts or replaces the single CA row.
func (r *CertificateRepositoryImpl) SaveCA(ctx context.Context, c *node.Certificate) error {
	tx := db.GetTxFromContext(ctx, r.db)
	err := tx.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("kind = ?", string(node.CertificateKindCA)).Delete(&models.CertificateModel{}).Error; err != nil {
			return err
		}
		model := certToModel(c)
		model.ID = 0
		if err := tx.Create(model).Error; err != nil {
			return err
		}
		c.ID = model.ID
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save CA: %w", err)
	}
	r.logger.Infow("certificate authority saved", "serial", c.Serial, "valid_until", c.ValidUntil)
	return nil
}

// GetByNode returns the leaf row for the node.
func (r *CertificateRepositoryImpl) GetByNode(ctx context.Context, nodeID uint) (*node.Certificate, error) {
	var model models.CertificateModel
	tx := db.GetTxFromContext(ctx, r.db)
	err := tx.Where("kind = ? AND node_id = ?", string(node.CertificateKindNode), nodeID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("node certificate not found", fmt.Sprintf("node_id=%d", nodeID))
		}
		return nil, fmt.Errorf("failed to get node certificate: %w", err)
	}
	return certToEntity(&model), nil
}

// SaveNode upserts the node's leaf row; rotation replaces in place.
func (r *CertificateRepositoryImpl) SaveNode(ctx context.Context, c *node.Certificate) error {
	if c.NodeID == nil {
		return apperrors.NewValidationError("node certificate requires a node ID")
	}

	model := certToModel(c)
	tx := db.GetTxFromContext(ctx, r.db)
	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "node_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"cert_pem", "key_pem", "client_cert_pem", "client_key_pem", "serial", "valid_until", "updated_at",
		}),
	}).Create(model).Error
	if err != nil {
		return fmt.Errorf("failed to save node certificate: %w", err)
	}
	c.ID = model.ID
	return nil
}

// DeleteByNode removes a node's leaf row.
func (r *CertificateRepositoryImpl) DeleteByNode(ctx context.Context, nodeID uint) error {
	tx := db.GetTxFromContext(ctx, r.db)
	err := tx.Where("kind = ? AND node_id = ?", string(node.CertificateKindNode), nodeID).
		Delete(&models.CertificateModel{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete node certificate: %w", err)
	}
	return nil
}

func certToModel(c *node.Certificate) *models.CertificateModel {
	return &models.CertificateModel{
		ID:            c.ID,
		Kind:          string(c.Kind),
		NodeID:        c.NodeID,
		CertPEM:       c.CertPEM,
		KeyPEM:        c.KeyPEM,
		ClientCertPEM: c.ClientCertPEM,
		ClientKeyPEM:  c.ClientKeyPEM,
		Serial:        c.Serial,
		ValidUntil:    c.ValidUntil,
		CreatedAt:     c.CreatedAt,
	}
}

func certToEntity(m *models.CertificateModel) *node.Certificate {
	return &node.Certificate{
		ID:            m.ID,
		Kind:          node.CertificateKind(m.Kind),
		NodeID:        m.NodeID,
		CertPEM:       m.CertPEM,
		KeyPEM:        m.KeyPEM,
		ClientCertPEM: m.ClientCertPEM,
		ClientKeyPEM:  m.ClientKeyPEM,
		Serial:        m.Serial,
		ValidUntil:    m.ValidUntil,
		CreatedAt:     m.CreatedAt,
	}
}
