package mappers

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"

	"github.com/veilnet-io/veilnet/internal/domain/node"
	"github.com/veilnet-io/veilnet/internal/domain/user"
	"github.com/veilnet-io/veilnet/internal/infrastructure/persistence/models"
)

// NodeMapper converts between NodeModel and the node aggregate.
type NodeMapper struct{}

// NewNodeMapper creates a node mapper.
func NewNodeMapper() NodeMapper {
	return NodeMapper{}
}

// ToModel maps a node aggregate onto a persistence model.
func (NodeMapper) ToModel(n *node.Node) *models.NodeModel {
	return &models.NodeModel{
		ID:               n.ID(),
		Name:             n.Name(),
		Address:          n.Address(),
		RPCPort:          n.RPCPort(),
		StatsPort:        n.StatsPort(),
		UsageCoefficient: n.UsageCoefficient(),
		Status:           n.Status().String(),
		Message:          n.Message(),
		EngineVersion:    n.EngineVersion(),
		ClientCertPEM:    n.ClientCertPEM(),
		ClientKeyPEM:     n.ClientKeyPEM(),
		LastStatusChange: n.LastStatusChange(),
		CreatedAt:        n.CreatedAt(),
		UpdatedAt:        n.UpdatedAt(),
	}
}

// ToEntity maps a persistence model back into the node aggregate.
func (NodeMapper) ToEntity(m *models.NodeModel) (*node.Node, error) {
	return node.ReconstructNode(
		m.ID,
		m.Name,
		m.Address,
		m.RPCPort,
		m.StatsPort,
		m.UsageCoefficient,
		node.Status(m.Status),
		m.Message,
		m.EngineVersion,
		m.ClientCertPEM,
		m.ClientKeyPEM,
		m.LastStatusChange,
		m.CreatedAt,
		m.UpdatedAt,
	)
}

// ServiceConfigMapper converts between ServiceConfigModel and the inbound
// service definition.
type ServiceConfigMapper struct{}

// NewServiceConfigMapper creates a service config mapper.
func NewServiceConfigMapper() ServiceConfigMapper {
	return ServiceConfigMapper{}
}

// ToModel maps a service definition onto a persistence model.
func (ServiceConfigMapper) ToModel(s *node.ServiceConfig) (*models.ServiceConfigModel, error) {
	m := &models.ServiceConfigModel{
		ID:               s.ID,
		NodeID:           s.NodeID,
		Name:             s.Name,
		Enabled:          s.Enabled,
		Protocol:         string(s.Protocol),
		ListenAddress:    s.ListenAddress,
		ListenPort:       s.ListenPort,
		Network:          string(s.Network),
		Security:         string(s.Security),
		WSPath:           s.WSPath,
		GRPCServiceName:  s.GRPCServiceName,
		SNI:              s.SNI,
		Fingerprint:      s.Fingerprint,
		RealityPublicKey: s.RealityPublicKey,
		RealityShortID:   s.RealityShortID,
		EngineTag:        s.EngineTag,
	}

	blobs := []struct {
		src map[string]interface{}
		dst *datatypes.JSON
	}{
		{s.AdvancedProtocol, &m.AdvancedProtocol},
		{s.AdvancedStream, &m.AdvancedStream},
		{s.AdvancedTLS, &m.AdvancedTLS},
		{s.AdvancedReality, &m.AdvancedReality},
		{s.AdvancedSniffing, &m.AdvancedSniffing},
	}
	for _, b := range blobs {
		if b.src == nil {
			continue
		}
		raw, err := json.Marshal(b.src)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal advanced settings: %w", err)
		}
		*b.dst = datatypes.JSON(raw)
	}
	return m, nil
}

// ToEntity maps a persistence model back into a service definition.
func (ServiceConfigMapper) ToEntity(m *models.ServiceConfigModel) (*node.ServiceConfig, error) {
	s := &node.ServiceConfig{
		ID:               m.ID,
		NodeID:           m.NodeID,
		Name:             m.Name,
		Enabled:          m.Enabled,
		Protocol:         user.Protocol(m.Protocol),
		ListenAddress:    m.ListenAddress,
		ListenPort:       m.ListenPort,
		Network:          node.NetworkType(m.Network),
		Security:         node.SecurityType(m.Security),
		WSPath:           m.WSPath,
		GRPCServiceName:  m.GRPCServiceName,
		SNI:              m.SNI,
		Fingerprint:      m.Fingerprint,
		RealityPublicKey: m.RealityPublicKey,
		RealityShortID:   m.RealityShortID,
		EngineTag:        m.EngineTag,
	}

	blobs := []struct {
		src datatypes.JSON
		dst *map[string]interface{}
	}{
		{m.AdvancedProtocol, &s.AdvancedProtocol},
		{m.AdvancedStream, &s.AdvancedStream},
		{m.AdvancedTLS, &s.AdvancedTLS},
		{m.AdvancedReality, &s.AdvancedReality},
		{m.AdvancedSniffing, &s.AdvancedSniffing},
	}
	for _, b := range blobs {
		if len(b.src) == 0 {
			continue
		}
		var out map[string]interface{}
		if err := json.Unmarshal(b.src, &out); err != nil {
			return nil, fmt.Errorf("failed to unmarshal advanced settings: %w", err)
		}
		*b.dst = out
	}
	return s, nil
}
