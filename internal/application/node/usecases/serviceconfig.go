package usecases

import (
	"context"
	"time"

	"github.com/veilnet-io/veilnet/internal/application/node/services"
	"github.com/veilnet-io/veilnet/internal/domain/node"
	"github.com/veilnet-io/veilnet/internal/domain/user"
	"github.com/veilnet-io/veilnet/internal/shared/goroutine"
	"github.com/veilnet-io/veilnet/internal/shared/logger"
)

type ServiceConfigCommand struct {
	NodeID           uint
	Name             string
	Enabled          bool
	Protocol         string
	ListenAddress    string
	ListenPort       int
	Network          string
	Security         string
	WSPath           string
	GRPCServiceName  string
	SNI              string
	Fingerprint      string
	RealityPublicKey string
	RealityShortID   string
	AdvancedProtocol map[string]interface{}
	AdvancedStream   map[string]interface{}
	AdvancedTLS      map[string]interface{}
	AdvancedReality  map[string]interface{}
	AdvancedSniffing map[string]interface{}
}

type ServiceConfigResult struct {
	ID               uint                   `json:"id"`
	NodeID           uint                   `json:"node_id"`
	Name             string                 `json:"name"`
	Enabled          bool                   `json:"enabled"`
	Protocol         string                 `json:"protocol"`
	ListenAddress    string                 `json:"listen_address,omitempty"`
	ListenPort       int                    `json:"listen_port"`
	Network          string                 `json:"network"`
	Security         string                 `json:"security"`
	WSPath           string                 `json:"ws_path,omitempty"`
	GRPCServiceName  string                 `json:"grpc_service_name,omitempty"`
	SNI              string                 `json:"sni,omitempty"`
	Fingerprint      string                 `json:"fingerprint,omitempty"`
	RealityPublicKey string                 `json:"reality_public_key,omitempty"`
	RealityShortID   string                 `json:"reality_short_id,omitempty"`
	EngineTag        string                 `json:"engine_tag"`
	AdvancedProtocol map[string]interface{} `json:"advanced_protocol,omitempty"`
	AdvancedStream   map[string]interface{} `json:"advanced_stream,omitempty"`
	AdvancedTLS      map[string]interface{} `json:"advanced_tls,omitempty"`
	AdvancedReality  map[string]interface{} `json:"advanced_reality,omitempty"`
	AdvancedSniffing map[string]interface{} `json:"advanced_sniffing,omitempty"`
}

func newServiceConfigResult(sc *node.ServiceConfig) *ServiceConfigResult {
	return &ServiceConfigResult{
		ID:               sc.ID,
		NodeID:           sc.NodeID,
		Name:             sc.Name,
		Enabled:          sc.Enabled,
		Protocol:         string(sc.Protocol),
		ListenAddress:    sc.ListenAddress,
		ListenPort:       sc.ListenPort,
		Network:          string(sc.Network),
		Security:         string(sc.Security),
		WSPath:           sc.WSPath,
		GRPCServiceName:  sc.GRPCServiceName,
		SNI:              sc.SNI,
		Fingerprint:      sc.Fingerprint,
		RealityPublicKey: sc.RealityPublicKey,
		RealityShortID:   sc.RealityShortID,
		EngineTag:        sc.EffectiveTag(),
		AdvancedProtocol: sc.AdvancedProtocol,
		AdvancedStream:   sc.AdvancedStream,
		AdvancedTLS:      sc.AdvancedTLS,
		AdvancedReality:  sc.AdvancedReality,
		AdvancedSniffing: sc.AdvancedSniffing,
	}
}

func (cmd *ServiceConfigCommand) toEntity() *node.ServiceConfig {
	return &node.ServiceConfig{
		NodeID:           cmd.NodeID,
		Name:             cmd.Name,
		Enabled:          cmd.Enabled,
		Protocol:         user.Protocol(cmd.Protocol),
		ListenAddress:    cmd.ListenAddress,
		ListenPort:       cmd.ListenPort,
		Network:          node.NetworkType(cmd.Network),
		Security:         node.SecurityType(cmd.Security),
		WSPath:           cmd.WSPath,
		GRPCServiceName:  cmd.GRPCServiceName,
		SNI:              cmd.SNI,
		Fingerprint:      cmd.Fingerprint,
		RealityPublicKey: cmd.RealityPublicKey,
		RealityShortID:   cmd.RealityShortID,
		AdvancedProtocol: cmd.AdvancedProtocol,
		AdvancedStream:   cmd.AdvancedStream,
		AdvancedTLS:      cmd.AdvancedTLS,
		AdvancedReality:  cmd.AdvancedReality,
		AdvancedSniffing: cmd.AdvancedSniffing,
	}
}

// ManageServiceConfigsUseCase covers the inbound definition CRUD. Every
// mutation reconciles the owning node in the background.
type ManageServiceConfigsUseCase struct {
	nodes      node.Repository
	configs    node.ServiceConfigRepository
	operations *services.Operations
	logger     logger.Interface
}

func NewManageServiceConfigsUseCase(
	nodes node.Repository,
	configs node.ServiceConfigRepository,
	operations *services.Operations,
	log logger.Interface,
) *ManageServiceConfigsUseCase {
	return &ManageServiceConfigsUseCase{
		nodes:      nodes,
		configs:    configs,
		operations: operations,
		logger:     log,
	}
}

func (uc *ManageServiceConfigsUseCase) Create(ctx context.Context, cmd ServiceConfigCommand) (*ServiceConfigResult, error) {
	if _, err := uc.nodes.GetByID(ctx, cmd.NodeID); err != nil {
		return nil, err
	}
	sc := cmd.toEntity()
	if err := uc.configs.Create(ctx, sc); err != nil {
		return nil, err
	}
	uc.reconcile(cmd.NodeID)
	return newServiceConfigResult(sc), nil
}

func (uc *ManageServiceConfigsUseCase) Get(ctx context.Context, id uint) (*ServiceConfigResult, error) {
	sc, err := uc.configs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return newServiceConfigResult(sc), nil
}

func (uc *ManageServiceConfigsUseCase) ListByNode(ctx context.Context, nodeID uint) ([]*ServiceConfigResult, error) {
	if _, err := uc.nodes.GetByID(ctx, nodeID); err != nil {
		return nil, err
	}
	configs, err := uc.configs.ListByNode(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	results := make([]*ServiceConfigResult, 0, len(configs))
	for _, sc := range configs {
		results = append(results, newServiceConfigResult(sc))
	}
	return results, nil
}

func (uc *ManageServiceConfigsUseCase) Update(ctx context.Context, id uint, cmd ServiceConfigCommand) (*ServiceConfigResult, error) {
	existing, err := uc.configs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	sc := cmd.toEntity()
	sc.ID = existing.ID
	sc.NodeID = existing.NodeID
	// The engine tag is stable for the row's lifetime.
	sc.EngineTag = existing.EngineTag
	if err := uc.configs.Update(ctx, sc); err != nil {
		return nil, err
	}
	uc.reconcile(existing.NodeID)
	return newServiceConfigResult(sc), nil
}

func (uc *ManageServiceConfigsUseCase) Delete(ctx context.Context, id uint) error {
	existing, err := uc.configs.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := uc.configs.Delete(ctx, id); err != nil {
		return err
	}
	uc.reconcile(existing.NodeID)
	return nil
}

func (uc *ManageServiceConfigsUseCase) reconcile(nodeID uint) {
	goroutine.SafeGo(uc.logger, "reconcile-node-services", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := uc.operations.RestartNode(ctx, nodeID); err != nil {
			uc.logger.Warnw("node reconcile after service change failed", "node_id", nodeID, "error", err)
		}
	})
}
