package node

import (
	"fmt"
	"strings"

	"github.com/veilnet-io/veilnet/internal/domain/user"
)

// NetworkType is the stream transport of an inbound service.
type NetworkType string

const (
	NetworkTCP  NetworkType = "tcp"
	NetworkRaw  NetworkType = "raw"
	NetworkKCP  NetworkType = "kcp"
	NetworkWS   NetworkType = "ws"
	NetworkGRPC NetworkType = "grpc"
	NetworkHTTP NetworkType = "http"
)

// IsValid reports whether n is a known network type.
func (n NetworkType) IsValid() bool {
	switch n {
	case NetworkTCP, NetworkRaw, NetworkKCP, NetworkWS, NetworkGRPC, NetworkHTTP:
		return true
	}
	return false
}

// SecurityType is the transport security of an inbound service.
type SecurityType string

const (
	SecurityNone    SecurityType = "none"
	SecurityTLS     SecurityType = "tls"
	SecurityReality SecurityType = "reality"
)

// IsValid reports whether s is a known security type.
func (s SecurityType) IsValid() bool {
	switch s {
	case SecurityNone, SecurityTLS, SecurityReality:
		return true
	}
	return false
}

// ServiceConfig is a node-local inbound definition that user credentials
// attach to. The engine tag is unique within a node and stable across
// restarts of that node.
type ServiceConfig struct {
	ID               uint
	NodeID           uint
	Name             string
	Enabled          bool
	Protocol         user.Protocol
	ListenAddress    string
	ListenPort       int
	Network          NetworkType
	Security         SecurityType
	WSPath           string
	GRPCServiceName  string
	SNI              string
	Fingerprint      string
	RealityPublicKey string
	RealityShortID   string
	// Opaque engine-level overrides, deep-merged into the generated inbound.
	AdvancedProtocol map[string]interface{}
	AdvancedStream   map[string]interface{}
	AdvancedTLS      map[string]interface{}
	AdvancedReality  map[string]interface{}
	AdvancedSniffing map[string]interface{}
	EngineTag        string
}

// EffectiveTag returns the engine tag, generating the default form when the
// column is empty.
func (s *ServiceConfig) EffectiveTag() string {
	if s.EngineTag != "" {
		return s.EngineTag
	}
	return fmt.Sprintf("veilnet_service_%d", s.ID)
}

// Validate checks the coupled field rules of an inbound definition.
func (s *ServiceConfig) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("service name is required")
	}
	if !s.Protocol.IsValid() {
		return fmt.Errorf("unknown protocol %q", s.Protocol)
	}
	if s.ListenPort < 1 || s.ListenPort > 65535 {
		return fmt.Errorf("listen port out of range: %d", s.ListenPort)
	}
	if s.Network == "" {
		s.Network = NetworkTCP
	}
	if !s.Network.IsValid() {
		return fmt.Errorf("unknown network type %q", s.Network)
	}
	if s.Security == "" {
		s.Security = SecurityNone
	}
	if !s.Security.IsValid() {
		return fmt.Errorf("unknown security type %q", s.Security)
	}
	if s.Network == NetworkWS {
		if s.WSPath == "" {
			return fmt.Errorf("ws network requires ws_path")
		}
		if !strings.HasPrefix(s.WSPath, "/") {
			return fmt.Errorf("ws_path must begin with '/'")
		}
	}
	if s.Network == NetworkGRPC && s.GRPCServiceName == "" {
		return fmt.Errorf("grpc network requires grpc_service_name")
	}
	if s.Security == SecurityReality {
		if s.SNI == "" {
			return fmt.Errorf("reality security requires sni")
		}
		if s.RealityPublicKey == "" {
			return fmt.Errorf("reality security requires reality_public_key")
		}
	}
	return nil
}
