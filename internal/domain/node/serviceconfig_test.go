package node

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilnet-io/veilnet/internal/domain/user"
)

func validService() *ServiceConfig {
	return &ServiceConfig{
		ID:         3,
		NodeID:     1,
		Name:       "vless-tcp",
		Enabled:    true,
		Protocol:   user.ProtocolVLESS,
		ListenPort: 443,
		Network:    NetworkTCP,
		Security:   SecurityTLS,
		SNI:        "cdn.example.com",
	}
}

func TestServiceConfig_Validate(t *testing.T) {
	t.Run("valid definition passes", func(t *testing.T) {
		assert.NoError(t, validService().Validate())
	})

	t.Run("name is required", func(t *testing.T) {
		s := validService()
		s.Name = "  "
		assert.Error(t, s.Validate())
	})

	t.Run("protocol must be known", func(t *testing.T) {
		s := validService()
		s.Protocol = "wireguard"
		assert.Error(t, s.Validate())
	})

	t.Run("listen port must be in range", func(t *testing.T) {
		s := validService()
		s.ListenPort = 0
		assert.Error(t, s.Validate())

		s.ListenPort = 70000
		assert.Error(t, s.Validate())
	})

	t.Run("empty network and security get defaults", func(t *testing.T) {
		s := validService()
		s.Network = ""
		s.Security = ""

		require.NoError(t, s.Validate())
		assert.Equal(t, NetworkTCP, s.Network)
		assert.Equal(t, SecurityNone, s.Security)
	})

	t.Run("ws network requires a rooted path", func(t *testing.T) {
		s := validService()
		s.Network = NetworkWS
		assert.Error(t, s.Validate())

		s.WSPath = "chat"
		assert.Error(t, s.Validate())

		s.WSPath = "/chat"
		assert.NoError(t, s.Validate())
	})

	t.Run("grpc network requires a service name", func(t *testing.T) {
		s := validService()
		s.Network = NetworkGRPC
		assert.Error(t, s.Validate())

		s.GRPCServiceName = "tunnel"
		assert.NoError(t, s.Validate())
	})

	t.Run("reality requires sni and public key", func(t *testing.T) {
		s := validService()
		s.Security = SecurityReality
		s.SNI = ""
		assert.Error(t, s.Validate())

		s.SNI = "cdn.example.com"
		assert.Error(t, s.Validate())

		s.RealityPublicKey = "pbk"
		assert.NoError(t, s.Validate())
	})
}

func TestServiceConfig_EffectiveTag(t *testing.T) {
	s := validService()
	assert.Equal(t, "veilnet_service_3", s.EffectiveTag())

	s.EngineTag = "custom-inbound"
	assert.Equal(t, "custom-inbound", s.EffectiveTag())
}
