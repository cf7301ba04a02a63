package services

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilnet-io/veilnet/internal/domain/node"
	"github.com/veilnet-io/veilnet/internal/domain/user"
)

func testNode(t *testing.T) *node.Node {
	n, err := node.NewNode("edge-1", "10.0.0.5", 62050, 62051, 1)
	require.NoError(t, err)
	require.NoError(t, n.SetID(1))
	return n
}

func testUser(t *testing.T, id uint, proxies ...*user.Proxy) *user.User {
	u, err := user.NewUser(uuid.NewString(), user.StatusActive, nil)
	require.NoError(t, err)
	require.NoError(t, u.SetID(id))
	require.NoError(t, u.SetProxies(proxies))
	return u
}

func vlessProxy(t *testing.T, flow string) *user.Proxy {
	p, err := user.NewProxyWithSettings(user.ProtocolVLESS, user.ProxySettings{
		UUID: uuid.NewString(),
		Flow: flow,
	})
	require.NoError(t, err)
	return p
}

func parseConfig(t *testing.T, raw string) map[string]interface{} {
	var cfg map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(raw), &cfg))
	return cfg
}

func inbounds(t *testing.T, cfg map[string]interface{}) []map[string]interface{} {
	list, ok := cfg["inbounds"].([]interface{})
	require.True(t, ok)
	out := make([]map[string]interface{}, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]interface{})
		require.True(t, ok)
		out = append(out, m)
	}
	return out
}

func TestConfigBuilder_Build(t *testing.T) {
	builder := NewConfigBuilder()

	t.Run("equal inputs produce identical output", func(t *testing.T) {
		n := testNode(t)
		u1 := testUser(t, 2, vlessProxy(t, ""))
		u2 := testUser(t, 1, vlessProxy(t, ""))
		svc := &node.ServiceConfig{
			ID: 1, NodeID: 1, Name: "vless-tcp", Enabled: true,
			Protocol: user.ProtocolVLESS, ListenPort: 443,
			Network: node.NetworkTCP, Security: node.SecurityTLS, SNI: "cdn.example.com",
		}

		a, err := builder.Build(n, []*user.User{u1, u2}, []*node.ServiceConfig{svc})
		require.NoError(t, err)
		b, err := builder.Build(n, []*user.User{u2, u1}, []*node.ServiceConfig{svc})
		require.NoError(t, err)

		assert.Equal(t, a, b)
	})

	t.Run("always carries the stats API inbound and routing rule", func(t *testing.T) {
		n := testNode(t)

		raw, err := builder.Build(n, nil, nil)
		require.NoError(t, err)
		cfg := parseConfig(t, raw)

		ins := inbounds(t, cfg)
		require.Len(t, ins, 1)
		assert.Equal(t, "API_GRPC_INBOUND", ins[0]["tag"])
		assert.Equal(t, float64(62051), ins[0]["port"])
		assert.Equal(t, "dokodemo-door", ins[0]["protocol"])
	})

	t.Run("disabled services are excluded", func(t *testing.T) {
		n := testNode(t)
		svc := &node.ServiceConfig{
			ID: 1, NodeID: 1, Name: "off", Enabled: false,
			Protocol: user.ProtocolVMess, ListenPort: 8080,
		}

		raw, err := builder.Build(n, nil, []*node.ServiceConfig{svc})
		require.NoError(t, err)
		assert.Len(t, inbounds(t, parseConfig(t, raw)), 1)
	})

	t.Run("duplicate engine tags fail the build", func(t *testing.T) {
		n := testNode(t)
		a := &node.ServiceConfig{
			ID: 1, NodeID: 1, Name: "a", Enabled: true,
			Protocol: user.ProtocolVMess, ListenPort: 8080, EngineTag: "same",
		}
		b := &node.ServiceConfig{
			ID: 2, NodeID: 1, Name: "b", Enabled: true,
			Protocol: user.ProtocolVMess, ListenPort: 8081, EngineTag: "same",
		}

		_, err := builder.Build(n, nil, []*node.ServiceConfig{a, b})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate engine tag")
	})

	t.Run("clients are ordered by user ID", func(t *testing.T) {
		n := testNode(t)
		high := testUser(t, 9, vlessProxy(t, ""))
		low := testUser(t, 3, vlessProxy(t, ""))
		svc := &node.ServiceConfig{
			ID: 1, NodeID: 1, Name: "vless", Enabled: true,
			Protocol: user.ProtocolVLESS, ListenPort: 443,
		}

		raw, err := builder.Build(n, []*user.User{high, low}, []*node.ServiceConfig{svc})
		require.NoError(t, err)

		ins := inbounds(t, parseConfig(t, raw))
		require.Len(t, ins, 2)
		settings := ins[1]["settings"].(map[string]interface{})
		clients := settings["clients"].([]interface{})
		require.Len(t, clients, 2)
		assert.Equal(t, low.EngineEmail(), clients[0].(map[string]interface{})["email"])
		assert.Equal(t, high.EngineEmail(), clients[1].(map[string]interface{})["email"])
	})

	t.Run("users without a matching proxy are skipped", func(t *testing.T) {
		n := testNode(t)
		trojan, err := user.NewProxy(user.ProtocolTrojan)
		require.NoError(t, err)
		u := testUser(t, 1, trojan)
		svc := &node.ServiceConfig{
			ID: 1, NodeID: 1, Name: "vless", Enabled: true,
			Protocol: user.ProtocolVLESS, ListenPort: 443,
		}

		raw, err := builder.Build(n, []*user.User{u}, []*node.ServiceConfig{svc})
		require.NoError(t, err)

		ins := inbounds(t, parseConfig(t, raw))
		settings := ins[1]["settings"].(map[string]interface{})
		assert.Empty(t, settings["clients"])
	})
}

func TestConfigBuilder_FlowGating(t *testing.T) {
	builder := NewConfigBuilder()

	clientFlow := func(t *testing.T, svc *node.ServiceConfig) (string, bool) {
		n := testNode(t)
		u := testUser(t, 1, vlessProxy(t, "xtls-rprx-vision"))

		raw, err := builder.Build(n, []*user.User{u}, []*node.ServiceConfig{svc})
		require.NoError(t, err)

		ins := inbounds(t, parseConfig(t, raw))
		require.Len(t, ins, 2)
		settings := ins[1]["settings"].(map[string]interface{})
		clients := settings["clients"].([]interface{})
		require.Len(t, clients, 1)
		flow, ok := clients[0].(map[string]interface{})["flow"].(string)
		return flow, ok
	}

	t.Run("flow kept on tcp with reality", func(t *testing.T) {
		flow, ok := clientFlow(t, &node.ServiceConfig{
			ID: 1, NodeID: 1, Name: "v", Enabled: true,
			Protocol: user.ProtocolVLESS, ListenPort: 443,
			Network: node.NetworkTCP, Security: node.SecurityReality,
			SNI: "cdn.example.com", RealityPublicKey: "pbk",
		})
		assert.True(t, ok)
		assert.Equal(t, "xtls-rprx-vision", flow)
	})

	t.Run("flow dropped on websocket", func(t *testing.T) {
		_, ok := clientFlow(t, &node.ServiceConfig{
			ID: 1, NodeID: 1, Name: "v", Enabled: true,
			Protocol: user.ProtocolVLESS, ListenPort: 443,
			Network: node.NetworkWS, Security: node.SecurityTLS,
			WSPath: "/ws", SNI: "cdn.example.com",
		})
		assert.False(t, ok)
	})

	t.Run("flow dropped without transport security", func(t *testing.T) {
		_, ok := clientFlow(t, &node.ServiceConfig{
			ID: 1, NodeID: 1, Name: "v", Enabled: true,
			Protocol: user.ProtocolVLESS, ListenPort: 443,
			Network: node.NetworkTCP, Security: node.SecurityNone,
		})
		assert.False(t, ok)
	})

	t.Run("flow dropped with http obfuscation header", func(t *testing.T) {
		_, ok := clientFlow(t, &node.ServiceConfig{
			ID: 1, NodeID: 1, Name: "v", Enabled: true,
			Protocol: user.ProtocolVLESS, ListenPort: 443,
			Network: node.NetworkTCP, Security: node.SecurityTLS, SNI: "cdn.example.com",
			AdvancedStream: map[string]interface{}{
				"tcpSettings": map[string]interface{}{
					"header": map[string]interface{}{"type": "http"},
				},
			},
		})
		assert.False(t, ok)
	})
}

func TestConfigBuilder_AdvancedOverrides(t *testing.T) {
	builder := NewConfigBuilder()
	n := testNode(t)
	svc := &node.ServiceConfig{
		ID: 1, NodeID: 1, Name: "vless", Enabled: true,
		Protocol: user.ProtocolVLESS, ListenPort: 443,
		Network: node.NetworkTCP, Security: node.SecurityTLS,
		SNI: "cdn.example.com", Fingerprint: "chrome",
		AdvancedTLS:      map[string]interface{}{"alpn": []interface{}{"h2"}},
		AdvancedSniffing: map[string]interface{}{"enabled": false},
	}

	raw, err := builder.Build(n, nil, []*node.ServiceConfig{svc})
	require.NoError(t, err)

	ins := inbounds(t, parseConfig(t, raw))
	require.Len(t, ins, 2)

	stream := ins[1]["streamSettings"].(map[string]interface{})
	assert.Equal(t, "tcp", stream["network"])
	assert.Equal(t, "tls", stream["security"])

	tls := stream["tlsSettings"].(map[string]interface{})
	assert.Equal(t, "cdn.example.com", tls["serverName"])
	assert.Equal(t, "chrome", tls["fingerprint"])
	assert.Equal(t, []interface{}{"h2"}, tls["alpn"])

	sniffing := ins[1]["sniffing"].(map[string]interface{})
	assert.Equal(t, false, sniffing["enabled"])
}
