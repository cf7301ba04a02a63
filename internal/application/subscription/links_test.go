package subscription

import (
	"encoding/base64"
	"encoding/json"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilnet-io/veilnet/internal/domain/node"
	"github.com/veilnet-io/veilnet/internal/domain/user"
)

func TestRenderLinks_VLESS(t *testing.T) {
	e := Entry{
		Remark:           "edge-1 vless",
		Protocol:         user.ProtocolVLESS,
		Address:          "10.0.0.5",
		Port:             443,
		Network:          node.NetworkTCP,
		Security:         node.SecurityReality,
		SNI:              "cdn.example.com",
		Fingerprint:      "chrome",
		RealityPublicKey: "pbk-value",
		RealityShortID:   "ab12",
		UUID:             "7f9c0a4e-1111-4222-8333-444455556666",
		Flow:             "xtls-rprx-vision",
	}

	link := RenderLinks([]Entry{e})

	require.True(t, strings.HasPrefix(link, "vless://7f9c0a4e-1111-4222-8333-444455556666@10.0.0.5:443?"))
	parsed, err := url.Parse(link)
	require.NoError(t, err)

	q := parsed.Query()
	assert.Equal(t, "tcp", q.Get("type"))
	assert.Equal(t, "reality", q.Get("security"))
	assert.Equal(t, "xtls-rprx-vision", q.Get("flow"))
	assert.Equal(t, "cdn.example.com", q.Get("sni"))
	assert.Equal(t, "chrome", q.Get("fp"))
	assert.Equal(t, "pbk-value", q.Get("pbk"))
	assert.Equal(t, "ab12", q.Get("sid"))
	assert.Equal(t, "edge-1 vless", parsed.Fragment)
}

func TestRenderLinks_VMess(t *testing.T) {
	e := Entry{
		Remark:   "edge-1 vmess",
		Protocol: user.ProtocolVMess,
		Address:  "10.0.0.5",
		Port:     8080,
		Network:  node.NetworkWS,
		Security: node.SecurityTLS,
		WSPath:   "/stream",
		SNI:      "cdn.example.com",
		UUID:     "7f9c0a4e-1111-4222-8333-444455556666",
	}

	link := RenderLinks([]Entry{e})
	require.True(t, strings.HasPrefix(link, "vmess://"))

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(link, "vmess://"))
	require.NoError(t, err)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(raw, &payload))
	assert.Equal(t, "2", payload["v"])
	assert.Equal(t, "edge-1 vmess", payload["ps"])
	assert.Equal(t, "10.0.0.5", payload["add"])
	assert.Equal(t, "8080", payload["port"])
	assert.Equal(t, "7f9c0a4e-1111-4222-8333-444455556666", payload["id"])
	assert.Equal(t, "0", payload["aid"])
	assert.Equal(t, "ws", payload["net"])
	assert.Equal(t, "/stream", payload["path"])
	assert.Equal(t, "tls", payload["tls"])
	assert.Equal(t, "cdn.example.com", payload["sni"])
}

func TestRenderLinks_Trojan(t *testing.T) {
	e := Entry{
		Remark:          "edge-1 trojan",
		Protocol:        user.ProtocolTrojan,
		Address:         "10.0.0.5",
		Port:            443,
		Network:         node.NetworkGRPC,
		Security:        node.SecurityTLS,
		GRPCServiceName: "tunnel",
		SNI:             "cdn.example.com",
		Password:        "p@ss/word",
	}

	link := RenderLinks([]Entry{e})
	require.True(t, strings.HasPrefix(link, "trojan://"))
	assert.Contains(t, link, url.QueryEscape("p@ss/word")+"@10.0.0.5:443")

	parsed, err := url.Parse(link)
	require.NoError(t, err)
	q := parsed.Query()
	assert.Equal(t, "grpc", q.Get("type"))
	assert.Equal(t, "tunnel", q.Get("serviceName"))
	assert.Equal(t, "cdn.example.com", q.Get("sni"))
}

func TestRenderLinks_Shadowsocks(t *testing.T) {
	e := Entry{
		Remark:   "edge-1 ss",
		Protocol: user.ProtocolShadowsocks,
		Address:  "10.0.0.5",
		Port:     8388,
		Method:   "chacha20-ietf-poly1305",
		Password: "secret",
	}

	link := RenderLinks([]Entry{e})
	require.True(t, strings.HasPrefix(link, "ss://"))

	userinfo := strings.TrimPrefix(strings.Split(link, "@")[0], "ss://")
	decoded, err := base64.RawURLEncoding.DecodeString(userinfo)
	require.NoError(t, err)
	assert.Equal(t, "chacha20-ietf-poly1305:secret", string(decoded))
	assert.True(t, strings.HasSuffix(link, "@10.0.0.5:8388#edge-1%20ss"))
}

func TestRenderLinks_Determinism(t *testing.T) {
	e := Entry{
		Remark: "r", Protocol: user.ProtocolVLESS, Address: "h", Port: 1,
		Network: node.NetworkWS, Security: node.SecurityTLS,
		WSPath: "/p", SNI: "s", Fingerprint: "f",
		UUID: "u",
	}

	assert.Equal(t, RenderLinks([]Entry{e}), RenderLinks([]Entry{e}))
}

func TestRenderBase64(t *testing.T) {
	e := Entry{
		Remark: "r", Protocol: user.ProtocolShadowsocks, Address: "h", Port: 1,
		Method: "aes-256-gcm", Password: "pw",
	}

	decoded, err := base64.StdEncoding.DecodeString(RenderBase64([]Entry{e}))
	require.NoError(t, err)
	assert.Equal(t, RenderLinks([]Entry{e}), string(decoded))
}
