package subscription

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/veilnet-io/veilnet/internal/domain/node"
	"github.com/veilnet-io/veilnet/internal/domain/user"
)

// RenderClash serializes entries as a clash proxy-provider document. Plain
// clash cannot speak vless or reality, so those entries are emitted only
// for the meta flavor.
func RenderClash(entries []Entry, meta bool) (string, error) {
	proxies := make([]map[string]interface{}, 0, len(entries))
	for _, e := range entries {
		p := clashProxy(e, meta)
		if p != nil {
			proxies = append(proxies, p)
		}
	}
	doc := map[string]interface{}{"proxies": proxies}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshal clash document: %w", err)
	}
	return string(out), nil
}

func clashProxy(e Entry, meta bool) map[string]interface{} {
	if !meta && (e.Protocol == user.ProtocolVLESS || e.Security == node.SecurityReality) {
		return nil
	}

	p := map[string]interface{}{
		"name":   e.Remark,
		"server": e.Address,
		"port":   e.Port,
		"udp":    true,
	}

	switch e.Protocol {
	case user.ProtocolVLESS:
		p["type"] = "vless"
		p["uuid"] = e.UUID
		if e.Flow != "" {
			p["flow"] = e.Flow
		}
	case user.ProtocolVMess:
		p["type"] = "vmess"
		p["uuid"] = e.UUID
		p["alterId"] = 0
		p["cipher"] = "auto"
	case user.ProtocolTrojan:
		p["type"] = "trojan"
		p["password"] = e.Password
	case user.ProtocolShadowsocks:
		p["type"] = "ss"
		p["cipher"] = e.Method
		p["password"] = e.Password
		return p // ss carries no stream or tls options
	default:
		return nil
	}

	switch e.Network {
	case node.NetworkWS:
		p["network"] = "ws"
		opts := map[string]interface{}{"path": e.WSPath}
		if e.SNI != "" {
			opts["headers"] = map[string]interface{}{"Host": e.SNI}
		}
		p["ws-opts"] = opts
	case node.NetworkGRPC:
		p["network"] = "grpc"
		p["grpc-opts"] = map[string]interface{}{"grpc-service-name": e.GRPCServiceName}
	}

	switch e.Security {
	case node.SecurityTLS:
		p["tls"] = true
		if e.SNI != "" {
			p["servername"] = e.SNI
		}
		if meta && e.Fingerprint != "" {
			p["client-fingerprint"] = e.Fingerprint
		}
	case node.SecurityReality:
		p["tls"] = true
		if e.SNI != "" {
			p["servername"] = e.SNI
		}
		p["reality-opts"] = map[string]interface{}{
			"public-key": e.RealityPublicKey,
			"short-id":   e.RealityShortID,
		}
		if e.Fingerprint != "" {
			p["client-fingerprint"] = e.Fingerprint
		}
	}
	return p
}
