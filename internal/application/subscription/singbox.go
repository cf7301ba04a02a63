package subscription

import (
	"encoding/json"
	"fmt"

	"github.com/veilnet-io/veilnet/internal/domain/node"
	"github.com/veilnet-io/veilnet/internal/domain/user"
)

// RenderSingBox serializes entries as a sing-box outbound list.
func RenderSingBox(entries []Entry) (string, error) {
	outbounds := make([]map[string]interface{}, 0, len(entries))
	for _, e := range entries {
		if ob := singBoxOutbound(e); ob != nil {
			outbounds = append(outbounds, ob)
		}
	}
	doc := map[string]interface{}{"outbounds": outbounds}
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal sing-box document: %w", err)
	}
	return string(out), nil
}

func singBoxOutbound(e Entry) map[string]interface{} {
	ob := map[string]interface{}{
		"tag":         e.Remark,
		"server":      e.Address,
		"server_port": e.Port,
	}

	switch e.Protocol {
	case user.ProtocolVLESS:
		ob["type"] = "vless"
		ob["uuid"] = e.UUID
		if e.Flow != "" {
			ob["flow"] = e.Flow
		}
	case user.ProtocolVMess:
		ob["type"] = "vmess"
		ob["uuid"] = e.UUID
		ob["security"] = "auto"
		ob["alter_id"] = 0
	case user.ProtocolTrojan:
		ob["type"] = "trojan"
		ob["password"] = e.Password
	case user.ProtocolShadowsocks:
		ob["type"] = "shadowsocks"
		ob["method"] = e.Method
		ob["password"] = e.Password
		return ob
	default:
		return nil
	}

	switch e.Network {
	case node.NetworkWS:
		transport := map[string]interface{}{"type": "ws", "path": e.WSPath}
		if e.SNI != "" {
			transport["headers"] = map[string]interface{}{"Host": e.SNI}
		}
		ob["transport"] = transport
	case node.NetworkGRPC:
		ob["transport"] = map[string]interface{}{"type": "grpc", "service_name": e.GRPCServiceName}
	}

	if e.Security == node.SecurityTLS || e.Security == node.SecurityReality {
		tls := map[string]interface{}{"enabled": true}
		if e.SNI != "" {
			tls["server_name"] = e.SNI
		}
		if e.Fingerprint != "" {
			tls["utls"] = map[string]interface{}{"enabled": true, "fingerprint": e.Fingerprint}
		}
		if e.Security == node.SecurityReality {
			tls["reality"] = map[string]interface{}{
				"enabled":    true,
				"public_key": e.RealityPublicKey,
				"short_id":   e.RealityShortID,
			}
		}
		ob["tls"] = tls
	}
	return ob
}
