package subscription

import (
	"encoding/json"
	"fmt"

	"github.com/veilnet-io/veilnet/internal/domain/node"
	"github.com/veilnet-io/veilnet/internal/domain/user"
)

// RenderV2RayJSON serializes entries as an array of v2ray outbound
// configurations, one document element per server.
func RenderV2RayJSON(entries []Entry) (string, error) {
	configs := make([]map[string]interface{}, 0, len(entries))
	for _, e := range entries {
		if c := v2rayOutbound(e); c != nil {
			configs = append(configs, c)
		}
	}
	out, err := json.MarshalIndent(configs, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal v2ray document: %w", err)
	}
	return string(out), nil
}

func v2rayOutbound(e Entry) map[string]interface{} {
	ob := map[string]interface{}{"tag": e.Remark}

	switch e.Protocol {
	case user.ProtocolVLESS, user.ProtocolVMess:
		userObj := map[string]interface{}{"id": e.UUID}
		if e.Protocol == user.ProtocolVLESS {
			ob["protocol"] = "vless"
			userObj["encryption"] = "none"
			if e.Flow != "" {
				userObj["flow"] = e.Flow
			}
		} else {
			ob["protocol"] = "vmess"
			userObj["security"] = "auto"
		}
		ob["settings"] = map[string]interface{}{
			"vnext": []interface{}{map[string]interface{}{
				"address": e.Address,
				"port":    e.Port,
				"users":   []interface{}{userObj},
			}},
		}
	case user.ProtocolTrojan:
		ob["protocol"] = "trojan"
		ob["settings"] = map[string]interface{}{
			"servers": []interface{}{map[string]interface{}{
				"address":  e.Address,
				"port":     e.Port,
				"password": e.Password,
			}},
		}
	case user.ProtocolShadowsocks:
		ob["protocol"] = "shadowsocks"
		ob["settings"] = map[string]interface{}{
			"servers": []interface{}{map[string]interface{}{
				"address":  e.Address,
				"port":     e.Port,
				"method":   e.Method,
				"password": e.Password,
			}},
		}
	default:
		return nil
	}

	stream := map[string]interface{}{
		"network":  string(e.Network),
		"security": string(e.Security),
	}
	switch e.Network {
	case node.NetworkWS:
		ws := map[string]interface{}{"path": e.WSPath}
		if e.SNI != "" {
			ws["headers"] = map[string]interface{}{"Host": e.SNI}
		}
		stream["wsSettings"] = ws
	case node.NetworkGRPC:
		stream["grpcSettings"] = map[string]interface{}{"serviceName": e.GRPCServiceName}
	}
	switch e.Security {
	case node.SecurityTLS:
		tls := map[string]interface{}{}
		if e.SNI != "" {
			tls["serverName"] = e.SNI
		}
		if e.Fingerprint != "" {
			tls["fingerprint"] = e.Fingerprint
		}
		stream["tlsSettings"] = tls
	case node.SecurityReality:
		stream["realitySettings"] = map[string]interface{}{
			"serverName":  e.SNI,
			"fingerprint": e.Fingerprint,
			"publicKey":   e.RealityPublicKey,
			"shortId":     e.RealityShortID,
		}
	}
	ob["streamSettings"] = stream
	return ob
}
