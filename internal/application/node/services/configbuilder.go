// Package services holds node-scoped application services.
package services

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/veilnet-io/veilnet/internal/domain/node"
	"github.com/veilnet-io/veilnet/internal/domain/user"
)

// ConfigBuilder renders a forwarding-engine config for one node from the
// node's inbound definitions and the users activated on it. Equal inputs
// produce byte-identical output: maps marshal with sorted keys and clients
// are ordered by user ID.
type ConfigBuilder struct{}

// NewConfigBuilder creates a config builder.
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{}
}

const (
	apiTag        = "API_GRPC_CTRL"
	apiInboundTag = "API_GRPC_INBOUND"
)

// Build renders the engine config as JSON. Users not owning a proxy for a
// service's protocol simply don't appear in that inbound.
func (b *ConfigBuilder) Build(n *node.Node, users []*user.User, services []*node.ServiceConfig) (string, error) {
	sorted := make([]*user.User, len(users))
	copy(sorted, users)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID() < sorted[j].ID() })

	inbounds := []interface{}{
		map[string]interface{}{
			"tag":      apiInboundTag,
			"listen":   "127.0.0.1",
			"port":     n.StatsPort(),
			"protocol": "dokodemo-door",
			"settings": map[string]interface{}{"address": "127.0.0.1"},
		},
	}

	seenTags := map[string]struct{}{apiInboundTag: {}}
	for _, svc := range services {
		if !svc.Enabled {
			continue
		}
		tag := svc.EffectiveTag()
		if _, dup := seenTags[tag]; dup {
			return "", fmt.Errorf("duplicate engine tag %q on node %d", tag, n.ID())
		}
		seenTags[tag] = struct{}{}

		inbound, err := b.buildInbound(svc, tag, sorted)
		if err != nil {
			return "", err
		}
		inbounds = append(inbounds, inbound)
	}

	cfg := map[string]interface{}{
		"log": map[string]interface{}{
			"loglevel": "warning",
		},
		"api": map[string]interface{}{
			"tag":      apiTag,
			"services": []interface{}{"HandlerService", "StatsService", "LoggerService"},
		},
		"stats": map[string]interface{}{},
		"policy": map[string]interface{}{
			"levels": map[string]interface{}{
				"0": map[string]interface{}{
					"statsUserUplink":   true,
					"statsUserDownlink": true,
				},
			},
			"system": map[string]interface{}{
				"statsInboundUplink":   true,
				"statsInboundDownlink": true,
			},
		},
		"inbounds": inbounds,
		"outbounds": []interface{}{
			map[string]interface{}{"tag": "direct", "protocol": "freedom"},
			map[string]interface{}{"tag": "block", "protocol": "blackhole"},
		},
		"routing": map[string]interface{}{
			"rules": []interface{}{
				map[string]interface{}{
					"type":        "field",
					"inboundTag":  []interface{}{apiInboundTag},
					"outboundTag": apiTag,
				},
			},
		},
	}

	raw, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to marshal engine config: %w", err)
	}
	return string(raw), nil
}

func (b *ConfigBuilder) buildInbound(svc *node.ServiceConfig, tag string, users []*user.User) (map[string]interface{}, error) {
	network := svc.Network
	if network == "" {
		network = node.NetworkTCP
	}
	security := svc.Security
	if security == "" {
		security = node.SecurityNone
	}

	clients := b.buildClients(svc, network, security, users)

	settings := map[string]interface{}{"clients": clients}
	switch svc.Protocol {
	case user.ProtocolVLESS:
		settings["decryption"] = "none"
	case user.ProtocolShadowsocks:
		settings["network"] = "tcp,udp"
	}
	settings = deepMerge(settings, svc.AdvancedProtocol)

	stream := map[string]interface{}{"network": string(network)}
	if security != node.SecurityNone {
		stream["security"] = string(security)
	}
	switch security {
	case node.SecurityTLS:
		tls := map[string]interface{}{}
		if svc.SNI != "" {
			tls["serverName"] = svc.SNI
		}
		if svc.Fingerprint != "" {
			tls["fingerprint"] = svc.Fingerprint
		}
		stream["tlsSettings"] = deepMerge(tls, svc.AdvancedTLS)
	case node.SecurityReality:
		reality := map[string]interface{}{}
		if svc.SNI != "" {
			reality["serverNames"] = []interface{}{svc.SNI}
		}
		if svc.RealityShortID != "" {
			reality["shortIds"] = []interface{}{svc.RealityShortID}
		}
		stream["realitySettings"] = deepMerge(reality, svc.AdvancedReality)
	}

	netKey, netBlock := networkBlock(svc, network)
	if netKey != "" {
		if adv, ok := svc.AdvancedStream[netKey].(map[string]interface{}); ok {
			netBlock = deepMerge(netBlock, adv)
		}
		if len(netBlock) > 0 {
			stream[netKey] = netBlock
		}
	}
	// Remaining advanced stream keys apply on top.
	for k, v := range svc.AdvancedStream {
		if k == netKey {
			continue
		}
		stream = deepMerge(stream, map[string]interface{}{k: v})
	}

	sniffing := map[string]interface{}{
		"enabled":      true,
		"destOverride": []interface{}{"http", "tls", "quic", "fakedns"},
	}
	sniffing = deepMerge(sniffing, svc.AdvancedSniffing)

	inbound := map[string]interface{}{
		"tag":            tag,
		"port":           svc.ListenPort,
		"protocol":       string(svc.Protocol),
		"settings":       settings,
		"streamSettings": stream,
		"sniffing":       sniffing,
	}
	if svc.ListenAddress != "" {
		inbound["listen"] = svc.ListenAddress
	}
	return inbound, nil
}

func (b *ConfigBuilder) buildClients(svc *node.ServiceConfig, network node.NetworkType, security node.SecurityType, users []*user.User) []interface{} {
	clients := make([]interface{}, 0, len(users))
	for _, u := range users {
		p := u.Proxy(svc.Protocol)
		if p == nil {
			continue
		}
		entry := map[string]interface{}{"email": u.EngineEmail()}
		s := p.Settings()
		switch svc.Protocol {
		case user.ProtocolVLESS, user.ProtocolVMess:
			entry["id"] = s.UUID
			if svc.Protocol == user.ProtocolVLESS && s.Flow != "" && flowAllowed(network, security, tcpHeaderType(svc)) {
				entry["flow"] = s.Flow
			}
		case user.ProtocolTrojan:
			entry["password"] = s.Password
		case user.ProtocolShadowsocks:
			entry["password"] = s.Password
			method := s.Method
			if method == "" {
				method = user.DefaultShadowsocksMethod
			}
			entry["method"] = method
		}
		clients = append(clients, entry)
	}
	return clients
}

// flowAllowed is the XTLS compatibility rule: flow survives only on plain
// stream transports under tls/reality without an http obfuscation header.
func flowAllowed(network node.NetworkType, security node.SecurityType, tcpHeader string) bool {
	switch network {
	case node.NetworkTCP, node.NetworkKCP, node.NetworkRaw:
	default:
		return false
	}
	if security != node.SecurityTLS && security != node.SecurityReality {
		return false
	}
	return tcpHeader != "http"
}

func tcpHeaderType(svc *node.ServiceConfig) string {
	tcp, ok := svc.AdvancedStream["tcpSettings"].(map[string]interface{})
	if !ok {
		return ""
	}
	header, ok := tcp["header"].(map[string]interface{})
	if !ok {
		return ""
	}
	t, _ := header["type"].(string)
	return t
}

func networkBlock(svc *node.ServiceConfig, network node.NetworkType) (key string, block map[string]interface{}) {
	switch network {
	case node.NetworkWS:
		block = map[string]interface{}{}
		if svc.WSPath != "" {
			block["path"] = svc.WSPath
		}
		return "wsSettings", block
	case node.NetworkGRPC:
		block = map[string]interface{}{}
		if svc.GRPCServiceName != "" {
			block["serviceName"] = svc.GRPCServiceName
		}
		return "grpcSettings", block
	case node.NetworkHTTP:
		block = map[string]interface{}{}
		if svc.WSPath != "" {
			block["path"] = svc.WSPath
		}
		return "httpSettings", block
	case node.NetworkKCP:
		return "kcpSettings", map[string]interface{}{}
	case node.NetworkTCP, node.NetworkRaw:
		return "tcpSettings", map[string]interface{}{}
	}
	return "", nil
}

// deepMerge overlays src onto dst, recursing into nested maps. Slices and
// scalars from src replace dst values. dst is returned for chaining.
func deepMerge(dst, src map[string]interface{}) map[string]interface{} {
	if dst == nil {
		dst = map[string]interface{}{}
	}
	for k, v := range src {
		if srcMap, ok := v.(map[string]interface{}); ok {
			if dstMap, ok := dst[k].(map[string]interface{}); ok {
				dst[k] = deepMerge(dstMap, srcMap)
				continue
			}
		}
		dst[k] = v
	}
	return dst
}
