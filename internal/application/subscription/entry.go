package subscription

import (
	"fmt"
	"sort"

	"github.com/veilnet-io/veilnet/internal/domain/node"
	"github.com/veilnet-io/veilnet/internal/domain/user"
)

// Entry is one renderable server line: a service's connection parameters
// joined with the user's credentials for that protocol.
type Entry struct {
	Remark   string
	Protocol user.Protocol
	Address  string
	Port     int

	Network         node.NetworkType
	Security        node.SecurityType
	WSPath          string
	GRPCServiceName string

	SNI              string
	Fingerprint      string
	RealityPublicKey string
	RealityShortID   string

	UUID     string
	Flow     string
	Password string
	Method   string
}

// BuildEntries pairs each enabled service on the node with the user's
// matching proxy. Services are walked in ID order so output is stable.
// HTTP and SOCKS proxies have no link scheme and are skipped.
func BuildEntries(u *user.User, n *node.Node, services []*node.ServiceConfig) []Entry {
	sorted := make([]*node.ServiceConfig, len(services))
	copy(sorted, services)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	var entries []Entry
	for _, svc := range sorted {
		if !svc.Enabled {
			continue
		}
		if svc.Protocol == user.ProtocolHTTP || svc.Protocol == user.ProtocolSOCKS {
			continue
		}
		proxy := u.Proxy(svc.Protocol)
		if proxy == nil {
			continue
		}

		settings := proxy.Settings()
		e := Entry{
			Remark:           fmt.Sprintf("%s-%s", n.Name(), svc.Name),
			Protocol:         svc.Protocol,
			Address:          n.Address(),
			Port:             svc.ListenPort,
			Network:          svc.Network,
			Security:         svc.Security,
			WSPath:           svc.WSPath,
			GRPCServiceName:  svc.GRPCServiceName,
			SNI:              svc.SNI,
			Fingerprint:      svc.Fingerprint,
			RealityPublicKey: svc.RealityPublicKey,
			RealityShortID:   svc.RealityShortID,
		}
		switch svc.Protocol {
		case user.ProtocolVLESS, user.ProtocolVMess:
			e.UUID = settings.UUID
			if svc.Protocol == user.ProtocolVLESS && flowUsable(svc) {
				e.Flow = settings.Flow
			}
		case user.ProtocolTrojan:
			e.Password = settings.Password
		case user.ProtocolShadowsocks:
			e.Password = settings.Password
			e.Method = settings.Method
			if e.Method == "" {
				e.Method = user.DefaultShadowsocksMethod
			}
		}
		entries = append(entries, e)
	}
	return entries
}

// flowUsable mirrors the engine rule: XTLS flow only rides plain TCP-family
// streams under tls or reality.
func flowUsable(svc *node.ServiceConfig) bool {
	switch svc.Network {
	case node.NetworkTCP, node.NetworkRaw, node.NetworkKCP:
	default:
		return false
	}
	return svc.Security == node.SecurityTLS || svc.Security == node.SecurityReality
}
