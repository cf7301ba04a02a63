package subscription

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/veilnet-io/veilnet/internal/domain/node"
	"github.com/veilnet-io/veilnet/internal/domain/user"
)

// RenderLinks emits one share URI per entry, newline-separated.
// url.Values.Encode sorts query keys, so a given entry always serializes
// to the same line.
func RenderLinks(entries []Entry) string {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		if link := entryLink(e); link != "" {
			lines = append(lines, link)
		}
	}
	return strings.Join(lines, "\n")
}

// RenderBase64 is RenderLinks wrapped in standard base64, the wire form
// expected by generic v2ray-family clients.
func RenderBase64(entries []Entry) string {
	return base64.StdEncoding.EncodeToString([]byte(RenderLinks(entries)))
}

func entryLink(e Entry) string {
	switch e.Protocol {
	case user.ProtocolVLESS:
		return vlessLink(e)
	case user.ProtocolVMess:
		return vmessLink(e)
	case user.ProtocolTrojan:
		return trojanLink(e)
	case user.ProtocolShadowsocks:
		return shadowsocksLink(e)
	}
	return ""
}

func vlessLink(e Entry) string {
	q := url.Values{}
	q.Set("type", string(e.Network))
	q.Set("security", string(e.Security))
	if e.Flow != "" {
		q.Set("flow", e.Flow)
	}
	addStreamParams(q, e)
	return fmt.Sprintf("vless://%s@%s:%d?%s#%s",
		e.UUID, e.Address, e.Port, q.Encode(), url.PathEscape(e.Remark))
}

// vmessLink serializes the v2rayN "v2" JSON envelope. Struct fields keep
// the conventional key order clients expect.
func vmessLink(e Entry) string {
	payload := struct {
		V    string `json:"v"`
		PS   string `json:"ps"`
		Add  string `json:"add"`
		Port string `json:"port"`
		ID   string `json:"id"`
		Aid  string `json:"aid"`
		Scy  string `json:"scy"`
		Net  string `json:"net"`
		Type string `json:"type"`
		Host string `json:"host"`
		Path string `json:"path"`
		TLS  string `json:"tls"`
		SNI  string `json:"sni"`
		FP   string `json:"fp"`
	}{
		V:    "2",
		PS:   e.Remark,
		Add:  e.Address,
		Port: strconv.Itoa(e.Port),
		ID:   e.UUID,
		Aid:  "0",
		Scy:  "auto",
		Net:  string(e.Network),
		Type: "none",
		Path: streamPath(e),
		SNI:  e.SNI,
		FP:   e.Fingerprint,
	}
	if e.Security == node.SecurityTLS {
		payload.TLS = "tls"
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return ""
	}
	return "vmess://" + base64.StdEncoding.EncodeToString(raw)
}

func trojanLink(e Entry) string {
	q := url.Values{}
	q.Set("type", string(e.Network))
	q.Set("security", string(e.Security))
	addStreamParams(q, e)
	return fmt.Sprintf("trojan://%s@%s:%d?%s#%s",
		url.QueryEscape(e.Password), e.Address, e.Port, q.Encode(), url.PathEscape(e.Remark))
}

func shadowsocksLink(e Entry) string {
	userinfo := base64.RawURLEncoding.EncodeToString([]byte(e.Method + ":" + e.Password))
	return fmt.Sprintf("ss://%s@%s:%d#%s",
		userinfo, e.Address, e.Port, url.PathEscape(e.Remark))
}

func addStreamParams(q url.Values, e Entry) {
	switch e.Network {
	case node.NetworkWS:
		if e.WSPath != "" {
			q.Set("path", e.WSPath)
		}
		if e.SNI != "" {
			q.Set("host", e.SNI)
		}
	case node.NetworkGRPC:
		if e.GRPCServiceName != "" {
			q.Set("serviceName", e.GRPCServiceName)
		}
	}
	if e.Security == node.SecurityTLS || e.Security == node.SecurityReality {
		if e.SNI != "" {
			q.Set("sni", e.SNI)
		}
		if e.Fingerprint != "" {
			q.Set("fp", e.Fingerprint)
		}
	}
	if e.Security == node.SecurityReality {
		q.Set("pbk", e.RealityPublicKey)
		if e.RealityShortID != "" {
			q.Set("sid", e.RealityShortID)
		}
	}
}

func streamPath(e Entry) string {
	switch e.Network {
	case node.NetworkWS:
		return e.WSPath
	case node.NetworkGRPC:
		return e.GRPCServiceName
	}
	return ""
}
