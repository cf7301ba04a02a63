package user

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/google/uuid"
)

// Protocol identifies a proxy protocol a user may hold credentials for.
type Protocol string

const (
	ProtocolVLESS       Protocol = "vless"
	ProtocolVMess       Protocol = "vmess"
	ProtocolTrojan      Protocol = "trojan"
	ProtocolShadowsocks Protocol = "shadowsocks"
	ProtocolHTTP        Protocol = "http"
	ProtocolSOCKS       Protocol = "socks"
)

// IsValid reports whether p is a known protocol.
func (p Protocol) IsValid() bool {
	switch p {
	case ProtocolVLESS, ProtocolVMess, ProtocolTrojan, ProtocolShadowsocks, ProtocolHTTP, ProtocolSOCKS:
		return true
	}
	return false
}

// DefaultShadowsocksMethod is used when a shadowsocks proxy is created
// without an explicit cipher.
const DefaultShadowsocksMethod = "chacha20-ietf-poly1305"

// ProxySettings is the protocol-tagged credential payload of a proxy.
// VLESS and VMess carry a UUID (VLESS additionally a flow); Trojan and
// Shadowsocks carry a password (Shadowsocks additionally a method).
type ProxySettings struct {
	UUID     string `json:"id,omitempty"`
	Flow     string `json:"flow,omitempty"`
	Password string `json:"password,omitempty"`
	Method   string `json:"method,omitempty"`
}

// Proxy is a per-protocol credential row owned by a user.
// Exactly one proxy exists per (user, protocol).
type Proxy struct {
	id       uint
	userID   uint
	protocol Protocol
	settings ProxySettings
}

// NewProxy creates a proxy with freshly generated credentials for the protocol.
func NewProxy(protocol Protocol) (*Proxy, error) {
	if !protocol.IsValid() {
		return nil, fmt.Errorf("unknown proxy protocol %q", protocol)
	}
	p := &Proxy{protocol: protocol}
	if err := p.RegenerateSecret(); err != nil {
		return nil, err
	}
	return p, nil
}

// NewProxyWithSettings creates a proxy with caller-provided settings,
// filling in any missing secret.
func NewProxyWithSettings(protocol Protocol, settings ProxySettings) (*Proxy, error) {
	if !protocol.IsValid() {
		return nil, fmt.Errorf("unknown proxy protocol %q", protocol)
	}
	p := &Proxy{protocol: protocol, settings: settings}
	if p.secret() == "" {
		if err := p.RegenerateSecret(); err != nil {
			return nil, err
		}
	}
	if protocol == ProtocolShadowsocks && p.settings.Method == "" {
		p.settings.Method = DefaultShadowsocksMethod
	}
	return p, nil
}

// ReconstructProxy reconstructs a proxy from persistence.
func ReconstructProxy(id, userID uint, protocol Protocol, settings ProxySettings) *Proxy {
	return &Proxy{id: id, userID: userID, protocol: protocol, settings: settings}
}

func (p *Proxy) ID() uint                { return p.id }
func (p *Proxy) UserID() uint            { return p.userID }
func (p *Proxy) Protocol() Protocol      { return p.protocol }
func (p *Proxy) Settings() ProxySettings { return p.settings }

// SetID sets the proxy ID (persistence layer use only).
func (p *Proxy) SetID(id uint) { p.id = id }

// SetUserID binds the proxy to its owner (persistence layer use only).
func (p *Proxy) SetUserID(userID uint) { p.userID = userID }

// RegenerateSecret replaces the credential secret in place, keeping
// non-secret fields (flow, method) intact. Used by subscription revocation.
func (p *Proxy) RegenerateSecret() error {
	switch p.protocol {
	case ProtocolVLESS, ProtocolVMess:
		p.settings.UUID = uuid.NewString()
	case ProtocolTrojan, ProtocolShadowsocks, ProtocolHTTP, ProtocolSOCKS:
		pw, err := generatePassword()
		if err != nil {
			return err
		}
		p.settings.Password = pw
		if p.protocol == ProtocolShadowsocks && p.settings.Method == "" {
			p.settings.Method = DefaultShadowsocksMethod
		}
	default:
		return fmt.Errorf("unknown proxy protocol %q", p.protocol)
	}
	return nil
}

func (p *Proxy) secret() string {
	switch p.protocol {
	case ProtocolVLESS, ProtocolVMess:
		return p.settings.UUID
	default:
		return p.settings.Password
	}
}

func generatePassword() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
