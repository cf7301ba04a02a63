// Package node holds the worker-node aggregate: connection state, the
// per-node inbound service definitions, and usage accounting records.
package node

import (
	"fmt"
	"strings"
	"time"
)

// Node represents a worker node running the packet-forwarding engine.
type Node struct {
	id               uint
	name             string
	address          string
	rpcPort          int
	statsPort        int
	usageCoefficient float64
	status           Status
	message          string
	engineVersion    string
	clientCertPEM    string
	clientKeyPEM     string
	lastStatusChange time.Time
	createdAt        time.Time
	updatedAt        time.Time
}

// NewNode creates a node in disabled-or-connecting initial state.
func NewNode(name, address string, rpcPort, statsPort int, usageCoefficient float64) (*Node, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("node name is required")
	}
	if address == "" {
		return nil, fmt.Errorf("node address is required")
	}
	if rpcPort <= 0 || rpcPort > 65535 {
		return nil, fmt.Errorf("rpc port out of range: %d", rpcPort)
	}
	if statsPort <= 0 || statsPort > 65535 {
		return nil, fmt.Errorf("stats port out of range: %d", statsPort)
	}
	if usageCoefficient == 0 {
		usageCoefficient = 1.0
	}
	if usageCoefficient <= 0 {
		return nil, fmt.Errorf("usage coefficient must be positive")
	}

	now := time.Now().UTC()
	return &Node{
		name:             name,
		address:          address,
		rpcPort:          rpcPort,
		statsPort:        statsPort,
		usageCoefficient: usageCoefficient,
		status:           StatusConnecting,
		lastStatusChange: now,
		createdAt:        now,
		updatedAt:        now,
	}, nil
}

// ReconstructNode reconstructs a node from persistence.
func ReconstructNode(
	id uint,
	name, address string,
	rpcPort, statsPort int,
	usageCoefficient float64,
	status Status,
	message, engineVersion string,
	clientCertPEM, clientKeyPEM string,
	lastStatusChange, createdAt, updatedAt time.Time,
) (*Node, error) {
	if id == 0 {
		return nil, fmt.Errorf("node ID cannot be zero")
	}
	if name == "" {
		return nil, fmt.Errorf("node name is required")
	}
	if !status.IsValid() {
		return nil, fmt.Errorf("invalid node status %q", status)
	}
	return &Node{
		id:               id,
		name:             name,
		address:          address,
		rpcPort:          rpcPort,
		statsPort:        statsPort,
		usageCoefficient: usageCoefficient,
		status:           status,
		message:          message,
		engineVersion:    engineVersion,
		clientCertPEM:    clientCertPEM,
		clientKeyPEM:     clientKeyPEM,
		lastStatusChange: lastStatusChange,
		createdAt:        createdAt,
		updatedAt:        updatedAt,
	}, nil
}

func (n *Node) ID() uint                    { return n.id }
func (n *Node) Name() string                { return n.name }
func (n *Node) Address() string             { return n.address }
func (n *Node) RPCPort() int                { return n.rpcPort }
func (n *Node) StatsPort() int              { return n.statsPort }
func (n *Node) UsageCoefficient() float64   { return n.usageCoefficient }
func (n *Node) Status() Status              { return n.status }
func (n *Node) Message() string             { return n.message }
func (n *Node) EngineVersion() string       { return n.engineVersion }
func (n *Node) ClientCertPEM() string       { return n.clientCertPEM }
func (n *Node) ClientKeyPEM() string        { return n.clientKeyPEM }
func (n *Node) LastStatusChange() time.Time { return n.lastStatusChange }
func (n *Node) CreatedAt() time.Time        { return n.createdAt }
func (n *Node) UpdatedAt() time.Time        { return n.updatedAt }

// SetID sets the node ID (persistence layer use only).
func (n *Node) SetID(id uint) error {
	if n.id != 0 {
		return fmt.Errorf("node ID is already set")
	}
	if id == 0 {
		return fmt.Errorf("node ID cannot be zero")
	}
	n.id = id
	return nil
}

func (n *Node) setStatus(s Status, message string) {
	n.status = s
	n.message = message
	n.lastStatusChange = time.Now().UTC()
	n.updatedAt = n.lastStatusChange
}

// MarkConnecting records the start of a connect attempt.
func (n *Node) MarkConnecting() {
	n.setStatus(StatusConnecting, "")
}

// MarkConnected records a successful connect along with the engine version
// reported by the worker.
func (n *Node) MarkConnected(engineVersion string) {
	n.engineVersion = engineVersion
	n.setStatus(StatusConnected, "")
}

// MarkError records a failed RPC with the node-provided detail.
func (n *Node) MarkError(message string) {
	n.setStatus(StatusError, message)
}

// Disable takes the node out of service until re-enabled by an admin.
func (n *Node) Disable() {
	n.setStatus(StatusDisabled, "")
}

// Enable returns a disabled node to the connecting state.
func (n *Node) Enable() error {
	if n.status != StatusDisabled {
		return fmt.Errorf("node is not disabled")
	}
	n.setStatus(StatusConnecting, "")
	return nil
}

// UpdateAddress updates connection coordinates.
func (n *Node) UpdateAddress(address string, rpcPort, statsPort int) error {
	if address == "" {
		return fmt.Errorf("node address is required")
	}
	if rpcPort <= 0 || rpcPort > 65535 {
		return fmt.Errorf("rpc port out of range: %d", rpcPort)
	}
	if statsPort <= 0 || statsPort > 65535 {
		return fmt.Errorf("stats port out of range: %d", statsPort)
	}
	n.address = address
	n.rpcPort = rpcPort
	n.statsPort = statsPort
	n.updatedAt = time.Now().UTC()
	return nil
}

// UpdateName renames the node.
func (n *Node) UpdateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("node name cannot be empty")
	}
	n.name = name
	n.updatedAt = time.Now().UTC()
	return nil
}

// UpdateUsageCoefficient updates the billing multiplier for traffic
// reported through this node.
func (n *Node) UpdateUsageCoefficient(k float64) error {
	if k <= 0 {
		return fmt.Errorf("usage coefficient must be positive")
	}
	n.usageCoefficient = k
	n.updatedAt = time.Now().UTC()
	return nil
}

// SetClientCredentials mirrors the panel-client certificate material used by
// the node client for the mTLS channel.
func (n *Node) SetClientCredentials(certPEM, keyPEM string) {
	n.clientCertPEM = certPEM
	n.clientKeyPEM = keyPEM
	n.updatedAt = time.Now().UTC()
}
