package node

// Status mirrors the panel-side view of a worker node's connection state.
// Disabled is terminal until an admin re-enables; the other states are
// driven by the node client.
type Status string

const (
	StatusDisabled   Status = "disabled"
	StatusConnecting Status = "connecting"
	StatusConnected  Status = "connected"
	StatusError      Status = "error"
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusDisabled, StatusConnecting, StatusConnected, StatusError:
		return true
	}
	return false
}

// String returns the status as a string.
func (s Status) String() string {
	return string(s)
}

// IsUsable reports whether the node may receive user activations.
func (s Status) IsUsable() bool {
	return s != StatusDisabled
}
