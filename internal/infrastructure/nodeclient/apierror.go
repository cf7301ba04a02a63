// Package nodeclient implements the panel side of the worker-node RPC
// surface: the mTLS control channel, the stats channel, and the log stream.
package nodeclient

import (
	"fmt"
	"net/http"
	"strings"
)

// APIError is an error response from a worker node's REST surface.
type APIError struct {
	StatusCode int
	Detail     string
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("node API error %d: %s", e.StatusCode, e.Detail)
}

// IsAlreadyRunning reports whether the node rejected /start because the
// engine is already up; callers treat this as an implicit restart.
func (e *APIError) IsAlreadyRunning() bool {
	detail := strings.ToLower(e.Detail)
	return e.StatusCode == http.StatusConflict ||
		strings.Contains(detail, "already started") ||
		strings.Contains(detail, "already running")
}
