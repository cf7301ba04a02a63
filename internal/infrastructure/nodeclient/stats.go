package nodeclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// UserTraffic is one engine-side traffic counter sample. Name is the
// engine-level identity ("{user_id}.{account_number}", or a bare account
// number for accounts provisioned before the composite form).
type UserTraffic struct {
	Name     string `json:"name"`
	Uplink   int64  `json:"uplink"`
	Downlink int64  `json:"downlink"`
}

// SystemStats is the worker host's resource snapshot.
type SystemStats struct {
	MemTotal       uint64  `json:"mem_total"`
	MemUsed        uint64  `json:"mem_used"`
	CPUCores       int     `json:"cpu_cores"`
	CPUUsage       float64 `json:"cpu_usage"`
	IncomingBytes  uint64  `json:"incoming_bandwidth"`
	OutgoingBytes  uint64  `json:"outgoing_bandwidth"`
	EngineUptimeS  uint64  `json:"engine_uptime"`
	OnlineSessions int     `json:"online_sessions"`
}

// StatsClient reads traffic counters from a node's stats port over one-way
// TLS verified against the fleet CA.
type StatsClient struct {
	base  string
	httpc *http.Client
}

func newStatsClient(address string, port int, roots *x509.CertPool) *StatsClient {
	return &StatsClient{
		base: fmt.Sprintf("https://%s:%d", address, port),
		httpc: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					RootCAs:    roots,
					MinVersion: tls.VersionTLS12,
				},
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// GetAllUsersTraffic returns per-user counters. With reset, the engine
// zeroes its counters after reporting, so each call yields deltas.
func (s *StatsClient) GetAllUsersTraffic(ctx context.Context, reset bool) ([]UserTraffic, error) {
	var out struct {
		Users []UserTraffic `json:"users"`
	}
	path := "/stats/users"
	if reset {
		path += "?reset=true"
	}
	if err := s.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Users, nil
}

// GetSystemStats returns the worker host snapshot.
func (s *StatsClient) GetSystemStats(ctx context.Context) (*SystemStats, error) {
	var out SystemStats
	if err := s.do(ctx, http.MethodGet, "/stats/system", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type inboundUserRequest struct {
	Tag      string                 `json:"tag"`
	Email    string                 `json:"email"`
	Settings map[string]interface{} `json:"settings,omitempty"`
}

// AddInboundUser injects a single credential into a running inbound without
// a full config push.
func (s *StatsClient) AddInboundUser(ctx context.Context, tag, email string, settings map[string]interface{}) error {
	return s.do(ctx, http.MethodPost, "/inbounds/user", inboundUserRequest{Tag: tag, Email: email, Settings: settings}, nil)
}

// RemoveInboundUser removes a single credential from a running inbound.
func (s *StatsClient) RemoveInboundUser(ctx context.Context, tag, email string) error {
	return s.do(ctx, http.MethodDelete, "/inbounds/user", inboundUserRequest{Tag: tag, Email: email}, nil)
}

func (s *StatsClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal stats request: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.base+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build stats request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpc.Do(req)
	if err != nil {
		return &APIError{StatusCode: 0, Detail: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return &APIError{StatusCode: resp.StatusCode, Detail: err.Error()}
	}
	if resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Detail: string(raw)}
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("failed to decode stats response: %w", err)
		}
	}
	return nil
}
