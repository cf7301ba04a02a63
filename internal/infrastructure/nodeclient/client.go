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
	neturl "net/url"
	"strings"
	"sync"
	"time"

	"github.com/veilnet-io/veilnet/internal/shared/logger"
)

const (
	// Control-plane probes stay short so health ticks never pile up.
	probeTimeout = 3 * time.Second
	// Config pushes include engine restart time on the worker.
	startTimeout = 30 * time.Second
)

// Credentials is the PEM material for the mTLS channel to one node.
type Credentials struct {
	CAPEM         string
	ClientCertPEM string
	ClientKeyPEM  string
}

// Info is the node's self-description from GET /.
type Info struct {
	Started       bool   `json:"started"`
	EngineVersion string `json:"engine_version"`
}

// Client talks to one worker node. Connect/start/stop/restart are
// serialized by a per-node mutex; stats and log channels are lazy.
type Client struct {
	nodeID    uint
	address   string
	rpcPort   int
	statsPort int

	httpc   *http.Client
	tlsConf *tls.Config
	logger  logger.Interface

	// opMu serializes session-mutating RPCs.
	opMu      sync.Mutex
	sessionMu sync.RWMutex
	sessionID string

	statsOnce sync.Once
	stats     *StatsClient

	logs *LogHub
}

// New creates a client for the node at address with the given mTLS material.
func New(nodeID uint, address string, rpcPort, statsPort int, creds Credentials, log logger.Interface) (*Client, error) {
	cert, err := tls.X509KeyPair([]byte(creds.ClientCertPEM), []byte(creds.ClientKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("failed to load panel client keypair: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM([]byte(creds.CAPEM)) {
		return nil, fmt.Errorf("failed to parse CA bundle")
	}

	tlsConf := &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      pool,
		MinVersion:   tls.VersionTLS12,
	}
	c := &Client{
		nodeID:    nodeID,
		address:   address,
		rpcPort:   rpcPort,
		statsPort: statsPort,
		tlsConf:   tlsConf,
		logger:    log,
		httpc: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig:     tlsConf,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	c.logs = newLogHub(c, log)
	return c, nil
}

// NodeID returns the node this client serves.
func (c *Client) NodeID() uint { return c.nodeID }

func (c *Client) baseURL() string {
	return fmt.Sprintf("https://%s:%d", c.address, c.rpcPort)
}

func (c *Client) session() string {
	c.sessionMu.RLock()
	defer c.sessionMu.RUnlock()
	return c.sessionID
}

func (c *Client) setSession(id string) {
	c.sessionMu.Lock()
	c.sessionID = id
	c.sessionMu.Unlock()
}

// Connected reports whether the client holds a claimed session.
func (c *Client) Connected() bool { return c.session() != "" }

type connectResponse struct {
	SessionID     string `json:"session_id"`
	Started       bool   `json:"started"`
	EngineVersion string `json:"engine_version"`
}

// Connect claims a session on the node and returns its self-description.
func (c *Client) Connect(ctx context.Context) (*Info, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	var resp connectResponse
	if err := c.post(ctx, "/connect", probeTimeout, nil, &resp); err != nil {
		return nil, err
	}
	c.setSession(resp.SessionID)
	c.logger.Debugw("node session claimed", "node_id", c.nodeID)
	return &Info{Started: resp.Started, EngineVersion: resp.EngineVersion}, nil
}

// Disconnect releases the session and stops the log pump. Errors from the
// node are ignored; the session is cleared regardless.
func (c *Client) Disconnect(ctx context.Context) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.logs.Stop()
	if c.session() != "" {
		_ = c.post(ctx, "/disconnect", probeTimeout, nil, nil)
	}
	c.setSession("")
}

// Ping verifies the session is still live.
func (c *Client) Ping(ctx context.Context) error {
	return c.post(ctx, "/ping", probeTimeout, nil, nil)
}

// Info fetches the node's self-description.
func (c *Client) Info(ctx context.Context) (*Info, error) {
	var info Info
	if err := c.get(ctx, "/", probeTimeout, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

type startRequest struct {
	Config string `json:"config"`
}

// Start pushes the engine config and starts the engine. A node that reports
// the engine is already running gets the same payload as a restart instead.
func (c *Client) Start(ctx context.Context, configJSON string) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	err := c.post(ctx, "/start", startTimeout, startRequest{Config: configJSON}, nil)
	if apiErr, ok := err.(*APIError); ok && apiErr.IsAlreadyRunning() {
		c.logger.Debugw("engine already running, restarting with new config", "node_id", c.nodeID)
		return c.post(ctx, "/restart", startTimeout, startRequest{Config: configJSON}, nil)
	}
	return err
}

// Stop halts the engine on the node.
func (c *Client) Stop(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	return c.post(ctx, "/stop", startTimeout, nil, nil)
}

// Restart pushes a new config and restarts the engine.
func (c *Client) Restart(ctx context.Context, configJSON string) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	return c.post(ctx, "/restart", startTimeout, startRequest{Config: configJSON}, nil)
}

// ProbeStats exercises the stats channel end to end.
func (c *Client) ProbeStats(ctx context.Context) error {
	_, err := c.Stats().GetSystemStats(ctx)
	return err
}

// Stats returns the lazily-constructed stats channel client.
func (c *Client) Stats() *StatsClient {
	c.statsOnce.Do(func() {
		c.stats = newStatsClient(c.address, c.statsPort, c.tlsConf.RootCAs)
	})
	return c.stats
}

// Logs returns the node's log hub.
func (c *Client) Logs() *LogHub { return c.logs }

func (c *Client) get(ctx context.Context, path string, timeout time.Duration, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, timeout, nil, out)
}

func (c *Client) post(ctx context.Context, path string, timeout time.Duration, body, out interface{}) error {
	return c.do(ctx, http.MethodPost, path, timeout, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, timeout time.Duration, body, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload := map[string]interface{}{}
	if sid := c.session(); sid != "" {
		payload["session_id"] = sid
	}
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		if err := json.Unmarshal(raw, &payload); err != nil {
			return fmt.Errorf("failed to merge request: %w", err)
		}
	}

	var reqBody io.Reader
	if method != http.MethodGet {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	// GET requests carry no body, so the session travels as a query
	// parameter instead.
	url := c.baseURL() + path
	if method == http.MethodGet {
		if sid := c.session(); sid != "" {
			sep := "?"
			if strings.Contains(path, "?") {
				sep = "&"
			}
			url += sep + "session_id=" + neturl.QueryEscape(sid)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return &APIError{StatusCode: 0, Detail: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &APIError{StatusCode: resp.StatusCode, Detail: err.Error()}
	}
	if resp.StatusCode >= 300 {
		detail := string(raw)
		var structured struct {
			Detail string `json:"detail"`
		}
		if json.Unmarshal(raw, &structured) == nil && structured.Detail != "" {
			detail = structured.Detail
		}
		return &APIError{StatusCode: resp.StatusCode, Detail: detail}
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("failed to decode node response: %w", err)
		}
	}
	return nil
}
