package nodeclient

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"io"
	"log/slog"
	"math/big"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilnet-io/veilnet/internal/shared/logger"
)

func testLogger() logger.Interface {
	return logger.NewLoggerWithSlog(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// selfSignedPEM builds a throwaway client keypair for the mTLS handshake.
func selfSignedPEM(t *testing.T) (certPEM, keyPEM string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "panel-client-test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	certPEM = string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}))
	keyPEM = string(pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}))
	return certPEM, keyPEM
}

// sessionRecorder captures how the node API saw the session travel.
type sessionRecorder struct {
	mu        sync.Mutex
	fromQuery string
	fromBody  string
}

func (rec *sessionRecorder) setQuery(s string) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.fromQuery = s
}

func (rec *sessionRecorder) setBody(s string) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.fromBody = s
}

func (rec *sessionRecorder) snapshot() (query, body string) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.fromQuery, rec.fromBody
}

func newNodeAPIServer(t *testing.T, rec *sessionRecorder) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/connect", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"session_id":     "s-123",
			"started":        true,
			"engine_version": "1.8.23",
		})
	})
	mux.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&payload)
		if sid, ok := payload["session_id"].(string); ok {
			rec.setBody(sid)
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		rec.setQuery(r.URL.Query().Get("session_id"))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"started":        true,
			"engine_version": "1.8.23",
		})
	})

	ts := httptest.NewTLSServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func newTestClient(t *testing.T, ts *httptest.Server) *Client {
	t.Helper()
	caPEM := string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: ts.Certificate().Raw}))
	certPEM, keyPEM := selfSignedPEM(t)

	u, err := url.Parse(ts.URL)
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	c, err := New(1, host, port, port, Credentials{
		CAPEM:         caPEM,
		ClientCertPEM: certPEM,
		ClientKeyPEM:  keyPEM,
	}, testLogger())
	require.NoError(t, err)
	return c
}

func TestClient_SessionHandling(t *testing.T) {
	ctx := context.Background()
	rec := &sessionRecorder{}
	ts := newNodeAPIServer(t, rec)
	c := newTestClient(t, ts)

	t.Run("connect claims a session", func(t *testing.T) {
		info, err := c.Connect(ctx)
		require.NoError(t, err)

		assert.True(t, info.Started)
		assert.Equal(t, "1.8.23", info.EngineVersion)
		assert.True(t, c.Connected())
	})

	t.Run("post requests carry the session in the body", func(t *testing.T) {
		require.NoError(t, c.Ping(ctx))

		_, body := rec.snapshot()
		assert.Equal(t, "s-123", body)
	})

	t.Run("get requests carry the session as a query parameter", func(t *testing.T) {
		info, err := c.Info(ctx)
		require.NoError(t, err)

		assert.True(t, info.Started)
		query, _ := rec.snapshot()
		assert.Equal(t, "s-123", query)
	})
}

func TestClient_ErrorDetail(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/connect", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]string{"detail": "session already claimed"})
	})
	ts := httptest.NewTLSServer(mux)
	t.Cleanup(ts.Close)

	c := newTestClient(t, ts)
	_, err := c.Connect(context.Background())
	require.Error(t, err)

	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Equal(t, "session already claimed", apiErr.Detail)
}
