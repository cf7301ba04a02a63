// Package pki manages the fleet certificate authority and per-node leaf
// certificates used for the mTLS channel between panel and workers.
package pki

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/veilnet-io/veilnet/internal/domain/node"
	apperrors "github.com/veilnet-io/veilnet/internal/shared/errors"
	"github.com/veilnet-io/veilnet/internal/shared/logger"
)

const (
	caKeyBits   = 4096
	leafKeyBits = 2048
	caLifetime  = 10 * 365 * 24 * time.Hour
	leafLife    = 365 * 24 * time.Hour
	// The CA is regenerated when less than this remains before expiry.
	caRenewWindow = 30 * 24 * time.Hour
)

// Manager issues and rotates PKI material, persisting it through the
// certificate repository.
type Manager struct {
	certs  node.CertificateRepository
	logger logger.Interface

	// Guards CA bootstrap so concurrent callers do not race a regeneration.
	mu sync.Mutex
}

// NewManager creates a PKI manager.
func NewManager(certs node.CertificateRepository, log logger.Interface) *Manager {
	return &Manager{certs: certs, logger: log}
}

// EnsureCA returns the current CA, generating a fresh one when missing or
// entering the renewal window.
func (m *Manager) EnsureCA(ctx context.Context) (*node.Certificate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, err := m.certs.GetCA(ctx)
	if err == nil && time.Until(existing.ValidUntil) > caRenewWindow {
		return existing, nil
	}
	if err != nil && !apperrors.IsNotFoundError(err) {
		return nil, err
	}
	if existing != nil {
		m.logger.Warnw("certificate authority entering renewal window, regenerating",
			"valid_until", existing.ValidUntil)
	}

	ca, err := m.generateCA()
	if err != nil {
		return nil, err
	}
	if err := m.certs.SaveCA(ctx, ca); err != nil {
		return nil, err
	}
	m.logger.Infow("certificate authority generated", "serial", ca.Serial, "valid_until", ca.ValidUntil)
	return ca, nil
}

func (m *Manager) generateCA() (*node.Certificate, error) {
	key, err := rsa.GenerateKey(rand.Reader, caKeyBits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CA key: %w", err)
	}

	serial, err := randomSerial()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	tmpl := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName:   "VeilNet Fleet CA",
			Organization: []string{"VeilNet"},
		},
		NotBefore:             now.Add(-5 * time.Minute),
		NotAfter:              now.Add(caLifetime),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
		MaxPathLen:            1,
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("failed to create CA certificate: %w", err)
	}

	return &node.Certificate{
		Kind:       node.CertificateKindCA,
		CertPEM:    encodeCertPEM(der),
		KeyPEM:     encodeKeyPEM(key),
		Serial:     serial.String(),
		ValidUntil: tmpl.NotAfter,
		CreatedAt:  now,
	}, nil
}

// IssueNodeCerts issues the node's server certificate and the mirrored
// panel-client pair, signed by the current CA. Any previous material for
// the node is replaced.
func (m *Manager) IssueNodeCerts(ctx context.Context, n *node.Node) (*node.Certificate, error) {
	ca, err := m.EnsureCA(ctx)
	if err != nil {
		return nil, err
	}
	caCert, caKey, err := parseCA(ca)
	if err != nil {
		return nil, err
	}

	serverPEM, serverKeyPEM, serial, validUntil, err := m.issueLeaf(caCert, caKey, leafTemplate{
		commonName: n.Name(),
		sans:       serverSANs(n),
		extUsage:   []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to issue server certificate: %w", err)
	}

	clientPEM, clientKeyPEM, _, _, err := m.issueLeaf(caCert, caKey, leafTemplate{
		commonName: fmt.Sprintf("panel-client-%s", n.Name()),
		extUsage:   []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to issue client certificate: %w", err)
	}

	nodeID := n.ID()
	cert := &node.Certificate{
		Kind:          node.CertificateKindNode,
		NodeID:        &nodeID,
		CertPEM:       serverPEM,
		KeyPEM:        serverKeyPEM,
		ClientCertPEM: clientPEM,
		ClientKeyPEM:  clientKeyPEM,
		Serial:        serial,
		ValidUntil:    validUntil,
		CreatedAt:     time.Now().UTC(),
	}
	if err := m.certs.SaveNode(ctx, cert); err != nil {
		return nil, err
	}

	n.SetClientCredentials(clientPEM, clientKeyPEM)
	m.logger.Infow("node certificates issued", "node_id", nodeID, "serial", serial, "valid_until", validUntil)
	return cert, nil
}

// Rotate reissues the node's material under the current CA.
func (m *Manager) Rotate(ctx context.Context, n *node.Node) (*node.Certificate, error) {
	return m.IssueNodeCerts(ctx, n)
}

// GetNodeCerts returns previously issued material for the node.
func (m *Manager) GetNodeCerts(ctx context.Context, nodeID uint) (*node.Certificate, error) {
	return m.certs.GetByNode(ctx, nodeID)
}

// CABundlePEM returns the CA certificate for distribution to workers.
func (m *Manager) CABundlePEM(ctx context.Context) (string, error) {
	ca, err := m.EnsureCA(ctx)
	if err != nil {
		return "", err
	}
	return ca.CertPEM, nil
}

// Export writes the node's material to dir for operator hand-off. Private
// keys are written with mode 0600.
func (m *Manager) Export(ctx context.Context, n *node.Node, dir string) error {
	ca, err := m.EnsureCA(ctx)
	if err != nil {
		return err
	}
	cert, err := m.certs.GetByNode(ctx, n.ID())
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create export dir: %w", err)
	}

	files := []struct {
		name string
		data string
		mode os.FileMode
	}{
		{"ca.crt", ca.CertPEM, 0o644},
		{"server.crt", cert.CertPEM, 0o644},
		{"server.key", cert.KeyPEM, 0o600},
		{"panel-client.crt", cert.ClientCertPEM, 0o644},
		{"panel-client.key", cert.ClientKeyPEM, 0o600},
	}
	for _, f := range files {
		path := filepath.Join(dir, f.name)
		if err := os.WriteFile(path, []byte(f.data), f.mode); err != nil {
			return fmt.Errorf("failed to write %s: %w", f.name, err)
		}
	}
	m.logger.Infow("node certificates exported", "node_id", n.ID(), "dir", dir)
	return nil
}

type leafTemplate struct {
	commonName string
	sans       []string
	extUsage   []x509.ExtKeyUsage
}

func (m *Manager) issueLeaf(caCert *x509.Certificate, caKey *rsa.PrivateKey, t leafTemplate) (certPEM, keyPEM, serial string, validUntil time.Time, err error) {
	key, err := rsa.GenerateKey(rand.Reader, leafKeyBits)
	if err != nil {
		return "", "", "", time.Time{}, fmt.Errorf("failed to generate leaf key: %w", err)
	}

	sn, err := randomSerial()
	if err != nil {
		return "", "", "", time.Time{}, err
	}

	now := time.Now().UTC()
	tmpl := &x509.Certificate{
		SerialNumber: sn,
		Subject:      pkix.Name{CommonName: t.commonName, Organization: []string{"VeilNet"}},
		NotBefore:    now.Add(-5 * time.Minute),
		NotAfter:     now.Add(leafLife),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  t.extUsage,
	}
	for _, san := range t.sans {
		if ip := net.ParseIP(san); ip != nil {
			tmpl.IPAddresses = append(tmpl.IPAddresses, ip)
		} else {
			tmpl.DNSNames = append(tmpl.DNSNames, san)
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, caCert, &key.PublicKey, caKey)
	if err != nil {
		return "", "", "", time.Time{}, fmt.Errorf("failed to sign leaf certificate: %w", err)
	}
	return encodeCertPEM(der), encodeKeyPEM(key), sn.String(), tmpl.NotAfter, nil
}

// serverSANs lists the identities the panel may dial the worker on.
func serverSANs(n *node.Node) []string {
	sans := []string{n.Address(), n.Name(), "127.0.0.1", "localhost"}
	seen := make(map[string]struct{}, len(sans))
	out := sans[:0]
	for _, s := range sans {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func parseCA(ca *node.Certificate) (*x509.Certificate, *rsa.PrivateKey, error) {
	certBlock, _ := pem.Decode([]byte(ca.CertPEM))
	if certBlock == nil {
		return nil, nil, fmt.Errorf("invalid CA certificate PEM")
	}
	cert, err := x509.ParseCertificate(certBlock.Bytes)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse CA certificate: %w", err)
	}

	keyBlock, _ := pem.Decode([]byte(ca.KeyPEM))
	if keyBlock == nil {
		return nil, nil, fmt.Errorf("invalid CA key PEM")
	}
	key, err := x509.ParsePKCS1PrivateKey(keyBlock.Bytes)
	if err != nil {
		parsed, err2 := x509.ParsePKCS8PrivateKey(keyBlock.Bytes)
		if err2 != nil {
			return nil, nil, fmt.Errorf("failed to parse CA key: %w", err)
		}
		rsaKey, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, nil, fmt.Errorf("CA key is not RSA")
		}
		key = rsaKey
	}
	return cert, key, nil
}

func randomSerial() (*big.Int, error) {
	limit := new(big.Int).Lsh(big.NewInt(1), 128)
	sn, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial: %w", err)
	}
	return sn, nil
}

func encodeCertPEM(der []byte) string {
	return string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}))
}

func encodeKeyPEM(key *rsa.PrivateKey) string {
	return string(pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}))
}
