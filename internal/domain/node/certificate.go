package node

import (
	"context"
	"time"
)

// CertificateKind distinguishes the fleet CA from per-node leaf material.
type CertificateKind string

const (
	CertificateKindCA   CertificateKind = "ca"
	CertificateKindNode CertificateKind = "node"
)

// Certificate is stored PKI material. The CA row holds the self-signed
// authority; a node row holds the worker's server cert plus the
// panel-client pair issued for that node.
type Certificate struct {
	ID            uint
	Kind          CertificateKind
	NodeID        *uint
	CertPEM       string
	KeyPEM        string
	ClientCertPEM string
	ClientKeyPEM  string
	Serial        string
	ValidUntil    time.Time
	CreatedAt     time.Time
}

// CertificateRepository is the persistence contract for PKI material.
type CertificateRepository interface {
	GetCA(ctx context.Context) (*Certificate, error)
	SaveCA(ctx context.Context, c *Certificate) error
	GetByNode(ctx context.Context, nodeID uint) (*Certificate, error)
	SaveNode(ctx context.Context, c *Certificate) error
	DeleteByNode(ctx context.Context, nodeID uint) error
}
