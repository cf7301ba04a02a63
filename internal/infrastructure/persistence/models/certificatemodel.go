package models

import "time"

// CertificateModel stores PKI material. Exactly one "ca" row exists; each
// node has exactly one "node" row carrying its server cert and the
// panel-client pair issued for it.
type CertificateModel struct {
	ID            uint   `gorm:"primarykey"`
	Kind          string `gorm:"not null;size:8;index:idx_certs_kind"`
	NodeID        *uint  `gorm:"uniqueIndex:idx_certs_node"`
	CertPEM       string `gorm:"type:text;not null"`
	KeyPEM        string `gorm:"type:text;not null"`
	ClientCertPEM string `gorm:"type:text"`
	ClientKeyPEM  string `gorm:"type:text"`
	Serial        string `gorm:"size:64"`
	ValidUntil    time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TableName specifies the table name for GORM
func (CertificateModel) TableName() string {
	return "certificates"
}
