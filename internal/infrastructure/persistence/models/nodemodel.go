package models

import (
	"time"

	"gorm.io/gorm"
)

// NodeModel is the persistence model for worker nodes.
type NodeModel struct {
	ID               uint    `gorm:"primarykey"`
	Name             string  `gorm:"uniqueIndex;not null;size:100"`
	Address          string  `gorm:"not null;size:255"`
	RPCPort          int     `gorm:"not null"`
	StatsPort        int     `gorm:"not null"`
	UsageCoefficient float64 `gorm:"not null;default:1"`
	Status           string  `gorm:"not null;default:connecting;size:16;index:idx_nodes_status"`
	Message          string  `gorm:"size:1024"`
	EngineVersion    string  `gorm:"size:32"`
	ClientCertPEM    string  `gorm:"type:text"`
	ClientKeyPEM     string  `gorm:"type:text"`
	LastStatusChange time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
	DeletedAt        gorm.DeletedAt `gorm:"index"`

	ServiceConfigs []ServiceConfigModel `gorm:"foreignKey:NodeID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for GORM
func (NodeModel) TableName() string {
	return "nodes"
}

// BeforeCreate hook for GORM
func (n *NodeModel) BeforeCreate(tx *gorm.DB) error {
	if n.Status == "" {
		n.Status = "connecting"
	}
	if n.UsageCoefficient == 0 {
		n.UsageCoefficient = 1
	}
	return nil
}
