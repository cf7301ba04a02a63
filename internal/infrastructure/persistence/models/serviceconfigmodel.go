package models

import (
	"time"

	"gorm.io/datatypes"
)

// ServiceConfigModel is the persistence model for node-local inbound
// definitions. The engine tag is unique per node.
type ServiceConfigModel struct {
	ID               uint   `gorm:"primarykey"`
	NodeID           uint   `gorm:"not null;uniqueIndex:idx_services_node_tag"`
	Name             string `gorm:"not null;size:100"`
	Enabled          bool   `gorm:"not null;default:true"`
	Protocol         string `gorm:"not null;size:16"`
	ListenAddress    string `gorm:"size:255"`
	ListenPort       int    `gorm:"not null"`
	Network          string `gorm:"not null;default:tcp;size:8"`
	Security         string `gorm:"not null;default:none;size:8"`
	WSPath           string `gorm:"size:255"`
	GRPCServiceName  string `gorm:"size:255"`
	SNI              string `gorm:"size:255"`
	Fingerprint      string `gorm:"size:64"`
	RealityPublicKey string `gorm:"size:128"`
	RealityShortID   string `gorm:"size:32"`
	AdvancedProtocol datatypes.JSON
	AdvancedStream   datatypes.JSON
	AdvancedTLS      datatypes.JSON
	AdvancedReality  datatypes.JSON
	AdvancedSniffing datatypes.JSON
	EngineTag        string `gorm:"not null;size:100;uniqueIndex:idx_services_node_tag"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// TableName specifies the table name for GORM
func (ServiceConfigModel) TableName() string {
	return "service_configs"
}
