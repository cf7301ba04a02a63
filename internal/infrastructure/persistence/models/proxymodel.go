package models

import (
	"time"

	"gorm.io/datatypes"
)

// ProxyModel is the persistence model for per-protocol user credentials.
// Exactly one row exists per (user, protocol); settings is the
// protocol-tagged credential payload.
type ProxyModel struct {
	ID        uint           `gorm:"primarykey"`
	UserID    uint           `gorm:"not null;uniqueIndex:idx_proxies_user_protocol"`
	Protocol  string         `gorm:"not null;size:16;uniqueIndex:idx_proxies_user_protocol"`
	Settings  datatypes.JSON `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName specifies the table name for GORM
func (ProxyModel) TableName() string {
	return "proxies"
}
