package models

import "time"

// NodeUserUsageModel is one hourly bucket of a user's traffic attributed to
// a node. Unique on (bucket, user, node).
type NodeUserUsageModel struct {
	ID          uint      `gorm:"primarykey"`
	BucketAt    time.Time `gorm:"not null;uniqueIndex:idx_nuu_bucket_user_node"`
	UserID      uint      `gorm:"not null;uniqueIndex:idx_nuu_bucket_user_node;index:idx_nuu_user"`
	NodeID      uint      `gorm:"not null;uniqueIndex:idx_nuu_bucket_user_node"`
	UsedTraffic int64     `gorm:"not null;default:0"`
}

// TableName specifies the table name for GORM
func (NodeUserUsageModel) TableName() string {
	return "node_user_usages"
}

// NodeUsageModel is one hourly bucket of a node's aggregate traffic.
// Unique on (bucket, node).
type NodeUsageModel struct {
	ID       uint      `gorm:"primarykey"`
	BucketAt time.Time `gorm:"not null;uniqueIndex:idx_nu_bucket_node"`
	NodeID   uint      `gorm:"not null;uniqueIndex:idx_nu_bucket_node"`
	Uplink   int64     `gorm:"not null;default:0"`
	Downlink int64     `gorm:"not null;default:0"`
}

// TableName specifies the table name for GORM
func (NodeUsageModel) TableName() string {
	return "node_usages"
}

// UsageResetModel is an audit row recording a usage reset and the counter
// value right before it.
type UsageResetModel struct {
	ID                 uint  `gorm:"primarykey"`
	UserID             uint  `gorm:"not null;index"`
	UsedTrafficAtReset int64 `gorm:"not null"`
	CreatedAt          time.Time
}

// TableName specifies the table name for GORM
func (UsageResetModel) TableName() string {
	return "usage_resets"
}
