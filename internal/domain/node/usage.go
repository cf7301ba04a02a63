package node

import "time"

// UserUsage is one hourly accounting bucket of a user's traffic attributed
// to a node. Unique on (bucket, user, node).
type UserUsage struct {
	ID          uint
	UserID      uint
	NodeID      uint
	BucketAt    time.Time
	UsedTraffic int64
}

// Usage is one hourly accounting bucket of a node's total traffic,
// aggregated from UserUsage rows. By convention the aggregate total is
// attributed to downlink and uplink stays zero.
type Usage struct {
	ID       uint
	NodeID   uint
	BucketAt time.Time
	Uplink   int64
	Downlink int64
}
