package node

import (
	"context"
	"time"
)

// Repository is the persistence contract for worker nodes.
type Repository interface {
	Create(ctx context.Context, n *Node) error
	GetByID(ctx context.Context, id uint) (*Node, error)
	GetByName(ctx context.Context, name string) (*Node, error)
	List(ctx context.Context) ([]*Node, error)
	Update(ctx context.Context, n *Node) error
	Delete(ctx context.Context, id uint) error
}

// ServiceConfigRepository is the persistence contract for per-node inbound
// definitions.
type ServiceConfigRepository interface {
	Create(ctx context.Context, sc *ServiceConfig) error
	GetByID(ctx context.Context, id uint) (*ServiceConfig, error)
	ListByNode(ctx context.Context, nodeID uint) ([]*ServiceConfig, error)
	Update(ctx context.Context, sc *ServiceConfig) error
	Delete(ctx context.Context, id uint) error
}

// UsageRepository is the persistence contract for hourly traffic buckets.
type UsageRepository interface {
	// RecordUserUsage upserts delta bytes into the (bucket, user, node)
	// row. A zero or negative delta is a no-op.
	RecordUserUsage(ctx context.Context, userID, nodeID uint, bucketAt time.Time, delta int64) error
	// AggregateBucket sums user usage for the bucket per node and upserts
	// the node usage rows, attributing the total to downlink.
	AggregateBucket(ctx context.Context, bucketAt time.Time) error
	ListUserUsage(ctx context.Context, userID uint, from, to time.Time) ([]UserUsage, error)
	ListNodeUsage(ctx context.Context, nodeID uint, from, to time.Time) ([]Usage, error)
	DeleteUserUsage(ctx context.Context, userID uint) error
}
