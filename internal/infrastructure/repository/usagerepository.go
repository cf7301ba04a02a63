package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/veilnet-io/veilnet/internal/domain/node"
	"github.com/veilnet-io/veilnet/internal/infrastructure/persistence/models"
	"github.com/veilnet-io/veilnet/internal/shared/db"
	"github.com/veilnet-io/veilnet/internal/shared/logger"
)

// UsageRepositoryImpl implements the node.UsageRepository interface
type UsageRepositoryImpl struct {
	db     *gorm.DB
	logger logger.Interface
}

// NewUsageRepository creates a new usage repository instance
func NewUsageRepository(gdb *gorm.DB, log logger.Interface) node.UsageRepository {
	return &UsageRepositoryImpl{db: gdb, logger: log}
}

// RecordUserUsage upserts delta bytes into the (bucket, user, node) row.
// A zero or negative delta is a no-op.
func (r *UsageRepositoryImpl) RecordUserUsage(ctx context.Context, userID, nodeID uint, bucketAt time.Time, delta int64) error {
	if delta <= 0 {
		return nil
	}

	tx := db.GetTxFromContext(ctx, r.db)
	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "bucket_at"}, {Name: "user_id"}, {Name: "node_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"used_traffic": gorm.Expr("used_traffic + ?", delta),
		}),
	}).Create(&models.NodeUserUsageModel{
		BucketAt:    bucketAt,
		UserID:      userID,
		NodeID:      nodeID,
		UsedTraffic: delta,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to record user usage: %w", err)
	}
	return nil
}

// AggregateBucket sums user usage for the bucket per node and upserts the
// node usage rows, attributing the total to downlink.
func (r *UsageRepositoryImpl) AggregateBucket(ctx context.Context, bucketAt time.Time) error {
	type nodeTotal struct {
		NodeID uint
		Total  int64
	}

	var totals []nodeTotal
	tx := db.GetTxFromContext(ctx, r.db)
	err := tx.Model(&models.NodeUserUsageModel{}).
		Select("node_id", "SUM(used_traffic) AS total").
		Where("bucket_at = ?", bucketAt).
		Group("node_id").
		Find(&totals).Error
	if err != nil {
		return fmt.Errorf("failed to sum bucket usage: %w", err)
	}

	for _, t := range totals {
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "bucket_at"}, {Name: "node_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"downlink": t.Total,
			}),
		}).Create(&models.NodeUsageModel{
			BucketAt: bucketAt,
			NodeID:   t.NodeID,
			Downlink: t.Total,
		}).Error
		if err != nil {
			return fmt.Errorf("failed to upsert node usage: %w", err)
		}
	}
	return nil
}

// ListUserUsage returns a user's hourly buckets within [from, to].
func (r *UsageRepositoryImpl) ListUserUsage(ctx context.Context, userID uint, from, to time.Time) ([]node.UserUsage, error) {
	var modelList []models.NodeUserUsageModel
	tx := db.GetTxFromContext(ctx, r.db)
	err := tx.Where("user_id = ? AND bucket_at >= ? AND bucket_at <= ?", userID, from, to).
		Order("bucket_at ASC").
		Find(&modelList).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list user usage: %w", err)
	}

	usages := make([]node.UserUsage, 0, len(modelList))
	for _, m := range modelList {
		usages = append(usages, node.UserUsage{
			ID:          m.ID,
			UserID:      m.UserID,
			NodeID:      m.NodeID,
			BucketAt:    m.BucketAt,
			UsedTraffic: m.UsedTraffic,
		})
	}
	return usages, nil
}

// ListNodeUsage returns a node's hourly buckets within [from, to].
func (r *UsageRepositoryImpl) ListNodeUsage(ctx context.Context, nodeID uint, from, to time.Time) ([]node.Usage, error) {
	var modelList []models.NodeUsageModel
	tx := db.GetTxFromContext(ctx, r.db)
	err := tx.Where("node_id = ? AND bucket_at >= ? AND bucket_at <= ?", nodeID, from, to).
		Order("bucket_at ASC").
		Find(&modelList).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list node usage: %w", err)
	}

	usages := make([]node.Usage, 0, len(modelList))
	for _, m := range modelList {
		usages = append(usages, node.Usage{
			ID:       m.ID,
			NodeID:   m.NodeID,
			BucketAt: m.BucketAt,
			Uplink:   m.Uplink,
			Downlink: m.Downlink,
		})
	}
	return usages, nil
}

// DeleteUserUsage removes all of a user's per-node buckets, used when the
// user's usage history is reset.
func (r *UsageRepositoryImpl) DeleteUserUsage(ctx context.Context, userID uint) error {
	tx := db.GetTxFromContext(ctx, r.db)
	if err := tx.Where("user_id = ?", userID).Delete(&models.NodeUserUsageModel{}).Error; err != nil {
		return fmt.Errorf("failed to delete user usage: %w", err)
	}
	return nil
}
