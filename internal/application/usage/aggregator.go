package usage

import (
	"context"
	"time"

	"github.com/veilnet-io/veilnet/internal/domain/node"
	"github.com/veilnet-io/veilnet/internal/shared/biztime"
	"github.com/veilnet-io/veilnet/internal/shared/logger"
)

// Aggregator folds per-user buckets into per-node buckets. It runs apart
// from collection so a failed aggregation never double-counts user rows.
type Aggregator struct {
	usage  node.UsageRepository
	logger logger.Interface
}

// NewAggregator creates the bucket aggregator.
func NewAggregator(usage node.UsageRepository, log logger.Interface) *Aggregator {
	return &Aggregator{usage: usage, logger: log}
}

// Tick aggregates the previous and current hour buckets. The previous
// bucket is recomputed because collector rows from the tail of an hour
// land after that hour's last aggregation pass. Re-running is safe: the
// upsert overwrites with the recomputed sum.
func (a *Aggregator) Tick(ctx context.Context) error {
	current := biztime.CurrentHourBucket()
	for _, bucket := range []time.Time{current.Add(-time.Hour), current} {
		if err := a.usage.AggregateBucket(ctx, bucket); err != nil {
			return err
		}
		a.logger.Debugw("node usage aggregated", "bucket", bucket)
	}
	return nil
}
