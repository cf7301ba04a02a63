// Package usage implements the traffic accounting pipeline: collection
// from worker nodes, hourly aggregation, quota review and the periodic
// maintenance sweeps.
package usage

import (
	"context"
	"strconv"
	"strings"

	"github.com/veilnet-io/veilnet/internal/domain/node"
	"github.com/veilnet-io/veilnet/internal/domain/user"
	"github.com/veilnet-io/veilnet/internal/infrastructure/cache"
	"github.com/veilnet-io/veilnet/internal/infrastructure/nodeclient"
	"github.com/veilnet-io/veilnet/internal/shared/biztime"
	"github.com/veilnet-io/veilnet/internal/shared/logger"
)

// TrafficSource reads and resets per-identity traffic counters from one
// node. The client registry is the production implementation.
type TrafficSource interface {
	UsersTraffic(ctx context.Context, nodeID uint) ([]nodeclient.UserTraffic, error)
}

// TxRunner runs a function inside one database transaction.
type TxRunner interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Collector pulls per-user traffic counters from every connected node and
// persists the deltas in one transaction per tick.
type Collector struct {
	nodes    node.Repository
	users    user.Repository
	usage    node.UsageRepository
	source   TrafficSource
	presence *cache.PresenceCache
	tm       TxRunner
	logger   logger.Interface
}

// NewCollector creates the usage collector.
func NewCollector(
	nodes node.Repository,
	users user.Repository,
	usage node.UsageRepository,
	source TrafficSource,
	presence *cache.PresenceCache,
	tm TxRunner,
	log logger.Interface,
) *Collector {
	return &Collector{
		nodes:    nodes,
		users:    users,
		usage:    usage,
		source:   source,
		presence: presence,
		tm:       tm,
		logger:   log,
	}
}

// Tick collects one round of counters. Counters reset on read, so every
// report is a delta; a node that fails to report simply contributes
// nothing this tick and its counters survive until the next one.
func (c *Collector) Tick(ctx context.Context) error {
	nodes, err := c.nodes.List(ctx)
	if err != nil {
		return err
	}

	coefficients := make(map[uint]float64, len(nodes))
	for _, n := range nodes {
		coefficients[n.ID()] = n.UsageCoefficient()
	}

	totals := c.collect(ctx, nodes)
	if len(totals) == 0 {
		return nil
	}

	idsByName, err := c.nameTable(ctx)
	if err != nil {
		return err
	}

	// user_id → raw reported bytes this tick.
	perUser := make(map[uint]int64)
	for name, bytes := range totals {
		uid, ok := idsByName[name]
		if !ok {
			c.logger.Debugw("traffic report for unknown identity", "name", name)
			continue
		}
		perUser[uid] += bytes
	}
	if len(perUser) == 0 {
		return nil
	}

	now := biztime.NowUTC()
	bucket := biztime.HourBucket(now)

	err = c.tm.RunInTransaction(ctx, func(txCtx context.Context) error {
		for uid, raw := range perUser {
			u, err := c.users.GetByID(txCtx, uid)
			if err != nil {
				c.logger.Warnw("reported user vanished mid-tick", "user_id", uid, "error", err)
				continue
			}

			// Attribution is to the user's active node; its coefficient
			// scales the raw counter.
			k := 1.0
			activeNode := u.ActiveNodeID()
			if activeNode != nil {
				if nk, ok := coefficients[*activeNode]; ok {
					k = nk
				}
			}
			delta := int64(float64(raw) * k)
			if delta <= 0 {
				continue
			}

			u.AddUsedTraffic(delta, now)
			if err := c.users.Update(txCtx, u); err != nil {
				return err
			}
			if activeNode != nil {
				if err := c.usage.RecordUserUsage(txCtx, uid, *activeNode, bucket, delta); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for uid := range perUser {
		c.presence.MarkOnline(ctx, uid, now)
	}
	c.logger.Debugw("usage tick committed", "users", len(perUser))
	return nil
}

// collect gathers raw counters per engine identity across connected nodes.
func (c *Collector) collect(ctx context.Context, nodes []*node.Node) map[string]int64 {
	totals := make(map[string]int64)
	for _, n := range nodes {
		if n.Status() != node.StatusConnected {
			continue
		}
		reports, err := c.source.UsersTraffic(ctx, n.ID())
		if err != nil {
			c.logger.Debugw("traffic collection failed", "node_id", n.ID(), "error", err)
			continue
		}
		for _, r := range reports {
			totals[r.Name] += r.Uplink + r.Downlink
		}
	}
	return totals
}

// nameTable maps both identity forms to user IDs: the composite
// "{id}.{account_number}" and the legacy bare account number.
func (c *Collector) nameTable(ctx context.Context) (map[string]uint, error) {
	pairs, err := c.users.ListIDAccountPairs(ctx)
	if err != nil {
		return nil, err
	}
	table := make(map[string]uint, len(pairs)*2)
	for _, p := range pairs {
		table[strconv.FormatUint(uint64(p.ID), 10)+"."+p.AccountNumber] = p.ID
		table[p.AccountNumber] = p.ID
	}
	return table, nil
}

// ParseEngineEmail splits an engine identity into its optional user-id
// prefix and account number.
func ParseEngineEmail(name string) (userID uint64, accountNumber string, hasID bool) {
	idx := strings.IndexByte(name, '.')
	if idx <= 0 {
		return 0, name, false
	}
	id, err := strconv.ParseUint(name[:idx], 10, 64)
	if err != nil {
		return 0, name, false
	}
	return id, name[idx+1:], true
}
