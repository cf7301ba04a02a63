package usecases

import (
	"context"
	"time"

	"github.com/veilnet-io/veilnet/internal/domain/node"
	"github.com/veilnet-io/veilnet/internal/infrastructure/nodeclient"
)

// LiveSource reports the live self-description of connected nodes.
type LiveSource interface {
	Info(ctx context.Context, nodeID uint) (*nodeclient.Info, error)
}

type GetNodeUseCase struct {
	nodes node.Repository
	usage node.UsageRepository
	live  LiveSource
}

func NewGetNodeUseCase(nodes node.Repository, usage node.UsageRepository, live LiveSource) *GetNodeUseCase {
	return &GetNodeUseCase{nodes: nodes, usage: usage, live: live}
}

// Execute returns the node's API shape. A connected node is additionally
// asked for its live engine state; a failed query leaves the stored shape
// untouched rather than failing the read.
func (uc *GetNodeUseCase) Execute(ctx context.Context, nodeID uint) (*NodeResult, error) {
	n, err := uc.nodes.GetByID(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	result := NewNodeResult(n)
	if n.Status() == node.StatusConnected {
		if info, err := uc.live.Info(ctx, nodeID); err == nil {
			started := info.Started
			result.EngineStarted = &started
			if info.EngineVersion != "" {
				result.EngineVersion = info.EngineVersion
			}
		}
	}
	return result, nil
}

type NodeUsagePoint struct {
	BucketAt time.Time `json:"bucket_at"`
	Uplink   int64     `json:"uplink"`
	Downlink int64     `json:"downlink"`
}

// Usage returns the node's hourly buckets within the window.
func (uc *GetNodeUseCase) Usage(ctx context.Context, nodeID uint, from, to time.Time) ([]NodeUsagePoint, error) {
	if _, err := uc.nodes.GetByID(ctx, nodeID); err != nil {
		return nil, err
	}
	rows, err := uc.usage.ListNodeUsage(ctx, nodeID, from, to)
	if err != nil {
		return nil, err
	}
	points := make([]NodeUsagePoint, 0, len(rows))
	for _, r := range rows {
		points = append(points, NodeUsagePoint{BucketAt: r.BucketAt, Uplink: r.Uplink, Downlink: r.Downlink})
	}
	return points, nil
}

type ListNodesUseCase struct {
	nodes node.Repository
}

func NewListNodesUseCase(nodes node.Repository) *ListNodesUseCase {
	return &ListNodesUseCase{nodes: nodes}
}

// Execute returns all nodes.
func (uc *ListNodesUseCase) Execute(ctx context.Context) ([]*NodeResult, error) {
	nodes, err := uc.nodes.List(ctx)
	if err != nil {
		return nil, err
	}
	results := make([]*NodeResult, 0, len(nodes))
	for _, n := range nodes {
		results = append(results, NewNodeResult(n))
	}
	return results, nil
}
