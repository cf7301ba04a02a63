package usecases

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilnet-io/veilnet/internal/domain/node"
	"github.com/veilnet-io/veilnet/internal/infrastructure/nodeclient"
	apperrors "github.com/veilnet-io/veilnet/internal/shared/errors"
)

type singleNodeRepo struct {
	n *node.Node
}

func (r *singleNodeRepo) Create(ctx context.Context, n *node.Node) error { return nil }

func (r *singleNodeRepo) GetByID(ctx context.Context, id uint) (*node.Node, error) {
	if r.n != nil && r.n.ID() == id {
		return r.n, nil
	}
	return nil, apperrors.NewNotFoundError("node not found")
}

func (r *singleNodeRepo) GetByName(ctx context.Context, name string) (*node.Node, error) {
	return nil, apperrors.NewNotFoundError("node not found")
}

func (r *singleNodeRepo) List(ctx context.Context) ([]*node.Node, error) {
	return []*node.Node{r.n}, nil
}

func (r *singleNodeRepo) Update(ctx context.Context, n *node.Node) error { return nil }
func (r *singleNodeRepo) Delete(ctx context.Context, id uint) error      { return nil }

type noUsageRepo struct{}

func (noUsageRepo) RecordUserUsage(ctx context.Context, userID, nodeID uint, bucketAt time.Time, delta int64) error {
	return nil
}
func (noUsageRepo) AggregateBucket(ctx context.Context, bucketAt time.Time) error { return nil }
func (noUsageRepo) ListUserUsage(ctx context.Context, userID uint, from, to time.Time) ([]node.UserUsage, error) {
	return nil, nil
}
func (noUsageRepo) ListNodeUsage(ctx context.Context, nodeID uint, from, to time.Time) ([]node.Usage, error) {
	return nil, nil
}
func (noUsageRepo) DeleteUserUsage(ctx context.Context, userID uint) error { return nil }

type liveStub struct {
	info    *nodeclient.Info
	err     error
	queried int
}

func (s *liveStub) Info(ctx context.Context, nodeID uint) (*nodeclient.Info, error) {
	s.queried++
	return s.info, s.err
}

func newStoredNode(t *testing.T) *node.Node {
	t.Helper()
	n, err := node.NewNode("edge-1", "10.0.0.5", 62050, 62051, 1)
	require.NoError(t, err)
	require.NoError(t, n.SetID(1))
	return n
}

func TestGetNodeUseCase_Execute(t *testing.T) {
	ctx := context.Background()

	t.Run("decorates a connected node with live engine state", func(t *testing.T) {
		n := newStoredNode(t)
		n.MarkConnected("1.8.0")
		live := &liveStub{info: &nodeclient.Info{Started: true, EngineVersion: "1.8.23"}}
		uc := NewGetNodeUseCase(&singleNodeRepo{n: n}, noUsageRepo{}, live)

		result, err := uc.Execute(ctx, 1)
		require.NoError(t, err)

		require.NotNil(t, result.EngineStarted)
		assert.True(t, *result.EngineStarted)
		assert.Equal(t, "1.8.23", result.EngineVersion)
	})

	t.Run("serves the stored shape when the live query fails", func(t *testing.T) {
		n := newStoredNode(t)
		n.MarkConnected("1.8.0")
		live := &liveStub{err: errors.New("no live session")}
		uc := NewGetNodeUseCase(&singleNodeRepo{n: n}, noUsageRepo{}, live)

		result, err := uc.Execute(ctx, 1)
		require.NoError(t, err)

		assert.Nil(t, result.EngineStarted)
		assert.Equal(t, "1.8.0", result.EngineVersion)
	})

	t.Run("does not query a node without a connection", func(t *testing.T) {
		n := newStoredNode(t)
		live := &liveStub{}
		uc := NewGetNodeUseCase(&singleNodeRepo{n: n}, noUsageRepo{}, live)

		result, err := uc.Execute(ctx, 1)
		require.NoError(t, err)

		assert.Nil(t, result.EngineStarted)
		assert.Zero(t, live.queried)
	})
}
