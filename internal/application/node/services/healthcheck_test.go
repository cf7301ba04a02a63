package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilnet-io/veilnet/internal/domain/node"
	"github.com/veilnet-io/veilnet/internal/infrastructure/nodeclient"
)

type fakeConnector struct {
	mu        sync.Mutex
	connected []uint
}

func (f *fakeConnector) ConnectNode(ctx context.Context, nodeID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = append(f.connected, nodeID)
	return nil
}

func (f *fakeConnector) calls() []uint {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uint(nil), f.connected...)
}

type fakeProbe struct {
	pingErr  error
	statsErr error
}

func (f fakeProbe) Connected() bool                      { return true }
func (f fakeProbe) Ping(ctx context.Context) error       { return f.pingErr }
func (f fakeProbe) ProbeStats(ctx context.Context) error { return f.statsErr }

func connectedTestNode(t *testing.T) *node.Node {
	t.Helper()
	n := testNode(t)
	n.MarkConnected("1.8.23")
	return n
}

func TestHealthChecker_Check(t *testing.T) {
	ctx := context.Background()

	t.Run("ping failure marks the node errored and reconnects", func(t *testing.T) {
		n := connectedTestNode(t)
		connector := &fakeConnector{}
		h := NewHealthChecker(newFakeNodeRepo(n), nodeclient.NewRegistry("", testLogger()), connector, testLogger())

		h.check(ctx, n, fakeProbe{pingErr: errors.New("connection refused")})

		assert.Equal(t, node.StatusError, n.Status())
		assert.Equal(t, []uint{n.ID()}, connector.calls())
	})

	t.Run("stats failure marks the node errored and reconnects", func(t *testing.T) {
		n := connectedTestNode(t)
		connector := &fakeConnector{}
		h := NewHealthChecker(newFakeNodeRepo(n), nodeclient.NewRegistry("", testLogger()), connector, testLogger())

		h.check(ctx, n, fakeProbe{statsErr: errors.New("stats port unreachable")})

		assert.Equal(t, node.StatusError, n.Status())
		assert.Equal(t, "stats port unreachable", n.Message())
		assert.Equal(t, []uint{n.ID()}, connector.calls())
	})

	t.Run("healthy node is left alone", func(t *testing.T) {
		n := connectedTestNode(t)
		connector := &fakeConnector{}
		h := NewHealthChecker(newFakeNodeRepo(n), nodeclient.NewRegistry("", testLogger()), connector, testLogger())

		h.check(ctx, n, fakeProbe{})

		assert.Equal(t, node.StatusConnected, n.Status())
		assert.Empty(t, connector.calls())
	})
}

func TestHealthChecker_Tick(t *testing.T) {
	ctx := context.Background()

	t.Run("skips disabled nodes", func(t *testing.T) {
		n := testNode(t)
		n.Disable()
		connector := &fakeConnector{}
		h := NewHealthChecker(newFakeNodeRepo(n), nodeclient.NewRegistry("", testLogger()), connector, testLogger())

		require.NoError(t, h.Tick(ctx))

		assert.Empty(t, connector.calls())
	})

	t.Run("reconnects errored nodes", func(t *testing.T) {
		n := testNode(t)
		n.MarkError("engine crashed")
		connector := &fakeConnector{}
		h := NewHealthChecker(newFakeNodeRepo(n), nodeclient.NewRegistry("", testLogger()), connector, testLogger())

		require.NoError(t, h.Tick(ctx))

		assert.Equal(t, []uint{n.ID()}, connector.calls())
	})

	t.Run("reconnects a connected node that lost its client", func(t *testing.T) {
		n := connectedTestNode(t)
		connector := &fakeConnector{}
		h := NewHealthChecker(newFakeNodeRepo(n), nodeclient.NewRegistry("", testLogger()), connector, testLogger())

		require.NoError(t, h.Tick(ctx))

		assert.Equal(t, []uint{n.ID()}, connector.calls())
	})
}
