package node

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNode(t *testing.T) {
	t.Run("should create node in connecting state", func(t *testing.T) {
		n, err := NewNode("edge-1", "10.0.0.5", 62050, 62051, 0)

		require.NoError(t, err)
		assert.Equal(t, "edge-1", n.Name())
		assert.Equal(t, "10.0.0.5", n.Address())
		assert.Equal(t, 62050, n.RPCPort())
		assert.Equal(t, 62051, n.StatsPort())
		assert.Equal(t, StatusConnecting, n.Status())
		assert.Equal(t, 1.0, n.UsageCoefficient())
	})

	t.Run("should reject blank name", func(t *testing.T) {
		n, err := NewNode("  ", "10.0.0.5", 62050, 62051, 1)

		assert.Error(t, err)
		assert.Nil(t, n)
	})

	t.Run("should reject out-of-range ports", func(t *testing.T) {
		_, err := NewNode("edge-1", "10.0.0.5", 0, 62051, 1)
		assert.Error(t, err)

		_, err = NewNode("edge-1", "10.0.0.5", 62050, 70000, 1)
		assert.Error(t, err)
	})

	t.Run("should reject negative usage coefficient", func(t *testing.T) {
		_, err := NewNode("edge-1", "10.0.0.5", 62050, 62051, -0.5)
		assert.Error(t, err)
	})
}

func TestNode_StatusTransitions(t *testing.T) {
	newNode := func(t *testing.T) *Node {
		n, err := NewNode("edge-1", "10.0.0.5", 62050, 62051, 1)
		require.NoError(t, err)
		return n
	}

	t.Run("MarkConnected records engine version and clears message", func(t *testing.T) {
		n := newNode(t)
		n.MarkError("dial refused")
		require.Equal(t, StatusError, n.Status())
		require.Equal(t, "dial refused", n.Message())

		n.MarkConnected("1.8.24")
		assert.Equal(t, StatusConnected, n.Status())
		assert.Equal(t, "1.8.24", n.EngineVersion())
		assert.Empty(t, n.Message())
	})

	t.Run("Enable only works on disabled nodes", func(t *testing.T) {
		n := newNode(t)
		assert.Error(t, n.Enable())

		n.Disable()
		require.Equal(t, StatusDisabled, n.Status())
		require.NoError(t, n.Enable())
		assert.Equal(t, StatusConnecting, n.Status())
	})

	t.Run("status changes advance the change timestamp", func(t *testing.T) {
		n := newNode(t)
		before := n.LastStatusChange()
		time.Sleep(time.Millisecond)

		n.MarkError("boom")
		assert.True(t, n.LastStatusChange().After(before))
	})
}

func TestNode_UpdateAddress(t *testing.T) {
	n, err := NewNode("edge-1", "10.0.0.5", 62050, 62051, 1)
	require.NoError(t, err)

	assert.Error(t, n.UpdateAddress("", 62050, 62051))
	assert.Error(t, n.UpdateAddress("10.0.0.6", -1, 62051))

	require.NoError(t, n.UpdateAddress("10.0.0.6", 7000, 7001))
	assert.Equal(t, "10.0.0.6", n.Address())
	assert.Equal(t, 7000, n.RPCPort())
	assert.Equal(t, 7001, n.StatsPort())
}
