package sysmetrics

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const procHeader = `Inter-|   Receive                                                |  Transmit
 face |bytes    packets errs drop fifo frame compressed multicast|bytes    packets errs drop fifo colls carrier compressed
`

func writeCounters(t *testing.T, path string, eth0Rx, eth0Tx, loRx, loTx uint64) {
	body := procHeader
	body += formatLine("lo", loRx, loTx)
	body += formatLine("eth0", eth0Rx, eth0Tx)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func formatLine(iface string, rx, tx uint64) string {
	return "  " + iface + ": " +
		formatFields(rx) + " " + formatFields(tx) + "\n"
}

func formatFields(bytes uint64) string {
	// bytes packets errs drop fifo frame compressed multicast
	return strconv.FormatUint(bytes, 10) + " 10 0 0 0 0 0 0"
}

func TestSampler_Tick(t *testing.T) {
	path := filepath.Join(t.TempDir(), "net_dev")

	t.Run("first tick records counters without rates", func(t *testing.T) {
		writeCounters(t, path, 1000, 500, 99999, 99999)
		s := NewSamplerWithPath(path)

		require.NoError(t, s.Tick())
		sample := s.Latest()
		assert.Equal(t, uint64(1000), sample.IncomingBytes)
		assert.Equal(t, uint64(500), sample.OutgoingBytes)
		assert.Zero(t, sample.IncomingRate)
		assert.Zero(t, sample.OutgoingRate)
		assert.False(t, sample.TakenAt.IsZero())
	})

	t.Run("second tick derives rates from the delta", func(t *testing.T) {
		writeCounters(t, path, 1000, 500, 0, 0)
		s := NewSamplerWithPath(path)
		require.NoError(t, s.Tick())

		time.Sleep(20 * time.Millisecond)
		writeCounters(t, path, 11000, 2500, 0, 0)
		require.NoError(t, s.Tick())

		sample := s.Latest()
		assert.Equal(t, uint64(11000), sample.IncomingBytes)
		assert.Equal(t, uint64(2500), sample.OutgoingBytes)
		assert.Greater(t, sample.IncomingRate, uint64(0))
		assert.Greater(t, sample.OutgoingRate, uint64(0))
	})

	t.Run("counter reset yields zero rates instead of underflow", func(t *testing.T) {
		writeCounters(t, path, 5000, 5000, 0, 0)
		s := NewSamplerWithPath(path)
		require.NoError(t, s.Tick())

		writeCounters(t, path, 100, 100, 0, 0)
		require.NoError(t, s.Tick())

		sample := s.Latest()
		assert.Zero(t, sample.IncomingRate)
		assert.Zero(t, sample.OutgoingRate)
	})

	t.Run("loopback is excluded from totals", func(t *testing.T) {
		writeCounters(t, path, 1234, 567, 88888, 99999)
		s := NewSamplerWithPath(path)

		require.NoError(t, s.Tick())
		sample := s.Latest()
		assert.Equal(t, uint64(1234), sample.IncomingBytes)
		assert.Equal(t, uint64(567), sample.OutgoingBytes)
	})

	t.Run("missing file fails", func(t *testing.T) {
		s := NewSamplerWithPath(filepath.Join(t.TempDir(), "absent"))
		assert.Error(t, s.Tick())
	})
}
