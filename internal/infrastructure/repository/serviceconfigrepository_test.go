package repository

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPendingEngineTag(t *testing.T) {
	t.Run("placeholders never collide", func(t *testing.T) {
		seen := map[string]bool{}
		for i := 0; i < 100; i++ {
			tag := pendingEngineTag()
			assert.False(t, seen[tag])
			seen[tag] = true
		}
	})

	t.Run("placeholders are distinguishable from real tags", func(t *testing.T) {
		assert.True(t, strings.HasPrefix(pendingEngineTag(), "veilnet_pending_"))
	})
}
