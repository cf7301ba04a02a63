package usage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilnet-io/veilnet/internal/shared/biztime"
)

func TestAggregator_Tick(t *testing.T) {
	t.Run("rolls up the previous and current hour buckets", func(t *testing.T) {
		usageRepo := &fakeUsageRepo{}
		a := NewAggregator(usageRepo, testLogger())

		before := biztime.CurrentHourBucket()
		require.NoError(t, a.Tick(context.Background()))
		after := biztime.CurrentHourBucket()

		require.Len(t, usageRepo.aggregated, 2)
		// The previous bucket comes first so late rows from the old hour
		// are folded in before the live one.
		assert.Contains(t, []time.Time{before, after}, usageRepo.aggregated[1])
		assert.Equal(t, usageRepo.aggregated[1].Add(-time.Hour), usageRepo.aggregated[0])
	})
}
