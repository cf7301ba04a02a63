package usage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseEngineEmail(t *testing.T) {
	t.Run("id-prefixed identity", func(t *testing.T) {
		id, account, hasID := ParseEngineEmail("42.0e3f8e57-5e0f-4e0b-9f5a-1b2c3d4e5f60")

		assert.True(t, hasID)
		assert.Equal(t, uint64(42), id)
		assert.Equal(t, "0e3f8e57-5e0f-4e0b-9f5a-1b2c3d4e5f60", account)
	})

	t.Run("bare account number", func(t *testing.T) {
		// UUIDs contain no leading digits-then-dot segment, so the whole
		// string is the account.
		id, account, hasID := ParseEngineEmail("0e3f8e57-5e0f-4e0b-9f5a-1b2c3d4e5f60")

		assert.False(t, hasID)
		assert.Zero(t, id)
		assert.Equal(t, "0e3f8e57-5e0f-4e0b-9f5a-1b2c3d4e5f60", account)
	})

	t.Run("leading dot", func(t *testing.T) {
		_, account, hasID := ParseEngineEmail(".abc")

		assert.False(t, hasID)
		assert.Equal(t, ".abc", account)
	})

	t.Run("non-numeric prefix", func(t *testing.T) {
		_, account, hasID := ParseEngineEmail("panel.abc")

		assert.False(t, hasID)
		assert.Equal(t, "panel.abc", account)
	})

	t.Run("empty string", func(t *testing.T) {
		_, account, hasID := ParseEngineEmail("")

		assert.False(t, hasID)
		assert.Empty(t, account)
	})
}
