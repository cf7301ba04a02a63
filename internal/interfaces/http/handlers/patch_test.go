package handlers

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatchField(t *testing.T) {
	type payload struct {
		DataLimit patchField[int64] `json:"data_limit"`
	}

	t.Run("absent field stays absent", func(t *testing.T) {
		var p payload
		require.NoError(t, json.Unmarshal([]byte(`{}`), &p))

		assert.False(t, p.DataLimit.Present)
		assert.Nil(t, p.DataLimit.Value)
	})

	t.Run("explicit null is present without a value", func(t *testing.T) {
		var p payload
		require.NoError(t, json.Unmarshal([]byte(`{"data_limit": null}`), &p))

		assert.True(t, p.DataLimit.Present)
		assert.Nil(t, p.DataLimit.Value)
	})

	t.Run("set value is present with the value", func(t *testing.T) {
		var p payload
		require.NoError(t, json.Unmarshal([]byte(`{"data_limit": 1073741824}`), &p))

		assert.True(t, p.DataLimit.Present)
		require.NotNil(t, p.DataLimit.Value)
		assert.Equal(t, int64(1073741824), *p.DataLimit.Value)
	})

	t.Run("type mismatch fails decoding", func(t *testing.T) {
		var p payload
		assert.Error(t, json.Unmarshal([]byte(`{"data_limit": "lots"}`), &p))
	})
}
