package timex

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuration_UnmarshalJSON(t *testing.T) {
	t.Run("duration string", func(t *testing.T) {
		var d Duration
		require.NoError(t, json.Unmarshal([]byte(`"30s"`), &d))
		assert.Equal(t, 30*time.Second, d.Duration)
	})

	t.Run("integer nanoseconds", func(t *testing.T) {
		var d Duration
		require.NoError(t, json.Unmarshal([]byte(`60000000000`), &d))
		assert.Equal(t, time.Minute, d.Duration)
	})

	t.Run("invalid string", func(t *testing.T) {
		var d Duration
		assert.Error(t, json.Unmarshal([]byte(`"not-a-duration"`), &d))
	})

	t.Run("invalid type", func(t *testing.T) {
		var d Duration
		assert.Error(t, json.Unmarshal([]byte(`{"x":1}`), &d))
	})
}

func TestDuration_MarshalJSON(t *testing.T) {
	b, err := json.Marshal(Duration{90 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, `"1m30s"`, string(b))
}
