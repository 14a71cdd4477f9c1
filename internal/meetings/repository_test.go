package meetings

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetentionExpiry(t *testing.T) {
	completed := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	got := retentionExpiry(completed, 30*24*time.Hour)
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC), *got)

	assert.Nil(t, retentionExpiry(completed, 0), "zero retention keeps records forever")
	assert.Nil(t, retentionExpiry(completed, -time.Hour))
}
