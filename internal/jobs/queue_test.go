package jobs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRetryDelay(t *testing.T) {
	tests := []struct {
		name    string
		attempt int
		base    int
		max     int
		want    int
	}{
		{"first retry", 1, 60, 3600, 60},
		{"second retry", 2, 60, 3600, 240},
		{"third retry", 3, 60, 3600, 540},
		{"capped at max", 10, 60, 3600, 3600},
		{"small base", 2, 5, 300, 20},
		{"cap reached exactly", 6, 100, 3600, 3600},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RetryDelay(tt.attempt, tt.base, tt.max))
		})
	}
}

func TestRetryDelayMonotonicUntilCap(t *testing.T) {
	prev := 0
	for attempt := 1; attempt <= 20; attempt++ {
		d := RetryDelay(attempt, 5, 300)
		assert.GreaterOrEqual(t, d, prev)
		assert.LessOrEqual(t, d, 300)
		prev = d
	}
}

func TestDefaultQueueConfig(t *testing.T) {
	cfg := DefaultQueueConfig("pg.shortcut_jobs")
	assert.Equal(t, "pg.shortcut_jobs", cfg.TableName)
	assert.Zero(t, cfg.MaxAttempts, "unlimited attempts by default")
	assert.Equal(t, 60, cfg.BaseRetryDelaySec)
	assert.Equal(t, 3600, cfg.MaxRetryDelaySec)
	assert.Equal(t, 10, cfg.BatchSize)
}

func TestTruncateError(t *testing.T) {
	long := make([]byte, 600)
	for i := range long {
		long[i] = 'x'
	}
	assert.Len(t, truncateError(string(long)), 500)
	assert.Equal(t, "short", truncateError("short"))
}
