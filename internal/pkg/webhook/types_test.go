package webhook

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryDelay(t *testing.T) {
	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{1, 60 * time.Second},
		{2, 300 * time.Second},
		{3, 900 * time.Second},
		{4, 3600 * time.Second},
		{5, 7200 * time.Second},
		{6, 7200 * time.Second},  // clamped to the last rung
		{99, 7200 * time.Second},
		{0, 60 * time.Second},
		{-1, 60 * time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, RetryDelay(tt.attempts), "attempts=%d", tt.attempts)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.True(t, cfg.CountersEnabled)
}
