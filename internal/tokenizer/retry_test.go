package tokenizer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/r2md/pkg/types"
)

func fastRetry(max int) RetryConfig {
	return RetryConfig{
		MaxRetries: max,
		BaseDelay:  time.Millisecond,
		MaxDelay:   2 * time.Millisecond,
		Multiplier: 2,
	}
}

func TestRetryWithBackoff(t *testing.T) {
	errFlaky := errors.New("connection reset")

	tests := []struct {
		name      string
		failures  int
		max       int
		wantErr   error
		wantCalls int
	}{
		{"first attempt succeeds", 0, 3, nil, 1},
		{"succeeds after failures", 2, 3, nil, 3},
		{"gives up", 5, 3, errFlaky, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			got, err := retryWithBackoff(context.Background(), fastRetry(tt.max), func() (int, error) {
				calls++
				if calls <= tt.failures {
					return 0, errFlaky
				}
				return 42, nil
			})

			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 42, got)
		})
	}
}

func TestRetryWithBackoff_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	_, err := retryWithBackoff(ctx, fastRetry(5), func() (string, error) {
		calls++
		cancel()
		return "", errors.New("boom")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDefaultRetryConfig(t *testing.T) {
	cfg := DefaultRetryConfig()
	assert.Greater(t, cfg.MaxRetries, 1)
	assert.LessOrEqual(t, cfg.BaseDelay, cfg.MaxDelay)
	assert.Greater(t, cfg.Multiplier, 1.0)
}

func TestLoad_DownloadUnknownEncoding(t *testing.T) {
	_, err := Load(DownloadPrefix + "no_such_base")
	assert.ErrorIs(t, err, types.ErrTokenizerLoad)
}
