package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/edgebank/assist/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucketTTL(t *testing.T) {
	// 5 tokens at 1/s refills in 5s; clamped to the 1 minute floor.
	assert.Equal(t, 2*time.Minute, bucketTTL(1, 5))

	// 600 tokens at 0.1/s refills in 100 minutes.
	assert.Equal(t, 200*time.Minute, bucketTTL(0.1, 600))
}

func TestScriptValueCoercion(t *testing.T) {
	assert.Equal(t, int64(1), toInt(int64(1)))
	assert.Equal(t, int64(3), toInt("3"))
	assert.Equal(t, int64(0), toInt(nil))

	assert.Equal(t, 2.0, toFloat(int64(2)))
	assert.Equal(t, 0.5, toFloat("0.5"))
	assert.Equal(t, 0.0, toFloat(nil))
}

func TestAllowValidation(t *testing.T) {
	var nilBucket *TokenBucket
	_, err := nilBucket.Allow(context.Background(), "k", 1, 1)
	require.Error(t, err)

	b := NewTokenBucket(nil)
	assert.Nil(t, b)
}

func TestChatLimiterDisabled(t *testing.T) {
	limiter := NewChatLimiter(config.Config{ChatRateLimitEnabled: false}, nil)
	require.Nil(t, limiter)
	assert.False(t, limiter.Enabled())

	// Nil limiter admits everything.
	res, err := limiter.Allow(context.Background(), "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestChatLimiterNeedsRedis(t *testing.T) {
	limiter := NewChatLimiter(config.Config{
		ChatRateLimitEnabled: true,
		ChatRatePerSec:       1,
		ChatBurst:            5,
	}, nil)
	assert.Nil(t, limiter)
}
