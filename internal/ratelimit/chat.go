package ratelimit

import (
	"context"

	"github.com/edgebank/assist/internal/config"
	redis "github.com/redis/go-redis/v9"
)

// ChatLimiter throttles conversational turns per client address. It is nil
// when throttling is disabled or no redis backend is available, and every
// method tolerates the nil receiver.
type ChatLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewChatLimiter(cfg config.Config, client *redis.Client) *ChatLimiter {
	if !cfg.ChatRateLimitEnabled || client == nil {
		return nil
	}
	return &ChatLimiter{
		bucket: NewTokenBucket(client),
		rate:   cfg.ChatRatePerSec,
		burst:  cfg.ChatBurst,
	}
}

func (l *ChatLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *ChatLimiter) Allow(ctx context.Context, clientIP string) (Result, error) {
	if !l.Enabled() {
		return Result{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, "chat:"+clientIP, l.rate, l.burst)
}
