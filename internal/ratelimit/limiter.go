package ratelimit

import (
	"context"
	"errors"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/bootcamp/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrRateLimited = errors.New("rate_limited")

const keyPayIntent = "bootcamp:ratelimit:pay_intent:"

// Allower decides whether the caller identified by key may proceed.
type Allower interface {
	Allow(ctx context.Context, key string) (*Result, error)
}

// Limiter is a token bucket per key with a fixed rate and burst. A nil
// Limiter allows everything.
type Limiter struct {
	bucket *TokenBucket
	prefix string
	rate   float64
	burst  int
}

func NewLimiter(client *redis.Client, prefix string, rate float64, burst int) *Limiter {
	return &Limiter{
		bucket: NewTokenBucket(client),
		prefix: prefix,
		rate:   rate,
		burst:  burst,
	}
}

// NewPayIntentLimiter returns nil when redis is not configured or the rate
// is disabled.
func NewPayIntentLimiter(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) *Limiter {
	limits := cfg.RateLimit
	if !cfg.Redis.Enabled() || limits.PayIntentRate <= 0 || limits.PayIntentBurst <= 0 {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	log.Named("ratelimit").Info("pay intent rate limit enabled",
		zap.Float64("rate", limits.PayIntentRate),
		zap.Int("burst", limits.PayIntentBurst),
	)
	return NewLimiter(client, keyPayIntent, limits.PayIntentRate, limits.PayIntentBurst)
}

func (l *Limiter) Allow(ctx context.Context, key string) (*Result, error) {
	if l == nil {
		return &Result{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, l.prefix+key, l.rate, l.burst)
}
