package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Status reports the outcome of a rate limit check for one client key.
type Status struct {
	Exceeded     bool
	CurrentCount int64
	Limit        int
	RetryAfter   time.Duration
}

// Limiter enforces a per-client sliding window over Redis. Each admitted
// request is a member of a sorted set scored by its unix timestamp; expired
// members are pruned on every increment.
type Limiter struct {
	redis        *redis.Client
	logger       *logrus.Logger
	timeProvider func() time.Time
	uuidProvider func() uuid.UUID
}

type Options struct {
	TimeProvider func() time.Time
	UuidProvider func() uuid.UUID
}

func NewLimiter(redisClient *redis.Client, logger *logrus.Logger, opts *Options) *Limiter {
	timeProvider := time.Now
	uuidProvider := uuid.New
	if opts != nil {
		if opts.TimeProvider != nil {
			timeProvider = opts.TimeProvider
		}
		if opts.UuidProvider != nil {
			uuidProvider = opts.UuidProvider
		}
	}
	return &Limiter{
		redis:        redisClient,
		logger:       logger,
		timeProvider: timeProvider,
		uuidProvider: uuidProvider,
	}
}

// CheckAndIncrement counts requests for the key inside the window and, when
// below the limit, records the current request. The check and the increment
// are not atomic together; a small overshoot under concurrency is accepted.
func (l *Limiter) CheckAndIncrement(ctx context.Context, clientKey string, limit int, window time.Duration) (*Status, error) {
	key := fmt.Sprintf("scanlimit:%s", clientKey)

	now := l.timeProvider()
	windowStart := now.Add(-window).Unix()

	currentCount, err := l.redis.ZCount(ctx, key,
		strconv.FormatInt(windowStart, 10),
		strconv.FormatInt(now.Unix(), 10)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get count for %s: %w", clientKey, err)
	}

	if currentCount >= int64(limit) {
		l.logger.WithFields(logrus.Fields{
			"client_key": clientKey,
			"count":      currentCount,
			"limit":      limit,
		}).Warn("rate limit exceeded")
		return &Status{
			Exceeded:     true,
			CurrentCount: currentCount,
			Limit:        limit,
			RetryAfter:   window,
		}, nil
	}

	uid := l.uuidProvider()
	requestID := fmt.Sprintf("%d:%s", now.Unix(), uid.String())
	pipe := l.redis.TxPipeline()

	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart, 10))
	pipe.ZAdd(ctx, key, &redis.Z{
		Score:  float64(now.Unix()),
		Member: requestID,
	})
	pipe.Expire(ctx, key, window)

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to execute rate limit pipeline: %w", err)
	}

	return &Status{
		Exceeded:     false,
		CurrentCount: currentCount + 1,
		Limit:        limit,
	}, nil
}
