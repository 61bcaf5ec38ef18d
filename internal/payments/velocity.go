package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"

	"github.com/dentalink/clinic-platform/pkg/logging"
)

// VelocityChecker limits how many pushes a single phone number can trigger
// inside a rolling window. Redis being unreachable fails open so payments
// keep flowing during an outage.
type VelocityChecker struct {
	redis  *redis.Client
	logger *logging.Logger
	config VelocityConfig
}

type VelocityConfig struct {
	MaxPushesPerPhone int
	WindowHours       int
}

func DefaultVelocityConfig() VelocityConfig {
	return VelocityConfig{
		MaxPushesPerPhone: 5,
		WindowHours:       24,
	}
}

// VelocityResult reports the outcome of a check.
type VelocityResult struct {
	Allowed      bool
	CurrentCount int
	MaxAllowed   int
	WindowExpiry time.Time
	Message      string
}

func NewVelocityChecker(redisClient *redis.Client, config VelocityConfig, logger *logging.Logger) *VelocityChecker {
	if logger == nil {
		logger = logging.Default()
	}
	if config.MaxPushesPerPhone <= 0 {
		config = DefaultVelocityConfig()
	}
	return &VelocityChecker{
		redis:  redisClient,
		logger: logger,
		config: config,
	}
}

// Check counts this attempt against the phone's window.
func (v *VelocityChecker) Check(ctx context.Context, phone string) (*VelocityResult, error) {
	ctx, span := paymentsTracer.Start(ctx, "velocity.check_push")
	defer span.End()
	span.SetAttributes(attribute.String("velocity.check_type", "stk_push"))

	key := fmt.Sprintf("velocity:stkpush:%s", phone)
	window := time.Duration(v.config.WindowHours) * time.Hour

	count, expiry, err := v.incrementAndGet(ctx, key, window)
	if err != nil {
		v.logger.Error("velocity check failed", "error", err, "key", key)
		// Fail open if Redis is down.
		return &VelocityResult{Allowed: true, Message: "velocity check unavailable"}, nil
	}

	result := &VelocityResult{
		Allowed:      count <= v.config.MaxPushesPerPhone,
		CurrentCount: count,
		MaxAllowed:   v.config.MaxPushesPerPhone,
		WindowExpiry: expiry,
	}
	if !result.Allowed {
		result.Message = fmt.Sprintf("exceeded %d push attempts in %d hours", v.config.MaxPushesPerPhone, v.config.WindowHours)
		v.logger.Warn("push velocity exceeded",
			"phone", phone,
			"count", count,
			"max", v.config.MaxPushesPerPhone,
		)
		span.SetAttributes(attribute.Bool("velocity.exceeded", true))
	}
	return result, nil
}

// Reset clears the counter for a phone (admin use).
func (v *VelocityChecker) Reset(ctx context.Context, phone string) error {
	key := fmt.Sprintf("velocity:stkpush:%s", phone)
	return v.redis.Del(ctx, key).Err()
}

func (v *VelocityChecker) incrementAndGet(ctx context.Context, key string, window time.Duration) (int, time.Time, error) {
	count, err := v.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, time.Time{}, err
	}

	// Expiry starts at the first attempt in the window.
	if count == 1 {
		v.redis.Expire(ctx, key, window)
	}

	ttl, err := v.redis.TTL(ctx, key).Result()
	if err != nil {
		ttl = window
	}
	return int(count), time.Now().Add(ttl), nil
}
