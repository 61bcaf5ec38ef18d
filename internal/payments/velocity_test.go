package payments

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/dentalink/clinic-platform/pkg/logging"
)

func newVelocityChecker(t *testing.T, config VelocityConfig) (*VelocityChecker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewVelocityChecker(client, config, logging.Default()), mr
}

func TestVelocityAllowsWithinLimit(t *testing.T) {
	checker, _ := newVelocityChecker(t, VelocityConfig{MaxPushesPerPhone: 3, WindowHours: 24})
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		result, err := checker.Check(ctx, "254712345678")
		if err != nil {
			t.Fatalf("check %d: %v", i, err)
		}
		if !result.Allowed {
			t.Fatalf("attempt %d should be allowed, got %+v", i, result)
		}
		if result.CurrentCount != i {
			t.Errorf("attempt %d: count = %d", i, result.CurrentCount)
		}
	}
}

func TestVelocityBlocksOverLimit(t *testing.T) {
	checker, _ := newVelocityChecker(t, VelocityConfig{MaxPushesPerPhone: 2, WindowHours: 24})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := checker.Check(ctx, "254712345678"); err != nil {
			t.Fatalf("check: %v", err)
		}
	}
	result, err := checker.Check(ctx, "254712345678")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if result.Allowed {
		t.Fatalf("third attempt should be blocked: %+v", result)
	}
	if result.Message == "" {
		t.Error("blocked result should carry a message")
	}

	// A different phone has its own window.
	other, err := checker.Check(ctx, "254700000001")
	if err != nil || !other.Allowed {
		t.Errorf("unrelated phone should be allowed: %+v %v", other, err)
	}
}

func TestVelocityWindowExpires(t *testing.T) {
	checker, mr := newVelocityChecker(t, VelocityConfig{MaxPushesPerPhone: 1, WindowHours: 1})
	ctx := context.Background()

	if _, err := checker.Check(ctx, "254712345678"); err != nil {
		t.Fatalf("check: %v", err)
	}
	result, _ := checker.Check(ctx, "254712345678")
	if result.Allowed {
		t.Fatal("second attempt inside the window should be blocked")
	}

	mr.FastForward(2 * time.Hour)

	result, err := checker.Check(ctx, "254712345678")
	if err != nil {
		t.Fatalf("check after expiry: %v", err)
	}
	if !result.Allowed || result.CurrentCount != 1 {
		t.Errorf("window should have reset: %+v", result)
	}
}

func TestVelocityFailsOpenWhenRedisDown(t *testing.T) {
	checker, mr := newVelocityChecker(t, DefaultVelocityConfig())
	mr.Close()

	result, err := checker.Check(context.Background(), "254712345678")
	if err != nil {
		t.Fatalf("fail-open should not error: %v", err)
	}
	if !result.Allowed {
		t.Errorf("redis outage should fail open: %+v", result)
	}
}

func TestVelocityReset(t *testing.T) {
	checker, _ := newVelocityChecker(t, VelocityConfig{MaxPushesPerPhone: 1, WindowHours: 24})
	ctx := context.Background()

	if _, err := checker.Check(ctx, "254712345678"); err != nil {
		t.Fatalf("check: %v", err)
	}
	if result, _ := checker.Check(ctx, "254712345678"); result.Allowed {
		t.Fatal("second attempt should be blocked")
	}

	if err := checker.Reset(ctx, "254712345678"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	result, err := checker.Check(ctx, "254712345678")
	if err != nil || !result.Allowed {
		t.Errorf("reset should clear the counter: %+v %v", result, err)
	}
}
