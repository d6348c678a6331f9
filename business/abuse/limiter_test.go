package abuse

import (
	"testing"
	"time"

	"feedbacker/domain"
	"feedbacker/pkg/config"
)

func testConfig() config.RateLimitConfig {
	return config.RateLimitConfig{
		IPWindowSec:       60,
		IPMax:             3,
		DeviceWindowSec:   300,
		DeviceMax:         12,
		MinIntervalMillis: 1500,
	}
}

// fakeClock lets tests advance time without sleeping.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter() (*Limiter, *fakeClock) {
	l := NewLimiter(testConfig())
	clk := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	l.now = clk.now

	return l, clk
}

func TestIPWindowLimit(t *testing.T) {
	l, clk := newTestLimiter()

	for i := 0; i < 3; i++ {
		d := l.Check("10.0.0.1", "")
		if !d.Allowed {
			t.Fatalf("request %d should pass, got reason %s", i+1, d.Reason)
		}
		clk.advance(2 * time.Second)
	}

	d := l.Check("10.0.0.1", "")
	if d.Allowed {
		t.Fatal("4th request inside the window must be rejected")
	}
	if d.Reason != domain.RateReasonIPWindow {
		t.Fatalf("reason = %s, want %s", d.Reason, domain.RateReasonIPWindow)
	}
	if d.RetryAfter <= 0 {
		t.Fatal("retry hint must be positive")
	}

	// after the window slides past the oldest events the key recovers
	clk.advance(61 * time.Second)
	if d := l.Check("10.0.0.1", ""); !d.Allowed {
		t.Fatalf("request after window elapsed should pass, got %s", d.Reason)
	}
}

func TestMinIntervalGate(t *testing.T) {
	l, clk := newTestLimiter()

	if d := l.Check("10.0.0.1", "kiosk-1"); !d.Allowed {
		t.Fatalf("first request should pass, got %s", d.Reason)
	}

	clk.advance(500 * time.Millisecond)
	d := l.Check("10.0.0.2", "kiosk-1")
	if d.Allowed {
		t.Fatal("request under the min interval must be rejected")
	}
	if d.Reason != domain.RateReasonMinInterval {
		t.Fatalf("reason = %s, want %s", d.Reason, domain.RateReasonMinInterval)
	}
	if d.RetryAfter > time.Second || d.RetryAfter <= 0 {
		t.Fatalf("retry after = %v, want (0s, 1s]", d.RetryAfter)
	}

	clk.advance(2 * time.Second)
	if d := l.Check("10.0.0.2", "kiosk-1"); !d.Allowed {
		t.Fatalf("request after interval should pass, got %s", d.Reason)
	}
}

func TestDeviceWindowLimit(t *testing.T) {
	cfg := testConfig()
	cfg.IPMax = 100
	cfg.DeviceMax = 4
	l := NewLimiter(cfg)
	clk := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	l.now = clk.now

	for i := 0; i < 4; i++ {
		if d := l.Check("10.0.0.1", "kiosk-9"); !d.Allowed {
			t.Fatalf("request %d should pass, got %s", i+1, d.Reason)
		}
		clk.advance(2 * time.Second)
	}

	d := l.Check("10.0.0.1", "kiosk-9")
	if d.Allowed || d.Reason != domain.RateReasonDeviceWindow {
		t.Fatalf("got %+v, want device window rejection", d)
	}
}

func TestIndependentKeys(t *testing.T) {
	l, clk := newTestLimiter()

	for i := 0; i < 3; i++ {
		l.Check("10.0.0.1", "")
		clk.advance(2 * time.Second)
	}
	if d := l.Check("10.0.0.1", ""); d.Allowed {
		t.Fatal("first ip should be limited")
	}

	if d := l.Check("10.0.0.99", ""); !d.Allowed {
		t.Fatalf("unrelated ip must not be limited, got %s", d.Reason)
	}
}
