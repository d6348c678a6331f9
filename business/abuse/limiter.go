package abuse

import (
	"sync"
	"time"

	"feedbacker/domain"
	"feedbacker/pkg/config"
	"feedbacker/pkg/logger"
)

// Decision is the outcome of a single rate-limit check.
type Decision struct {
	Allowed    bool
	Reason     string
	RetryAfter time.Duration
}

// Limiter keeps sliding windows of submission timestamps per client IP and
// per device, plus a minimum inter-arrival gate per device. State is
// in-process only and resets on restart; rate limiting here is best-effort
// abuse damping, not a security boundary.
type Limiter struct {
	mu sync.Mutex

	ipWindow    time.Duration
	ipMax       int
	devWindow   time.Duration
	devMax      int
	minInterval time.Duration

	ip     map[string][]time.Time
	device map[string][]time.Time

	now func() time.Time
}

func NewLimiter(cfg config.RateLimitConfig) *Limiter {
	return &Limiter{
		ipWindow:    time.Duration(cfg.IPWindowSec) * time.Second,
		ipMax:       cfg.IPMax,
		devWindow:   time.Duration(cfg.DeviceWindowSec) * time.Second,
		devMax:      cfg.DeviceMax,
		minInterval: time.Duration(cfg.MinIntervalMillis) * time.Millisecond,
		ip:          make(map[string][]time.Time),
		device:      make(map[string][]time.Time),
		now:         time.Now,
	}
}

// Check records the submission attempt and decides whether it may proceed.
// Ordering matters: the min-interval gate uses pre-existing device history,
// then the event is appended to both windows before the count comparison,
// so a breaching event is still counted against subsequent attempts.
// Internal panics fail open: blocking legitimate traffic is worse than
// letting one extra request through.
func (l *Limiter) Check(ip, deviceID string) (d Decision) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("rate limiter internal error, failing open", "panic", r)
			d = Decision{Allowed: true}
		}
	}()

	if deviceID == "" {
		deviceID = "unknown"
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	l.ip[ip] = prune(l.ip[ip], now, l.ipWindow)
	l.device[deviceID] = prune(l.device[deviceID], now, l.devWindow)

	if hist := l.device[deviceID]; len(hist) > 0 {
		if since := now.Sub(hist[len(hist)-1]); since < l.minInterval {
			return Decision{
				Reason:     domain.RateReasonMinInterval,
				RetryAfter: l.minInterval - since,
			}
		}
	}

	l.ip[ip] = append(l.ip[ip], now)
	if len(l.ip[ip]) > l.ipMax {
		return Decision{
			Reason:     domain.RateReasonIPWindow,
			RetryAfter: l.ip[ip][0].Add(l.ipWindow).Sub(now),
		}
	}

	l.device[deviceID] = append(l.device[deviceID], now)
	if len(l.device[deviceID]) > l.devMax {
		return Decision{
			Reason:     domain.RateReasonDeviceWindow,
			RetryAfter: l.device[deviceID][0].Add(l.devWindow).Sub(now),
		}
	}

	return Decision{Allowed: true}
}

func prune(events []time.Time, now time.Time, window time.Duration) []time.Time {
	cutoff := now.Add(-window)
	i := 0
	for i < len(events) && !events[i].After(cutoff) {
		i++
	}

	return events[i:]
}
