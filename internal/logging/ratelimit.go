package logging

import (
	"log/slog"
	"sync"
	"time"
)

// RateLimited drops records logged less than interval after the previous one.
type RateLimited struct {
	mu       sync.Mutex
	lastAt   time.Time
	interval time.Duration
	logger   *slog.Logger
	dropped  int
}

func NewRateLimited(logger *slog.Logger, interval time.Duration) *RateLimited {
	if logger == nil {
		logger = Discard()
	}
	return &RateLimited{logger: logger, interval: interval}
}

// Warn logs msg unless another record was emitted within the interval.
// The number of suppressed records since the last emitted one is attached.
func (l *RateLimited) Warn(msg string, args ...any) {
	l.mu.Lock()
	now := time.Now()
	if !l.lastAt.IsZero() && now.Sub(l.lastAt) < l.interval {
		l.dropped++
		l.mu.Unlock()
		return
	}
	l.lastAt = now
	dropped := l.dropped
	l.dropped = 0
	l.mu.Unlock()

	if dropped > 0 {
		args = append(args, slog.Int("suppressed", dropped))
	}
	l.logger.Warn(msg, args...)
}
