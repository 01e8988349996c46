// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package health

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Monitor defaults.
const (
	DefaultTimeout = 5 * time.Second
	MaxMisses      = 3
	maxTick        = time.Second
)

// Ticker is the subset of time.Ticker the monitor uses.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// Monitor shuts the plugin down after MaxMisses consecutive missed checks.
type Monitor struct {
	timeout   time.Duration
	now       func() time.Time
	newTicker func(time.Duration) Ticker
	logger    *slog.Logger
	onMiss    func()

	misses    atomic.Int32
	lastCheck time.Time
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// WithTicker overrides ticker construction.
func WithTicker(f func(time.Duration) Ticker) Option {
	return func(m *Monitor) { m.newTicker = f }
}

// WithLogger sets the logger for missed-check warnings.
func WithLogger(l *slog.Logger) Option {
	return func(m *Monitor) { m.logger = l }
}

// WithMissHook is called once per missed check.
func WithMissHook(fn func()) Option {
	return func(m *Monitor) { m.onMiss = fn }
}

// NewMonitor creates a monitor. A non-positive timeout selects DefaultTimeout.
func NewMonitor(timeout time.Duration, opts ...Option) *Monitor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	m := &Monitor{
		timeout: timeout,
		now:     time.Now,
		newTicker: func(d time.Duration) Ticker {
			return realTicker{t: time.NewTicker(d)}
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Timeout returns the configured ping timeout.
func (m *Monitor) Timeout() time.Duration {
	return m.timeout
}

// Tick returns the check interval: one second, or the timeout if shorter.
func (m *Monitor) Tick() time.Duration {
	return min(maxTick, m.timeout)
}

// Misses returns the current consecutive miss count.
func (m *Monitor) Misses() int {
	return int(m.misses.Load())
}

// Run checks liveness on every tick until shutdown is requested elsewhere,
// ctx is cancelled, or MaxMisses consecutive checks fail. In the last case
// it calls shutdown before returning.
func (m *Monitor) Run(ctx context.Context, state *State, shutdown func()) {
	m.lastCheck = m.now()
	ticker := m.newTicker(m.Tick())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if m.check(ctx, state) {
				shutdown()
				return
			}
			if state.ShuttingDown() {
				return
			}
		}
	}
}

// check runs one liveness check and reports whether the miss limit was hit.
func (m *Monitor) check(ctx context.Context, state *State) bool {
	if state.ShuttingDown() {
		return false
	}
	now := m.now()
	sincePing := now.Sub(state.LastPing())

	if now.Sub(m.lastCheck) > m.timeout && sincePing > m.timeout {
		n := m.misses.Add(1)
		m.logger.WarnContext(ctx, "missed ping health check from the framework",
			"count", n, "max", MaxMisses)
		if m.onMiss != nil {
			m.onMiss()
		}
		m.lastCheck = now
		return n >= MaxMisses
	}
	if sincePing < m.timeout {
		m.misses.Store(0)
	}
	return false
}
