// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package health tracks orchestrator liveness and shuts the plugin down when
// the orchestrator stops pinging.
package health

import (
	"sync/atomic"
	"time"
)

// State is the liveness record shared by the ping handler and the monitor.
// The zero value is not usable; call NewState.
type State struct {
	lastPing     atomic.Int64 // unix nanos
	shuttingDown atomic.Bool
	now          func() time.Time
}

// NewState returns a State whose last ping is now.
func NewState() *State {
	return NewStateWithClock(time.Now)
}

// NewStateWithClock returns a State reading time from now.
func NewStateWithClock(now func() time.Time) *State {
	s := &State{now: now}
	s.lastPing.Store(now().UnixNano())
	return s
}

// Ping records a liveness signal from the orchestrator.
func (s *State) Ping() {
	s.lastPing.Store(s.now().UnixNano())
}

// LastPing returns the time of the most recent ping.
func (s *State) LastPing() time.Time {
	return time.Unix(0, s.lastPing.Load())
}

// MarkShuttingDown sets the shutting-down flag. It returns true only for the
// caller that flipped it.
func (s *State) MarkShuttingDown() bool {
	return s.shuttingDown.CompareAndSwap(false, true)
}

// ShuttingDown reports whether shutdown has been requested.
func (s *State) ShuttingDown() bool {
	return s.shuttingDown.Load()
}
