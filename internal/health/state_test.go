// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package health

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestState_PingAdvancesLastPing(t *testing.T) {
	clock := newFakeClock()
	s := NewStateWithClock(clock.Now)
	first := s.LastPing()

	clock.Advance(3 * time.Second)
	s.Ping()

	assert.Equal(t, 3*time.Second, s.LastPing().Sub(first))
}

func TestState_MarkShuttingDownOnce(t *testing.T) {
	s := NewState()
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.MarkShuttingDown() {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
	assert.True(t, s.ShuttingDown())
}
