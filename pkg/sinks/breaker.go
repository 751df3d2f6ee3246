// pkg/sinks/breaker.go
// Copyright(c) 2026 SecuringSkies contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package sinks holds the auxiliary output channels: mood lighting and
// spoken reports. Sinks are best-effort; a dead lamp or missing speech
// binary never disturbs the mission loop.
package sinks

import (
	"sync"
	"time"
)

// BreakerCooldown is the minimum quiet period after a sink failure
// before the sink is tried again.
const BreakerCooldown = 30 * time.Second

// Breaker suppresses repeated attempts against a failing sink.
type Breaker struct {
	mu       sync.Mutex
	cooldown time.Duration
	until    time.Time
	now      func() time.Time
}

func NewBreaker(cooldown time.Duration) *Breaker {
	if cooldown < BreakerCooldown {
		cooldown = BreakerCooldown
	}
	return &Breaker{cooldown: cooldown, now: time.Now}
}

// Allow reports whether the sink may be tried right now.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.now().Before(b.until)
}

// Fail opens the breaker for one cooldown period.
func (b *Breaker) Fail() {
	b.mu.Lock()
	b.until = b.now().Add(b.cooldown)
	b.mu.Unlock()
}

// SetClock replaces the time source. Test hook.
func (b *Breaker) SetClock(now func() time.Time) {
	b.mu.Lock()
	b.now = now
	b.mu.Unlock()
}
