// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package ratemeter counts readings per rolling one-second window.
package ratemeter

import "time"

// Window is the minimum time between two rate emissions.
const Window = time.Second

// Meter is a sliding reading counter. Not safe for concurrent use.
type Meter struct {
	count int
	since time.Time
}

// New starts a meter whose first window begins at now.
func New(now time.Time) *Meter {
	return &Meter{since: now}
}

// Tick records one accepted reading. When more than Window has elapsed since
// the last reset it returns the count for that window and starts a new one.
func (m *Meter) Tick(now time.Time) (rate int, emitted bool) {
	m.count++
	if now.Sub(m.since) <= Window {
		return 0, false
	}
	rate = m.count
	m.count = 0
	m.since = now
	return rate, true
}

// Reset restarts the window at now, discarding the current count.
func (m *Meter) Reset(now time.Time) {
	m.count = 0
	m.since = now
}
