// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package serialsrc

import (
	"fmt"
	"io"
	"math"
	"math/rand"
	"sync"
	"time"
)

// MockOptions configures the synthetic source. Zero fields take defaults.
type MockOptions struct {
	RateHz   int   // records per second, default 100
	MaxChunk int   // largest read in bytes, default 16
	Seed     int64 // chunk size randomness
}

// MockSource generates four-channel records at a fixed rate and returns them
// in small, randomly sized reads so records straddle chunk boundaries. Every
// ten seconds one channel (round robin) is pressed hard for three seconds.
type MockSource struct {
	opts    MockOptions
	start   time.Time
	ticker  *time.Ticker
	rng     *rand.Rand
	pending []byte

	done      chan struct{}
	closeOnce sync.Once
}

// NewMockSource starts generating immediately.
func NewMockSource(opts MockOptions) *MockSource {
	if opts.RateHz <= 0 {
		opts.RateHz = 100
	}
	if opts.MaxChunk <= 0 {
		opts.MaxChunk = 16
	}
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}
	return &MockSource{
		opts:   opts,
		start:  time.Now(),
		ticker: time.NewTicker(time.Second / time.Duration(opts.RateHz)),
		rng:    rand.New(rand.NewSource(opts.Seed)),
		done:   make(chan struct{}),
	}
}

func (m *MockSource) Read(p []byte) (int, error) {
	for len(m.pending) == 0 {
		select {
		case <-m.done:
			return 0, io.EOF
		case t := <-m.ticker.C:
			m.pending = append(m.pending, MockRecord(t.Sub(m.start))...)
		}
	}
	n := 1 + m.rng.Intn(m.opts.MaxChunk)
	n = min(n, len(m.pending), len(p))
	copy(p, m.pending[:n])
	m.pending = m.pending[n:]
	return n, nil
}

// Close stops the source; pending and later reads return io.EOF.
func (m *MockSource) Close() error {
	m.closeOnce.Do(func() {
		m.ticker.Stop()
		close(m.done)
	})
	return nil
}

// MockRecord is the synthetic record at elapsed time since start.
func MockRecord(elapsed time.Duration) string {
	e := elapsed.Seconds()
	var v [4]float64
	for c := range v {
		// resting load cells drift a few kPa around zero
		v[c] = 5*math.Sin(e*(0.7+0.3*float64(c))) + 2.5
	}

	cycle := int(e / 10)
	if math.Mod(e, 10) < 3 {
		c := cycle % len(v)
		v[c] = -250 - 100*math.Sin(e*2)
	}
	return fmt.Sprintf("%.2f,%.2f,%.2f,%.2f\n", v[0], v[1], v[2], v[3])
}
