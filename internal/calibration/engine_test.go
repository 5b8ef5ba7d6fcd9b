// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package calibration

import (
	"errors"
	"testing"
	"time"

	"github.com/relabs-tech/pressure_pads/internal/padmap"
	"github.com/relabs-tech/pressure_pads/internal/pressure"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func at(ms int) time.Time {
	return t0.Add(time.Duration(ms) * time.Millisecond)
}

// pressed returns a reading with only channel ch below the threshold.
func pressed(ch int) pressure.Reading {
	r := pressure.Reading{5, 5, 5, 5}
	r[ch] = -150
	return r
}

var released = pressure.Reading{5, 5, 5, 5}

func newEngine(t *testing.T) (*Engine, *padmap.Store, *padmap.MemKV) {
	t.Helper()
	kv := padmap.NewMemKV()
	store := padmap.NewStore(kv)
	return New(store, Options{}), store, kv
}

func mustClick(t *testing.T, e *Engine, pad int) {
	t.Helper()
	if _, err := e.Click(pad); err != nil {
		t.Fatalf("Click(%d): %v", pad, err)
	}
}

func TestClickTransitions(t *testing.T) {
	e, _, _ := newEngine(t)
	if e.State() != Idle {
		t.Fatalf("initial state %v", e.State())
	}

	if st, _ := e.Click(1); st != Awaiting {
		t.Fatalf("click 1 from idle: %v", st)
	}
	if p, ok := e.Target(); !ok || p != 1 {
		t.Fatalf("target = %d,%v; want 1,true", p, ok)
	}

	if st, _ := e.Click(3); st != Awaiting {
		t.Fatalf("click 3 while awaiting 1: %v", st)
	}
	if p, _ := e.Target(); p != 3 {
		t.Fatalf("target = %d; want 3", p)
	}

	if st, _ := e.Click(3); st != Idle {
		t.Fatalf("re-click 3: %v; want idle", st)
	}
	if _, ok := e.Target(); ok {
		t.Fatalf("target still set after cancel")
	}
}

func TestClickInvalidPad(t *testing.T) {
	e, _, _ := newEngine(t)
	mustClick(t, e, 2)
	for _, p := range []int{-1, 4, 99} {
		st, err := e.Click(p)
		if !errors.Is(err, ErrInvalidPad) {
			t.Fatalf("Click(%d) err = %v; want ErrInvalidPad", p, err)
		}
		if st != Awaiting {
			t.Fatalf("Click(%d) changed state to %v", p, st)
		}
	}
}

func TestIdleIgnoresReadings(t *testing.T) {
	e, _, kv := newEngine(t)
	for ms := 0; ms <= 5000; ms += 100 {
		if _, ok := e.HandleReading(pressed(0), at(ms)); ok {
			t.Fatalf("binding while idle at %dms", ms)
		}
	}
	if kv.Writes != 0 {
		t.Fatalf("idle engine wrote %d times", kv.Writes)
	}
}

func TestGestureCompletion(t *testing.T) {
	e, store, _ := newEngine(t)
	mustClick(t, e, 2)

	if _, ok := e.HandleReading(pressed(1), at(0)); ok {
		t.Fatalf("bound at t=0")
	}
	if _, ok := e.HandleReading(pressed(1), at(1999)); ok {
		t.Fatalf("bound before hold duration")
	}
	b, ok := e.HandleReading(pressed(1), at(2000))
	if !ok {
		t.Fatalf("no binding at t=2000")
	}
	if b.Pad != 2 || b.Channel != 1 {
		t.Fatalf("binding = pad %d channel %d; want pad 2 channel 1", b.Pad, b.Channel)
	}
	if b.ID == "" || !b.At.Equal(at(2000)) {
		t.Fatalf("binding metadata: %+v", b)
	}
	if e.State() != Idle {
		t.Fatalf("state after binding: %v", e.State())
	}
	want := padmap.Mapping{0, 1, 1, 3}
	if e.Mapping() != want {
		t.Fatalf("mapping = %v; want %v", e.Mapping(), want)
	}
	if got := store.Load(); got != want {
		t.Fatalf("persisted = %v; want %v", got, want)
	}

	// session is over: more presses do nothing
	if _, ok := e.HandleReading(pressed(1), at(5000)); ok {
		t.Fatalf("second binding after session ended")
	}
}

func TestGestureResetOnRelease(t *testing.T) {
	e, _, _ := newEngine(t)
	mustClick(t, e, 2)

	var bound []int
	feed := func(ms int, r pressure.Reading) {
		if b, ok := e.HandleReading(r, at(ms)); ok {
			if b.Pad != 2 || b.Channel != 1 {
				t.Fatalf("binding = %+v", b)
			}
			bound = append(bound, ms)
		}
	}
	for ms := 0; ms < 1000; ms += 100 {
		feed(ms, pressed(1))
	}
	feed(1000, released)
	feed(1100, released)
	for ms := 1200; ms <= 3500; ms += 100 {
		feed(ms, pressed(1))
	}

	if len(bound) != 1 || bound[0] != 3200 {
		t.Fatalf("bound at %v; want exactly [3200]", bound)
	}
}

func TestRetargetCancelsTimers(t *testing.T) {
	e, _, _ := newEngine(t)
	mustClick(t, e, 2)
	e.HandleReading(pressed(1), at(0))
	e.HandleReading(pressed(1), at(400))

	mustClick(t, e, 3)
	var got Binding
	var bound bool
	for ms := 500; ms <= 2500 && !bound; ms += 100 {
		got, bound = e.HandleReading(pressed(1), at(ms))
		if bound && ms != 2500 {
			t.Fatalf("bound at %dms; want 2500", ms)
		}
	}
	if !bound {
		t.Fatalf("no binding")
	}
	if got.Pad != 3 || got.Channel != 1 {
		t.Fatalf("binding = pad %d channel %d; want pad 3 channel 1", got.Pad, got.Channel)
	}
	if m := e.Mapping(); m != (padmap.Mapping{0, 1, 2, 1}) {
		t.Fatalf("mapping = %v", m)
	}
}

type failingStore struct{}

func (s *failingStore) Load() padmap.Mapping      { return padmap.Identity }
func (s *failingStore) Save(padmap.Mapping) error { return errors.New("disk full") }
func (s *failingStore) Clear() error              { return nil }

func TestBindingReportsSaveError(t *testing.T) {
	e := New(&failingStore{}, Options{})
	mustClick(t, e, 1)
	e.HandleReading(pressed(0), at(0))
	b, ok := e.HandleReading(pressed(0), at(2000))
	if !ok {
		t.Fatalf("no binding")
	}
	if b.SaveError != "disk full" {
		t.Fatalf("SaveError = %q; want disk full", b.SaveError)
	}
	if e.Mapping() != (padmap.Mapping{0, 0, 2, 3}) || e.State() != Idle {
		t.Fatalf("mapping = %v state = %v", e.Mapping(), e.State())
	}

	good := New(padmap.NewStore(padmap.NewMemKV()), Options{})
	mustClick(t, good, 1)
	good.HandleReading(pressed(0), at(0))
	if b, _ := good.HandleReading(pressed(0), at(2000)); b.SaveError != "" {
		t.Fatalf("SaveError = %q on a working store", b.SaveError)
	}
}

func TestCancelClearsTimers(t *testing.T) {
	e, _, _ := newEngine(t)
	mustClick(t, e, 0)
	e.HandleReading(pressed(3), at(0))
	mustClick(t, e, 0) // cancel
	mustClick(t, e, 0) // re-arm
	if _, ok := e.HandleReading(pressed(3), at(2500)); ok {
		t.Fatalf("old timer survived cancel")
	}
	if _, ok := e.HandleReading(pressed(3), at(4500)); !ok {
		t.Fatalf("no binding 2000ms after re-arm press")
	}
}

func TestIndependentChannelTimers(t *testing.T) {
	e, _, _ := newEngine(t)
	mustClick(t, e, 0)

	both := pressure.Reading{-120, 5, -130, 5}
	only2 := pressure.Reading{5, 5, -130, 5}

	e.HandleReading(both, at(0))    // ch0 and ch2 start
	e.HandleReading(only2, at(500)) // ch0 released, ch2 keeps going
	e.HandleReading(both, at(600))  // ch0 restarts
	b, ok := e.HandleReading(both, at(2000))
	if !ok || b.Channel != 2 {
		t.Fatalf("got %+v,%v; want channel 2", b, ok)
	}
}

func TestFirstChannelWinsSameTick(t *testing.T) {
	e, _, _ := newEngine(t)
	mustClick(t, e, 3)
	all := pressure.Reading{-200, -200, -200, -200}
	e.HandleReading(all, at(0))
	b, ok := e.HandleReading(all, at(2000))
	if !ok || b.Channel != 0 || b.Pad != 3 {
		t.Fatalf("got %+v,%v; want pad 3 channel 0", b, ok)
	}
	if e.Mapping() != (padmap.Mapping{0, 1, 2, 0}) {
		t.Fatalf("mapping = %v", e.Mapping())
	}
}

func TestThresholdIsInclusive(t *testing.T) {
	e, _, _ := newEngine(t)
	mustClick(t, e, 1)
	r := pressure.Reading{5, 5, 5, -100}
	e.HandleReading(r, at(0))
	if _, ok := e.HandleReading(r, at(2000)); !ok {
		t.Fatalf("-100 kPa should count as pressed")
	}
}

func TestNaNReleasesChannel(t *testing.T) {
	e, _, _ := newEngine(t)
	mustClick(t, e, 1)
	nan, _ := pressure.Parse("5,5,5,x")
	e.HandleReading(pressed(3), at(0))
	e.HandleReading(nan, at(1000))
	if _, ok := e.HandleReading(pressed(3), at(2000)); ok {
		t.Fatalf("NaN did not release the channel")
	}
}

func TestClearCache(t *testing.T) {
	e, store, _ := newEngine(t)
	mustClick(t, e, 0)
	e.HandleReading(pressed(2), at(0))
	e.HandleReading(pressed(2), at(2000))
	if store.Load() != (padmap.Mapping{2, 1, 2, 3}) {
		t.Fatalf("precondition: %v", store.Load())
	}

	mustClick(t, e, 1)
	if err := e.ClearCache(); err != nil {
		t.Fatalf("ClearCache: %v", err)
	}
	if e.Mapping() != padmap.Identity || store.Load() != padmap.Identity {
		t.Fatalf("mapping after clear: engine %v store %v", e.Mapping(), store.Load())
	}
	if p, ok := e.Target(); !ok || p != 1 {
		t.Fatalf("clear cache dropped the armed pad")
	}
}

func TestNewLoadsPersistedMapping(t *testing.T) {
	store := padmap.NewStore(padmap.NewMemKV())
	if err := store.Save(padmap.Mapping{3, 2, 1, 0}); err != nil {
		t.Fatal(err)
	}
	e := New(store, Options{})
	if e.Mapping() != (padmap.Mapping{3, 2, 1, 0}) {
		t.Fatalf("mapping = %v", e.Mapping())
	}
}

func TestCustomOptions(t *testing.T) {
	e := New(padmap.NewStore(padmap.NewMemKV()), Options{Threshold: -300, Hold: 500 * time.Millisecond})
	mustClick(t, e, 0)
	e.HandleReading(pressed(1), at(0)) // -150 is not below -300
	if _, ok := e.HandleReading(pressed(1), at(600)); ok {
		t.Fatalf("bound with a reading above the threshold")
	}
	deep := pressure.Reading{5, -400, 5, 5}
	e.HandleReading(deep, at(1000))
	if _, ok := e.HandleReading(deep, at(1500)); !ok {
		t.Fatalf("no binding after custom hold")
	}
}

func TestHolding(t *testing.T) {
	e, _, _ := newEngine(t)
	mustClick(t, e, 0)
	e.HandleReading(pressed(2), at(0))
	h := e.Holding(at(750))
	if h[2] != 750*time.Millisecond || h[0] != 0 {
		t.Fatalf("holding = %v", h)
	}
}
