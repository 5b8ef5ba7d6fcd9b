// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package calibration binds physical channels to pads with a press-and-hold gesture.
//
// Clicking a pad arms it. While armed, pressing any channel harder than
// Threshold continuously for Hold binds that channel to the pad. Each channel
// has its own timer; the first one to reach Hold wins and ends the session.
// Clicking the armed pad again cancels; clicking another pad moves the target.
package calibration

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/relabs-tech/pressure_pads/internal/padmap"
	"github.com/relabs-tech/pressure_pads/internal/pressure"
)

const (
	// DefaultThreshold in kPa; readings at or below it count as pressed.
	DefaultThreshold = -100.0
	// DefaultHold is how long a channel must stay pressed.
	DefaultHold = 2000 * time.Millisecond
)

// ErrInvalidPad is returned by Click for pads outside [0, padmap.Pads).
var ErrInvalidPad = errors.New("invalid pad")

// MappingStore is the persistence the engine needs.
type MappingStore interface {
	Load() padmap.Mapping
	Save(padmap.Mapping) error
	Clear() error
}

// State of the engine.
type State int

const (
	Idle State = iota
	Awaiting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Awaiting:
		return "awaiting"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Binding is emitted when a gesture completes. SaveError is set when the
// mapping was applied in memory but could not be persisted.
type Binding struct {
	ID        string    `json:"id"`
	Pad       int       `json:"pad"`
	Channel   int       `json:"channel"`
	At        time.Time `json:"at"`
	SaveError string    `json:"save_error,omitempty"`
}

// Options tunes the gesture. Zero fields take the defaults.
type Options struct {
	Threshold float64
	Hold      time.Duration
}

// Engine is the calibration state machine. It owns the current mapping.
// It is not safe for concurrent use; callers serialize readings and clicks.
type Engine struct {
	store     MappingStore
	threshold float64
	hold      time.Duration

	mapping    padmap.Mapping
	target     int // -1 when idle
	pressStart [pressure.Channels]time.Time
}

// New loads the mapping from store and starts Idle.
func New(store MappingStore, opts Options) *Engine {
	if opts.Threshold == 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.Hold <= 0 {
		opts.Hold = DefaultHold
	}
	return &Engine{
		store:     store,
		threshold: opts.Threshold,
		hold:      opts.Hold,
		mapping:   store.Load(),
		target:    -1,
	}
}

// Mapping returns the current pad -> channel table.
func (e *Engine) Mapping() padmap.Mapping {
	return e.mapping
}

func (e *Engine) State() State {
	if e.target < 0 {
		return Idle
	}
	return Awaiting
}

// Target returns the armed pad, if any.
func (e *Engine) Target() (pad int, ok bool) {
	return e.target, e.target >= 0
}

// Click handles a pad selection and returns the resulting state.
func (e *Engine) Click(pad int) (State, error) {
	if pad < 0 || pad >= padmap.Pads {
		return e.State(), fmt.Errorf("%w: %d", ErrInvalidPad, pad)
	}
	if e.target == pad {
		e.reset()
	} else {
		e.target = pad
		e.pressStart = [pressure.Channels]time.Time{}
	}
	return e.State(), nil
}

// HandleReading advances the gesture for the armed pad. It returns the binding
// when a channel has been held for the full duration.
func (e *Engine) HandleReading(r pressure.Reading, now time.Time) (Binding, bool) {
	if e.target < 0 {
		return Binding{}, false
	}

	for c, v := range r {
		// NaN compares false and releases the channel
		if !(v <= e.threshold) {
			e.pressStart[c] = time.Time{}
			continue
		}
		if e.pressStart[c].IsZero() {
			e.pressStart[c] = now
			continue
		}
		if now.Sub(e.pressStart[c]) >= e.hold {
			return e.bind(e.target, c, now), true
		}
	}
	return Binding{}, false
}

func (e *Engine) bind(pad, channel int, now time.Time) Binding {
	e.mapping[pad] = channel
	e.reset()
	b := Binding{
		ID:      uuid.NewString(),
		Pad:     pad,
		Channel: channel,
		At:      now,
	}
	if err := e.store.Save(e.mapping); err != nil {
		log.Printf("calibration: %v", err)
		b.SaveError = err.Error()
	}
	return b
}

// ClearCache wipes the persisted mapping and falls back to identity.
// An armed session stays armed.
func (e *Engine) ClearCache() error {
	e.mapping = padmap.Identity
	return e.store.Clear()
}

// Holding reports, per channel, how long it has been pressed as of now.
// Channels not being held report zero.
func (e *Engine) Holding(now time.Time) [pressure.Channels]time.Duration {
	var out [pressure.Channels]time.Duration
	for c, start := range e.pressStart {
		if !start.IsZero() {
			out[c] = now.Sub(start)
		}
	}
	return out
}

// Hold returns the configured hold duration.
func (e *Engine) Hold() time.Duration {
	return e.hold
}

func (e *Engine) reset() {
	e.target = -1
	e.pressStart = [pressure.Channels]time.Time{}
}
