// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"time"

	"github.com/relabs-tech/pressure_pads/internal/calibration"
	"github.com/relabs-tech/pressure_pads/internal/padmap"
	"github.com/relabs-tech/pressure_pads/internal/render"
)

// Event types pushed to websocket clients and MQTT.
const (
	EventFrame   = "frame"   // Frame, Selected
	EventBinding = "binding" // Binding, Mapping, Message
	EventRate    = "rate"    // Rate
	EventStatus  = "status"  // Selected, Mapping, Connection
	EventNotice  = "notice"  // Message, Mapping
	EventError   = "error"   // Message
)

// Event is the single wire type for everything the session emits.
type Event struct {
	Type       string               `json:"type"`
	Time       time.Time            `json:"time"`
	Frame      *render.Frame        `json:"frame,omitempty"`
	Selected   *int                 `json:"selected,omitempty"` // -1 when no pad is armed
	Binding    *calibration.Binding `json:"binding,omitempty"`
	Rate       *int                 `json:"rate,omitempty"`
	Mapping    *padmap.Mapping      `json:"mapping,omitempty"`
	Connection *Connection          `json:"connection,omitempty"`
	Message    string               `json:"message,omitempty"`
}

// Connection describes the serial source.
type Connection struct {
	Port      string `json:"port,omitempty"`
	Baud      int    `json:"baud,omitempty"`
	Connected bool   `json:"connected"`
}

// Sink receives session events. Send must not block.
type Sink interface {
	Send(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

func (f SinkFunc) Send(ev Event) { f(ev) }

func ptr[T any](v T) *T { return &v }
