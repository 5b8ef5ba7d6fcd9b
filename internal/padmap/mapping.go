// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package padmap persists the pad -> channel binding table.
package padmap

import (
	"encoding/json"
	"fmt"
)

// Pads is the number of logical display positions.
const Pads = 4

// Key is the storage key holding the serialized mapping.
const Key = "padMap"

// Mapping gives, for each pad index, the channel index it displays.
// Channels may repeat across pads.
type Mapping [Pads]int

// Identity maps pad i to channel i.
var Identity = Mapping{0, 1, 2, 3}

// Validate checks every entry is a channel index in [0, Pads).
func (m Mapping) Validate() error {
	for pad, ch := range m {
		if ch < 0 || ch >= Pads {
			return fmt.Errorf("pad %d: channel %d out of range", pad, ch)
		}
	}
	return nil
}

// MarshalJSON writes the mapping as a plain 4-element array.
func (m Mapping) MarshalJSON() ([]byte, error) {
	return json.Marshal([Pads]int(m))
}

// UnmarshalJSON requires exactly Pads in-range integers.
func (m *Mapping) UnmarshalJSON(b []byte) error {
	var raw []int
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if len(raw) != Pads {
		return fmt.Errorf("mapping has %d entries, want %d", len(raw), Pads)
	}
	var out Mapping
	copy(out[:], raw)
	if err := out.Validate(); err != nil {
		return err
	}
	*m = out
	return nil
}
