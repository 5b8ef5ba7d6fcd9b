// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package render turns a reading and the pad mapping into heat-map display state.
package render

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/relabs-tech/pressure_pads/internal/padmap"
	"github.com/relabs-tech/pressure_pads/internal/pressure"
)

// Gradient anchors: zero pressure is blue, MinPressure and below is red.
const (
	ZeroPressure = 0.0
	MinPressure  = -500.0
	HueZero      = 240.0
	HueMin       = 0.0
)

// Placeholder is shown for channels that did not carry a number.
const Placeholder = "—"

// Pad is the display state of one pad.
type Pad struct {
	Pad     int     `json:"pad"`
	Channel int     `json:"channel"`
	Value   float64 `json:"-"`
	Text    string  `json:"text"`
	Hue     float64 `json:"hue"`
	Color   string  `json:"color,omitempty"` // empty: keep the previous color
	Valid   bool    `json:"valid"`
}

// MarshalJSON adds "value" for valid pads; NaN has no JSON form.
func (p Pad) MarshalJSON() ([]byte, error) {
	type plain Pad
	w := struct {
		plain
		Value *float64 `json:"value,omitempty"`
	}{plain: plain(p)}
	if p.Valid {
		w.Value = &p.Value
	}
	return json.Marshal(w)
}

// UnmarshalJSON restores NaN for pads sent without a value.
func (p *Pad) UnmarshalJSON(b []byte) error {
	type plain Pad
	var w struct {
		plain
		Value *float64 `json:"value"`
	}
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*p = Pad(w.plain)
	p.Value = math.NaN()
	if w.Value != nil {
		p.Value = *w.Value
	}
	return nil
}

// Frame is the display state of all pads for one reading.
type Frame [padmap.Pads]Pad

// Render computes the frame for reading r under mapping m.
func Render(m padmap.Mapping, r pressure.Reading) Frame {
	var f Frame
	for p := range f {
		ch := m[p]
		v := r[ch]
		pad := Pad{Pad: p, Channel: ch, Value: v}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			pad.Text = Placeholder
		} else {
			pad.Valid = true
			pad.Text = fmt.Sprintf("%.2f", v)
			pad.Hue = Hue(v)
			pad.Color = Color(pad.Hue)
		}
		f[p] = pad
	}
	return f
}

// Hue maps a pressure in kPa onto [HueMin, HueZero], clamping outside
// [MinPressure, ZeroPressure].
func Hue(v float64) float64 {
	v = math.Max(MinPressure, math.Min(ZeroPressure, v))
	return HueZero + (HueMin-HueZero)*(v-ZeroPressure)/(MinPressure-ZeroPressure)
}

// Color formats a hue as a CSS color at full saturation and 50% lightness.
func Color(hue float64) string {
	return fmt.Sprintf("hsl(%s,100%%,50%%)", trimFloat(hue))
}

func trimFloat(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	for s[len(s)-1] == '0' {
		s = s[:len(s)-1]
	}
	if s[len(s)-1] == '.' {
		s = s[:len(s)-1]
	}
	return s
}
