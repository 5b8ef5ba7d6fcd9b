// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package render

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Diamond layout, in cells of a 3x3 grid:
//
//	   [0]
//	[1]   [2]
//	   [3]
var diamond = [4]image.Point{{1, 0}, {0, 1}, {2, 1}, {1, 2}}

var (
	background = color.RGBA{0x12, 0x12, 0x12, 0xFF}
	idlePad    = color.RGBA{0x2B, 0x2B, 0x2B, 0xFF}
	outline    = color.RGBA{0xFF, 0xFF, 0xFF, 0xFF}
)

// SnapshotOptions controls the PNG snapshot.
type SnapshotOptions struct {
	Cell     int // pad size in pixels
	Gap      int
	Selected int // pad to outline, -1 for none
}

// DefaultSnapshotOptions matches the web page layout.
var DefaultSnapshotOptions = SnapshotOptions{Cell: 160, Gap: 24, Selected: -1}

// Snapshot draws the frame as a diamond heat-map. Pads without a valid
// value are drawn in the idle color.
func Snapshot(f Frame, opts SnapshotOptions) *image.RGBA {
	if opts.Cell <= 0 {
		opts.Cell = DefaultSnapshotOptions.Cell
	}
	if opts.Gap < 0 {
		opts.Gap = 0
	}
	step := opts.Cell + opts.Gap
	size := 3*opts.Cell + 4*opts.Gap
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), &image.Uniform{background}, image.Point{}, draw.Src)

	for p, pad := range f {
		cell := diamond[p]
		origin := image.Pt(opts.Gap+cell.X*step, opts.Gap+cell.Y*step)
		rect := image.Rectangle{Min: origin, Max: origin.Add(image.Pt(opts.Cell, opts.Cell))}

		if p == opts.Selected {
			draw.Draw(img, rect.Inset(-4), &image.Uniform{outline}, image.Point{}, draw.Src)
		}
		fill := color.Color(idlePad)
		if pad.Valid {
			fill = RGB(pad.Hue)
		}
		draw.Draw(img, rect, &image.Uniform{fill}, image.Point{}, draw.Src)

		drawer := &font.Drawer{
			Dst:  img,
			Src:  image.White,
			Face: basicfont.Face7x13,
		}
		width := drawer.MeasureString(pad.Text).Ceil()
		drawer.Dot = fixed.P(rect.Min.X+(opts.Cell-width)/2, rect.Max.Y-8)
		drawer.DrawString(pad.Text)
	}
	return img
}

// WritePNG encodes the snapshot of f to w.
func WritePNG(w io.Writer, f Frame, opts SnapshotOptions) error {
	return png.Encode(w, Snapshot(f, opts))
}
