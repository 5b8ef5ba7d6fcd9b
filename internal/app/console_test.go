// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"strings"
	"testing"
	"time"

	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/relabs-tech/pressure_pads/internal/calibration"
	"github.com/relabs-tech/pressure_pads/internal/padmap"
	"github.com/relabs-tech/pressure_pads/internal/pressure"
	"github.com/relabs-tech/pressure_pads/internal/render"
)

func TestFormatEvent(t *testing.T) {
	frame := render.Render(padmap.Mapping{0, 1, 1, 3}, pressure.Reading{-1, -2.5, math.NaN(), 4})

	tests := []struct {
		name string
		ev   Event
		want string
	}{
		{"frame", Event{Type: EventFrame, Frame: &frame, Selected: ptr(1)},
			"[PADS]  P1(ch0)=  -1.00  *P2(ch1)=  -2.50   P3(ch1)=  -2.50   P4(ch3)=   4.00"},
		{"binding", Event{Type: EventBinding, Binding: &calibration.Binding{ID: "x", Pad: 2, Channel: 1}},
			"[BIND] pad=2 channel=1 id=x"},
		{"rate", Event{Type: EventRate, Rate: ptr(100)}, "[RATE] 100 Hz"},
		{"notice", Event{Type: EventNotice, Message: "Cache cleared – mapping reset."},
			"[NOTICE] Cache cleared – mapping reset."},
		{"frame without data", Event{Type: EventFrame}, ""},
		{"status", Event{Type: EventStatus}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatEvent(tt.ev); got != tt.want {
				t.Fatalf("got %q want %q", got, tt.want)
			}
		})
	}
}

func TestConsolePrinterThrottlesFrames(t *testing.T) {
	var out bytes.Buffer
	p := newConsolePrinter(&out, 100*time.Millisecond)
	frame := render.Render(padmap.Identity, pressure.Reading{1, 2, 3, 4})

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 25; i++ {
		p.Send(Event{Type: EventFrame, Time: start.Add(time.Duration(i) * 10 * time.Millisecond), Frame: &frame})
	}
	if got := strings.Count(out.String(), "[PADS]"); got != 3 {
		t.Fatalf("printed frames: got %d want 3\n%s", got, out.String())
	}
}

func TestConsolePrinterDisconnect(t *testing.T) {
	var out bytes.Buffer
	p := newConsolePrinter(&out, time.Millisecond)

	p.Send(Event{Type: EventStatus, Connection: &Connection{Port: "mock", Connected: true}})
	select {
	case <-p.disconnected:
		t.Fatal("closed while connected")
	default:
	}

	p.Send(Event{Type: EventStatus, Connection: &Connection{Port: "mock"}, Message: "disconnected"})
	p.Send(Event{Type: EventStatus, Connection: &Connection{Port: "mock"}, Message: "disconnected"})
	select {
	case <-p.disconnected:
	default:
		t.Fatal("not closed after disconnect")
	}
	if !strings.Contains(out.String(), "[STATUS] disconnected") {
		t.Fatalf("output: %q", out.String())
	}
}

func litPixels(img *image1bit.VerticalLSB, x0, y0, x1, y1 int) int {
	n := 0
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			if img.BitAt(x, y) == image1bit.On {
				n++
			}
		}
	}
	return n
}

func TestDrawPads(t *testing.T) {
	waiting := drawPads(displayState{selected: -1})
	if litPixels(waiting, 0, 0, displayW, displayH) == 0 {
		t.Fatal("waiting screen is blank")
	}
	if litPixels(waiting, barX, 0, displayW, displayH) != 0 {
		t.Fatal("bars drawn without data")
	}

	frame := render.Render(padmap.Identity, pressure.Reading{-500, 0, -250, math.NaN()})
	img := drawPads(displayState{frame: frame, haveFrame: true, selected: 0, rate: 100})

	rowOf := func(pad int) (int, int) {
		y := 11 + (pad+1)*lineH
		return y - lineH, y
	}
	full := barWidthFor(t, img, rowOf, 0)
	half := barWidthFor(t, img, rowOf, 2)
	if full != displayW-barX {
		t.Fatalf("full bar: got %d want %d", full, displayW-barX)
	}
	if half != (displayW-barX)/2 {
		t.Fatalf("half bar: got %d want %d", half, (displayW-barX)/2)
	}
	for _, pad := range []int{1, 3} {
		if w := barWidthFor(t, img, rowOf, pad); w != 0 {
			t.Fatalf("pad %d bar: got %d want 0", pad, w)
		}
	}
}

// barWidthFor counts lit columns right of the text in a pad row.
func barWidthFor(t *testing.T, img *image1bit.VerticalLSB, rowOf func(int) (int, int), pad int) int {
	t.Helper()
	y0, y1 := rowOf(pad)
	w := 0
	for x := barX; x < displayW; x++ {
		if litPixels(img, x, y0, x+1, y1) > 0 {
			w++
		}
	}
	return w
}

func TestDumpRecords(t *testing.T) {
	src := io.NopCloser(strings.NewReader("1,2,3,4\r\n-1.5,x,0\n-1,-2,inf,-4\n9,9"))
	var out bytes.Buffer

	ok, bad := DumpRecords(context.Background(), src, &out)
	if ok != 2 || bad != 1 {
		t.Fatalf("got %d ok %d malformed want 2 and 1", ok, bad)
	}
	want := "[RAW] ch0=1.00 ch1=2.00 ch2=3.00 ch3=4.00\n" +
		"[SKIP] \"-1.5,x,0\": malformed record\n" +
		"[RAW] ch0=-1.00 ch1=-2.00 ch2=NaN ch3=-4.00\n"
	if out.String() != want {
		t.Fatalf("got\n%s\nwant\n%s", out.String(), want)
	}
}

func TestRefreshLoopStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	tick := make(chan time.Time)
	draws := make(chan struct{}, 4)
	done := make(chan struct{})
	go func() {
		refreshLoop(ctx, tick, func() error {
			draws <- struct{}{}
			return errors.New("i2c nack")
		})
		close(done)
	}()

	tick <- time.Now()
	tick <- time.Now()
	if len(draws) < 1 {
		t.Fatal("no draw after tick")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("refresh loop still running after cancel")
	}
}
