// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package serialsrc

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/relabs-tech/pressure_pads/internal/pressure"
	"github.com/relabs-tech/pressure_pads/internal/stream"
)

func TestValidateBaud(t *testing.T) {
	for _, b := range BaudRates {
		if err := ValidateBaud(b); err != nil {
			t.Fatalf("ValidateBaud(%d): %v", b, err)
		}
	}
	for _, b := range []int{0, 300, 115201} {
		if err := ValidateBaud(b); !errors.Is(err, ErrUnsupportedBaud) {
			t.Fatalf("ValidateBaud(%d) = %v; want ErrUnsupportedBaud", b, err)
		}
	}
	if !contains(BaudRates, DefaultBaud) {
		t.Fatalf("default baud %d not offered", DefaultBaud)
	}
}

func contains(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func TestOpenRejectsBadBaud(t *testing.T) {
	if _, err := Open(MockPort, 1234); !errors.Is(err, ErrUnsupportedBaud) {
		t.Fatalf("Open err = %v", err)
	}
	if _, err := Open("", DefaultBaud); err == nil {
		t.Fatalf("Open with no port succeeded")
	}
}

type readCloser struct {
	io.Reader
	closed bool
}

func (r *readCloser) Close() error {
	r.closed = true
	return nil
}

func TestPumpUntilEOF(t *testing.T) {
	src := &readCloser{Reader: strings.NewReader("1,2,3,4\n5,6,7,8\n")}
	var got strings.Builder
	err := Pump(context.Background(), src, func(c string) bool {
		got.WriteString(c)
		return true
	})
	if !errors.Is(err, ErrDisconnected) {
		t.Fatalf("Pump err = %v; want ErrDisconnected", err)
	}
	if got.String() != "1,2,3,4\n5,6,7,8\n" {
		t.Fatalf("chunks = %q", got.String())
	}
	if !src.closed {
		t.Fatalf("source not closed")
	}
}

func TestPumpStopsOnEmitFalse(t *testing.T) {
	src := NewMockSource(MockOptions{RateHz: 1000, Seed: 1})
	calls := 0
	err := Pump(context.Background(), src, func(string) bool {
		calls++
		return calls < 3
	})
	if err != nil {
		t.Fatalf("Pump err = %v", err)
	}
	if calls != 3 {
		t.Fatalf("emit called %d times; want 3", calls)
	}
}

func TestPumpCancel(t *testing.T) {
	src := NewMockSource(MockOptions{RateHz: 200, Seed: 2})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- Pump(ctx, src, func(string) bool { return true })
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Pump err = %v; want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Pump did not return after cancel")
	}
}

func TestMockSourceRecordsParse(t *testing.T) {
	src := NewMockSource(MockOptions{RateHz: 1000, MaxChunk: 5, Seed: 3})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	n := 0
	for rec := range stream.Records(Chunks(ctx, src)) {
		if _, err := pressure.Parse(rec); err != nil {
			t.Fatalf("mock record %q: %v", rec, err)
		}
		n++
		if n == 20 {
			break
		}
	}
	if n != 20 {
		t.Fatalf("got %d records", n)
	}
}

func TestMockRecordPressCycle(t *testing.T) {
	r, err := pressure.Parse(MockRecord(11 * time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if r[1] > -100 {
		t.Fatalf("channel 1 should be pressed at 11s: %v", r)
	}
	for _, c := range []int{0, 2, 3} {
		if r[c] <= -100 {
			t.Fatalf("channel %d pressed at 11s: %v", c, r)
		}
	}

	idle, _ := pressure.Parse(MockRecord(5 * time.Second))
	for c, v := range idle {
		if v <= -100 {
			t.Fatalf("channel %d pressed at 5s: %v", c, idle)
		}
	}
}
