// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package serialsrc delivers ordered text chunks from the pressure device.
package serialsrc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log"
	"slices"
	"sort"

	serial "github.com/jacobsa/go-serial/serial"
	bugserial "go.bug.st/serial"
)

// DefaultBaud is preselected in the connect dialog.
const DefaultBaud = 115200

// BaudRates offered to the user.
var BaudRates = []int{9600, 57600, 115200, 230400, 460800}

// MockPort opens the synthetic source instead of a device.
const MockPort = "mock"

// chunkSize bounds a single read; records may straddle reads.
const chunkSize = 256

var (
	ErrUnsupportedBaud = errors.New("unsupported baud rate")
	ErrDisconnected    = errors.New("source disconnected")
)

// ValidateBaud reports ErrUnsupportedBaud for rates not in BaudRates.
func ValidateBaud(baud int) error {
	if !slices.Contains(BaudRates, baud) {
		return fmt.Errorf("%w: %d", ErrUnsupportedBaud, baud)
	}
	return nil
}

// Open opens port at baud, 8N1. MockPort returns a synthetic source.
func Open(port string, baud int) (io.ReadCloser, error) {
	if err := ValidateBaud(baud); err != nil {
		return nil, err
	}
	if port == MockPort {
		return NewMockSource(MockOptions{}), nil
	}
	if port == "" {
		return nil, errors.New("no serial port selected")
	}

	opts := serial.OpenOptions{
		PortName:              port,
		BaudRate:              uint(baud),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}
	p, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", port, err)
	}
	log.Printf("serial: opened %s at %d baud", port, baud)
	return p, nil
}

// ListPorts returns the serial devices present on this machine, with MockPort last.
func ListPorts() ([]string, error) {
	ports, err := bugserial.GetPortsList()
	if err != nil {
		return []string{MockPort}, fmt.Errorf("failed to list serial ports: %w", err)
	}
	sort.Strings(ports)
	return append(ports, MockPort), nil
}

// Pump reads chunks from src and hands them to emit until src fails, emit
// returns false, or ctx is cancelled. Cancelling ctx closes src; no chunk is
// emitted after cancellation. A clean end of stream is ErrDisconnected.
func Pump(ctx context.Context, src io.ReadCloser, emit func(string) bool) error {
	stop := context.AfterFunc(ctx, func() { src.Close() })
	defer func() {
		if stop() {
			src.Close()
		}
	}()

	buf := make([]byte, chunkSize)
	for {
		n, err := src.Read(buf)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if n > 0 && !emit(string(buf[:n])) {
			return nil
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return ErrDisconnected
			}
			return fmt.Errorf("%w: %v", ErrDisconnected, err)
		}
	}
}

// Chunks adapts Pump to a sequence. The terminal error is logged.
func Chunks(ctx context.Context, src io.ReadCloser) iter.Seq[string] {
	return func(yield func(string) bool) {
		err := Pump(ctx, src, yield)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("serial: %v", err)
		}
	}
}
