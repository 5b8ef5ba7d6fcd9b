// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/relabs-tech/pressure_pads/internal/pressure"
	"github.com/relabs-tech/pressure_pads/internal/serialsrc"
	"github.com/relabs-tech/pressure_pads/internal/stream"
)

// RunRawConsole prints every parsed record from port without mapping or
// calibration, until Ctrl+C or the source goes away.
func RunRawConsole(port string, baud int) error {
	src, err := serialsrc.Open(port, baud)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("console: raw records from %s at %d baud", port, baud)
	ok, bad := DumpRecords(ctx, src, os.Stdout)
	log.Printf("console: %d records, %d malformed", ok, bad)
	return nil
}

// DumpRecords reads src to the end and writes one line per record to out.
// It returns the number of parsed and malformed records.
func DumpRecords(ctx context.Context, src io.ReadCloser, out io.Writer) (ok, malformed int) {
	for rec := range stream.Records(serialsrc.Chunks(ctx, src)) {
		r, err := pressure.Parse(rec)
		if err != nil {
			malformed++
			fmt.Fprintf(out, "[SKIP] %q: %v\n", rec, err)
			continue
		}
		ok++
		fmt.Fprintf(out, "[RAW] %s\n", formatReading(r))
	}
	return ok, malformed
}

func formatReading(r pressure.Reading) string {
	var b strings.Builder
	for c, v := range r {
		if c > 0 {
			b.WriteByte(' ')
		}
		if r.Valid(c) {
			fmt.Fprintf(&b, "ch%d=%.2f", c, v)
		} else {
			fmt.Fprintf(&b, "ch%d=NaN", c)
		}
	}
	return b.String()
}
