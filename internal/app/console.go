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
	"sync"
	"syscall"
	"time"

	"github.com/relabs-tech/pressure_pads/internal/calibration"
	"github.com/relabs-tech/pressure_pads/internal/config"
	"github.com/relabs-tech/pressure_pads/internal/padmap"
)

// consoleFrameInterval limits how often frames are printed.
const consoleFrameInterval = 100 * time.Millisecond

// RunConsole streams port through the full pipeline and prints it to stdout
// until Ctrl+C or the source goes away. Use serialsrc.MockPort for no hardware.
func RunConsole(port string, baud int) error {
	cfg := config.Get()

	engine := calibration.New(padmap.NewStore(padmap.NewFileKV(cfg.MappingFile)), calibration.Options{
		Threshold: cfg.PressThresholdKPa,
		Hold:      cfg.HoldDuration(),
	})
	printer := newConsolePrinter(os.Stdout, consoleFrameInterval)
	session := NewSession(SessionOptions{Engine: engine, Sinks: []Sink{printer}})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := make(chan error, 1)
	go func() { runErr <- session.Run(ctx) }()

	if err := session.Connect(ctx, port, baud); err != nil {
		stop()
		<-runErr
		return err
	}
	log.Printf("console: streaming %s at %d baud, mapping %v", port, baud, engine.Mapping())

	select {
	case <-ctx.Done():
	case <-printer.disconnected:
	}
	stop()
	<-runErr
	log.Println("console: shutting down")
	return nil
}

// consolePrinter is a Sink writing one line per event, with frames throttled.
type consolePrinter struct {
	out          io.Writer
	every        time.Duration
	lastFrame    time.Time
	disconnected chan struct{}
	once         sync.Once
}

func newConsolePrinter(out io.Writer, every time.Duration) *consolePrinter {
	return &consolePrinter{out: out, every: every, disconnected: make(chan struct{})}
}

func (p *consolePrinter) Send(ev Event) {
	switch ev.Type {
	case EventFrame:
		if !p.lastFrame.IsZero() && ev.Time.Sub(p.lastFrame) < p.every {
			return
		}
		p.lastFrame = ev.Time
	case EventStatus:
		if ev.Connection != nil && !ev.Connection.Connected {
			fmt.Fprintf(p.out, "[STATUS] %s\n", ev.Message)
			p.once.Do(func() { close(p.disconnected) })
		}
		return
	}
	if line := formatEvent(ev); line != "" {
		fmt.Fprintln(p.out, line)
	}
}
