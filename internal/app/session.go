// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/relabs-tech/pressure_pads/internal/calibration"
	"github.com/relabs-tech/pressure_pads/internal/metrics"
	"github.com/relabs-tech/pressure_pads/internal/padmap"
	"github.com/relabs-tech/pressure_pads/internal/pressure"
	"github.com/relabs-tech/pressure_pads/internal/ratemeter"
	"github.com/relabs-tech/pressure_pads/internal/render"
	"github.com/relabs-tech/pressure_pads/internal/serialsrc"
	"github.com/relabs-tech/pressure_pads/internal/stream"
)

// ErrSessionClosed is returned by requests made after Run has returned.
var ErrSessionClosed = errors.New("session closed")

// OpenFunc opens a chunk source, normally serialsrc.Open.
type OpenFunc func(port string, baud int) (io.ReadCloser, error)

// SessionOptions wires a Session.
type SessionOptions struct {
	Engine  *calibration.Engine
	Metrics *metrics.Metrics // optional
	Open    OpenFunc         // defaults to serialsrc.Open
	Now     func() time.Time // defaults to time.Now
	Sinks   []Sink
}

// Snapshot is the session state as seen from outside.
type Snapshot struct {
	Mapping    padmap.Mapping           `json:"mapping"`
	Selected   int                      `json:"selected"`
	State      string                   `json:"state"`
	Frame      *render.Frame            `json:"frame,omitempty"`
	Rate       int                      `json:"rate"`
	Connection Connection               `json:"connection"`
	HoldingMs  [pressure.Channels]int64 `json:"holding_ms"`
}

// Session owns the streaming pipeline and the calibration engine. Every input
// (serial chunk, pad click, clear cache, connect, disconnect) is a message
// handled to completion by the Run goroutine, so none of the state below is
// locked.
type Session struct {
	engine  *calibration.Engine
	metrics *metrics.Metrics
	open    OpenFunc
	now     func() time.Time
	sinks   []Sink

	inbox chan any
	done  chan struct{}

	// owned by Run
	asm         stream.Reassembler
	meter       *ratemeter.Meter
	gen         int
	stopReader  context.CancelFunc
	conn        Connection
	lastReading pressure.Reading
	haveReading bool
	lastFrame   render.Frame
	rate        int
}

type chunkMsg struct {
	gen  int
	text string
}

type endedMsg struct {
	gen int
	err error
}

type clickMsg struct {
	pad   int
	reply chan error
}

type clearMsg struct {
	reply chan error
}

type connectMsg struct {
	port  string
	baud  int
	reply chan error
}

type disconnectMsg struct {
	reply chan error
}

type snapshotMsg struct {
	reply chan Snapshot
}

func NewSession(opts SessionOptions) *Session {
	if opts.Open == nil {
		opts.Open = serialsrc.Open
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Session{
		engine:  opts.Engine,
		metrics: opts.Metrics,
		open:    opts.Open,
		now:     opts.Now,
		sinks:   opts.Sinks,
		inbox:   make(chan any),
		done:    make(chan struct{}),
		meter:   ratemeter.New(opts.Now()),
	}
}

// AddSink registers s for future events. Call before Run.
func (s *Session) AddSink(sink Sink) {
	s.sinks = append(s.sinks, sink)
}

// Run processes messages until ctx is cancelled. The open source, if any, is
// closed on return.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.done)
	defer s.closeSource()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-s.inbox:
			s.handle(ctx, msg)
		}
	}
}

func (s *Session) handle(ctx context.Context, msg any) {
	switch m := msg.(type) {
	case chunkMsg:
		if m.gen == s.gen {
			s.handleChunk(m.text)
		}
	case endedMsg:
		if m.gen == s.gen {
			s.handleEnded(m.err)
		}
	case clickMsg:
		m.reply <- s.handleClick(m.pad)
	case clearMsg:
		m.reply <- s.handleClear()
	case connectMsg:
		m.reply <- s.handleConnect(ctx, m.port, m.baud)
	case disconnectMsg:
		s.closeSource()
		s.emitStatus("")
		m.reply <- nil
	case snapshotMsg:
		m.reply <- s.snapshot()
	default:
		log.Printf("session: unexpected message %T", msg)
	}
}

func (s *Session) handleChunk(text string) {
	for _, rec := range s.asm.Push(text) {
		r, err := pressure.Parse(rec)
		if err != nil {
			if s.metrics != nil {
				s.metrics.Malformed.Inc()
			}
			continue
		}
		s.handleReading(r)
	}
}

func (s *Session) handleReading(r pressure.Reading) {
	now := s.now()
	if s.metrics != nil {
		s.metrics.Records.Inc()
	}

	if rate, ok := s.meter.Tick(now); ok {
		s.rate = rate
		if s.metrics != nil {
			s.metrics.Rate.Set(float64(rate))
		}
		s.emit(Event{Type: EventRate, Time: now, Rate: ptr(rate)})
	}

	if b, ok := s.engine.HandleReading(r, now); ok {
		log.Printf("session: pad %d bound to channel %d", b.Pad, b.Channel)
		if s.metrics != nil {
			s.metrics.ObserveBinding(b.Pad)
		}
		msg := fmt.Sprintf("Pad %d bound to sensor %d", b.Pad+1, b.Channel)
		if b.SaveError != "" {
			msg += " (not saved: " + b.SaveError + ")"
		}
		s.emit(Event{
			Type:     EventBinding,
			Time:     now,
			Binding:  &b,
			Mapping:  ptr(s.engine.Mapping()),
			Selected: ptr(-1),
			Message:  msg,
		})
	}

	s.lastReading = r
	s.haveReading = true
	s.emitFrame(now)
}

func (s *Session) emitFrame(now time.Time) {
	s.lastFrame = render.Render(s.engine.Mapping(), s.lastReading)
	if s.metrics != nil {
		for _, pad := range s.lastFrame {
			if pad.Valid {
				s.metrics.ObservePad(pad.Pad, pad.Value)
			}
		}
	}
	frame := s.lastFrame
	s.emit(Event{Type: EventFrame, Time: now, Frame: &frame, Selected: ptr(s.selected())})
}

func (s *Session) handleEnded(err error) {
	log.Printf("session: source %s ended: %v", s.conn.Port, err)
	s.closeSource()
	msg := "disconnected"
	if err != nil && !errors.Is(err, serialsrc.ErrDisconnected) {
		msg = err.Error()
	}
	s.emitStatus(msg)
}

func (s *Session) handleClick(pad int) error {
	if _, err := s.engine.Click(pad); err != nil {
		return err
	}
	s.emitStatus("")
	return nil
}

func (s *Session) handleClear() error {
	err := s.engine.ClearCache()
	if err != nil {
		log.Printf("session: clear cache: %v", err)
	}
	now := s.now()
	s.emit(Event{
		Type:    EventNotice,
		Time:    now,
		Mapping: ptr(s.engine.Mapping()),
		Message: "Cache cleared – mapping reset.",
	})
	if s.haveReading {
		s.emitFrame(now)
	}
	return err
}

func (s *Session) handleConnect(ctx context.Context, port string, baud int) error {
	if err := serialsrc.ValidateBaud(baud); err != nil {
		return err
	}
	s.closeSource()

	src, err := s.open(port, baud)
	if err != nil {
		s.emitStatus(err.Error())
		return err
	}

	s.gen++
	gen := s.gen
	readerCtx, cancel := context.WithCancel(ctx)
	s.stopReader = cancel
	s.asm.Reset()
	s.meter.Reset(s.now())
	s.conn = Connection{Port: port, Baud: baud, Connected: true}
	if s.metrics != nil {
		s.metrics.Connected.Set(1)
	}
	log.Printf("session: connected to %s at %d baud", port, baud)

	go s.read(ctx, readerCtx, gen, src)
	s.emitStatus("")
	return nil
}

// read pumps src into the inbox. runCtx bounds delivery of the final
// endedMsg; readerCtx stops the pump itself.
func (s *Session) read(runCtx, readerCtx context.Context, gen int, src io.ReadCloser) {
	err := serialsrc.Pump(readerCtx, src, func(text string) bool {
		select {
		case s.inbox <- chunkMsg{gen: gen, text: text}:
			return true
		case <-readerCtx.Done():
			return false
		}
	})
	if readerCtx.Err() != nil {
		return
	}
	select {
	case s.inbox <- endedMsg{gen: gen, err: err}:
	case <-runCtx.Done():
	}
}

// closeSource stops the reader; chunks already in flight carry a stale
// generation and are dropped.
func (s *Session) closeSource() {
	if s.stopReader != nil {
		s.stopReader()
		s.stopReader = nil
	}
	s.gen++
	s.conn.Connected = false
	if s.metrics != nil {
		s.metrics.Connected.Set(0)
	}
}

func (s *Session) selected() int {
	if pad, ok := s.engine.Target(); ok {
		return pad
	}
	return -1
}

func (s *Session) emitStatus(message string) {
	conn := s.conn
	s.emit(Event{
		Type:       EventStatus,
		Time:       s.now(),
		Selected:   ptr(s.selected()),
		Mapping:    ptr(s.engine.Mapping()),
		Connection: &conn,
		Message:    message,
	})
}

func (s *Session) emit(ev Event) {
	for _, sink := range s.sinks {
		sink.Send(ev)
	}
}

func (s *Session) snapshot() Snapshot {
	snap := Snapshot{
		Mapping:    s.engine.Mapping(),
		Selected:   s.selected(),
		State:      s.engine.State().String(),
		Rate:       s.rate,
		Connection: s.conn,
	}
	if s.haveReading {
		frame := s.lastFrame
		snap.Frame = &frame
	}
	for c, d := range s.engine.Holding(s.now()) {
		snap.HoldingMs[c] = d.Milliseconds()
	}
	return snap
}

func (s *Session) request(ctx context.Context, msg any) error {
	select {
	case s.inbox <- msg:
		return nil
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func await[T any](ctx context.Context, s *Session, reply chan T) (T, error) {
	var zero T
	select {
	case v := <-reply:
		return v, nil
	case <-s.done:
		return zero, ErrSessionClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Click arms, re-targets or cancels calibration for pad.
func (s *Session) Click(ctx context.Context, pad int) error {
	reply := make(chan error, 1)
	if err := s.request(ctx, clickMsg{pad: pad, reply: reply}); err != nil {
		return err
	}
	err, waitErr := await(ctx, s, reply)
	if waitErr != nil {
		return waitErr
	}
	return err
}

// ClearCache resets the mapping to identity and removes the persisted copy.
func (s *Session) ClearCache(ctx context.Context) error {
	reply := make(chan error, 1)
	if err := s.request(ctx, clearMsg{reply: reply}); err != nil {
		return err
	}
	err, waitErr := await(ctx, s, reply)
	if waitErr != nil {
		return waitErr
	}
	return err
}

// Connect opens port at baud, replacing any open source.
func (s *Session) Connect(ctx context.Context, port string, baud int) error {
	reply := make(chan error, 1)
	if err := s.request(ctx, connectMsg{port: port, baud: baud, reply: reply}); err != nil {
		return err
	}
	err, waitErr := await(ctx, s, reply)
	if waitErr != nil {
		return waitErr
	}
	return err
}

// Disconnect closes the source. No events from it are emitted afterwards.
func (s *Session) Disconnect(ctx context.Context) error {
	reply := make(chan error, 1)
	if err := s.request(ctx, disconnectMsg{reply: reply}); err != nil {
		return err
	}
	_, err := await(ctx, s, reply)
	return err
}

// State returns a snapshot of the session.
func (s *Session) State(ctx context.Context) (Snapshot, error) {
	reply := make(chan Snapshot, 1)
	if err := s.request(ctx, snapshotMsg{reply: reply}); err != nil {
		return Snapshot{}, err
	}
	return await(ctx, s, reply)
}
