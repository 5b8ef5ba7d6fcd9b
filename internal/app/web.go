// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/relabs-tech/pressure_pads/internal/calibration"
	"github.com/relabs-tech/pressure_pads/internal/config"
	"github.com/relabs-tech/pressure_pads/internal/metrics"
	"github.com/relabs-tech/pressure_pads/internal/padmap"
	"github.com/relabs-tech/pressure_pads/internal/pressure"
	"github.com/relabs-tech/pressure_pads/internal/render"
	"github.com/relabs-tech/pressure_pads/internal/serialsrc"
)

// FirmwareSketch is served at /esp32-code.
const FirmwareSketch = `// Stream "7.66,2.80,-357.10,2.52"-style lines at 115200 baud.
// Replace with your own firmware as needed.
`

// Server bundles what the HTTP routes need.
type Server struct {
	Session   *Session
	Hub       *Hub
	Metrics   *metrics.Metrics
	WebRoot   string
	ListPorts func() ([]string, error) // defaults to serialsrc.ListPorts
}

type portsResponse struct {
	Ports       []string `json:"ports"`
	BaudRates   []int    `json:"baud_rates"`
	DefaultBaud int      `json:"default_baud"`
	Error       string   `json:"error,omitempty"`
}

type connectRequest struct {
	Port string `json:"port"`
	Baud int    `json:"baud"`
}

// Router returns the HTTP handler for the UI, the JSON API and /metrics.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/ws", HandleWS(s.Session, s.Hub))
	r.HandleFunc("/api/state", s.handleState).Methods("GET")
	r.HandleFunc("/api/ports", s.handlePorts).Methods("GET")
	r.HandleFunc("/api/pads/{pad}/click", s.handleClick).Methods("POST")
	r.HandleFunc("/api/clear-cache", s.handleClearCache).Methods("POST")
	r.HandleFunc("/api/connect", s.handleConnect).Methods("POST")
	r.HandleFunc("/api/disconnect", s.handleDisconnect).Methods("POST")
	r.HandleFunc("/api/heatmap.png", s.handleHeatmapPNG).Methods("GET")
	r.HandleFunc("/esp32-code", handleFirmware).Methods("GET")
	if s.Metrics != nil {
		r.Handle("/metrics", s.Metrics.Handler()).Methods("GET")
	}
	if s.WebRoot != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(s.WebRoot)))
	}
	return r
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	snap, err := s.Session.State(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handlePorts(w http.ResponseWriter, r *http.Request) {
	list := s.ListPorts
	if list == nil {
		list = serialsrc.ListPorts
	}
	resp := portsResponse{BaudRates: serialsrc.BaudRates, DefaultBaud: serialsrc.DefaultBaud}
	ports, err := list()
	resp.Ports = ports
	if err != nil {
		// the UI still offers the mock source
		log.Printf("web: %v", err)
		resp.Error = "Serial port enumeration is not supported here: " + err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	pad, err := strconv.Atoi(mux.Vars(r)["pad"])
	if err != nil {
		http.Error(w, "pad must be an integer", http.StatusBadRequest)
		return
	}
	s.respond(w, s.Session.Click(r.Context(), pad))
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	s.respond(w, s.Session.ClearCache(r.Context()))
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.Baud == 0 {
		req.Baud = serialsrc.DefaultBaud
	}
	s.respond(w, s.Session.Connect(r.Context(), req.Port, req.Baud))
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	s.respond(w, s.Session.Disconnect(r.Context()))
}

func (s *Server) handleHeatmapPNG(w http.ResponseWriter, r *http.Request) {
	snap, err := s.Session.State(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	frame := render.Render(snap.Mapping, noReading())
	if snap.Frame != nil {
		frame = *snap.Frame
	}
	opts := render.DefaultSnapshotOptions
	opts.Selected = snap.Selected

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := render.WritePNG(w, frame, opts); err != nil {
		log.Printf("web: png encode error: %v", err)
	}
}

func handleFirmware(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, FirmwareSketch)
}

// respond maps session errors onto status codes.
func (s *Server) respond(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, calibration.ErrInvalidPad), errors.Is(err, serialsrc.ErrUnsupportedBaud):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrSessionClosed):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		http.Error(w, err.Error(), http.StatusBadGateway)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Printf("web: json encode error: %v", err)
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(b, '\n'))
}

func noReading() pressure.Reading {
	nan := math.NaN()
	return pressure.Reading{nan, nan, nan, nan}
}

// RunServer runs the heat-map server until SIGINT or SIGTERM.
func RunServer(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	kv := padmap.NewFileKV(cfg.MappingFile)
	engine := calibration.New(padmap.NewStore(kv), calibration.Options{
		Threshold: cfg.PressThresholdKPa,
		Hold:      cfg.HoldDuration(),
	})
	log.Printf("web: mapping %v loaded from %s", engine.Mapping(), kv.Path())

	m := metrics.New()
	hub := NewHub()
	session := NewSession(SessionOptions{Engine: engine, Metrics: m, Sinks: []Sink{hub}})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MQTTBroker != "" {
		opts := mqtt.NewClientOptions().
			AddBroker(cfg.MQTTBroker).
			SetClientID(cfg.MQTTClientIDServer).
			SetAutoReconnect(true)
		client := mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
		}
		log.Printf("mqtt: connected to broker at %s", cfg.MQTTBroker)
		defer client.Disconnect(250)

		pub := NewMQTTSink(client, TopicsFromConfig(cfg))
		session.AddSink(pub)
		go pub.Run(ctx)
	}

	runErr := make(chan error, 1)
	go func() { runErr <- session.Run(ctx) }()

	if cfg.SerialAutoconnect || cfg.MockSource {
		port := cfg.SerialPort
		if cfg.MockSource {
			port = serialsrc.MockPort
		}
		if err := session.Connect(ctx, port, cfg.SerialBaudRate); err != nil {
			log.Printf("web: autoconnect to %s failed: %v", port, err)
		}
	}

	srv := &Server{Session: session, Hub: hub, Metrics: m, WebRoot: cfg.WebRoot}
	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           handlers.LoggingHandler(log.Writer(), srv.Router()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("web: server listening on %s", httpSrv.Addr)
		serveErr <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		stop()
		<-runErr
		return err
	case <-ctx.Done():
	}

	log.Println("web: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("web: shutdown error: %v", err)
	}
	<-runErr
	return nil
}
