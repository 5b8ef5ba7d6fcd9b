// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package metrics exposes pipeline counters for Prometheus.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors updated by the session.
type Metrics struct {
	Records   prometheus.Counter
	Malformed prometheus.Counter
	Bindings  *prometheus.CounterVec
	Rate      prometheus.Gauge
	PadValue  *prometheus.GaugeVec
	Connected prometheus.Gauge

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Records: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pressure_pads",
			Name:      "records_total",
			Help:      "Readings accepted from the serial stream.",
		}),
		Malformed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pressure_pads",
			Name:      "malformed_records_total",
			Help:      "Records dropped for having too few fields or bad framing.",
		}),
		Bindings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pressure_pads",
			Name:      "bindings_total",
			Help:      "Completed calibration gestures, by pad.",
		}, []string{"pad"}),
		Rate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pressure_pads",
			Name:      "reading_rate_hz",
			Help:      "Readings received in the last rate window.",
		}),
		PadValue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "pressure_pads",
			Name:      "pad_pressure_kpa",
			Help:      "Latest pressure shown on each pad.",
		}, []string{"pad"}),
		Connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pressure_pads",
			Name:      "source_connected",
			Help:      "1 while a serial source is open.",
		}),
		gatherer: reg,
	}
	reg.MustRegister(m.Records, m.Malformed, m.Bindings, m.Rate, m.PadValue, m.Connected)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// ObservePad records the value shown on pad p.
func (m *Metrics) ObservePad(p int, v float64) {
	m.PadValue.WithLabelValues(strconv.Itoa(p)).Set(v)
}

// ObserveBinding counts a completed gesture on pad p.
func (m *Metrics) ObserveBinding(p int) {
	m.Bindings.WithLabelValues(strconv.Itoa(p)).Inc()
}
