/* Copyright 2024 The Feedline Authors
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package sio

import (
	"net/http"

	"github.com/feedline/feedline/core"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics counts signals in a private Prometheus registry, so a
// process can run several sources without collisions.
type Metrics struct {
	reg *prometheus.Registry

	signals   *prometheus.CounterVec
	readCount prometheus.Gauge
	curRun    prometheus.Gauge
	curLumi   prometheus.Gauge
}

// NewMetrics creates the registry and its collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	return &Metrics{
		reg: reg,
		signals: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "feedline_signals_total",
			Help: "Lifecycle signals by kind and phase",
		}, []string{"kind", "phase"}),
		readCount: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "feedline_events_read",
			Help: "Events delivered so far, per the latest progress report",
		}),
		curRun: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "feedline_current_run",
			Help: "Run currently being delivered",
		}),
		curLumi: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "feedline_current_lumi",
			Help: "Lumi currently being delivered",
		}),
	}
}

// Attach subscribes the sink.
func (m *Metrics) Attach(signals *core.Signals) {
	signals.Notify(func(sig core.Signal) {
		m.signals.WithLabelValues(string(sig.Kind), string(sig.Phase)).Inc()
		switch {
		case sig.Kind == core.SignalReport:
			m.readCount.Set(float64(sig.ReadCount))
		case sig.Kind == core.SignalRun && sig.Phase == core.PhaseBegin:
			m.curRun.Set(float64(sig.Run))
		case sig.Kind == core.SignalLumi && sig.Phase == core.PhaseBegin:
			m.curLumi.Set(float64(sig.Lumi))
		}
	})
}

// Handler serves the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for callers that mount
// their own handler.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }
