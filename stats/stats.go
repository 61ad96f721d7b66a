/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package stats exposes the session core's operational counters as
// Prometheus metrics: packets sent/received, established/torn-down peers,
// journal recoveries and unrecoverable gaps, and worker backpressure
// drops. It implements session.Sink so a Manager can feed it lifecycle
// events directly alongside whatever other sinks the caller wires in.
package stats

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rtpmidi-go/core/session"
	log "github.com/sirupsen/logrus"
)

// Collector is a session.Sink that folds every peer's lifecycle and data
// events into a fixed set of Prometheus metrics.
type Collector struct {
	registry *prometheus.Registry

	midiReceived     prometheus.Counter
	gaps             *prometheus.CounterVec
	recovered        prometheus.Counter
	backpressureDrop *prometheus.CounterVec
	fatalErrors      *prometheus.CounterVec
	peerStates       *prometheus.GaugeVec
}

// NewCollector builds a Collector registered against a fresh Prometheus
// registry (kept private to this Collector so tests can construct many
// without colliding on the default global registry).
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		midiReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "rtpmidi_commands_received_total",
			Help: "MIDI commands delivered to the application, across all peers.",
		}),
		gaps: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rtpmidi_journal_gaps_total",
			Help: "Unrecoverable sequence gaps detected per peer.",
		}, []string{"peer"}),
		recovered: factory.NewCounter(prometheus.CounterOpts{
			Name: "rtpmidi_journal_recovered_total",
			Help: "Commands recovered from the Enhanced Recovery Journal rather than delivered live.",
		}),
		backpressureDrop: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rtpmidi_backpressure_drops_total",
			Help: "Tasks dropped because a peer's worker queue was full.",
		}, []string{"peer"}),
		fatalErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rtpmidi_fatal_errors_total",
			Help: "Fatal per-peer errors that forced a session closed.",
		}, []string{"peer"}),
		peerStates: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rtpmidi_peer_state",
			Help: "Current session.State per peer, as its State enum ordinal.",
		}, []string{"peer"}),
	}
}

// Emit implements session.Sink.
func (c *Collector) Emit(e session.Event) {
	switch e.Kind {
	case session.EventMidiReceived:
		c.midiReceived.Add(float64(len(e.Commands)))
		if e.Recovered {
			c.recovered.Add(float64(len(e.Commands)))
		}
	case session.EventGap:
		c.gaps.WithLabelValues(string(e.Peer)).Inc()
	case session.EventBackpressureDrop:
		c.backpressureDrop.WithLabelValues(string(e.Peer)).Inc()
	case session.EventFatalError:
		c.fatalErrors.WithLabelValues(string(e.Peer)).Inc()
	case session.EventPeerState:
		c.peerStates.WithLabelValues(string(e.Peer)).Set(float64(e.State))
	}
}

// Handler returns an http.Handler serving the collected metrics in the
// Prometheus exposition format, for mounting under /metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Serve starts a dedicated HTTP server exposing Handler, blocking until it
// returns (mirrors the teacher's JSONStats.Start shape, generalized from
// its bespoke JSON body to a Prometheus exposition).
func (c *Collector) Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	log.Infof("stats: serving Prometheus metrics on %s", addr)
	return http.ListenAndServe(addr, mux)
}
