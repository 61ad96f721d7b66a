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

// Command rtpmidid is the RTP-MIDI session daemon: it binds the control
// and data ports, accepts AppleMIDI invitations from peers, and exposes
// the decoded MIDI stream and session metrics to the rest of the host.
package main

import (
	"context"
	"flag"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/daemon"
	"github.com/rtpmidi-go/core/clock"
	"github.com/rtpmidi-go/core/session"
	"github.com/rtpmidi-go/core/stats"
	"github.com/rtpmidi-go/core/transport"
	log "github.com/sirupsen/logrus"
)

func main() {
	var (
		ipaddr         string
		controlPort    int
		sessionName    string
		workers        int
		queueSize      int
		monitoringAddr string
		logLevel       string
		configFile     string
	)

	flag.StringVar(&ipaddr, "ip", "0.0.0.0", "IP to bind the control/data ports on")
	flag.IntVar(&controlPort, "port", 5004, "Control port (data port is port+1)")
	flag.StringVar(&sessionName, "name", hostnameOrDefault(), "Session name advertised in IN/OK messages")
	flag.IntVar(&workers, "workers", 4, "Number of session worker shards")
	flag.IntVar(&queueSize, "queue", 256, "Per-worker task queue size")
	flag.StringVar(&monitoringAddr, "monitoringaddr", ":8888", "host:port to serve Prometheus metrics on")
	flag.StringVar(&logLevel, "loglevel", "info", "Log level: debug, info, warning, error")
	flag.StringVar(&configFile, "config", "", "Path to a YAML dynamic-config overlay")
	flag.Parse()

	switch logLevel {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warning":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		log.Fatalf("unrecognized log level: %s", logLevel)
	}

	sessionCfg := session.DefaultConfig()
	sessionCfg.SessionName = sessionName
	sessionCfg.ControlPort = controlPort

	dc, err := readDynamicConfig(configFile)
	if err != nil {
		log.Fatalf("reading dynamic config %s: %v", configFile, err)
	}
	if dc != nil {
		applyDynamicConfig(&sessionCfg, dc)
	}

	formulaSource := clock.DefaultQualityFormula
	if dc != nil && dc.QualityFormula != "" {
		formulaSource = dc.QualityFormula
	}
	if _, err := clock.NewQualityFormula(formulaSource); err != nil {
		log.Fatalf("invalid quality formula %q: %v", formulaSource, err)
	}

	collector := stats.NewCollector()
	go func() {
		if err := collector.Serve(monitoringAddr); err != nil {
			log.Errorf("stats server stopped: %v", err)
		}
	}()

	mgrCfg := transport.DefaultConfig()
	mgrCfg.ListenIP = net.ParseIP(ipaddr)
	mgrCfg.ControlPort = controlPort
	mgrCfg.Workers = workers
	mgrCfg.QueueSize = queueSize
	mgrCfg.Session = sessionCfg

	mgr := transport.New(mgrCfg, collector)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if supported, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Warningf("sd_notify failed: %v", err)
	} else if supported {
		log.Info("sent sd_notify ready")
	}

	log.Infof("rtpmidid listening on %s:%d/%d as %q", ipaddr, controlPort, controlPort+1, sessionName)
	if err := mgr.Start(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("session manager stopped: %v", err)
	}
}

func applyDynamicConfig(cfg *session.Config, dc *DynamicConfig) {
	if dc.SyncInterval > 0 {
		cfg.SyncInterval = dc.SyncInterval
	}
	if dc.FeedbackInterval > 0 {
		cfg.FeedbackInterval = dc.FeedbackInterval
	}
	if dc.InviteTimeout > 0 {
		cfg.InviteTimeout = dc.InviteTimeout
	}
	if dc.InviteRetries > 0 {
		cfg.InviteRetries = dc.InviteRetries
	}
	if dc.LivenessTimeout > 0 {
		cfg.LivenessTimeout = dc.LivenessTimeout
	}
	if dc.HistorySize > 0 {
		cfg.HistorySize = dc.HistorySize
	}
	if dc.RecoveryWindow > 0 {
		cfg.RecoveryWindow = dc.RecoveryWindow
	}
}

func hostnameOrDefault() string {
	h, err := os.Hostname()
	if err != nil {
		return "rtpmidid"
	}
	return h
}

