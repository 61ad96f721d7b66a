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

package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/rtpmidi-go/core/session"
	"github.com/rtpmidi-go/core/transport"
	"github.com/spf13/cobra"
)

var peersPortFlag int

func init() {
	peersCmd.Flags().IntVarP(&peersPortFlag, "port", "p", 5004, "control port to listen on (data port is port+1)")
	rootCmd.AddCommand(peersCmd)
}

var peersCmd = &cobra.Command{
	Use:   "peers",
	Short: "Listen for invitations and render a live table of connected peers",
	RunE: func(cmd *cobra.Command, args []string) error {
		configureVerbosity()
		sink := &quietSink{}

		cfg := transport.DefaultConfig()
		cfg.ListenIP = net.IPv4zero
		cfg.ControlPort = peersPortFlag
		cfg.Session.SessionName = "rtpmidictl-peers"

		mgr := transport.New(cfg, sink)
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		go renderPeerTable(ctx, mgr)

		if err := mgr.Start(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	},
}

// quietSink discards data/lifecycle events: the peers command only cares
// about the Manager's Peers() snapshot, rendered on its own ticker.
type quietSink struct{}

func (quietSink) Emit(session.Event) {}

func renderPeerTable(ctx context.Context, mgr *transport.Manager) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			printPeerTable(mgr.Peers())
		}
	}
}

func printPeerTable(peers []transport.PeerInfo) {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header([]string{"peer", "state", "offset (ticks)", "rtt (ticks)", "quality"})
	for _, p := range peers {
		table.Append([]string{
			string(p.ID),
			p.State.String(),
			fmt.Sprintf("%.1f", p.Offset),
			fmt.Sprintf("%.1f", p.RTT),
			fmt.Sprintf("%.2f", p.Quality),
		})
	}
	table.Render()
}
