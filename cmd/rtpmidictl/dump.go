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

	"github.com/rtpmidi-go/core/session"
	"github.com/rtpmidi-go/core/transport"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var dumpPortFlag int

func init() {
	dumpCmd.Flags().IntVarP(&dumpPortFlag, "port", "p", 5004, "control port to listen on (data port is port+1)")
	rootCmd.AddCommand(dumpCmd)
}

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Accept invitations and print every decoded MIDI command received",
	RunE: func(cmd *cobra.Command, args []string) error {
		configureVerbosity()
		sink := &dumpSink{}

		cfg := transport.DefaultConfig()
		cfg.ListenIP = net.IPv4zero
		cfg.ControlPort = dumpPortFlag
		cfg.Session.SessionName = "rtpmidictl-dump"

		mgr := transport.New(cfg, sink)
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		log.Infof("dump: listening on %d/%d, Ctrl-C to stop", dumpPortFlag, dumpPortFlag+1)
		if err := mgr.Start(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	},
}

// dumpSink prints every decoded command and peer-state transition to
// stdout, the rtpmidictl analogue of the teacher's dump-received example.
type dumpSink struct{}

func (s *dumpSink) Emit(e session.Event) {
	switch e.Kind {
	case session.EventMidiReceived:
		for _, c := range e.Commands {
			tag := ""
			if e.Recovered {
				tag = " (recovered)"
			}
			fmt.Printf("[%s] seq=%d %s ch=%d d1=%d d2=%d%s\n", e.Peer, e.Sequence, c.Kind, c.Channel, c.Data1, c.Data2, tag)
		}
	case session.EventPeerState:
		fmt.Printf("[%s] state -> %s\n", e.Peer, e.State)
	case session.EventGap:
		fmt.Printf("[%s] gap at seq=%d (unrecoverable)\n", e.Peer, e.Sequence)
	}
}
