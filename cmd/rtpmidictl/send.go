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
	"fmt"
	"net"
	"time"

	"github.com/rtpmidi-go/core/clock"
	"github.com/rtpmidi-go/core/midi"
	"github.com/rtpmidi-go/core/session"
	"github.com/rtpmidi-go/core/wire"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	sendHostFlag string
	sendPortFlag int
	sendNoteFlag int
	sendWaitFlag time.Duration
)

func init() {
	sendCmd.Flags().StringVar(&sendHostFlag, "host", "127.0.0.1", "remote host to invite")
	sendCmd.Flags().IntVarP(&sendPortFlag, "port", "p", 5004, "remote control port (data port is port+1)")
	sendCmd.Flags().IntVar(&sendNoteFlag, "note", 60, "MIDI note number to send (note-on then note-off)")
	sendCmd.Flags().DurationVar(&sendWaitFlag, "timeout", 5*time.Second, "handshake timeout")
	rootCmd.AddCommand(sendCmd)
}

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Invite a remote peer, send one note-on/note-off, then disconnect",
	RunE: func(cmd *cobra.Command, args []string) error {
		configureVerbosity()
		return runSend()
	},
}

// udpSender implements session.DatagramSender over two dialed UDP sockets
// to one remote peer's control/data ports.
type udpSender struct {
	control *net.UDPConn
	data    *net.UDPConn
}

func (u *udpSender) SendControl(b []byte) error { _, err := u.control.Write(b); return err }
func (u *udpSender) SendData(b []byte) error    { _, err := u.data.Write(b); return err }

func runSend() error {
	controlAddr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", sendHostFlag, sendPortFlag))
	if err != nil {
		return fmt.Errorf("resolving control address: %w", err)
	}
	dataAddr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", sendHostFlag, sendPortFlag+1))
	if err != nil {
		return fmt.Errorf("resolving data address: %w", err)
	}

	controlConn, err := net.DialUDP("udp", nil, controlAddr)
	if err != nil {
		return fmt.Errorf("dialing control port: %w", err)
	}
	defer controlConn.Close()
	dataConn, err := net.DialUDP("udp", nil, dataAddr)
	if err != nil {
		return fmt.Errorf("dialing data port: %w", err)
	}
	defer dataConn.Close()

	sender := &udpSender{control: controlConn, data: dataConn}
	sink := &dumpSink{}
	formula, err := clock.NewQualityFormula(clock.DefaultQualityFormula)
	if err != nil {
		return err
	}

	cfg := session.DefaultConfig()
	cfg.SessionName = "rtpmidictl-send"
	sess := session.NewInitiator("remote", cfg, clock.NewMonotonic(cfg.TickRateHz), sender, sink, newClientSSRC(), formula)

	established := make(chan struct{}, 1)
	go pumpConn(controlConn, sess, false, established)
	go pumpConn(dataConn, sess, true, established)
	go tickLoop(sess)

	if err := sess.Connect(); err != nil {
		return fmt.Errorf("starting handshake: %w", err)
	}

	select {
	case <-established:
	case <-time.After(sendWaitFlag):
		return fmt.Errorf("handshake did not complete within %s", sendWaitFlag)
	}

	cmds := []midi.Command{
		{Kind: midi.NoteOn, Channel: 0, Data1: byte(sendNoteFlag), Data2: 100},
		{Kind: midi.NoteOff, Channel: 0, Data1: byte(sendNoteFlag), Data2: 64},
	}
	if err := sess.SendMIDI(cmds, []uint32{0, 4800}); err != nil {
		return fmt.Errorf("sending note: %w", err)
	}
	log.Infof("sent note %d to %s:%d", sendNoteFlag, sendHostFlag, sendPortFlag)

	time.Sleep(200 * time.Millisecond)
	sess.Close()
	return nil
}

func pumpConn(conn *net.UDPConn, sess *session.Session, isDataPort bool, established chan<- struct{}) {
	buf := make([]byte, 64*1024)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		payload := append([]byte(nil), buf[:n]...)
		if wire.IsAppleMidiControl(payload) {
			msg, err := wire.DecodeControlMessage(payload)
			if err != nil {
				continue
			}
			_ = sess.HandleControlMessage(msg, isDataPort)
			if sess.State() == session.Established {
				select {
				case established <- struct{}{}:
				default:
				}
			}
			continue
		}
		_ = sess.HandleDataPacket(payload)
	}
}

func tickLoop(sess *session.Session) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for range ticker.C {
		sess.Tick(time.Now())
		if sess.State() == session.Closed {
			return
		}
	}
}

func newClientSSRC() uint32 {
	return uint32(time.Now().UnixNano())
}
