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

// Package session implements the per-peer AppleMIDI state machine: the
// handshake across the control and data ports, the CK clock-sync
// exchange, RS liveness feedback, and MIDI send/receive delegating to the
// journal engine. One Session exists per remote (control-addr, ssrc)
// pair; it is driven by a DatagramSender the owning manager binds to that
// peer's addresses and by periodic Tick calls carrying the current clock
// reading.
package session

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/rtpmidi-go/core/clock"
	"github.com/rtpmidi-go/core/errs"
	"github.com/rtpmidi-go/core/journal"
	"github.com/rtpmidi-go/core/midi"
	"github.com/rtpmidi-go/core/wire"
)

// State is a Session's position in the AppleMIDI handshake/teardown
// lifecycle.
type State int

const (
	Idle State = iota
	InvitedControl
	InvitedData
	Syncing
	Established
	Closing
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case InvitedControl:
		return "InvitedControl"
	case InvitedData:
		return "InvitedData"
	case Syncing:
		return "Syncing"
	case Established:
		return "Established"
	case Closing:
		return "Closing"
	case Closed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// Config holds the tunables from spec §6, all with the documented
// defaults.
type Config struct {
	SessionName      string
	ControlPort      int
	InviteTimeout    time.Duration
	InviteRetries    int
	SyncInterval     time.Duration
	FeedbackInterval time.Duration
	LivenessTimeout  time.Duration
	HistorySize      int
	RecoveryWindow   int
	TickRateHz       uint64
}

// DefaultConfig returns the spec §6 defaults, with SessionName left blank
// (callers typically fill it with the host name).
func DefaultConfig() Config {
	return Config{
		ControlPort:      5004,
		InviteTimeout:    5 * time.Second,
		InviteRetries:    12,
		SyncInterval:     10 * time.Second,
		FeedbackInterval: 1 * time.Second,
		LivenessTimeout:  30 * time.Second,
		HistorySize:      64,
		RecoveryWindow:   64,
		TickRateHz:       clock.DefaultTickRateHz,
	}
}

// DatagramSender transmits already-encoded AppleMIDI/RTP-MIDI frames to
// this Session's bound peer addresses. Supplied by the owning manager.
type DatagramSender interface {
	SendControl(b []byte) error
	SendData(b []byte) error
}

// PeerID identifies a Session for logging and sink events.
type PeerID string

// EventKind enumerates the lifecycle/data events a Session emits to its
// Sink (spec §6/§7).
type EventKind int

const (
	EventMidiReceived EventKind = iota
	EventPeerState
	EventGap
	EventBackpressureDrop
	EventFatalError
)

// Event is delivered to a Sink. Only the fields relevant to Kind are set.
type Event struct {
	Kind           EventKind
	Peer           PeerID
	Sequence       uint16
	Commands       []midi.Command
	Timestamp      uint64
	Recovered      bool
	State          State
	LostRangeStart uint16
	LostRangeEnd   uint16
	Err            error
}

// Sink receives decoded commands and lifecycle events from a Session.
type Sink interface {
	Emit(Event)
}

// Session is one remote peer's AppleMIDI state machine.
type Session struct {
	cfg       Config
	clock     clock.Clock
	transport DatagramSender
	sink      Sink

	id         PeerID
	peerName   string
	localSSRC  uint32
	remoteSSRC uint32

	state          State
	initiatorToken uint32
	inviteAttempts int
	lastInviteSent time.Time

	outSeq       uint16
	senderHistory *journal.SenderHistory
	receiver      *journal.ReceiverJournal
	lastAckedSeq  uint16
	ackKnown      bool
	lastRecvStatus byte
	sysexAccum     []byte

	syncTS0        uint64
	lastSyncAt     time.Time
	failedSyncs    int
	syncTracker    *clock.SyncTracker
	lastFeedbackAt time.Time
	lastRxAt       time.Time
}

const maxSegmentedSysExBytes = 64 * 1024

// NewInitiator creates a Session that will drive the handshake as the
// inviting side, beginning in Idle.
func NewInitiator(id PeerID, cfg Config, clk clock.Clock, transport DatagramSender, sink Sink, localSSRC uint32, formula *clock.QualityFormula) *Session {
	return newSession(id, cfg, clk, transport, sink, localSSRC, formula)
}

// NewResponder creates a Session for a peer that sent us the first IN,
// beginning in Idle and waiting for that control-port invitation to be
// handled via HandleControlMessage.
func NewResponder(id PeerID, cfg Config, clk clock.Clock, transport DatagramSender, sink Sink, localSSRC uint32, formula *clock.QualityFormula) *Session {
	return newSession(id, cfg, clk, transport, sink, localSSRC, formula)
}

func newSession(id PeerID, cfg Config, clk clock.Clock, transport DatagramSender, sink Sink, localSSRC uint32, formula *clock.QualityFormula) *Session {
	return &Session{
		cfg:           cfg,
		clock:         clk,
		transport:     transport,
		sink:          sink,
		id:            id,
		localSSRC:     localSSRC,
		state:         Idle,
		senderHistory: journal.NewSenderHistory(cfg.HistorySize),
		receiver:      journal.NewReceiverJournal(cfg.RecoveryWindow),
		syncTracker:   clock.NewSyncTracker(formula, 0.3),
	}
}

// ID returns the Session's peer identifier.
func (s *Session) ID() PeerID { return s.id }

// State returns the Session's current lifecycle state.
func (s *Session) State() State { return s.state }

// RemoteSSRC returns the peer's advertised SSRC, valid once known.
func (s *Session) RemoteSSRC() uint32 { return s.remoteSSRC }

func (s *Session) setState(next State) {
	if s.state == next {
		return
	}
	s.state = next
	s.sink.Emit(Event{Kind: EventPeerState, Peer: s.id, State: next})
}

// Connect begins the outbound handshake: sends IN on the control port
// with a fresh initiator token.
func (s *Session) Connect() error {
	if s.state != Idle {
		return errs.New(errs.KindProtocol, "session.Connect", fmt.Errorf("cannot connect from state %s", s.state), "")
	}
	s.initiatorToken = rand.Uint32()
	s.inviteAttempts = 0
	return s.sendInvite()
}

func (s *Session) sendInvite() error {
	inv := wire.NewInvitation(s.initiatorToken, s.localSSRC, s.cfg.SessionName)
	b, err := inv.MarshalBinary()
	if err != nil {
		return errs.New(errs.KindMalformed, "session.sendInvite", err, "")
	}
	if s.state == Idle {
		s.setState(InvitedControl)
	}
	var sendErr error
	if s.state == Idle || s.state == InvitedControl {
		sendErr = s.transport.SendControl(b)
	} else {
		sendErr = s.transport.SendData(b)
	}
	if sendErr != nil {
		return errs.New(errs.KindTransient, "session.sendInvite", sendErr, "")
	}
	s.inviteAttempts++
	s.lastInviteSent = time.Now()
	return nil
}

// HandleControlMessage processes a decoded AppleMIDI control frame
// received on either the control or data port.
func (s *Session) HandleControlMessage(msg wire.ControlMessage, fromDataPort bool) error {
	s.lastRxAt = time.Now()
	switch {
	case msg.Invitation != nil:
		return s.handleInvitation(msg.Invitation, fromDataPort)
	case msg.InvitationAccepted != nil:
		return s.handleAccepted(msg.InvitationAccepted, fromDataPort)
	case msg.InvitationRejected != nil:
		s.setState(Closed)
		return nil
	case msg.Exit != nil:
		s.setState(Closing)
		s.setState(Closed)
		return nil
	case msg.Sync != nil:
		return s.handleSync(msg.Sync)
	case msg.ReceiverFeedback != nil:
		s.handleFeedback(msg.ReceiverFeedback)
		return nil
	default:
		return errs.Protocolf("session.HandleControlMessage", "unrecognized control message")
	}
}

func (s *Session) handleInvitation(inv *wire.Invitation, fromDataPort bool) error {
	s.remoteSSRC = inv.Header.SSRC
	s.peerName = inv.Name
	s.initiatorToken = inv.Header.InitiatorToken
	ok := wire.NewInvitationAccepted(s.initiatorToken, s.localSSRC, s.cfg.SessionName)
	b, err := ok.MarshalBinary()
	if err != nil {
		return errs.New(errs.KindMalformed, "session.handleInvitation", err, "")
	}
	if fromDataPort {
		// We are the responder: wait for the initiator's first CK.
		s.setState(Syncing)
		s.lastRxAt = time.Now()
	} else {
		s.setState(InvitedData)
	}
	var sendErr error
	if fromDataPort {
		sendErr = s.transport.SendData(b)
	} else {
		sendErr = s.transport.SendControl(b)
	}
	if sendErr != nil {
		return errs.New(errs.KindTransient, "session.handleInvitation", sendErr, "")
	}
	return nil
}

func (s *Session) handleAccepted(ok *wire.InvitationAccepted, fromDataPort bool) error {
	if ok.Header.InitiatorToken != s.initiatorToken {
		return errs.Protocolf("session.handleAccepted", "token mismatch: want %#x got %#x", s.initiatorToken, ok.Header.InitiatorToken)
	}
	s.remoteSSRC = ok.Header.SSRC
	s.peerName = ok.Name

	switch s.state {
	case InvitedControl:
		s.setState(InvitedData)
		return s.sendInvite()
	case InvitedData:
		s.beginSync()
		return nil
	default:
		return errs.Protocolf("session.handleAccepted", "unexpected OK in state %s", s.state)
	}
}

func (s *Session) beginSync() {
	s.setState(Syncing)
	s.lastRxAt = time.Now()
	_ = s.sendSyncRound0()
}

func (s *Session) sendSyncRound0() error {
	s.syncTS0 = s.clock.NowTicks()
	msg := wire.Sync{SSRC: s.localSSRC, Count: 0, Timestamps: [3]uint64{s.syncTS0, 0, 0}}
	b, err := msg.MarshalBinary()
	if err != nil {
		return errs.New(errs.KindMalformed, "session.sendSyncRound0", err, "")
	}
	if err := s.transport.SendData(b); err != nil {
		return errs.New(errs.KindTransient, "session.sendSyncRound0", err, "")
	}
	s.lastSyncAt = time.Now()
	return nil
}

func (s *Session) handleSync(msg *wire.Sync) error {
	now := s.clock.NowTicks()
	switch msg.Count {
	case 0:
		reply := wire.Sync{SSRC: s.localSSRC, Count: 1, Timestamps: [3]uint64{msg.Timestamps[0], now, 0}}
		b, err := reply.MarshalBinary()
		if err != nil {
			return errs.New(errs.KindMalformed, "session.handleSync", err, "")
		}
		if err := s.transport.SendData(b); err != nil {
			return errs.New(errs.KindTransient, "session.handleSync", err, "")
		}
	case 1:
		reply := wire.Sync{SSRC: s.localSSRC, Count: 2, Timestamps: [3]uint64{msg.Timestamps[0], msg.Timestamps[1], now}}
		b, err := reply.MarshalBinary()
		if err != nil {
			return errs.New(errs.KindMalformed, "session.handleSync", err, "")
		}
		if err := s.transport.SendData(b); err != nil {
			return errs.New(errs.KindTransient, "session.handleSync", err, "")
		}
		s.completeSyncRound(msg.Timestamps[0], msg.Timestamps[1], now)
	case 2:
		s.completeSyncRound(msg.Timestamps[0], msg.Timestamps[1], msg.Timestamps[2])
	default:
		return errs.Protocolf("session.handleSync", "unexpected CK count %d", msg.Count)
	}
	return nil
}

func (s *Session) completeSyncRound(ts0, ts1, ts2 uint64) {
	offset, rtt := clock.ComputeOffsetRTT(ts0, ts1, ts2)
	s.syncTracker.RecordRound(offset, rtt)
	s.failedSyncs = 0
	s.setState(Established)
}

// Offset returns the current smoothed clock-offset estimate, in ticks.
func (s *Session) Offset() float64 { return s.syncTracker.Offset() }

// RTT returns the current smoothed round-trip-time estimate, in ticks.
func (s *Session) RTT() float64 { return s.syncTracker.RTT() }

// Quality scores current sync convergence via the configured
// QualityFormula. Errors if no CK round has completed yet.
func (s *Session) Quality() (float64, error) { return s.syncTracker.Quality() }

func (s *Session) handleFeedback(fb *wire.ReceiverFeedback) {
	s.lastAckedSeq = fb.SequenceNumber
	s.ackKnown = true
}

// SendMIDI builds, journals, and transmits a batch of MIDI commands on
// the data port.
func (s *Session) SendMIDI(commands []midi.Command, deltas []uint32) error {
	if s.state != Established {
		return errs.Policyf("session.SendMIDI", "peer %s not established (state %s)", s.id, s.state)
	}
	if len(commands) != len(deltas) {
		return fmt.Errorf("session.SendMIDI: %d commands but %d deltas", len(commands), len(deltas))
	}
	timed := make([]wire.TimedCommand, len(commands))
	for i, c := range commands {
		timed[i] = wire.TimedCommand{DeltaTicks: deltas[i], Command: c}
	}

	seq := s.outSeq
	s.outSeq++

	j := s.senderHistory.BuildJournal(s.lastAckedSeq, s.ackKnown)
	header := wire.NewRtpHeader(seq, uint32(s.clock.NowTicks()), s.localSSRC, false)
	var journalArg *wire.EnhancedJournal
	if len(j.Entries) > 0 {
		journalArg = &j
	}
	buf, err := wire.EncodeRtpMidiPacket(header, timed, journalArg)
	if err != nil {
		return errs.New(errs.KindMalformed, "session.SendMIDI", err, "")
	}
	if err := s.transport.SendData(buf); err != nil {
		return errs.New(errs.KindTransient, "session.SendMIDI", err, "")
	}
	s.senderHistory.Append(seq, timed)
	return nil
}

// HandleDataPacket decodes and journals an inbound RTP-MIDI data-port
// packet, emitting recovered and live commands to the sink in order.
func (s *Session) HandleDataPacket(buf []byte) error {
	s.lastRxAt = time.Now()
	if s.state != Established && s.state != Syncing {
		return nil
	}
	pkt, err := wire.DecodeRtpMidiPacket(buf, s.lastRecvStatus)
	if err != nil {
		return nil // Malformed: drop, never fault the session (spec §4.4).
	}
	if len(pkt.Commands) > 0 {
		last := pkt.Commands[len(pkt.Commands)-1].Command
		if rs := runningStatusOf(last); rs != 0 {
			s.lastRecvStatus = rs
		}
	}
	if len(pkt.TrailingSysEx) > 0 {
		s.sysexAccum = append(s.sysexAccum, pkt.TrailingSysEx...)
		if len(s.sysexAccum) > maxSegmentedSysExBytes {
			s.sysexAccum = nil
		}
	}

	emitted, gap := s.receiver.Process(pkt.Header.SequenceNumber, pkt.Commands, pkt.Journal)
	if gap {
		s.sink.Emit(Event{Kind: EventGap, Peer: s.id, Sequence: pkt.Header.SequenceNumber})
	}
	for _, e := range emitted {
		cmds := make([]midi.Command, len(e.Commands))
		for i, tc := range e.Commands {
			cmds[i] = tc.Command
		}
		s.sink.Emit(Event{
			Kind:      EventMidiReceived,
			Peer:      s.id,
			Sequence:  e.SequenceNumber,
			Commands:  cmds,
			Timestamp: uint64(pkt.Header.Timestamp),
			Recovered: e.Recovered,
		})
	}
	return nil
}

func runningStatusOf(c midi.Command) byte {
	status, _, err := midi.StatusByte(c)
	if err != nil || !midi.AllowsRunningStatus(status) {
		return 0
	}
	return status
}

// Tick drives the Session's periodic behavior: handshake retries, CK
// cadence, RS feedback, and liveness. Callers invoke it regularly (the
// Session Manager's periodic task loop, spec §4.5).
func (s *Session) Tick(now time.Time) {
	switch s.state {
	case InvitedControl, InvitedData:
		s.tickHandshakeRetry(now)
	case Syncing, Established:
		s.tickLiveness(now)
		s.tickSync(now)
		s.tickFeedback(now)
	}
}

func (s *Session) tickHandshakeRetry(now time.Time) {
	if now.Sub(s.lastInviteSent) < s.cfg.InviteTimeout {
		return
	}
	if s.inviteAttempts >= s.cfg.InviteRetries {
		s.setState(Closed)
		return
	}
	_ = s.sendInvite()
}

func (s *Session) tickLiveness(now time.Time) {
	if s.lastRxAt.IsZero() {
		return
	}
	if now.Sub(s.lastRxAt) >= s.cfg.LivenessTimeout {
		s.setState(Closing)
		s.setState(Closed)
	}
}

func (s *Session) tickSync(now time.Time) {
	if s.lastSyncAt.IsZero() {
		return
	}
	interval := jittered(s.cfg.SyncInterval)
	if now.Sub(s.lastSyncAt) < interval {
		return
	}
	if err := s.sendSyncRound0(); err != nil {
		s.failedSyncs++
		if s.failedSyncs >= 3 {
			s.setState(Closing)
			s.setState(Closed)
		}
	}
}

func (s *Session) tickFeedback(now time.Time) {
	if now.Sub(s.lastFeedbackAt) < s.cfg.FeedbackInterval {
		return
	}
	s.lastFeedbackAt = now
	fb := wire.ReceiverFeedback{SSRC: s.localSSRC, SequenceNumber: s.receiver.Watermark()}
	b, err := fb.MarshalBinary()
	if err != nil {
		return
	}
	_ = s.transport.SendData(b)
}

func jittered(d time.Duration) time.Duration {
	jitter := float64(d) * 0.1
	offset := (rand.Float64()*2 - 1) * jitter
	return d + time.Duration(offset)
}

// Close begins graceful teardown: best-effort BY if Established or
// Syncing, then transitions to Closed.
func (s *Session) Close() {
	if s.state == Established || s.state == Syncing {
		bye := wire.NewExit(s.initiatorToken, s.localSSRC)
		if b, err := bye.MarshalBinary(); err == nil {
			_ = s.transport.SendData(b)
		}
	}
	s.setState(Closing)
	s.setState(Closed)
}
