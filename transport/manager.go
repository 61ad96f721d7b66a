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

// Package transport implements the Session Manager: it owns the control
// port P and data port P+1, demultiplexes inbound datagrams to the right
// session.Session by peer address and SSRC, shards peers across a fixed
// worker pool, and drives the periodic tick/sync/feedback/liveness cadence
// and coordinated shutdown (spec §4.5).
package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/cespare/xxhash"
	"github.com/rtpmidi-go/core/session"
	"github.com/rtpmidi-go/core/wire"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Config holds the Manager's own tunables, separate from per-session
// Config (spec §6).
type Config struct {
	ListenIP     net.IP
	ControlPort  int
	Workers      int
	QueueSize    int
	TickInterval time.Duration
	Session      session.Config
}

// DefaultConfig returns sensible defaults: control port 5004 (data port is
// always ControlPort+1), 4 workers, a 100ms tick.
func DefaultConfig() Config {
	return Config{
		ControlPort:  5004,
		Workers:      4,
		QueueSize:    256,
		TickInterval: 100 * time.Millisecond,
		Session:      session.DefaultConfig(),
	}
}

// peerKey identifies one Session's endpoint for demux and sharding: the
// remote UDP address (as seen on the control port) plus the peer's SSRC
// once known. Sessions are created on inbound IN before SSRC is known, so
// the zero SSRC is a valid transient key.
type peerKey struct {
	addr string
	ssrc uint32
}

// peer bundles a Session with the worker shard it belongs to.
type peer struct {
	sess  *session.Session
	shard int
}

// endpointSender implements session.DatagramSender against the manager's
// two UDP sockets for one peer's addresses.
type endpointSender struct {
	m         *Manager
	controlTo *net.UDPAddr
	dataTo    *net.UDPAddr
}

func (e *endpointSender) SendControl(b []byte) error {
	_, err := e.m.controlConn.WriteToUDP(b, e.controlTo)
	return err
}

func (e *endpointSender) SendData(b []byte) error {
	_, err := e.m.dataConn.WriteToUDP(b, e.dataTo)
	return err
}

// Manager is the Session Manager: it owns the two UDP sockets, the peer
// table, and the worker pool that serializes access to each peer's
// Session.
type Manager struct {
	cfg  Config
	sink session.Sink

	controlConn *net.UDPConn
	dataConn    *net.UDPConn

	mu    sync.Mutex
	peers map[peerKey]*peer

	workers []*worker
}

// New builds a Manager bound to the given config and sink. It does not
// open sockets until Start is called.
func New(cfg Config, sink session.Sink) *Manager {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Manager{
		cfg:   cfg,
		sink:  sink,
		peers: make(map[peerKey]*peer),
	}
}

// Start binds the control and data sockets, launches the worker pool and
// the listener/ticker goroutines, and blocks until ctx is canceled or a
// fatal error occurs. On return, both sockets are closed and every worker
// goroutine has exited; tasks still waiting in a worker's queue are not
// run.
func (m *Manager) Start(ctx context.Context) error {
	controlAddr := &net.UDPAddr{IP: m.cfg.ListenIP, Port: m.cfg.ControlPort}
	dataAddr := &net.UDPAddr{IP: m.cfg.ListenIP, Port: m.cfg.ControlPort + 1}

	var err error
	m.controlConn, err = net.ListenUDP("udp", controlAddr)
	if err != nil {
		return fmt.Errorf("transport: binding control port %d: %w", m.cfg.ControlPort, err)
	}
	defer m.controlConn.Close()
	tuneSocket(m.controlConn)

	m.dataConn, err = net.ListenUDP("udp", dataAddr)
	if err != nil {
		return fmt.Errorf("transport: binding data port %d: %w", m.cfg.ControlPort+1, err)
	}
	defer m.dataConn.Close()
	tuneSocket(m.dataConn)

	m.workers = make([]*worker, m.cfg.Workers)
	for i := range m.workers {
		m.workers[i] = newWorker(i, m.cfg.QueueSize)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, w := range m.workers {
		w := w
		g.Go(func() error { return w.run(gctx) })
	}
	g.Go(func() error { return m.readLoop(gctx, m.controlConn, false) })
	g.Go(func() error { return m.readLoop(gctx, m.dataConn, true) })
	g.Go(func() error { return m.tickLoop(gctx) })

	err = g.Wait()
	m.shutdown()
	return err
}

func (m *Manager) shutdown() {
	m.mu.Lock()
	peers := make([]*peer, 0, len(m.peers))
	for _, p := range m.peers {
		peers = append(peers, p)
	}
	m.mu.Unlock()
	for _, p := range peers {
		p.sess.Close()
	}
	for _, w := range m.workers {
		w.stop()
	}
}

func (m *Manager) readLoop(ctx context.Context, conn *net.UDPConn, isDataPort bool) error {
	buf := make([]byte, 64*1024)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_ = conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return fmt.Errorf("transport: read on %s: %w", conn.LocalAddr(), err)
		}
		payload := append([]byte(nil), buf[:n]...)
		m.dispatch(payload, from, isDataPort)
	}
}

// dispatch routes one inbound datagram to the owning Session's worker
// shard, creating a new responder Session on an unrecognized IN and
// dropping stray non-IN frames from unknown sources (spec §4.5).
func (m *Manager) dispatch(payload []byte, from *net.UDPAddr, isDataPort bool) {
	if wire.IsAppleMidiControl(payload) {
		msg, err := wire.DecodeControlMessage(payload)
		if err != nil {
			log.Debugf("transport: dropping malformed control frame from %s: %v", from, err)
			return
		}
		m.dispatchControl(msg, from, isDataPort)
		return
	}

	header, _, err := wire.DecodeRtpHeader(payload)
	if err != nil {
		log.Debugf("transport: dropping malformed RTP frame from %s: %v", from, err)
		return
	}
	p := m.lookupBySSRC(from, header.SSRC)
	if p == nil {
		log.Debugf("transport: dropping RTP frame from unknown peer %s ssrc %#x", from, header.SSRC)
		return
	}
	m.enqueue(p, func() { _ = p.sess.HandleDataPacket(payload) })
}

func (m *Manager) dispatchControl(msg wire.ControlMessage, from *net.UDPAddr, isDataPort bool) {
	if msg.Invitation != nil {
		p := m.lookupBySSRC(from, msg.Invitation.Header.SSRC)
		if p == nil {
			p = m.createResponder(from, msg.Invitation.Header.SSRC)
		}
		m.enqueue(p, func() { _ = p.sess.HandleControlMessage(msg, isDataPort) })
		return
	}

	p := m.lookupBySSRC(from, controlSSRC(msg))
	if p == nil {
		log.Debugf("transport: dropping control frame from unrecognized peer %s", from)
		return
	}
	m.enqueue(p, func() { _ = p.sess.HandleControlMessage(msg, isDataPort) })
}

// controlSSRC extracts the SSRC carried by a non-Invitation control
// message, for routing to an already-known peer.
func controlSSRC(msg wire.ControlMessage) uint32 {
	switch {
	case msg.InvitationAccepted != nil:
		return msg.InvitationAccepted.Header.SSRC
	case msg.InvitationRejected != nil:
		return msg.InvitationRejected.Header.SSRC
	case msg.Exit != nil:
		return msg.Exit.Header.SSRC
	case msg.Sync != nil:
		return msg.Sync.SSRC
	case msg.ReceiverFeedback != nil:
		return msg.ReceiverFeedback.SSRC
	default:
		return 0
	}
}

// lookupBySSRC finds a peer either by its known remote SSRC, or, while the
// handshake is still establishing that SSRC, by address alone.
func (m *Manager) lookupBySSRC(from *net.UDPAddr, ssrc uint32) *peer {
	m.mu.Lock()
	defer m.mu.Unlock()
	addr := from.IP.String()
	if p, ok := m.peers[peerKey{addr: addr, ssrc: ssrc}]; ok {
		return p
	}
	if p, ok := m.peers[peerKey{addr: addr, ssrc: 0}]; ok {
		return p
	}
	return nil
}

func (m *Manager) createResponder(from *net.UDPAddr, remoteSSRC uint32) *peer {
	m.mu.Lock()
	defer m.mu.Unlock()

	localSSRC := newSSRC()
	controlTo := &net.UDPAddr{IP: from.IP, Port: from.Port}
	dataTo := &net.UDPAddr{IP: from.IP, Port: from.Port + 1}
	sender := &endpointSender{m: m, controlTo: controlTo, dataTo: dataTo}

	formula, err := newDefaultFormula()
	if err != nil {
		log.Errorf("transport: building default quality formula: %v", err)
	}
	id := session.PeerID(from.String())
	sess := session.NewResponder(id, m.cfg.Session, newMonotonicClock(m.cfg.Session.TickRateHz), sender, m.sink, localSSRC, formula)

	p := &peer{sess: sess, shard: m.shardFor(from.IP.String(), remoteSSRC)}
	m.peers[peerKey{addr: from.IP.String(), ssrc: 0}] = p
	m.peers[peerKey{addr: from.IP.String(), ssrc: remoteSSRC}] = p
	return p
}

func (m *Manager) shardFor(addr string, ssrc uint32) int {
	if len(m.workers) == 0 {
		return 0
	}
	key := make([]byte, 0, len(addr)+4)
	key = append(key, addr...)
	key = append(key, byte(ssrc), byte(ssrc>>8), byte(ssrc>>16), byte(ssrc>>24))
	return int(xxhash.Sum64(key) % uint64(len(m.workers)))
}

func (m *Manager) enqueue(p *peer, task func()) {
	if len(m.workers) == 0 {
		task()
		return
	}
	m.workers[p.shard%len(m.workers)].submit(task)
}

func (m *Manager) tickLoop(ctx context.Context) error {
	t := time.NewTicker(m.cfg.TickInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-t.C:
			m.tickAll(now)
		}
	}
}

// PeerInfo is a point-in-time, read-only view of one peer's Session, for
// operator tooling (cmd/rtpmidictl's peers table) and diagnostics.
type PeerInfo struct {
	ID      session.PeerID
	State   session.State
	Offset  float64
	RTT     float64
	Quality float64
}

// Peers returns a snapshot of every peer the Manager currently tracks.
func (m *Manager) Peers() []PeerInfo {
	unique := m.uniquePeers()
	out := make([]PeerInfo, 0, len(unique))
	for _, p := range unique {
		quality, _ := p.sess.Quality()
		out = append(out, PeerInfo{
			ID:      p.sess.ID(),
			State:   p.sess.State(),
			Offset:  p.sess.Offset(),
			RTT:     p.sess.RTT(),
			Quality: quality,
		})
	}
	return out
}

func (m *Manager) uniquePeers() []*peer {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[*peer]bool, len(m.peers))
	unique := make([]*peer, 0, len(m.peers))
	for _, p := range m.peers {
		if !seen[p] {
			seen[p] = true
			unique = append(unique, p)
		}
	}
	return unique
}

func (m *Manager) tickAll(now time.Time) {
	for _, p := range m.uniquePeers() {
		p := p
		m.enqueue(p, func() { p.sess.Tick(now) })
	}
}
