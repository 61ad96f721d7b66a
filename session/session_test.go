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

package session

import (
	"testing"
	"time"

	"github.com/rtpmidi-go/core/clock"
	"github.com/rtpmidi-go/core/midi"
	"github.com/rtpmidi-go/core/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// linkedTransport wires two Sessions' control/data sends directly to each
// other's HandleControlMessage/HandleDataPacket, simulating a lossless
// loopback link for handshake/sync tests.
type linkedTransport struct {
	peerControl func([]byte)
	peerData    func([]byte)
}

func (t *linkedTransport) SendControl(b []byte) error {
	cp := append([]byte(nil), b...)
	t.peerControl(cp)
	return nil
}

func (t *linkedTransport) SendData(b []byte) error {
	cp := append([]byte(nil), b...)
	t.peerData(cp)
	return nil
}

type recordingSink struct {
	events []Event
}

func (s *recordingSink) Emit(e Event) { s.events = append(s.events, e) }

func (s *recordingSink) states() []State {
	var out []State
	for _, e := range s.events {
		if e.Kind == EventPeerState {
			out = append(out, e.State)
		}
	}
	return out
}

func newTestFormula(t *testing.T) *clock.QualityFormula {
	t.Helper()
	f, err := clock.NewQualityFormula(clock.DefaultQualityFormula)
	require.NoError(t, err)
	return f
}

// wireUp builds two Sessions (A initiator, B responder) sharing a fake
// clock and a loopback transport, with control/data frames routed through
// each side's handler as if delivered by a Session Manager.
func wireUp(t *testing.T) (a, b *Session, sinkA, sinkB *recordingSink) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.SessionName = "test"
	clkA := clock.NewMonotonic(cfg.TickRateHz)
	clkB := clock.NewMonotonic(cfg.TickRateHz)
	sinkA = &recordingSink{}
	sinkB = &recordingSink{}

	var sessA, sessB *Session

	transportA := &linkedTransport{
		peerControl: func(b []byte) {
			msg, err := wire.DecodeControlMessage(b)
			require.NoError(t, err)
			_ = sessB.HandleControlMessage(msg, false)
		},
		peerData: func(b []byte) {
			if wire.IsAppleMidiControl(b) {
				msg, err := wire.DecodeControlMessage(b)
				require.NoError(t, err)
				_ = sessB.HandleControlMessage(msg, true)
				return
			}
			_ = sessB.HandleDataPacket(b)
		},
	}
	transportB := &linkedTransport{
		peerControl: func(b []byte) {
			msg, err := wire.DecodeControlMessage(b)
			require.NoError(t, err)
			_ = sessA.HandleControlMessage(msg, false)
		},
		peerData: func(b []byte) {
			if wire.IsAppleMidiControl(b) {
				msg, err := wire.DecodeControlMessage(b)
				require.NoError(t, err)
				_ = sessA.HandleControlMessage(msg, true)
				return
			}
			_ = sessA.HandleDataPacket(b)
		},
	}

	sessA = NewInitiator("B", cfg, clkA, transportA, sinkA, 0xAAAA0001, newTestFormula(t))
	sessB = NewResponder("A", cfg, clkB, transportB, sinkB, 0xBBBB0001, newTestFormula(t))
	return sessA, sessB, sinkA, sinkB
}

func TestHandshakeLivenessReachesEstablishedBothSides(t *testing.T) {
	a, b, sinkA, sinkB := wireUp(t)
	require.NoError(t, a.Connect())

	assert.Equal(t, Established, a.State())
	assert.Equal(t, Established, b.State())
	assert.Contains(t, sinkA.states(), Established)
	assert.Contains(t, sinkB.states(), Established)
}

func TestBasicSendDeliversCommandsToPeerSink(t *testing.T) {
	a, _, _, sinkB := wireUp(t)
	require.NoError(t, a.Connect())
	require.Equal(t, Established, a.State())

	cmds := []midi.Command{
		{Kind: midi.NoteOn, Channel: 0, Data1: 60, Data2: 100},
		{Kind: midi.NoteOff, Channel: 0, Data1: 60, Data2: 64},
	}
	require.NoError(t, a.SendMIDI(cmds, []uint32{0, 441}))

	var received []midi.Command
	for _, e := range sinkB.events {
		if e.Kind == EventMidiReceived {
			received = append(received, e.Commands...)
		}
	}
	require.Len(t, received, 2)
	assert.Equal(t, midi.NoteOn, received[0].Kind)
	assert.Equal(t, midi.NoteOff, received[1].Kind)
}

func TestByeTransitionsBothToClosed(t *testing.T) {
	a, b, _, _ := wireUp(t)
	require.NoError(t, a.Connect())
	require.Equal(t, Established, a.State())

	a.Close()
	assert.Equal(t, Closed, a.State())
	assert.Equal(t, Closed, b.State())
}

func TestMalformedVersionDroppedSessionStaysEstablished(t *testing.T) {
	a, _, _, _ := wireUp(t)
	require.NoError(t, a.Connect())
	require.Equal(t, Established, a.State())

	h := wire.NewRtpHeader(1, 1, a.RemoteSSRC(), false)
	buf, err := h.MarshalBinary()
	require.NoError(t, err)
	buf[0] = 3 << 6 // corrupt version field

	require.NoError(t, a.HandleDataPacket(buf))
	assert.Equal(t, Established, a.State())
}

func TestPeerDeathAfterLivenessTimeout(t *testing.T) {
	a, _, sinkA, _ := wireUp(t)
	require.NoError(t, a.Connect())
	require.Equal(t, Established, a.State())

	a.cfg.LivenessTimeout = 1 * time.Millisecond
	a.lastRxAt = time.Now().Add(-time.Hour)
	a.Tick(time.Now())

	assert.Equal(t, Closed, a.State())
	assert.Contains(t, sinkA.states(), Closed)
}

func TestSendMIDIRejectedBeforeEstablished(t *testing.T) {
	cfg := DefaultConfig()
	clk := clock.NewMonotonic(cfg.TickRateHz)
	sink := &recordingSink{}
	transport := &linkedTransport{peerControl: func([]byte) {}, peerData: func([]byte) {}}
	s := NewInitiator("x", cfg, clk, transport, sink, 1, newTestFormula(t))

	err := s.SendMIDI([]midi.Command{{Kind: midi.NoteOn}}, []uint32{0})
	assert.Error(t, err)
}

func TestSyncRoundComputesOffsetAndRTT(t *testing.T) {
	a, b, _, _ := wireUp(t)
	require.NoError(t, a.Connect())
	require.Equal(t, Established, a.State())
	require.GreaterOrEqual(t, a.syncTracker.Rounds(), 1)
	require.GreaterOrEqual(t, b.syncTracker.Rounds(), 1)
}

func TestSendSyncRound0StampsLocalClockReading(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockClock := NewMockClock(ctrl)
	mockClock.EXPECT().NowTicks().Return(uint64(424242)).Times(1)

	var sent wire.Sync
	transport := &linkedTransport{
		peerControl: func([]byte) {},
		peerData: func(b []byte) {
			var err error
			sent, err = wire.UnmarshalSync(b)
			require.NoError(t, err)
		},
	}
	sink := &recordingSink{}
	s := NewResponder("p", DefaultConfig(), mockClock, transport, sink, 1, newTestFormula(t))

	require.NoError(t, s.sendSyncRound0())
	assert.Equal(t, uint64(424242), s.syncTS0)
	assert.Equal(t, uint64(424242), sent.Timestamps[0])
}
