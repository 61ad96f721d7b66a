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

package stats

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rtpmidi-go/core/midi"
	"github.com/rtpmidi-go/core/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorCountsMidiReceivedAndRecovered(t *testing.T) {
	c := NewCollector()
	c.Emit(session.Event{Kind: session.EventMidiReceived, Peer: "a", Commands: []midi.Command{{Kind: midi.NoteOn}, {Kind: midi.NoteOff}}})
	c.Emit(session.Event{Kind: session.EventMidiReceived, Peer: "a", Commands: []midi.Command{{Kind: midi.NoteOn}}, Recovered: true})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	c.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "rtpmidi_commands_received_total 3")
	assert.Contains(t, body, "rtpmidi_journal_recovered_total 1")
}

func TestCollectorTracksGapsAndPeerState(t *testing.T) {
	c := NewCollector()
	c.Emit(session.Event{Kind: session.EventGap, Peer: "peerA"})
	c.Emit(session.Event{Kind: session.EventPeerState, Peer: "peerA", State: session.Established})

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, `rtpmidi_journal_gaps_total{peer="peerA"} 1`)
	assert.Contains(t, body, `rtpmidi_peer_state{peer="peerA"}`)
}

func TestSysStatsCollectReportsGoroutinesAndHeap(t *testing.T) {
	s, err := NewSysStats()
	require.NoError(t, err)
	snap := s.Collect()
	assert.GreaterOrEqual(t, snap.Goroutines, 1)
	assert.GreaterOrEqual(t, snap.HeapAlloc, uint64(0))
}
