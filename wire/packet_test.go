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

package wire

import (
	"testing"

	"github.com/rtpmidi-go/core/midi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRtpMidiPacketNoJournal(t *testing.T) {
	h := NewRtpHeader(100, 44100, 0xCAFEBABE, true)
	cmds := []TimedCommand{
		{DeltaTicks: 0, Command: midi.Command{Kind: midi.NoteOn, Channel: 0, Data1: 60, Data2: 100}},
		{DeltaTicks: 441, Command: midi.Command{Kind: midi.NoteOff, Channel: 0, Data1: 60, Data2: 64}},
	}
	buf, err := EncodeRtpMidiPacket(h, cmds, nil)
	require.NoError(t, err)

	got, err := DecodeRtpMidiPacket(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, h, got.Header)
	assert.Equal(t, cmds, got.Commands)
	assert.Nil(t, got.Journal)
}

func TestEncodeDecodeRtpMidiPacketWithJournal(t *testing.T) {
	h := NewRtpHeader(12, 1000, 0x1, false)
	cmds := []TimedCommand{
		{DeltaTicks: 0, Command: midi.Command{Kind: midi.ControlChange, Channel: 1, Data1: 7, Data2: 127}},
	}
	journal := &EnhancedJournal{
		CheckpointSequenceNumber: 10,
		Entries: []JournalEntry{
			{SequenceNumber: 10, Commands: []TimedCommand{
				{DeltaTicks: 0, Command: midi.Command{Kind: midi.NoteOn, Channel: 0, Data1: 1, Data2: 2}},
			}},
			{SequenceNumber: 11, Commands: []TimedCommand{
				{DeltaTicks: 5, Command: midi.Command{Kind: midi.NoteOff, Channel: 0, Data1: 1, Data2: 0}},
			}},
		},
	}
	buf, err := EncodeRtpMidiPacket(h, cmds, journal)
	require.NoError(t, err)

	got, err := DecodeRtpMidiPacket(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, cmds, got.Commands)
	require.NotNil(t, got.Journal)
	assert.Equal(t, *journal, *got.Journal)
}

func TestDecodeRtpMidiPacketMalformedVersionDropped(t *testing.T) {
	h := NewRtpHeader(1, 1, 1, false)
	buf, err := EncodeRtpMidiPacket(h, nil, nil)
	require.NoError(t, err)
	buf[0] = 3 << rtpVersionShift
	_, err = DecodeRtpMidiPacket(buf, 0)
	assert.Error(t, err)
}
