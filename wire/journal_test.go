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

func TestEnhancedJournalRoundTrip(t *testing.T) {
	j := EnhancedJournal{
		ABit:                     false,
		ChBits:                   3,
		CheckpointSequenceNumber: 10,
		Entries: []JournalEntry{
			{
				SequenceNumber: 10,
				Commands: []TimedCommand{
					{DeltaTicks: 0, Command: midi.Command{Kind: midi.NoteOn, Channel: 0, Data1: 60, Data2: 100}},
				},
			},
			{
				SequenceNumber: 11,
				Commands: []TimedCommand{
					{DeltaTicks: 441, Command: midi.Command{Kind: midi.NoteOff, Channel: 0, Data1: 60, Data2: 64}},
					{DeltaTicks: 2, Command: midi.Command{Kind: midi.SysEx, SysExData: []byte{0x7E, 0x00}}},
				},
			},
		},
	}

	buf, err := EncodeEnhancedJournal(nil, j)
	require.NoError(t, err)
	assert.Equal(t, byte(journalSBit)|3, buf[0])

	got, consumed, err := DecodeEnhancedJournal(buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), consumed)
	assert.Equal(t, j, got)
}

func TestDecodeEnhancedJournalRejectsMissingSBit(t *testing.T) {
	buf := []byte{0x00, 0, 0, 0}
	_, _, err := DecodeEnhancedJournal(buf)
	assert.Error(t, err)
}

func TestEnhancedJournalEmptyEntries(t *testing.T) {
	j := EnhancedJournal{CheckpointSequenceNumber: 0}
	buf, err := EncodeEnhancedJournal(nil, j)
	require.NoError(t, err)
	got, _, err := DecodeEnhancedJournal(buf)
	require.NoError(t, err)
	assert.Empty(t, got.Entries)
}
