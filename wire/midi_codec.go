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
	"github.com/rtpmidi-go/core/errs"
	"github.com/rtpmidi-go/core/midi"
)

// decodeMidiCommand decodes a single MIDI command from the front of buf.
// lastStatus is the running status carried from a preceding command in the
// same stream (0 if none); it is used only when buf does not begin with a
// status byte. It returns the decoded command and the number of bytes of
// buf consumed (including the status byte, if buf supplied one).
//
// Journal entries serialize every command with its own status byte (no
// running status), matching the original implementation's
// serialize_midi_command; this helper still accepts a missing status byte,
// and decodeJournalEntry passes it the previous command's running status.
func decodeMidiCommand(buf []byte, lastStatus byte) (midi.Command, int, error) {
	if len(buf) == 0 {
		return midi.Command{}, 0, errs.Malformedf("wire.decodeMidiCommand", "empty command buffer")
	}
	pos := 0
	status := buf[0]
	if midi.IsStatusByte(status) {
		pos = 1
	} else {
		status = lastStatus
		if status == 0 {
			return midi.Command{}, 0, errs.Malformedf("wire.decodeMidiCommand", "data byte with no preceding status")
		}
	}

	if status == 0xF0 {
		term := -1
		for i := pos; i < len(buf); i++ {
			if buf[i] == 0xF7 {
				term = i
				break
			}
		}
		if term < 0 {
			return midi.Command{}, 0, errs.Malformedf("wire.decodeMidiCommand", "unterminated sysex")
		}
		cmd, err := midi.FromStatusAndData(status, buf[pos:term])
		if err != nil {
			return midi.Command{}, 0, errs.Malformedf("wire.decodeMidiCommand", "sysex: %w", err)
		}
		return cmd, term + 1, nil
	}

	dataLen := midi.DataLength(status)
	if dataLen < 0 {
		dataLen = 0
	}
	if pos+dataLen > len(buf) {
		return midi.Command{}, 0, errs.Malformedf("wire.decodeMidiCommand", "truncated command data")
	}
	cmd, err := midi.FromStatusAndData(status, buf[pos:pos+dataLen])
	if err != nil {
		return midi.Command{}, 0, errs.Malformedf("wire.decodeMidiCommand", "command: %w", err)
	}
	return cmd, pos + dataLen, nil
}

// encodeMidiCommand returns the status byte and data bytes for tc.Command.
// Unlike the command-section encoder, this never relies on running status:
// journal entries always carry a full status byte per command.
func encodeMidiCommand(tc TimedCommand) (status byte, data []byte, err error) {
	return midi.StatusByte(tc.Command)
}

// runningStatusOf returns the status byte that a subsequent command-section
// command could omit if it matches cmd, or 0 if cmd's status never
// participates in running status.
func runningStatusOf(cmd midi.Command) byte {
	status, _, err := midi.StatusByte(cmd)
	if err != nil || !midi.AllowsRunningStatus(status) {
		return 0
	}
	return status
}
