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

// Command-section header flag bits (first byte), per spec §4.1.
const (
	bigHeaderBit = 0x80 // B: long header (12-bit length) if set
	journalBit   = 0x40 // J: journal section follows the command list
	zeroDeltaBit = 0x20 // Z: first command's delta-time is 0 and omitted
	phantomBit   = 0x10 // P: first command has no status byte of its own
	shortLenMask = 0x0F

	shortFormMaxLen = 15   // short header covers command sections up to this many bytes
	longFormMaxLen  = 4095 // 12-bit length
)

// TimedCommand pairs a MIDI command with the number of clock ticks elapsed
// since the previous command in the same packet (or, for the first
// command, since the packet's RTP timestamp).
type TimedCommand struct {
	DeltaTicks uint32
	Command    midi.Command
}

// CommandSectionHeader is the decoded first one or two bytes of a MIDI
// command section.
type CommandSectionHeader struct {
	LongHeader     bool
	JournalPresent bool
	FirstDeltaZero bool
	Phantom        bool
	Length         uint16
}

// EncodeCommandSection encodes cmds as a full MIDI command section
// (header + body), using running status and choosing the short header
// form whenever the body fits in 15 bytes, the long form otherwise (spec
// §13 Open Question decision). journalPresent sets the J bit for the
// caller; the journal bytes themselves are appended separately by
// EncodeEnhancedJournal.
func EncodeCommandSection(buf []byte, cmds []TimedCommand, journalPresent bool) ([]byte, error) {
	body := make([]byte, 0, 16)
	var lastStatus byte
	firstDeltaZero := false

	for i, tc := range cmds {
		if i == 0 {
			firstDeltaZero = tc.DeltaTicks == 0
			if !firstDeltaZero {
				body = EncodeVLQ(body, tc.DeltaTicks)
			}
		} else {
			body = EncodeVLQ(body, tc.DeltaTicks)
		}

		status, data, err := midi.StatusByte(tc.Command)
		if err != nil {
			return nil, errs.Malformedf("wire.EncodeCommandSection", "command %d: %w", i, err)
		}
		if midi.AllowsRunningStatus(status) && status == lastStatus {
			// omit the repeated status byte
		} else {
			body = append(body, status)
			if midi.AllowsRunningStatus(status) {
				lastStatus = status
			} else {
				lastStatus = 0
			}
		}
		if status == 0xF0 {
			body = append(body, data...)
			body = append(body, 0xF7)
		} else {
			body = append(body, data...)
		}
	}

	if len(body) > longFormMaxLen {
		return nil, errs.Malformedf("wire.EncodeCommandSection", "command section too long: %d bytes", len(body))
	}

	header := byte(0)
	if journalPresent {
		header |= journalBit
	}
	if firstDeltaZero {
		header |= zeroDeltaBit
	}

	if len(body) > shortFormMaxLen {
		header |= bigHeaderBit | (byte(len(body)>>8) & shortLenMask)
		buf = append(buf, header, byte(len(body)))
	} else {
		header |= byte(len(body)) & shortLenMask
		buf = append(buf, header)
	}
	buf = append(buf, body...)
	return buf, nil
}

// DecodeCommandSection parses a command section from the front of buf.
// continuingStatus is the running status carried over from a previous
// packet, used only when the decoded header's Phantom bit is set.
//
// A SysEx command that does not reach its 0xF7 terminator before the
// section ends is returned in trailingSysEx rather than as a command;
// the caller (the per-peer session state) is responsible for
// accumulating it across subsequent packets, since the wire codec itself
// holds no state.
func DecodeCommandSection(buf []byte, continuingStatus byte) (header CommandSectionHeader, commands []TimedCommand, trailingSysEx []byte, consumed int, err error) {
	if len(buf) < 1 {
		return header, nil, nil, 0, errs.Malformedf("wire.DecodeCommandSection", "empty buffer")
	}
	flags := buf[0]
	header.LongHeader = flags&bigHeaderBit != 0
	header.JournalPresent = flags&journalBit != 0
	header.FirstDeltaZero = flags&zeroDeltaBit != 0
	header.Phantom = flags&phantomBit != 0

	offset := 1
	if header.LongHeader {
		if len(buf) < 2 {
			return header, nil, nil, 0, errs.Malformedf("wire.DecodeCommandSection", "truncated long header")
		}
		header.Length = (uint16(flags&shortLenMask) << 8) | uint16(buf[1])
		offset = 2
	} else {
		header.Length = uint16(flags & shortLenMask)
	}

	end := offset + int(header.Length)
	if len(buf) < end {
		return header, nil, nil, 0, errs.Malformedf("wire.DecodeCommandSection", "truncated body: need %d bytes, have %d", end, len(buf))
	}
	body := buf[offset:end]

	var lastStatus byte
	pos := 0
	for pos < len(body) {
		var delta uint32
		first := len(commands) == 0
		if !first || !header.FirstDeltaZero {
			var n int
			delta, n, err = DecodeVLQ(body[pos:])
			if err != nil {
				return header, commands, nil, 0, errs.Malformedf("wire.DecodeCommandSection", "delta time: %w", err)
			}
			pos += n
		}

		if pos >= len(body) {
			return header, commands, nil, 0, errs.Malformedf("wire.DecodeCommandSection", "command truncated after delta time")
		}

		status := body[pos]
		hasOwnStatus := midi.IsStatusByte(status)
		if hasOwnStatus {
			pos++
		} else {
			if first && header.Phantom {
				status = continuingStatus
			} else {
				status = lastStatus
			}
			if status == 0 {
				return header, commands, nil, 0, errs.Malformedf("wire.DecodeCommandSection", "data byte with no preceding status")
			}
		}

		if status == 0xF0 {
			term := -1
			for i := pos; i < len(body); i++ {
				if body[i] == 0xF7 {
					term = i
					break
				}
			}
			if term < 0 {
				// unterminated SysEx: return remainder for accumulation
				// by the session layer and stop parsing this section.
				trailingSysEx = append([]byte(nil), body[pos:]...)
				pos = len(body)
				break
			}
			cmd, cerr := midi.FromStatusAndData(status, body[pos:term])
			if cerr != nil {
				return header, commands, nil, 0, errs.Malformedf("wire.DecodeCommandSection", "sysex: %w", cerr)
			}
			commands = append(commands, TimedCommand{DeltaTicks: delta, Command: cmd})
			pos = term + 1
			lastStatus = 0
			continue
		}

		dataLen := midi.DataLength(status)
		if dataLen < 0 {
			dataLen = 0
		}
		if pos+dataLen > len(body) {
			return header, commands, nil, 0, errs.Malformedf("wire.DecodeCommandSection", "command data truncated: need %d bytes", dataLen)
		}
		cmd, cerr := midi.FromStatusAndData(status, body[pos:pos+dataLen])
		if cerr != nil {
			return header, commands, nil, 0, errs.Malformedf("wire.DecodeCommandSection", "command: %w", cerr)
		}
		commands = append(commands, TimedCommand{DeltaTicks: delta, Command: cmd})
		pos += dataLen
		if midi.AllowsRunningStatus(status) {
			lastStatus = status
		} else {
			lastStatus = 0
		}
	}

	return header, commands, trailingSysEx, end, nil
}
