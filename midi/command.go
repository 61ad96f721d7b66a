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

// Package midi models the MIDI command set carried inside an RTP-MIDI
// command section: channel voice messages, the system real-time/common
// set, and System Exclusive.
package midi

import "fmt"

// Kind identifies which MIDI command a Command value represents.
type Kind int

// The command set this core understands. Anything else decodes to Unknown.
const (
	NoteOff Kind = iota
	NoteOn
	PolyKeyPressure
	ControlChange
	ProgramChange
	ChannelPressure
	PitchBend
	TimingClock
	Start
	Continue
	Stop
	ActiveSensing
	TuneRequest
	SysEx
	Unknown
)

func (k Kind) String() string {
	switch k {
	case NoteOff:
		return "NoteOff"
	case NoteOn:
		return "NoteOn"
	case PolyKeyPressure:
		return "PolyKeyPressure"
	case ControlChange:
		return "ControlChange"
	case ProgramChange:
		return "ProgramChange"
	case ChannelPressure:
		return "ChannelPressure"
	case PitchBend:
		return "PitchBend"
	case TimingClock:
		return "TimingClock"
	case Start:
		return "Start"
	case Continue:
		return "Continue"
	case Stop:
		return "Stop"
	case ActiveSensing:
		return "ActiveSensing"
	case TuneRequest:
		return "TuneRequest"
	case SysEx:
		return "SysEx"
	default:
		return "Unknown"
	}
}

// Status nibbles/bytes, per the MIDI 1.0 spec.
const (
	statusNoteOff         = 0x80
	statusNoteOn          = 0x90
	statusPolyKeyPressure = 0xA0
	statusControlChange   = 0xB0
	statusProgramChange   = 0xC0
	statusChannelPressure = 0xD0
	statusPitchBend       = 0xE0
	statusSysExStart      = 0xF0
	statusSysExEnd        = 0xF7
	statusTuneRequest     = 0xF6
	statusTimingClock     = 0xF8
	statusStart           = 0xFA
	statusContinue        = 0xFB
	statusStop            = 0xFC
	statusActiveSensing   = 0xFE
)

// Command is a single decoded MIDI command. Only the fields relevant to
// Kind are meaningful; the zero value of the rest is ignored.
type Command struct {
	Kind    Kind
	Channel uint8 // 0-15, channel messages only

	// Data1/Data2 hold the raw data bytes (0-127) for the two-data-byte and
	// one-data-byte channel messages (key/velocity, controller/value,
	// program number, pressure value).
	Data1 uint8
	Data2 uint8

	// PitchBendValue is the 14-bit (0-16383) combined pitch-bend value.
	PitchBendValue uint16

	// SysExData is the payload of a System Exclusive message, excluding the
	// framing 0xF0/0xF7 bytes.
	SysExData []byte

	// Status and UnknownData hold the raw status byte and trailing data for
	// anything this core doesn't model explicitly.
	Status      byte
	UnknownData []byte
}

// commandInfo describes the data-byte length of a status byte, as seen on
// the wire (excluding the status byte itself). length is -1 for SysEx,
// whose length is variable until a 0xF7 terminator.
type commandInfo struct {
	length int
}

var commandTable = map[byte]commandInfo{
	statusNoteOff:         {length: 2},
	statusNoteOn:          {length: 2},
	statusPolyKeyPressure: {length: 2},
	statusControlChange:   {length: 2},
	statusProgramChange:   {length: 1},
	statusChannelPressure: {length: 1},
	statusPitchBend:       {length: 2},
	statusSysExStart:      {length: -1},
	statusTuneRequest:     {length: 0},
	statusTimingClock:     {length: 0},
	statusStart:           {length: 0},
	statusContinue:        {length: 0},
	statusStop:            {length: 0},
	statusActiveSensing:   {length: 0},
}

// DataLength returns the number of data bytes that follow a status byte, or
// -1 if the length is variable (SysEx). Unknown status bytes return 0.
func DataLength(status byte) int {
	if info, ok := commandTable[status]; ok {
		return info.length
	}
	if info, ok := commandTable[status&0xF0]; ok {
		return info.length
	}
	return 0
}

// IsStatusByte reports whether b has the high bit set, i.e. it is a status
// byte rather than a data byte.
func IsStatusByte(b byte) bool {
	return b&0x80 != 0
}

// AllowsRunningStatus reports whether a command with this status byte may
// be abbreviated by omitting a repeated status byte in the command section.
// System real-time and SysEx framing bytes never participate in running
// status.
func AllowsRunningStatus(status byte) bool {
	return status < statusSysExStart
}

// FromStatusAndData builds a Command from a status byte and its associated
// data bytes (already sliced to the correct length by the caller). data
// must exclude the SysEx framing bytes for SysEx commands.
func FromStatusAndData(status byte, data []byte) (Command, error) {
	switch status & 0xF0 {
	case statusNoteOff:
		if len(data) < 2 {
			return Command{}, fmt.Errorf("midi: NoteOff needs 2 data bytes, got %d", len(data))
		}
		return Command{Kind: NoteOff, Channel: status & 0x0F, Data1: data[0] & 0x7F, Data2: data[1] & 0x7F}, nil
	case statusNoteOn:
		if len(data) < 2 {
			return Command{}, fmt.Errorf("midi: NoteOn needs 2 data bytes, got %d", len(data))
		}
		return Command{Kind: NoteOn, Channel: status & 0x0F, Data1: data[0] & 0x7F, Data2: data[1] & 0x7F}, nil
	case statusPolyKeyPressure:
		if len(data) < 2 {
			return Command{}, fmt.Errorf("midi: PolyKeyPressure needs 2 data bytes, got %d", len(data))
		}
		return Command{Kind: PolyKeyPressure, Channel: status & 0x0F, Data1: data[0] & 0x7F, Data2: data[1] & 0x7F}, nil
	case statusControlChange:
		if len(data) < 2 {
			return Command{}, fmt.Errorf("midi: ControlChange needs 2 data bytes, got %d", len(data))
		}
		return Command{Kind: ControlChange, Channel: status & 0x0F, Data1: data[0] & 0x7F, Data2: data[1] & 0x7F}, nil
	case statusProgramChange:
		if len(data) < 1 {
			return Command{}, fmt.Errorf("midi: ProgramChange needs 1 data byte, got %d", len(data))
		}
		return Command{Kind: ProgramChange, Channel: status & 0x0F, Data1: data[0] & 0x7F}, nil
	case statusChannelPressure:
		if len(data) < 1 {
			return Command{}, fmt.Errorf("midi: ChannelPressure needs 1 data byte, got %d", len(data))
		}
		return Command{Kind: ChannelPressure, Channel: status & 0x0F, Data1: data[0] & 0x7F}, nil
	case statusPitchBend:
		if len(data) < 2 {
			return Command{}, fmt.Errorf("midi: PitchBend needs 2 data bytes, got %d", len(data))
		}
		lsb := uint16(data[0] & 0x7F)
		msb := uint16(data[1] & 0x7F)
		return Command{Kind: PitchBend, Channel: status & 0x0F, PitchBendValue: lsb | (msb << 7)}, nil
	}

	switch status {
	case statusSysExStart:
		return Command{Kind: SysEx, SysExData: append([]byte(nil), data...)}, nil
	case statusTuneRequest:
		return Command{Kind: TuneRequest}, nil
	case statusTimingClock:
		return Command{Kind: TimingClock}, nil
	case statusStart:
		return Command{Kind: Start}, nil
	case statusContinue:
		return Command{Kind: Continue}, nil
	case statusStop:
		return Command{Kind: Stop}, nil
	case statusActiveSensing:
		return Command{Kind: ActiveSensing}, nil
	default:
		return Command{Kind: Unknown, Status: status, UnknownData: append([]byte(nil), data...)}, nil
	}
}

// StatusByte returns the wire status byte for cmd, and the raw data bytes
// that follow it (for SysEx, the payload without the 0xF0/0xF7 framing).
func StatusByte(cmd Command) (status byte, data []byte, err error) {
	switch cmd.Kind {
	case NoteOff:
		return statusNoteOff | (cmd.Channel & 0x0F), []byte{cmd.Data1 & 0x7F, cmd.Data2 & 0x7F}, nil
	case NoteOn:
		return statusNoteOn | (cmd.Channel & 0x0F), []byte{cmd.Data1 & 0x7F, cmd.Data2 & 0x7F}, nil
	case PolyKeyPressure:
		return statusPolyKeyPressure | (cmd.Channel & 0x0F), []byte{cmd.Data1 & 0x7F, cmd.Data2 & 0x7F}, nil
	case ControlChange:
		return statusControlChange | (cmd.Channel & 0x0F), []byte{cmd.Data1 & 0x7F, cmd.Data2 & 0x7F}, nil
	case ProgramChange:
		return statusProgramChange | (cmd.Channel & 0x0F), []byte{cmd.Data1 & 0x7F}, nil
	case ChannelPressure:
		return statusChannelPressure | (cmd.Channel & 0x0F), []byte{cmd.Data1 & 0x7F}, nil
	case PitchBend:
		v := cmd.PitchBendValue & 0x3FFF
		return statusPitchBend | (cmd.Channel & 0x0F), []byte{byte(v & 0x7F), byte((v >> 7) & 0x7F)}, nil
	case SysEx:
		return statusSysExStart, cmd.SysExData, nil
	case TuneRequest:
		return statusTuneRequest, nil, nil
	case TimingClock:
		return statusTimingClock, nil, nil
	case Start:
		return statusStart, nil, nil
	case Continue:
		return statusContinue, nil, nil
	case Stop:
		return statusStop, nil, nil
	case ActiveSensing:
		return statusActiveSensing, nil, nil
	case Unknown:
		return cmd.Status, cmd.UnknownData, nil
	default:
		return 0, nil, fmt.Errorf("midi: unencodable command kind %v", cmd.Kind)
	}
}
