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
)

// RtpMidiPacket is a fully decoded RTP-MIDI data packet: the RTP header,
// the command list, and an optional recovery journal.
type RtpMidiPacket struct {
	Header        RtpHeader
	CommandHeader CommandSectionHeader
	Commands      []TimedCommand
	Journal       *EnhancedJournal
	TrailingSysEx []byte
}

// EncodeRtpMidiPacket serializes a full RTP-MIDI packet: RTP header,
// command section, and (if non-nil) the recovery journal.
func EncodeRtpMidiPacket(h RtpHeader, cmds []TimedCommand, journal *EnhancedJournal) ([]byte, error) {
	headerBytes, err := h.MarshalBinary()
	if err != nil {
		return nil, err
	}
	buf := append(make([]byte, 0, rtpHeaderLen+32), headerBytes...)
	buf, err = EncodeCommandSection(buf, cmds, journal != nil)
	if err != nil {
		return nil, err
	}
	if journal != nil {
		buf, err = EncodeEnhancedJournal(buf, *journal)
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

// DecodeRtpMidiPacket parses a full RTP-MIDI packet. continuingStatus is
// the running status carried over from this peer's previous packet, used
// only if the command section's Phantom bit is set.
func DecodeRtpMidiPacket(buf []byte, continuingStatus byte) (RtpMidiPacket, error) {
	header, offset, err := DecodeRtpHeader(buf)
	if err != nil {
		return RtpMidiPacket{}, err
	}

	cmdHeader, commands, trailing, consumed, err := DecodeCommandSection(buf[offset:], continuingStatus)
	if err != nil {
		return RtpMidiPacket{}, err
	}

	pkt := RtpMidiPacket{
		Header:        header,
		CommandHeader: cmdHeader,
		Commands:      commands,
		TrailingSysEx: trailing,
	}

	if cmdHeader.JournalPresent {
		journalBuf := buf[offset+consumed:]
		journal, _, err := DecodeEnhancedJournal(journalBuf)
		if err != nil {
			return RtpMidiPacket{}, errs.Malformedf("wire.DecodeRtpMidiPacket", "journal: %w", err)
		}
		pkt.Journal = &journal
	}

	return pkt, nil
}

// ControlMessage is the decoded form of any AppleMIDI control-channel
// message, tagged by Command.
type ControlMessage struct {
	Command             [2]byte
	Invitation          *Invitation
	InvitationAccepted  *InvitationAccepted
	InvitationRejected  *InvitationRejected
	Exit                *Exit
	Sync                *Sync
	ReceiverFeedback    *ReceiverFeedback
}

// DecodeControlMessage dispatches on the 2-byte command tag following the
// 0xFFFF magic and parses the matching AppleMIDI message, mirroring the
// single-entry-point DecodePacket idiom used for RTP-MIDI packets.
func DecodeControlMessage(b []byte) (ControlMessage, error) {
	cmd, err := PeekControlCommand(b)
	if err != nil {
		return ControlMessage{}, err
	}
	switch cmd {
	case [2]byte{'I', 'N'}:
		m, err := UnmarshalInvitation(b)
		if err != nil {
			return ControlMessage{}, err
		}
		return ControlMessage{Command: cmd, Invitation: &m}, nil
	case [2]byte{'O', 'K'}:
		m, err := UnmarshalInvitationAccepted(b)
		if err != nil {
			return ControlMessage{}, err
		}
		return ControlMessage{Command: cmd, InvitationAccepted: &m}, nil
	case [2]byte{'N', 'O'}:
		m, err := UnmarshalInvitationRejected(b)
		if err != nil {
			return ControlMessage{}, err
		}
		return ControlMessage{Command: cmd, InvitationRejected: &m}, nil
	case [2]byte{'B', 'Y'}:
		m, err := UnmarshalExit(b)
		if err != nil {
			return ControlMessage{}, err
		}
		return ControlMessage{Command: cmd, Exit: &m}, nil
	case [2]byte{'C', 'K'}:
		m, err := UnmarshalSync(b)
		if err != nil {
			return ControlMessage{}, err
		}
		return ControlMessage{Command: cmd, Sync: &m}, nil
	case [2]byte{'R', 'S'}:
		m, err := UnmarshalReceiverFeedback(b)
		if err != nil {
			return ControlMessage{}, err
		}
		return ControlMessage{Command: cmd, ReceiverFeedback: &m}, nil
	default:
		return ControlMessage{}, errs.Malformedf("wire.DecodeControlMessage", "unknown command %c%c", cmd[0], cmd[1])
	}
}
