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
	"encoding/binary"

	"github.com/rtpmidi-go/core/errs"
)

// AppleMIDI control-message magic and protocol version, per spec §4.1.
const (
	appleMidiMagic0 = 0xFF
	appleMidiMagic1 = 0xFF
	protocolVersion = 2
)

// AppleMidiHeader is the common preamble of every AppleMIDI control
// message except CK/RS, which replace the version/token fields with their
// own layout after the magic+command bytes.
type AppleMidiHeader struct {
	Command        [2]byte
	ProtocolVersion uint32
	InitiatorToken  uint32
	SSRC            uint32
}

const appleMidiHeaderLen = 16

func (h AppleMidiHeader) marshalTo(b []byte) int {
	b[0] = appleMidiMagic0
	b[1] = appleMidiMagic1
	b[2] = h.Command[0]
	b[3] = h.Command[1]
	binary.BigEndian.PutUint32(b[4:8], h.ProtocolVersion)
	binary.BigEndian.PutUint32(b[8:12], h.InitiatorToken)
	binary.BigEndian.PutUint32(b[12:16], h.SSRC)
	return appleMidiHeaderLen
}

func unmarshalAppleMidiHeader(b []byte) (AppleMidiHeader, error) {
	if len(b) < appleMidiHeaderLen {
		return AppleMidiHeader{}, errs.Malformedf("wire.unmarshalAppleMidiHeader", "too short: %d bytes", len(b))
	}
	if b[0] != appleMidiMagic0 || b[1] != appleMidiMagic1 {
		return AppleMidiHeader{}, errs.Malformedf("wire.unmarshalAppleMidiHeader", "bad magic")
	}
	h := AppleMidiHeader{
		Command:         [2]byte{b[2], b[3]},
		ProtocolVersion: binary.BigEndian.Uint32(b[4:8]),
		InitiatorToken:  binary.BigEndian.Uint32(b[8:12]),
		SSRC:            binary.BigEndian.Uint32(b[12:16]),
	}
	if h.ProtocolVersion != protocolVersion {
		return AppleMidiHeader{}, errs.Protocolf("wire.unmarshalAppleMidiHeader", "unsupported AppleMIDI version %d", h.ProtocolVersion)
	}
	return h, nil
}

// Invitation is the "IN" control message: a session-join request.
type Invitation struct {
	Header AppleMidiHeader
	Name   string
}

// NewInvitation builds an IN message with the given token, ssrc and name.
func NewInvitation(token, ssrc uint32, name string) Invitation {
	return Invitation{Header: AppleMidiHeader{Command: [2]byte{'I', 'N'}, ProtocolVersion: protocolVersion, InitiatorToken: token, SSRC: ssrc}, Name: name}
}

// MarshalBinary encodes the Invitation.
func (m Invitation) MarshalBinary() ([]byte, error) {
	return marshalNamedMessage(m.Header, m.Name), nil
}

// UnmarshalInvitation parses an IN message.
func UnmarshalInvitation(b []byte) (Invitation, error) {
	h, name, err := unmarshalNamedMessage(b, 'I', 'N')
	if err != nil {
		return Invitation{}, err
	}
	return Invitation{Header: h, Name: name}, nil
}

// InvitationAccepted is the "OK" control message.
type InvitationAccepted struct {
	Header AppleMidiHeader
	Name   string
}

// NewInvitationAccepted builds an OK message.
func NewInvitationAccepted(token, ssrc uint32, name string) InvitationAccepted {
	return InvitationAccepted{Header: AppleMidiHeader{Command: [2]byte{'O', 'K'}, ProtocolVersion: protocolVersion, InitiatorToken: token, SSRC: ssrc}, Name: name}
}

// MarshalBinary encodes the InvitationAccepted.
func (m InvitationAccepted) MarshalBinary() ([]byte, error) {
	return marshalNamedMessage(m.Header, m.Name), nil
}

// UnmarshalInvitationAccepted parses an OK message.
func UnmarshalInvitationAccepted(b []byte) (InvitationAccepted, error) {
	h, name, err := unmarshalNamedMessage(b, 'O', 'K')
	if err != nil {
		return InvitationAccepted{}, err
	}
	return InvitationAccepted{Header: h, Name: name}, nil
}

// InvitationRejected is the "NO" control message.
type InvitationRejected struct {
	Header AppleMidiHeader
}

// NewInvitationRejected builds a NO message.
func NewInvitationRejected(token, ssrc uint32) InvitationRejected {
	return InvitationRejected{Header: AppleMidiHeader{Command: [2]byte{'N', 'O'}, ProtocolVersion: protocolVersion, InitiatorToken: token, SSRC: ssrc}}
}

// MarshalBinary encodes the InvitationRejected.
func (m InvitationRejected) MarshalBinary() ([]byte, error) {
	b := make([]byte, appleMidiHeaderLen)
	m.Header.marshalTo(b)
	return b, nil
}

// UnmarshalInvitationRejected parses a NO message.
func UnmarshalInvitationRejected(b []byte) (InvitationRejected, error) {
	h, err := unmarshalHeaderOnlyMessage(b, 'N', 'O')
	if err != nil {
		return InvitationRejected{}, err
	}
	return InvitationRejected{Header: h}, nil
}

// Exit is the "BY" control message.
type Exit struct {
	Header AppleMidiHeader
}

// NewExit builds a BY message.
func NewExit(token, ssrc uint32) Exit {
	return Exit{Header: AppleMidiHeader{Command: [2]byte{'B', 'Y'}, ProtocolVersion: protocolVersion, InitiatorToken: token, SSRC: ssrc}}
}

// MarshalBinary encodes the Exit.
func (m Exit) MarshalBinary() ([]byte, error) {
	b := make([]byte, appleMidiHeaderLen)
	m.Header.marshalTo(b)
	return b, nil
}

// UnmarshalExit parses a BY message.
func UnmarshalExit(b []byte) (Exit, error) {
	h, err := unmarshalHeaderOnlyMessage(b, 'B', 'Y')
	if err != nil {
		return Exit{}, err
	}
	return Exit{Header: h}, nil
}

func marshalNamedMessage(h AppleMidiHeader, name string) []byte {
	b := make([]byte, appleMidiHeaderLen+len(name)+1)
	h.marshalTo(b)
	copy(b[appleMidiHeaderLen:], name)
	b[len(b)-1] = 0
	return b
}

func unmarshalNamedMessage(b []byte, cmd0, cmd1 byte) (AppleMidiHeader, string, error) {
	h, err := unmarshalAppleMidiHeader(b)
	if err != nil {
		return AppleMidiHeader{}, "", err
	}
	if h.Command[0] != cmd0 || h.Command[1] != cmd1 {
		return AppleMidiHeader{}, "", errs.Malformedf("wire.unmarshalNamedMessage", "expected %c%c, got %c%c", cmd0, cmd1, h.Command[0], h.Command[1])
	}
	rest := b[appleMidiHeaderLen:]
	if len(rest) == 0 || rest[len(rest)-1] != 0 {
		return AppleMidiHeader{}, "", errs.Malformedf("wire.unmarshalNamedMessage", "missing NUL terminator")
	}
	return h, string(rest[:len(rest)-1]), nil
}

func unmarshalHeaderOnlyMessage(b []byte, cmd0, cmd1 byte) (AppleMidiHeader, error) {
	h, err := unmarshalAppleMidiHeader(b)
	if err != nil {
		return AppleMidiHeader{}, err
	}
	if h.Command[0] != cmd0 || h.Command[1] != cmd1 {
		return AppleMidiHeader{}, errs.Malformedf("wire.unmarshalHeaderOnlyMessage", "expected %c%c, got %c%c", cmd0, cmd1, h.Command[0], h.Command[1])
	}
	return h, nil
}

// Sync is the "CK" clock-synchronization message: magic + "CK" + ssrc +
// count + 3 padding bytes + three 64-bit timestamps.
type Sync struct {
	SSRC       uint32
	Count      uint8
	Timestamps [3]uint64
}

const syncMessageLen = 4 + 4 + 1 + 3 + 8*3 // 36 bytes

// MarshalBinary encodes the Sync message.
func (m Sync) MarshalBinary() ([]byte, error) {
	b := make([]byte, syncMessageLen)
	b[0], b[1], b[2], b[3] = appleMidiMagic0, appleMidiMagic1, 'C', 'K'
	binary.BigEndian.PutUint32(b[4:8], m.SSRC)
	b[8] = m.Count
	// b[9:12] padding, left zero
	binary.BigEndian.PutUint64(b[12:20], m.Timestamps[0])
	binary.BigEndian.PutUint64(b[20:28], m.Timestamps[1])
	binary.BigEndian.PutUint64(b[28:36], m.Timestamps[2])
	return b, nil
}

// UnmarshalSync parses a CK message.
func UnmarshalSync(b []byte) (Sync, error) {
	if len(b) < syncMessageLen {
		return Sync{}, errs.Malformedf("wire.UnmarshalSync", "too short: %d bytes", len(b))
	}
	if b[0] != appleMidiMagic0 || b[1] != appleMidiMagic1 {
		return Sync{}, errs.Malformedf("wire.UnmarshalSync", "bad magic")
	}
	if b[2] != 'C' || b[3] != 'K' {
		return Sync{}, errs.Malformedf("wire.UnmarshalSync", "not a CK message")
	}
	var m Sync
	m.SSRC = binary.BigEndian.Uint32(b[4:8])
	m.Count = b[8]
	m.Timestamps[0] = binary.BigEndian.Uint64(b[12:20])
	m.Timestamps[1] = binary.BigEndian.Uint64(b[20:28])
	m.Timestamps[2] = binary.BigEndian.Uint64(b[28:36])
	return m, nil
}

// ReceiverFeedback is the "RS" message: magic + "RS" + ssrc + sequence
// number + 2 padding bytes.
type ReceiverFeedback struct {
	SSRC           uint32
	SequenceNumber uint16
}

const receiverFeedbackLen = 4 + 4 + 2 + 2 // 12 bytes

// MarshalBinary encodes the ReceiverFeedback message.
func (m ReceiverFeedback) MarshalBinary() ([]byte, error) {
	b := make([]byte, receiverFeedbackLen)
	b[0], b[1], b[2], b[3] = appleMidiMagic0, appleMidiMagic1, 'R', 'S'
	binary.BigEndian.PutUint32(b[4:8], m.SSRC)
	binary.BigEndian.PutUint16(b[8:10], m.SequenceNumber)
	return b, nil
}

// UnmarshalReceiverFeedback parses an RS message.
func UnmarshalReceiverFeedback(b []byte) (ReceiverFeedback, error) {
	if len(b) < receiverFeedbackLen {
		return ReceiverFeedback{}, errs.Malformedf("wire.UnmarshalReceiverFeedback", "too short: %d bytes", len(b))
	}
	if b[0] != appleMidiMagic0 || b[1] != appleMidiMagic1 {
		return ReceiverFeedback{}, errs.Malformedf("wire.UnmarshalReceiverFeedback", "bad magic")
	}
	if b[2] != 'R' || b[3] != 'S' {
		return ReceiverFeedback{}, errs.Malformedf("wire.UnmarshalReceiverFeedback", "not an RS message")
	}
	var m ReceiverFeedback
	m.SSRC = binary.BigEndian.Uint32(b[4:8])
	m.SequenceNumber = binary.BigEndian.Uint16(b[8:10])
	return m, nil
}

// IsAppleMidiControl reports whether b begins with the AppleMIDI magic
// 0xFFFF, i.e. whether it should be routed to control-message decoding
// rather than RTP decoding.
func IsAppleMidiControl(b []byte) bool {
	return len(b) >= 2 && b[0] == appleMidiMagic0 && b[1] == appleMidiMagic1
}

// PeekControlCommand returns the 2-byte ASCII command tag of an AppleMIDI
// control message without fully parsing it, for dispatch.
func PeekControlCommand(b []byte) ([2]byte, error) {
	if len(b) < 4 {
		return [2]byte{}, errs.Malformedf("wire.PeekControlCommand", "too short to contain a command tag")
	}
	return [2]byte{b[2], b[3]}, nil
}
