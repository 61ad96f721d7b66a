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

// Package wire implements the RTP-MIDI and AppleMIDI binary formats: the
// RTP header, the MIDI command section (VLQ delta-times, running status,
// short/long headers, segmented SysEx), the Enhanced Recovery Journal, and
// the AppleMIDI control messages. Every function here is a pure
// encoder/decoder over byte buffers; no component in this package holds
// session state.
package wire

import (
	"encoding/binary"

	"github.com/rtpmidi-go/core/errs"
)

// RTP header bit layout, per RFC 3550 §5.1 as profiled for RTP-MIDI.
const (
	rtpVersionMask   = 0xC0
	rtpVersionShift  = 6
	rtpPaddingBit    = 0x20
	rtpExtensionBit  = 0x10
	rtpCSRCMask      = 0x0F
	rtpMarkerBit     = 0x80
	rtpPayloadMask   = 0x7F
	rtpHeaderLen     = 12
	rtpVersion       = 2
	payloadTypeMIDI  = 97
)

// RtpHeader is the 12-byte RTP header fixed fields used by RTP-MIDI.
type RtpHeader struct {
	Version        uint8
	Padding        bool
	Extension      bool
	CSRCCount      uint8
	Marker         bool
	PayloadType    uint8
	SequenceNumber uint16
	Timestamp      uint32
	SSRC           uint32
}

// NewRtpHeader builds a header with the fields this core always sets:
// version 2, no padding/extension/CSRC, RTP-MIDI's conventional payload
// type.
func NewRtpHeader(seq uint16, ts uint32, ssrc uint32, marker bool) RtpHeader {
	return RtpHeader{
		Version:        rtpVersion,
		Marker:         marker,
		PayloadType:    payloadTypeMIDI,
		SequenceNumber: seq,
		Timestamp:      ts,
		SSRC:           ssrc,
	}
}

// MarshalBinaryTo encodes h into b, returning the number of bytes written.
func (h RtpHeader) MarshalBinaryTo(b []byte) (int, error) {
	if len(b) < rtpHeaderLen {
		return 0, errs.Malformedf("wire.RtpHeader.MarshalBinaryTo", "buffer too small: %d bytes", len(b))
	}
	b[0] = (h.Version << rtpVersionShift) & rtpVersionMask
	if h.Padding {
		b[0] |= rtpPaddingBit
	}
	if h.Extension {
		b[0] |= rtpExtensionBit
	}
	b[0] |= h.CSRCCount & rtpCSRCMask

	b[1] = h.PayloadType & rtpPayloadMask
	if h.Marker {
		b[1] |= rtpMarkerBit
	}

	binary.BigEndian.PutUint16(b[2:4], h.SequenceNumber)
	binary.BigEndian.PutUint32(b[4:8], h.Timestamp)
	binary.BigEndian.PutUint32(b[8:12], h.SSRC)
	return rtpHeaderLen, nil
}

// MarshalBinary encodes h into a freshly allocated buffer.
func (h RtpHeader) MarshalBinary() ([]byte, error) {
	b := make([]byte, rtpHeaderLen)
	n, err := h.MarshalBinaryTo(b)
	return b[:n], err
}

// DecodeRtpHeader parses the fixed 12-byte RTP header from the front of b,
// skipping any CSRC list, and returns the header and the offset of the
// first byte following it (the RTP-MIDI command section). It rejects any
// version other than 2.
func DecodeRtpHeader(b []byte) (RtpHeader, int, error) {
	if len(b) < rtpHeaderLen {
		return RtpHeader{}, 0, errs.Malformedf("wire.DecodeRtpHeader", "buffer too small: %d bytes", len(b))
	}
	var h RtpHeader
	h.Version = (b[0] & rtpVersionMask) >> rtpVersionShift
	h.Padding = b[0]&rtpPaddingBit != 0
	h.Extension = b[0]&rtpExtensionBit != 0
	h.CSRCCount = b[0] & rtpCSRCMask

	h.PayloadType = b[1] & rtpPayloadMask
	h.Marker = b[1]&rtpMarkerBit != 0

	h.SequenceNumber = binary.BigEndian.Uint16(b[2:4])
	h.Timestamp = binary.BigEndian.Uint32(b[4:8])
	h.SSRC = binary.BigEndian.Uint32(b[8:12])

	if h.Version != rtpVersion {
		return RtpHeader{}, 0, errs.Malformedf("wire.DecodeRtpHeader", "unsupported RTP version %d", h.Version)
	}

	offset := rtpHeaderLen + int(h.CSRCCount)*4
	if len(b) < offset {
		return RtpHeader{}, 0, errs.Malformedf("wire.DecodeRtpHeader", "truncated CSRC list: need %d bytes, have %d", offset, len(b))
	}
	if h.Extension {
		if len(b) < offset+4 {
			return RtpHeader{}, 0, errs.Malformedf("wire.DecodeRtpHeader", "truncated header extension")
		}
		extLen := int(binary.BigEndian.Uint16(b[offset+2 : offset+4]))
		offset += 4 + extLen*4
		if len(b) < offset {
			return RtpHeader{}, 0, errs.Malformedf("wire.DecodeRtpHeader", "truncated header extension body")
		}
	}
	return h, offset, nil
}
