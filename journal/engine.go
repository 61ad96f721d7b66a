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

// Package journal implements the Enhanced Recovery Journal's two halves:
// a bounded sender-side history used to build outgoing journals, and a
// receiver-side accept-set that recovers missed commands from an
// incoming journal and deduplicates against a wrap-aware sequence
// watermark (spec §4.3).
package journal

import "github.com/rtpmidi-go/core/wire"

// SeqLess reports whether a is ordered before b under RFC 1982 wrap-aware
// 16-bit sequence comparison: a < b iff (b-a) mod 2^16 is in (0, 2^15).
func SeqLess(a, b uint16) bool {
	diff := b - a
	return diff != 0 && diff < 0x8000
}

// SeqLessOrEqual reports whether a orders before or at b.
func SeqLessOrEqual(a, b uint16) bool {
	return a == b || SeqLess(a, b)
}

// SenderHistory is the bounded ring of previously sent entries a sender
// keeps so it can rebuild a recovery journal on every outgoing packet.
// Entries are real TimedCommands, not placeholders — the original
// implementation left this ring populated with empty entries.
type SenderHistory struct {
	maxEntries int
	entries    []wire.JournalEntry // ascending by SequenceNumber, oldest first
}

// NewSenderHistory returns a SenderHistory bounded to maxEntries (spec
// default HISTORY_SIZE=64).
func NewSenderHistory(maxEntries int) *SenderHistory {
	return &SenderHistory{maxEntries: maxEntries}
}

// Append records a just-sent sequence's commands, evicting the oldest
// entry once the ring exceeds its bound.
func (h *SenderHistory) Append(seq uint16, commands []wire.TimedCommand) {
	cp := make([]wire.TimedCommand, len(commands))
	copy(cp, commands)
	h.entries = append(h.entries, wire.JournalEntry{SequenceNumber: seq, Commands: cp})
	if len(h.entries) > h.maxEntries {
		h.entries = h.entries[len(h.entries)-h.maxEntries:]
	}
}

// BuildJournal returns an EnhancedJournal carrying every retained entry
// newer than lastAcked (the receiver's last known-good sequence, from its
// most recent RS feedback), for inclusion in the next outgoing packet.
// If lastAcked has never been reported, ackKnown should be false and the
// full retained history is sent.
func (h *SenderHistory) BuildJournal(lastAcked uint16, ackKnown bool) wire.EnhancedJournal {
	var entries []wire.JournalEntry
	for _, e := range h.entries {
		if !ackKnown || SeqLess(lastAcked, e.SequenceNumber) {
			entries = append(entries, e)
		}
	}
	var checkpoint uint8
	if len(h.entries) > 0 {
		checkpoint = uint8(h.entries[len(h.entries)-1].SequenceNumber)
	}
	return wire.EnhancedJournal{
		CheckpointSequenceNumber: checkpoint,
		Entries:                  entries,
	}
}

// RecoveredEntry is one sequence's commands surfaced by the receiver,
// either because it arrived live or because the journal recovered it.
type RecoveredEntry struct {
	SequenceNumber uint16
	Commands       []wire.TimedCommand
	Recovered      bool
}

// ReceiverJournal tracks a peer's inbound sequence watermark and uses
// attached journals to fill gaps left by lost packets.
type ReceiverJournal struct {
	recoveryWindow int
	initialized    bool
	watermark      uint16 // last accepted-as-live-or-recovered sequence
}

// NewReceiverJournal returns a ReceiverJournal with the given recovery
// window (spec default RECOVERY_WINDOW=64).
func NewReceiverJournal(recoveryWindow int) *ReceiverJournal {
	return &ReceiverJournal{recoveryWindow: recoveryWindow}
}

// Watermark returns the highest sequence number processed so far. It moves
// past an unrecoverable gap too, so it is not guaranteed that every
// sequence up to it was delivered.
func (r *ReceiverJournal) Watermark() uint16 { return r.watermark }

// Process handles one inbound packet: its sequence number, live commands,
// and an optional attached journal. It returns the in-order set of
// entries to deliver to the application (the packet's own commands plus
// any it allowed the engine to recover), and whether an unrecoverable gap
// was detected (some sequence between the prior watermark and this packet
// could not be found in the journal or was outside the recovery window).
func (r *ReceiverJournal) Process(seq uint16, commands []wire.TimedCommand, j *wire.EnhancedJournal) (emitted []RecoveredEntry, gap bool) {
	if !r.initialized {
		r.initialized = true
		r.watermark = seq - 1
	}

	expected := r.watermark + 1
	if SeqLessOrEqual(seq, r.watermark) {
		// Duplicate or stale retransmission: already accounted for.
		return nil, false
	}

	if seq != expected {
		// Gap: expected..seq-1 are missing. Try to recover them from the
		// attached journal, oldest-missing first.
		recoveredBySeq := map[uint16]wire.JournalEntry{}
		if j != nil {
			for _, e := range j.Entries {
				if r.withinRecoveryWindow(e.SequenceNumber, seq) && seqInRange(e.SequenceNumber, expected, seq-1) {
					recoveredBySeq[e.SequenceNumber] = e
				}
			}
		}
		missing := expected
		for missing != seq {
			if e, ok := recoveredBySeq[missing]; ok {
				emitted = append(emitted, RecoveredEntry{
					SequenceNumber: e.SequenceNumber,
					Commands:       e.Commands,
					Recovered:      true,
				})
			} else {
				gap = true
			}
			missing++
		}
	}

	emitted = append(emitted, RecoveredEntry{SequenceNumber: seq, Commands: commands})
	r.watermark = seq
	return emitted, gap
}

// withinRecoveryWindow reports whether seq is close enough to refSeq (the
// most recently arrived packet's sequence) to be worth recovering;
// entries more than recoveryWindow behind it are dropped silently per
// spec §4.3.
func (r *ReceiverJournal) withinRecoveryWindow(seq, refSeq uint16) bool {
	age := refSeq - seq
	return age <= uint16(r.recoveryWindow)
}

// seqInRange reports whether seq falls within [lo, hi] under wrap-aware
// ordering (lo <= hi is assumed to hold in the non-wrapped sense used by
// the caller, which only ever spans a short missing run).
func seqInRange(seq, lo, hi uint16) bool {
	return SeqLessOrEqual(lo, seq) && SeqLessOrEqual(seq, hi)
}
