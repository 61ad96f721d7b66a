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

// Package clock provides the monotonic tick source the session state
// machine and journal engine use for delta-times, RTP timestamps, and the
// CK clock-synchronization exchange. See the teacher's own clock package
// for precedent on keeping this as a small, standalone, swappable unit;
// unlike the teacher's PHC hardware-clock adapter, the only implementation
// needed here is a software tick source anchored at session creation.
package clock

import "time"

// Clock is the monotonic tick source. Ticks never decrease, and the
// origin is fixed at construction, not re-derived per packet — the fix
// spec'd for the original implementation's meaningless per-packet
// Instant::elapsed() timestamps.
type Clock interface {
	// NowTicks returns ticks elapsed since the clock's origin, at its
	// configured tick rate.
	NowTicks() uint64
	// TickRate returns the clock's rate in Hz.
	TickRate() uint64
}

// Monotonic is the real Clock: a single origin captured once, at session
// creation, with all subsequent reads derived from time.Since(origin).
type Monotonic struct {
	origin   time.Time
	tickRate uint64
}

// NewMonotonic returns a Clock whose origin is the current instant.
func NewMonotonic(tickRateHz uint64) *Monotonic {
	return &Monotonic{origin: time.Now(), tickRate: tickRateHz}
}

// NowTicks returns elapsed ticks since the clock was constructed.
func (m *Monotonic) NowTicks() uint64 {
	elapsed := time.Since(m.origin)
	return uint64(elapsed.Nanoseconds()) * m.tickRate / uint64(time.Second)
}

// TickRate returns the configured tick rate in Hz.
func (m *Monotonic) TickRate() uint64 {
	return m.tickRate
}

// DefaultTickRateHz is RTP-MIDI's conventional media-clock rate (spec §6).
const DefaultTickRateHz = 10000
