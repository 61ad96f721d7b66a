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

package clock

// ComputeOffsetRTT derives the peer clock offset and round-trip time from
// a completed three-timestamp CK exchange: ts0 is the initiator's send
// time, ts1 the responder's receive/reply time, ts2 the initiator's
// receive time of the reply, all in the initiator's tick domain.
//
//	offset ≈ ts1 - (ts0+ts2)/2
//	rtt    ≈ ts2 - ts0
func ComputeOffsetRTT(ts0, ts1, ts2 uint64) (offset int64, rtt uint64) {
	mid := (ts0 + ts2) / 2
	offset = int64(ts1) - int64(mid)
	rtt = ts2 - ts0
	return offset, rtt
}

// EWMA is an exponentially weighted moving average, used to smooth the
// per-round offset and RTT samples a Peer accumulates (spec §4.2).
type EWMA struct {
	alpha       float64
	value       float64
	initialized bool
}

// NewEWMA returns an EWMA with the given smoothing factor, 0 < alpha <= 1.
// Smaller alpha weighs history more heavily; larger alpha tracks recent
// samples more closely.
func NewEWMA(alpha float64) *EWMA {
	return &EWMA{alpha: alpha}
}

// Update folds in a new sample and returns the updated average.
func (e *EWMA) Update(sample float64) float64 {
	if !e.initialized {
		e.value = sample
		e.initialized = true
		return e.value
	}
	e.value = e.alpha*sample + (1-e.alpha)*e.value
	return e.value
}

// Value returns the current average without updating it.
func (e *EWMA) Value() float64 {
	return e.value
}
