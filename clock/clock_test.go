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

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonotonicNowTicksAdvances(t *testing.T) {
	c := NewMonotonic(DefaultTickRateHz)
	first := c.NowTicks()
	time.Sleep(2 * time.Millisecond)
	second := c.NowTicks()
	assert.GreaterOrEqual(t, second, first)
	assert.Equal(t, uint64(DefaultTickRateHz), c.TickRate())
}

func TestComputeOffsetRTTScenarioS3(t *testing.T) {
	// Spec scenario S3: ts0=1000, ts1=2500, ts2=1020 -> offset~=1490, rtt~=20.
	offset, rtt := ComputeOffsetRTT(1000, 2500, 1020)
	assert.Equal(t, int64(1490), offset)
	assert.Equal(t, uint64(20), rtt)
}

func TestComputeOffsetRTTZero(t *testing.T) {
	offset, rtt := ComputeOffsetRTT(1000, 1000, 1000)
	assert.Equal(t, int64(0), offset)
	assert.Equal(t, uint64(0), rtt)
}

func TestEWMAConvergesTowardSteadySamples(t *testing.T) {
	e := NewEWMA(0.5)
	var v float64
	for i := 0; i < 20; i++ {
		v = e.Update(100)
	}
	assert.InDelta(t, 100, v, 0.001)
}

func TestEWMAFirstSampleIsValue(t *testing.T) {
	e := NewEWMA(0.2)
	assert.Equal(t, float64(42), e.Update(42))
}

func TestSyncTrackerConvergesWithinOneMillisecondAfterThreeRounds(t *testing.T) {
	// Property 6: after 3 rounds at RTT<=20ms (200 ticks at 10kHz), the
	// offset estimate converges within 1ms (10 ticks) of ground truth.
	formula, err := NewQualityFormula(DefaultQualityFormula)
	require.NoError(t, err)
	tracker := NewSyncTracker(formula, 0.5)

	const trueOffsetTicks = int64(1490)
	samples := []int64{1495, 1488, 1491}
	for _, s := range samples {
		tracker.RecordRound(s, 20)
	}

	assert.Equal(t, 3, tracker.Rounds())
	assert.InDelta(t, float64(trueOffsetTicks), tracker.Offset(), 10)

	quality, err := tracker.Quality()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, quality, 0.0)
	assert.LessOrEqual(t, quality, 1.0)
}

func TestSyncTrackerQualityBeforeAnyRoundsErrors(t *testing.T) {
	formula, err := NewQualityFormula(DefaultQualityFormula)
	require.NoError(t, err)
	tracker := NewSyncTracker(formula, 0.5)
	_, err = tracker.Quality()
	assert.Error(t, err)
}

func TestNewQualityFormulaRejectsUnsupportedVariable(t *testing.T) {
	_, err := NewQualityFormula("mean(bogus, 1)")
	assert.Error(t, err)
}

func TestNewQualityFormulaRejectsSyntaxError(t *testing.T) {
	_, err := NewQualityFormula("(((")
	assert.Error(t, err)
}

func TestQualityFormulaDegradesWithJitter(t *testing.T) {
	formula, err := NewQualityFormula(DefaultQualityFormula)
	require.NoError(t, err)

	stable := NewSyncTracker(formula, 0.5)
	for i := 0; i < 8; i++ {
		stable.RecordRound(100, 20)
	}
	stableQuality, err := stable.Quality()
	require.NoError(t, err)

	jittery := NewSyncTracker(formula, 0.5)
	offsets := []int64{100, 4000, -3000, 3500, -4000, 2000, -2500, 3000}
	for _, o := range offsets {
		jittery.RecordRound(o, 20)
	}
	jitteryQuality, err := jittery.Quality()
	require.NoError(t, err)

	assert.Greater(t, stableQuality, jitteryQuality)
}
