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
	"fmt"
	"math"

	"github.com/Knetic/govaluate"
	"github.com/eclesh/welford"
)

// QualityHelp describes the formula language accepted by NewQualityFormula,
// for wiring into CLI/config help text.
const QualityHelp = `When composing a sync-quality formula, here is what you can do:
supported operations:
  evaluation is done with govaluate, please check https://github.com/Knetic/govaluate/blob/master/MANUAL.md
supported variables:
  offset (smoothed clock offset estimate, in clock ticks)
  rtt (smoothed round-trip-time estimate, in clock ticks)
  jitter (running standard deviation of recorded offset samples, in clock ticks)
supported functions:
  abs(value) - absolute value of a single float64
  clamp(value, lo, hi) - value clamped to [lo, hi]`

// DefaultQualityFormula scores convergence on [0,1]: perfect when offset
// and jitter are both near zero, degrading as either grows.
const DefaultQualityFormula = "clamp(1.0 - (abs(offset)/2000.0) - (jitter/5000.0), 0, 1)"

var supportedQualityVariables = []string{"offset", "rtt", "jitter"}

func isSupportedQualityVar(name string) bool {
	for _, v := range supportedQualityVariables {
		if v == name {
			return true
		}
	}
	return false
}

var qualityFunctions = map[string]govaluate.ExpressionFunction{
	"abs": func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("abs: wrong number of arguments: want 1, got %d", len(args))
		}
		return math.Abs(args[0].(float64)), nil
	},
	"clamp": func(args ...interface{}) (interface{}, error) {
		if len(args) != 3 {
			return nil, fmt.Errorf("clamp: wrong number of arguments: want 3, got %d", len(args))
		}
		v, lo, hi := args[0].(float64), args[1].(float64), args[2].(float64)
		if v < lo {
			return lo, nil
		}
		if v > hi {
			return hi, nil
		}
		return v, nil
	},
}

// QualityFormula is a parsed, reusable govaluate expression for scoring
// sync convergence from the current offset/RTT/jitter estimate.
type QualityFormula struct {
	source string
	expr   *govaluate.EvaluableExpression
}

// NewQualityFormula parses and validates a formula string against the
// supported variable whitelist.
func NewQualityFormula(source string) (*QualityFormula, error) {
	expr, err := govaluate.NewEvaluableExpressionWithFunctions(source, qualityFunctions)
	if err != nil {
		return nil, fmt.Errorf("parsing quality formula: %w", err)
	}
	for _, v := range expr.Vars() {
		if !isSupportedQualityVar(v) {
			return nil, fmt.Errorf("unsupported variable %q in quality formula", v)
		}
	}
	return &QualityFormula{source: source, expr: expr}, nil
}

// Evaluate scores the given offset/RTT/jitter estimate.
func (f *QualityFormula) Evaluate(offset, rtt, jitter float64) (float64, error) {
	result, err := f.expr.Evaluate(map[string]interface{}{
		"offset": offset,
		"rtt":    rtt,
		"jitter": jitter,
	})
	if err != nil {
		return 0, fmt.Errorf("evaluating quality formula %q: %w", f.source, err)
	}
	score, ok := result.(float64)
	if !ok {
		return 0, fmt.Errorf("quality formula %q did not evaluate to a number", f.source)
	}
	return score, nil
}

// SyncTracker accumulates offset/RTT samples for one peer across CK
// rounds: EWMA-smoothed offset and RTT, a running variance of the offset
// samples (jitter), and a configurable QualityFormula over all three.
type SyncTracker struct {
	formula    *QualityFormula
	offsetEWMA *EWMA
	rttEWMA    *EWMA
	jitter     *welford.Stats
	rounds     int
}

// NewSyncTracker builds a tracker with the given formula. alpha configures
// the EWMA smoothing factor applied to the raw per-round offset/RTT
// samples.
func NewSyncTracker(formula *QualityFormula, alpha float64) *SyncTracker {
	return &SyncTracker{
		formula:    formula,
		offsetEWMA: NewEWMA(alpha),
		rttEWMA:    NewEWMA(alpha),
		jitter:     welford.New(),
	}
}

// RecordRound folds a completed CK round's offset/RTT into the tracker's
// smoothed estimates and jitter accumulator.
func (t *SyncTracker) RecordRound(offset int64, rtt uint64) {
	t.offsetEWMA.Update(float64(offset))
	t.rttEWMA.Update(float64(rtt))
	t.jitter.Add(float64(offset))
	t.rounds++
}

// Offset returns the current smoothed offset estimate, in ticks.
func (t *SyncTracker) Offset() float64 { return t.offsetEWMA.Value() }

// RTT returns the current smoothed RTT estimate, in ticks.
func (t *SyncTracker) RTT() float64 { return t.rttEWMA.Value() }

// Jitter returns the running standard deviation of recorded offsets.
func (t *SyncTracker) Jitter() float64 { return t.jitter.Stddev() }

// Rounds reports how many rounds have been recorded.
func (t *SyncTracker) Rounds() int { return t.rounds }

// Quality scores current convergence via the tracker's formula. Returns an
// error if no rounds have been recorded yet.
func (t *SyncTracker) Quality() (float64, error) {
	if t.rounds == 0 {
		return 0, fmt.Errorf("sync tracker: no rounds recorded")
	}
	return t.formula.Evaluate(t.Offset(), t.RTT(), t.Jitter())
}
