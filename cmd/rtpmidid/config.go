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

package main

import (
	"os"
	"time"

	yaml "gopkg.in/yaml.v2"
)

// DynamicConfig holds the tunables an operator can override on top of the
// static flag-parsed settings (interface, ports, log level): sync cadence,
// timeouts and history sizing, overlaid from a YAML file the same way the
// teacher's server.DynamicConfig is read. The file is read once, at
// startup. QualityFormula is only parsed and validated; the manager's
// sessions always score sync quality with clock.DefaultQualityFormula.
type DynamicConfig struct {
	SyncInterval     time.Duration `yaml:"sync_interval"`
	FeedbackInterval time.Duration `yaml:"feedback_interval"`
	InviteTimeout    time.Duration `yaml:"invite_timeout"`
	InviteRetries    int           `yaml:"invite_retries"`
	LivenessTimeout  time.Duration `yaml:"liveness_timeout"`
	HistorySize      int           `yaml:"history_size"`
	RecoveryWindow   int           `yaml:"recovery_window"`
	QualityFormula   string        `yaml:"quality_formula"`
}

// readDynamicConfig loads a YAML overlay, returning (nil, nil) if path is
// empty so callers can fall back to the built-in defaults unconditionally.
func readDynamicConfig(path string) (*DynamicConfig, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	dc := &DynamicConfig{}
	if err := yaml.Unmarshal(data, dc); err != nil {
		return nil, err
	}
	return dc, nil
}
