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
	"path/filepath"
	"testing"
	"time"

	"github.com/rtpmidi-go/core/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadDynamicConfigEmptyPathReturnsNil(t *testing.T) {
	dc, err := readDynamicConfig("")
	require.NoError(t, err)
	assert.Nil(t, dc)
}

func TestReadDynamicConfigParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "overlay.yaml")
	body := "sync_interval: 5s\ninvite_retries: 3\nquality_formula: \"abs(offset)\"\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	dc, err := readDynamicConfig(path)
	require.NoError(t, err)
	require.NotNil(t, dc)
	assert.Equal(t, 5*time.Second, dc.SyncInterval)
	assert.Equal(t, 3, dc.InviteRetries)
	assert.Equal(t, "abs(offset)", dc.QualityFormula)
}

func TestApplyDynamicConfigOnlyOverridesSetFields(t *testing.T) {
	cfg := session.DefaultConfig()
	originalFeedback := cfg.FeedbackInterval

	dc := &DynamicConfig{InviteRetries: 7}
	applyDynamicConfig(&cfg, dc)

	assert.Equal(t, 7, cfg.InviteRetries)
	assert.Equal(t, originalFeedback, cfg.FeedbackInterval)
}
