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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVLQRoundTrip(t *testing.T) {
	values := []uint32{0, 1, 127, 128, 16383, 16384, 2097151, 2097152, 268435455}
	for _, v := range values {
		buf := EncodeVLQ(nil, v)
		got, n, err := DecodeVLQ(buf)
		require.NoError(t, err)
		assert.Equal(t, len(buf), n)
		assert.Equal(t, v, got)
		assert.LessOrEqual(t, len(buf), maxVLQBytes)
	}
}

func TestDecodeVLQTruncated(t *testing.T) {
	_, _, err := DecodeVLQ([]byte{0x81})
	assert.Error(t, err)
}

func TestDecodeVLQOverflow(t *testing.T) {
	_, _, err := DecodeVLQ([]byte{0x81, 0x81, 0x81, 0x81, 0x01})
	assert.Error(t, err)
}

func TestEncodeVLQZero(t *testing.T) {
	buf := EncodeVLQ(nil, 0)
	assert.Equal(t, []byte{0x00}, buf)
}
