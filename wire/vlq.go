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
	"github.com/rtpmidi-go/core/errs"
)

// maxVLQBytes is the maximum length of a variable-length quantity: 4 bytes
// of 7 bits each, for a 28-bit value.
const maxVLQBytes = 4

// EncodeVLQ appends the big-endian base-128 encoding of value to buf and
// returns the extended slice. value must fit in 28 bits.
func EncodeVLQ(buf []byte, value uint32) []byte {
	if value == 0 {
		return append(buf, 0x00)
	}
	var tmp [maxVLQBytes]byte
	n := 0
	for v := value; v > 0; v >>= 7 {
		tmp[n] = byte(v & 0x7F)
		n++
	}
	for i := n - 1; i >= 0; i-- {
		b := tmp[i]
		if i != 0 {
			b |= 0x80
		}
		buf = append(buf, b)
	}
	return buf
}

// DecodeVLQ reads a variable-length quantity from the front of buf and
// returns its value and the number of bytes consumed.
func DecodeVLQ(buf []byte) (value uint32, n int, err error) {
	for n = 0; n < maxVLQBytes; n++ {
		if n >= len(buf) {
			return 0, 0, errs.Malformedf("wire.DecodeVLQ", "truncated VLQ after %d bytes", n)
		}
		b := buf[n]
		value = (value << 7) | uint32(b&0x7F)
		if b&0x80 == 0 {
			return value, n + 1, nil
		}
	}
	return 0, 0, errs.Malformedf("wire.DecodeVLQ", "VLQ exceeded %d bytes", maxVLQBytes)
}
