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

package transport

import (
	"math/rand"
	"net"

	"github.com/rtpmidi-go/core/clock"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// recvBufBytes enlarges each listening socket's receive buffer so a burst
// of inbound datagrams from many peers doesn't overflow the kernel queue
// before a worker drains it (same SO_RCVBUF tuning the teacher applies via
// unix.SetNonblock-adjacent syscalls in ptp4u/server/server.go).
const recvBufBytes = 4 * 1024 * 1024

// tuneSocket sets SO_RCVBUF on conn's underlying file descriptor. Best
// effort: a failure here degrades under load rather than preventing the
// listener from starting.
func tuneSocket(conn *net.UDPConn) {
	raw, err := conn.SyscallConn()
	if err != nil {
		log.Debugf("transport: SyscallConn on %s: %v", conn.LocalAddr(), err)
		return
	}
	ctrlErr := raw.Control(func(fd uintptr) {
		if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, recvBufBytes); err != nil {
			log.Debugf("transport: SO_RCVBUF on %s: %v", conn.LocalAddr(), err)
		}
	})
	if ctrlErr != nil {
		log.Debugf("transport: raw control on %s: %v", conn.LocalAddr(), ctrlErr)
	}
}

func newMonotonicClock(tickRateHz uint64) *clock.Monotonic {
	if tickRateHz == 0 {
		tickRateHz = clock.DefaultTickRateHz
	}
	return clock.NewMonotonic(tickRateHz)
}

func newDefaultFormula() (*clock.QualityFormula, error) {
	return clock.NewQualityFormula(clock.DefaultQualityFormula)
}

func newSSRC() uint32 {
	for {
		if v := rand.Uint32(); v != 0 {
			return v
		}
	}
}
