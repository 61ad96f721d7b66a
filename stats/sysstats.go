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

package stats

import (
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/process"
)

var processStart = time.Now()

// SysStats samples host/process-level resource usage for the daemon's own
// process, generalized from the teacher's SysStats.CollectRuntimeStats.
type SysStats struct {
	proc *process.Process
}

// NewSysStats looks up the current process for later sampling.
func NewSysStats() (*SysStats, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	return &SysStats{proc: p}, nil
}

// Snapshot is one point-in-time read of process/runtime resource usage.
type Snapshot struct {
	UptimeSeconds uint64
	CPUPercent    float64
	RSSBytes      uint64
	VMSBytes      uint64
	NumFDs        int32
	NumThreads    int32
	Goroutines    int
	HeapAlloc     uint64
}

// Collect samples current resource usage. Fields whose gopsutil call fails
// are left zero rather than aborting the whole snapshot.
func (s *SysStats) Collect() Snapshot {
	snap := Snapshot{
		UptimeSeconds: uint64(time.Since(processStart).Seconds()),
		Goroutines:    runtime.NumGoroutine(),
	}

	if pct, err := s.proc.Percent(0); err == nil {
		snap.CPUPercent = pct
	}
	if mem, err := s.proc.MemoryInfo(); err == nil {
		snap.RSSBytes = mem.RSS
		snap.VMSBytes = mem.VMS
	}
	if fds, err := s.proc.NumFDs(); err == nil {
		snap.NumFDs = fds
	}
	if threads, err := s.proc.NumThreads(); err == nil {
		snap.NumThreads = threads
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	snap.HeapAlloc = m.HeapAlloc

	return snap
}
