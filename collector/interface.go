/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package collector runs the closed registry of remote collection commands
// over an sshpool.Lease and turns their raw stdout into typed metric
// records (§4.3). Parsers are pure functions over RawOutput; the only
// stateful part of this package is the per-server delta state (previous
// /proc/stat and /proc/net/dev counters) a caller threads across cycles.
package collector

import (
	"bytes"
	"context"
	"time"

	liberr "github.com/nabbar/cwatcher/errors"
	libmdl "github.com/nabbar/cwatcher/model"
	libpool "github.com/nabbar/cwatcher/sshpool"
)

// CommandKey identifies one entry of the closed command registry.
type CommandKey string

const (
	CmdCPU     CommandKey = "cpu"
	CmdMemory  CommandKey = "memory"
	CmdDisk    CommandKey = "disk"
	CmdNetwork CommandKey = "network"
	CmdSysInfo CommandKey = "sysinfo"
	CmdUptime  CommandKey = "uptime"
	CmdLoad    CommandKey = "load"
)

// commandSpec pairs a registry entry's shell command with its timeout.
type commandSpec struct {
	cmd     string
	timeout time.Duration
}

// registry is the closed set of commands the Executor may run. Callers
// cannot inject arbitrary shell strings; CommandKey is the only surface.
var registry = map[CommandKey]commandSpec{
	CmdCPU:     {cmd: "head -1 /proc/stat", timeout: 5 * time.Second},
	CmdMemory:  {cmd: "free -b", timeout: 5 * time.Second},
	CmdDisk:    {cmd: "df -B1", timeout: 8 * time.Second},
	CmdNetwork: {cmd: "cat /proc/net/dev", timeout: 5 * time.Second},
	CmdSysInfo: {cmd: "uname -a && nproc && cat /proc/cpuinfo | grep -m1 'model name' && cat /proc/meminfo | grep -m1 MemTotal && ls /sys/class/net", timeout: 10 * time.Second},
	CmdUptime:  {cmd: "cat /proc/uptime", timeout: 5 * time.Second},
	CmdLoad:    {cmd: "cat /proc/loadavg", timeout: 5 * time.Second},
}

// RawOutput is the unparsed result of one Execute call (§4.3).
type RawOutput struct {
	Stdout  string
	Stderr  string
	Exit    int
	Elapsed time.Duration
}

// ParseWarning records a tolerated parse anomaly; the affected field is
// left `missing` rather than panicking or zeroing (§4.3).
type ParseWarning struct {
	Field   string
	Message string
}

// Executor runs registry commands through an sshpool.Lease.
type Executor interface {
	// Execute runs commandKey's command over lease and returns its raw
	// output, or ErrorCommandFailed on non-zero exit (stderr truncated to
	// 1 KB) or ErrorCommandTimeout if it exceeds the registry timeout.
	Execute(ctx context.Context, lease libpool.Lease, key CommandKey) (RawOutput, liberr.Error)
}

// New builds the default Executor.
func New() Executor {
	return executor{}
}

type executor struct{}

const stderrExcerptLimit = 1024

func (executor) Execute(ctx context.Context, lease libpool.Lease, key CommandKey) (RawOutput, liberr.Error) {
	spec, ok := registry[key]
	if !ok {
		return RawOutput{}, ErrorUnknownCommand.Error(nil)
	}

	cctx, cancel := context.WithTimeout(ctx, spec.timeout)
	defer cancel()

	var out bytes.Buffer
	start := time.Now()
	exit, err := lease.Run(cctx, spec.cmd, &out)
	elapsed := time.Since(start)

	if err != nil {
		if cctx.Err() != nil {
			return RawOutput{Elapsed: elapsed}, ErrorCommandTimeout.Error(err)
		}
		return RawOutput{Elapsed: elapsed}, ErrorLeaseRun.Error(err)
	}

	raw := RawOutput{Stdout: out.String(), Exit: exit, Elapsed: elapsed}
	if exit != 0 {
		stderr := raw.Stdout
		if len(stderr) > stderrExcerptLimit {
			stderr = stderr[:stderrExcerptLimit]
		}
		raw.Stderr = stderr
		return raw, ErrorCommandFailed.Error(nil)
	}

	return raw, nil
}

// MetricKind exposes the model package's metric enumeration for callers
// building a registry-key-to-metric mapping.
type MetricKind = libmdl.MetricKind
