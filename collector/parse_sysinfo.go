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

package collector

import (
	"strconv"
	"strings"

	libmdl "github.com/nabbar/cwatcher/model"
)

// ParseSysInfo turns the sysinfo registry command's five-line output
// (uname -a, nproc, cpuinfo model line, meminfo MemTotal line, /sys/class/net
// listing) into a SystemInfo record. Individual lines are parsed
// independently so a missing one degrades that field instead of failing
// the whole record.
func ParseSysInfo(raw RawOutput, serverID string, now int64) (libmdl.SystemInfo, []ParseWarning) {
	var warn []ParseWarning
	info := libmdl.SystemInfo{ServerID: serverID, RefreshedAt: now}

	lines := strings.Split(raw.Stdout, "\n")
	if len(lines) > 0 {
		if u := strings.Fields(lines[0]); len(u) >= 3 {
			info.Hostname = u[1]
			info.Kernel = u[2]
			info.OSName = "linux"
		} else {
			warn = append(warn, ParseWarning{Field: "uname", Message: "could not parse uname -a line"})
		}
	}

	if len(lines) > 1 {
		if n, err := strconv.Atoi(strings.TrimSpace(lines[1])); err == nil {
			info.CPUThreads = n
			info.CPUCores = n
		} else {
			warn = append(warn, ParseWarning{Field: "nproc", Message: "could not parse nproc output"})
		}
	}

	if len(lines) > 2 {
		if idx := strings.Index(lines[2], ":"); idx >= 0 {
			info.CPUModel = strings.TrimSpace(lines[2][idx+1:])
		}
	}

	if len(lines) > 3 {
		fields := strings.Fields(lines[3])
		if len(fields) >= 2 {
			if kb, err := strconv.ParseUint(fields[1], 10, 64); err == nil {
				info.TotalRAMBytes = kb * 1024
			}
		} else {
			warn = append(warn, ParseWarning{Field: "meminfo", Message: "could not parse MemTotal line"})
		}
	}

	for _, l := range lines[minInt(4, len(lines)):] {
		name := strings.TrimSpace(l)
		if name == "" || name == "lo" {
			continue
		}
		info.Interfaces = append(info.Interfaces, name)
	}

	if info.OSVersion == "" {
		info.OSVersion = info.Kernel
	}

	return info, warn
}

// ParseUptimeSeconds turns `cat /proc/uptime` output into the host's
// uptime in seconds, discarding the idle-time second field.
func ParseUptimeSeconds(raw RawOutput) (float64, bool) {
	fields := strings.Fields(raw.Stdout)
	if len(fields) < 1 {
		return 0, false
	}
	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
