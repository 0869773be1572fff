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
	"time"

	libmdl "github.com/nabbar/cwatcher/model"
)

// ParseCPU turns `head -1 /proc/stat` output plus `cat /proc/loadavg`
// output into a CPURecord. The busy-ratio is a delta against state's
// previous reading; on the first call for a server it returns
// Warmup=true with UsagePercent left nil (§4.3).
func ParseCPU(stat RawOutput, loadavg RawOutput, cores int, state *ServerState, now time.Time) (libmdl.CPURecord, []ParseWarning) {
	var warn []ParseWarning

	rec := libmdl.CPURecord{Cores: cores}

	cur, ok := parseCPULine(stat.Stdout)
	if !ok {
		rec.Missing = true
		warn = append(warn, ParseWarning{Field: "cpu", Message: "could not parse /proc/stat cpu line"})
		return rec, warn
	}

	if state.prevCPU == nil {
		rec.Warmup = true
	} else {
		deltaTotal := counterDelta(state.prevCPU.total(), cur.total())
		deltaBusy := counterDelta(state.prevCPU.busy(), cur.busy())
		if deltaTotal > 0 {
			pct := float64(deltaBusy) / float64(deltaTotal) * 100
			rec.UsagePercent = &pct
		} else {
			rec.Warmup = true
		}
	}

	c := cur
	state.prevCPU = &c
	state.prevCPUAt = now

	if l1, l5, l15, ok := parseLoadAvg(loadavg.Stdout); ok {
		rec.Load1m, rec.Load5m, rec.Load15m = &l1, &l5, &l15
	} else {
		warn = append(warn, ParseWarning{Field: "load", Message: "could not parse /proc/loadavg"})
	}

	return rec, warn
}

func parseCPULine(s string) (cpuJiffies, bool) {
	fields := strings.Fields(s)
	if len(fields) < 9 || fields[0] != "cpu" {
		return cpuJiffies{}, false
	}

	nums := make([]uint64, 0, 8)
	for _, f := range fields[1:9] {
		n, err := strconv.ParseUint(f, 10, 64)
		if err != nil {
			return cpuJiffies{}, false
		}
		nums = append(nums, n)
	}

	return cpuJiffies{
		user: nums[0], nice: nums[1], system: nums[2], idle: nums[3],
		iowait: nums[4], irq: nums[5], softirq: nums[6], steal: nums[7],
	}, true
}

func parseLoadAvg(s string) (l1, l5, l15 float64, ok bool) {
	fields := strings.Fields(s)
	if len(fields) < 3 {
		return 0, 0, 0, false
	}

	var err error
	if l1, err = strconv.ParseFloat(fields[0], 64); err != nil {
		return 0, 0, 0, false
	}
	if l5, err = strconv.ParseFloat(fields[1], 64); err != nil {
		return 0, 0, 0, false
	}
	if l15, err = strconv.ParseFloat(fields[2], 64); err != nil {
		return 0, 0, 0, false
	}
	return l1, l5, l15, true
}
