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

// ParseMemory turns `free -b` output into a MemoryRecord. free -b reports
// byte-precise values directly, sidestepping locale/unit ambiguity (§4.3).
func ParseMemory(raw RawOutput) (libmdl.MemoryRecord, []ParseWarning) {
	var warn []ParseWarning
	rec := libmdl.MemoryRecord{}

	fields := freeFields(raw.Stdout)
	mem, ok := fields["Mem:"]
	if !ok || len(mem) < 3 {
		rec.Missing = true
		warn = append(warn, ParseWarning{Field: "memory", Message: "could not find Mem: row in free output"})
		return rec, warn
	}

	total, t1 := parseUintPtr(mem[0])
	used, t2 := parseUintPtr(mem[1])
	free, t3 := parseUintPtr(mem[2])
	rec.TotalBytes, rec.UsedBytes, rec.FreeBytes = total, used, free

	if len(mem) >= 6 {
		if avail, ok := parseUintPtr(mem[5]); ok {
			rec.AvailableBytes = avail
		}
	}
	if rec.AvailableBytes == nil && free != nil {
		rec.AvailableBytes = free
	}

	if swap, ok := fields["Swap:"]; ok && len(swap) >= 2 {
		rec.SwapTotalBytes, _ = parseUintPtr(swap[0])
		rec.SwapUsedBytes, _ = parseUintPtr(swap[1])
	}

	if t1 && t2 && t3 && total != nil && *total > 0 {
		pct := float64(*used) / float64(*total) * 100
		rec.UsagePercent = &pct
	} else {
		warn = append(warn, ParseWarning{Field: "usage_percent", Message: "total memory is zero or unparsable"})
	}

	return rec, warn
}

// freeFields maps each labeled row ("Mem:", "Swap:") of `free` output to
// its trailing numeric fields.
func freeFields(s string) map[string][]string {
	out := make(map[string][]string)
	for _, line := range strings.Split(s, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		if fields[0] == "Mem:" || fields[0] == "Swap:" {
			out[fields[0]] = fields[1:]
		}
	}
	return out
}

func parseUintPtr(s string) (*uint64, bool) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return nil, false
	}
	return &n, true
}
