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

// skipMounts excludes pseudo-filesystems that never represent real disk
// capacity, matching `df`'s own convention of listing them with 0 blocks.
var skipMounts = map[string]bool{
	"/proc": true, "/sys": true, "/dev": true, "/run": true,
	"/dev/shm": true, "/sys/fs/cgroup": true,
}

// ParseDisk turns `df -B1` output into a DiskRecord, one DiskPartition per
// mounted filesystem (§4.3).
func ParseDisk(raw RawOutput) (libmdl.DiskRecord, []ParseWarning) {
	var warn []ParseWarning
	rec := libmdl.DiskRecord{}

	lines := strings.Split(strings.TrimSpace(raw.Stdout), "\n")
	if len(lines) < 2 {
		rec.Missing = true
		warn = append(warn, ParseWarning{Field: "disk", Message: "df output has no data rows"})
		return rec, warn
	}

	for _, line := range lines[1:] {
		fields := strings.Fields(line)
		if len(fields) < 6 {
			warn = append(warn, ParseWarning{Field: "disk", Message: "skipped malformed df row: " + line})
			continue
		}

		mount := fields[len(fields)-1]
		if skipMounts[mount] {
			continue
		}

		total, errT := strconv.ParseUint(fields[1], 10, 64)
		used, errU := strconv.ParseUint(fields[2], 10, 64)
		free, errF := strconv.ParseUint(fields[3], 10, 64)
		if errT != nil || errU != nil || errF != nil {
			warn = append(warn, ParseWarning{Field: "disk", Message: "skipped unparsable df row: " + line})
			continue
		}

		part := libmdl.DiskPartition{
			Mount:      mount,
			Device:     fields[0],
			TotalBytes: &total,
			UsedBytes:  &used,
			FreeBytes:  &free,
		}
		if total > 0 {
			pct := float64(used) / float64(total) * 100
			part.UsagePercent = &pct
		}
		rec.Partitions = append(rec.Partitions, part)
	}

	if len(rec.Partitions) == 0 {
		rec.Missing = true
	}

	return rec, warn
}
