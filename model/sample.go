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

package model

// MetricKind is the closed set of metric families the collection pipeline
// understands. Values are stable across the wire format (§6) and the
// configuration key space (command_timeout_s.<key>).
type MetricKind string

const (
	MetricCPU     MetricKind = "cpu"
	MetricMemory  MetricKind = "memory"
	MetricDisk    MetricKind = "disk"
	MetricNetwork MetricKind = "network"
)

// AllMetricKinds lists every metric a MetricsSample can carry, in the
// order the scheduler launches their collection commands.
var AllMetricKinds = []MetricKind{MetricCPU, MetricMemory, MetricDisk, MetricNetwork}

// CPURecord is the parsed result of the "cpu" and "load" commands. Usage
// is omitted (Warmup true, UsagePercent nil) on the very first sample for
// a server, since busy-ratio needs a delta between two /proc/stat reads.
type CPURecord struct {
	Warmup       bool     `json:"warmup"`
	UsagePercent *float64 `json:"usage_percent"`
	Cores        int      `json:"cores"`
	Load1m       *float64 `json:"load_1m"`
	Load5m       *float64 `json:"load_5m"`
	Load15m      *float64 `json:"load_15m"`
	Missing      bool     `json:"missing"`
}

// MemoryRecord is the parsed result of the "memory" command (`free -b`).
type MemoryRecord struct {
	TotalBytes     *uint64  `json:"total_bytes"`
	UsedBytes      *uint64  `json:"used_bytes"`
	FreeBytes      *uint64  `json:"free_bytes"`
	AvailableBytes *uint64  `json:"available_bytes"`
	SwapTotalBytes *uint64  `json:"swap_total_bytes"`
	SwapUsedBytes  *uint64  `json:"swap_used_bytes"`
	UsagePercent   *float64 `json:"usage_percent"`
	Missing        bool     `json:"missing"`
}

// DiskPartition is one mounted filesystem reported by `df -B1`.
type DiskPartition struct {
	Mount        string   `json:"mount"`
	Device       string   `json:"device"`
	TotalBytes   *uint64  `json:"total_bytes"`
	UsedBytes    *uint64  `json:"used_bytes"`
	FreeBytes    *uint64  `json:"free_bytes"`
	UsagePercent *float64 `json:"usage_percent"`
}

// DiskRecord is the parsed result of the "disk" command.
type DiskRecord struct {
	Partitions []DiskPartition `json:"partitions"`
	Missing    bool            `json:"missing"`
}

// NetworkInterface is one interface's counters and derived rate, parsed
// from /proc/net/dev. RxBps/TxBps are nil on the first sample for a
// server (no previous counters to difference against) and are computed
// with modular (wraparound-safe) arithmetic thereafter.
type NetworkInterface struct {
	Name       string   `json:"name"`
	RxBytes    uint64   `json:"rx_bytes"`
	TxBytes    uint64   `json:"tx_bytes"`
	RxBps      *float64 `json:"rx_bps"`
	TxBps      *float64 `json:"tx_bps"`
}

// NetworkRecord is the parsed result of the "network" command.
type NetworkRecord struct {
	Interfaces []NetworkInterface `json:"interfaces"`
	Missing    bool               `json:"missing"`
}

// SystemInfo is the slow-changing host facts record (§3), refreshed on
// first connect and on a daily cadence thereafter.
type SystemInfo struct {
	ServerID      string   `json:"server_id"`
	Hostname      string   `json:"hostname"`
	OSName        string   `json:"os_name"`
	OSVersion     string   `json:"os_version"`
	Kernel        string   `json:"kernel"`
	CPUModel      string   `json:"cpu_model"`
	CPUCores      int      `json:"cpu_cores"`
	CPUThreads    int      `json:"cpu_threads"`
	TotalRAMBytes uint64   `json:"total_ram_bytes"`
	Interfaces    []string `json:"interfaces"`
	RefreshedAt   int64    `json:"refreshed_at_ms"`
}

// MetricsSample is one collection cycle's immutable result for one
// server (§3). All sub-records share Timestamp, the operator-wall-clock
// at cycle *start* (§4.4) so chart axes stay aligned; Seq is a
// per-server monotonic counter used to order samples that share a
// millisecond timestamp.
type MetricsSample struct {
	ServerID  string  `json:"server_id"`
	Timestamp int64   `json:"timestamp"`
	Seq       uint64  `json:"-"`
	CPU       *CPURecord     `json:"cpu,omitempty"`
	Memory    *MemoryRecord  `json:"memory,omitempty"`
	Disk      *DiskRecord    `json:"disk,omitempty"`
	Network   *NetworkRecord `json:"network,omitempty"`
	Status    ServerStatusKind `json:"status"`
}

// Has reports whether the sample carries a non-missing record for kind.
func (s MetricsSample) Has(kind MetricKind) bool {
	switch kind {
	case MetricCPU:
		return s.CPU != nil && !s.CPU.Missing
	case MetricMemory:
		return s.Memory != nil && !s.Memory.Missing
	case MetricDisk:
		return s.Disk != nil && !s.Disk.Missing
	case MetricNetwork:
		return s.Network != nil && !s.Network.Missing
	default:
		return false
	}
}
