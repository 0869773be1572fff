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

// ServerStatusKind is the closed set of health states a Server can be in.
type ServerStatusKind string

const (
	StatusUnknown ServerStatusKind = "unknown"
	StatusOnline  ServerStatusKind = "online"
	StatusWarning ServerStatusKind = "warning"
	StatusCritical ServerStatusKind = "critical"
	StatusOffline ServerStatusKind = "offline"
)

// statusRank ranks statuses so the evaluator can pick the worst band across
// enabled metrics (§4.6). Offline always wins; Unknown never displaces
// a known status.
var statusRank = map[ServerStatusKind]int{
	StatusUnknown:  0,
	StatusOnline:   1,
	StatusWarning:  2,
	StatusCritical: 3,
	StatusOffline:  4,
}

// Worse returns the higher-severity of the two statuses.
func Worse(a, b ServerStatusKind) ServerStatusKind {
	if statusRank[b] > statusRank[a] {
		return b
	}
	return a
}

// Band is the per-metric threshold classification before it is folded
// into a ServerStatusKind.
type Band string

const (
	BandNormal   Band = "normal"
	BandWarning  Band = "warning"
	BandCritical Band = "critical"
)

// MetricThreshold defines the numeric bands for one metric (§4.6).
type MetricThreshold struct {
	Warning         float64 `mapstructure:"warning" json:"warning" yaml:"warning"`
	Critical        float64 `mapstructure:"critical" json:"critical" yaml:"critical"`
	DebounceSamples int     `mapstructure:"debounce_samples" json:"debounce_samples" yaml:"debounce_samples"`
}

// ThresholdPolicy carries the numeric bands per metric plus the
// debounce window for collection failures. A global default is merged
// with any per-Server override (§3).
type ThresholdPolicy struct {
	CPU              MetricThreshold `mapstructure:"cpu" json:"cpu" yaml:"cpu"`
	Memory           MetricThreshold `mapstructure:"memory" json:"memory" yaml:"memory"`
	Disk             MetricThreshold `mapstructure:"disk" json:"disk" yaml:"disk"`
	Network          MetricThreshold `mapstructure:"network" json:"network" yaml:"network"`
	OfflineDebounce  int             `mapstructure:"offline_debounce_samples" json:"offline_debounce_samples" yaml:"offline_debounce_samples"`
}

// Threshold returns the policy entry for kind.
func (p ThresholdPolicy) Threshold(kind MetricKind) MetricThreshold {
	switch kind {
	case MetricCPU:
		return p.CPU
	case MetricMemory:
		return p.Memory
	case MetricDisk:
		return p.Disk
	case MetricNetwork:
		return p.Network
	default:
		return MetricThreshold{}
	}
}

// DefaultThresholdPolicy mirrors the configuration key defaults
// (threshold_defaults.<metric>.{warning,critical,debounce_samples}, §6).
func DefaultThresholdPolicy() ThresholdPolicy {
	mk := func(warn, crit float64) MetricThreshold {
		return MetricThreshold{Warning: warn, Critical: crit, DebounceSamples: 3}
	}
	return ThresholdPolicy{
		CPU:             mk(80, 95),
		Memory:          mk(80, 95),
		Disk:            mk(85, 95),
		Network:         mk(80, 95),
		OfflineDebounce: 2,
	}
}

// StatusReason is a machine code explaining why a Server holds its
// current status; carried on StatusEvent and on Server for display.
type StatusReason string

const (
	ReasonNone            StatusReason = ""
	ReasonThreshold       StatusReason = "threshold"
	ReasonAuthFailed      StatusReason = "auth_failed"
	ReasonConnectFailed   StatusReason = "connect_failed"
	ReasonHostKeyMismatch StatusReason = "host_key_mismatch"
	ReasonCredentialError StatusReason = "credential_error"
	ReasonSessionLost     StatusReason = "session_lost"
	ReasonRecovered       StatusReason = "recovered"
)

// StatusEvent records one ServerStatus transition (§4.6). It is emitted
// only on transition, never per sample.
type StatusEvent struct {
	ServerID  string           `json:"server_id"`
	Prior     ServerStatusKind `json:"prior"`
	Current   ServerStatusKind `json:"current"`
	Metric    MetricKind       `json:"metric,omitempty"`
	Value     float64          `json:"value,omitempty"`
	Threshold float64          `json:"threshold,omitempty"`
	Reason    StatusReason     `json:"reason,omitempty"`
	At        int64            `json:"at"`
}
