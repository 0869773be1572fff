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

package statuseval

import (
	"sync"

	liberr "github.com/nabbar/cwatcher/errors"
	libmdl "github.com/nabbar/cwatcher/model"
)

type evaluator struct {
	mu      sync.Mutex
	servers map[string]*serverState
}

// serverState is one server's debounce bookkeeping: the currently
// effective status, the pending band candidate with its run length, and
// the pending offline candidate's run length (§4.6).
type serverState struct {
	current        libmdl.ServerStatusKind
	candidateBand  libmdl.Band
	candidateCount int
	offlineCount   int
}

// stateFor returns the server's state, creating it on first use. Callers
// must hold e.mu.
func (e *evaluator) stateFor(server string) *serverState {
	s, ok := e.servers[server]
	if !ok {
		s = &serverState{current: libmdl.StatusUnknown}
		e.servers[server] = s
	}
	return s
}

func (e *evaluator) Current(server string) (libmdl.ServerStatusKind, liberr.Error) {
	e.mu.Lock()
	s, ok := e.servers[server]
	e.mu.Unlock()

	if !ok {
		return libmdl.StatusUnknown, ErrorServerUnknown.Error(nil)
	}
	return s.current, nil
}

func (e *evaluator) Forget(server string) {
	e.mu.Lock()
	delete(e.servers, server)
	e.mu.Unlock()
}

func (e *evaluator) Evaluate(server string, sample libmdl.MetricsSample, policy libmdl.ThresholdPolicy, now int64) (libmdl.ServerStatusKind, []libmdl.StatusEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.stateFor(server)

	var events []libmdl.StatusEvent

	wasOffline := st.current == libmdl.StatusOffline
	st.offlineCount = 0

	band, metric, value, threshold, classified := classify(sample, policy)

	if wasOffline {
		prior := st.current
		st.current = bandStatus(band)
		st.candidateBand = band
		st.candidateCount = 1
		events = append(events, libmdl.StatusEvent{
			ServerID: server, Prior: prior, Current: st.current,
			Metric: metric, Value: value, Threshold: threshold,
			Reason: libmdl.ReasonRecovered, At: now,
		})
		return st.current, events
	}

	if !classified {
		return st.current, events
	}

	if band == st.candidateBand {
		st.candidateCount++
	} else {
		st.candidateBand = band
		st.candidateCount = 1
	}

	required := policy.Threshold(metric).DebounceSamples
	if required <= 0 {
		required = 1
	}

	newStatus := bandStatus(band)
	if st.candidateCount >= required && newStatus != st.current {
		prior := st.current
		st.current = newStatus
		events = append(events, libmdl.StatusEvent{
			ServerID: server, Prior: prior, Current: newStatus,
			Metric: metric, Value: value, Threshold: threshold,
			Reason: libmdl.ReasonThreshold, At: now,
		})
	}

	return st.current, events
}

func (e *evaluator) Fail(server string, policy libmdl.ThresholdPolicy, reason libmdl.StatusReason, now int64) (libmdl.ServerStatusKind, []libmdl.StatusEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.stateFor(server)

	var events []libmdl.StatusEvent

	st.offlineCount++
	required := policy.OfflineDebounce
	if required <= 0 {
		required = 1
	}

	if st.offlineCount >= required && st.current != libmdl.StatusOffline {
		prior := st.current
		st.current = libmdl.StatusOffline
		events = append(events, libmdl.StatusEvent{
			ServerID: server, Prior: prior, Current: libmdl.StatusOffline,
			Reason: reason, At: now,
		})
	}

	return st.current, events
}

// classify picks the worst-banded enabled metric in sample, in
// AllMetricKinds order as the tie-break, returning its band, the metric
// that set it, the metric's headline value, and the threshold crossed.
// It returns classified=false only if every metric is missing.
func classify(sample libmdl.MetricsSample, policy libmdl.ThresholdPolicy) (band libmdl.Band, metric libmdl.MetricKind, value, threshold float64, classified bool) {
	band = libmdl.BandNormal

	for _, kind := range libmdl.AllMetricKinds {
		v, ok := headlineValue(sample, kind)
		if !ok {
			continue
		}

		th := policy.Threshold(kind)
		b, crossed := classifyValue(v, th)

		if !classified || rank(b) > rank(band) {
			classified = true
			band, metric, value = b, kind, v
			threshold = crossed
		}
	}

	return band, metric, value, threshold, classified
}

func classifyValue(v float64, th libmdl.MetricThreshold) (libmdl.Band, float64) {
	if v >= th.Critical {
		return libmdl.BandCritical, th.Critical
	}
	if v >= th.Warning {
		return libmdl.BandWarning, th.Warning
	}
	return libmdl.BandNormal, 0
}

func rank(b libmdl.Band) int {
	switch b {
	case libmdl.BandCritical:
		return 2
	case libmdl.BandWarning:
		return 1
	default:
		return 0
	}
}

func bandStatus(b libmdl.Band) libmdl.ServerStatusKind {
	switch b {
	case libmdl.BandCritical:
		return libmdl.StatusCritical
	case libmdl.BandWarning:
		return libmdl.StatusWarning
	default:
		return libmdl.StatusOnline
	}
}

// headlineValue extracts the single scalar a metric's threshold band is
// evaluated against: CPU/Memory use their usage percentage, Disk uses the
// worst (highest) partition usage percentage, Network uses the highest
// per-interface byte rate observed in the sample.
func headlineValue(sample libmdl.MetricsSample, kind libmdl.MetricKind) (float64, bool) {
	switch kind {
	case libmdl.MetricCPU:
		if sample.CPU == nil || sample.CPU.Missing || sample.CPU.UsagePercent == nil {
			return 0, false
		}
		return *sample.CPU.UsagePercent, true

	case libmdl.MetricMemory:
		if sample.Memory == nil || sample.Memory.Missing || sample.Memory.UsagePercent == nil {
			return 0, false
		}
		return *sample.Memory.UsagePercent, true

	case libmdl.MetricDisk:
		if sample.Disk == nil || sample.Disk.Missing {
			return 0, false
		}
		var worst float64
		var found bool
		for _, p := range sample.Disk.Partitions {
			if p.UsagePercent == nil {
				continue
			}
			if !found || *p.UsagePercent > worst {
				worst, found = *p.UsagePercent, true
			}
		}
		return worst, found

	case libmdl.MetricNetwork:
		if sample.Network == nil || sample.Network.Missing {
			return 0, false
		}
		var worst float64
		var found bool
		for _, iface := range sample.Network.Interfaces {
			for _, bps := range []*float64{iface.RxBps, iface.TxBps} {
				if bps == nil {
					continue
				}
				if !found || *bps > worst {
					worst, found = *bps, true
				}
			}
		}
		return worst, found

	default:
		return 0, false
	}
}
