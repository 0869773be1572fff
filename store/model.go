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

package store

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	libatm "github.com/nabbar/cwatcher/atomic"
	liberr "github.com/nabbar/cwatcher/errors"
	libmdl "github.com/nabbar/cwatcher/model"
)

type ringKey struct {
	server string
	metric libmdl.MetricKind
}

// metricRing is a fixed-size, oldest-first circular buffer of samples
// for one (server, metric) pair.
type metricRing struct {
	mu     sync.Mutex
	buf    []libmdl.MetricsSample
	next   int
	filled int
	total  uint64
}

func newMetricRing(capacity int) *metricRing {
	return &metricRing{buf: make([]libmdl.MetricsSample, capacity)}
}

func (r *metricRing) push(sample libmdl.MetricsSample) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buf[r.next] = sample
	r.next = (r.next + 1) % len(r.buf)
	if r.filled < len(r.buf) {
		r.filled++
	}
	r.total++
}

// evicted reports whether this ring has ever dropped a sample to make
// room for a newer one.
func (r *metricRing) evicted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total > uint64(len(r.buf))
}

// ordered returns the ring's contents oldest-first.
func (r *metricRing) ordered() []libmdl.MetricsSample {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]libmdl.MetricsSample, 0, r.filled)
	start := (r.next - r.filled + len(r.buf)) % len(r.buf)
	for i := 0; i < r.filled; i++ {
		out = append(out, r.buf[(start+i)%len(r.buf)])
	}
	return out
}

type store struct {
	cfg   Config
	sink  Sink
	rings libatm.MapTyped[ringKey, *metricRing]
	last  libatm.MapTyped[string, libmdl.MetricsSample]

	degraded int32

	pending chan libmdl.MetricsSample
	stop    chan struct{}
	done    chan struct{}
}

func newStore(cfg Config, sink Sink) *store {
	return &store{
		cfg:     cfg,
		sink:    sink,
		rings:   libatm.NewMapTyped[ringKey, *metricRing](),
		last:    libatm.NewMapTyped[string, libmdl.MetricsSample](),
		pending: make(chan libmdl.MetricsSample, cfg.PendingQueue),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (s *store) Submit(sample libmdl.MetricsSample) liberr.Error {
	if prev, ok := s.last.Load(sample.ServerID); ok && sample.Timestamp < prev.Timestamp {
		return ErrorOutOfOrder.Error(nil)
	}
	s.last.Store(sample.ServerID, sample)

	for _, kind := range libmdl.AllMetricKinds {
		if !sample.Has(kind) {
			continue
		}
		key := ringKey{server: sample.ServerID, metric: kind}
		ring, _ := s.rings.LoadOrStore(key, newMetricRing(s.cfg.RingCapacity))
		ring.push(sample)
	}

	select {
	case s.pending <- sample:
	default:
		// flusher is behind; the ring still holds the sample for live
		// queries, only durable persistence of this one is skipped.
	}

	return nil
}

func (s *store) QueryRecent(serverID string, metric libmdl.MetricKind, rangeMS int64, now int64) (QueryResult, liberr.Error) {
	ring, ok := s.rings.Load(ringKey{server: serverID, metric: metric})
	if !ok {
		return QueryResult{}, ErrorNoData.Error(nil)
	}

	all := ring.ordered()
	cutoff := now - rangeMS

	out := make([]libmdl.MetricsSample, 0, len(all))
	for _, sample := range all {
		if sample.Timestamp >= cutoff && sample.Timestamp <= now {
			out = append(out, sample)
		}
	}

	partial := ring.evicted() && len(all) > 0 && all[0].Timestamp > cutoff
	return QueryResult{Samples: out, Partial: partial}, nil
}

func (s *store) QueryLatest(serverID string) (libmdl.MetricsSample, liberr.Error) {
	sample, ok := s.last.Load(serverID)
	if !ok {
		return libmdl.MetricsSample{}, ErrorNoData.Error(nil)
	}
	return sample, nil
}

func (s *store) Degraded() bool {
	return atomic.LoadInt32(&s.degraded) == 1
}

func (s *store) Close() {
	close(s.stop)
	<-s.done
}

func (s *store) startFlusher() {
	go s.runFlusher()
}

func (s *store) runFlusher() {
	defer close(s.done)

	ticker := time.NewTicker(s.cfg.BatchFlush)
	defer ticker.Stop()

	batch := make([]libmdl.MetricsSample, 0, s.cfg.BatchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		s.writeWithRetry(batch)
		batch = batch[:0]
	}

	for {
		select {
		case <-s.stop:
			flush()
			return
		case sample := <-s.pending:
			batch = append(batch, sample)
			if len(batch) >= s.cfg.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

// writeWithRetry calls sink.WriteBatch, retrying SinkRetryable results
// with jittered backoff, and sets/clears the sink_degraded flag.
func (s *store) writeWithRetry(batch []libmdl.MetricsSample) {
	sent := make([]libmdl.MetricsSample, len(batch))
	copy(sent, batch)

	delay := s.cfg.RetryBaseDelay

	for attempt := 1; attempt <= s.cfg.RetryAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		result := s.sink.WriteBatch(ctx, sent)
		cancel()

		switch result {
		case SinkOK:
			atomic.StoreInt32(&s.degraded, 0)
			return
		case SinkFatal:
			atomic.StoreInt32(&s.degraded, 1)
			return
		case SinkRetryable:
			if attempt == s.cfg.RetryAttempts {
				atomic.StoreInt32(&s.degraded, 1)
				return
			}
			jitter := time.Duration(rand.Int63n(int64(delay) / 2))
			time.Sleep(delay + jitter)
			delay *= 2
		}
	}
}
