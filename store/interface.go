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

// Package store holds recent MetricsSamples in bounded per-(server,
// metric) in-memory rings for live queries and chart backfill, and
// asynchronously flushes them to a durable Sink in batches (§4.5). Ring
// eviction never depends on sink success; on persistent sink failure the
// ring keeps serving live data while Degraded() reports true.
package store

import (
	"context"

	liberr "github.com/nabbar/cwatcher/errors"
	libmdl "github.com/nabbar/cwatcher/model"
)

// SinkResult is the durable sink's verdict for one WriteBatch call.
type SinkResult int

const (
	SinkOK SinkResult = iota
	SinkRetryable
	SinkFatal
)

// Sink is the external durable time-series collaborator (§4.5).
type Sink interface {
	WriteBatch(ctx context.Context, samples []libmdl.MetricsSample) SinkResult
}

// QueryResult is the answer to QueryRecent. Partial is true when range
// exceeds the ring's retained history and the caller must consult the
// durable sink for the remainder.
type QueryResult struct {
	Samples []libmdl.MetricsSample
	Partial bool
}

// Store is the Sample Store's public contract (§4.5).
type Store interface {
	// Submit appends sample to its server's per-metric rings. It rejects
	// with ErrorOutOfOrder a timestamp that is strictly older than the
	// server's latest known sample (§3 invariant b); an equal timestamp
	// is accepted.
	Submit(sample libmdl.MetricsSample) liberr.Error

	// QueryRecent returns samples for serverID carrying metric, with
	// timestamps in [now-rangeMS, now], oldest first.
	QueryRecent(serverID string, metric libmdl.MetricKind, rangeMS int64, now int64) (QueryResult, liberr.Error)

	// QueryLatest returns the freshest sample recorded for serverID, or
	// ErrorNoData.
	QueryLatest(serverID string) (libmdl.MetricsSample, liberr.Error)

	// Degraded reports whether the durable sink is currently failing
	// (sink_degraded, §4.5).
	Degraded() bool

	// Close stops the background flusher. It blocks until the flusher
	// has written its current batch, retries included; samples still
	// waiting in the pending queue are not written.
	Close()
}

// New builds a Store backed by sink, applying cfg's defaults for any
// zero-valued field.
func New(cfg Config, sink Sink) (Store, liberr.Error) {
	if sink == nil {
		return nil, ErrorParamsEmpty.Error(nil)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := newStore(cfg.withDefaults(), sink)
	s.startFlusher()
	return s, nil
}
