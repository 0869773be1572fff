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
	"encoding/json"
	"errors"
	"strings"

	libmdl "github.com/nabbar/cwatcher/model"
	gormdb "gorm.io/gorm"
)

// sampleRow is the durable row shape for one MetricsSample: the sub-
// records are kept as a single JSON payload since the sink is a
// system-of-record for replay/backfill, not a query engine (§1
// Non-goals exclude a query language / rollups).
type sampleRow struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	ServerID  string `gorm:"index:idx_sample_server_ts"`
	Timestamp int64  `gorm:"index:idx_sample_server_ts"`
	Status    string
	Payload   []byte
}

func (sampleRow) TableName() string { return "cwatcher_samples" }

// gormSink implements Sink over a *gorm.DB (supports
// postgres/mysql/sqlite/clickhouse/sqlserver via whichever
// gorm.io/driver package dialed it, unchanged here).
type gormSink struct {
	db *gormdb.DB
}

// NewGormSink builds a durable Sink backed by db. The caller is
// responsible for dialing db (gorm.Open with the desired driver) and
// for running the migration that creates cwatcher_samples (or an
// equivalent adapter-owned schema, per spec.md §6's "layout details
// are the storage adapter's concern").
func NewGormSink(db *gormdb.DB) Sink {
	return &gormSink{db: db}
}

func (g *gormSink) WriteBatch(ctx context.Context, samples []libmdl.MetricsSample) SinkResult {
	if len(samples) == 0 {
		return SinkOK
	}

	rows := make([]sampleRow, 0, len(samples))
	for _, s := range samples {
		payload, err := json.Marshal(s)
		if err != nil {
			// a sample that cannot be marshaled will never succeed on
			// retry; drop it from the batch rather than poison the rest.
			continue
		}
		rows = append(rows, sampleRow{
			ServerID:  s.ServerID,
			Timestamp: s.Timestamp,
			Status:    string(s.Status),
			Payload:   payload,
		})
	}
	if len(rows) == 0 {
		return SinkOK
	}

	if sqlDB, err := g.db.DB(); err != nil || sqlDB.Ping() != nil {
		return SinkRetryable
	}

	tx := g.db.WithContext(ctx).CreateInBatches(&rows, len(rows))
	if tx.Error == nil {
		return SinkOK
	}

	return classifyGormError(tx.Error)
}

// transientErrSubstrings are connection/availability failures a retry
// can plausibly overcome; anything else (constraint violation, schema
// mismatch, auth failure against the database) is treated as fatal so
// a doomed batch does not retry forever.
var transientErrSubstrings = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"too many connections",
	"timeout",
	"no such host",
	"server closed the connection",
}

func classifyGormError(err error) SinkResult {
	if err == nil {
		return SinkOK
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return SinkRetryable
	}

	msg := strings.ToLower(err.Error())
	for _, substr := range transientErrSubstrings {
		if strings.Contains(msg, substr) {
			return SinkRetryable
		}
	}
	return SinkFatal
}
