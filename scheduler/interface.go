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

// Package scheduler runs one collection cycle per registered, monitored
// Server on a fixed period, fanning each cycle's commands out over the
// SSH Pool in parallel, folding the result through the Threshold
// Evaluator, and submitting the resulting MetricsSample to the Sample
// Store and Push Fabric (§4.4).
//
// A dedicated goroutine owns each server's cadence. It deliberately does
// not use a time.Ticker: an overrun cycle's skipped ticks are computed
// and logged explicitly rather than silently coalesced.
package scheduler

import (
	liberr "github.com/nabbar/cwatcher/errors"
	libcol "github.com/nabbar/cwatcher/collector"
	liblog "github.com/nabbar/cwatcher/logger"
	libmdl "github.com/nabbar/cwatcher/model"
	libpool "github.com/nabbar/cwatcher/sshpool"
	libste "github.com/nabbar/cwatcher/statuseval"
	libstr "github.com/nabbar/cwatcher/store"
)

// Scheduler owns the fleet's collection cadence, one goroutine per
// registered, monitored Server.
type Scheduler interface {
	// AddServer registers server and starts its collection goroutine.
	// It returns ErrorAlreadyRegistered if server.ID is already tracked.
	AddServer(server libmdl.Server) liberr.Error

	// RemoveServer stops serverID's collection goroutine and drops its
	// delta state (§4.2 server removal). It is a no-op for an unknown
	// server.
	RemoveServer(serverID string)

	// UpdateServer replaces the stored Server record (e.g. a changed
	// ThresholdPolicy or collection flag) without restarting the
	// goroutine's delta state.
	UpdateServer(server libmdl.Server) liberr.Error

	// Start launches every currently-registered server's goroutine.
	Start()

	// Stop signals every server goroutine to exit and blocks until all
	// have returned.
	Stop()
}

// New builds a Scheduler wired to its collaborators. resolve supplies
// the plaintext secret for a Server at lease-dial time (forwarded to
// pool.Register, §4.7 secret-confinement invariant).
func New(cfg Config, pool libpool.Pool, exec libcol.Executor, eval libste.Evaluator, str libstr.Store, pub libmdl.Publisher, resolve libpool.SecretResolver, log liblog.FuncLog) (Scheduler, liberr.Error) {
	if pool == nil || exec == nil || eval == nil || str == nil || pub == nil || resolve == nil {
		return nil, ErrorParamsEmpty.Error(nil)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &scheduler{
		cfg:     cfg.withDefaults(),
		pool:    pool,
		exec:    exec,
		eval:    eval,
		store:   str,
		pub:     pub,
		resolve: resolve,
		log:     log,
		servers: make(map[string]*serverTask),
	}, nil
}
