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

// Package runtime wires every component into the single top-level object
// that owns the fleet's monitoring lifecycle. It is the one place that
// holds references to the Credential Vault, SSH Pool, Command Executor,
// Threshold Evaluator, Sample Store, Collector Scheduler and Push Fabric
// at once; no package outside runtime imports more than one of them
// together, so the dependency graph stays a DAG rooted here (§5, §9).
package runtime

import (
	"net/http"

	liberr "github.com/nabbar/cwatcher/errors"
	liblog "github.com/nabbar/cwatcher/logger"
	libmdl "github.com/nabbar/cwatcher/model"
	libcol "github.com/nabbar/cwatcher/collector"
	libpush "github.com/nabbar/cwatcher/push"
	libsch "github.com/nabbar/cwatcher/scheduler"
	libste "github.com/nabbar/cwatcher/statuseval"
	libpool "github.com/nabbar/cwatcher/sshpool"
	libstr "github.com/nabbar/cwatcher/store"
	libvlt "github.com/nabbar/cwatcher/vault"
)

// Runtime is the fleet monitoring service's public contract. A caller
// (cmd/cwatcherd, or a REST adapter) registers servers, serves WebSocket
// upgrades, and starts/stops the whole pipeline through this interface
// alone.
type Runtime interface {
	// AddServer registers server with both the SSH Pool (via the
	// Scheduler) and begins its collection cadence once Start has run.
	AddServer(server libmdl.Server) liberr.Error

	// UpdateServer applies a changed Server record in place.
	UpdateServer(server libmdl.Server) liberr.Error

	// RemoveServer stops server's cadence, drops its pool connections
	// and its debounce state (§4.2 server removal).
	RemoveServer(serverID string)

	// HandleUpgrade upgrades r into a tracked Push Fabric connection.
	HandleUpgrade(w http.ResponseWriter, r *http.Request) liberr.Error

	// ConnectionCount reports the Push Fabric's live connection count.
	ConnectionCount() int

	// Store exposes the Sample Store for read-only query adapters
	// (REST surface's GetLatestSample/GetSampleHistory, §6).
	Store() libstr.Store

	// Start begins every registered server's collection cadence.
	Start() liberr.Error

	// Shutdown stops the Scheduler, then the Push Fabric, then the
	// Pool, then the Store, in that order (§5, §9).
	Shutdown() liberr.Error
}

// New builds a Runtime from cfg, the durable Sink the Sample Store
// flushes to, and a lazily-resolved Logger shared by every component
// (following database.Database.RegisterLogger's deferred-resolution
// idiom). It fails with ErrorMasterKeyMissing if cfg.MasterKey is empty
// (§6 exit code 2) and with any component's own validation error
// otherwise.
func New(cfg Config, sink libstr.Sink, log liblog.FuncLog) (Runtime, liberr.Error) {
	if sink == nil {
		return nil, ErrorParamsEmpty.Error(nil)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(cfg.MasterKey) == 0 {
		return nil, ErrorMasterKeyMissing.Error(nil)
	}

	trust, err := newFileHostKeyStore(cfg.KnownHostsPath)
	if err != nil {
		return nil, err
	}

	vault := libvlt.New(cfg.MasterKey)

	pool, err := libpool.New(cfg.Pool, trust)
	if err != nil {
		return nil, err
	}

	str, err := libstr.New(cfg.Store, sink)
	if err != nil {
		return nil, err
	}

	hub, err := libpush.New(cfg.Push, str, log)
	if err != nil {
		return nil, err
	}

	exec := libcol.New()
	eval := libste.New()

	resolve := func(server libmdl.Server) ([]byte, liberr.Error) {
		return vault.Decrypt(server.Secret)
	}

	sched, err := libsch.New(cfg.Scheduler, pool, exec, eval, str, hub, resolve, log)
	if err != nil {
		return nil, err
	}

	return &cwatcher{
		vault: vault,
		trust: trust,
		pool:  pool,
		store: str,
		hub:   hub,
		sched: sched,
	}, nil
}
