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

// Package push is the WebSocket fan-out fabric: it upgrades incoming
// HTTP connections, tracks each connection's declared Subscription, and
// broadcasts MetricsSamples and StatusEvents published by the Collector
// Scheduler to every interested connection without blocking the
// publishing goroutine (§4.7).
package push

import (
	"net/http"

	liberr "github.com/nabbar/cwatcher/errors"
	liblog "github.com/nabbar/cwatcher/logger"
	loglvl "github.com/nabbar/cwatcher/logger/level"
	libmdl "github.com/nabbar/cwatcher/model"
	libstr "github.com/nabbar/cwatcher/store"
)

// Hub is the Push Fabric's public contract. It implements
// model.Publisher so a Scheduler can hold it as its sink without this
// package's WebSocket concerns leaking into scheduler/.
type Hub interface {
	libmdl.Publisher

	// HandleUpgrade upgrades r into a tracked WebSocket connection,
	// rejecting it with ErrorConnLimitGlobal/ErrorConnLimitPerIP if the
	// fleet's connection caps are exceeded (§4.7.6).
	HandleUpgrade(w http.ResponseWriter, r *http.Request) liberr.Error

	// ConnectionCount returns the number of currently tracked
	// connections.
	ConnectionCount() int

	// Close sends SHUTDOWN to every connection and tears the hub down.
	// HandleUpgrade returns ErrorHubClosed afterward.
	Close()
}

// New builds a Hub backed by store for REQUEST_HISTORY replies. log is
// resolved lazily on each use, following the teacher's
// RegisterLogger-style lazy logger injection.
func New(cfg Config, store libstr.Store, log liblog.FuncLog) (Hub, liberr.Error) {
	if store == nil {
		return nil, ErrorParamsEmpty.Error(nil)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var logFn hubLogger
	if log != nil {
		logFn = func(format string, args ...interface{}) {
			l := log()
			if l == nil {
				return
			}
			l.Entry(loglvl.InfoLevel, format, args...).Log()
		}
	}

	return newHub(cfg.withDefaults(), store, logFn), nil
}
