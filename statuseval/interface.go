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

// Package statuseval computes each Server's ServerStatus from its latest
// MetricsSample and a rolling debounce window (§4.6). A status candidate
// must hold for `debounce_samples` (or, for an offline candidate,
// `offline_debounce_samples`) consecutive samples before it becomes the
// Server's effective status; this keeps single noisy samples from
// flapping the displayed state.
package statuseval

import (
	liberr "github.com/nabbar/cwatcher/errors"
	libmdl "github.com/nabbar/cwatcher/model"
)

// Evaluator tracks debounce state per server and folds each new sample,
// or collection failure, into a status transition.
type Evaluator interface {
	// Evaluate folds sample against policy and the server's rolling
	// debounce state. It returns the server's current (possibly
	// unchanged) status and any StatusEvents produced by a transition
	// (zero or one event per call).
	Evaluate(server string, sample libmdl.MetricsSample, policy libmdl.ThresholdPolicy, now int64) (libmdl.ServerStatusKind, []libmdl.StatusEvent)

	// Fail registers a collection-cycle failure as an offline candidate
	// (§4.6). reason is carried on any produced StatusEvent.
	Fail(server string, policy libmdl.ThresholdPolicy, reason libmdl.StatusReason, now int64) (libmdl.ServerStatusKind, []libmdl.StatusEvent)

	// Current returns the server's last known status, or StatusUnknown
	// with ErrorServerUnknown if the server has never been evaluated.
	Current(server string) (libmdl.ServerStatusKind, liberr.Error)

	// Forget drops a server's debounce state (§4.2 server removal).
	Forget(server string)
}

// New builds the default Evaluator.
func New() Evaluator {
	return &evaluator{servers: make(map[string]*serverState)}
}
