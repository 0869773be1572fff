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

// Package sshpool provides a bounded pool of authenticated SSH sessions to
// registered remote servers, with strict host-key verification, connection
// backoff, and idle eviction.
//
// Architecture:
//
//	┌──────────────┐
//	│     Pool     │ ← Public Interface
//	└──────────────┘
//	       ↓
//	┌──────────────┐
//	│ serverPool   │ ← one per registered server, bounded semaphore
//	│ (per-server) │
//	└──────────────┘
//	       ↓
//	┌──────────────┐
//	│ ssh.Client / │ ← golang.org/x/crypto/ssh connection + sessions
//	│ ssh.Session  │
//	└──────────────┘
//
// A session is leased with Acquire and must be returned with Release (clean
// hand-back, session kept warm) or Invalidate (session or connection is
// known-bad and must be torn down). The pool never stores decrypted
// credentials; Acquire is handed a resolver callback that returns the
// plaintext secret for the duration of the dial only.
package sshpool

import (
	"context"
	"io"
	"time"

	libssh "golang.org/x/crypto/ssh"

	liberr "github.com/nabbar/cwatcher/errors"
	libmdl "github.com/nabbar/cwatcher/model"
)

// SecretResolver returns the plaintext secret (password or PEM private key)
// for a Server at dial time. The returned slice must be provided fresh for
// every call; the pool zeroes its local copy once the handshake completes.
type SecretResolver func(server libmdl.Server) ([]byte, liberr.Error)

// Lease is a borrowed, authenticated session against one server. Callers
// run exactly one command over a Lease and then call Release or Invalidate;
// a Lease must never be reused after either call.
type Lease interface {
	// ServerID returns the owning server's id.
	ServerID() string

	// Run executes cmd on the remote host, writing its stdout and stderr,
	// combined, to out, and returns the exit status recovered from the SSH channel.
	Run(ctx context.Context, cmd string, out io.Writer) (int, liberr.Error)
}

// Pool manages bounded sets of SSH sessions, one set per registered server.
type Pool interface {
	// Register adds or updates a server's pool entry. It does not dial;
	// connections are established lazily on first Acquire.
	Register(server libmdl.Server, resolve SecretResolver) liberr.Error

	// Deregister removes a server's pool entry, closing its sessions and
	// underlying connection (§4.2, "server removal" edge case).
	Deregister(serverID string) liberr.Error

	// Acquire blocks until a session slot for serverID is available, the
	// context is canceled, or timeout elapses, whichever comes first. It
	// returns ErrorBackoffActive if the server is presently in its
	// connection backoff window.
	Acquire(ctx context.Context, serverID string, timeout time.Duration) (Lease, liberr.Error)

	// Release returns a Lease to its pool in good standing, available for
	// the next Acquire.
	Release(l Lease)

	// Invalidate closes the server's underlying connection, records a
	// failure against the server's backoff state and frees the Lease's
	// slot; reason is not stored.
	Invalidate(l Lease, reason liberr.Error)

	// CloseServer closes every open connection for serverID without
	// removing its registration; the next Acquire reconnects.
	CloseServer(serverID string) liberr.Error

	// Close tears down every server's connections and releases all
	// resources held by the pool. The pool is unusable afterward.
	Close()
}

// New builds a Pool from cfg. trust is the known-hosts backed HostKeyStore
// consulted on every handshake (§4.2 host-key policy).
func New(cfg Config, trust HostKeyStore) (Pool, liberr.Error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg = cfg.withDefaults()

	return &pool{
		cfg:     cfg,
		trust:   trust,
		servers: make(map[string]*serverPool),
	}, nil
}

// sshDialer is the subset of golang.org/x/crypto/ssh the pool exercises.
// The pool itself calls libssh.Dial directly and does not use this type.
type sshDialer interface {
	Dial(network, addr string, config *libssh.ClientConfig) (*libssh.Client, error)
}
