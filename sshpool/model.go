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

package sshpool

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	libssh "golang.org/x/crypto/ssh"

	liberr "github.com/nabbar/cwatcher/errors"
	libmdl "github.com/nabbar/cwatcher/model"
)

type pool struct {
	mu      sync.RWMutex
	cfg     Config
	trust   HostKeyStore
	servers map[string]*serverPool
	closed  bool
}

func (p *pool) Register(server libmdl.Server, resolve SecretResolver) liberr.Error {
	if server.ID == "" || resolve == nil {
		return ErrorParamsEmpty.Error(nil)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrorPoolClosed.Error(nil)
	}

	if sp, ok := p.servers[server.ID]; ok {
		sp.mu.Lock()
		sp.server = server
		sp.resolve = resolve
		sp.mu.Unlock()
		return nil
	}

	p.servers[server.ID] = newServerPool(server, resolve, p.cfg, p.trust)
	return nil
}

func (p *pool) Deregister(serverID string) liberr.Error {
	p.mu.Lock()
	sp, ok := p.servers[serverID]
	if ok {
		delete(p.servers, serverID)
	}
	p.mu.Unlock()

	if !ok {
		return ErrorServerUnknown.Error(nil)
	}

	sp.closeConn()
	return nil
}

func (p *pool) getServer(serverID string) (*serverPool, liberr.Error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return nil, ErrorPoolClosed.Error(nil)
	}

	sp, ok := p.servers[serverID]
	if !ok {
		return nil, ErrorServerUnknown.Error(nil)
	}
	return sp, nil
}

func (p *pool) Acquire(ctx context.Context, serverID string, timeout time.Duration) (Lease, liberr.Error) {
	sp, err := p.getServer(serverID)
	if err != nil {
		return nil, err
	}

	if sp.inBackoff() {
		return nil, ErrorBackoffActive.Error(nil)
	}

	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	select {
	case sp.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ErrorAcquireTimeout.Error(ctx.Err())
	}

	cli, derr := sp.ensureConnected(ctx)
	if derr != nil {
		<-sp.sem
		sp.recordFailure()
		return nil, derr
	}

	sp.recordSuccess()
	return &lease{serverID: serverID, sp: sp, client: cli}, nil
}

func (p *pool) Release(l Lease) {
	le, ok := l.(*lease)
	if !ok {
		return
	}
	le.sp.touch()
	<-le.sp.sem
}

func (p *pool) Invalidate(l Lease, reason liberr.Error) {
	le, ok := l.(*lease)
	if !ok {
		return
	}
	le.sp.closeConn()
	le.sp.recordFailure()
	<-le.sp.sem
}

func (p *pool) CloseServer(serverID string) liberr.Error {
	sp, err := p.getServer(serverID)
	if err != nil {
		return err
	}
	sp.closeConn()
	return nil
}

func (p *pool) Close() {
	p.mu.Lock()
	p.closed = true
	servers := p.servers
	p.servers = make(map[string]*serverPool)
	p.mu.Unlock()

	for _, sp := range servers {
		sp.closeConn()
	}
}

// serverPool owns one server's live connection plus its bounded session
// semaphore and backoff state (§4.2).
type serverPool struct {
	mu    sync.Mutex
	cfg   Config
	trust HostKeyStore

	server  libmdl.Server
	resolve SecretResolver

	sem chan struct{}

	client   *libssh.Client
	lastUsed time.Time

	failures     int
	backoffUntil time.Time
}

func newServerPool(server libmdl.Server, resolve SecretResolver, cfg Config, trust HostKeyStore) *serverPool {
	return &serverPool{
		cfg:     cfg,
		trust:   trust,
		server:  server,
		resolve: resolve,
		sem:     make(chan struct{}, cfg.SessionsPerServer),
	}
}

func (sp *serverPool) inBackoff() bool {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return !sp.backoffUntil.IsZero() && time.Now().Before(sp.backoffUntil)
}

func (sp *serverPool) recordFailure() {
	sp.mu.Lock()
	defer sp.mu.Unlock()

	sp.failures++
	delay := sp.cfg.BackoffBase << (sp.failures - 1)
	if delay <= 0 || delay > sp.cfg.BackoffMax {
		delay = sp.cfg.BackoffMax
	}
	sp.backoffUntil = time.Now().Add(delay)
}

func (sp *serverPool) recordSuccess() {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	sp.failures = 0
	sp.backoffUntil = time.Time{}
}

func (sp *serverPool) touch() {
	sp.mu.Lock()
	sp.lastUsed = time.Now()
	sp.mu.Unlock()
}

// ensureConnected returns the current connection, dialing a new one if
// none exists or the prior connection sat idle past IdleTTL.
func (sp *serverPool) ensureConnected(ctx context.Context) (*libssh.Client, liberr.Error) {
	sp.mu.Lock()
	defer sp.mu.Unlock()

	if sp.client != nil {
		if !sp.lastUsed.IsZero() && time.Since(sp.lastUsed) > sp.cfg.IdleTTL {
			_ = sp.client.Close()
			sp.client = nil
		} else {
			return sp.client, nil
		}
	}

	secret, serr := sp.resolve(sp.server)
	if serr != nil {
		return nil, ErrorSecretDecrypt.Error(serr)
	}
	defer zero(secret)

	auth, aerr := authMethod(sp.server, secret)
	if aerr != nil {
		return nil, aerr
	}

	addr := sp.server.Addr()
	config := &libssh.ClientConfig{
		User:            sp.server.Username,
		Auth:            []libssh.AuthMethod{auth},
		Timeout:         sp.cfg.HandshakeTimeout,
		HostKeyCallback: sp.hostKeyCallback(addr),
	}

	cli, err := libssh.Dial("tcp", addr, config)
	if err != nil {
		return nil, classifyDialError(err)
	}

	sp.client = cli
	sp.lastUsed = time.Now()
	return cli, nil
}

// hostKeyCallback enforces the pool's host-key policy (§4.2): a server
// absent from the trust store is refused unless AllowTOFU is set, in
// which case the first observed key is learned and trusted thereafter.
func (sp *serverPool) hostKeyCallback(addr string) libssh.HostKeyCallback {
	return func(hostname string, remote net.Addr, key libssh.PublicKey) error {
		if sp.trust == nil {
			if !sp.cfg.AllowTOFU {
				return ErrorHostKeyUnknown.Error(nil)
			}
			return nil
		}

		known, ok := sp.trust.Lookup(addr)
		if !ok {
			if !sp.cfg.AllowTOFU {
				return ErrorHostKeyUnknown.Error(nil)
			}
			if err := sp.trust.Learn(addr, key); err != nil {
				return err
			}
			return nil
		}

		if !bytes.Equal(known.Marshal(), key.Marshal()) {
			return ErrorHostKeyMismatch.Error(nil)
		}
		return nil
	}
}

func (sp *serverPool) closeConn() {
	sp.mu.Lock()
	defer sp.mu.Unlock()

	if sp.client != nil {
		_ = sp.client.Close()
		sp.client = nil
	}
}

func classifyDialError(err error) liberr.Error {
	return ErrorDial.Error(err)
}

// authMethod builds the ssh.AuthMethod matching the server's configured
// AuthKind from the just-decrypted secret.
func authMethod(server libmdl.Server, secret []byte) (libssh.AuthMethod, liberr.Error) {
	switch server.AuthKind {
	case libmdl.AuthPassword:
		return libssh.Password(string(secret)), nil
	case libmdl.AuthPrivateKey:
		signer, err := libssh.ParsePrivateKey(secret)
		if err != nil {
			return nil, ErrorAuthFailed.Error(err)
		}
		return libssh.PublicKeys(signer), nil
	default:
		return nil, ErrorAuthFailed.Error(fmt.Errorf("unsupported auth kind %q", server.AuthKind.String()))
	}
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// lease is the concrete Lease: a reserved semaphore slot plus the shared
// connection it was drawn from. Run opens one exec session per call since
// SSH sessions are not reusable across commands.
type lease struct {
	serverID string
	sp       *serverPool
	client   *libssh.Client
}

func (l *lease) ServerID() string { return l.serverID }

func (l *lease) Run(ctx context.Context, cmd string, out io.Writer) (int, liberr.Error) {
	session, err := l.client.NewSession()
	if err != nil {
		return -1, ErrorSessionOpen.Error(err)
	}
	defer session.Close()

	var buf bytes.Buffer
	session.Stdout = &buf
	session.Stderr = &buf

	done := make(chan error, 1)
	go func() { done <- session.Run(cmd) }()

	select {
	case <-ctx.Done():
		_ = session.Signal(libssh.SIGKILL)
		return -1, ErrorSessionRun.Error(ctx.Err())
	case runErr := <-done:
		if out != nil {
			_, _ = out.Write(buf.Bytes())
		}
		if runErr == nil {
			return 0, nil
		}
		if exitErr, ok := runErr.(*libssh.ExitError); ok {
			return exitErr.ExitStatus(), nil
		}
		return -1, ErrorSessionRun.Error(runErr)
	}
}
