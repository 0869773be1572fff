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

package runtime

import (
	"net/http"
	"sync"

	liberr "github.com/nabbar/cwatcher/errors"
	libmdl "github.com/nabbar/cwatcher/model"
	libpush "github.com/nabbar/cwatcher/push"
	libsch "github.com/nabbar/cwatcher/scheduler"
	libpool "github.com/nabbar/cwatcher/sshpool"
	libstr "github.com/nabbar/cwatcher/store"
	libvlt "github.com/nabbar/cwatcher/vault"
)

type cwatcher struct {
	mu      sync.Mutex
	started bool

	vault libvlt.Vault
	trust *fileHostKeyStore
	pool  libpool.Pool
	store libstr.Store
	hub   libpush.Hub
	sched libsch.Scheduler
}

func (c *cwatcher) AddServer(server libmdl.Server) liberr.Error {
	return c.sched.AddServer(server)
}

func (c *cwatcher) UpdateServer(server libmdl.Server) liberr.Error {
	return c.sched.UpdateServer(server)
}

func (c *cwatcher) RemoveServer(serverID string) {
	c.sched.RemoveServer(serverID)
}

func (c *cwatcher) HandleUpgrade(w http.ResponseWriter, r *http.Request) liberr.Error {
	return c.hub.HandleUpgrade(w, r)
}

func (c *cwatcher) ConnectionCount() int {
	return c.hub.ConnectionCount()
}

func (c *cwatcher) Store() libstr.Store {
	return c.store
}

func (c *cwatcher) Start() liberr.Error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return ErrorAlreadyStarted.Error(nil)
	}

	c.sched.Start()
	c.started = true
	return nil
}

// Shutdown tears every component down in the order the no-global-mutable-
// singletons design commits to (§5, §9): the Scheduler stops producing
// new work first, then the Push Fabric stops delivering it, then the
// Pool's connections are closed, and finally the Store's durable sink.
func (c *cwatcher) Shutdown() liberr.Error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started {
		return ErrorNotStarted.Error(nil)
	}

	c.sched.Stop()
	c.hub.Close()
	c.pool.Close()
	c.store.Close()

	c.started = false
	return nil
}
