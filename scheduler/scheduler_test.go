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

package scheduler_test

import (
	"context"
	"io"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	libcol "github.com/nabbar/cwatcher/collector"
	liberr "github.com/nabbar/cwatcher/errors"
	libmdl "github.com/nabbar/cwatcher/model"
	"github.com/nabbar/cwatcher/scheduler"
	libpool "github.com/nabbar/cwatcher/sshpool"
	"github.com/nabbar/cwatcher/statuseval"
	"github.com/nabbar/cwatcher/store"
)

type fakeLease struct{ id string }

func (l *fakeLease) ServerID() string { return l.id }
func (l *fakeLease) Run(ctx context.Context, cmd string, out io.Writer) (int, liberr.Error) {
	return 0, nil
}

type fakePool struct {
	mu       sync.Mutex
	fail     bool
	acquires int
}

func (p *fakePool) Register(server libmdl.Server, resolve libpool.SecretResolver) liberr.Error {
	return nil
}
func (p *fakePool) Deregister(serverID string) liberr.Error { return nil }
func (p *fakePool) Acquire(ctx context.Context, serverID string, timeout time.Duration) (libpool.Lease, liberr.Error) {
	p.mu.Lock()
	p.acquires++
	fail := p.fail
	p.mu.Unlock()
	if fail {
		return nil, libpool.ErrorDial.Error(nil)
	}
	return &fakeLease{id: serverID}, nil
}
func (p *fakePool) Release(l libpool.Lease)                         {}
func (p *fakePool) Invalidate(l libpool.Lease, reason liberr.Error) {}
func (p *fakePool) CloseServer(serverID string) liberr.Error        { return nil }
func (p *fakePool) Close()                                          {}

type fakeExecutor struct{}

func (fakeExecutor) Execute(ctx context.Context, lease libpool.Lease, key libcol.CommandKey) (libcol.RawOutput, liberr.Error) {
	switch key {
	case libcol.CmdCPU:
		return libcol.RawOutput{Stdout: "cpu  100 0 100 800 0 0 0 0 0 0\n"}, nil
	case libcol.CmdLoad:
		return libcol.RawOutput{Stdout: "0.10 0.20 0.30 1/200 1234\n"}, nil
	case libcol.CmdMemory:
		return libcol.RawOutput{Stdout: "              total        used        free      shared  buff/cache   available\nMem:    1000000000   400000000   300000000           0   300000000   600000000\nSwap:            0           0           0\n"}, nil
	case libcol.CmdDisk:
		return libcol.RawOutput{Stdout: "Filesystem     1B-blocks       Used  Available Use% Mounted on\n/dev/sda1    10000000000 5000000000 5000000000  50% /\n"}, nil
	case libcol.CmdNetwork:
		return libcol.RawOutput{Stdout: "Inter-|   Receive                                                |  Transmit\n face |bytes    packets errs drop fifo frame compressed multicast|bytes    packets errs drop fifo colls carrier compressed\n  eth0: 1000 10 0 0 0 0 0 0 2000 20 0 0 0 0 0 0\n"}, nil
	case libcol.CmdSysInfo:
		return libcol.RawOutput{Stdout: "Linux host 5.15.0\n4\nmodel name : Fake CPU\nMemTotal: 1000000 kB\neth0\n"}, nil
	}
	return libcol.RawOutput{}, libcol.ErrorUnknownCommand.Error(nil)
}

type fakePublisher struct {
	mu     sync.Mutex
	sample []libmdl.MetricsSample
	events []libmdl.StatusEvent
}

func (p *fakePublisher) PublishSample(sample libmdl.MetricsSample) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sample = append(p.sample, sample)
}
func (p *fakePublisher) PublishStatusEvent(event libmdl.StatusEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}
func (p *fakePublisher) samples() []libmdl.MetricsSample {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]libmdl.MetricsSample, len(p.sample))
	copy(out, p.sample)
	return out
}

type fakeSink struct {
	mu    sync.Mutex
	count int
}

func (s *fakeSink) WriteBatch(ctx context.Context, samples []libmdl.MetricsSample) store.SinkResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count += len(samples)
	return store.SinkOK
}

var _ = Describe("Scheduler", func() {
	var (
		pool *fakePool
		pub  *fakePublisher
		str  store.Store
		eval statuseval.Evaluator
		sch  scheduler.Scheduler
	)

	BeforeEach(func() {
		pool = &fakePool{}
		pub = &fakePublisher{}
		eval = statuseval.New()

		var err liberr.Error
		str, err = store.New(store.Config{RingCapacity: 10, BatchSize: 1, BatchFlush: 10 * time.Millisecond}, &fakeSink{})
		Expect(err).To(BeNil())

		cfg := scheduler.Config{Period: 50 * time.Millisecond, SysInfoInterval: time.Hour, CycleMargin: 10 * time.Millisecond}
		sch, err = scheduler.New(cfg, pool, fakeExecutor{}, eval, str, pub,
			func(server libmdl.Server) ([]byte, liberr.Error) { return []byte("secret"), nil }, nil)
		Expect(err).To(BeNil())
	})

	AfterEach(func() {
		sch.Stop()
		str.Close()
	})

	It("collects and publishes a sample for a monitored server", func() {
		server := libmdl.Server{ID: "srv-1", Host: "127.0.0.1", Port: 22, Username: "root", Monitor: true}
		Expect(sch.AddServer(server)).To(BeNil())
		sch.Start()

		Eventually(func() int { return len(pub.samples()) }, 2*time.Second, 10*time.Millisecond).Should(BeNumerically(">=", 1))

		sample := pub.samples()[0]
		Expect(sample.ServerID).To(Equal("srv-1"))
		Expect(sample.CPU).NotTo(BeNil())
		Expect(sample.Status).To(Equal(libmdl.StatusUnknown))
	})

	It("rejects a second registration of the same server", func() {
		server := libmdl.Server{ID: "srv-2", Host: "127.0.0.1", Port: 22, Username: "root", Monitor: true}
		Expect(sch.AddServer(server)).To(BeNil())
		Expect(sch.AddServer(server)).NotTo(BeNil())
	})

	It("reports offline once every command fails", func() {
		pool.mu.Lock()
		pool.fail = true
		pool.mu.Unlock()

		server := libmdl.Server{ID: "srv-3", Host: "127.0.0.1", Port: 22, Username: "root", Monitor: true}
		Expect(sch.AddServer(server)).To(BeNil())
		sch.Start()

		Eventually(func() libmdl.ServerStatusKind {
			status, _ := eval.Current("srv-3")
			return status
		}, 2*time.Second, 10*time.Millisecond).Should(Equal(libmdl.StatusOffline))
	})

	It("drops delta state on server removal", func() {
		server := libmdl.Server{ID: "srv-4", Host: "127.0.0.1", Port: 22, Username: "root", Monitor: true}
		Expect(sch.AddServer(server)).To(BeNil())
		sch.Start()
		Eventually(func() int { return len(pub.samples()) }, 2*time.Second, 10*time.Millisecond).Should(BeNumerically(">=", 1))

		sch.RemoveServer("srv-4")
		_, err := eval.Current("srv-4")
		Expect(err).NotTo(BeNil())
	})
})
