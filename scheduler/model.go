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

package scheduler

import (
	"context"
	"sync"
	"time"

	libcol "github.com/nabbar/cwatcher/collector"
	liberr "github.com/nabbar/cwatcher/errors"
	liblog "github.com/nabbar/cwatcher/logger"
	loglvl "github.com/nabbar/cwatcher/logger/level"
	libmdl "github.com/nabbar/cwatcher/model"
	libpool "github.com/nabbar/cwatcher/sshpool"
	libste "github.com/nabbar/cwatcher/statuseval"
	libstr "github.com/nabbar/cwatcher/store"
)

// serverTask is one registered server's scheduling state: its collection
// goroutine's cancel func, delta state threaded across cycles, and
// consecutive-failure count feeding backoff.
type serverTask struct {
	mu     sync.Mutex
	server libmdl.Server

	cancel context.CancelFunc
	done   chan struct{}

	state         libcol.ServerState
	lastSysInfoAt time.Time
	cpuCores      int
	failures      int
	backoffUntil  time.Time
}

func (t *serverTask) snapshot() libmdl.Server {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.server
}

func (t *serverTask) update(server libmdl.Server) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.server = server
}

type scheduler struct {
	cfg     Config
	pool    libpool.Pool
	exec    libcol.Executor
	eval    libste.Evaluator
	store   libstr.Store
	pub     libmdl.Publisher
	resolve libpool.SecretResolver
	log     liblog.FuncLog

	mu      sync.Mutex
	servers map[string]*serverTask
	sem     chan struct{}
	started bool
}

func (s *scheduler) logEntry(lvl loglvl.Level, msg string, args ...interface{}) {
	if s.log == nil {
		return
	}
	l := s.log()
	if l == nil {
		return
	}
	l.Entry(lvl, msg, args...).Log()
}

func (s *scheduler) AddServer(server libmdl.Server) liberr.Error {
	s.mu.Lock()
	if _, ok := s.servers[server.ID]; ok {
		s.mu.Unlock()
		return ErrorAlreadyRegistered.Error(nil)
	}

	if s.sem == nil {
		s.sem = make(chan struct{}, s.cfg.GlobalWorkerCap)
	}

	task := &serverTask{server: server}
	s.servers[server.ID] = task
	started := s.started
	s.mu.Unlock()

	if err := s.pool.Register(server, s.resolve); err != nil {
		s.mu.Lock()
		delete(s.servers, server.ID)
		s.mu.Unlock()
		return err
	}

	if started && server.Monitor {
		s.runTask(task)
	}

	return nil
}

func (s *scheduler) UpdateServer(server libmdl.Server) liberr.Error {
	s.mu.Lock()
	task, ok := s.servers[server.ID]
	s.mu.Unlock()
	if !ok {
		return ErrorUnknownServer.Error(nil)
	}

	task.update(server)
	return s.pool.Register(server, s.resolve)
}

func (s *scheduler) RemoveServer(serverID string) {
	s.mu.Lock()
	task, ok := s.servers[serverID]
	if ok {
		delete(s.servers, serverID)
	}
	s.mu.Unlock()

	if !ok {
		return
	}

	task.mu.Lock()
	cancel := task.cancel
	done := task.done
	task.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	s.eval.Forget(serverID)
	_ = s.pool.Deregister(serverID)
}

func (s *scheduler) Start() {
	s.mu.Lock()
	s.started = true
	tasks := make([]*serverTask, 0, len(s.servers))
	for _, t := range s.servers {
		tasks = append(tasks, t)
	}
	s.mu.Unlock()

	for _, t := range tasks {
		if t.snapshot().Monitor {
			s.runTask(t)
		}
	}
}

func (s *scheduler) Stop() {
	s.mu.Lock()
	tasks := make([]*serverTask, 0, len(s.servers))
	for _, t := range s.servers {
		tasks = append(tasks, t)
	}
	s.started = false
	s.mu.Unlock()

	for _, t := range tasks {
		t.mu.Lock()
		cancel := t.cancel
		done := t.done
		t.mu.Unlock()

		if cancel != nil {
			cancel()
			<-done
		}
	}
}

// runTask starts serverID's collection goroutine if it is not already
// running.
func (s *scheduler) runTask(task *serverTask) {
	task.mu.Lock()
	if task.cancel != nil {
		task.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	task.cancel = cancel
	task.done = done
	task.mu.Unlock()

	go s.runLoop(ctx, task, done)
}

// runLoop is one server's cadence: a manual timer rather than
// time.Ticker so an overrun cycle's skipped ticks can be counted and
// logged rather than silently dropped.
func (s *scheduler) runLoop(ctx context.Context, task *serverTask, done chan struct{}) {
	defer close(done)

	period := s.cfg.Period
	next := time.Now().Add(period)

	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Until(next)):
		}

		server := task.snapshot()
		start := time.Now()

		task.mu.Lock()
		skip := start.Before(task.backoffUntil)
		task.mu.Unlock()

		if skip {
			next = next.Add(period)
			continue
		}

		s.runCycle(ctx, task, server, start)

		elapsed := time.Since(start)
		if elapsed > period {
			missed := int(elapsed / period)
			s.logEntry(loglvl.WarnLevel, "collection cycle for server %s overran its period by %s, skipping %d tick(s)", server.ID, elapsed-period, missed)
			next = start.Add(time.Duration(missed+1) * period)
		} else {
			next = next.Add(period)
		}
	}
}

// runCycle acquires one lease per enabled command, runs them
// concurrently, and folds the result into the Store, the Evaluator, and
// the Push Fabric.
func (s *scheduler) runCycle(ctx context.Context, task *serverTask, server libmdl.Server, start time.Time) {
	budget := s.cfg.budget()
	cctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	policy := effectivePolicy(server)

	type cmdResult struct {
		key libcol.CommandKey
		raw libcol.RawOutput
		err liberr.Error
	}

	commands := []libcol.CommandKey{libcol.CmdCPU, libcol.CmdLoad, libcol.CmdMemory, libcol.CmdDisk, libcol.CmdNetwork}

	refreshSysInfo := task.lastSysInfoAtDue(start, s.cfg.SysInfoInterval)
	if refreshSysInfo {
		commands = append(commands, libcol.CmdSysInfo)
	}

	results := make(chan cmdResult, len(commands))
	var wg sync.WaitGroup

	for _, key := range commands {
		key := key
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.acquireSem()
			defer s.releaseSem()

			lease, lerr := s.pool.Acquire(cctx, server.ID, budget)
			if lerr != nil {
				results <- cmdResult{key: key, err: lerr}
				return
			}

			raw, rerr := s.exec.Execute(cctx, lease, key)
			if rerr != nil {
				s.pool.Invalidate(lease, rerr)
			} else {
				s.pool.Release(lease)
			}
			results <- cmdResult{key: key, raw: raw, err: rerr}
		}()
	}

	wg.Wait()
	close(results)

	raws := make(map[libcol.CommandKey]libcol.RawOutput)
	var connectErr liberr.Error
	succeeded := 0

	for r := range results {
		if r.err != nil {
			if connectErr == nil || isConnectivity(r.err) {
				connectErr = r.err
			}
			continue
		}
		raws[r.key] = r.raw
		succeeded++
	}

	now := start.UnixMilli()

	if succeeded == 0 {
		task.mu.Lock()
		task.failures++
		// backoff starts on the second consecutive failure: a single
		// failed cycle does not hold the server out of the schedule.
		task.backoffUntil = start.Add(s.cfg.backoffFor(task.failures - 1))
		task.mu.Unlock()

		reason := classifyConnectivity(connectErr)
		status, events := s.eval.Fail(server.ID, policy, reason, now)
		s.dispatchEvents(server.ID, status, events)
		return
	}

	task.mu.Lock()
	task.failures = 0
	task.backoffUntil = time.Time{}
	task.mu.Unlock()

	sample := libmdl.MetricsSample{ServerID: server.ID, Timestamp: now}

	if raw, ok := raws[libcol.CmdCPU]; ok {
		loadRaw := raws[libcol.CmdLoad]
		task.mu.Lock()
		cores := task.cpuCores
		task.mu.Unlock()
		rec, _ := libcol.ParseCPU(raw, loadRaw, cores, &task.state, start)
		sample.CPU = &rec
	} else {
		sample.CPU = &libmdl.CPURecord{Missing: true}
	}

	if raw, ok := raws[libcol.CmdMemory]; ok {
		rec, _ := libcol.ParseMemory(raw)
		sample.Memory = &rec
	} else {
		sample.Memory = &libmdl.MemoryRecord{Missing: true}
	}

	if raw, ok := raws[libcol.CmdDisk]; ok {
		rec, _ := libcol.ParseDisk(raw)
		sample.Disk = &rec
	} else {
		sample.Disk = &libmdl.DiskRecord{Missing: true}
	}

	if raw, ok := raws[libcol.CmdNetwork]; ok {
		rec, _ := libcol.ParseNetwork(raw, &task.state, start)
		sample.Network = &rec
	} else {
		sample.Network = &libmdl.NetworkRecord{Missing: true}
	}

	status, events := s.eval.Evaluate(server.ID, sample, policy, now)
	sample.Status = status

	if err := s.store.Submit(sample); err != nil {
		s.logEntry(loglvl.WarnLevel, "sample submit rejected for server %s: %s", server.ID, err.Error())
	}
	s.pub.PublishSample(sample)
	s.dispatchEvents(server.ID, status, events)

	if refreshSysInfo {
		if raw, ok := raws[libcol.CmdSysInfo]; ok {
			info, _ := libcol.ParseSysInfo(raw, server.ID, now)
			task.mu.Lock()
			task.lastSysInfoAt = start
			if info.CPUCores > 0 {
				task.cpuCores = info.CPUCores
			}
			task.mu.Unlock()
		}
	}
}

func (s *scheduler) dispatchEvents(serverID string, _ libmdl.ServerStatusKind, events []libmdl.StatusEvent) {
	for _, ev := range events {
		s.pub.PublishStatusEvent(ev)
	}
}

func (s *scheduler) acquireSem() {
	if s.sem != nil {
		s.sem <- struct{}{}
	}
}

func (s *scheduler) releaseSem() {
	if s.sem != nil {
		<-s.sem
	}
}

func (t *serverTask) lastSysInfoAtDue(now time.Time, interval time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.lastSysInfoAt.IsZero() {
		return true
	}
	return now.Sub(t.lastSysInfoAt) >= interval
}

func effectivePolicy(server libmdl.Server) libmdl.ThresholdPolicy {
	if server.Threshold != nil {
		return *server.Threshold
	}
	return libmdl.DefaultThresholdPolicy()
}

// isConnectivity reports whether err represents a transport/auth
// failure (as opposed to a command-level failure over an otherwise good
// session), used to prefer the most telling error when several commands
// fail differently in the same cycle.
func isConnectivity(err liberr.Error) bool {
	return err.IsCode(libpool.ErrorDial) ||
		err.IsCode(libpool.ErrorHandshake) ||
		err.IsCode(libpool.ErrorAuthFailed) ||
		err.IsCode(libpool.ErrorHostKeyMismatch) ||
		err.IsCode(libpool.ErrorHostKeyUnknown) ||
		err.IsCode(libpool.ErrorSecretDecrypt) ||
		err.IsCode(libpool.ErrorAcquireTimeout) ||
		err.IsCode(libpool.ErrorBackoffActive)
}

// classifyConnectivity maps an sshpool failure into the StatusReason
// carried on the resulting StatusEvent (§4.6, §7).
func classifyConnectivity(err liberr.Error) libmdl.StatusReason {
	if err == nil {
		return libmdl.ReasonSessionLost
	}
	switch {
	case err.IsCode(libpool.ErrorAuthFailed):
		return libmdl.ReasonAuthFailed
	case err.IsCode(libpool.ErrorHostKeyMismatch), err.IsCode(libpool.ErrorHostKeyUnknown):
		return libmdl.ReasonHostKeyMismatch
	case err.IsCode(libpool.ErrorSecretDecrypt):
		return libmdl.ReasonCredentialError
	case err.IsCode(libpool.ErrorDial), err.IsCode(libpool.ErrorAcquireTimeout), err.IsCode(libpool.ErrorBackoffActive), err.IsCode(libpool.ErrorHandshake):
		return libmdl.ReasonConnectFailed
	default:
		return libmdl.ReasonSessionLost
	}
}
