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

package runtime_test

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	libmdl "github.com/nabbar/cwatcher/model"
	"github.com/nabbar/cwatcher/push"
	"github.com/nabbar/cwatcher/runtime"
	"github.com/nabbar/cwatcher/scheduler"
	"github.com/nabbar/cwatcher/sshpool"
	"github.com/nabbar/cwatcher/store"
)

type fakeSink struct{}

func (fakeSink) WriteBatch(ctx context.Context, samples []libmdl.MetricsSample) store.SinkResult {
	return store.SinkOK
}

func validConfig(dir string) runtime.Config {
	return runtime.Config{
		MasterKey:      []byte("a-fleet-wide-master-key-value!!"),
		KnownHostsPath: filepath.Join(dir, "known_hosts"),
		Pool:           sshpool.Config{SessionsPerServer: 2},
		Scheduler:      scheduler.Config{Period: 30 * time.Second},
		Store:          store.Config{RingCapacity: 16, BatchSize: 4},
		Push:           push.Config{},
	}
}

var _ = Describe("Runtime", func() {
	var dir string

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "cwatcher-runtime")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		_ = os.RemoveAll(dir)
	})

	It("refuses to build without a master key", func() {
		cfg := validConfig(dir)
		cfg.MasterKey = nil

		rt, err := runtime.New(cfg, fakeSink{}, nil)
		Expect(rt).To(BeNil())
		Expect(err).NotTo(BeNil())
		Expect(err.IsCode(runtime.ErrorMasterKeyMissing)).To(BeTrue())
	})

	It("builds, registers a server, starts and shuts down cleanly", func() {
		rt, err := runtime.New(validConfig(dir), fakeSink{}, nil)
		Expect(err).To(BeNil())
		Expect(rt).NotTo(BeNil())

		server := libmdl.Server{
			ID:       "srv-1",
			Name:     "box one",
			Host:     "127.0.0.1",
			Port:     22,
			Username: "root",
			AuthKind: libmdl.AuthPassword,
			Monitor:  true,
		}

		Expect(rt.AddServer(server)).To(BeNil())
		Expect(rt.Start()).To(BeNil())
		Expect(rt.Start()).NotTo(BeNil())

		rt.RemoveServer(server.ID)

		Expect(rt.Shutdown()).To(BeNil())
		Expect(rt.Shutdown()).NotTo(BeNil())
	})

	It("rejects shutdown before start", func() {
		rt, err := runtime.New(validConfig(dir), fakeSink{}, nil)
		Expect(err).To(BeNil())

		shutErr := rt.Shutdown()
		Expect(shutErr).NotTo(BeNil())
		Expect(shutErr.IsCode(runtime.ErrorNotStarted)).To(BeTrue())
	})
})
