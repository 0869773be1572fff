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

package statuseval_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	libmdl "github.com/nabbar/cwatcher/model"
	"github.com/nabbar/cwatcher/statuseval"
)

func pf(v float64) *float64 { return &v }

func sampleCPU(usage float64) libmdl.MetricsSample {
	return libmdl.MetricsSample{
		ServerID: "srv-1",
		CPU:      &libmdl.CPURecord{UsagePercent: pf(usage)},
	}
}

func sampleDisk(usage float64) libmdl.MetricsSample {
	return libmdl.MetricsSample{
		ServerID: "srv-1",
		CPU:      &libmdl.CPURecord{UsagePercent: pf(10)},
		Disk: &libmdl.DiskRecord{Partitions: []libmdl.DiskPartition{
			{Mount: "/", UsagePercent: pf(usage)},
		}},
	}
}

var _ = Describe("Evaluator", func() {
	var (
		ev     statuseval.Evaluator
		policy libmdl.ThresholdPolicy
	)

	BeforeEach(func() {
		ev = statuseval.New()
		policy = libmdl.DefaultThresholdPolicy()
	})

	It("stays online while every metric is under its warning band", func() {
		// a new server starts Unknown; debounce_samples (3) normal samples
		// make it Online, after which further normal samples change nothing.
		ev.Evaluate("srv-1", sampleCPU(10), policy, 1000)
		ev.Evaluate("srv-1", sampleCPU(10), policy, 2000)
		ev.Evaluate("srv-1", sampleCPU(10), policy, 3000)

		status, events := ev.Evaluate("srv-1", sampleCPU(10), policy, 4000)
		Expect(status).To(Equal(libmdl.StatusOnline))
		Expect(events).To(BeEmpty())
	})

	It("requires debounce_samples consecutive warning-band samples before transitioning", func() {
		status, events := ev.Evaluate("srv-1", sampleCPU(85), policy, 1000)
		Expect(status).To(Equal(libmdl.StatusUnknown))
		Expect(events).To(BeEmpty())

		status, events = ev.Evaluate("srv-1", sampleCPU(85), policy, 2000)
		Expect(status).To(Equal(libmdl.StatusUnknown))
		Expect(events).To(BeEmpty())

		status, events = ev.Evaluate("srv-1", sampleCPU(85), policy, 3000)
		Expect(status).To(Equal(libmdl.StatusWarning))
		Expect(events).To(HaveLen(1))
		Expect(events[0].Reason).To(Equal(libmdl.ReasonThreshold))
		Expect(events[0].Metric).To(Equal(libmdl.MetricCPU))
	})

	It("resets the debounce run when the candidate band changes mid-run", func() {
		ev.Evaluate("srv-1", sampleCPU(85), policy, 1000)
		ev.Evaluate("srv-1", sampleCPU(85), policy, 2000)
		status, _ := ev.Evaluate("srv-1", sampleCPU(10), policy, 3000)
		Expect(status).To(Equal(libmdl.StatusUnknown))

		status, events := ev.Evaluate("srv-1", sampleCPU(85), policy, 4000)
		Expect(status).To(Equal(libmdl.StatusUnknown))
		Expect(events).To(BeEmpty())
	})

	It("takes the worst band across metrics", func() {
		for i := 0; i < 3; i++ {
			ev.Evaluate("srv-1", sampleDisk(97), policy, int64(i)*1000)
		}
		status, _ := ev.Current("srv-1")
		Expect(status).To(Equal(libmdl.StatusCritical))
	})

	It("marks a server offline only after offline_debounce_samples consecutive failures", func() {
		status, events := ev.Fail("srv-1", policy, libmdl.ReasonConnectFailed, 1000)
		Expect(status).To(Equal(libmdl.StatusUnknown))
		Expect(events).To(BeEmpty())

		status, events = ev.Fail("srv-1", policy, libmdl.ReasonConnectFailed, 2000)
		Expect(status).To(Equal(libmdl.StatusOffline))
		Expect(events).To(HaveLen(1))
		Expect(events[0].Reason).To(Equal(libmdl.ReasonConnectFailed))
	})

	It("recovers from offline on the next successful sample without waiting for debounce", func() {
		ev.Fail("srv-1", policy, libmdl.ReasonConnectFailed, 1000)
		ev.Fail("srv-1", policy, libmdl.ReasonConnectFailed, 2000)

		status, events := ev.Evaluate("srv-1", sampleCPU(10), policy, 3000)
		Expect(status).To(Equal(libmdl.StatusOnline))
		Expect(events).To(HaveLen(1))
		Expect(events[0].Reason).To(Equal(libmdl.ReasonRecovered))
		Expect(events[0].Prior).To(Equal(libmdl.StatusOffline))
	})

	It("returns ErrorServerUnknown for a server with no tracked state", func() {
		_, err := ev.Current("srv-ghost")
		Expect(err).To(HaveOccurred())
		Expect(err.IsCode(statuseval.ErrorServerUnknown)).To(BeTrue())
	})

	It("drops tracked state on Forget", func() {
		ev.Evaluate("srv-1", sampleCPU(10), policy, 1000)
		ev.Forget("srv-1")
		_, err := ev.Current("srv-1")
		Expect(err).To(HaveOccurred())
	})
})
