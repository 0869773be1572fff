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

package collector_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/cwatcher/collector"
)

var _ = Describe("ParseMemory", func() {
	It("parses free -b Mem and Swap rows into byte-precise fields", func() {
		raw := collector.RawOutput{Stdout: "" +
			"              total        used        free      shared  buff/cache   available\n" +
			"Mem:     1000000000   400000000   300000000    10000000   300000000   600000000\n" +
			"Swap:     500000000   100000000   400000000\n"}

		rec, warn := collector.ParseMemory(raw)

		Expect(warn).To(BeEmpty())
		Expect(*rec.TotalBytes).To(BeEquivalentTo(1000000000))
		Expect(*rec.UsedBytes).To(BeEquivalentTo(400000000))
		Expect(*rec.SwapTotalBytes).To(BeEquivalentTo(500000000))
		Expect(*rec.UsagePercent).To(BeNumerically("~", 40.0, 0.01))
	})

	It("marks the record missing when the Mem row is absent", func() {
		raw := collector.RawOutput{Stdout: "garbage output\n"}

		rec, warn := collector.ParseMemory(raw)

		Expect(rec.Missing).To(BeTrue())
		Expect(warn).ToNot(BeEmpty())
	})
})
