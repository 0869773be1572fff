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

package collector

import "time"

// cpuJiffies is one /proc/stat "cpu" line's raw counters (units of
// USER_HZ, typically 1/100s).
type cpuJiffies struct {
	user, nice, system, idle, iowait, irq, softirq, steal uint64
}

func (c cpuJiffies) total() uint64 {
	return c.user + c.nice + c.system + c.idle + c.iowait + c.irq + c.softirq + c.steal
}

func (c cpuJiffies) busy() uint64 {
	return c.total() - c.idle - c.iowait
}

// netCounters is one interface's cumulative rx/tx byte counters.
type netCounters struct {
	rxBytes, txBytes uint64
}

// ServerState is the per-server delta state a caller (the Scheduler)
// threads across collection cycles so CPU busy-ratio and network
// byte-rates can be computed as deltas rather than instantaneous reads
// (§4.3). The zero value is a valid "no prior sample yet" state.
type ServerState struct {
	prevCPU     *cpuJiffies
	prevCPUAt   time.Time
	prevNet     map[string]netCounters
	prevNetAt   time.Time
}

// counterDelta computes cur-prev on a 64-bit counter, treating a decrease
// as wraparound and returning the modular distance (§4.3, scenario S5).
func counterDelta(prev, cur uint64) uint64 {
	if cur >= prev {
		return cur - prev
	}
	return (^uint64(0) - prev) + cur + 1
}
