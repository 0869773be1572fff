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

import (
	"strconv"
	"strings"
	"time"

	libmdl "github.com/nabbar/cwatcher/model"
)

// ParseNetwork turns `cat /proc/net/dev` output into a NetworkRecord. Rx/Tx
// byte-rates are a modular delta against state's previous counters per
// interface (§4.3); loopback is excluded since it never represents real
// network activity.
func ParseNetwork(raw RawOutput, state *ServerState, now time.Time) (libmdl.NetworkRecord, []ParseWarning) {
	var warn []ParseWarning
	rec := libmdl.NetworkRecord{}

	cur := make(map[string]netCounters)
	lines := strings.Split(raw.Stdout, "\n")
	for _, line := range lines {
		if !strings.Contains(line, ":") {
			continue
		}
		parts := strings.SplitN(line, ":", 2)
		name := strings.TrimSpace(parts[0])
		if name == "" || name == "lo" {
			continue
		}
		fields := strings.Fields(parts[1])
		if len(fields) < 9 {
			warn = append(warn, ParseWarning{Field: "network", Message: "skipped malformed row for " + name})
			continue
		}

		rx, errRx := strconv.ParseUint(fields[0], 10, 64)
		tx, errTx := strconv.ParseUint(fields[8], 10, 64)
		if errRx != nil || errTx != nil {
			warn = append(warn, ParseWarning{Field: "network", Message: "skipped unparsable counters for " + name})
			continue
		}

		cur[name] = netCounters{rxBytes: rx, txBytes: tx}
	}

	if len(cur) == 0 {
		rec.Missing = true
		warn = append(warn, ParseWarning{Field: "network", Message: "no interfaces found in /proc/net/dev"})
		return rec, warn
	}

	var elapsed float64
	if !state.prevNetAt.IsZero() {
		elapsed = now.Sub(state.prevNetAt).Seconds()
	}

	for name, c := range cur {
		iface := libmdl.NetworkInterface{Name: name, RxBytes: c.rxBytes, TxBytes: c.txBytes}

		if prev, ok := state.prevNet[name]; ok && elapsed > 0 {
			rxDelta := counterDelta(prev.rxBytes, c.rxBytes)
			txDelta := counterDelta(prev.txBytes, c.txBytes)
			rxBps := float64(rxDelta) / elapsed
			txBps := float64(txDelta) / elapsed
			iface.RxBps, iface.TxBps = &rxBps, &txBps
		}

		rec.Interfaces = append(rec.Interfaces, iface)
	}

	state.prevNet = cur
	state.prevNetAt = now

	return rec, warn
}
