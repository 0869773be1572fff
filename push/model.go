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

package push

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	gorilla "github.com/gorilla/websocket"

	libatm "github.com/nabbar/cwatcher/atomic"
	liberr "github.com/nabbar/cwatcher/errors"
	libmdl "github.com/nabbar/cwatcher/model"
	libstr "github.com/nabbar/cwatcher/store"
)

// connection is one upgraded WebSocket client: a reader goroutine
// decoding client frames, a writer goroutine draining send with
// best-effort BATCH coalescing, and a Subscription guarded by mu.
type connection struct {
	id     string
	remote string
	ws     *gorilla.Conn

	send chan []byte
	done chan struct{}

	mu   sync.Mutex
	sub  libmdl.Subscription
	quit sync.Once

	missedPongs int32
	drops       int32
	dropWindow  time.Time
}

func (c *connection) subscription() libmdl.Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sub
}

func (c *connection) setSubscription(sub libmdl.Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sub = sub
}

// enqueue non-blockingly hands encoded to the connection's send queue,
// recording a drop rather than blocking the calling (broadcast) path
// (§4.7.4).
func (c *connection) enqueue(encoded []byte) (dropped bool) {
	select {
	case c.send <- encoded:
		return false
	default:
		return true
	}
}

type hub struct {
	cfg   Config
	store libstr.Store
	log   hubLogger

	upgrader gorilla.Upgrader

	conns    libatm.MapTyped[string, *connection]
	byServer libatm.MapTyped[string, *connSet]
	wildcard *connSet
	perIP    libatm.MapTyped[string, *int32]

	total  int32
	closed int32
	nextID uint64
}

// hubLogger is the narrow logging surface the hub exercises; satisfied
// by a closure over liblog.FuncLog so this file stays test-friendly
// without importing the logger package's full surface directly.
type hubLogger func(format string, args ...interface{})

func newHub(cfg Config, store libstr.Store, log hubLogger) *hub {
	return &hub{
		cfg:      cfg,
		store:    store,
		log:      log,
		upgrader: gorilla.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096, CheckOrigin: func(*http.Request) bool { return true }},
		conns:    libatm.NewMapTyped[string, *connection](),
		byServer: libatm.NewMapTyped[string, *connSet](),
		wildcard: newConnSet(),
		perIP:    libatm.NewMapTyped[string, *int32](),
	}
}

func (h *hub) isClosed() bool { return atomic.LoadInt32(&h.closed) == 1 }

func (h *hub) newConnID() string {
	n := atomic.AddUint64(&h.nextID, 1)
	return "conn-" + itoa(n)
}

func itoa(n uint64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// HandleUpgrade accepts a WebSocket handshake and registers the
// resulting Connection, enforcing the global and per-address connection
// caps (§4.7.6) before upgrading.
func (h *hub) HandleUpgrade(w http.ResponseWriter, r *http.Request) liberr.Error {
	if h.isClosed() {
		return ErrorHubClosed.Error(nil)
	}

	if int(atomic.LoadInt32(&h.total)) >= h.cfg.MaxConnections {
		http.Error(w, "too many connections", http.StatusTooManyRequests)
		return ErrorConnLimitGlobal.Error(nil)
	}

	remoteIP := remoteAddr(r)
	counter, _ := h.perIP.LoadOrStore(remoteIP, new(int32))
	if int(atomic.LoadInt32(counter)) >= h.cfg.MaxPerIP {
		http.Error(w, "too many connections from this address", http.StatusTooManyRequests)
		return ErrorConnLimitPerIP.Error(nil)
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return ErrorUpgradeFailed.Error(err)
	}

	atomic.AddInt32(&h.total, 1)
	atomic.AddInt32(counter, 1)

	c := &connection{
		id:     h.newConnID(),
		remote: remoteIP,
		ws:     ws,
		send:   make(chan []byte, h.cfg.SendQueue),
		done:   make(chan struct{}),
	}
	h.conns.Store(c.id, c)

	hello := libmdl.Envelope{Type: libmdl.WireHello, TS: time.Now().UnixMilli(), ID: c.id}
	if encoded, eerr := encodeEnvelope(hello, CompressionNone, h.cfg.CompressionThreshold); eerr == nil {
		c.enqueue(encoded)
	}

	go h.writeLoop(c)
	go h.readLoop(c)

	return nil
}

func remoteAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// readLoop decodes client frames until the connection closes, folding
// SUBSCRIBE/UNSUBSCRIBE into the subscription index and REQUEST_HISTORY
// into a Sample Store query (§4.7.2).
func (h *hub) readLoop(c *connection) {
	defer h.closeConn(c, libmdl.CloseClientClosed)

	c.ws.SetReadLimit(h.cfg.MaxMessageBytes)
	_ = c.ws.SetReadDeadline(time.Now().Add(h.cfg.HeartbeatInterval * time.Duration(h.cfg.HeartbeatMisses+1)))
	c.ws.SetPongHandler(func(string) error {
		atomic.StoreInt32(&c.missedPongs, 0)
		_ = c.ws.SetReadDeadline(time.Now().Add(h.cfg.HeartbeatInterval * time.Duration(h.cfg.HeartbeatMisses+1)))
		return nil
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			return
		}

		var env libmdl.Envelope
		if err = json.Unmarshal(raw, &env); err != nil {
			h.sendError(c, "malformed_message")
			continue
		}

		h.handleClientMessage(c, env)
	}
}

func (h *hub) handleClientMessage(c *connection, env libmdl.Envelope) {
	switch env.Type {
	case libmdl.WireSubscribe:
		h.handleSubscribe(c, env)
	case libmdl.WireUnsubscribe:
		h.handleUnsubscribe(c, env)
	case libmdl.WirePing:
		h.sendEnvelope(c, libmdl.Envelope{Type: libmdl.WirePong, TS: time.Now().UnixMilli(), ID: env.ID})
	case libmdl.WireRequestHist:
		h.handleHistory(c, env)
	default:
		h.sendError(c, "unknown_type")
	}
}

func (h *hub) handleSubscribe(c *connection, env libmdl.Envelope) {
	data, ok := env.Data.(map[string]interface{})
	if !ok {
		h.sendError(c, "invalid_subscribe")
		return
	}

	sub := libmdl.Subscription{ConnectionID: c.id, ServerIDs: map[string]struct{}{}, Metrics: map[libmdl.MetricKind]struct{}{}}

	if all, ok := data["servers"].(string); ok && strings.EqualFold(all, "all") {
		sub.AllServers = true
	} else if list, ok := data["servers"].([]interface{}); ok {
		for _, v := range list {
			if s, ok := v.(string); ok {
				sub.ServerIDs[s] = struct{}{}
			}
		}
	}

	if list, ok := data["metrics"].([]interface{}); ok {
		for _, v := range list {
			if s, ok := v.(string); ok {
				sub.Metrics[libmdl.MetricKind(s)] = struct{}{}
			}
		}
	}

	if s, ok := data["min_status"].(string); ok {
		sub.MinStatus = libmdl.ServerStatusKind(s)
	}

	h.replaceSubscription(c, sub)
	h.sendEnvelope(c, libmdl.Envelope{Type: libmdl.WireSubscribeAck, TS: time.Now().UnixMilli(), ID: env.ID})
}

func (h *hub) handleUnsubscribe(c *connection, _ libmdl.Envelope) {
	h.replaceSubscription(c, libmdl.Subscription{ConnectionID: c.id})
}

func (h *hub) handleHistory(c *connection, env libmdl.Envelope) {
	data, ok := env.Data.(map[string]interface{})
	if !ok {
		h.sendError(c, "invalid_history_request")
		return
	}

	server, _ := data["server"].(string)
	metric, _ := data["metric"].(string)
	rangeMS, _ := data["range_ms"].(float64)

	result, err := h.store.QueryRecent(server, libmdl.MetricKind(metric), int64(rangeMS), time.Now().UnixMilli())
	if err != nil {
		h.sendError(c, "no_data")
		return
	}

	h.sendEnvelope(c, libmdl.Envelope{Type: libmdl.WireHistory, TS: time.Now().UnixMilli(), ID: env.ID, Data: result})
}

// replaceSubscription swaps c's Subscription wholesale, updating the
// forward index (§4.7.3, "replaces, never merges").
func (h *hub) replaceSubscription(c *connection, sub libmdl.Subscription) {
	prev := c.subscription()

	if prev.AllServers {
		h.wildcard.remove(c.id)
	} else {
		for id := range prev.ServerIDs {
			if set, ok := h.byServer.Load(id); ok {
				set.remove(c.id)
			}
		}
	}

	c.setSubscription(sub)

	if sub.AllServers {
		h.wildcard.add(c.id)
		return
	}
	for id := range sub.ServerIDs {
		set, _ := h.byServer.LoadOrStore(id, newConnSet())
		set.add(c.id)
	}
}

func (h *hub) sendError(c *connection, reason string) {
	h.sendEnvelope(c, libmdl.Envelope{Type: libmdl.WireError, TS: time.Now().UnixMilli(), Data: map[string]string{"reason": reason}})
}

func (h *hub) sendEnvelope(c *connection, env libmdl.Envelope) {
	encoded, err := encodeEnvelope(env, h.cfg.CompressionKind, h.cfg.CompressionThreshold)
	if err != nil {
		return
	}
	if dropped := c.enqueue(encoded); dropped {
		h.recordDrop(c)
	}
}

func (h *hub) recordDrop(c *connection) {
	now := time.Now()
	c.mu.Lock()
	if now.Sub(c.dropWindow) > h.cfg.SlowConsumerWindow {
		c.dropWindow = now
		atomic.StoreInt32(&c.drops, 0)
	}
	c.mu.Unlock()

	if atomic.AddInt32(&c.drops, 1) >= int32(h.cfg.SlowConsumerDrops) {
		h.closeConn(c, libmdl.CloseSlowConsumer)
	}
}

// writeLoop drains c.send, coalescing the frames already queued behind
// the first one into a single BATCH frame while preserving
// per-connection enqueue order (§4.7.4), and runs the heartbeat PING
// ticker.
func (h *hub) writeLoop(c *connection) {
	heartbeat := time.NewTicker(h.cfg.HeartbeatInterval)
	defer heartbeat.Stop()
	defer c.ws.Close()

	for {
		select {
		case <-c.done:
			_ = c.ws.WriteMessage(gorilla.CloseMessage, gorilla.FormatCloseMessage(gorilla.CloseNormalClosure, ""))
			return

		case <-heartbeat.C:
			if atomic.AddInt32(&c.missedPongs, 1) > int32(h.cfg.HeartbeatMisses) {
				h.closeConn(c, libmdl.CloseHeartbeatTimeout)
				continue
			}
			_ = c.ws.WriteMessage(gorilla.PingMessage, nil)

		case first, ok := <-c.send:
			if !ok {
				return
			}
			batch := h.drainBatch(c, first)
			if err := c.ws.WriteMessage(gorilla.BinaryMessage, batch); err != nil {
				h.closeConn(c, libmdl.CloseProtocolError)
				return
			}
		}
	}
}

// drainBatch collects any further frames already queued and coalesces
// them into one BATCH envelope; a lone frame is returned unwrapped. It
// stops at the first moment the queue is empty and does not wait for
// frames that arrive later; BatchWindow bounds the collection only while
// frames keep arriving.
func (h *hub) drainBatch(c *connection, first []byte) []byte {
	pending := [][]byte{first}

	timer := time.NewTimer(h.cfg.BatchWindow)
	defer timer.Stop()

collect:
	for {
		select {
		case more, ok := <-c.send:
			if !ok {
				break collect
			}
			pending = append(pending, more)
		case <-timer.C:
			break collect
		default:
			break collect
		}
	}

	if len(pending) == 1 {
		return pending[0]
	}

	env := libmdl.Envelope{Type: libmdl.WireBatch, TS: time.Now().UnixMilli(), Data: rawFrames(pending)}
	encoded, err := encodeEnvelope(env, CompressionNone, 0)
	if err != nil {
		return pending[0]
	}
	return encoded
}

// rawFrames exposes already-encoded per-message bytes as base64-free
// opaque strings so the BATCH envelope's Data field stays JSON-safe
// without re-decoding each member frame.
func rawFrames(frames [][]byte) []string {
	out := make([]string, len(frames))
	for i, f := range frames {
		out[i] = string(f)
	}
	return out
}

func (h *hub) closeConn(c *connection, reason libmdl.CloseReason) {
	c.quit.Do(func() {
		close(c.done)

		sub := c.subscription()
		if sub.AllServers {
			h.wildcard.remove(c.id)
		} else {
			for id := range sub.ServerIDs {
				if set, ok := h.byServer.Load(id); ok {
					set.remove(c.id)
				}
			}
		}

		h.conns.Delete(c.id)
		atomic.AddInt32(&h.total, -1)
		if counter, ok := h.perIP.Load(c.remote); ok {
			atomic.AddInt32(counter, -1)
		}

		if h.log != nil {
			h.log("push: connection %s closed: %s", c.id, reason)
		}
	})
}

// broadcast fans encoded out to every connection subscribed to
// serverID that also passes metric/status filters, without blocking on
// any single connection's queue (§4.7.4).
func (h *hub) broadcast(serverID string, metrics []libmdl.MetricKind, status libmdl.ServerStatusKind, env libmdl.Envelope) {
	targets := map[string]struct{}{}
	for _, id := range h.wildcard.snapshot() {
		targets[id] = struct{}{}
	}
	if set, ok := h.byServer.Load(serverID); ok {
		for _, id := range set.snapshot() {
			targets[id] = struct{}{}
		}
	}
	if len(targets) == 0 {
		return
	}

	encoded, err := encodeEnvelope(env, h.cfg.CompressionKind, h.cfg.CompressionThreshold)
	if err != nil {
		return
	}

	for id := range targets {
		c, ok := h.conns.Load(id)
		if !ok {
			continue
		}
		sub := c.subscription()
		if !sub.WantsStatus(status) {
			continue
		}
		if len(metrics) > 0 {
			wanted := false
			for _, m := range metrics {
				if sub.WantsMetric(m) {
					wanted = true
					break
				}
			}
			if !wanted {
				continue
			}
		}
		if dropped := c.enqueue(encoded); dropped {
			h.recordDrop(c)
		}
	}
}

// PublishSample implements model.Publisher (§4.4 step 6).
func (h *hub) PublishSample(sample libmdl.MetricsSample) {
	if h.isClosed() {
		return
	}

	var kinds []libmdl.MetricKind
	for _, k := range libmdl.AllMetricKinds {
		if sample.Has(k) {
			kinds = append(kinds, k)
		}
	}

	env := libmdl.Envelope{Type: libmdl.WireMetrics, TS: sample.Timestamp, Data: sample}
	h.broadcast(sample.ServerID, kinds, sample.Status, env)
}

// PublishStatusEvent implements model.Publisher.
func (h *hub) PublishStatusEvent(event libmdl.StatusEvent) {
	if h.isClosed() {
		return
	}

	env := libmdl.Envelope{Type: libmdl.WireStatusChange, TS: event.At, Data: event}
	h.broadcast(event.ServerID, nil, event.Current, env)
}

// Close stops accepting connections and sends SHUTDOWN to every
// connected client before closing it (§4.7.1).
func (h *hub) Close() {
	if !atomic.CompareAndSwapInt32(&h.closed, 0, 1) {
		return
	}

	h.conns.Range(func(_ string, c *connection) bool {
		h.sendEnvelope(c, libmdl.Envelope{Type: libmdl.WireShutdown, TS: time.Now().UnixMilli()})
		h.closeConn(c, libmdl.CloseServerShutdown)
		return true
	})
}

func (h *hub) ConnectionCount() int {
	return int(atomic.LoadInt32(&h.total))
}
