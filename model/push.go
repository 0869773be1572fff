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

package model

// WireType is the closed set of envelope "type" values on the WebSocket
// wire format (§6).
type WireType string

const (
	WireHello         WireType = "HELLO"
	WirePing          WireType = "PING"
	WirePong          WireType = "PONG"
	WireSubscribe     WireType = "SUBSCRIBE"
	WireSubscribeAck  WireType = "SUBSCRIBE_ACK"
	WireUnsubscribe   WireType = "UNSUBSCRIBE"
	WireMetrics       WireType = "METRICS"
	WireStatusChange  WireType = "STATUS_CHANGE"
	WireRequestHist   WireType = "REQUEST_HISTORY"
	WireHistory       WireType = "HISTORY"
	WireError         WireType = "ERROR"
	WireShutdown      WireType = "SHUTDOWN"
	WireBatch         WireType = "BATCH"
)

// Envelope is the top-level JSON object every WebSocket message, in
// either direction, is framed in (§6).
type Envelope struct {
	Type WireType    `json:"type"`
	TS   int64       `json:"ts"`
	ID   string      `json:"id,omitempty"`
	Data interface{} `json:"data,omitempty"`
}

// SubscribeRequest is the payload of a client SUBSCRIBE message (§4.7.2).
// On the wire, "servers" is either a literal list of server IDs or the
// string "all"; AllServers+ServerIDs hold the decoded form.
type SubscribeRequest struct {
	AllServers bool
	ServerIDs  []string
	Metrics    []MetricKind
	MinStatus  ServerStatusKind
}

// UnsubscribeRequest is the payload of a client UNSUBSCRIBE message.
type UnsubscribeRequest struct {
	ServerIDs []string
}

// HistoryRequest is the payload of a client REQUEST_HISTORY message.
type HistoryRequest struct {
	Server string     `json:"server"`
	Metric MetricKind `json:"metric"`
	RangeMS int64     `json:"range_ms"`
}

// Subscription is one connection's current declared interest (§3). An
// empty ServerIDs with AllServers=false means "no servers"; subscribing
// always replaces, never merges, the connection's prior Subscription.
type Subscription struct {
	ConnectionID string
	AllServers   bool
	ServerIDs    map[string]struct{}
	Metrics      map[MetricKind]struct{}
	MinStatus    ServerStatusKind
}

// WantsMetric reports whether this subscription's metric filter (if any)
// includes kind. An empty filter means "all metrics".
func (s Subscription) WantsMetric(kind MetricKind) bool {
	if len(s.Metrics) == 0 {
		return true
	}
	_, ok := s.Metrics[kind]
	return ok
}

// WantsServer reports whether this subscription covers serverID.
func (s Subscription) WantsServer(serverID string) bool {
	if s.AllServers {
		return true
	}
	_, ok := s.ServerIDs[serverID]
	return ok
}

// WantsStatus reports whether status clears this subscription's
// min_status floor.
func (s Subscription) WantsStatus(status ServerStatusKind) bool {
	if s.MinStatus == "" {
		return true
	}
	return statusRank[status] >= statusRank[s.MinStatus]
}

// Publisher is the Scheduler's view of the Push Fabric (§4.4 step 6):
// a non-blocking sink for samples and status transitions. Implementations
// must not perform I/O on the calling goroutine (§4.7.4).
type Publisher interface {
	PublishSample(sample MetricsSample)
	PublishStatusEvent(event StatusEvent)
}

// CloseReason is the closed set of reasons a Connection can be torn
// down for (§4.7.1, §7).
type CloseReason string

const (
	CloseClientClosed     CloseReason = "client_closed"
	CloseHeartbeatTimeout CloseReason = "heartbeat_timeout"
	CloseSlowConsumer     CloseReason = "slow_consumer"
	CloseOversize         CloseReason = "oversize"
	CloseProtocolError    CloseReason = "protocol_error"
	CloseServerShutdown   CloseReason = "server_shutdown"
)
