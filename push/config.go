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
	"time"

	libval "github.com/go-playground/validator/v10"

	liberr "github.com/nabbar/cwatcher/errors"
)

// CompressionKind is the closed set of payload codecs a Connection's
// writer may apply above CompressionThreshold.
type CompressionKind string

const (
	CompressionNone CompressionKind = "none"
	CompressionGzip CompressionKind = "gzip"
	CompressionZlib CompressionKind = "zlib"
)

// Config carries the Push Fabric's tunables (§4.7, §6 ws_* keys).
type Config struct {
	HeartbeatInterval     time.Duration   `mapstructure:"heartbeat_interval_s" json:"heartbeat_interval_s" yaml:"heartbeat_interval_s"`
	HeartbeatMisses       int             `mapstructure:"heartbeat_timeout_misses" json:"heartbeat_timeout_misses" yaml:"heartbeat_timeout_misses" validate:"omitempty,min=1"`
	SendQueue             int             `mapstructure:"ws_send_queue" json:"ws_send_queue" yaml:"ws_send_queue" validate:"omitempty,min=1"`
	MaxConnections        int             `mapstructure:"ws_max_connections" json:"ws_max_connections" yaml:"ws_max_connections" validate:"omitempty,min=1"`
	MaxPerIP              int             `mapstructure:"ws_max_per_ip" json:"ws_max_per_ip" yaml:"ws_max_per_ip" validate:"omitempty,min=1"`
	MaxMessageBytes       int64           `mapstructure:"ws_max_message_bytes" json:"ws_max_message_bytes" yaml:"ws_max_message_bytes" validate:"omitempty,min=1"`
	SlowConsumerDrops     int             `mapstructure:"-" json:"-" yaml:"-"`
	SlowConsumerWindow    time.Duration   `mapstructure:"-" json:"-" yaml:"-"`
	CompressionKind       CompressionKind `mapstructure:"-" json:"-" yaml:"-"`
	CompressionThreshold  int             `mapstructure:"-" json:"-" yaml:"-"`
	BatchWindow           time.Duration   `mapstructure:"-" json:"-" yaml:"-"`
}

// Validate checks Config against its struct tags.
func (c Config) Validate() liberr.Error {
	if err := libval.New().Struct(c); err != nil {
		return ErrorValidatorError.Error(err)
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
	if c.HeartbeatMisses <= 0 {
		c.HeartbeatMisses = 2
	}
	if c.SendQueue <= 0 {
		c.SendQueue = 64
	}
	if c.MaxConnections <= 0 {
		c.MaxConnections = 1000
	}
	if c.MaxPerIP <= 0 {
		c.MaxPerIP = 10
	}
	if c.MaxMessageBytes <= 0 {
		c.MaxMessageBytes = 16 * 1024
	}
	if c.SlowConsumerDrops <= 0 {
		c.SlowConsumerDrops = 50
	}
	if c.SlowConsumerWindow <= 0 {
		c.SlowConsumerWindow = 60 * time.Second
	}
	if c.CompressionKind == "" {
		c.CompressionKind = CompressionGzip
	}
	if c.CompressionThreshold <= 0 {
		c.CompressionThreshold = 1024
	}
	if c.BatchWindow <= 0 {
		c.BatchWindow = 50 * time.Millisecond
	}
	return c
}
