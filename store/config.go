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

package store

import (
	"time"

	libval "github.com/go-playground/validator/v10"

	liberr "github.com/nabbar/cwatcher/errors"
)

// Config carries the Sample Store's tunables (§4.5, §6 configuration keys
// sample_ring_capacity, sink_batch_size, sink_batch_flush_ms).
type Config struct {
	RingCapacity   int           `mapstructure:"sample_ring_capacity" json:"sample_ring_capacity" yaml:"sample_ring_capacity" validate:"omitempty,min=1"`
	BatchSize      int           `mapstructure:"sink_batch_size" json:"sink_batch_size" yaml:"sink_batch_size" validate:"omitempty,min=1"`
	BatchFlush     time.Duration `mapstructure:"sink_batch_flush_ms" json:"sink_batch_flush_ms" yaml:"sink_batch_flush_ms"`
	RetryAttempts  int           `mapstructure:"-" json:"-" yaml:"-"`
	RetryBaseDelay time.Duration `mapstructure:"-" json:"-" yaml:"-"`
	PendingQueue   int           `mapstructure:"-" json:"-" yaml:"-"`
}

// Validate checks Config against its struct tags, the same
// go-playground/validator idiom used by sshpool/config.go.
func (c Config) Validate() liberr.Error {
	if err := libval.New().Struct(c); err != nil {
		return ErrorValidatorError.Error(err)
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.RingCapacity <= 0 {
		c.RingCapacity = 240
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 64
	}
	if c.BatchFlush <= 0 {
		c.BatchFlush = 5 * time.Second
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = 3
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = time.Second
	}
	if c.PendingQueue <= 0 {
		c.PendingQueue = 1024
	}
	return c
}
