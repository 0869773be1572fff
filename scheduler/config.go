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
	"time"

	libval "github.com/go-playground/validator/v10"

	liberr "github.com/nabbar/cwatcher/errors"
)

// Config carries the Collector Scheduler's tunables (§4.4, §6
// configuration key collection_period_s).
type Config struct {
	Period          time.Duration `mapstructure:"collection_period_s" json:"collection_period_s" yaml:"collection_period_s" validate:"omitempty,min=10000000000,max=300000000000"`
	SysInfoInterval time.Duration `mapstructure:"-" json:"-" yaml:"-"`
	CycleMargin     time.Duration `mapstructure:"-" json:"-" yaml:"-"`
	GlobalWorkerCap int           `mapstructure:"-" json:"-" yaml:"-" validate:"omitempty,min=1"`
	BackoffSteps    []time.Duration `mapstructure:"-" json:"-" yaml:"-"`
}

// Validate checks Config against its struct tags, following
// sshpool/config.go's go-playground/validator idiom.
func (c Config) Validate() liberr.Error {
	if err := libval.New().Struct(c); err != nil {
		return ErrorValidatorError.Error(err)
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.Period <= 0 {
		c.Period = 30 * time.Second
	}
	if c.SysInfoInterval <= 0 {
		c.SysInfoInterval = 24 * time.Hour
	}
	if c.CycleMargin <= 0 {
		c.CycleMargin = time.Second
	}
	if c.GlobalWorkerCap <= 0 {
		c.GlobalWorkerCap = 64
	}
	if len(c.BackoffSteps) == 0 {
		c.BackoffSteps = []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second, 32 * time.Second, 60 * time.Second}
	}
	return c
}

// budget returns the per-cycle deadline: the collection period less the
// configured margin (§4.4 "period - 1s").
func (c Config) budget() time.Duration {
	b := c.Period - c.CycleMargin
	if b <= 0 {
		return c.Period
	}
	return b
}

// backoffFor returns the backoff delay for the nth consecutive failure
// (n starting at 1), capped at the last configured step.
func (c Config) backoffFor(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	if n > len(c.BackoffSteps) {
		n = len(c.BackoffSteps)
	}
	return c.BackoffSteps[n-1]
}
