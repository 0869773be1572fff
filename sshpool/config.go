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

package sshpool

import (
	"fmt"
	"time"

	libval "github.com/go-playground/validator/v10"
	libssh "golang.org/x/crypto/ssh"

	liberr "github.com/nabbar/cwatcher/errors"
)

// Config holds the pool-wide tunables (§4.2, §6 configuration keys).
type Config struct {
	// SessionsPerServer bounds concurrent sessions held open per server.
	SessionsPerServer int `mapstructure:"sessions_per_server" json:"sessions_per_server" yaml:"sessions_per_server" validate:"omitempty,min=1,max=8"`

	// HandshakeTimeout bounds TCP dial + SSH handshake + auth as one step.
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout" json:"handshake_timeout" yaml:"handshake_timeout"`

	// IdleTTL is how long an unused connection is kept warm before the
	// pool closes it (§4.2 idle eviction, default 5m).
	IdleTTL time.Duration `mapstructure:"idle_ttl" json:"idle_ttl" yaml:"idle_ttl"`

	// BackoffBase/BackoffMax bound the exponential backoff applied after
	// a connect or auth failure (§4.2: 2s/4s/8s capped at 60s).
	BackoffBase time.Duration `mapstructure:"backoff_base" json:"backoff_base" yaml:"backoff_base"`
	BackoffMax  time.Duration `mapstructure:"backoff_max" json:"backoff_max" yaml:"backoff_max"`

	// AllowTOFU permits trust-on-first-use for servers absent from the
	// known_hosts store. Default false: an absent entry is refused
	// (§4.2 host-key policy, security-sensitive default).
	AllowTOFU bool `mapstructure:"allow_tofu" json:"allow_tofu" yaml:"allow_tofu"`
}

// Validate checks Config against its struct tags.
func (c Config) Validate() liberr.Error {
	e := ErrorValidatorError.Error(nil)

	if err := libval.New().Struct(c); err != nil {
		if er, ok := err.(*libval.InvalidValidationError); ok {
			e.Add(er)
		} else {
			for _, fe := range err.(libval.ValidationErrors) {
				//nolint #goerr113
				e.Add(fmt.Errorf("config field '%s' is not validated by constraint '%s'", fe.Namespace(), fe.ActualTag()))
			}
		}
	}

	if !e.HasParent() {
		return nil
	}
	return e
}

func (c Config) withDefaults() Config {
	if c.SessionsPerServer <= 0 {
		c.SessionsPerServer = 3
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.IdleTTL <= 0 {
		c.IdleTTL = 5 * time.Minute
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 2 * time.Second
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = 60 * time.Second
	}
	return c
}

// HostKeyStore resolves the trusted host key for a server, and optionally
// records a newly observed one (§4.2 host-key policy). Implementations
// back this with an on-disk known_hosts file; the pool never bypasses it.
type HostKeyStore interface {
	// Lookup returns the trusted key for addr, or ok=false if absent.
	Lookup(addr string) (key libssh.PublicKey, ok bool)

	// Learn records key as trusted for addr. Only called when AllowTOFU
	// is true and Lookup previously returned ok=false.
	Learn(addr string, key libssh.PublicKey) liberr.Error
}
