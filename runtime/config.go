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

package runtime

import (
	libval "github.com/go-playground/validator/v10"

	liberr "github.com/nabbar/cwatcher/errors"
	libpush "github.com/nabbar/cwatcher/push"
	libsch "github.com/nabbar/cwatcher/scheduler"
	libpool "github.com/nabbar/cwatcher/sshpool"
	libstr "github.com/nabbar/cwatcher/store"
)

// Config is the single validated configuration object the closed
// configuration-key set (§6) is decoded into before any component
// starts. Every field not read verbatim by this package is delegated
// to its owning component's own Config.
type Config struct {
	// MasterKey backs the Credential Vault (master_key, §6). Validate
	// accepts an empty key; New rejects it with ErrorMasterKeyMissing
	// (exit code 2, §6).
	MasterKey []byte `mapstructure:"-" json:"-" yaml:"-"`

	// KnownHostsPath points at the operator-managed known_hosts file
	// (known_hosts_path, §6) backing the SSH Pool's HostKeyStore.
	KnownHostsPath string `mapstructure:"known_hosts_path" json:"known_hosts_path" yaml:"known_hosts_path" validate:"required"`

	Pool      libpool.Config `mapstructure:",squash" validate:"-"`
	Scheduler libsch.Config  `mapstructure:",squash" validate:"-"`
	Store     libstr.Config  `mapstructure:",squash" validate:"-"`
	Push      libpush.Config `mapstructure:",squash" validate:"-"`
}

// Validate checks Config's own fields and delegates to every embedded
// component Config's Validate, following sshpool/config.go's
// go-playground/validator idiom.
func (c Config) Validate() liberr.Error {
	e := ErrorValidatorError.Error(nil)

	if err := libval.New().Struct(c); err != nil {
		e.Add(err)
	}
	if err := c.Pool.Validate(); err != nil {
		e.Add(err)
	}
	if err := c.Scheduler.Validate(); err != nil {
		e.Add(err)
	}
	if err := c.Store.Validate(); err != nil {
		e.Add(err)
	}
	if err := c.Push.Validate(); err != nil {
		e.Add(err)
	}

	if !e.HasParent() {
		return nil
	}
	return e
}
