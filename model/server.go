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

// Package model holds the data types shared by every component of the
// collection-and-distribution core: registered servers, the samples the
// scheduler produces, and the subscriber-facing connection/subscription
// records the push fabric tracks.
package model

import (
	"strconv"
	"time"

	libvlt "github.com/nabbar/cwatcher/vault"
)

// AuthKind identifies how the SSH Pool should authenticate to a Server.
type AuthKind uint8

const (
	AuthUnknown AuthKind = iota
	AuthPassword
	AuthPrivateKey
)

func (a AuthKind) String() string {
	switch a {
	case AuthPassword:
		return "password"
	case AuthPrivateKey:
		return "private_key"
	default:
		return "unknown"
	}
}

// Server is a registered remote host. The core never holds a decrypted
// secret on this struct; Secret is the vault-encrypted bundle and is
// resolved to plaintext only on the session-open call stack (§4.2, §4.7
// secret-confinement invariant).
type Server struct {
	ID       string            `mapstructure:"id" json:"id" yaml:"id"`
	Name     string            `mapstructure:"name" json:"name" yaml:"name"`
	Host     string            `mapstructure:"host" json:"host" yaml:"host" validate:"required,hostname_rfc1123|ip"`
	Port     int               `mapstructure:"port" json:"port" yaml:"port" validate:"required,min=1,max=65535"`
	Username string            `mapstructure:"username" json:"username" yaml:"username" validate:"required"`
	AuthKind AuthKind          `mapstructure:"auth_kind" json:"auth_kind" yaml:"auth_kind"`
	Secret   libvlt.EncryptedSecret `mapstructure:"-" json:"-" yaml:"-"`
	Tags     []string          `mapstructure:"tags" json:"tags" yaml:"tags"`
	Monitor  bool              `mapstructure:"monitoring_enabled" json:"monitoring_enabled" yaml:"monitoring_enabled"`
	Deleted  bool              `mapstructure:"-" json:"-" yaml:"-"`

	Threshold *ThresholdPolicy `mapstructure:"threshold,omitempty" json:"threshold,omitempty" yaml:"threshold,omitempty"`

	CreatedAt time.Time `mapstructure:"created_at" json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `mapstructure:"updated_at" json:"updated_at" yaml:"updated_at"`
}

// Addr returns the host:port dial target for this Server.
func (s Server) Addr() string {
	if s.Port <= 0 {
		return s.Host
	}
	return s.Host + ":" + strconv.Itoa(s.Port)
}
