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

	liberr "github.com/nabbar/cwatcher/errors"
)

const (
	ErrorParamsEmpty liberr.CodeError = iota + liberr.MinPkgSSHPool
	ErrorValidatorError
	ErrorServerUnknown
	ErrorPoolClosed
	ErrorPoolFull
	ErrorAcquireTimeout
	ErrorDial
	ErrorHandshake
	ErrorHostKeyUnknown
	ErrorHostKeyMismatch
	ErrorAuthFailed
	ErrorSessionOpen
	ErrorSessionRun
	ErrorBackoffActive
	ErrorSecretDecrypt
)

func init() {
	if liberr.ExistInMapMessage(ErrorParamsEmpty) {
		panic(fmt.Errorf("error code collision with package cwatcher/sshpool"))
	}
	liberr.RegisterIdFctMessage(ErrorParamsEmpty, getMessage)
}

func getMessage(code liberr.CodeError) (message string) {
	switch code {
	case ErrorParamsEmpty:
		return "given parameters is empty"
	case ErrorValidatorError:
		return "ssh pool: invalid config"
	case ErrorServerUnknown:
		return "ssh pool: server is not registered in this pool"
	case ErrorPoolClosed:
		return "ssh pool: pool is closed"
	case ErrorPoolFull:
		return "ssh pool: per-server session limit reached"
	case ErrorAcquireTimeout:
		return "ssh pool: timed out waiting for a free session slot"
	case ErrorDial:
		return "ssh pool: cannot establish tcp connection to server"
	case ErrorHandshake:
		return "ssh pool: ssh handshake failed"
	case ErrorHostKeyUnknown:
		return "ssh pool: host key not present in known_hosts and trust-on-first-use is disabled"
	case ErrorHostKeyMismatch:
		return "ssh pool: host key does not match known_hosts entry"
	case ErrorAuthFailed:
		return "ssh pool: authentication rejected by server"
	case ErrorSessionOpen:
		return "ssh pool: cannot open session channel"
	case ErrorSessionRun:
		return "ssh pool: command execution over session failed"
	case ErrorBackoffActive:
		return "ssh pool: server is in backoff after recent connection failures"
	case ErrorSecretDecrypt:
		return "ssh pool: cannot decrypt stored credential"
	}

	return liberr.NullMessage
}
