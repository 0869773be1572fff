/*
 * MIT License
 *
 * Copyright (c) 2023 Nicolas JUHEL
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

package vault

import (
	"fmt"

	liberr "github.com/nabbar/cwatcher/errors"
)

const (
	ErrorParamsEmpty liberr.CodeError = iota + liberr.MinPkgVault
	ErrorMasterKeyMissing
	ErrorUnknownAlgorithm
	ErrorBadCiphertext
	ErrorKeyDerivation
	ErrorRandomSource
	ErrorAESBlock
	ErrorAESGCM
)

func init() {
	if liberr.ExistInMapMessage(ErrorParamsEmpty) {
		panic(fmt.Errorf("error code collision with package cwatcher/vault"))
	}
	liberr.RegisterIdFctMessage(ErrorParamsEmpty, getMessage)
}

func getMessage(code liberr.CodeError) (message string) {
	switch code {
	case ErrorParamsEmpty:
		return "given parameters is empty"
	case ErrorMasterKeyMissing:
		return "vault: no master key configured for this process"
	case ErrorUnknownAlgorithm:
		return "vault: encrypted secret uses an unrecognized algorithm tag"
	case ErrorBadCiphertext:
		return "vault: ciphertext failed authentication"
	case ErrorKeyDerivation:
		return "vault: key derivation failed"
	case ErrorRandomSource:
		return "vault: failed to read random bytes"
	case ErrorAESBlock:
		return "vault: failed to init AES block cipher"
	case ErrorAESGCM:
		return "vault: failed to init AES-GCM"
	}

	return liberr.NullMessage
}
