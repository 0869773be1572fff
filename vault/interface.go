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

// Package vault envelope-encrypts and decrypts server credentials at rest.
//
// It holds a single process-wide master key and derives a fresh per-secret
// data key from it with PBKDF2-SHA256, then seals the plaintext with
// AES-256-GCM. The resulting EncryptedSecret bundle carries everything
// needed to reverse the operation except the master key itself, which never
// leaves the process.
//
// The algorithm is fixed and versioned by an explicit tag
// (AlgorithmTag) rather than negotiated: Decrypt refuses any bundle whose
// tag does not match exactly, so a future algorithm change is additive,
// never a silent downgrade.
package vault

import (
	"io"

	liberr "github.com/nabbar/cwatcher/errors"
)

// AlgorithmTag identifies the single supported envelope scheme. Bundles
// produced by this package always carry this exact tag; Decrypt rejects
// any other value with ErrorUnknownAlgorithm.
const AlgorithmTag = "AES-256-GCM/PBKDF2-SHA256/100000"

// kdfIterations is the PBKDF2 iteration count baked into AlgorithmTag.
const kdfIterations = 100000

const (
	saltSize  = 16
	nonceSize = 12
	keySize   = 32
)

// EncryptedSecret is the ciphertext bundle stored in place of a plaintext
// credential. It is safe to log its Algorithm field and to persist the
// struct as-is; Ciphertext, Salt and Nonce are opaque bytes that reveal
// nothing about the plaintext without the master key.
type EncryptedSecret struct {
	Algorithm     string `json:"algorithm" yaml:"algorithm"`
	Salt          []byte `json:"salt" yaml:"salt"`
	Nonce         []byte `json:"nonce" yaml:"nonce"`
	Ciphertext    []byte `json:"ciphertext" yaml:"ciphertext"`
	KDFIterations int    `json:"kdf_iterations" yaml:"kdf_iterations"`
}

// Vault turns plaintext credentials into EncryptedSecret bundles and back.
// A single Vault instance is built around one master key and is safe for
// concurrent use.
type Vault interface {
	// Encrypt seals plaintext into a new EncryptedSecret using a fresh
	// random salt and nonce. plaintext is zeroed before Encrypt returns.
	Encrypt(plaintext []byte) (EncryptedSecret, liberr.Error)

	// Decrypt reverses Encrypt. It fails with ErrorUnknownAlgorithm if the
	// bundle's Algorithm tag does not match AlgorithmTag exactly, and with
	// ErrorBadCiphertext if the authentication tag does not verify.
	Decrypt(bundle EncryptedSecret) ([]byte, liberr.Error)
}

// New builds a Vault bound to the given master key. masterKey should come
// from operator-managed configuration (the master_key configuration key);
// an empty key is accepted by New but every Encrypt/Decrypt call against it
// fails with ErrorMasterKeyMissing, matching the "process has no configured
// master key" contract callers rely on at startup.
func New(masterKey []byte) Vault {
	v := &vault{}
	if len(masterKey) > 0 {
		v.key = make([]byte, len(masterKey))
		copy(v.key, masterKey)
	}
	return v
}

// randomBytes reads n cryptographically random bytes or returns a vault
// error tagged ErrorRandomSource.
func randomBytes(r io.Reader, n int) ([]byte, liberr.Error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, ErrorRandomSource.Error(err)
	}
	return b, nil
}
