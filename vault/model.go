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
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"sync"

	"golang.org/x/crypto/pbkdf2"

	liberr "github.com/nabbar/cwatcher/errors"
)

type vault struct {
	mu  sync.RWMutex
	key []byte
}

func (v *vault) masterKey() []byte {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.key
}

func (v *vault) Encrypt(plaintext []byte) (EncryptedSecret, liberr.Error) {
	defer zero(plaintext)

	master := v.masterKey()
	if len(master) == 0 {
		return EncryptedSecret{}, ErrorMasterKeyMissing.Error(nil)
	}

	salt, err := randomBytes(rand.Reader, saltSize)
	if err != nil {
		return EncryptedSecret{}, err
	}

	nonce, err := randomBytes(rand.Reader, nonceSize)
	if err != nil {
		return EncryptedSecret{}, err
	}

	gcm, ge := newGCM(deriveKey(master, salt))
	if ge != nil {
		return EncryptedSecret{}, ge
	}

	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)

	return EncryptedSecret{
		Algorithm:     AlgorithmTag,
		Salt:          salt,
		Nonce:         nonce,
		Ciphertext:    ciphertext,
		KDFIterations: kdfIterations,
	}, nil
}

func (v *vault) Decrypt(bundle EncryptedSecret) ([]byte, liberr.Error) {
	master := v.masterKey()
	if len(master) == 0 {
		return nil, ErrorMasterKeyMissing.Error(nil)
	}

	if bundle.Algorithm != AlgorithmTag {
		return nil, ErrorUnknownAlgorithm.Error(nil)
	}

	gcm, ge := newGCM(deriveKey(master, bundle.Salt))
	if ge != nil {
		return nil, ge
	}

	plaintext, err := gcm.Open(nil, bundle.Nonce, bundle.Ciphertext, nil)
	if err != nil {
		// Never echo the cipher package's error text back to the caller: it
		// can include fragments of the attempted plaintext on some
		// implementations. Only the tagged code crosses this boundary.
		return nil, ErrorBadCiphertext.Error(nil)
	}

	return plaintext, nil
}

// deriveKey derives the 256-bit data key used to seal/open one bundle.
// The iteration count is fixed by AlgorithmTag; it is not read from the
// bundle so a tampered KDFIterations field can never weaken derivation.
func deriveKey(master, salt []byte) []byte {
	return pbkdf2.Key(master, salt, kdfIterations, keySize, sha256.New)
}

func newGCM(key []byte) (cipher.AEAD, liberr.Error) {
	defer zero(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, ErrorAESBlock.Error(err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, ErrorAESGCM.Error(err)
	}

	return gcm, nil
}

// zero best-effort clears a buffer. Go's GC can still have moved/copied
// earlier instances of this data; this reduces the live window, it does
// not guarantee erasure.
func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
