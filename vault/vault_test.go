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

package vault_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	libvlt "github.com/nabbar/cwatcher/vault"
)

var _ = Describe("Vault", func() {
	Describe("Encrypt/Decrypt round trip", func() {
		It("recovers the original plaintext", func() {
			v := libvlt.New([]byte("a master key of arbitrary length"))

			bundle, err := v.Encrypt([]byte("hunter2"))
			Expect(err).ToNot(HaveOccurred())
			Expect(bundle.Algorithm).To(Equal(libvlt.AlgorithmTag))

			plain, derr := v.Decrypt(bundle)
			Expect(derr).ToNot(HaveOccurred())
			Expect(string(plain)).To(Equal("hunter2"))
		})

		It("never produces the same ciphertext twice", func() {
			v := libvlt.New([]byte("another master key"))

			a, _ := v.Encrypt([]byte("same-secret"))
			b, _ := v.Encrypt([]byte("same-secret"))

			Expect(a.Ciphertext).ToNot(Equal(b.Ciphertext))
			Expect(a.Salt).ToNot(Equal(b.Salt))
		})
	})

	Describe("MasterKeyMissing", func() {
		It("fails Encrypt when no master key is configured", func() {
			v := libvlt.New(nil)
			_, err := v.Encrypt([]byte("x"))
			Expect(err).To(HaveOccurred())
			Expect(err.IsCode(libvlt.ErrorMasterKeyMissing)).To(BeTrue())
		})

		It("fails Decrypt when no master key is configured", func() {
			v := libvlt.New(nil)
			_, err := v.Decrypt(libvlt.EncryptedSecret{Algorithm: libvlt.AlgorithmTag})
			Expect(err).To(HaveOccurred())
			Expect(err.IsCode(libvlt.ErrorMasterKeyMissing)).To(BeTrue())
		})
	})

	Describe("UnknownAlgorithm", func() {
		It("refuses to decrypt a bundle tagged with a different algorithm", func() {
			v := libvlt.New([]byte("master"))
			bundle, _ := v.Encrypt([]byte("x"))
			bundle.Algorithm = "AES-128-CBC/none"

			_, err := v.Decrypt(bundle)
			Expect(err).To(HaveOccurred())
			Expect(err.IsCode(libvlt.ErrorUnknownAlgorithm)).To(BeTrue())
		})
	})

	Describe("BadCiphertext", func() {
		It("fails authentication when the ciphertext is tampered", func() {
			v := libvlt.New([]byte("master"))
			bundle, _ := v.Encrypt([]byte("tamper me"))
			bundle.Ciphertext[0] ^= 0xFF

			_, err := v.Decrypt(bundle)
			Expect(err).To(HaveOccurred())
			Expect(err.IsCode(libvlt.ErrorBadCiphertext)).To(BeTrue())
		})

		It("fails authentication when decrypted with the wrong master key", func() {
			v1 := libvlt.New([]byte("master-one"))
			v2 := libvlt.New([]byte("master-two"))

			bundle, _ := v1.Encrypt([]byte("secret"))
			_, err := v2.Decrypt(bundle)
			Expect(err).To(HaveOccurred())
			Expect(err.IsCode(libvlt.ErrorBadCiphertext)).To(BeTrue())
		})
	})
})
