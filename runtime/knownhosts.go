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
	"os"
	"strings"
	"sync"

	libssh "golang.org/x/crypto/ssh"

	liberr "github.com/nabbar/cwatcher/errors"
)

// fileHostKeyStore is the operator-managed known_hosts file backing the
// SSH Pool's HostKeyStore (§4.2, known_hosts_path). Entries are one
// "<addr> <keytype> <base64key>" line each, parsed and marshaled with
// golang.org/x/crypto/ssh's own authorized-key codec so the on-disk
// format stays byte-compatible with a hand-edited ssh known_hosts file.
type fileHostKeyStore struct {
	mu   sync.Mutex
	path string
	keys map[string]libssh.PublicKey
}

func newFileHostKeyStore(path string) (*fileHostKeyStore, liberr.Error) {
	s := &fileHostKeyStore{path: path, keys: make(map[string]libssh.PublicKey)}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *fileHostKeyStore) load() liberr.Error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return ErrorKnownHostsUnreadable.Error(err)
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}

		key, _, _, _, err := libssh.ParseAuthorizedKey([]byte(fields[1] + " " + fields[2]))
		if err != nil {
			continue
		}
		s.keys[fields[0]] = key
	}

	return nil
}

func (s *fileHostKeyStore) Lookup(addr string) (libssh.PublicKey, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.keys[addr]
	return key, ok
}

func (s *fileHostKeyStore) Learn(addr string, key libssh.PublicKey) liberr.Error {
	s.mu.Lock()
	defer s.mu.Unlock()

	line := addr + " " + strings.TrimSpace(string(libssh.MarshalAuthorizedKey(key))) + "\n"

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return ErrorKnownHostsUnreadable.Error(err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.WriteString(line); err != nil {
		return ErrorKnownHostsUnreadable.Error(err)
	}

	s.keys[addr] = key
	return nil
}
