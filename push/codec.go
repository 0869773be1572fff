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

package push

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"encoding/json"
	"io"

	libmdl "github.com/nabbar/cwatcher/model"
)

// wire codec tags, prefixed as a single byte ahead of the JSON (or
// compressed JSON) envelope body so a reader can tell the two apart
// without a side channel.
const (
	codecRaw  byte = 0
	codecGzip byte = 1
	codecZlib byte = 2
)

// encodeEnvelope marshals env to JSON and, if the result exceeds
// threshold, compresses it with kind (§4.7.5). The returned slice
// always starts with a one-byte codec tag.
func encodeEnvelope(env libmdl.Envelope, kind CompressionKind, threshold int) ([]byte, error) {
	body, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}

	if len(body) <= threshold || kind == CompressionNone {
		return append([]byte{codecRaw}, body...), nil
	}

	var buf bytes.Buffer
	buf.WriteByte(tagFor(kind))

	var w io.WriteCloser
	switch kind {
	case CompressionGzip:
		w = gzip.NewWriter(&buf)
	case CompressionZlib:
		w = zlib.NewWriter(&buf)
	default:
		return append([]byte{codecRaw}, body...), nil
	}

	if _, err = w.Write(body); err != nil {
		return nil, err
	}
	if err = w.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func tagFor(kind CompressionKind) byte {
	switch kind {
	case CompressionGzip:
		return codecGzip
	case CompressionZlib:
		return codecZlib
	default:
		return codecRaw
	}
}

// decodeMessage strips the codec tag applied by encodeEnvelope and
// returns the plain JSON body. Client-originated frames are always
// codecRaw; this also serves test round-trips of server frames.
func decodeMessage(raw []byte) ([]byte, error) {
	if len(raw) == 0 {
		return nil, io.ErrUnexpectedEOF
	}

	tag, body := raw[0], raw[1:]
	switch tag {
	case codecRaw:
		return body, nil
	case codecGzip:
		r, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	case codecZlib:
		r, err := zlib.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	default:
		return nil, io.ErrUnexpectedEOF
	}
}
