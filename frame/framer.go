/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
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

// Package frame implements the length-prefixed message framer: a 4-byte
// big-endian header followed by exactly that many payload bytes. Feed
// turns an arbitrarily-split byte stream into whole frames; Encode does
// the reverse for the send path.
package frame

import (
	"encoding/binary"

	liberr "github.com/jaronho/nsocket/errors"
)

// HeaderSize is the width of the length prefix on the wire.
const HeaderSize = 4

// DefaultMaxBody bounds a single frame's payload absent an explicit limit.
const DefaultMaxBody = 256 * 1024

const (
	ErrorEmptyPayload liberr.CodeError = liberr.MinPkgSocket + 10 + iota
	ErrorFrameTooLarge
)

func init() {
	liberr.RegisterIdFctMessage(liberr.MinPkgSocket+10, getMessage)
}

func getMessage(code liberr.CodeError) string {
	switch code {
	case ErrorEmptyPayload:
		return "frame payload must not be empty"
	case ErrorFrameTooLarge:
		return "declared frame length exceeds the configured maximum"
	}
	return liberr.NullMessage
}

// Encode produces header||payload for a non-empty payload. The header is
// the payload length encoded big-endian in 4 bytes.
func Encode(payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, ErrorEmptyPayload.Error(nil)
	}

	out := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint32(out[:HeaderSize], uint32(len(payload)))
	copy(out[HeaderSize:], payload)
	return out, nil
}

type state int

const (
	stateIdle state = iota
	stateAssembling
)

// Framer is the per-connection receive-side state machine. It is not
// safe for concurrent use; callers serialize feeds per connection (the
// same strand that owns the socket read loop).
type Framer struct {
	maxBody int

	state state

	header    [HeaderSize]byte
	headerLen int

	reassembly  []byte
	expected    int
	accumulated int
}

// New creates a Framer bounding payloads to maxBody bytes. A non-positive
// maxBody falls back to DefaultMaxBody.
func New(maxBody int) *Framer {
	if maxBody <= 0 {
		maxBody = DefaultMaxBody
	}
	return &Framer{maxBody: maxBody}
}

// Reset returns the framer to Idle, discarding any partial reassembly.
// Used when a handler is reused after close, never mid-connection.
func (f *Framer) Reset() {
	f.state = stateIdle
	f.headerLen = 0
	f.reassembly = nil
	f.expected = 0
	f.accumulated = 0
}

// Feed appends newly-read bytes and returns every frame completed as a
// result, in arrival order. Unlike the reference implementation, bytes
// following a complete frame within the same read are not discarded:
// they are fed back through the state machine so a single socket read
// that contains more than one frame yields every frame it carries.
func (f *Framer) Feed(data []byte) ([][]byte, error) {
	var frames [][]byte

	for len(data) > 0 {
		switch f.state {
		case stateIdle:
			if f.headerLen < HeaderSize {
				n := copy(f.header[f.headerLen:], data)
				f.headerLen += n
				data = data[n:]
				if f.headerLen < HeaderSize {
					return frames, nil
				}
			}

			declared := binary.BigEndian.Uint32(f.header[:])
			f.headerLen = 0

			if declared == 0 {
				// Zero-length header is idle padding: stay in Idle and
				// keep draining any residue in this same read.
				continue
			}

			if int(declared) > f.maxBody {
				return frames, ErrorFrameTooLarge.Error(nil)
			}

			if len(data) >= int(declared) {
				frame := make([]byte, declared)
				copy(frame, data[:declared])
				frames = append(frames, frame)
				data = data[declared:]
				continue
			}

			f.expected = int(declared)
			f.reassembly = make([]byte, declared)
			f.accumulated = copy(f.reassembly, data)
			f.state = stateAssembling
			data = nil

		case stateAssembling:
			remaining := f.expected - f.accumulated
			n := remaining
			if n > len(data) {
				n = len(data)
			}
			copy(f.reassembly[f.accumulated:], data[:n])
			f.accumulated += n
			data = data[n:]

			if f.accumulated == f.expected {
				frames = append(frames, f.reassembly)
				f.reassembly = nil
				f.expected = 0
				f.accumulated = 0
				f.state = stateIdle
			}
		}
	}

	return frames, nil
}

// Assembling reports whether a frame is currently straddling reads.
func (f *Framer) Assembling() bool {
	return f.state == stateAssembling
}
