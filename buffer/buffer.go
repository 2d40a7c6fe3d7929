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

// Package buffer provides a fixed-capacity byte arena with independent
// read and write cursors, typed accessors, and big/little-endian swap
// helpers for use by the framer and anything else serializing onto a
// single owned region.
package buffer

import (
	"encoding/binary"
	"math"

	liberr "github.com/jaronho/nsocket/errors"
)

// DefaultCapacity bounds a single message when no explicit capacity is given.
const DefaultCapacity = 1024 * 1024

const (
	ErrorCapacityExceeded liberr.CodeError = liberr.MinPkgSocket + iota + 1
	ErrorContentTooLarge
)

func init() {
	liberr.RegisterIdFctMessage(liberr.MinPkgSocket, getMessage)
}

func getMessage(code liberr.CodeError) string {
	switch code {
	case ErrorCapacityExceeded:
		return "operation would exceed buffer capacity"
	case ErrorContentTooLarge:
		return "content length exceeds buffer capacity"
	}
	return liberr.NullMessage
}

// Buffer is a fixed-capacity region with two monotonically advancing
// cursors. It is owned exclusively by one logical user (a Framer or a
// caller's serialization scope) and never grows.
type Buffer struct {
	data []byte
	rd   int
	wr   int
}

// New allocates a Buffer with the given capacity. A non-positive
// capacity falls back to DefaultCapacity.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{data: make([]byte, capacity)}
}

// Capacity returns the fixed size of the underlying arena.
func (b *Buffer) Capacity() int {
	return len(b.data)
}

// Available returns the number of unread bytes (write - read).
func (b *Buffer) Available() int {
	return b.wr - b.rd
}

// Space returns the remaining room before the write cursor hits capacity.
func (b *Buffer) Space() int {
	return len(b.data) - b.wr
}

// Reset returns both cursors to zero without reallocating or clearing content.
func (b *Buffer) Reset() {
	b.rd = 0
	b.wr = 0
}

// Bytes returns the unread slice between the read and write cursors.
// The returned slice aliases the buffer's storage.
func (b *Buffer) Bytes() []byte {
	return b.data[b.rd:b.wr]
}

// SetContent copies src to the start of the arena, failing if it does
// not fit. The write cursor is set to len(src); the read cursor to 0.
func (b *Buffer) SetContent(src []byte) error {
	if len(src) > len(b.data) {
		return ErrorContentTooLarge.Error(nil)
	}
	copy(b.data, src)
	b.wr = len(src)
	b.rd = 0
	return nil
}

// Append copies n bytes starting at the write cursor, advancing it.
func (b *Buffer) Append(src []byte) error {
	if len(src) > b.Space() {
		return ErrorCapacityExceeded.Error(nil)
	}
	copy(b.data[b.wr:], src)
	b.wr += len(src)
	return nil
}

func (b *Buffer) advanceWrite(n int) error {
	if b.wr+n > len(b.data) {
		return ErrorCapacityExceeded.Error(nil)
	}
	b.wr += n
	return nil
}

func (b *Buffer) advanceRead(n int) error {
	if b.rd+n > b.wr {
		return ErrorCapacityExceeded.Error(nil)
	}
	b.rd += n
	return nil
}

// WriteUint8 writes a single byte, advancing the write cursor.
func (b *Buffer) WriteUint8(v uint8) error {
	if err := b.advanceWrite(1); err != nil {
		return err
	}
	b.data[b.wr-1] = v
	return nil
}

// ReadUint8 reads a single byte, advancing the read cursor.
func (b *Buffer) ReadUint8() (uint8, error) {
	if b.rd+1 > b.wr {
		return 0, ErrorCapacityExceeded.Error(nil)
	}
	v := b.data[b.rd]
	_ = b.advanceRead(1)
	return v, nil
}

// WriteBool writes a boolean as a single byte.
func (b *Buffer) WriteBool(v bool) error {
	if v {
		return b.WriteUint8(1)
	}
	return b.WriteUint8(0)
}

// ReadBool reads a boolean encoded as a single byte.
func (b *Buffer) ReadBool() (bool, error) {
	v, err := b.ReadUint8()
	return v != 0, err
}

// WriteUint16 writes v in big-endian network order.
func (b *Buffer) WriteUint16(v uint16) error {
	if err := b.advanceWrite(2); err != nil {
		return err
	}
	binary.BigEndian.PutUint16(b.data[b.wr-2:b.wr], v)
	return nil
}

// ReadUint16 reads a big-endian uint16.
func (b *Buffer) ReadUint16() (uint16, error) {
	if b.rd+2 > b.wr {
		return 0, ErrorCapacityExceeded.Error(nil)
	}
	v := binary.BigEndian.Uint16(b.data[b.rd : b.rd+2])
	_ = b.advanceRead(2)
	return v, nil
}

// WriteInt16 writes a signed 16-bit value.
func (b *Buffer) WriteInt16(v int16) error {
	return b.WriteUint16(uint16(v))
}

// ReadInt16 reads a signed 16-bit value.
func (b *Buffer) ReadInt16() (int16, error) {
	v, err := b.ReadUint16()
	return int16(v), err
}

// WriteUint32 writes v in big-endian network order.
func (b *Buffer) WriteUint32(v uint32) error {
	if err := b.advanceWrite(4); err != nil {
		return err
	}
	binary.BigEndian.PutUint32(b.data[b.wr-4:b.wr], v)
	return nil
}

// ReadUint32 reads a big-endian uint32.
func (b *Buffer) ReadUint32() (uint32, error) {
	if b.rd+4 > b.wr {
		return 0, ErrorCapacityExceeded.Error(nil)
	}
	v := binary.BigEndian.Uint32(b.data[b.rd : b.rd+4])
	_ = b.advanceRead(4)
	return v, nil
}

// WriteInt32 writes a signed 32-bit value.
func (b *Buffer) WriteInt32(v int32) error {
	return b.WriteUint32(uint32(v))
}

// ReadInt32 reads a signed 32-bit value.
func (b *Buffer) ReadInt32() (int32, error) {
	v, err := b.ReadUint32()
	return int32(v), err
}

// WriteUint64 writes v in big-endian network order.
func (b *Buffer) WriteUint64(v uint64) error {
	if err := b.advanceWrite(8); err != nil {
		return err
	}
	binary.BigEndian.PutUint64(b.data[b.wr-8:b.wr], v)
	return nil
}

// ReadUint64 reads a big-endian uint64.
func (b *Buffer) ReadUint64() (uint64, error) {
	if b.rd+8 > b.wr {
		return 0, ErrorCapacityExceeded.Error(nil)
	}
	v := binary.BigEndian.Uint64(b.data[b.rd : b.rd+8])
	_ = b.advanceRead(8)
	return v, nil
}

// WriteInt64 writes a signed 64-bit value.
func (b *Buffer) WriteInt64(v int64) error {
	return b.WriteUint64(uint64(v))
}

// ReadInt64 reads a signed 64-bit value.
func (b *Buffer) ReadInt64() (int64, error) {
	v, err := b.ReadUint64()
	return int64(v), err
}

// WriteFloat32 writes an IEEE-754 single-precision float.
func (b *Buffer) WriteFloat32(v float32) error {
	return b.WriteUint32(math.Float32bits(v))
}

// ReadFloat32 reads an IEEE-754 single-precision float.
func (b *Buffer) ReadFloat32() (float32, error) {
	v, err := b.ReadUint32()
	return math.Float32frombits(v), err
}

// WriteFloat64 writes an IEEE-754 double-precision float.
func (b *Buffer) WriteFloat64(v float64) error {
	return b.WriteUint64(math.Float64bits(v))
}

// ReadFloat64 reads an IEEE-754 double-precision float.
func (b *Buffer) ReadFloat64() (float64, error) {
	v, err := b.ReadUint64()
	return math.Float64frombits(v), err
}

// WriteString writes a 4-byte big-endian length followed by the raw bytes.
// Length-prefixing is unconditional: there is no null-terminated variant.
func (b *Buffer) WriteString(s string) error {
	if err := b.WriteUint32(uint32(len(s))); err != nil {
		return err
	}
	return b.Append([]byte(s))
}

// ReadString is the inverse of WriteString.
func (b *Buffer) ReadString() (string, error) {
	n, err := b.ReadUint32()
	if err != nil {
		return "", err
	}
	if b.rd+int(n) > b.wr {
		return "", ErrorCapacityExceeded.Error(nil)
	}
	s := string(b.data[b.rd : b.rd+int(n)])
	_ = b.advanceRead(int(n))
	return s, nil
}

// Swab16 reverses the byte order of a 16-bit value.
func Swab16(x uint16) uint16 {
	return (x&0x00ff)<<8 | (x&0xff00)>>8
}

// Swab32 reverses the byte order of a 32-bit value.
func Swab32(x uint32) uint32 {
	return (x&0x000000ff)<<24 | (x&0x0000ff00)<<8 | (x&0x00ff0000)>>8 | (x&0xff000000)>>24
}
