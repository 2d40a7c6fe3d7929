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

package ipc

import (
	"encoding/binary"
	"strings"
)

// mailboxHeaderSize is the fixed header every slot begins with: sender
// name, message type, and payload length, both integers native-order
// (same-host, same-ABI only, per the wire layout).
const mailboxHeaderSize = ProcNameSize + 4 + 4

type mailboxHeader struct {
	SenderName [ProcNameSize]byte
	MsgType    int32
	MsgLen     int32
}

func (h *mailboxHeader) senderName() string {
	return strings.TrimRight(string(h.SenderName[:]), "\x00")
}

func (h *mailboxHeader) empty() bool {
	return h.senderName() == "" && h.MsgType == 0 && h.MsgLen == 0
}

func marshalHeader(h *mailboxHeader, dst []byte) {
	copy(dst[0:ProcNameSize], h.SenderName[:])
	binary.NativeEndian.PutUint32(dst[ProcNameSize:ProcNameSize+4], uint32(h.MsgType))
	binary.NativeEndian.PutUint32(dst[ProcNameSize+4:ProcNameSize+8], uint32(h.MsgLen))
}

func unmarshalHeader(src []byte) mailboxHeader {
	var h mailboxHeader
	copy(h.SenderName[:], src[0:ProcNameSize])
	h.MsgType = int32(binary.NativeEndian.Uint32(src[ProcNameSize : ProcNameSize+4]))
	h.MsgLen = int32(binary.NativeEndian.Uint32(src[ProcNameSize+4 : ProcNameSize+8]))
	return h
}

// message is the internal, heap-allocated representation carried
// through the receive and send queues, decoupled from the shared
// memory slot it was copied from or will be written to.
type message struct {
	senderName string
	recvName   string
	msgType    int
	payload    []byte
}

// shmSend performs the synchronous mailbox write: acquire the
// recipient's write semaphore (blocking until its slot is empty),
// write header and payload, release its read semaphore so the
// recipient's receive worker wakes up.
func (b *Bus) shmSend(index int, recvName string, msgType int, payload []byte) error {
	local := b.local[index]
	entry := b.readEntry(index)

	if mailboxHeaderSize+len(payload) > int(entry.SizeShm) {
		return ErrorOversizePayload.Error(nil)
	}

	if err := lock(local.wlock); err != nil {
		return err
	}

	h := mailboxHeader{MsgType: int32(msgType), MsgLen: int32(len(payload))}
	copy(h.SenderName[:], b.name)
	marshalHeader(&h, local.shm)
	if len(payload) > 0 {
		copy(local.shm[mailboxHeaderSize:], payload)
	}

	b.incSendCount(index)
	return unlock(local.rlock)
}

func (b *Bus) incSendCount(index int) {
	entry := b.readEntry(index)
	entry.SendCount++
	b.writeEntry(index, &entry)
}

func (b *Bus) incRecvCount() {
	entry := b.readEntry(b.myIndex)
	entry.RecvCount++
	b.writeEntry(b.myIndex, &entry)
}
