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

// ProcNameSize is the fixed width of a process name field, both in the
// control region's process entries and in the mailbox header's sender
// field.
const ProcNameSize = 64

// procEntrySize is the marshalled size of one procEntry record.
const procEntrySize = 4*6 + ProcNameSize + 8*2

// procEntry is one process's persistent registration record, stored at
// a fixed offset in the shared control region. It carries only the
// keys needed to attach a process's mailbox and semaphores, never the
// semaphore ids themselves — those are process-local (see memProcEntry).
type procEntry struct {
	KeyShm    int32
	SizeShm   int32
	KeyRLock  int32
	KeyWLock  int32
	KeyActive int32
	Active    int32
	ProcName  [ProcNameSize]byte
	SendCount int64
	RecvCount int64
}

func (e *procEntry) name() string {
	return strings.TrimRight(string(e.ProcName[:]), "\x00")
}

func (e *procEntry) setName(name string) {
	var buf [ProcNameSize]byte
	copy(buf[:], name)
	e.ProcName = buf
}

func marshalProcEntry(e *procEntry, dst []byte) {
	binary.LittleEndian.PutUint32(dst[0:4], uint32(e.KeyShm))
	binary.LittleEndian.PutUint32(dst[4:8], uint32(e.SizeShm))
	binary.LittleEndian.PutUint32(dst[8:12], uint32(e.KeyRLock))
	binary.LittleEndian.PutUint32(dst[12:16], uint32(e.KeyWLock))
	binary.LittleEndian.PutUint32(dst[16:20], uint32(e.KeyActive))
	binary.LittleEndian.PutUint32(dst[20:24], uint32(e.Active))
	copy(dst[24:24+ProcNameSize], e.ProcName[:])
	off := 24 + ProcNameSize
	binary.LittleEndian.PutUint64(dst[off:off+8], uint64(e.SendCount))
	binary.LittleEndian.PutUint64(dst[off+8:off+16], uint64(e.RecvCount))
}

func unmarshalProcEntry(src []byte) procEntry {
	var e procEntry
	e.KeyShm = int32(binary.LittleEndian.Uint32(src[0:4]))
	e.SizeShm = int32(binary.LittleEndian.Uint32(src[4:8]))
	e.KeyRLock = int32(binary.LittleEndian.Uint32(src[8:12]))
	e.KeyWLock = int32(binary.LittleEndian.Uint32(src[12:16]))
	e.KeyActive = int32(binary.LittleEndian.Uint32(src[16:20]))
	e.Active = int32(binary.LittleEndian.Uint32(src[20:24]))
	copy(e.ProcName[:], src[24:24+ProcNameSize])
	off := 24 + ProcNameSize
	e.SendCount = int64(binary.LittleEndian.Uint64(src[off : off+8]))
	e.RecvCount = int64(binary.LittleEndian.Uint64(src[off+8 : off+16]))
	return e
}

// entryAt returns the byte slice of the control region backing slot index.
func (b *Bus) entryAt(index int) []byte {
	off := index * procEntrySize
	return b.ctrlBuf[off : off+procEntrySize]
}

func (b *Bus) readEntry(index int) procEntry {
	return unmarshalProcEntry(b.entryAt(index))
}

func (b *Bus) writeEntry(index int, e *procEntry) {
	marshalProcEntry(e, b.entryAt(index))
}

// memProcEntry is the process-local, non-shared view of one control
// region slot: cached semaphore handles and a pointer to the attached
// mailbox, refreshed by populateMemProcSingle whenever the local view
// might be stale.
type memProcEntry struct {
	name     string
	shm      []byte
	rlock    int
	wlock    int
	active   int
	hasLocal bool
}

// populateMemProcSingle refreshes the local view of slot index from
// the control region. If the slot's active flag is set but its
// liveness semaphore is acquirable, the owning process is gone: the
// slot is reclaimed (shared memory and semaphores destroyed, entry
// zeroed) rather than adopted.
func (b *Bus) populateMemProcSingle(index int) {
	entry := b.readEntry(index)
	if entry.Active == 0 {
		b.local[index] = memProcEntry{}
		return
	}

	activeSem, _, err := createLock(int(entry.KeyActive), 0)
	if err != nil {
		return
	}

	if tryLock1(activeSem) {
		shm, _, err := getShm(int(entry.KeyShm), int(entry.SizeShm), false)
		if err != nil {
			b.clearProcEntry(index)
			return
		}
		rlock, _, err := createLock(int(entry.KeyRLock), 0)
		if err != nil {
			b.clearProcEntry(index)
			return
		}
		wlock, _, err := createLock(int(entry.KeyWLock), 0)
		if err != nil {
			b.clearProcEntry(index)
			return
		}
		b.local[index] = memProcEntry{
			name:     entry.name(),
			shm:      shm,
			rlock:    rlock,
			wlock:    wlock,
			active:   activeSem,
			hasLocal: true,
		}
	} else {
		// Active flag set but the liveness semaphore is free: the
		// owner crashed without tearing down. Reclaim the slot.
		b.clearProcEntry(index)
	}
}

func (b *Bus) populateMemProc() {
	for i := 0; i < b.numProcs; i++ {
		b.populateMemProcSingle(i)
	}
}

// clearProcEntry destroys slot index's shared memory and semaphores
// and zeroes its control region record, making it available again.
func (b *Bus) clearProcEntry(index int) {
	entry := b.readEntry(index)

	_ = clearShm(int(entry.KeyShm), int(entry.SizeShm), b.local[index].shm)
	_ = destroyLock(int(entry.KeyRLock))
	_ = destroyLock(int(entry.KeyWLock))
	_ = destroyLock(int(entry.KeyActive))

	b.local[index] = memProcEntry{}
	b.writeEntry(index, &procEntry{})
}

func (b *Bus) getNextFreeIndex() int {
	for i := 0; i < b.numProcs; i++ {
		if !b.checkProcEntry(i) {
			return i
		}
	}
	return -1
}

// checkProcEntry reports whether slot index is currently held by a
// live process: its control-region active flag is set, the cached
// name matches, and the liveness semaphore is still unacquirable
// (meaning the owner is still running).
func (b *Bus) checkProcEntry(index int) bool {
	entry := b.readEntry(index)
	b.populateMemProcSingle(index)

	if entry.Active == 0 {
		return false
	}
	if !b.local[index].hasLocal {
		return false
	}
	return tryLock1(b.local[index].active) && b.local[index].name == entry.name()
}

// getProcIndex returns the slot index registered to name, or -1 if no
// live process by that name is found.
func (b *Bus) getProcIndex(name string) int {
	for i := 0; i < b.numProcs; i++ {
		if b.checkProcEntry(i) && b.local[i].name == name {
			return i
		}
	}
	return -1
}

// addProc claims a free slot for name with a mailbox of mailboxSize
// bytes, creates its semaphores with their specified initial values
// (read = 0, write = 1, liveness = 0), takes ownership of the liveness
// semaphore with SEM_UNDO, and publishes the registration.
func (b *Bus) addProc(name string, mailboxSize int) (int, error) {
	index := b.getNextFreeIndex()
	if index < 0 {
		return -1, ErrorNoFreeSlot.Error(nil)
	}

	keyBase := b.semCtrlKey + index*4
	entry := procEntry{
		KeyShm:    int32(keyBase + 1),
		KeyRLock:  int32(keyBase + 2),
		KeyWLock:  int32(keyBase + 3),
		KeyActive: int32(keyBase + 4),
		SizeShm:   int32(mailboxSize),
	}

	shm, _, err := getShm(int(entry.KeyShm), mailboxSize, false)
	if err != nil {
		return -1, ErrorNoMemory.Error(err)
	}
	for i := range shm {
		shm[i] = 0
	}

	rlock, _, err := createLock(int(entry.KeyRLock), 0)
	if err != nil {
		return -1, ErrorNoMemory.Error(err)
	}
	wlock, _, err := createLock(int(entry.KeyWLock), 1)
	if err != nil {
		return -1, ErrorNoMemory.Error(err)
	}
	activeSem, _, err := createLock(int(entry.KeyActive), 0)
	if err != nil {
		return -1, ErrorNoMemory.Error(err)
	}
	if err = setActive(activeSem); err != nil {
		return -1, ErrorNoMemory.Error(err)
	}

	entry.setName(name)
	entry.Active = 1
	b.writeEntry(index, &entry)

	b.local[index] = memProcEntry{
		name:     name,
		shm:      shm,
		rlock:    rlock,
		wlock:    wlock,
		active:   activeSem,
		hasLocal: true,
	}
	return index, nil
}

// procInfo is the read-only snapshot returned by Stat.
type procInfo struct {
	Name       string
	MailboxSize int
	SendCount  int64
	RecvCount  int64
}

func (b *Bus) getProcInfo(index int) (procInfo, bool) {
	if index < 0 || index >= b.numProcs {
		return procInfo{}, false
	}
	entry := b.readEntry(index)
	return procInfo{
		Name:        entry.name(),
		MailboxSize: int(entry.SizeShm),
		SendCount:   entry.SendCount,
		RecvCount:   entry.RecvCount,
	}, true
}
