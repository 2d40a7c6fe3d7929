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

// Package ipc implements the shared-memory process bus: a control
// region of process-registration entries plus one single-slot mailbox
// per registered process, guarded by SysV semaphores, with receive,
// dispatch, and send-async worker goroutines per process.
package ipc

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// getShm attaches the shared-memory segment for key, creating it with
// size bytes if it does not already exist. When exclusive is true,
// creation fails (falling back to attach-only) if the segment already
// exists — this is how the control region distinguishes "I just
// created this" from "someone else already did".
func getShm(key int, size int, exclusive bool) ([]byte, bool, error) {
	created := true
	flags := unix.IPC_CREAT | 0666
	if exclusive {
		flags |= unix.IPC_EXCL
	}

	id, err := unix.Shmget(key, size, flags)
	if err != nil && exclusive {
		created = false
		id, err = unix.Shmget(key, size, unix.IPC_CREAT|0666)
	}
	if err != nil {
		return nil, false, err
	}

	addr, err := unix.Shmat(id, 0, 0)
	if err != nil {
		return nil, false, err
	}

	buf := unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)
	return buf, created, nil
}

// clearShm detaches and destroys the shared-memory segment for key.
func clearShm(key int, size int, buf []byte) error {
	if buf != nil {
		addr := uintptr(unsafe.Pointer(&buf[0]))
		_ = unix.Shmdt(addr)
	}

	id, err := unix.Shmget(key, size, unix.IPC_CREAT|0666)
	if err != nil {
		return err
	}
	_, err = unix.Shmctl(id, unix.IPC_RMID, nil)
	return err
}
