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
	"golang.org/x/sys/unix"
)

// createLock gets-or-creates the single-member semaphore set for key.
// If it did not already exist, it is initialized to value; created
// reports whether this call was the one that created it.
func createLock(key int, value int16) (id int, created bool, err error) {
	id, err = unix.Semget(key, 1, unix.IPC_EXCL|unix.IPC_CREAT|0666)
	if err != nil {
		id, err = unix.Semget(key, 1, unix.IPC_CREAT|0666)
		if err != nil {
			return 0, false, err
		}
		return id, false, nil
	}

	if _, err = unix.Semctl(id, 0, unix.SETVAL, uintptr(value)); err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// destroyLock removes the semaphore set for key.
func destroyLock(key int) error {
	id, err := unix.Semget(key, 1, unix.IPC_CREAT|0600)
	if err != nil {
		return err
	}
	_, err = unix.Semctl(id, 0, unix.IPC_RMID, 0)
	return err
}

// lock performs a blocking P operation (decrement, wait if negative).
func lock(sem int) error {
	return unix.Semop(sem, []unix.Sembuf{{SemNum: 0, SemOp: -1, SemFlg: 0}})
}

// unlock performs a V operation (increment, wake a waiter if any).
func unlock(sem int) error {
	return unix.Semop(sem, []unix.Sembuf{{SemNum: 0, SemOp: 1, SemFlg: 0}})
}

// setActive increments sem with SEM_UNDO so the kernel automatically
// decrements it when this process exits, crash or clean, turning an
// acquirable semaphore into a crash signal for any other process that
// later probes it with tryLock1.
func setActive(sem int) error {
	return unix.Semop(sem, []unix.Sembuf{{SemNum: 0, SemOp: 1, SemFlg: unix.SEM_UNDO}})
}

// tryLock1 performs a non-blocking "wait for zero" probe: it reports
// true if the semaphore's value is not yet zero (still held by a live
// owner), false if it is already zero (owner gone, reclaimable).
func tryLock1(sem int) bool {
	err := unix.Semop(sem, []unix.Sembuf{{SemNum: 0, SemOp: 0, SemFlg: unix.IPC_NOWAIT}})
	return err != nil
}
