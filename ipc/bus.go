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
	"context"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	libctx "github.com/jaronho/nsocket/context"
	liberrpool "github.com/jaronho/nsocket/errors/pool"
	"github.com/jaronho/nsocket/ipc/queue"
	"golang.org/x/sys/unix"
)

// DefaultPollInterval is the interval the receive worker sleeps
// between polling iterations until SetFreq changes it. The send-async
// worker does not poll: it blocks on the send queue.
const DefaultPollInterval = 16 * time.Millisecond

// MinPollInterval is the lowest interval SetFreq accepts.
const MinPollInterval = 1 * time.Microsecond

// OnMsg is invoked by the dispatch worker for every message pulled off
// the receive queue. A panic inside OnMsg is recovered and logged by
// the worker; it never unwinds into the bus's goroutines.
type OnMsg func(senderName string, msgType int, payload []byte)

// OnLog receives a bus diagnostic line; if nil, diagnostics are dropped.
type OnLog func(level int, format string, args ...any)

// Bus is one process's handle onto the shared-memory IPC bus: its own
// mailbox slot plus the machinery to reach every other registered
// process's slot. A Bus is constructed with New and torn down with
// Close; reinitializing a process-wide bus without tearing down the
// old one is a caller error this type does not itself prevent — that
// invariant belongs to whatever process-wide registry wraps it (see
// cmd/nsocketd).
type Bus struct {
	name        string
	numProcs    int
	shmCtrlKey  int
	semCtrlKey  int
	mailboxSize int

	ctrlBuf []byte
	ctrlSem int
	myIndex int

	local []memProcEntry

	recvQueue *queue.Queue
	sendQueue *queue.Queue

	onMsg OnMsg
	onLog OnLog

	pollInterval atomic.Int64 // nanoseconds

	// meta holds process-local, non-wire state about this bus instance
	// (e.g. the owning daemon's own config knobs) that callers want to
	// look up by key without adding a field to Bus for every use case.
	meta libctx.Config[string]

	// errs accumulates worker-goroutine errors (semop failures, etc.)
	// that are logged but have no caller to return to directly.
	errs liberrpool.Pool

	stop chan struct{}
	wg   sync.WaitGroup
}

// New initializes the bus for the local process: it maps (creating if
// absent) the control region, scans every slot — reclaiming any whose
// owner has crashed — claims a free slot for name, and starts the
// receive, dispatch, and send-async workers.
func New(name string, procCount int, shmKey int, mailboxSize int, queueCapacity int) (*Bus, error) {
	if name == "" || len(name) > ProcNameSize {
		return nil, ErrorInvalidArgument.Error(nil)
	}
	if procCount < 2 {
		return nil, ErrorInvalidArgument.Error(nil)
	}
	if shmKey < 0 {
		return nil, ErrorInvalidArgument.Error(nil)
	}
	if mailboxSize <= 0 || queueCapacity <= 0 {
		return nil, ErrorInvalidArgument.Error(nil)
	}

	b := &Bus{
		name:        name,
		numProcs:    procCount,
		shmCtrlKey:  shmKey,
		semCtrlKey:  shmKey + 1,
		mailboxSize: mailboxSize,
		local:       make([]memProcEntry, procCount),
		recvQueue:   queue.New(queueCapacity, true),
		sendQueue:   queue.New(queueCapacity, true),
		meta:        libctx.New[string](context.Background()),
		errs:        liberrpool.New(),
		stop:        make(chan struct{}),
	}
	b.pollInterval.Store(int64(DefaultPollInterval))

	ctrlSem, _, err := createLock(b.semCtrlKey, 1)
	if err != nil {
		return nil, ErrorControlRegionInaccessible.Error(err)
	}
	b.ctrlSem = ctrlSem

	if err = lock(b.ctrlSem); err != nil {
		return nil, ErrorControlRegionInaccessible.Error(err)
	}
	defer func() { _ = unlock(b.ctrlSem) }()

	ctrlBuf, _, err := getShm(b.shmCtrlKey, procEntrySize*procCount, true)
	if err != nil {
		return nil, ErrorControlRegionInaccessible.Error(err)
	}
	b.ctrlBuf = ctrlBuf

	b.populateMemProc()

	index, err := b.addProc(name, mailboxSize)
	if err != nil {
		return nil, err
	}
	b.myIndex = index

	b.startWorkers()
	return b, nil
}

// RegisterOnMsg sets the callback invoked for every dispatched message.
func (b *Bus) RegisterOnMsg(f OnMsg) { b.onMsg = f }

// RegisterOnLog sets the callback used for diagnostic lines.
func (b *Bus) RegisterOnLog(f OnLog) { b.onLog = f }

// SetFreq adjusts the receive worker's polling interval.
func (b *Bus) SetFreq(d time.Duration) {
	if d < MinPollInterval {
		d = MinPollInterval
	}
	b.pollInterval.Store(int64(d))
}

// SetMeta stores an arbitrary process-local value under key, for
// callers that want to stash bus-adjacent state (routing tables,
// startup timestamps, diagnostics counters) without their own map.
func (b *Bus) SetMeta(key string, val any) { b.meta.Store(key, val) }

// GetMeta retrieves a value previously stored with SetMeta.
func (b *Bus) GetMeta(key string) (any, bool) { return b.meta.Load(key) }

// Errs returns every worker-goroutine error accumulated so far (failed
// semops, failed async sends), in no particular order. It never blocks the
// workers that recorded them.
func (b *Bus) Errs() []error { return b.errs.Slice() }

func (b *Bus) log(level int, format string, args ...any) {
	if b.onLog != nil {
		b.onLog(level, format, args...)
	}
}

// Send performs a synchronous mailbox delivery: it looks up recvName
// (garbage-collecting any dead slots encountered along the way),
// acquires the recipient's write semaphore, writes header and payload,
// and releases the recipient's read semaphore. It returns
// ErrorNoSuchProcess immediately, without touching any slot, if
// recvName is not currently registered.
func (b *Bus) Send(recvName string, msgType int, payload []byte) error {
	index := b.getProcIndex(recvName)
	if index < 0 {
		return ErrorNoSuchProcess.Error(nil)
	}
	return b.shmSend(index, recvName, msgType, payload)
}

// SendAsync enqueues a copy of the message on the local send queue;
// the send-async worker drains it and performs a synchronous Send.
// The queue is looping, so on overflow the oldest pending message is
// dropped rather than blocking the caller.
func (b *Bus) SendAsync(recvName string, msgType int, payload []byte) {
	cp := make([]byte, len(payload))
	copy(cp, payload)
	b.sendQueue.Put(&message{recvName: recvName, msgType: msgType, payload: cp})
}

// Stat returns the registered mailbox size and send/receive counters
// for name, mirroring get_proc_info's read-only snapshot.
func (b *Bus) Stat(name string) (mailboxSize int, sendCount int64, recvCount int64, ok bool) {
	index := b.getProcIndex(name)
	if index < 0 {
		return 0, 0, 0, false
	}
	info, found := b.getProcInfo(index)
	if !found {
		return 0, 0, 0, false
	}
	return info.MailboxSize, info.SendCount, info.RecvCount, true
}

func (b *Bus) startWorkers() {
	b.wg.Add(3)
	go b.receiveWorker()
	go b.dispatchWorker()
	go b.sendAsyncWorker()
}

// receiveWorker polls its own mailbox's read semaphore without
// blocking, sleeping pollInterval between misses, per the bus's
// polling schedule (no blocking semop, so Close can stop it promptly).
// On a hit it copies the slot out, zeroes it, releases the write
// semaphore for the next sender, and enqueues the message.
func (b *Bus) receiveWorker() {
	defer b.wg.Done()

	local := b.local[b.myIndex]
	for {
		select {
		case <-b.stop:
			return
		default:
		}

		ok, err := tryAcquireNoWait(local.rlock)
		if err != nil {
			b.errs.Add(err)
			b.log(3, "receive worker: semop error: %v", err)
			b.sleepPoll()
			continue
		}
		if !ok {
			b.sleepPoll()
			continue
		}

		h := unmarshalHeader(local.shm)
		if h.empty() {
			_ = unlock(local.wlock)
			continue
		}

		payload := make([]byte, h.MsgLen)
		copy(payload, local.shm[mailboxHeaderSize:mailboxHeaderSize+int(h.MsgLen)])
		for i := range local.shm[:mailboxHeaderSize+int(h.MsgLen)] {
			local.shm[i] = 0
		}

		msg := &message{senderName: h.senderName(), msgType: int(h.MsgType), payload: payload}
		if !b.recvQueue.Put(msg) {
			b.log(3, "receive worker: queue full, msg from %s type %d dropped", msg.senderName, msg.msgType)
		} else {
			b.incRecvCount()
		}

		_ = unlock(local.wlock)
	}
}

func (b *Bus) sleepPoll() {
	time.Sleep(time.Duration(b.pollInterval.Load()))
}

// dispatchWorker drains the receive queue and invokes onMsg. A panic
// from the callback is recovered and logged; it must never take down
// the worker.
func (b *Bus) dispatchWorker() {
	defer b.wg.Done()

	for {
		item, ok := b.recvQueue.Get()
		if !ok {
			return
		}
		msg := item.(*message)
		b.dispatchOne(msg)
	}
}

func (b *Bus) dispatchOne(msg *message) {
	defer func() {
		if r := recover(); r != nil {
			b.log(3, "dispatch worker: onMsg panicked: %v", r)
		}
	}()
	if b.onMsg != nil {
		b.onMsg(msg.senderName, msg.msgType, msg.payload)
	} else {
		b.log(4, "dispatch worker: no callback registered")
	}
}

// sendAsyncWorker drains the send queue and performs a synchronous
// Send per item, just as the reference's send thread does.
func (b *Bus) sendAsyncWorker() {
	defer b.wg.Done()

	for {
		item, ok := b.sendQueue.Get()
		if !ok {
			return
		}
		msg := item.(*message)
		if err := b.Send(msg.recvName, msg.msgType, msg.payload); err != nil {
			b.errs.Add(err)
		}
	}
}

// tryAcquireNoWait performs a non-blocking P operation, reporting
// (true, nil) if it succeeded, (false, nil) if the semaphore was at
// zero (nothing pending), or (false, err) on a real syscall error.
func tryAcquireNoWait(sem int) (bool, error) {
	err := unix.Semop(sem, []unix.Sembuf{{SemNum: 0, SemOp: -1, SemFlg: unix.IPC_NOWAIT}})
	if err == nil {
		return true, nil
	}
	if err == unix.EAGAIN {
		return false, nil
	}
	return false, err
}

// Close stops the worker goroutines and detaches this process's view
// of the control region and its own mailbox. It neither reclaims the
// process's slot nor releases the liveness semaphore: the kernel undoes
// that SEM_UNDO increment only when the process exits. The slot is
// reclaimed lazily after that, the next time another process's
// initialization scan finds the liveness semaphore at zero (the
// crash-recovery path in populateMemProcSingle). Teardown under SIGKILL
// takes exactly that path, and a clean Close followed by exit does too.
func (b *Bus) Close() error {
	close(b.stop)
	b.recvQueue.Close()
	b.sendQueue.Close()
	b.wg.Wait()

	if b.local[b.myIndex].shm != nil {
		_ = clearShmDetachOnly(b.local[b.myIndex].shm)
	}
	return clearShmDetachOnly(b.ctrlBuf)
}

// clearShmDetachOnly detaches a segment without destroying it — used
// on Close, where other processes may still be attached.
func clearShmDetachOnly(buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	return unix.Shmdt(uintptr(unsafe.Pointer(&buf[0])))
}
