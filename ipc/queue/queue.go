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

// Package queue implements the bounded ring-buffer queue shared by the
// IPC bus's receive, dispatch, and send-async workers: a fixed-capacity
// buffer of opaque items coordinated by a mutex and condition variable,
// either looping (drop the oldest on overflow) or blocking (wait for
// room) on a full put.
package queue

import "sync"

type state uint8

const (
	stateEmpty state = iota
	stateNormal
	stateFull
)

// Queue is a bounded ring buffer. The zero value is not usable; use New.
type Queue struct {
	mu   sync.Mutex
	cond *sync.Cond

	buf      []any
	capacity int
	head     int
	tail     int
	state    state

	loop   bool
	closed bool
}

// New creates a queue of the given capacity. When loop is true, Put on
// a full queue drops the oldest item to make room and never blocks.
// When loop is false, Put on a full queue blocks until Get makes room.
func New(capacity int, loop bool) *Queue {
	q := &Queue{
		buf:      make([]any, capacity),
		capacity: capacity,
		loop:     loop,
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Cap returns the queue's fixed capacity.
func (q *Queue) Cap() int {
	return q.capacity
}

// Len returns the number of items currently queued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.len()
}

func (q *Queue) len() int {
	switch q.state {
	case stateEmpty:
		return 0
	case stateFull:
		return q.capacity
	default:
		if q.tail > q.head {
			return q.tail - q.head
		}
		return q.capacity - q.head + q.tail
	}
}

// Put enqueues item. On a looping queue this never blocks: a full
// queue silently evicts its oldest item first. On a blocking queue
// this waits until room is available or Close is called, in which
// case it returns false.
func (q *Queue) Put(item any) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.state == stateFull && !q.loop {
		if q.closed {
			return false
		}
		q.cond.Wait()
	}
	if q.closed {
		return false
	}

	if q.state == stateFull {
		// Looping queue: drop the oldest to make room.
		q.head = (q.head + 1) % q.capacity
	}

	q.buf[q.tail] = item
	q.tail = (q.tail + 1) % q.capacity
	if q.tail == q.head {
		q.state = stateFull
	} else {
		q.state = stateNormal
	}

	q.cond.Signal()
	return true
}

// Get dequeues and returns the oldest item, blocking while the queue is
// empty. It returns (nil, false) if the queue is closed and drained.
func (q *Queue) Get() (any, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.state == stateEmpty {
		if q.closed {
			return nil, false
		}
		q.cond.Wait()
	}

	item := q.buf[q.head]
	q.buf[q.head] = nil
	q.head = (q.head + 1) % q.capacity
	if q.head == q.tail {
		q.state = stateEmpty
	} else {
		q.state = stateNormal
	}

	q.cond.Signal()
	return item, true
}

// Close unblocks every pending and future Put/Get call. A closed queue
// cannot be reused.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.cond.Broadcast()
}
