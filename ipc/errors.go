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
	liberr "github.com/jaronho/nsocket/errors"
)

const (
	ErrorInvalidArgument liberr.CodeError = liberr.MinPkgIPC + iota
	ErrorAlreadyInitialized
	ErrorNoMemory
	ErrorNoFreeSlot
	ErrorNoSuchProcess
	ErrorOversizePayload
	ErrorControlRegionInaccessible
	ErrorQueueFullBlocking
)

func init() {
	liberr.RegisterIdFctMessage(liberr.MinPkgIPC, getMessage)
}

func getMessage(code liberr.CodeError) string {
	switch code {
	case ErrorInvalidArgument:
		return "invalid argument"
	case ErrorAlreadyInitialized:
		return "bus is already initialized"
	case ErrorNoMemory:
		return "unable to allocate shared memory or semaphores"
	case ErrorNoFreeSlot:
		return "no free process slot available"
	case ErrorNoSuchProcess:
		return "no such process"
	case ErrorOversizePayload:
		return "payload exceeds recipient mailbox size"
	case ErrorControlRegionInaccessible:
		return "unable to map the control region"
	case ErrorQueueFullBlocking:
		return "queue is full and blocking"
	}
	return liberr.NullMessage
}
