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

// Package socket declares the shared contract between the TCP/UDP server
// and client implementations: connection lifecycle states, the
// reader/writer split used by handlers, and the callback types a caller
// registers for error and informational events.
package socket

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
)

// DefaultBufferSize is the read buffer size used when a caller does not
// override it.
const DefaultBufferSize = 32 * 1024

// EOL is the line terminator some line-oriented test helpers split on.
const EOL = byte('\n')

// ConnState identifies a point in a connection's lifecycle, surfaced to
// FuncInfo/FuncError callbacks so a caller can log or meter each phase.
type ConnState uint8

const (
	ConnectionDial ConnState = iota
	ConnectionNew
	ConnectionRead
	ConnectionCloseRead
	ConnectionHandler
	ConnectionWrite
	ConnectionCloseWrite
	ConnectionClose
)

func (c ConnState) String() string {
	switch c {
	case ConnectionDial:
		return "Dial Connection"
	case ConnectionNew:
		return "New Connection"
	case ConnectionRead:
		return "Read Incoming Stream"
	case ConnectionCloseRead:
		return "Close Incoming Stream"
	case ConnectionHandler:
		return "Run HandlerFunc"
	case ConnectionWrite:
		return "Write Outgoing Steam"
	case ConnectionCloseWrite:
		return "Close Outgoing Stream"
	case ConnectionClose:
		return "Close Connection"
	default:
		return "unknown connection state"
	}
}

// ErrorFilter folds the expected closed-connection/EOF errors down to nil
// so callers don't have to special-case them in every FuncError callback.
func ErrorFilter(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return nil
	}

	if strings.Contains(err.Error(), "use of closed network connection") {
		return nil
	}

	return err
}

// Context is the richer per-connection handle passed to a stateful
// Handler: it exposes the connection's liveness, endpoints, and raw
// Read/Write so a caller that needs more than the Reader/Writer split
// can still drive the connection directly.
type Context interface {
	IsConnected() bool
	RemoteHost() string
	LocalHost() string
	Done() <-chan struct{}
	Err() error
	Read(buf []byte) (int, error)
	Write(buf []byte) (int, error)
}

// Reader is the framed-read half handed to a HandlerFunc.
type Reader interface {
	io.Reader
	io.Closer
}

// Writer is the framed-write half handed to a HandlerFunc.
type Writer interface {
	io.Writer
	io.Closer
}

// HandlerFunc processes one connection's request/response stream. It
// receives the framed request reader and response writer and is
// responsible for closing both when done.
type HandlerFunc func(request Reader, response Writer)

// Handler is a stateful alternative to HandlerFunc for callers that want
// an object instead of a closure.
type Handler interface {
	Serve(request Reader, response Writer)
}

// UpdateConn lets a caller customize an accepted/dialed net.Conn (for
// example, setting keep-alive or deadlines) before the framer attaches.
type UpdateConn func(conn net.Conn)

// FuncError reports a non-fatal error tied to a connection state.
type FuncError func(state ConnState, err error)

// FuncInfo reports an informational, per-connection event.
type FuncInfo func(state ConnState, message string)

// FuncInfoServer reports a server-wide informational event not tied to
// any single connection (listening, shutting down, accept-loop exit).
type FuncInfoServer func(message string)

// Server is the common contract for the TCP and UDP server implementations.
type Server interface {
	RegisterFuncError(f FuncError)
	RegisterFuncInfo(f FuncInfo)
	RegisterFuncInfoServer(f FuncInfoServer)

	Listen(ctx context.Context) error
	Shutdown(ctx context.Context) error

	IsRunning() bool
	OpenConnections() int64
}

// Client is the common contract for the TCP and UDP client implementations.
type Client interface {
	RegisterFuncError(f FuncError)
	RegisterFuncInfo(f FuncInfo)

	Connect(ctx context.Context) error
	Write(p []byte) (int, error)
	Read(p []byte) (int, error)
	Close() error
}
