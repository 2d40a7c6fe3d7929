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

// Package udp implements the UDP datagram node: one bound socket, a
// single-use lifecycle, and a data callback fed one whole datagram per
// recv completion. Unlike the TCP server no framer sits between the
// wire and the callback — UDP delivers message boundaries for free.
package udp

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	liberr "github.com/jaronho/nsocket/errors"
	libsck "github.com/jaronho/nsocket/socket"
	"golang.org/x/sys/unix"
)

const (
	// MinRecvBufferSize is the minimum useful datagram buffer;
	// DefaultRecvBufferSize is the node's higher default, large enough
	// for any UDP payload.
	MinRecvBufferSize     = 128
	DefaultRecvBufferSize = 65536
)

const (
	ErrorAlreadyRegistered liberr.CodeError = liberr.MinPkgSocket + 50 + iota
	ErrorNotRegistered
	ErrorListen
	ErrorClosed
)

func init() {
	liberr.RegisterIdFctMessage(liberr.MinPkgSocket+50, getMessage)
}

func getMessage(code liberr.CodeError) string {
	switch code {
	case ErrorAlreadyRegistered:
		return "server is already registered to an address"
	case ErrorNotRegistered:
		return "server has no registered address"
	case ErrorListen:
		return "failed to bind the datagram socket"
	case ErrorClosed:
		return "node is closed and must be reconstructed"
	}
	return liberr.NullMessage
}

// nextHandlerID returns a 64-bit id formed by the current millisecond
// timestamp in the upper 52 bits and a per-millisecond counter in the
// lower 12 bits, collision-free within the process as long as fewer
// than 4096 ids are minted in the same millisecond.
var (
	idMu      sync.Mutex
	idLastMs  int64
	idCounter uint16
)

func nextHandlerID(now time.Time) uint64 {
	idMu.Lock()
	defer idMu.Unlock()

	ms := now.UnixMilli()
	if ms == idLastMs {
		idCounter = (idCounter + 1) & 0x0FFF
	} else {
		idLastMs = ms
		idCounter = 0
	}
	return uint64(ms)<<12 | uint64(idCounter)
}

// ServerUdp is the UDP node contract: a libsck.Server plus the
// two-phase RegisterServer/Listen split shared with the TCP server, and
// a Broadcast toggle that must be set before Listen.
type ServerUdp interface {
	libsck.Server

	RegisterServer(address string) error

	// SetBroadcast enables SO_BROADCAST on the bound socket. Call before
	// Listen; it has no effect afterwards.
	SetBroadcast(enabled bool)

	// SetRecvBufferSize overrides the per-recv buffer size. Values below
	// MinRecvBufferSize are raised to MinRecvBufferSize.
	SetRecvBufferSize(size int)

	// Send transmits p to addr synchronously, returning the error code
	// and bytes written the same way the reactor's synchronous send does.
	Send(addr *net.UDPAddr, p []byte) (int, error)

	// SendAsync posts p to addr without blocking the caller; the done
	// callback, if non-nil, runs once the write completes or fails.
	SendAsync(addr *net.UDPAddr, p []byte, done func(n int, err error))
}

type server struct {
	id uint64

	handler    libsck.HandlerFunc
	updateConn libsck.UpdateConn

	broadcast     bool
	recvBufferSize int

	address string
	conn    *net.UDPConn
	connMu  sync.Mutex

	running atomic.Bool
	closed  atomic.Bool
	open    atomic.Int64

	funcError      libsck.FuncError
	funcInfo       libsck.FuncInfo
	funcInfoServer libsck.FuncInfoServer
}

// New creates a UDP node bound to no address yet; call RegisterServer
// before Listen. The node is single-use: once closed it cannot be
// reopened and a new one must be constructed.
func New(upd libsck.UpdateConn, handler libsck.HandlerFunc) ServerUdp {
	return &server{
		id:             nextHandlerID(time.Now()),
		handler:        handler,
		updateConn:     upd,
		recvBufferSize: DefaultRecvBufferSize,
	}
}

func (s *server) SetBroadcast(enabled bool) {
	s.broadcast = enabled
}

func (s *server) SetRecvBufferSize(size int) {
	if size < MinRecvBufferSize {
		size = MinRecvBufferSize
	}
	s.recvBufferSize = size
}

func (s *server) RegisterFuncError(f libsck.FuncError)           { s.funcError = f }
func (s *server) RegisterFuncInfo(f libsck.FuncInfo)             { s.funcInfo = f }
func (s *server) RegisterFuncInfoServer(f libsck.FuncInfoServer) { s.funcInfoServer = f }

func (s *server) emitError(state libsck.ConnState, err error) {
	if err != nil && s.funcError != nil {
		s.funcError(state, err)
	}
}

func (s *server) emitInfo(state libsck.ConnState, msg string) {
	if s.funcInfo != nil {
		s.funcInfo(state, msg)
	}
}

func (s *server) emitServerInfo(msg string) {
	if s.funcInfoServer != nil {
		s.funcInfoServer(msg)
	}
}

// RegisterServer binds the local address the node will Listen on. It
// does not open the socket yet.
func (s *server) RegisterServer(address string) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.address != "" {
		return ErrorAlreadyRegistered.Error(nil)
	}
	s.address = address
	return nil
}

// Listen opens the datagram socket and runs the recv loop, delivering
// one data-callback invocation per completed recv, until ctx is
// cancelled or Shutdown is called. The node is single-use: once this
// returns the node is closed and a fresh one must be created to listen
// again.
func (s *server) Listen(ctx context.Context) error {
	if s.closed.Load() {
		return ErrorClosed.Error(nil)
	}

	s.connMu.Lock()
	if s.address == "" {
		s.connMu.Unlock()
		return ErrorNotRegistered.Error(nil)
	}

	laddr, err := net.ResolveUDPAddr("udp", s.address)
	if err != nil {
		s.connMu.Unlock()
		return ErrorListen.Error(err)
	}

	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		s.connMu.Unlock()
		return ErrorListen.Error(err)
	}

	if s.broadcast {
		if serr := setBroadcast(conn); serr != nil {
			s.connMu.Unlock()
			_ = conn.Close()
			return ErrorListen.Error(serr)
		}
	}

	s.conn = conn
	s.connMu.Unlock()

	if s.updateConn != nil {
		s.updateConn(conn)
	}

	s.running.Store(true)
	defer func() {
		s.running.Store(false)
		s.closed.Store(true)
		_ = conn.Close()
	}()

	s.emitServerInfo("listening on " + s.address)

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	buf := make([]byte, s.recvBufferSize)
	for {
		n, raddr, err := conn.ReadFromUDP(buf)
		if err != nil {
			if !s.running.Load() {
				return nil
			}
			if ferr := libsck.ErrorFilter(err); ferr != nil {
				s.emitError(libsck.ConnectionRead, ferr)
				return ferr
			}
			return nil
		}

		s.open.Add(1)
		s.emitInfo(libsck.ConnectionRead, raddr.String())

		payload := make([]byte, n)
		copy(payload, buf[:n])

		s.handler(newDatagramRequest(payload, raddr), newDatagramResponse(conn, raddr))
		s.open.Add(-1)
	}
}

// Shutdown closes the bound socket, unblocking Listen.
func (s *server) Shutdown(ctx context.Context) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func (s *server) IsRunning() bool {
	return s.running.Load()
}

func (s *server) OpenConnections() int64 {
	return s.open.Load()
}

// setBroadcast sets SO_BROADCAST on conn's underlying file descriptor so
// sends to a broadcast address are not rejected by the kernel. The
// standard library exposes no portable accessor for this option.
func setBroadcast(conn *net.UDPConn) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}

	var setErr error
	ctrlErr := raw.Control(func(fd uintptr) {
		setErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
	})
	if ctrlErr != nil {
		return ctrlErr
	}
	return setErr
}

// Send transmits p to addr synchronously, serialized with respect to
// other synchronous sends on this node via the socket's own write path.
func (s *server) Send(addr *net.UDPAddr, p []byte) (int, error) {
	s.connMu.Lock()
	conn := s.conn
	s.connMu.Unlock()

	if conn == nil {
		return 0, ErrorNotRegistered.Error(nil)
	}
	return conn.WriteToUDP(p, addr)
}

// SendAsync posts p to addr without blocking the caller; the completion
// callback may run on a separate goroutine, matching the reactor's
// async-send contract of possibly interleaving with synchronous sends.
func (s *server) SendAsync(addr *net.UDPAddr, p []byte, done func(n int, err error)) {
	go func() {
		n, err := s.Send(addr, p)
		if done != nil {
			done(n, err)
		}
	}()
}
