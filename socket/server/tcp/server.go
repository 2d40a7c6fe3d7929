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

// Package tcp implements the accept-loop TCP server: one goroutine per
// accepted connection decodes frames and dispatches them to the
// registered HandlerFunc one at a time, so handler calls are serialized
// per connection; responses are written under the connection's write
// lock.
package tcp

import (
	"context"
	"crypto/tls"
	"net"
	"sync"
	"sync/atomic"

	libatm "github.com/jaronho/nsocket/atomic"
	liberr "github.com/jaronho/nsocket/errors"
	libptc "github.com/jaronho/nsocket/network/protocol"
	libsck "github.com/jaronho/nsocket/socket"
)

const (
	ErrorAlreadyRegistered liberr.CodeError = liberr.MinPkgSocket + 30 + iota
	ErrorNotRegistered
	ErrorListen
)

func init() {
	liberr.RegisterIdFctMessage(liberr.MinPkgSocket+30, getMessage)
}

func getMessage(code liberr.CodeError) string {
	switch code {
	case ErrorAlreadyRegistered:
		return "server is already registered to an address"
	case ErrorNotRegistered:
		return "server has no registered address"
	case ErrorListen:
		return "failed to start listening"
	}
	return liberr.NullMessage
}

// ServerTcp is the TCP server contract: a libsck.Server plus the
// two-phase RegisterServer/Listen split so a caller can validate
// configuration before committing to accept connections.
type ServerTcp interface {
	libsck.Server

	RegisterServer(address string) error

	// SetTLSConfig wraps every subsequently accepted connection in the
	// given TLS configuration. Call before Listen; it has no effect on
	// connections already accepted.
	SetTLSConfig(cfg *tls.Config)
}

type server struct {
	updateConn libsck.UpdateConn
	handler    libsck.HandlerFunc
	maxBody    int
	tlsConfig  *tls.Config
	network    libptc.NetworkProtocol

	address string
	ln      net.Listener
	lnMu    sync.Mutex

	conns  libatm.MapTyped[int64, *connection]
	nextID atomic.Int64
	open   atomic.Int64
	running atomic.Bool

	funcError      libsck.FuncError
	funcInfo       libsck.FuncInfo
	funcInfoServer libsck.FuncInfoServer
}

// New creates a TCP server bound to no address yet; call RegisterServer
// before Listen. upd, if non-nil, customizes each accepted net.Conn
// (keep-alive, deadlines) before the framer attaches.
func New(upd libsck.UpdateConn, handler libsck.HandlerFunc) ServerTcp {
	return &server{
		updateConn: upd,
		handler:    handler,
		maxBody:    0,
		network:    libptc.NetworkTCP,
		conns:      libatm.NewMapTyped[int64, *connection](),
	}
}

// SetTLSConfig wraps every accepted connection in cfg before the framer
// attaches. Framing operates on the decrypted plaintext stream either way.
func (s *server) SetTLSConfig(cfg *tls.Config) {
	s.tlsConfig = cfg
}

func (s *server) RegisterFuncError(f libsck.FuncError)             { s.funcError = f }
func (s *server) RegisterFuncInfo(f libsck.FuncInfo)                { s.funcInfo = f }
func (s *server) RegisterFuncInfoServer(f libsck.FuncInfoServer)    { s.funcInfoServer = f }

func (s *server) emitError(state libsck.ConnState, err error) {
	if err == nil {
		return
	}
	if s.funcError != nil {
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

// RegisterServer binds the address this server will Listen on. It does
// not open a socket yet.
func (s *server) RegisterServer(address string) error {
	s.lnMu.Lock()
	defer s.lnMu.Unlock()

	if s.address != "" {
		return ErrorAlreadyRegistered.Error(nil)
	}
	s.address = address
	return nil
}

// Listen opens the listening socket and runs the accept loop until ctx
// is cancelled or Shutdown is called. It returns nil on a clean shutdown.
func (s *server) Listen(ctx context.Context) error {
	s.lnMu.Lock()
	if s.address == "" {
		s.lnMu.Unlock()
		return ErrorNotRegistered.Error(nil)
	}

	var (
		ln  net.Listener
		err error
	)
	if s.tlsConfig != nil {
		ln, err = tls.Listen(s.network.Code(), s.address, s.tlsConfig)
	} else {
		ln, err = net.Listen(s.network.Code(), s.address)
	}
	if err != nil {
		s.lnMu.Unlock()
		return ErrorListen.Error(err)
	}
	s.ln = ln
	s.lnMu.Unlock()

	s.running.Store(true)
	defer s.running.Store(false)

	s.emitServerInfo("listening on " + s.address)

	go func() {
		<-ctx.Done()
		_ = s.closeListener()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if !s.running.Load() {
				return nil
			}
			s.emitError(libsck.ConnectionNew, libsck.ErrorFilter(err))
			return err
		}

		if s.updateConn != nil {
			s.updateConn(conn)
		}

		s.acceptConn(conn)
	}
}

func (s *server) acceptConn(conn net.Conn) {
	id := s.nextID.Add(1)
	c := newConnection(id, conn, s.maxBody)
	s.conns.Store(id, c)
	s.open.Add(1)
	s.emitInfo(libsck.ConnectionNew, conn.RemoteAddr().String())

	go func() {
		c.readLoop(
			s.handler,
			func() { s.emitInfo(libsck.ConnectionRead, conn.RemoteAddr().String()) },
			func(err error) {
				s.emitError(libsck.ConnectionClose, err)
				s.conns.Delete(id)
				s.open.Add(-1)
				_ = c.close()
				s.emitInfo(libsck.ConnectionClose, conn.RemoteAddr().String())
			},
		)
	}()
}

func (s *server) closeListener() error {
	s.lnMu.Lock()
	defer s.lnMu.Unlock()

	if s.ln == nil {
		return nil
	}
	s.running.Store(false)
	return s.ln.Close()
}

// Shutdown stops accepting new connections and closes every open one.
func (s *server) Shutdown(ctx context.Context) error {
	err := s.closeListener()

	s.conns.Range(func(_ int64, c *connection) bool {
		_ = c.close()
		return true
	})

	return err
}

func (s *server) IsRunning() bool {
	return s.running.Load()
}

func (s *server) OpenConnections() int64 {
	return s.open.Load()
}
