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

// Package tcp implements the TCP client half: resolve, dial, and report
// connection failure through the registered FuncError, the same way the
// server does.
package tcp

import (
	"context"
	"crypto/tls"
	"net"
	"sync"

	"github.com/jaronho/nsocket/frame"
	libsck "github.com/jaronho/nsocket/socket"
)

type client struct {
	address   string
	tlsConfig *tls.Config
	updateConn libsck.UpdateConn

	mu      sync.Mutex
	conn    net.Conn
	framer  *frame.Framer
	pending [][]byte

	funcError libsck.FuncError
	funcInfo  libsck.FuncInfo
}

// ClientTCP is the TCP client contract.
type ClientTCP interface {
	libsck.Client

	SetTLSConfig(cfg *tls.Config)
	IsConnected() bool
}

// New creates a TCP client dialing address on Connect.
func New(address string) (ClientTCP, error) {
	return &client{address: address, framer: frame.New(0)}, nil
}

func (c *client) SetTLSConfig(cfg *tls.Config) {
	c.tlsConfig = cfg
}

func (c *client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

func (c *client) RegisterFuncError(f libsck.FuncError) { c.funcError = f }
func (c *client) RegisterFuncInfo(f libsck.FuncInfo)   { c.funcInfo = f }

func (c *client) emitError(state libsck.ConnState, err error) {
	if err != nil && c.funcError != nil {
		c.funcError(state, err)
	}
}

// Connect dials the server and reports failure via FuncError, mirroring
// the open-callback contract: success or failure fires exactly once.
func (c *client) Connect(ctx context.Context) error {
	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", c.address)
	if err != nil {
		c.emitError(libsck.ConnectionDial, err)
		return err
	}

	if c.tlsConfig != nil {
		conn = tls.Client(conn, c.tlsConfig)
	}

	if c.updateConn != nil {
		c.updateConn(conn)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	if c.funcInfo != nil {
		c.funcInfo(libsck.ConnectionDial, c.address)
	}
	return nil
}

// Write frames p and sends it whole.
func (c *client) Write(p []byte) (int, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return 0, ErrorNotConnected.Error(nil)
	}

	wire, err := frame.Encode(p)
	if err != nil {
		return 0, err
	}

	if _, err := conn.Write(wire); err != nil {
		c.emitError(libsck.ConnectionWrite, err)
		return 0, err
	}
	return len(p), nil
}

// Read returns the payload of the next complete frame, blocking until
// one arrives or the connection closes. p must be sized for the largest
// frame the caller expects: a frame that does not fit is reported via
// ErrorShortBuffer and kept pending so a retry with a larger buffer
// still receives it.
//
// A single socket read can carry more than one frame once the framer
// decodes it; those beyond the first are held in pending and drained
// on subsequent calls before any more bytes are read off the wire.
func (c *client) Read(p []byte) (int, error) {
	c.mu.Lock()
	if len(c.pending) > 0 {
		next := c.pending[0]
		c.pending = c.pending[1:]
		c.mu.Unlock()
		return c.deliver(p, next)
	}
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return 0, ErrorNotConnected.Error(nil)
	}

	buf := make([]byte, libsck.DefaultBufferSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			frames, ferr := c.framer.Feed(buf[:n])
			if len(frames) > 0 {
				if len(frames) > 1 {
					c.mu.Lock()
					c.pending = append(c.pending, frames[1:]...)
					c.mu.Unlock()
				}
				return c.deliver(p, frames[0])
			}
			if ferr != nil {
				return 0, ferr
			}
		}
		if err != nil {
			c.emitError(libsck.ConnectionClose, libsck.ErrorFilter(err))
			return 0, err
		}
	}
}

// deliver copies a decoded frame into p, or reports ErrorShortBuffer and
// re-queues the frame at the front of pending if p cannot hold it whole.
func (c *client) deliver(p, frame []byte) (int, error) {
	if len(frame) > len(p) {
		c.mu.Lock()
		c.pending = append([][]byte{frame}, c.pending...)
		c.mu.Unlock()
		return 0, ErrorShortBuffer.Error(nil)
	}
	return copy(p, frame), nil
}

func (c *client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close()
}
