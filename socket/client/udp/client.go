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

// Package udp implements the UDP client half: a connected datagram
// socket with no framing, mirroring the node's send/recv contract
// without owning a listen loop of its own.
package udp

import (
	"context"
	"net"
	"sync"

	liberr "github.com/jaronho/nsocket/errors"
	libsck "github.com/jaronho/nsocket/socket"
)

const (
	ErrorNotConnected liberr.CodeError = liberr.MinPkgSocket + 60 + iota
)

func init() {
	liberr.RegisterIdFctMessage(liberr.MinPkgSocket+60, getMessage)
}

func getMessage(code liberr.CodeError) string {
	switch code {
	case ErrorNotConnected:
		return "client is not connected"
	}
	return liberr.NullMessage
}

// ClientUDP is the UDP client contract.
type ClientUDP interface {
	libsck.Client

	IsConnected() bool
}

type client struct {
	address string

	mu   sync.Mutex
	conn *net.UDPConn

	funcError libsck.FuncError
	funcInfo  libsck.FuncInfo
}

// New creates a UDP client that will send to and receive from address
// once Connect is called.
func New(address string) (ClientUDP, error) {
	return &client{address: address}, nil
}

func (c *client) RegisterFuncError(f libsck.FuncError) { c.funcError = f }
func (c *client) RegisterFuncInfo(f libsck.FuncInfo)   { c.funcInfo = f }

func (c *client) emitError(state libsck.ConnState, err error) {
	if err != nil && c.funcError != nil {
		c.funcError(state, err)
	}
}

// Connect resolves and dials the remote address. UDP dial does not
// touch the network but fixes the default peer for Write/Read.
func (c *client) Connect(ctx context.Context) error {
	raddr, err := net.ResolveUDPAddr("udp", c.address)
	if err != nil {
		c.emitError(libsck.ConnectionDial, err)
		return err
	}

	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		c.emitError(libsck.ConnectionDial, err)
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	if c.funcInfo != nil {
		c.funcInfo(libsck.ConnectionDial, c.address)
	}
	return nil
}

func (c *client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Write sends p as one datagram to the connected peer.
func (c *client) Write(p []byte) (int, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return 0, ErrorNotConnected.Error(nil)
	}

	n, err := conn.Write(p)
	if err != nil {
		c.emitError(libsck.ConnectionWrite, err)
	}
	return n, err
}

// Read blocks for the next datagram from the connected peer and copies
// it into p, truncating if p is smaller than the datagram.
func (c *client) Read(p []byte) (int, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return 0, ErrorNotConnected.Error(nil)
	}

	n, err := conn.Read(p)
	if err != nil {
		c.emitError(libsck.ConnectionClose, libsck.ErrorFilter(err))
	}
	return n, err
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
