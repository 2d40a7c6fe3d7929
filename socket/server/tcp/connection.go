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

package tcp

import (
	"bytes"
	"net"
	"sync"

	"github.com/jaronho/nsocket/frame"
	libsck "github.com/jaronho/nsocket/socket"
)

// frameRequest is the Reader half handed to a HandlerFunc: the fully
// decoded payload of one frame, readable exactly once.
type frameRequest struct {
	r *bytes.Reader
}

func newFrameRequest(payload []byte) *frameRequest {
	return &frameRequest{r: bytes.NewReader(payload)}
}

func (f *frameRequest) Read(p []byte) (int, error) {
	return f.r.Read(p)
}

func (f *frameRequest) Close() error {
	return nil
}

// frameResponse is the Writer half handed to a HandlerFunc: bytes
// written to it are buffered, then framed and flushed to the connection
// on Close, under the connection's write lock so concurrent writers on
// the same handler never interleave on the wire (the handler's strand).
type frameResponse struct {
	mu   *sync.Mutex
	conn net.Conn
	buf  bytes.Buffer
}

func newFrameResponse(mu *sync.Mutex, conn net.Conn) *frameResponse {
	return &frameResponse{mu: mu, conn: conn}
}

func (f *frameResponse) Write(p []byte) (int, error) {
	return f.buf.Write(p)
}

func (f *frameResponse) Close() error {
	if f.buf.Len() == 0 {
		return nil
	}

	wire, err := frame.Encode(f.buf.Bytes())
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	_, err = f.conn.Write(wire)
	return err
}

// connection binds one accepted socket to its framer, its serialized
// write lock (the handler's strand), and the callbacks registered on
// the owning server.
type connection struct {
	id     int64
	conn   net.Conn
	framer *frame.Framer
	writeMu sync.Mutex

	closeOnce sync.Once
}

func newConnection(id int64, conn net.Conn, maxBody int) *connection {
	return &connection{
		id:     id,
		conn:   conn,
		framer: frame.New(maxBody),
	}
}

func (c *connection) close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.conn.Close()
	})
	return err
}

// readLoop feeds socket reads through the framer and invokes handler
// once per complete frame, exactly as the reactor's read-loop contract
// requires: frames are delivered in arrival order, and a socket error
// or EOF ends the loop.
func (c *connection) readLoop(handler libsck.HandlerFunc, onFrame func(), onErr func(error)) {
	buf := make([]byte, libsck.DefaultBufferSize)

	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			frames, ferr := c.framer.Feed(buf[:n])
			for _, payload := range frames {
				onFrame()
				handler(newFrameRequest(payload), newFrameResponse(&c.writeMu, c.conn))
			}
			if ferr != nil {
				onErr(ferr)
				return
			}
		}
		if err != nil {
			onErr(libsck.ErrorFilter(err))
			return
		}
	}
}
