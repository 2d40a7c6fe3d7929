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

package udp

import (
	"bytes"
	"net"
)

// datagramRequest is the Reader half handed to a HandlerFunc for one
// received datagram: the whole payload, plus the sender's endpoint for
// handlers that need to reply.
type datagramRequest struct {
	r          *bytes.Reader
	remoteAddr *net.UDPAddr
}

func newDatagramRequest(payload []byte, remote *net.UDPAddr) *datagramRequest {
	return &datagramRequest{r: bytes.NewReader(payload), remoteAddr: remote}
}

func (d *datagramRequest) Read(p []byte) (int, error) {
	return d.r.Read(p)
}

func (d *datagramRequest) Close() error {
	return nil
}

// RemoteAddr returns the endpoint the datagram arrived from.
func (d *datagramRequest) RemoteAddr() *net.UDPAddr {
	return d.remoteAddr
}

// datagramResponse is the Writer half handed to a HandlerFunc: bytes
// written to it are buffered and sent back to the datagram's sender as
// a single reply packet on Close. Unlike the TCP frameResponse there is
// no length header — the packet boundary is the datagram itself.
type datagramResponse struct {
	conn       *net.UDPConn
	remoteAddr *net.UDPAddr
	buf        bytes.Buffer
}

func newDatagramResponse(conn *net.UDPConn, remote *net.UDPAddr) *datagramResponse {
	return &datagramResponse{conn: conn, remoteAddr: remote}
}

func (d *datagramResponse) Write(p []byte) (int, error) {
	return d.buf.Write(p)
}

func (d *datagramResponse) Close() error {
	if d.buf.Len() == 0 {
		return nil
	}
	_, err := d.conn.WriteToUDP(d.buf.Bytes(), d.remoteAddr)
	return err
}
