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

package main

import (
	"context"
	"fmt"
	"io"

	"github.com/jaronho/nsocket/ipc"
	"github.com/jaronho/nsocket/logger"
	libsck "github.com/jaronho/nsocket/socket"
	scksrvtcp "github.com/jaronho/nsocket/socket/server/tcp"
	scksrvudp "github.com/jaronho/nsocket/socket/server/udp"
)

// daemon owns the TCP server, UDP server, and IPC bus this process
// wires together, and their shared logger.
type daemon struct {
	cfg Config
	log *logger.Logger

	tcp scksrvtcp.ServerTcp
	udp scksrvudp.ServerUdp
	bus *ipc.Bus
}

func newDaemon(cfg Config) (*daemon, error) {
	d := &daemon{
		cfg: cfg,
		log: logger.New(logger.Parse(cfg.LogLevel), "nsocketd"),
	}

	bus, err := ipc.New(cfg.IPC.ProcName, cfg.IPC.ProcCount, cfg.IPC.ShmKey, cfg.IPC.MailboxSize, cfg.IPC.QueueCapacity)
	if err != nil {
		return nil, fmt.Errorf("initializing ipc bus: %w", err)
	}
	bus.RegisterOnLog(d.log.OnLog())
	bus.RegisterOnMsg(d.onBusMsg)
	bus.SetMeta("forward_to", cfg.IPC.ForwardTo)
	d.bus = bus

	d.tcp = scksrvtcp.New(nil, d.handleFrame)
	d.tcp.RegisterFuncError(d.log.FuncError())
	d.tcp.RegisterFuncInfo(d.log.FuncInfo())
	d.tcp.RegisterFuncInfoServer(d.log.FuncInfoServer())

	d.udp = scksrvudp.New(nil, d.handleFrame)
	d.udp.RegisterFuncError(d.log.FuncError())
	d.udp.RegisterFuncInfo(d.log.FuncInfo())
	d.udp.RegisterFuncInfoServer(d.log.FuncInfoServer())

	return d, nil
}

// handleFrame is shared by the TCP and UDP servers: it reads one
// complete unit (a TCP frame or a UDP datagram — the server wrapping
// this callback has already done the framing, if any), forwards a copy
// onto the IPC bus when configured to, and echoes the payload back to
// the caller.
func (d *daemon) handleFrame(request libsck.Reader, response libsck.Writer) {
	defer func() { _ = request.Close() }()
	defer func() { _ = response.Close() }()

	payload, err := io.ReadAll(request)
	if err != nil {
		d.log.FuncError()(libsck.ConnectionRead, err)
		return
	}

	if forwardTo, _ := d.bus.GetMeta("forward_to"); forwardTo != nil && forwardTo.(string) != "" {
		d.bus.SendAsync(forwardTo.(string), 0, payload)
	}

	if _, err = response.Write(payload); err != nil {
		d.log.FuncError()(libsck.ConnectionWrite, err)
	}
}

func (d *daemon) onBusMsg(sender string, msgType int, payload []byte) {
	d.log.FuncInfoServer()(fmt.Sprintf("ipc message from %s type=%d len=%d", sender, msgType, len(payload)))
}

func (d *daemon) start(ctx context.Context) error {
	if d.cfg.TCP.Address != "" {
		if err := d.cfg.TCP.Validate(); err != nil {
			return fmt.Errorf("validating tcp config: %w", err)
		}
		tlsCfg, err := buildTLSConfig(d.cfg.TCP.TLS)
		if err != nil {
			return fmt.Errorf("building tcp tls config: %w", err)
		}
		if tlsCfg != nil {
			d.tcp.SetTLSConfig(tlsCfg)
		}
		if err = d.tcp.RegisterServer(d.cfg.TCP.Address); err != nil {
			return fmt.Errorf("registering tcp server: %w", err)
		}
		if err = d.tcp.Listen(ctx); err != nil {
			return fmt.Errorf("starting tcp server: %w", err)
		}
	}

	if d.cfg.UDP.Address != "" {
		if err := d.cfg.UDP.Validate(); err != nil {
			return fmt.Errorf("validating udp config: %w", err)
		}
		if err := d.udp.RegisterServer(d.cfg.UDP.Address); err != nil {
			return fmt.Errorf("registering udp server: %w", err)
		}
		if err := d.udp.Listen(ctx); err != nil {
			return fmt.Errorf("starting udp server: %w", err)
		}
	}

	return nil
}

func (d *daemon) stop(ctx context.Context) error {
	if d.tcp != nil && d.tcp.IsRunning() {
		if err := d.tcp.Shutdown(ctx); err != nil {
			d.log.FuncError()(libsck.ConnectionClose, err)
		}
	}
	if d.udp != nil && d.udp.IsRunning() {
		if err := d.udp.Shutdown(ctx); err != nil {
			d.log.FuncError()(libsck.ConnectionClose, err)
		}
	}
	return d.bus.Close()
}
