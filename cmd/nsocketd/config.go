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
	libptc "github.com/jaronho/nsocket/network/protocol"
	sckcfg "github.com/jaronho/nsocket/socket/config"
)

// IPCConfig configures this process's shared-memory bus registration.
type IPCConfig struct {
	ProcName      string `mapstructure:"proc_name" yaml:"proc_name"`
	ProcCount     int    `mapstructure:"proc_count" yaml:"proc_count"`
	ShmKey        int    `mapstructure:"shm_key" yaml:"shm_key"`
	MailboxSize   int    `mapstructure:"mailbox_size" yaml:"mailbox_size"`
	QueueCapacity int    `mapstructure:"queue_capacity" yaml:"queue_capacity"`
	// ForwardTo is the registered process name every inbound TCP/UDP
	// frame is forwarded to over the bus. Empty disables forwarding.
	ForwardTo string `mapstructure:"forward_to" yaml:"forward_to"`
}

// Config is the daemon's top-level, viper-unmarshalled configuration.
type Config struct {
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`

	TCP sckcfg.Server `mapstructure:"tcp" yaml:"tcp"`
	UDP sckcfg.Server `mapstructure:"udp" yaml:"udp"`

	IPC IPCConfig `mapstructure:"ipc" yaml:"ipc"`
}

func defaultConfig() Config {
	return Config{
		LogLevel: "info",
		TCP:      sckcfg.Server{Network: libptc.NetworkTCP},
		UDP:      sckcfg.Server{Network: libptc.NetworkUDP},
		IPC: IPCConfig{
			ProcName:      "nsocketd",
			ProcCount:     16,
			ShmKey:        0xF216C5,
			MailboxSize:   65536,
			QueueCapacity: 1024,
		},
	}
}
