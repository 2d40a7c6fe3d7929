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

// Package config holds the validated configuration structs for the TCP
// and UDP server/client implementations: bind/dial address, protocol,
// and optional TLS material.
package config

import (
	"github.com/go-playground/validator/v10"

	liberr "github.com/jaronho/nsocket/errors"
	libptc "github.com/jaronho/nsocket/network/protocol"
)

const (
	ErrorValidation liberr.CodeError = liberr.MinPkgSocket + 20 + iota
	ErrorTLSNotSupported
	ErrorTLSServerNameRequired
)

func init() {
	liberr.RegisterIdFctMessage(liberr.MinPkgSocket+20, getMessage)
}

func getMessage(code liberr.CodeError) string {
	switch code {
	case ErrorValidation:
		return "invalid socket configuration"
	case ErrorTLSNotSupported:
		return "TLS is only supported on TCP-family protocols"
	case ErrorTLSServerNameRequired:
		return "TLS requires a server name"
	}
	return liberr.NullMessage
}

var validate = validator.New()

// TLS carries the options needed to wrap a connection in crypto/tls,
// without reimplementing handshake logic: certificate/key material is
// loaded through the certificates package and handed to the stdlib.
type TLS struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	ServerName string `mapstructure:"server_name" yaml:"server_name" validate:"required_if=Enabled true"`
	CertFile   string `mapstructure:"cert_file" yaml:"cert_file"`
	KeyFile    string `mapstructure:"key_file" yaml:"key_file"`
	CAFile     string `mapstructure:"ca_file" yaml:"ca_file"`
	MutualAuth bool   `mapstructure:"mutual_auth" yaml:"mutual_auth"`
}

// Server configures a TCP or UDP server.
type Server struct {
	Network libptc.NetworkProtocol `mapstructure:"network" yaml:"network" validate:"required"`
	Address string                 `mapstructure:"address" yaml:"address" validate:"required"`
	TLS     TLS                    `mapstructure:"tls" yaml:"tls"`
}

// Validate checks the struct tags and the TLS/protocol interaction rule:
// TLS may only be enabled on a TCP-family protocol, and a server name is
// required whenever it is.
func (c Server) Validate() error {
	if err := validate.Struct(c); err != nil {
		return ErrorValidation.Error(err)
	}
	return validateTLS(c.Network, c.TLS)
}

// Client configures a TCP or UDP client.
type Client struct {
	Network libptc.NetworkProtocol `mapstructure:"network" yaml:"network" validate:"required"`
	Address string                 `mapstructure:"address" yaml:"address" validate:"required"`
	TLS     TLS                    `mapstructure:"tls" yaml:"tls"`
}

// Validate checks the struct tags and the TLS/protocol interaction rule.
func (c Client) Validate() error {
	if err := validate.Struct(c); err != nil {
		return ErrorValidation.Error(err)
	}
	return validateTLS(c.Network, c.TLS)
}

func validateTLS(network libptc.NetworkProtocol, tls TLS) error {
	if !tls.Enabled {
		return nil
	}

	if !network.IsTCP() {
		return ErrorTLSNotSupported.Error(nil)
	}

	if tls.ServerName == "" {
		return ErrorTLSServerNameRequired.Error(nil)
	}

	return nil
}
