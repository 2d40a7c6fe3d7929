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
	"crypto/tls"
	"fmt"

	"github.com/jaronho/nsocket/certificates"
	sckcfg "github.com/jaronho/nsocket/socket/config"
)

// buildTLSConfig turns a socket/config.TLS option block into a
// *tls.Config by way of the certificates package, which owns
// certificate parsing, root/client CA pools, and mutual-auth wiring so
// this daemon never touches x509 directly.
func buildTLSConfig(opt sckcfg.TLS) (*tls.Config, error) {
	if !opt.Enabled {
		return nil, nil
	}

	cfg := certificates.New()
	if opt.CertFile != "" || opt.KeyFile != "" {
		if err := cfg.AddCertificatePairFile(opt.KeyFile, opt.CertFile); err != nil {
			return nil, fmt.Errorf("loading certificate pair: %w", err)
		}
	}
	if opt.CAFile != "" {
		if err := cfg.AddRootCAFile(opt.CAFile); err != nil {
			return nil, fmt.Errorf("loading CA file: %w", err)
		}
		if opt.MutualAuth {
			if err := cfg.AddClientCAFile(opt.CAFile); err != nil {
				return nil, fmt.Errorf("loading client CA file: %w", err)
			}
		}
	}

	return cfg.TlsConfig(opt.ServerName), nil
}
