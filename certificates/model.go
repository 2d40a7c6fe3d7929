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

package certificates

import (
	"crypto/tls"
	"crypto/x509"
	"io"

	tlsaut "github.com/jaronho/nsocket/certificates/auth"
	tlscas "github.com/jaronho/nsocket/certificates/ca"
	tlscrt "github.com/jaronho/nsocket/certificates/certs"
	tlscpr "github.com/jaronho/nsocket/certificates/cipher"
	tlscrv "github.com/jaronho/nsocket/certificates/curves"
	tlsvrs "github.com/jaronho/nsocket/certificates/tlsversion"
)

type config struct {
	rand                  io.Reader
	cert                  []tlscrt.Cert
	cipherList            []tlscpr.Cipher
	curveList             []tlscrv.Curves
	caRoot                []tlscas.Cert
	clientAuth            tlsaut.ClientAuth
	clientCA              []tlscas.Cert
	tlsMinVersion         tlsvrs.Version
	tlsMaxVersion         tlsvrs.Version
	dynSizingDisabled     bool
	ticketSessionDisabled bool
}

func (c *config) RegisterRand(rand io.Reader) {
	c.rand = rand
}

func (c *config) SetVersionMin(v tlsvrs.Version) {
	c.tlsMinVersion = v
}

func (c *config) GetVersionMin() tlsvrs.Version {
	return c.tlsMinVersion
}

func (c *config) SetVersionMax(v tlsvrs.Version) {
	c.tlsMaxVersion = v
}

func (c *config) GetVersionMax() tlsvrs.Version {
	return c.tlsMaxVersion
}

func (c *config) SetDynamicSizingDisabled(flag bool) {
	c.dynSizingDisabled = flag
}

func (c *config) SetSessionTicketDisabled(flag bool) {
	c.ticketSessionDisabled = flag
}

func (c *config) TlsConfig(serverName string) *tls.Config {
	/* #nosec */
	cnf := &tls.Config{
		InsecureSkipVerify: false,
	}

	if serverName != "" {
		cnf.ServerName = serverName
	}

	if c.rand != nil {
		cnf.Rand = c.rand
	}

	if c.ticketSessionDisabled {
		cnf.SessionTicketsDisabled = true
	}

	if c.dynSizingDisabled {
		cnf.DynamicRecordSizingDisabled = true
	}

	if c.tlsMinVersion != tlsvrs.VersionUnknown {
		cnf.MinVersion = c.tlsMinVersion.Uint16()
	}

	if c.tlsMaxVersion != tlsvrs.VersionUnknown {
		cnf.MaxVersion = c.tlsMaxVersion.Uint16()
	}

	if len(c.cipherList) > 0 {
		cnf.PreferServerCipherSuites = true
		for _, ci := range c.cipherList {
			cnf.CipherSuites = append(cnf.CipherSuites, ci.Uint16())
		}
	}

	if len(c.curveList) > 0 {
		for _, cv := range c.curveList {
			cnf.CurvePreferences = append(cnf.CurvePreferences, cv.TLS())
		}
	}

	if len(c.caRoot) > 0 {
		pool := x509.NewCertPool()
		for _, ca := range c.caRoot {
			ca.AppendPool(pool)
		}
		cnf.RootCAs = pool
	}

	if len(c.cert) > 0 {
		for _, crt := range c.cert {
			cnf.Certificates = append(cnf.Certificates, crt.TLS())
		}
	}

	if c.clientAuth != tlsaut.NoClientCert {
		cnf.ClientAuth = c.clientAuth.TLS()
		if len(c.clientCA) > 0 {
			pool := x509.NewCertPool()
			for _, ca := range c.clientCA {
				ca.AppendPool(pool)
			}
			cnf.ClientCAs = pool
		}
	}

	return cnf
}

func (c *config) TLS(serverName string) *tls.Config {
	return c.TlsConfig(serverName)
}

func (c *config) cloneCipherList() []tlscpr.Cipher {
	if c.cipherList == nil {
		return nil
	}

	return append(make([]tlscpr.Cipher, 0), c.cipherList...)
}

func (c *config) cloneCurveList() []tlscrv.Curves {
	if c.curveList == nil {
		return nil
	}

	return append(make([]tlscrv.Curves, 0), c.curveList...)
}

func (c *config) cloneCertificates() []tlscrt.Cert {
	if c.cert == nil {
		return nil
	}

	return append(make([]tlscrt.Cert, 0), c.cert...)
}

func (c *config) cloneRootCA() []tlscas.Cert {
	if c.caRoot == nil {
		return nil
	}

	return append(make([]tlscas.Cert, 0), c.caRoot...)
}

func (c *config) cloneClientCA() []tlscas.Cert {
	if c.clientCA == nil {
		return nil
	}

	return append(make([]tlscas.Cert, 0), c.clientCA...)
}

func (c *config) Clone() TLSConfig {
	return &config{
		rand:                  c.rand,
		caRoot:                c.cloneRootCA(),
		cert:                  c.cloneCertificates(),
		tlsMinVersion:         c.tlsMinVersion,
		tlsMaxVersion:         c.tlsMaxVersion,
		cipherList:            c.cloneCipherList(),
		curveList:             c.cloneCurveList(),
		dynSizingDisabled:     c.dynSizingDisabled,
		ticketSessionDisabled: c.ticketSessionDisabled,
		clientAuth:            c.clientAuth,
		clientCA:              c.cloneClientCA(),
	}
}

func (c *config) Config() *Config {
	crt := make([]tlscrt.Certif, 0, len(c.cert))
	for _, s := range c.cert {
		if s != nil {
			crt = append(crt, s.Model())
		}
	}

	return &Config{
		CurveList:            c.cloneCurveList(),
		CipherList:           c.cloneCipherList(),
		RootCA:               c.cloneRootCA(),
		ClientCA:             c.cloneClientCA(),
		Certs:                crt,
		VersionMin:           c.tlsMinVersion,
		VersionMax:           c.tlsMaxVersion,
		AuthClient:           c.clientAuth,
		DynamicSizingDisable: c.dynSizingDisabled,
		SessionTicketDisable: c.ticketSessionDisabled,
	}
}
