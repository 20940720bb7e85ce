/*
Copyright © 2023 - 2025 SUSE LLC

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package framework

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// CertInfo describes the certificate a server presents.
type CertInfo struct {
	// Fingerprint256 is the SHA-256 digest of the DER certificate as colon separated upper-case hex.
	Fingerprint256 string
	ValidTo        time.Time
	Subject        string
	Issuer         string
}

// ErrNoPeerCertificate is returned when the server completes the handshake without a certificate.
var ErrNoPeerCertificate = errors.New("server presented no certificate")

// GetCertInfo connects to host on port 443 and returns the leaf certificate metadata. The
// certificate is not verified: the point is to see what is being served.
func GetCertInfo(ctx context.Context, host string) (*CertInfo, error) {
	return GetCertInfoFromAddress(ctx, net.JoinHostPort(host, "443"), host)
}

// GetCertInfoFromAddress dials address and sends serverName as SNI.
func GetCertInfoFromAddress(ctx context.Context, address, serverName string) (*CertInfo, error) {
	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: 30 * time.Second},
		Config: &tls.Config{
			ServerName:         serverName,
			InsecureSkipVerify: true, //nolint:gosec
		},
	}

	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", address, err)
	}
	defer conn.Close()

	tlsConn, ok := conn.(*tls.Conn)
	if !ok {
		return nil, fmt.Errorf("connection to %s is not TLS", address)
	}

	certs := tlsConn.ConnectionState().PeerCertificates
	if len(certs) == 0 {
		return nil, ErrNoPeerCertificate
	}

	return NewCertInfo(certs[0]), nil
}

// NewCertInfo extracts CertInfo from a parsed certificate.
func NewCertInfo(cert *x509.Certificate) *CertInfo {
	return &CertInfo{
		Fingerprint256: Fingerprint256(cert.Raw),
		ValidTo:        cert.NotAfter,
		Subject:        cert.Subject.String(),
		Issuer:         cert.Issuer.String(),
	}
}

// Fingerprint256 formats the SHA-256 digest of der as AA:BB:...
func Fingerprint256(der []byte) string {
	sum := sha256.Sum256(der)

	parts := make([]string, len(sum))
	for i, b := range sum {
		parts[i] = fmt.Sprintf("%02X", b)
	}

	return strings.Join(parts, ":")
}
