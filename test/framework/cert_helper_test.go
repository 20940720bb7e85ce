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
	"crypto/sha256"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("TLS certificate monitor", func() {
	It("should format the fingerprint as colon separated upper-case hex", func() {
		fingerprint := Fingerprint256([]byte("certificate"))
		parts := strings.Split(fingerprint, ":")

		Expect(parts).To(HaveLen(sha256.Size))
		for _, p := range parts {
			Expect(p).To(MatchRegexp(`^[0-9A-F]{2}$`))
		}
	})

	It("should read the certificate served by a TLS endpoint", func() {
		server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
		DeferCleanup(server.Close)

		address := server.Listener.Addr().String()
		host, _, err := net.SplitHostPort(address)
		Expect(err).NotTo(HaveOccurred())

		info, err := GetCertInfoFromAddress(ctx, address, host)
		Expect(err).NotTo(HaveOccurred())

		expected := server.Certificate()
		Expect(info.Fingerprint256).To(Equal(Fingerprint256(expected.Raw)))
		Expect(info.ValidTo).To(BeTemporally("==", expected.NotAfter))
		Expect(info.Subject).To(Equal(expected.Subject.String()))
		Expect(info.Issuer).To(Equal(expected.Issuer.String()))
	})

	It("should fail when nothing listens", func() {
		listener, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		address := listener.Addr().String()
		Expect(listener.Close()).To(Succeed())

		_, err = GetCertInfoFromAddress(ctx, address, "localhost")
		Expect(err).To(HaveOccurred())
	})
})
