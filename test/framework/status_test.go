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
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Rancher API status", func() {
	var (
		calls  atomic.Int32
		failN  int32
		server *httptest.Server
	)

	BeforeEach(func() {
		calls.Store(0)
		server = httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/dashboard/about" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			if calls.Add(1) <= failN {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		DeferCleanup(server.Close)
	})

	It("should build the about URL", func() {
		Expect(AboutURL("https://rancher.example.com/")).To(Equal("https://rancher.example.com/dashboard/about"))
		Expect(AboutURL("https://rancher.example.com")).To(Equal("https://rancher.example.com/dashboard/about"))
	})

	It("should retry until the server answers 200", func() {
		failN = 2
		err := PollAPIStatus(ctx, CheckAPIStatusInput{
			ServerURL: server.URL,
			Retries:   5,
			Interval:  10 * time.Millisecond,
			Client:    server.Client(),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(calls.Load()).To(BeNumerically("==", 3))
	})

	It("should give up after the configured retries", func() {
		failN = 100
		err := PollAPIStatus(ctx, CheckAPIStatusInput{
			ServerURL: server.URL,
			Retries:   2,
			Interval:  10 * time.Millisecond,
			Client:    server.Client(),
		})
		Expect(err).To(MatchError(ContainSubstring("returned 503")))
		Expect(calls.Load()).To(BeNumerically("==", 3))
	})

	It("should try once when no retries are configured", func() {
		failN = 100
		err := PollAPIStatus(ctx, CheckAPIStatusInput{
			ServerURL: server.URL,
			Interval:  10 * time.Millisecond,
			Client:    server.Client(),
		})
		Expect(err).To(MatchError(ContainSubstring("returned 503")))
		Expect(calls.Load()).To(BeNumerically("==", 1))
	})

	It("should stop when the context is done", func() {
		failN = 0
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		err := PollAPIStatus(cancelled, CheckAPIStatusInput{
			ServerURL: server.URL,
			Retries:   5,
			Interval:  time.Second,
			Client:    server.Client(),
		})
		Expect(err).To(HaveOccurred())
		Expect(calls.Load()).To(BeZero())
	})

	It("should not verify self-signed certificates", func() {
		failN = 0
		err := PollAPIStatus(ctx, CheckAPIStatusInput{
			ServerURL: server.URL,
			Client:    NewHTTPClient(5 * time.Second),
		})
		Expect(err).NotTo(HaveOccurred())
	})
})
