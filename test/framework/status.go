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
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	. "github.com/onsi/gomega"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

// CheckAPIStatusInput is the input to CheckAPIStatus.
type CheckAPIStatusInput struct {
	// ServerURL is the Rancher URL, for example https://rancher.example.com.
	ServerURL string
	// Retries is the number of additional attempts after the first failed one.
	Retries int `envDefault:"25"`
	// Interval is the pause between attempts.
	Interval time.Duration `envDefault:"5s"`
	// RequestTimeout bounds a single request.
	RequestTimeout time.Duration `envDefault:"30s"`
	// Client overrides the HTTP client.
	Client *http.Client
}

// CheckAPIStatus polls the dashboard about page until it answers 200. Rancher answers with
// errors for a while after a restart or a feature flag change.
func CheckAPIStatus(ctx context.Context, input CheckAPIStatusInput) {
	Expect(Parse(&input)).To(Succeed(), "Failed to parse environment variables")
	Expect(input.ServerURL).ToNot(BeEmpty(), "Invalid argument. input.ServerURL can't be empty when calling CheckAPIStatus")

	Expect(PollAPIStatus(ctx, input)).To(Succeed(), "Rancher API did not become available at %s", input.ServerURL)
}

// PollAPIStatus is CheckAPIStatus returning an error instead of failing the spec.
func PollAPIStatus(ctx context.Context, input CheckAPIStatusInput) error {
	log := log.FromContext(ctx)

	httpClient := input.Client
	if httpClient == nil {
		httpClient = NewHTTPClient(input.RequestTimeout)
	}

	url := AboutURL(input.ServerURL)

	operation := func() (struct{}, error) {
		status, err := getStatus(ctx, httpClient, url)
		if err != nil {
			return struct{}{}, err
		}
		if status != http.StatusOK {
			return struct{}{}, fmt.Errorf("%s returned %d", url, status)
		}

		return struct{}{}, nil
	}

	notify := func(err error, next time.Duration) {
		log.Info("Rancher API not ready", "url", url, "error", err.Error(), "retryIn", next)
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(input.Interval)),
		backoff.WithMaxTries(uint(input.Retries)+1), //nolint:gosec
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(notify),
	)

	return err
}

// AboutURL returns the dashboard about page of a Rancher server.
func AboutURL(serverURL string) string {
	return strings.TrimSuffix(serverURL, "/") + "/dashboard/about"
}

// NewHTTPClient returns a client for talking to Rancher. Test installs use self-signed
// certificates, so verification is off. A proxy set in the environment is honoured.
func NewHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec
	}

	if os.Getenv("HTTP_PROXY") != "" || os.Getenv("HTTPS_PROXY") != "" {
		transport.Proxy = http.ProxyFromEnvironment
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

func getStatus(ctx context.Context, c *http.Client, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}

	resp, err := c.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	return resp.StatusCode, nil
}
