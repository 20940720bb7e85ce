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

package testenv

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	turtlesframework "github.com/rancher/turtles-e2e/test/framework"
)

var _ = Describe("Rancher chart source", func() {
	resolve := func(version, chartURL string) (RancherChartSource, error) {
		return ResolveRancherChartSource(turtlesframework.ParseRancherVersion(version), chartURL)
	}

	It("should pin a released version", func() {
		source, err := resolve("latest/2.12.3", "")
		Expect(err).ToNot(HaveOccurred())
		Expect(source).To(Equal(RancherChartSource{
			RepoName: "rancher-latest",
			RepoURL:  "https://releases.rancher.com/server-charts/latest",
			Version:  "2.12.3",
		}))
		Expect(source.Chart()).To(Equal("rancher-latest/rancher"))
	})

	It("should allow prereleases for release candidates", func() {
		source, err := resolve("latest/2.13.0-rc1", "")
		Expect(err).ToNot(HaveOccurred())
		Expect(source.Version).To(Equal("2.13.0-rc1"))
		Expect(source.Devel).To(BeTrue())
	})

	It("should follow the head version for devel", func() {
		source, err := resolve("latest/devel/2.13", "")
		Expect(err).ToNot(HaveOccurred())
		Expect(source.Version).To(Equal("~2.13.0-0"))
		Expect(source.Devel).To(BeTrue())
	})

	It("should use the latest chart with head images", func() {
		source, err := resolve("head/2.13", "")
		Expect(err).ToNot(HaveOccurred())
		Expect(source.RepoName).To(Equal("rancher-latest"))
		Expect(source.Version).To(BeEmpty())
		Expect(source.ImageTag).To(Equal("v2.13-head"))
		Expect(source.Devel).To(BeTrue())
	})

	It("should always allow prereleases on alpha", func() {
		source, err := resolve("alpha/2.13.0", "")
		Expect(err).ToNot(HaveOccurred())
		Expect(source.Devel).To(BeTrue())
	})

	It("should prefer an explicit chart URL", func() {
		source, err := resolve("prime-optimus/2.13.0", "https://charts.example.com/prime")
		Expect(err).ToNot(HaveOccurred())
		Expect(source.RepoName).To(Equal("rancher-prime-optimus"))
		Expect(source.RepoURL).To(Equal("https://charts.example.com/prime"))
	})

	It("should reject channels without a repository", func() {
		_, err := resolve("prime-optimus/2.13.0", "")
		Expect(err).To(MatchError(ContainSubstring("RANCHER_CHART_URL")))

		_, err = resolve("nightly/2.13.0", "")
		Expect(err).To(MatchError(ContainSubstring("unknown rancher channel")))

		_, err = resolve("", "")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Rancher extraEnv", func() {
	input := DeployRancherInput{
		RancherHost:            "10.0.0.1.sslip.io",
		RancherBaseRegistry:    "registry.rancher.com",
		RancherChartsBranch:    "dev-v2.13",
		TurtlesDevChartVersion: "108.0.0+up99.99.99",
	}

	It("should only set the server URL by default", func() {
		Expect(RancherExtraEnv(input, "latest", false)).To(Equal([]RancherEnvVar{
			{Name: "CATTLE_SERVER_URL", Value: "https://10.0.0.1.sslip.io"},
		}))
	})

	It("should start the development entries at index 1", func() {
		env := RancherExtraEnv(input, "latest", true)
		Expect(env).To(HaveLen(4))
		Expect(env[1]).To(Equal(RancherEnvVar{Name: "CATTLE_CHART_DEFAULT_URL", Value: "http://10.0.0.1.sslip.io:4080/git/charts"}))
		Expect(env[2]).To(Equal(RancherEnvVar{Name: "CATTLE_CHART_DEFAULT_BRANCH", Value: "dev-v2.13"}))
		Expect(env[3]).To(Equal(RancherEnvVar{Name: "CATTLE_RANCHER_TURTLES_VERSION", Value: "108.0.0+up99.99.99"}))
	})

	It("should start the development entries at index 2 on prime-optimus", func() {
		env := RancherExtraEnv(input, "prime-optimus-alpha", true)
		Expect(env).To(HaveLen(5))
		Expect(env[1]).To(Equal(RancherEnvVar{Name: "CATTLE_BASE_REGISTRY", Value: "registry.rancher.com"}))
		Expect(env[2].Name).To(Equal("CATTLE_CHART_DEFAULT_URL"))
	})

	It("should render indexed helm flags", func() {
		flags := RancherExtraEnvFlags([]RancherEnvVar{
			{Name: "CATTLE_SERVER_URL", Value: "https://rancher"},
			{Name: "CATTLE_RANCHER_TURTLES_VERSION", Value: "108.0.0+up99.99.99"},
		})
		Expect(flags).To(Equal([]string{
			"--set", "extraEnv[0].name=CATTLE_SERVER_URL",
			"--set-string", "extraEnv[0].value=https://rancher",
			"--set", "extraEnv[1].name=CATTLE_RANCHER_TURTLES_VERSION",
			"--set-string", "extraEnv[1].value=108.0.0+up99.99.99",
		}))
	})
})
