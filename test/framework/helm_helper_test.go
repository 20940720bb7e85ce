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
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Helm command lines", func() {
	It("should render --set flags in key order", func() {
		Expect(HelmSetFlags(map[string]string{
			"turtlesUI.enabled": "true",
			"global.cattle.psp": "false",
		})).To(Equal([]string{
			"--set", "global.cattle.psp=false",
			"--set", "turtlesUI.enabled=true",
		}))
	})

	It("should add version and devel flags only when requested", func() {
		Expect(HelmInstallFlags(HelmInstallInput{Namespace: "cattle-system"})).To(Equal([]string{
			"--namespace", "cattle-system", "--create-namespace",
		}))

		Expect(HelmInstallFlags(HelmInstallInput{
			Namespace:  "cattle-system",
			Version:    "2.12.0",
			Devel:      true,
			ExtraFlags: []string{"--timeout", "10m"},
		})).To(Equal([]string{
			"--namespace", "cattle-system", "--create-namespace",
			"--version", "2.12.0", "--devel", "--timeout", "10m",
		}))
	})

	DescribeTable("ChartMuseumURL",
		func(repo, expected string) {
			Expect(ChartMuseumURL(repo)).To(Equal(expected))
		},
		Entry("bare host", "10.0.0.4", "http://10.0.0.4:8080"),
		Entry("http URL", "http://charts.example.com", "http://charts.example.com:8080"),
		Entry("trailing slash", "https://charts.example.com/", "https://charts.example.com:8080"),
	)
})
