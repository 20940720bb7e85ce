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
)

var _ = Describe("Turtles chart repositories", func() {
	chartMuseum := ChartRepository{Name: ChartMuseumRepoName, URL: "http://chartmuseum:8080"}
	turtles := ChartRepository{Name: TurtlesChartRepoName, URL: TurtlesChartRepoURL}
	providers := ChartRepository{Name: ProvidersChartRepoName, URL: ProvidersChartOCI}

	DescribeTable("should select repositories for the Rancher release",
		func(input TurtlesChartRepositoriesInput, expected []ChartRepository) {
			repos, err := TurtlesChartRepositories(input)
			Expect(err).ToNot(HaveOccurred())
			Expect(repos).To(Equal(expected))
		},
		Entry("2.13 release", TurtlesChartRepositoriesInput{RancherVersion: "latest/2.13.0"}, []ChartRepository{providers}),
		Entry("2.13 development", TurtlesChartRepositoriesInput{RancherVersion: "head/2.13", DevChart: true, ChartMuseumRepo: "chartmuseum"}, []ChartRepository{chartMuseum}),
		Entry("2.12 release", TurtlesChartRepositoriesInput{RancherVersion: "latest/2.12.3"}, []ChartRepository{turtles}),
		Entry("2.12 release migrating", TurtlesChartRepositoriesInput{RancherVersion: "latest/2.12.3", Migration: true}, []ChartRepository{turtles, providers}),
		Entry("2.12 development", TurtlesChartRepositoriesInput{RancherVersion: "latest/2.12.3", DevChart: true, ChartMuseumRepo: "chartmuseum"}, []ChartRepository{chartMuseum}),
		Entry("2.12 development migrating", TurtlesChartRepositoriesInput{RancherVersion: "latest/2.12.3", DevChart: true, Migration: true, ChartMuseumRepo: "chartmuseum"}, []ChartRepository{chartMuseum, turtles}),
	)

	It("should require chartmuseum for the development chart", func() {
		_, err := TurtlesChartRepositories(TurtlesChartRepositoriesInput{RancherVersion: "latest/2.13.0", DevChart: true})
		Expect(err).To(MatchError(ContainSubstring("CHARTMUSEUM_REPO")))
	})

	It("should reject a Rancher version without MAJOR.MINOR", func() {
		_, err := TurtlesChartRepositories(TurtlesChartRepositoriesInput{RancherVersion: "latest/devel"})
		Expect(err).To(HaveOccurred())
	})

	It("should detect OCI repositories", func() {
		Expect(providers.IsOCI()).To(BeTrue())
		Expect(turtles.IsOCI()).To(BeFalse())
	})
})

var _ = Describe("Turtles chart", func() {
	It("should use the released chart and version", func() {
		chart, version := TurtlesChart(false, false, "0.24.1")
		Expect(chart).To(Equal("turtles-chart/rancher-turtles"))
		Expect(version).To(Equal("0.24.1"))
	})

	It("should use the unversioned development chart", func() {
		chart, version := TurtlesChart(true, false, "0.24.1")
		Expect(chart).To(Equal("chartmuseum-repo/rancher-turtles"))
		Expect(version).To(BeEmpty())
	})

	It("should install the last standalone release before migrating", func() {
		chart, version := TurtlesChart(true, true, "")
		Expect(chart).To(Equal("turtles-chart/rancher-turtles"))
		Expect(version).To(Equal(MigrationTurtlesVersion))
	})

	It("should take the operator chart from chartmuseum on development builds", func() {
		repo, version := OperatorChartRepository("chartmuseum", "0.24.1")
		Expect(repo.URL).To(Equal("http://chartmuseum:8080"))
		Expect(version).To(BeEmpty())

		repo, version = OperatorChartRepository("", "0.24.1")
		Expect(repo.URL).To(Equal(TurtlesChartRepoURL))
		Expect(version).To(Equal("0.24.1"))
	})
})
