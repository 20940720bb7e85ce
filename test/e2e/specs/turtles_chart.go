//go:build e2e
// +build e2e

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

package specs

import (
	"context"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"sigs.k8s.io/cluster-api/test/framework"

	turtlesframework "github.com/rancher/turtles-e2e/test/framework"
	"github.com/rancher/turtles-e2e/test/testenv"
)

type TurtlesChartSpecInput struct {
	BootstrapClusterProxy framework.ClusterProxy
	RancherServerURL      string

	RancherVersion string `env:"RANCHER_VERSION"`

	// SkipDashboard leaves out the steps that need a browser.
	SkipDashboard bool `env:"SKIP_DASHBOARD_CHECKS"`
}

// TurtlesChartSpec makes the Turtles charts available in Rancher and installs the standalone chart
// on releases that do not ship Turtles as a system chart.
func TurtlesChartSpec(ctx context.Context, inputGetter func() TurtlesChartSpecInput) {
	var (
		specName = "turtles-chart"
		input    TurtlesChartSpecInput
	)

	BeforeAll(func() {
		Expect(ctx).NotTo(BeNil(), "ctx is required for %s spec", specName)
		input = inputGetter()
		Expect(turtlesframework.Parse(&input)).To(Succeed(), "Failed to parse environment variables")

		Expect(input.BootstrapClusterProxy).ToNot(BeNil(), "Invalid argument. input.BootstrapClusterProxy can't be nil when calling %s spec", specName)
		Expect(input.RancherVersion).ToNot(BeEmpty(), "Invalid argument. input.RancherVersion can't be empty when calling %s spec", specName)
	})

	It("Should include prerelease chart versions", func() {
		if input.SkipDashboard {
			Skip("dashboard checks are disabled")
		}

		session := openDashboard(ctx, input.RancherServerURL)
		Expect(session.IncludePrereleaseVersions()).To(Succeed())
	})

	It("Should add the Turtles chart repositories", func() {
		repos := testenv.AddTurtlesChartRepositories(ctx, testenv.AddTurtlesChartRepositoriesInput{
			BootstrapClusterProxy: input.BootstrapClusterProxy,
		})
		Expect(repos).NotTo(BeEmpty())
	})

	It("Should install the Turtles chart", func() {
		if !rancherVersionSatisfies(input.RancherVersion, "<=2.12") {
			Skip(fmt.Sprintf("Rancher %s ships Turtles as a system chart", input.RancherVersion))
		}

		testenv.DeployRancherTurtles(ctx, testenv.DeployRancherTurtlesInput{
			BootstrapClusterProxy: input.BootstrapClusterProxy,
		})
	})
}
