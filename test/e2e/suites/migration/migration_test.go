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

package migration

import (
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rancher/turtles-e2e/test/e2e"
	"github.com/rancher/turtles-e2e/test/e2e/specs"
	"github.com/rancher/turtles-e2e/test/testenv"
)

var _ = Describe("Migrate standalone Turtles to the Rancher system chart", Label(e2e.MigrationTestLabel), Ordered, func() {
	var (
		upgradeVersion string

		// clusterName is shared by both halves of the migration.
		clusterName string
	)

	BeforeAll(func() {
		upgradeVersion = e2eConfig.GetVariable(e2e.RancherUpgradeVersionVar)
		Expect(upgradeVersion).ToNot(BeEmpty(), "Invalid test suite argument. RANCHER_UPGRADE_VERSION can't be empty.")

		clusterName = e2e.GetClusterName("docker-rke2-migration")

		// The standalone chart must be the last release that can be adopted by the system chart.
		Expect(os.Setenv(e2e.MigrationVar, "true")).To(Succeed())
	})

	Context("Standalone Turtles chart", Ordered, func() {
		specs.TurtlesChartSpec(ctx, func() specs.TurtlesChartSpecInput {
			return specs.TurtlesChartSpecInput{
				BootstrapClusterProxy: setupClusterResult.BootstrapClusterProxy,
				RancherServerURL:      rancherServerURL,
			}
		})
	})

	Context("Before the Rancher upgrade", Ordered, func() {
		specs.PreMigrationSpec(ctx, func() specs.MigrationSpecInput {
			return specs.MigrationSpecInput{
				E2EConfig:             e2eConfig,
				BootstrapClusterProxy: setupClusterResult.BootstrapClusterProxy,
				RancherServerURL:      rancherServerURL,
				Vars:                  e2e.SuiteVars(e2eConfig),
				ClusterName:           clusterName,
			}
		})
	})

	It("Should upgrade Rancher", func() {
		testenv.DeployRancher(ctx, testenv.DeployRancherInput{
			BootstrapClusterProxy: setupClusterResult.BootstrapClusterProxy,
			RancherVersion:        upgradeVersion,
			RancherHost:           setupClusterResult.RancherHostname,
			RancherWaitInterval:   e2eConfig.GetIntervals(setupClusterResult.BootstrapClusterProxy.GetName(), "wait-rancher"),
		})
	})

	Context("After the Rancher upgrade", Ordered, func() {
		specs.PostMigrationSpec(ctx, func() specs.MigrationSpecInput {
			upgradeVars, err := e2e.NewVars(upgradeVersion)
			Expect(err).ToNot(HaveOccurred())

			return specs.MigrationSpecInput{
				E2EConfig:             e2eConfig,
				BootstrapClusterProxy: setupClusterResult.BootstrapClusterProxy,
				RancherServerURL:      rancherServerURL,
				Vars:                  upgradeVars,
				RancherVersion:        upgradeVersion,
				ClusterName:           clusterName,
			}
		})
	})
})
