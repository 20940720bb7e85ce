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

package install

import (
	. "github.com/onsi/ginkgo/v2"

	"github.com/rancher/turtles-e2e/test/e2e"
	"github.com/rancher/turtles-e2e/test/e2e/specs"
)

var _ = Describe("Install Rancher Turtles and the CAPI providers", Label(e2e.InstallTestLabel), Ordered, func() {
	Context("Turtles chart", Ordered, func() {
		specs.TurtlesChartSpec(ctx, func() specs.TurtlesChartSpecInput {
			return specs.TurtlesChartSpecInput{
				BootstrapClusterProxy: setupClusterResult.BootstrapClusterProxy,
				RancherServerURL:      rancherServerURL,
			}
		})
	})

	Context("Embedded CAPI workaround", Ordered, func() {
		specs.WorkaroundSpec(ctx, func() specs.WorkaroundSpecInput {
			return specs.WorkaroundSpecInput{
				BootstrapClusterProxy: setupClusterResult.BootstrapClusterProxy,
				RancherServerURL:      rancherServerURL,
			}
		})
	})

	Context("Cluster management menu", Ordered, func() {
		specs.MenuSpec(ctx, func() specs.MenuSpecInput {
			return specs.MenuSpecInput{
				RancherServerURL: rancherServerURL,
			}
		})
	})

	Context("Local providers", Ordered, func() {
		specs.ProvidersSetupSpec(ctx, func() specs.ProvidersSetupSpecInput {
			return specs.ProvidersSetupSpecInput{
				E2EConfig:             e2eConfig,
				BootstrapClusterProxy: setupClusterResult.BootstrapClusterProxy,
				Vars:                  e2e.SuiteVars(e2eConfig),
				ProviderVersions:      e2e.SuiteProviderVersions(),
				LocalProviders:        true,
			}
		})
	})
})

var _ = Describe("Install Rancher Turtles with the operator", Label(e2e.OperatorTestLabel), Ordered, func() {
	specs.TurtlesOperatorSpec(ctx, func() specs.TurtlesOperatorSpecInput {
		return specs.TurtlesOperatorSpecInput{
			BootstrapClusterProxy: setupClusterResult.BootstrapClusterProxy,
			RancherServerURL:      rancherServerURL,
		}
	})
})
