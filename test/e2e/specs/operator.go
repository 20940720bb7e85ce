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

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"sigs.k8s.io/cluster-api/test/framework"

	turtlesframework "github.com/rancher/turtles-e2e/test/framework"
	"github.com/rancher/turtles-e2e/test/testenv"
)

type TurtlesOperatorSpecInput struct {
	BootstrapClusterProxy framework.ClusterProxy
	RancherServerURL      string

	SkipDashboard bool `env:"SKIP_DASHBOARD_CHECKS"`
}

// TurtlesOperatorSpec installs Turtles from the operator repository, the flow used before
// Turtles had its own chart repositories.
func TurtlesOperatorSpec(ctx context.Context, inputGetter func() TurtlesOperatorSpecInput) {
	var (
		specName = "turtles-operator"
		input    TurtlesOperatorSpecInput
	)

	BeforeAll(func() {
		Expect(ctx).NotTo(BeNil(), "ctx is required for %s spec", specName)
		input = inputGetter()
		Expect(turtlesframework.Parse(&input)).To(Succeed(), "Failed to parse environment variables")

		Expect(input.BootstrapClusterProxy).ToNot(BeNil(), "Invalid argument. input.BootstrapClusterProxy can't be nil when calling %s spec", specName)
	})

	It("Should include prerelease chart versions", func() {
		if input.SkipDashboard {
			Skip("dashboard checks are disabled")
		}

		session := openDashboard(ctx, input.RancherServerURL)
		Expect(session.IncludePrereleaseVersions()).To(Succeed())
	})

	It("Should install the Turtles operator", FlakeAttempts(2), func() {
		testenv.DeployRancherTurtlesOperator(ctx, testenv.DeployRancherTurtlesOperatorInput{
			BootstrapClusterProxy: input.BootstrapClusterProxy,
		})
	})
}
