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

	turtlesframework "github.com/rancher/turtles-e2e/test/framework"
)

type MenuSpecInput struct {
	RancherServerURL string

	SkipDashboard bool `env:"SKIP_DASHBOARD_CHECKS"`
}

// MenuSpec checks the CAPI pages of the UI extension are reachable from the side menu.
func MenuSpec(ctx context.Context, inputGetter func() MenuSpecInput) {
	var (
		specName = "menu"
		input    MenuSpecInput
	)

	BeforeAll(func() {
		Expect(ctx).NotTo(BeNil(), "ctx is required for %s spec", specName)
		input = inputGetter()
		Expect(turtlesframework.Parse(&input)).To(Succeed(), "Failed to parse environment variables")

		Expect(input.RancherServerURL).ToNot(BeEmpty(), "Invalid argument. input.RancherServerURL can't be empty when calling %s spec", specName)

		if input.SkipDashboard {
			Skip("dashboard checks are disabled")
		}
	})

	It("Should show the CAPI menu", func() {
		session := openDashboard(ctx, input.RancherServerURL)

		Expect(session.BurgerMenu(true)).To(Succeed())
		Expect(session.CheckNavIcon("cluster-management")).To(Succeed(), "Cluster Management icon is missing from the side menu")
		Expect(session.CheckCAPIMenu()).To(Succeed())
	})
}
