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

type WorkaroundSpecInput struct {
	BootstrapClusterProxy framework.ClusterProxy
	RancherServerURL      string

	// ChartMuseumRepo is set for development builds only.
	ChartMuseumRepo string `env:"CHARTMUSEUM_REPO"`
}

// WorkaroundSpec hands CAPI over from the controllers embedded in Rancher to a development Turtles
// chart. Released builds need nothing.
func WorkaroundSpec(ctx context.Context, inputGetter func() WorkaroundSpecInput) {
	var (
		specName = "embedded-capi-workaround"
		input    WorkaroundSpecInput
	)

	BeforeAll(func() {
		Expect(ctx).NotTo(BeNil(), "ctx is required for %s spec", specName)
		input = inputGetter()
		Expect(turtlesframework.Parse(&input)).To(Succeed(), "Failed to parse environment variables")

		Expect(input.BootstrapClusterProxy).ToNot(BeNil(), "Invalid argument. input.BootstrapClusterProxy can't be nil when calling %s spec", specName)
		Expect(input.RancherServerURL).ToNot(BeEmpty(), "Invalid argument. input.RancherServerURL can't be empty when calling %s spec", specName)

		if input.ChartMuseumRepo == "" {
			Skip("the workaround only applies to development builds")
		}
	})

	It("Should disable the embedded CAPI controllers", func() {
		testenv.ApplyEmbeddedCAPIWorkaround(ctx, testenv.EmbeddedCAPIWorkaroundInput{
			BootstrapClusterProxy: input.BootstrapClusterProxy,
		})

		Expect(turtlesframework.RancherFeatureEnabled(ctx, input.BootstrapClusterProxy, turtlesframework.EmbeddedCAPIFeature)).To(BeFalse())
	})

	It("Should keep the Rancher API available", func() {
		turtlesframework.CheckAPIStatus(ctx, turtlesframework.CheckAPIStatusInput{
			ServerURL: input.RancherServerURL,
		})
	})
}
