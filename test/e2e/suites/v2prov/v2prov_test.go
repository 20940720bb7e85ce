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

package v2prov

import (
	. "github.com/onsi/ginkgo/v2"

	"sigs.k8s.io/cluster-api/util"

	"github.com/rancher/turtles-e2e/test/e2e"
	"github.com/rancher/turtles-e2e/test/e2e/specs"
)

var _ = Describe("[Azure] [RKE2] Rancher provisioned clusters", Label(e2e.V2ProvTestLabel), Ordered, func() {
	specs.AzureV2ProvSpec(ctx, func() specs.AzureV2ProvSpecInput {
		return specs.AzureV2ProvSpecInput{
			BootstrapClusterProxy: setupClusterResult.BootstrapClusterProxy,
			RancherServerURL:      rancherServerURL,
			Vars:                  vars,
			ClusterName:           "turtles-qa-azure-v2-" + util.RandomString(4),
		}
	})
})
