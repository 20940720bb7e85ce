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

package full

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rancher/turtles-e2e/test/e2e"
	"github.com/rancher/turtles-e2e/test/e2e/specs"
	turtlesframework "github.com/rancher/turtles-e2e/test/framework"
)

var _ = Describe("Cloud import inputs", Label(e2e.FullTestLabel), func() {
	DescribeTable("should leave the cluster namespace unlabelled",
		func(input func() specs.ImportClassClusterSpecInput) {
			Expect(input().NamespaceAutoImport).To(BeFalse())
		},
		Entry("AWS RKE2", awsRKE2Input),
		Entry("Azure Kubeadm", azureKubeadmInput),
		Entry("Azure RKE2", azureRKE2Input),
		Entry("Azure AKS", azureAKSInput),
	)

	DescribeTable("should pin the class branch",
		func(input func() specs.ImportClassClusterSpecInput, branch string) {
			Expect(input().ClassBranch).To(Equal(branch))
		},
		Entry("AWS RKE2 follows the release branch", awsRKE2Input, ""),
		Entry("Azure Kubeadm follows the release branch", azureKubeadmInput, ""),
		Entry("Azure RKE2 uses main", azureRKE2Input, turtlesframework.DefaultBranchName),
		Entry("Azure AKS uses main", azureAKSInput, turtlesframework.DefaultBranchName),
	)

	It("should wait for MachinePools on AKS", func() {
		input := azureAKSInput()
		Expect(input.MachinePools).To(BeTrue())
		Expect(input.HelmOps).To(BeEmpty())
	})
})
