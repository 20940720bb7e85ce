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

package short

import (
	. "github.com/onsi/ginkgo/v2"

	"github.com/rancher/turtles-e2e/test/e2e"
	"github.com/rancher/turtles-e2e/test/e2e/specs"
	turtlesframework "github.com/rancher/turtles-e2e/test/framework"
	"github.com/rancher/turtles-e2e/test/testenv"
)

// dockerKubeadmInput is the only import that relies on the namespace auto-import label.
func dockerKubeadmInput() specs.ImportClassClusterSpecInput {
	return specs.ImportClassClusterSpecInput{
		E2EConfig:             e2eConfig,
		BootstrapClusterProxy: setupClusterResult.BootstrapClusterProxy,
		RancherServerURL:      rancherServerURL,
		Vars:                  vars,
		ArtifactFolder:        flagVals.ArtifactFolder,
		ClusterName:           e2e.GetClusterName("docker-kubeadm"),
		ClassNamePrefix:       "docker-kubeadm",
		ClassRepoName:         "docker-kb-clusterclass",
		ClassesPath:           "examples/clusterclasses/docker/kubeadm",
		ClassBranch:           turtlesframework.DefaultBranchName,
		ClusterTemplate:       e2e.CAPDKubeadmClassCluster,
		KubernetesVersion:     vars.K8sVersion,
		NamespaceAutoImport:   true,
		CleanupInfrastructure: testenv.CAPDResourcesCleanup,
	}
}

var _ = Describe("[Docker] [Kubeadm] Local clusters", Label(e2e.ShortTestLabel), Ordered, func() {
	Context("Import a class cluster with namespace auto-import", Ordered, func() {
		specs.ImportClassClusterSpec(ctx, dockerKubeadmInput)
	})

	Context("Create a cluster from a ClusterClass", Ordered, func() {
		specs.ClusterClassTopologySpec(ctx, func() specs.ClusterClassTopologySpecInput {
			return specs.ClusterClassTopologySpecInput{
				E2EConfig:             e2eConfig,
				BootstrapClusterProxy: setupClusterResult.BootstrapClusterProxy,
				RancherServerURL:      rancherServerURL,
				Vars:                  vars,
				ClusterName:           e2e.GetRandomClusterName("docker-ui"),
				ClassName:             "docker-kubeadm-example",
				ClassRepoName:         "docker-ui-clusterclass",
				ClassesPath:           "examples/clusterclasses/docker/kubeadm",
				KubernetesVersion:     vars.K8sVersion,
				Workers:               map[string]string{"md-0": "default-worker"},
				PodCIDRs:              []string{"192.168.0.0/16"},
				ServiceCIDRs:          []string{"10.128.0.0/12"},
				Manifests:             [][]byte{e2e.CAPDKindnetConfigMap},
				CleanupInfrastructure: testenv.CAPDResourcesCleanup,
			}
		})
	})
})
