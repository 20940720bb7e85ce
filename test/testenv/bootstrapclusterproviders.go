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
	"context"

	. "github.com/onsi/ginkgo/v2"

	"sigs.k8s.io/cluster-api/test/framework/bootstrap"
	"sigs.k8s.io/cluster-api/test/framework/clusterctl"
	"sigs.k8s.io/kind/pkg/apis/config/v1alpha4"
)

// CustomClusterProvider creates the management cluster in place of the default kind cluster.
type CustomClusterProvider func(ctx context.Context, config *clusterctl.E2EConfig, clusterName, kubernetesVersion string) bootstrap.ClusterProvider

// KindWithExtraPortMappingsBootstrapCluster creates a kind cluster with ports 80 and 443 forwarded from
// the host, so the Rancher ingress is reachable on the node address.
func KindWithExtraPortMappingsBootstrapCluster(ctx context.Context, config *clusterctl.E2EConfig, clusterName, kubernetesVersion string) bootstrap.ClusterProvider {
	By("Creating a new kind bootstrap cluster with extra port mappings")

	return bootstrap.CreateKindBootstrapClusterAndLoadImages(ctx, bootstrap.CreateKindBootstrapClusterAndLoadImagesInput{
		Name:               clusterName,
		KubernetesVersion:  kubernetesVersion,
		RequiresDockerSock: true,
		Images:             config.Images,
		ExtraPortMappings:  KindPortMappings(),
	})
}

// KindPortMappings are the host ports forwarded to the kind node.
func KindPortMappings() []v1alpha4.PortMapping {
	return []v1alpha4.PortMapping{
		{ContainerPort: 80, HostPort: 80, Protocol: v1alpha4.PortMappingProtocolTCP},
		{ContainerPort: 443, HostPort: 443, Protocol: v1alpha4.PortMappingProtocolTCP},
	}
}
