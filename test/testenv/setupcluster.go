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
	"cmp"
	"context"
	"fmt"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"sigs.k8s.io/cluster-api/test/framework"
	"sigs.k8s.io/cluster-api/test/framework/bootstrap"
	"sigs.k8s.io/cluster-api/test/framework/clusterctl"
	"sigs.k8s.io/cluster-api/util"

	turtlesframework "github.com/rancher/turtles-e2e/test/framework"
)

// SetupTestClusterInput represents the input parameters for preparing the Rancher management cluster.
type SetupTestClusterInput struct {
	// UseExistingCluster points the suite at the cluster of the current kubeconfig instead of creating one.
	UseExistingCluster bool `env:"USE_EXISTING_CLUSTER"`

	// E2EConfig is the loaded e2e configuration.
	E2EConfig *clusterctl.E2EConfig

	// Scheme is used by the cluster proxy client.
	Scheme *runtime.Scheme

	// ArtifactFolder is the root folder for logs.
	ArtifactFolder string `env:"ARTIFACTS_FOLDER"`

	// KubernetesVersion is the version of the kind node image.
	KubernetesVersion string `env:"KUBERNETES_MANAGEMENT_VERSION"`

	// KubeconfigPath is the kubeconfig of an existing cluster. Empty means the default loading rules.
	KubeconfigPath string `env:"KUBECONFIG"`

	// RancherHostname is the hostname Rancher will be served on.
	RancherHostname string `env:"RANCHER_HOSTNAME"`

	// PublicDNS is the public DNS name of the runner, used when RancherHostname is not set.
	PublicDNS string `env:"PUBLIC_DNS"`

	// CustomClusterProvider replaces the default kind cluster with extra port mappings.
	CustomClusterProvider CustomClusterProvider
}

// SetupTestClusterResult holds the management cluster handles.
type SetupTestClusterResult struct {
	// BootstrapClusterProvider manages provisioning of the the bootstrap cluster to be used for the e2e tests.
	// Please note that provisioning will be skipped if e2e.use-existing-cluster is provided.
	BootstrapClusterProvider bootstrap.ClusterProvider

	// BootstrapClusterProxy allows to interact with the bootstrap cluster to be used for the e2e tests.
	BootstrapClusterProxy framework.ClusterProxy

	// BootstrapClusterLogFolder is the log folder for the cluster
	BootstrapClusterLogFolder string

	// RancherHostname is the hostname to use for Rancher.
	RancherHostname string
}

// SetupTestCluster creates (or connects to) the management cluster and resolves the Rancher hostname.
// A hostname set in the environment wins. Otherwise a kind cluster gets the magic DNS name of its node.
func SetupTestCluster(ctx context.Context, input SetupTestClusterInput) *SetupTestClusterResult {
	Expect(turtlesframework.Parse(&input)).To(Succeed(), "Failed to parse environment variables")

	Expect(ctx).NotTo(BeNil(), "ctx is required for SetupTestCluster")
	Expect(input.E2EConfig).ToNot(BeNil(), "E2EConfig is required for SetupTestCluster")
	Expect(input.Scheme).ToNot(BeNil(), "Scheme is required for SetupTestCluster")
	Expect(input.ArtifactFolder).ToNot(BeEmpty(), "ArtifactFolder is required for SetupTestCluster")

	clusterName := createClusterName(input.E2EConfig.ManagementClusterName)
	result := &SetupTestClusterResult{
		RancherHostname: cmp.Or(input.RancherHostname, input.PublicDNS),
	}

	By("Setting up the management cluster")
	result.BootstrapClusterProvider, result.BootstrapClusterProxy = setupCluster(ctx, input, clusterName)

	result.BootstrapClusterLogFolder = filepath.Join(input.ArtifactFolder, "clusters", result.BootstrapClusterProxy.GetName())
	Expect(os.MkdirAll(result.BootstrapClusterLogFolder, 0o750)).To(Succeed(), "Invalid argument. Log folder can't be created %s", result.BootstrapClusterLogFolder)

	if result.RancherHostname == "" {
		Expect(input.UseExistingCluster).To(BeFalse(), "RANCHER_HOSTNAME or PUBLIC_DNS is required when using an existing cluster")
		result.RancherHostname = getInternalClusterHostname(ctx, result.BootstrapClusterProxy)
	}

	turtlesframework.Byf("Rancher will be served on %s", result.RancherHostname)

	return result
}

func setupCluster(ctx context.Context, input SetupTestClusterInput, clusterName string) (bootstrap.ClusterProvider, framework.ClusterProxy) {
	var clusterProvider bootstrap.ClusterProvider
	kubeconfigPath := input.KubeconfigPath

	if !input.UseExistingCluster {
		Expect(input.KubernetesVersion).ToNot(BeEmpty(), "KubernetesVersion is required to create a kind cluster")

		newProvider := input.CustomClusterProvider
		if newProvider == nil {
			newProvider = KindWithExtraPortMappingsBootstrapCluster
		}
		clusterProvider = newProvider(ctx, input.E2EConfig, clusterName, input.KubernetesVersion)
		Expect(clusterProvider).ToNot(BeNil(), "Failed to create a bootstrap cluster")

		kubeconfigPath = clusterProvider.GetKubeconfigPath()
		Expect(kubeconfigPath).To(BeAnExistingFile(), "Failed to get the kubeconfig file for the bootstrap cluster")
	}

	proxy := framework.NewClusterProxy(clusterName, kubeconfigPath, input.Scheme, framework.WithMachineLogCollector(framework.DockerLogCollector{}))
	Expect(proxy).ToNot(BeNil(), "Cluster proxy should not be nil")

	return clusterProvider, proxy
}

// getInternalClusterHostname returns the magic DNS name of the internal IP of the single node of the
// management cluster. Ports 80 and 443 of that node are mapped to the host by kind.
func getInternalClusterHostname(ctx context.Context, clusterProxy framework.ClusterProxy) string {
	cpNodeList := corev1.NodeList{}
	Expect(clusterProxy.GetClient().List(ctx, &cpNodeList)).To(Succeed())
	Expect(cpNodeList.Items).To(HaveLen(1))

	hostname, err := NodeMagicDNSHostname(cpNodeList.Items[0])
	Expect(err).ToNot(HaveOccurred())

	return hostname
}

// NodeMagicDNSHostname builds <internal-ip>.sslip.io for a node.
func NodeMagicDNSHostname(node corev1.Node) (string, error) {
	for _, address := range node.Status.Addresses {
		if address.Type == corev1.NodeInternalIP {
			return address.Address + "." + turtlesframework.MagicDNS, nil
		}
	}

	return "", fmt.Errorf("node %s has no internal IP address", node.Name)
}

func createClusterName(baseName string) string {
	return fmt.Sprintf("%s-%s", baseName, util.RandomString(6))
}
