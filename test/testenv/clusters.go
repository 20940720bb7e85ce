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
	"maps"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	clusterv1 "sigs.k8s.io/cluster-api/api/v1beta1"
	"sigs.k8s.io/cluster-api/test/framework"

	turtlesframework "github.com/rancher/turtles-e2e/test/framework"
)

// ImportClassClusterInput represents the input parameters for importing a class based cluster.
type ImportClassClusterInput struct {
	// BootstrapClusterProxy is the cluster proxy for bootstrapping.
	BootstrapClusterProxy framework.ClusterProxy

	// Namespace is the namespace in which the cluster will be created.
	Namespace string `envDefault:"capi-clusters"`

	// ClassNamespace is the namespace holding the ClusterClass.
	ClassNamespace string `envDefault:"capi-classes"`

	// ClusterName is the name of the cluster to be deployed.
	ClusterName string

	// ClusterTemplate is the class-cluster manifest. ${VAR} references are substituted.
	ClusterTemplate []byte

	// KubernetesVersion is exported to the template as KUBERNETES_VERSION.
	KubernetesVersion string

	// AdditionalTemplateVariables is a map of additional variables to be used in the cluster template.
	AdditionalTemplateVariables map[string]string

	// AdditionalFleetGitRepos are created before the template is applied, for resources the
	// cluster depends on such as CNI or cloud provider HelmOps.
	AdditionalFleetGitRepos []turtlesframework.FleetCreateGitRepoInput

	// WaitForCreatedCluster is the interval to wait for the cluster to be provisioned.
	WaitForCreatedCluster []interface{} `envDefault:"25m,10s"`
}

// ClassClusterVariables returns the template variables for a class cluster.
func ClassClusterVariables(input ImportClassClusterInput) map[string]string {
	vars := map[string]string{
		"CLUSTER_NAME":                input.ClusterName,
		"NAMESPACE":                   input.Namespace,
		"TOPOLOGY_NAMESPACE":          input.ClassNamespace,
		"KUBERNETES_VERSION":          input.KubernetesVersion,
		"CONTROL_PLANE_MACHINE_COUNT": "1",
		"WORKER_MACHINE_COUNT":        "2",
	}
	maps.Copy(vars, input.AdditionalTemplateVariables)

	return vars
}

// ImportClassCluster imports the class-cluster manifest and waits for the CAPI cluster to be provisioned.
func ImportClassCluster(ctx context.Context, input ImportClassClusterInput) *clusterv1.Cluster {
	Expect(turtlesframework.Parse(&input)).To(Succeed(), "Failed to parse environment variables")
	Expect(input.BootstrapClusterProxy).ToNot(BeNil(), "BootstrapClusterProxy is required for ImportClassCluster")
	Expect(input.ClusterName).ToNot(BeEmpty(), "ClusterName is required for ImportClassCluster")
	Expect(input.ClusterTemplate).ToNot(BeEmpty(), "ClusterTemplate is required for ImportClassCluster")

	for _, gitRepo := range input.AdditionalFleetGitRepos {
		if gitRepo.ClusterProxy == nil {
			gitRepo.ClusterProxy = input.BootstrapClusterProxy
		}
		if gitRepo.TargetNamespace == "" {
			gitRepo.TargetNamespace = input.Namespace
		}
		turtlesframework.FleetCreateGitRepo(ctx, gitRepo)
	}

	turtlesframework.Byf("Importing class cluster %s/%s", input.Namespace, input.ClusterName)
	Eventually(func() error {
		return turtlesframework.ApplyFromTemplate(ctx, turtlesframework.ApplyFromTemplateInput{
			Template:                      input.ClusterTemplate,
			AddtionalEnvironmentVariables: ClassClusterVariables(input),
			Namespace:                     input.Namespace,
			Proxy:                         input.BootstrapClusterProxy,
		})
	}).WithTimeout(2 * time.Minute).WithPolling(2 * time.Second).To(Succeed())

	By("Waiting for the cluster to be provisioned")
	return turtlesframework.WaitForClusterProvisioned(ctx, turtlesframework.CAPIClusterInput{
		Lister:       input.BootstrapClusterProxy.GetClient(),
		Name:         input.ClusterName,
		Namespace:    input.Namespace,
		WaitInterval: input.WaitForCreatedCluster,
	})
}
