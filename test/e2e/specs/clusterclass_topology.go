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

	"k8s.io/apimachinery/pkg/types"
	clusterv1 "sigs.k8s.io/cluster-api/api/v1beta1"
	"sigs.k8s.io/cluster-api/test/framework"
	"sigs.k8s.io/cluster-api/test/framework/clusterctl"
	"sigs.k8s.io/controller-runtime/pkg/envtest/komega"

	"github.com/rancher/turtles-e2e/test/e2e"
	turtlesframework "github.com/rancher/turtles-e2e/test/framework"
	"github.com/rancher/turtles-e2e/test/testenv"
)

type ClusterClassTopologySpecInput struct {
	E2EConfig             *clusterctl.E2EConfig
	BootstrapClusterProxy framework.ClusterProxy
	RancherServerURL      string
	Vars                  e2e.Vars

	SkipCleanup   bool `env:"SKIP_RESOURCE_CLEANUP"`
	SkipDashboard bool `env:"SKIP_DASHBOARD_CHECKS"`

	ClusterName string

	// ClassName is the exact ClusterClass the cluster is created from.
	ClassName     string
	ClassRepoName string
	ClassesPath   string

	KubernetesVersion string

	// Workers maps MachineDeployment names to worker classes of the ClusterClass.
	Workers      map[string]string
	PodCIDRs     []string
	ServiceCIDRs []string

	// Manifests are applied before the ClusterClass is added, for example a CNI ConfigMap.
	Manifests [][]byte

	// CleanupInfrastructure removes what Manifests created.
	CleanupInfrastructure func(ctx context.Context, proxy framework.ClusterProxy)

	WaitInterval []interface{}
}

// ClusterClassTopologySpec creates a cluster from a ClusterClass the way the dashboard form does, in
// the namespace of the ClusterClass, and turns on auto-import for that single cluster.
func ClusterClassTopologySpec(ctx context.Context, inputGetter func() ClusterClassTopologySpecInput) {
	var (
		specName       = "clusterclass-topology"
		input          ClusterClassTopologySpecInput
		cluster        *clusterv1.Cluster
		clusterInput   turtlesframework.CAPIClusterInput
		rancherCluster turtlesframework.RancherManagementClusterInput
	)

	BeforeAll(func() {
		Expect(ctx).NotTo(BeNil(), "ctx is required for %s spec", specName)
		input = inputGetter()
		Expect(turtlesframework.Parse(&input)).To(Succeed(), "Failed to parse environment variables")

		Expect(input.E2EConfig).ToNot(BeNil(), "Invalid argument. input.E2EConfig can't be nil when calling %s spec", specName)
		Expect(input.BootstrapClusterProxy).ToNot(BeNil(), "Invalid argument. input.BootstrapClusterProxy can't be nil when calling %s spec", specName)
		Expect(input.RancherServerURL).ToNot(BeEmpty(), "Invalid argument. input.RancherServerURL can't be empty when calling %s spec", specName)
		Expect(input.ClusterName).ToNot(BeEmpty(), "Invalid argument. input.ClusterName can't be empty when calling %s spec", specName)
		Expect(input.ClassName).ToNot(BeEmpty(), "Invalid argument. input.ClassName can't be empty when calling %s spec", specName)
		Expect(input.ClassesPath).ToNot(BeEmpty(), "Invalid argument. input.ClassesPath can't be empty when calling %s spec", specName)

		if input.WaitInterval == nil {
			input.WaitInterval = input.Vars.ShortIntervals()
		}

		clusterInput = turtlesframework.CAPIClusterInput{
			Lister:       input.BootstrapClusterProxy.GetClient(),
			Name:         input.ClusterName,
			Namespace:    input.Vars.CAPIClassesNS,
			WaitInterval: input.WaitInterval,
		}
		rancherCluster = turtlesframework.RancherManagementClusterInput{
			ClusterProxy:    input.BootstrapClusterProxy,
			CAPIClusterName: input.ClusterName,
			CAPIClusterNS:   input.Vars.CAPIClassesNS,
			WaitInterval:    input.WaitInterval,
		}

		komega.SetClient(input.BootstrapClusterProxy.GetClient())
		komega.SetContext(ctx)
	})

	It("Should apply the manifests the ClusterClass depends on", func() {
		ensureNamespaces(ctx, input.BootstrapClusterProxy, input.Vars.CAPIClassesNS)

		for _, manifest := range input.Manifests {
			Expect(turtlesframework.ApplyInNamespace(ctx, input.BootstrapClusterProxy, manifest, input.Vars.CAPIClassesNS)).To(Succeed())
		}
	})

	It("Should add the ClusterClass with Fleet", func() {
		turtlesframework.FleetCreateGitRepo(ctx, turtlesframework.FleetCreateGitRepoInput{
			Name:            input.ClassRepoName,
			Repo:            input.Vars.TurtlesRepoURL,
			Paths:           []string{input.ClassesPath},
			TargetNamespace: input.Vars.CAPIClassesNS,
			ClusterProxy:    input.BootstrapClusterProxy,
		})

		Expect(turtlesframework.WaitForClusterClass(ctx, turtlesframework.WaitForClusterClassInput{
			Lister:    input.BootstrapClusterProxy.GetClient(),
			Namespace: input.Vars.CAPIClassesNS,
			Prefix:    input.ClassName,
		})).To(Equal(input.ClassName))
	})

	It("Should create a cluster from the ClusterClass", func() {
		cluster = turtlesframework.CreateClusterFromClass(ctx, turtlesframework.ClusterFromClassInput{
			Creator:      input.BootstrapClusterProxy.GetClient(),
			Name:         input.ClusterName,
			Namespace:    input.Vars.CAPIClassesNS,
			Class:        input.ClassName,
			Version:      input.KubernetesVersion,
			Workers:      input.Workers,
			PodCIDRs:     input.PodCIDRs,
			ServiceCIDRs: input.ServiceCIDRs,
		})

		turtlesframework.WaitForClusterActive(ctx, clusterInput)
	})

	It("Should auto-import the cluster once it is enabled on the cluster", func() {
		turtlesframework.SetClusterAutoImport(ctx, input.BootstrapClusterProxy, types.NamespacedName{
			Name:      input.ClusterName,
			Namespace: input.Vars.CAPIClassesNS,
		}, true)

		turtlesframework.RancherWaitForClusterReady(ctx, rancherCluster)

		if !input.SkipDashboard {
			session := openDashboard(ctx, input.RancherServerURL)
			Expect(session.CheckCAPIClusterActive(input.ClusterName)).To(Succeed())
		}
	})

	It("Should install an app on the created cluster", FlakeAttempts(2), func() {
		testenv.InstallLoggingApp(ctx, testenv.InstallLoggingAppInput{
			BootstrapClusterProxy: input.BootstrapClusterProxy,
			Kubeconfig:            turtlesframework.RancherGetImportedClusterKubeconfig(ctx, rancherCluster, input.RancherServerURL),
		})
	})

	It("Should remove the cluster from Rancher and delete the CAPI cluster", FlakeAttempts(2), func() {
		if !e2e.SkipClusterDeletion() || input.SkipCleanup {
			Skip("cluster deletion is disabled")
		}

		turtlesframework.RancherDeleteManagementCluster(ctx, rancherCluster)

		By("Checking the CAPI cluster survived the removal from Rancher")
		Expect(komega.Get(cluster)()).To(Succeed())
		turtlesframework.WaitForClusterProvisioned(ctx, clusterInput)

		// Rancher may import the cluster again while it is being deleted.
		testenv.ClusterCAPIResourceCleanup(ctx, testenv.ClusterCleanupInput{
			BootstrapClusterProxy: input.BootstrapClusterProxy,
			ClusterName:           input.ClusterName,
			Namespace:             input.Vars.CAPIClassesNS,
			ExtraDeleteSteps:      true,
			WaitInterval:          input.WaitInterval,
		})
	})

	It("Should remove the ClusterClass repository and other resources", func() {
		if !e2e.SkipClusterDeletion() || input.SkipCleanup {
			Skip("cluster deletion is disabled")
		}

		if input.CleanupInfrastructure != nil {
			input.CleanupInfrastructure(ctx, input.BootstrapClusterProxy)
		}

		turtlesframework.FleetDeleteGitRepo(ctx, turtlesframework.FleetDeleteGitRepoInput{
			Name:         input.ClassRepoName,
			ClusterProxy: input.BootstrapClusterProxy,
		})
	})
}
