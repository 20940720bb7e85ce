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
	"fmt"
	"os"
	"strconv"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	clusterv1 "sigs.k8s.io/cluster-api/api/v1beta1"
	"sigs.k8s.io/cluster-api/test/framework"
	"sigs.k8s.io/cluster-api/test/framework/clusterctl"
	"sigs.k8s.io/controller-runtime/pkg/envtest/komega"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/rancher/turtles-e2e/test/e2e"
	turtlesframework "github.com/rancher/turtles-e2e/test/framework"
	"github.com/rancher/turtles-e2e/test/testenv"
)

// scaledWorkerCount is the worker count the class cluster is scaled to from the template default of 2.
const scaledWorkerCount = 3

type ImportClassClusterSpecInput struct {
	E2EConfig             *clusterctl.E2EConfig
	BootstrapClusterProxy framework.ClusterProxy
	RancherServerURL      string
	Vars                  e2e.Vars

	ArtifactFolder string `env:"ARTIFACTS_FOLDER"`
	SkipCleanup    bool   `env:"SKIP_RESOURCE_CLEANUP"`
	SkipDashboard  bool   `env:"SKIP_DASHBOARD_CHECKS"`

	ClusterName string

	// ClassNamePrefix identifies the ClusterClass created by the class repository.
	ClassNamePrefix string

	// ClassRepoName is the Fleet GitRepo delivering the ClusterClass.
	ClassRepoName string

	// ClassesPath is the path of the ClusterClass in the turtles repository.
	ClassesPath string

	// ClassBranch defaults to Vars.ClassBranch.
	ClassBranch string

	ClusterTemplate             []byte
	KubernetesVersion           string
	AdditionalTemplateVariables map[string]string
	AdditionalFleetGitRepos     []turtlesframework.FleetCreateGitRepoInput

	// NamespaceAutoImport labels the cluster namespace for auto-import. Otherwise the namespace
	// label is turned off and the cluster template is expected to carry its own label.
	NamespaceAutoImport bool

	// HelmOps are the Fleet HelmOps the ClusterClass repository must bring along.
	HelmOps []string

	// SetupInfrastructure prepares providers and identities before the ClusterClass is added.
	SetupInfrastructure func(ctx context.Context, proxy framework.ClusterProxy)

	// CleanupInfrastructure removes what SetupInfrastructure created.
	CleanupInfrastructure func(ctx context.Context, proxy framework.ClusterProxy)

	// SkipScale is set for classes without MachineDeployments.
	SkipScale bool

	// MachinePools is set for classes whose workers are MachinePools. It implies SkipScale.
	MachinePools bool

	// WaitInterval defaults to Vars.ShortIntervals.
	WaitInterval []interface{}
}

// ImportClassClusterSpec delivers a ClusterClass with Fleet, creates a cluster of that class from a
// manifest and follows it until Rancher has imported it. It then installs an app on the imported
// cluster, scales it up and removes it.
func ImportClassClusterSpec(ctx context.Context, inputGetter func() ImportClassClusterSpecInput) {
	var (
		specName       = "import-class-cluster"
		input          ImportClassClusterSpecInput
		importInput    testenv.ImportClassClusterInput
		capiCluster    *clusterv1.Cluster
		rancherCluster turtlesframework.RancherManagementClusterInput
		kubeconfigPath string
	)

	BeforeAll(func() {
		Expect(ctx).NotTo(BeNil(), "ctx is required for %s spec", specName)
		input = inputGetter()
		Expect(turtlesframework.Parse(&input)).To(Succeed(), "Failed to parse environment variables")

		Expect(input.E2EConfig).ToNot(BeNil(), "Invalid argument. input.E2EConfig can't be nil when calling %s spec", specName)
		Expect(input.BootstrapClusterProxy).ToNot(BeNil(), "Invalid argument. input.BootstrapClusterProxy can't be nil when calling %s spec", specName)
		Expect(input.RancherServerURL).ToNot(BeEmpty(), "Invalid argument. input.RancherServerURL can't be empty when calling %s spec", specName)
		Expect(input.ClusterName).ToNot(BeEmpty(), "Invalid argument. input.ClusterName can't be empty when calling %s spec", specName)
		Expect(input.ClassNamePrefix).ToNot(BeEmpty(), "Invalid argument. input.ClassNamePrefix can't be empty when calling %s spec", specName)
		Expect(input.ClassesPath).ToNot(BeEmpty(), "Invalid argument. input.ClassesPath can't be empty when calling %s spec", specName)
		Expect(input.ClusterTemplate).ToNot(BeEmpty(), "Invalid argument. input.ClusterTemplate can't be empty when calling %s spec", specName)
		Expect(os.MkdirAll(input.ArtifactFolder, 0o750)).To(Succeed(), "Invalid argument. input.ArtifactFolder can't be created for %s spec", specName)

		if input.ClassRepoName == "" {
			input.ClassRepoName = input.ClassNamePrefix + "-clusterclass"
		}
		if input.MachinePools {
			input.SkipScale = true
		}
		if input.ClassBranch == "" {
			input.ClassBranch = input.Vars.ClassBranch
		}
		if input.WaitInterval == nil {
			input.WaitInterval = input.Vars.ShortIntervals()
		}

		importInput = testenv.ImportClassClusterInput{
			BootstrapClusterProxy:       input.BootstrapClusterProxy,
			Namespace:                   input.Vars.CAPIClustersNS,
			ClassNamespace:              input.Vars.CAPIClassesNS,
			ClusterName:                 input.ClusterName,
			ClusterTemplate:             input.ClusterTemplate,
			KubernetesVersion:           input.KubernetesVersion,
			AdditionalTemplateVariables: input.AdditionalTemplateVariables,
			AdditionalFleetGitRepos:     input.AdditionalFleetGitRepos,
			WaitForCreatedCluster:       input.WaitInterval,
		}

		rancherCluster = turtlesframework.RancherManagementClusterInput{
			ClusterProxy:    input.BootstrapClusterProxy,
			CAPIClusterName: input.ClusterName,
			CAPIClusterNS:   input.Vars.CAPIClustersNS,
			WaitInterval:    input.WaitInterval,
		}

		komega.SetClient(input.BootstrapClusterProxy.GetClient())
		komega.SetContext(ctx)
	})

	AfterEach(func() {
		if !CurrentSpecReport().Failed() || kubeconfigPath == "" {
			return
		}

		err := testenv.CollectArtifacts(ctx, testenv.CollectArtifactsInput{
			KubeconfigPath:  kubeconfigPath,
			Path:            input.ClusterName,
			ArtifactsFolder: input.ArtifactFolder,
		})
		if err != nil {
			log.FromContext(ctx).Error(err, "Failed to collect artifacts of the child cluster", "cluster", input.ClusterName)
		}
	})

	It("Should set up the namespaces for importing", func() {
		ensureNamespaces(ctx, input.BootstrapClusterProxy, input.Vars.CAPIClustersNS, input.Vars.CAPIClassesNS)

		turtlesframework.SetNamespaceAutoImport(ctx, turtlesframework.SetNamespaceAutoImportInput{
			ClusterProxy: input.BootstrapClusterProxy,
			Name:         input.Vars.CAPIClustersNS,
			Enabled:      input.NamespaceAutoImport,
		})
	})

	It("Should set up the infrastructure", func() {
		if input.SetupInfrastructure == nil {
			Skip("no infrastructure setup needed")
		}

		input.SetupInfrastructure(ctx, input.BootstrapClusterProxy)
	})

	It("Should add the ClusterClass with Fleet", func() {
		Expect(turtlesframework.GitRemoteBranchExists(ctx, turtlesframework.GitRemoteBranchInput{
			Address: input.Vars.TurtlesRepoURL,
			Branch:  input.ClassBranch,
		})).To(BeTrue(), "Branch %s not found in %s", input.ClassBranch, input.Vars.TurtlesRepoURL)

		turtlesframework.FleetCreateGitRepo(ctx, turtlesframework.FleetCreateGitRepoInput{
			Name:            input.ClassRepoName,
			Repo:            input.Vars.TurtlesRepoURL,
			Branch:          input.ClassBranch,
			Paths:           []string{input.ClassesPath},
			TargetNamespace: input.Vars.CAPIClassesNS,
			ClusterProxy:    input.BootstrapClusterProxy,
		})

		turtlesframework.WaitForClusterClass(ctx, turtlesframework.WaitForClusterClassInput{
			Lister:    input.BootstrapClusterProxy.GetClient(),
			Namespace: input.Vars.CAPIClassesNS,
			Prefix:    input.ClassNamePrefix,
		})

		if len(input.HelmOps) > 0 {
			turtlesframework.FleetCheckHelmOps(ctx, turtlesframework.FleetCheckHelmOpsInput{
				Names:        input.HelmOps,
				ClusterProxy: input.BootstrapClusterProxy,
			})
		}
	})

	It("Should import the class cluster", func() {
		capiCluster = testenv.ImportClassCluster(ctx, importInput)
	})

	It("Should auto-import the cluster into Rancher", func() {
		turtlesframework.RancherWaitForClusterReady(ctx, rancherCluster)

		turtlesframework.WaitForClusterActive(ctx, turtlesframework.CAPIClusterInput{
			Lister:       input.BootstrapClusterProxy.GetClient(),
			Name:         input.ClusterName,
			Namespace:    input.Vars.CAPIClustersNS,
			WaitInterval: input.WaitInterval,
			MachinePools: input.MachinePools,
		})

		if !input.SkipDashboard {
			session := openDashboard(ctx, input.RancherServerURL)
			Expect(session.CheckCAPIClusterActive(input.ClusterName)).To(Succeed())
		}
	})

	It("Should mark the Rancher cluster as externally managed", func() {
		turtlesframework.RancherCheckExternallyManaged(ctx, rancherCluster)
	})

	It("Should install an app on the imported cluster", FlakeAttempts(2), func() {
		kubeconfigPath = turtlesframework.RancherGetImportedClusterKubeconfig(ctx, rancherCluster, input.RancherServerURL)

		testenv.InstallLoggingApp(ctx, testenv.InstallLoggingAppInput{
			BootstrapClusterProxy: input.BootstrapClusterProxy,
			Kubeconfig:            kubeconfigPath,
		})
	})

	It("Should scale up the class cluster", func() {
		if input.SkipScale {
			Skip(fmt.Sprintf("%s clusters have no MachineDeployments to scale", input.ClassNamePrefix))
		}

		variables := testenv.ClassClusterVariables(importInput)
		variables["WORKER_MACHINE_COUNT"] = strconv.Itoa(scaledWorkerCount)

		Eventually(func() error {
			return turtlesframework.ApplyFromTemplate(ctx, turtlesframework.ApplyFromTemplateInput{
				Template:                      input.ClusterTemplate,
				AddtionalEnvironmentVariables: variables,
				Namespace:                     input.Vars.CAPIClustersNS,
				Proxy:                         input.BootstrapClusterProxy,
			})
		}, input.E2EConfig.GetIntervals(specName, "wait-controllers")...).Should(Succeed(), "Failed to scale cluster %s", input.ClusterName)

		clusterInput := turtlesframework.CAPIClusterInput{
			Lister:       input.BootstrapClusterProxy.GetClient(),
			Name:         input.ClusterName,
			Namespace:    input.Vars.CAPIClustersNS,
			WaitInterval: input.WaitInterval,
		}
		turtlesframework.WaitForMachineDeploymentReplicas(ctx, clusterInput, scaledWorkerCount)
		turtlesframework.WaitForClusterActive(ctx, clusterInput)
	})

	It("Should remove the imported cluster from Rancher", FlakeAttempts(2), func() {
		if !e2e.SkipClusterDeletion() || input.SkipCleanup {
			Skip("cluster deletion is disabled")
		}

		testenv.ImportedClusterCleanup(ctx, testenv.ClusterCleanupInput{
			BootstrapClusterProxy: input.BootstrapClusterProxy,
			ClusterName:           input.ClusterName,
			Namespace:             input.Vars.CAPIClustersNS,
			WaitInterval:          input.WaitInterval,
		})

		By("Checking the CAPI cluster survived the removal from Rancher")
		Expect(capiCluster).NotTo(BeNil())
		Consistently(komega.Get(capiCluster), "30s", "5s").Should(Succeed())
	})

	It("Should delete the CAPI cluster", FlakeAttempts(2), func() {
		if !e2e.SkipClusterDeletion() || input.SkipCleanup {
			Skip("cluster deletion is disabled")
		}

		testenv.ClusterCAPIResourceCleanup(ctx, testenv.ClusterCleanupInput{
			BootstrapClusterProxy: input.BootstrapClusterProxy,
			ClusterName:           input.ClusterName,
			Namespace:             input.Vars.CAPIClustersNS,
			WaitInterval:          input.WaitInterval,
		})
	})

	It("Should remove the ClusterClass repository and other resources", func() {
		if !e2e.SkipClusterDeletion() || input.SkipCleanup {
			Skip("cluster deletion is disabled")
		}

		turtlesframework.FleetDeleteGitRepo(ctx, turtlesframework.FleetDeleteGitRepoInput{
			Name:         input.ClassRepoName,
			ClusterProxy: input.BootstrapClusterProxy,
		})

		for _, gitRepo := range input.AdditionalFleetGitRepos {
			turtlesframework.FleetDeleteGitRepo(ctx, turtlesframework.FleetDeleteGitRepoInput{
				Name:         gitRepo.Name,
				Namespace:    gitRepo.Namespace,
				ClusterProxy: input.BootstrapClusterProxy,
			})
		}

		if input.CleanupInfrastructure != nil {
			input.CleanupInfrastructure(ctx, input.BootstrapClusterProxy)
		}
	})
}
