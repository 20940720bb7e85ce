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
	"strconv"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/cluster-api/test/framework"
	"sigs.k8s.io/cluster-api/test/framework/clusterctl"

	"github.com/rancher/turtles-e2e/test/e2e"
	turtlesframework "github.com/rancher/turtles-e2e/test/framework"
	"github.com/rancher/turtles-e2e/test/testenv"
)

const (
	migrationClassNamePrefix = "docker-rke2"
	migrationClassRepoName   = "docker-rke2-clusterclass"
	migrationClassesPath     = "examples/clusterclasses/docker/rke2"

	calicoGitRepoName = "calico-cni"
	calicoGitRepoPath = "examples/applications/cni/calico"

	lbGitRepoName   = "lb-docker"
	lbGitRepoPath   = "examples/applications/lb/docker"
	lbConfigMapName = "docker-rke2-lb-config"

	// migratedCAPDVersion is the docker provider release the providers chart upgrades to.
	migratedCAPDVersion = "v1.10.6"
)

type MigrationSpecInput struct {
	E2EConfig             *clusterctl.E2EConfig
	BootstrapClusterProxy framework.ClusterProxy
	RancherServerURL      string
	Vars                  e2e.Vars

	RancherVersion string `env:"RANCHER_VERSION"`
	SkipCleanup    bool   `env:"SKIP_RESOURCE_CLEANUP"`

	// ClusterName must be the same for both halves of the migration.
	ClusterName string

	WaitInterval []interface{}
}

func (input *MigrationSpecInput) validate(specName string) {
	Expect(turtlesframework.Parse(input)).To(Succeed(), "Failed to parse environment variables")

	Expect(input.E2EConfig).ToNot(BeNil(), "Invalid argument. input.E2EConfig can't be nil when calling %s spec", specName)
	Expect(input.BootstrapClusterProxy).ToNot(BeNil(), "Invalid argument. input.BootstrapClusterProxy can't be nil when calling %s spec", specName)
	Expect(input.RancherServerURL).ToNot(BeEmpty(), "Invalid argument. input.RancherServerURL can't be empty when calling %s spec", specName)
	Expect(input.ClusterName).ToNot(BeEmpty(), "Invalid argument. input.ClusterName can't be empty when calling %s spec", specName)

	if input.WaitInterval == nil {
		input.WaitInterval = input.Vars.ShortIntervals()
	}
}

func (input MigrationSpecInput) importInput() testenv.ImportClassClusterInput {
	return testenv.ImportClassClusterInput{
		BootstrapClusterProxy: input.BootstrapClusterProxy,
		Namespace:             input.Vars.CAPIClustersNS,
		ClassNamespace:        input.Vars.CAPIClassesNS,
		ClusterName:           input.ClusterName,
		ClusterTemplate:       e2e.CAPDRKE2ClassCluster,
		AdditionalTemplateVariables: map[string]string{
			"RKE2_VERSION": input.Vars.RKE2Version,
			"KIND_VERSION": input.Vars.KindVersion,
		},
		WaitForCreatedCluster: input.WaitInterval,
	}
}

func (input MigrationSpecInput) clusterInput() turtlesframework.CAPIClusterInput {
	return turtlesframework.CAPIClusterInput{
		Lister:       input.BootstrapClusterProxy.GetClient(),
		Name:         input.ClusterName,
		Namespace:    input.Vars.CAPIClustersNS,
		WaitInterval: input.WaitInterval,
	}
}

func (input MigrationSpecInput) rancherCluster() turtlesframework.RancherManagementClusterInput {
	return turtlesframework.RancherManagementClusterInput{
		ClusterProxy:    input.BootstrapClusterProxy,
		CAPIClusterName: input.ClusterName,
		CAPIClusterNS:   input.Vars.CAPIClustersNS,
		WaitInterval:    input.WaitInterval,
	}
}

func (input MigrationSpecInput) gitRepo(name, path, targetNamespace string) turtlesframework.FleetCreateGitRepoInput {
	return turtlesframework.FleetCreateGitRepoInput{
		Name:            name,
		Repo:            input.Vars.TurtlesRepoURL,
		Branch:          input.Vars.ClassBranch,
		Paths:           []string{path},
		TargetNamespace: targetNamespace,
		ClusterProxy:    input.BootstrapClusterProxy,
	}
}

// PreMigrationSpec runs on Rancher 2.12 with the standalone Turtles chart. It leaves a CAPD RKE2
// cluster imported into Rancher and removes the standalone chart so its resources can be adopted.
func PreMigrationSpec(ctx context.Context, inputGetter func() MigrationSpecInput) {
	var (
		specName = "pre-migration"
		input    MigrationSpecInput
	)

	BeforeAll(func() {
		Expect(ctx).NotTo(BeNil(), "ctx is required for %s spec", specName)
		input = inputGetter()
		input.validate(specName)

		if !rancherVersionSatisfies(input.RancherVersion, "2.12") {
			Skip(fmt.Sprintf("pre-migration steps need Rancher 2.12, got %s", input.RancherVersion))
		}
	})

	It("Should set up the namespaces for importing", func() {
		ensureNamespaces(ctx, input.BootstrapClusterProxy, input.Vars.CAPIClustersNS, input.Vars.CAPIClassesNS, e2e.CAPDNamespace)

		turtlesframework.SetNamespaceAutoImport(ctx, turtlesframework.SetNamespaceAutoImportInput{
			ClusterProxy: input.BootstrapClusterProxy,
			Name:         input.Vars.CAPIClustersNS,
			Enabled:      false,
		})
	})

	It("Should create the docker provider and the cluster apps", func() {
		Expect(turtlesframework.GitRemoteBranchExists(ctx, turtlesframework.GitRemoteBranchInput{
			Address: input.Vars.TurtlesRepoURL,
			Branch:  input.Vars.ClassBranch,
		})).To(BeTrue(), "Branch %s not found in %s", input.Vars.ClassBranch, input.Vars.TurtlesRepoURL)

		turtlesframework.FleetCreateGitRepo(ctx, input.gitRepo(calicoGitRepoName, calicoGitRepoPath, input.Vars.CAPIClustersNS))
		turtlesframework.FleetCreateGitRepo(ctx, input.gitRepo(lbGitRepoName, lbGitRepoPath, input.Vars.CAPIClustersNS))

		turtlesframework.CreateCAPIProvider(ctx, input.BootstrapClusterProxy, turtlesframework.CAPIProviderSpec{
			Name:      "docker",
			Namespace: e2e.CAPDNamespace,
			Type:      providerTypeInfrastructure,
		})
		turtlesframework.WaitForCAPIProviderReady(ctx, input.BootstrapClusterProxy.GetClient(), turtlesframework.ProviderCheck{
			Name:         "docker",
			Namespace:    e2e.CAPDNamespace,
			Type:         providerTypeInfrastructure,
			ProviderName: "docker",
		}, input.E2EConfig.GetIntervals(specName, "wait-controllers")...)
	})

	It("Should create the docker auth secret", func() {
		testenv.CreateDockerAuthSecret(ctx, testenv.DockerAuthSecretInput{
			BootstrapClusterProxy: input.BootstrapClusterProxy,
			Namespace:             input.Vars.CAPIClustersNS,
		})
	})

	It("Should add the ClusterClass with Fleet", func() {
		turtlesframework.FleetCreateGitRepo(ctx, input.gitRepo(migrationClassRepoName, migrationClassesPath, input.Vars.CAPIClassesNS))

		turtlesframework.WaitForClusterClass(ctx, turtlesframework.WaitForClusterClassInput{
			Lister:    input.BootstrapClusterProxy.GetClient(),
			Namespace: input.Vars.CAPIClassesNS,
			Prefix:    migrationClassNamePrefix,
		})
	})

	It("Should import the class cluster", func() {
		testenv.ImportClassCluster(ctx, input.importInput())
	})

	It("Should auto-import the cluster into Rancher", func() {
		turtlesframework.RancherWaitForClusterReady(ctx, input.rancherCluster())
		turtlesframework.WaitForClusterActive(ctx, input.clusterInput())
	})

	It("Should uninstall the standalone Turtles chart", func() {
		testenv.UninstallRancherTurtles(ctx, testenv.UninstallRancherTurtlesInput{
			BootstrapClusterProxy: input.BootstrapClusterProxy,
			Namespace:             turtlesframework.LegacyTurtlesNamespace,
		})

		testenv.PrepareTurtlesCRDsForMigration(ctx, input.BootstrapClusterProxy)
	})
}

// PostMigrationSpec runs after Rancher was upgraded to 2.13 and checks that the cluster and the
// docker provider created before the upgrade are still healthy under the Turtles system chart.
func PostMigrationSpec(ctx context.Context, inputGetter func() MigrationSpecInput) {
	var (
		specName = "post-migration"
		input    MigrationSpecInput
	)

	BeforeAll(func() {
		Expect(ctx).NotTo(BeNil(), "ctx is required for %s spec", specName)
		input = inputGetter()
		input.validate(specName)

		if !rancherVersionSatisfies(input.RancherVersion, "2.13") {
			Skip(fmt.Sprintf("post-migration checks need Rancher 2.13, got %s", input.RancherVersion))
		}
	})

	It("Should install the providers chart", func() {
		testenv.DeployRancherTurtlesProviders(ctx, testenv.DeployRancherTurtlesProvidersInput{
			BootstrapClusterProxy: input.BootstrapClusterProxy,
		})
	})

	It("Should keep the docker provider and the cluster healthy", func() {
		intervals := input.E2EConfig.GetIntervals(specName, "wait-controllers")
		key := types.NamespacedName{Name: "docker", Namespace: e2e.CAPDNamespace}

		turtlesframework.WaitForCAPIProviderReady(ctx, input.BootstrapClusterProxy.GetClient(), turtlesframework.ProviderCheck{
			Name:         key.Name,
			Namespace:    key.Namespace,
			Type:         providerTypeInfrastructure,
			ProviderName: "docker",
			Version:      migratedCAPDVersion,
			CheckVersion: true,
		}, intervals...)
		turtlesframework.VerifyWranglerManagedCertificates(ctx, input.BootstrapClusterProxy, key, intervals...)
		turtlesframework.VerifyWranglerManagedProvider(ctx, turtlesframework.VerifyWranglerManagedProviderInput{
			Client:        input.BootstrapClusterProxy.GetClient(),
			ProviderLabel: "infrastructure-docker",
			Namespace:     e2e.CAPDNamespace,
		})

		turtlesframework.RancherWaitForClusterReady(ctx, input.rancherCluster())
		turtlesframework.WaitForClusterActive(ctx, input.clusterInput())
	})

	It("Should install an app on the imported cluster", FlakeAttempts(2), func() {
		testenv.InstallLoggingApp(ctx, testenv.InstallLoggingAppInput{
			BootstrapClusterProxy: input.BootstrapClusterProxy,
			Kubeconfig:            turtlesframework.RancherGetImportedClusterKubeconfig(ctx, input.rancherCluster(), input.RancherServerURL),
		})
	})

	It("Should scale up the class cluster", func() {
		importInput := input.importInput()
		variables := testenv.ClassClusterVariables(importInput)
		variables["WORKER_MACHINE_COUNT"] = strconv.Itoa(scaledWorkerCount)

		Eventually(func() error {
			return turtlesframework.ApplyFromTemplate(ctx, turtlesframework.ApplyFromTemplateInput{
				Template:                      importInput.ClusterTemplate,
				AddtionalEnvironmentVariables: variables,
				Namespace:                     importInput.Namespace,
				Proxy:                         input.BootstrapClusterProxy,
			})
		}, input.E2EConfig.GetIntervals(specName, "wait-controllers")...).Should(Succeed())

		turtlesframework.WaitForMachineDeploymentReplicas(ctx, input.clusterInput(), scaledWorkerCount)
		turtlesframework.WaitForClusterActive(ctx, input.clusterInput())
	})

	It("Should remove the imported cluster and delete the CAPI cluster", FlakeAttempts(2), func() {
		if input.SkipCleanup {
			Skip("resource cleanup is disabled")
		}

		cleanupInput := testenv.ClusterCleanupInput{
			BootstrapClusterProxy: input.BootstrapClusterProxy,
			ClusterName:           input.ClusterName,
			Namespace:             input.Vars.CAPIClustersNS,
			WaitInterval:          input.WaitInterval,
		}
		testenv.ImportedClusterCleanup(ctx, cleanupInput)
		testenv.ClusterCAPIResourceCleanup(ctx, cleanupInput)
	})

	It("Should remove the repositories and other resources", func() {
		if input.SkipCleanup {
			Skip("resource cleanup is disabled")
		}

		for _, name := range []string{migrationClassRepoName, calicoGitRepoName, lbGitRepoName} {
			turtlesframework.FleetDeleteGitRepo(ctx, turtlesframework.FleetDeleteGitRepoInput{
				Name:         name,
				ClusterProxy: input.BootstrapClusterProxy,
			})
		}

		turtlesframework.DeleteResourcesIfExist(ctx, input.BootstrapClusterProxy.GetClient(), turtlesframework.ResourceRef{
			GroupVersionKind: schema.GroupVersionKind{Version: "v1", Kind: "ConfigMap"},
			Name:             lbConfigMapName,
			Namespace:        input.Vars.CAPIClustersNS,
		})
		testenv.CAPDResourcesCleanup(ctx, input.BootstrapClusterProxy)
		testenv.UninstallRancherTurtlesProviders(ctx, input.BootstrapClusterProxy)

		for _, ns := range []string{input.Vars.CAPIClassesNS, input.Vars.CAPIClustersNS, e2e.CAPDNamespace} {
			Expect(turtlesframework.DeleteNamespace(ctx, input.BootstrapClusterProxy, ns)).To(Succeed())
		}
	})
}
