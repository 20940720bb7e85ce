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
	"path"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"k8s.io/apimachinery/pkg/runtime/schema"
	clusterv1 "sigs.k8s.io/cluster-api/api/v1beta1"
	"sigs.k8s.io/cluster-api/test/framework"
	"sigs.k8s.io/controller-runtime/pkg/log"

	turtlesframework "github.com/rancher/turtles-e2e/test/framework"
)

var (
	gvkSecret                   = schema.GroupVersionKind{Version: "v1", Kind: "Secret"}
	gvkConfigMap                = schema.GroupVersionKind{Version: "v1", Kind: "ConfigMap"}
	gvkCAPICluster              = clusterv1.GroupVersion.WithKind("Cluster")
	gvkClusterResourceSet       = schema.GroupVersionKind{Group: "addons.cluster.x-k8s.io", Version: "v1beta1", Kind: "ClusterResourceSet"}
	gvkAzureClusterIdentity     = schema.GroupVersionKind{Group: "infrastructure.cluster.x-k8s.io", Version: "v1beta1", Kind: "AzureClusterIdentity"}
	gvkAWSClusterStaticIdentity = schema.GroupVersionKind{Group: "infrastructure.cluster.x-k8s.io", Version: "v1beta2", Kind: "AWSClusterStaticIdentity"}
	gvkVSphereClusterIdentity   = schema.GroupVersionKind{Group: "infrastructure.cluster.x-k8s.io", Version: "v1beta1", Kind: "VSphereClusterIdentity"}
)

const (
	clusterIdentityName          = "cluster-identity"
	capvHelmValuesSecretName     = "capv-helm-values"
	capvDockerTokenSecretName    = "capv-docker-token"
	capdCNIConfigMapName         = "cni-docker-kubeadm-example-crs-0"
	capdClusterResourceSetName   = "docker-kubeadm-example-crs-0"
	defaultCAPIClustersNamespace = "capi-clusters"
	defaultCAPIClassesNamespace  = "capi-classes"
)

// CleanupTestClusterInput represents the input parameters for cleaning up a test cluster.
type CleanupTestClusterInput struct {
	// SetupTestClusterResult contains the result of setting up the test cluster.
	SetupTestClusterResult

	// SkipCleanup indicates whether to skip the cleanup process.
	SkipCleanup bool `env:"SKIP_RESOURCE_CLEANUP"`

	// ArtifactFolder specifies the folder where artifacts are stored.
	ArtifactFolder string `env:"ARTIFACTS_FOLDER"`
}

// CleanupTestCluster disposes the proxy and, unless cleanup is skipped, the management cluster.
func CleanupTestCluster(ctx context.Context, input CleanupTestClusterInput) {
	Expect(turtlesframework.Parse(&input)).To(Succeed(), "Failed to parse environment variables")

	Expect(ctx).NotTo(BeNil(), "ctx is required for CleanupTestCluster")
	Expect(input.ArtifactFolder).ToNot(BeEmpty(), "ArtifactFolder is required for CleanupTestCluster")

	if input.SkipCleanup {
		By("Skipping management cluster teardown")
		return
	}

	By("Tearing down the management cluster")
	if input.BootstrapClusterProxy != nil {
		input.BootstrapClusterProxy.Dispose(ctx)
	}
	if input.BootstrapClusterProvider != nil {
		input.BootstrapClusterProvider.Dispose(ctx)
	}
}

type CollectArtifactsInput struct {
	// BootstrapKubeconfigPath is a path to the bootstrap cluster kubeconfig
	BootstrapKubeconfigPath string `env:"BOOTSTRAP_CLUSTER_KUBECONFIG_PATH"`

	// KubeconfigPath is a path to the cluster kubeconfig
	KubeconfigPath string

	// Path parts to the collected archive
	Path string `envDefault:"bootstrap"`

	// ArtifactsFolder is the root path for the artifacts
	ArtifactsFolder string `env:"ARTIFACTS_FOLDER"`

	// BootstrapClusterName is the name of the bootstrap cluster
	BootstrapClusterName string `env:"BOOTSTRAP_CLUSTER_NAME" envDefault:"bootstrap"`

	// Args are additional args for the artifacts collection
	Args []string

	// Secrets is the set of secret keys to exclude from output
	Secrets []string

	// SecretKeyList is the list of secret keys to exclude from output separated with ","
	SecretKeyList []string `env:"SECRET_KEYS"`
}

// CollectArtifactsArgs builds the kubectl crust-gather command line.
func CollectArtifactsArgs(input CollectArtifactsInput, kubeconfig string) []string {
	dest := path.Join(input.ArtifactsFolder, input.BootstrapClusterName, input.Path)
	args := append([]string{"crust-gather", "collect", "--kubeconfig", kubeconfig, "-f", dest, "-v", "ERROR"}, input.Args...)
	for _, secret := range append(input.Secrets, input.SecretKeyList...) {
		args = append(args, "-s", secret)
	}

	return args
}

// CollectArtifacts archives the cluster state with the crust-gather kubectl plugin.
// A missing kubeconfig is not an error.
func CollectArtifacts(ctx context.Context, input CollectArtifactsInput) error {
	log := log.FromContext(ctx)

	if err := turtlesframework.Parse(&input); err != nil {
		return err
	}

	kubeconfig := cmp.Or(input.KubeconfigPath, input.BootstrapKubeconfigPath)
	if kubeconfig == "" {
		log.Info("No kubeconfig provided, skipping artifacts collection")
		return nil
	}

	args := CollectArtifactsArgs(input, kubeconfig)
	log.Info("Running kubectl:", "command", strings.Join(args, " "))

	result := &turtlesframework.RunCommandResult{}
	turtlesframework.RunCommand(ctx, turtlesframework.RunCommandInput{Command: "kubectl", Args: args}, result)
	log.Info("stderr:", "stderr", string(result.Stderr))
	log.Info("stdout:", "stdout", string(result.Stdout))

	return result.Error
}

// DumpBootstrapCluster collects the management cluster state. Failures are only logged.
func DumpBootstrapCluster(ctx context.Context, kubeconfigPath string) {
	if err := CollectArtifacts(ctx, CollectArtifactsInput{KubeconfigPath: kubeconfigPath}); err != nil {
		log.FromContext(ctx).Error(err, "Failed to collect artifacts for the bootstrap cluster")
	}
}

// ClusterCleanupInput identifies a CAPI cluster imported into Rancher.
type ClusterCleanupInput struct {
	BootstrapClusterProxy framework.ClusterProxy

	ClusterName string

	Namespace string `envDefault:"capi-clusters"`

	// RepoName is the Fleet GitRepo that created the cluster. Empty means the cluster was
	// created directly and is deleted as an object.
	RepoName string

	// ExtraDeleteSteps also deletes the Rancher cluster when it is still listed.
	ExtraDeleteSteps bool

	WaitInterval []interface{} `envDefault:"25m,10s"`
}

// ImportedClusterCleanup deletes the imported cluster from Rancher and checks that the CAPI
// cluster it came from is still provisioned.
func ImportedClusterCleanup(ctx context.Context, input ClusterCleanupInput) {
	Expect(turtlesframework.Parse(&input)).To(Succeed(), "Failed to parse environment variables")
	Expect(input.BootstrapClusterProxy).ToNot(BeNil(), "BootstrapClusterProxy is required for ImportedClusterCleanup")

	turtlesframework.RancherDeleteManagementCluster(ctx, turtlesframework.RancherManagementClusterInput{
		ClusterProxy:    input.BootstrapClusterProxy,
		CAPIClusterName: input.ClusterName,
		CAPIClusterNS:   input.Namespace,
	})

	turtlesframework.WaitForClusterProvisioned(ctx, turtlesframework.CAPIClusterInput{
		Lister:       input.BootstrapClusterProxy.GetClient(),
		Name:         input.ClusterName,
		Namespace:    input.Namespace,
		WaitInterval: input.WaitInterval,
	})
}

// ClusterCAPIResourceCleanup removes the CAPI cluster, through its GitRepo when it has one, and
// waits for it to be gone.
func ClusterCAPIResourceCleanup(ctx context.Context, input ClusterCleanupInput) {
	Expect(turtlesframework.Parse(&input)).To(Succeed(), "Failed to parse environment variables")
	Expect(input.BootstrapClusterProxy).ToNot(BeNil(), "BootstrapClusterProxy is required for ClusterCAPIResourceCleanup")

	if input.RepoName != "" {
		turtlesframework.FleetDeleteGitRepo(ctx, turtlesframework.FleetDeleteGitRepoInput{
			Name:         input.RepoName,
			ClusterProxy: input.BootstrapClusterProxy,
		})
	} else {
		turtlesframework.DeleteResourcesIfExist(ctx, input.BootstrapClusterProxy.GetClient(), turtlesframework.ResourceRef{
			GroupVersionKind: gvkCAPICluster,
			Name:             input.ClusterName,
			Namespace:        input.Namespace,
		})
	}

	turtlesframework.WaitForClusterDeleted(ctx, turtlesframework.CAPIClusterInput{
		Lister:       input.BootstrapClusterProxy.GetClient(),
		Name:         input.ClusterName,
		Namespace:    input.Namespace,
		WaitInterval: input.WaitInterval,
	})

	if input.ExtraDeleteSteps {
		turtlesframework.RancherDeleteManagementCluster(ctx, turtlesframework.RancherManagementClusterInput{
			ClusterProxy:    input.BootstrapClusterProxy,
			CAPIClusterName: input.ClusterName,
			CAPIClusterNS:   input.Namespace,
		})
	}
}

// CAPZResourcesCleanup removes the Azure cluster identity and its secret.
func CAPZResourcesCleanup(ctx context.Context, proxy framework.ClusterProxy) {
	turtlesframework.DeleteResourcesIfExist(ctx, proxy.GetClient(), CAPZCleanupRefs()...)
}

// CAPZCleanupRefs lists the objects removed by CAPZResourcesCleanup.
func CAPZCleanupRefs() []turtlesframework.ResourceRef {
	return []turtlesframework.ResourceRef{
		{GroupVersionKind: gvkAzureClusterIdentity, Name: clusterIdentityName, Namespace: defaultCAPIClustersNamespace},
		{GroupVersionKind: gvkSecret, Name: clusterIdentityName, Namespace: namespaceCAPZSystem},
	}
}

// CAPAResourcesCleanup removes the AWS static identity and its secret.
func CAPAResourcesCleanup(ctx context.Context, proxy framework.ClusterProxy) {
	turtlesframework.DeleteResourcesIfExist(ctx, proxy.GetClient(), CAPACleanupRefs()...)
}

// CAPACleanupRefs lists the objects removed by CAPAResourcesCleanup.
func CAPACleanupRefs() []turtlesframework.ResourceRef {
	return []turtlesframework.ResourceRef{
		{GroupVersionKind: gvkSecret, Name: clusterIdentityName, Namespace: namespaceCAPASystem},
		{GroupVersionKind: gvkAWSClusterStaticIdentity, Name: clusterIdentityName},
	}
}

// CAPVFlavor is the bootstrap/control plane flavour of a vSphere cluster.
type CAPVFlavor string

const (
	CAPVKubeadm CAPVFlavor = "kubeadm"
	CAPVRKE2    CAPVFlavor = "rke2"
)

// CAPVResourcesCleanup removes the vSphere identity and the helm values of the flavour.
func CAPVResourcesCleanup(ctx context.Context, proxy framework.ClusterProxy, flavor CAPVFlavor) {
	turtlesframework.DeleteResourcesIfExist(ctx, proxy.GetClient(), CAPVCleanupRefs(flavor)...)
}

// CAPVCleanupRefs lists the objects removed by CAPVResourcesCleanup.
func CAPVCleanupRefs(flavor CAPVFlavor) []turtlesframework.ResourceRef {
	refs := []turtlesframework.ResourceRef{
		{GroupVersionKind: gvkVSphereClusterIdentity, Name: clusterIdentityName},
		{GroupVersionKind: gvkSecret, Name: capvHelmValuesSecretName, Namespace: namespaceCAPVSystem},
	}
	if flavor == CAPVRKE2 {
		refs = append(refs, turtlesframework.ResourceRef{GroupVersionKind: gvkSecret, Name: capvDockerTokenSecretName, Namespace: defaultCAPIClustersNamespace})
	}

	return refs
}

// CAPDResourcesCleanup removes the CNI ClusterResourceSet left behind by the CAPD kubeadm class.
func CAPDResourcesCleanup(ctx context.Context, proxy framework.ClusterProxy) {
	turtlesframework.DeleteResourcesIfExist(ctx, proxy.GetClient(), CAPDCleanupRefs()...)
}

// CAPDCleanupRefs lists the objects removed by CAPDResourcesCleanup.
func CAPDCleanupRefs() []turtlesframework.ResourceRef {
	return []turtlesframework.ResourceRef{
		{GroupVersionKind: gvkConfigMap, Name: capdCNIConfigMapName, Namespace: defaultCAPIClassesNamespace},
		{GroupVersionKind: gvkClusterResourceSet, Name: capdClusterResourceSetName, Namespace: defaultCAPIClassesNamespace},
	}
}
