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

package framework

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/tools/clientcmd"
	"sigs.k8s.io/cluster-api/test/framework"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

var (
	gvkManagementCluster   = schema.GroupVersionKind{Group: "management.cattle.io", Version: "v3", Kind: "Cluster"}
	gvkProvisioningCluster = schema.GroupVersionKind{Group: "provisioning.cattle.io", Version: "v1", Kind: "Cluster"}
	gvkUser                = schema.GroupVersionKind{Group: "management.cattle.io", Version: "v3", Kind: "User"}
	gvkFeature             = schema.GroupVersionKind{Group: "management.cattle.io", Version: "v3", Kind: "Feature"}
	gvkClusterRepo         = schema.GroupVersionKind{Group: "catalog.cattle.io", Version: "v1", Kind: "ClusterRepo"}
)

// RancherGetClusterKubeconfigInput is the input to RancherGetClusterKubeconfig.
type RancherGetClusterKubeconfigInput struct {
	Getter           framework.Getter
	SecretName       string
	Namespace        string
	RancherServerURL string
	WriteToTempFile  bool
}

// RancherGetClusterKubeconfigResult is the result of RancherGetClusterKubeconfig.
type RancherGetClusterKubeconfigResult struct {
	KubeconfigData []byte
	TempFilePath   string
}

// RancherGetClusterKubeconfig reads the kubeconfig Rancher generated for a cluster and points it
// at the given Rancher host.
func RancherGetClusterKubeconfig(ctx context.Context, input RancherGetClusterKubeconfigInput, result *RancherGetClusterKubeconfigResult) {
	Expect(ctx).NotTo(BeNil(), "ctx is required for RancherGetClusterKubeconfig")
	Expect(input.Getter).ToNot(BeNil(), "Invalid argument. input.Getter can't be nil when calling RancherGetClusterKubeconfig")
	Expect(input.SecretName).ToNot(BeEmpty(), "Invalid argument. input.SecretName can't be nil when calling RancherGetClusterKubeconfig")
	Expect(input.RancherServerURL).ToNot(BeEmpty(), "Invalid argument. input.RancherServerURL can't be nil when calling RancherGetClusterKubeconfig")

	if input.Namespace == "" {
		input.Namespace = FleetDefaultNamespace
	}

	Byf("Getting Rancher kubeconfig secret %s/%s", input.Namespace, input.SecretName)
	secret := &corev1.Secret{}

	Eventually(func() error {
		return input.Getter.Get(ctx, types.NamespacedName{Namespace: input.Namespace, Name: input.SecretName}, secret)
	}, retryableOperationTimeout, retryableOperationInterval).Should(Succeed(), "Getting Rancher kubeconfig secret %s", input.SecretName)

	content, ok := secret.Data["value"]
	Expect(ok).To(BeTrue(), "Failed to find expected key in kubeconfig secret")

	content, err := RewriteKubeconfigServer(content, input.RancherServerURL)
	Expect(err).NotTo(HaveOccurred(), "Failed to update kubeconfig server")

	result.KubeconfigData = content

	if !input.WriteToTempFile {
		return
	}

	result.TempFilePath, err = writeTempKubeconfig(content)
	Expect(err).NotTo(HaveOccurred(), "Failed to write kubeconfig to a temp file")
}

// RewriteKubeconfigServer replaces the host of the current context's server URL.
func RewriteKubeconfigServer(content []byte, host string) ([]byte, error) {
	cfg, err := clientcmd.Load(content)
	if err != nil {
		return nil, fmt.Errorf("loading kubeconfig: %w", err)
	}

	kubeContext, ok := cfg.Contexts[cfg.CurrentContext]
	if !ok {
		return nil, fmt.Errorf("current context %q not found", cfg.CurrentContext)
	}

	cluster, ok := cfg.Clusters[kubeContext.Cluster]
	if !ok {
		return nil, fmt.Errorf("cluster %q not found", kubeContext.Cluster)
	}

	serverURL, err := url.Parse(cluster.Server)
	if err != nil {
		return nil, fmt.Errorf("parsing server URL: %w", err)
	}

	serverURL.Host = host
	cluster.Server = serverURL.String()

	return clientcmd.Write(*cfg)
}

// RancherLookupUserInput is the input to RancherLookupUser.
type RancherLookupUserInput struct {
	ClusterProxy framework.ClusterProxy
	Username     string `envDefault:"admin"`
}

// RancherLookupUserResult is the result of RancherLookupUser.
type RancherLookupUserResult struct {
	// User is the object name of the user, for example "user-abcde".
	User string
}

// RancherLookupUser finds the ID of a Rancher user by its login name.
func RancherLookupUser(ctx context.Context, input RancherLookupUserInput, result *RancherLookupUserResult) {
	Expect(Parse(&input)).To(Succeed(), "Failed to parse environment variables")
	Expect(ctx).NotTo(BeNil(), "ctx is required for RancherLookupUser")
	Expect(input.ClusterProxy).ToNot(BeNil(), "Invalid argument. input.ClusterProxy can't be nil when calling RancherLookupUser")

	users := &unstructured.UnstructuredList{}
	users.SetGroupVersionKind(gvkUser.GroupVersion().WithKind(gvkUser.Kind + "List"))
	Expect(input.ClusterProxy.GetClient().List(ctx, users)).To(Succeed(), "Failed to list users")

	for _, item := range users.Items {
		if username, _ := item.Object["username"].(string); username == input.Username {
			result.User = item.GetName()
			break
		}
	}

	Expect(result.User).ToNot(BeEmpty(), "Failed to find user for %s", input.Username)
}

// RancherCreateCloudCredentialInput is the input to RancherCreateCloudCredential.
type RancherCreateCloudCredentialInput struct {
	ClusterProxy framework.ClusterProxy
	// Name is the display name shown in the dashboard.
	Name string
	// Driver is the node driver the credential belongs to, for example "azure" or "vmwarevsphere".
	Driver string
	// Fields are the driver specific credential fields without the "<driver>credentialConfig-" prefix.
	Fields map[string]string
}

// RancherCreateCloudCredential stores a cloud credential the way the dashboard does, as a
// secret in the global data namespace.
func RancherCreateCloudCredential(ctx context.Context, input RancherCreateCloudCredentialInput) {
	Expect(input.ClusterProxy).ToNot(BeNil(), "Invalid argument. input.ClusterProxy can't be nil when calling RancherCreateCloudCredential")
	Expect(input.Name).ToNot(BeEmpty(), "Invalid argument. input.Name can't be empty when calling RancherCreateCloudCredential")
	Expect(input.Driver).ToNot(BeEmpty(), "Invalid argument. input.Driver can't be empty when calling RancherCreateCloudCredential")

	Byf("Creating %s cloud credential %s", input.Driver, input.Name)

	data := make(map[string]string, len(input.Fields))
	for k, v := range input.Fields {
		data[fmt.Sprintf("%scredentialConfig-%s", input.Driver, k)] = v
	}

	CreateSecret(ctx, CreateSecretInput{
		Creator:   input.ClusterProxy.GetClient(),
		Name:      CloudCredentialSecretName(input.Name),
		Namespace: CattleGlobalDataNamespace,
		Type:      corev1.SecretTypeOpaque,
		Data:      data,
		Annotations: map[string]string{
			"field.cattle.io/name":          input.Name,
			"provisioning.cattle.io/driver": input.Driver,
		},
		Labels: map[string]string{
			"cattle.io/creator": "norman",
		},
	})
}

// CloudCredentialSecretName is the secret name used for a cloud credential display name.
func CloudCredentialSecretName(name string) string {
	return "cc-" + name
}

// RancherLookupCloudCredential returns the cloud credential ID ("cattle-global-data:<secret>")
// for a credential display name.
func RancherLookupCloudCredential(ctx context.Context, proxy framework.ClusterProxy, name string) string {
	Expect(proxy).ToNot(BeNil(), "Invalid argument. proxy can't be nil when calling RancherLookupCloudCredential")

	var id string
	Eventually(func(g Gomega) {
		secrets := &corev1.SecretList{}
		g.Expect(proxy.GetClient().List(ctx, secrets, client.InNamespace(CattleGlobalDataNamespace))).To(Succeed())

		for _, s := range secrets.Items {
			if s.Annotations["field.cattle.io/name"] == name {
				id = fmt.Sprintf("%s:%s", CattleGlobalDataNamespace, s.Name)
				return
			}
		}
		g.Expect(id).ToNot(BeEmpty(), "cloud credential %s not found", name)
	}, retryableOperationTimeout, retryableOperationInterval).Should(Succeed())

	return id
}

// RancherManagementClusterInput identifies the Rancher cluster imported from a CAPI cluster.
type RancherManagementClusterInput struct {
	ClusterProxy       framework.ClusterProxy
	CAPIClusterName    string
	CAPIClusterNS      string
	WaitInterval       []interface{} `envDefault:"15m,10s"`
	DeleteWaitInterval []interface{} `envDefault:"10m,10s"`
}

// RancherGetManagementCluster waits for the Rancher cluster owned by the CAPI cluster to show up
// and returns it.
func RancherGetManagementCluster(ctx context.Context, input RancherManagementClusterInput) *unstructured.Unstructured {
	Expect(Parse(&input)).To(Succeed(), "Failed to parse environment variables")
	Expect(input.ClusterProxy).ToNot(BeNil(), "Invalid argument. input.ClusterProxy can't be nil when calling RancherGetManagementCluster")
	Expect(input.CAPIClusterName).ToNot(BeEmpty(), "Invalid argument. input.CAPIClusterName can't be empty when calling RancherGetManagementCluster")

	var cluster *unstructured.Unstructured
	Eventually(func(g Gomega) {
		var err error
		cluster, err = findManagementCluster(ctx, input.ClusterProxy.GetClient(), input.CAPIClusterName, input.CAPIClusterNS)
		g.Expect(err).NotTo(HaveOccurred())
		g.Expect(cluster).NotTo(BeNil(), "Rancher cluster for %s/%s not found", input.CAPIClusterNS, input.CAPIClusterName)
	}, input.WaitInterval...).Should(Succeed())

	return cluster
}

func findManagementCluster(ctx context.Context, c client.Reader, name, namespace string) (*unstructured.Unstructured, error) {
	clusters := &unstructured.UnstructuredList{}
	clusters.SetGroupVersionKind(gvkManagementCluster.GroupVersion().WithKind("ClusterList"))

	if err := c.List(ctx, clusters, client.MatchingLabels{
		CAPIClusterOwnerLabel:          name,
		CAPIClusterOwnerNamespaceLabel: namespace,
	}); err != nil {
		return nil, err
	}

	if len(clusters.Items) == 0 {
		return nil, nil
	}

	return &clusters.Items[0], nil
}

// RancherWaitForClusterReady waits until the imported cluster has its agent deployed and is
// Ready, which the dashboard shows as Active.
func RancherWaitForClusterReady(ctx context.Context, input RancherManagementClusterInput) *unstructured.Unstructured {
	Expect(Parse(&input)).To(Succeed(), "Failed to parse environment variables")

	cluster := RancherGetManagementCluster(ctx, input)
	key := client.ObjectKeyFromObject(cluster)

	for _, condition := range []string{"AgentDeployed", "Ready"} {
		Byf("Waiting for Rancher cluster %s to be %s", key.Name, condition)
		Eventually(func(g Gomega) {
			g.Expect(input.ClusterProxy.GetClient().Get(ctx, key, cluster)).To(Succeed())
			g.Expect(ConditionStatus(cluster, condition)).To(Equal("True"))
		}, input.WaitInterval...).Should(Succeed(), "Rancher cluster %s is not %s", key.Name, condition)
	}

	return cluster
}

// RancherCheckExternallyManaged asserts the imported cluster is marked as managed outside Rancher.
func RancherCheckExternallyManaged(ctx context.Context, input RancherManagementClusterInput) {
	cluster := RancherGetManagementCluster(ctx, input)

	Byf("Checking %s annotation on Rancher cluster %s", ExternallyManagedAnnotation, cluster.GetName())
	Expect(cluster.GetAnnotations()).To(HaveKeyWithValue(ExternallyManagedAnnotation, "true"))
}

// RancherDeleteManagementCluster deletes the imported Rancher cluster and waits for it to go away.
// The CAPI cluster itself must survive this.
func RancherDeleteManagementCluster(ctx context.Context, input RancherManagementClusterInput) {
	Expect(Parse(&input)).To(Succeed(), "Failed to parse environment variables")

	cluster, err := findManagementCluster(ctx, input.ClusterProxy.GetClient(), input.CAPIClusterName, input.CAPIClusterNS)
	Expect(err).NotTo(HaveOccurred())
	if cluster == nil {
		By("Skipping deletion as Rancher cluster not found")
		return
	}

	Byf("Deleting Rancher cluster %s", cluster.GetName())
	Expect(client.IgnoreNotFound(input.ClusterProxy.GetClient().Delete(ctx, cluster))).To(Succeed())

	Eventually(func() bool {
		return apierrors.IsNotFound(input.ClusterProxy.GetClient().Get(ctx, client.ObjectKeyFromObject(cluster), cluster.DeepCopy()))
	}, input.DeleteWaitInterval...).Should(BeTrue(), "Rancher cluster %s was not deleted", cluster.GetName())
}

// RancherGetImportedClusterKubeconfig returns the path of a kubeconfig that reaches the imported
// cluster through the Rancher proxy.
func RancherGetImportedClusterKubeconfig(ctx context.Context, input RancherManagementClusterInput, rancherServerURL string) string {
	cluster := RancherWaitForClusterReady(ctx, input)

	workspace, _, _ := unstructured.NestedString(cluster.Object, "spec", "fleetWorkspaceName")
	if workspace == "" {
		workspace = FleetDefaultNamespace
	}

	result := &RancherGetClusterKubeconfigResult{}
	RancherGetClusterKubeconfig(ctx, RancherGetClusterKubeconfigInput{
		Getter:           input.ClusterProxy.GetClient(),
		SecretName:       fmt.Sprintf("%s-kubeconfig", cluster.GetName()),
		Namespace:        workspace,
		RancherServerURL: rancherServerURL,
		WriteToTempFile:  true,
	}, result)

	return result.TempFilePath
}

// RancherWaitForProvisioningClusterInput is the input to RancherWaitForProvisioningClusterReady.
type RancherWaitForProvisioningClusterInput struct {
	ClusterProxy framework.ClusterProxy
	Name         string
	Namespace    string        `envDefault:"fleet-default"`
	WaitInterval []interface{} `envDefault:"30m,30s"`
}

// RancherWaitForProvisioningClusterReady waits for a Rancher provisioned (v2prov) cluster to be Ready.
func RancherWaitForProvisioningClusterReady(ctx context.Context, input RancherWaitForProvisioningClusterInput) {
	Expect(Parse(&input)).To(Succeed(), "Failed to parse environment variables")
	Expect(input.ClusterProxy).ToNot(BeNil(), "Invalid argument. input.ClusterProxy can't be nil when calling RancherWaitForProvisioningClusterReady")

	Byf("Waiting for provisioning cluster %s/%s to be Ready", input.Namespace, input.Name)

	Eventually(func(g Gomega) {
		cluster := &unstructured.Unstructured{}
		cluster.SetGroupVersionKind(gvkProvisioningCluster)
		g.Expect(input.ClusterProxy.GetClient().Get(ctx, client.ObjectKey{Namespace: input.Namespace, Name: input.Name}, cluster)).To(Succeed())

		ready, _, _ := unstructured.NestedBool(cluster.Object, "status", "ready")
		g.Expect(ready).To(BeTrue(), "cluster %s is not ready", input.Name)
	}, input.WaitInterval...).Should(Succeed())
}

// RancherSetFeatureInput is the input to RancherSetFeature.
type RancherSetFeatureInput struct {
	ClusterProxy framework.ClusterProxy
	Name         string
	Value        bool
}

// RancherSetFeature flips a Rancher feature flag. Rancher restarts itself for features that
// are not dynamic, so callers should wait for the API afterwards.
func RancherSetFeature(ctx context.Context, input RancherSetFeatureInput) {
	Expect(input.ClusterProxy).ToNot(BeNil(), "Invalid argument. input.ClusterProxy can't be nil when calling RancherSetFeature")
	Expect(input.Name).ToNot(BeEmpty(), "Invalid argument. input.Name can't be empty when calling RancherSetFeature")

	PatchResource(ctx, PatchResourceInput{
		ClusterProxy:     input.ClusterProxy,
		GroupVersionKind: gvkFeature,
		Name:             input.Name,
		Patch:            map[string]interface{}{"spec.value": input.Value},
	})
}

// RancherFeatureEnabled returns the effective value of a feature flag.
func RancherFeatureEnabled(ctx context.Context, proxy framework.ClusterProxy, name string) bool {
	feature := &unstructured.Unstructured{}
	feature.SetGroupVersionKind(gvkFeature)
	Expect(proxy.GetClient().Get(ctx, client.ObjectKey{Name: name}, feature)).To(Succeed(), "Failed to get feature %s", name)

	if value, found, _ := unstructured.NestedBool(feature.Object, "spec", "value"); found {
		return value
	}

	value, _, _ := unstructured.NestedBool(feature.Object, "status", "default")

	return value
}

// RancherCreateClusterRepoInput is the input to RancherCreateClusterRepo.
type RancherCreateClusterRepoInput struct {
	ClusterProxy framework.ClusterProxy
	Name         string
	// URL is an http(s) or oci:// chart repository URL.
	URL          string
	WaitInterval []interface{} `envDefault:"5m,10s"`
}

// RancherCreateClusterRepo adds a chart repository to Rancher's Apps and waits for it to be
// downloaded. OCI repositories have no index to download, so they are only created.
func RancherCreateClusterRepo(ctx context.Context, input RancherCreateClusterRepoInput) {
	Expect(Parse(&input)).To(Succeed(), "Failed to parse environment variables")
	Expect(input.ClusterProxy).ToNot(BeNil(), "Invalid argument. input.ClusterProxy can't be nil when calling RancherCreateClusterRepo")
	Expect(input.Name).ToNot(BeEmpty(), "Invalid argument. input.Name can't be empty when calling RancherCreateClusterRepo")

	u, err := url.Parse(input.URL)
	Expect(err).NotTo(HaveOccurred(), "Invalid repository URL %s", input.URL)

	Byf("Adding chart repository %s (%s)", input.Name, input.URL)

	repo := &unstructured.Unstructured{}
	repo.SetGroupVersionKind(gvkClusterRepo)
	repo.SetName(input.Name)
	Expect(unstructured.SetNestedField(repo.Object, input.URL, "spec", "url")).To(Succeed())
	if u.Scheme == "http" {
		Expect(unstructured.SetNestedField(repo.Object, true, "spec", "insecurePlainHttp")).To(Succeed())
	}

	Eventually(func() error {
		return client.IgnoreAlreadyExists(input.ClusterProxy.GetClient().Create(ctx, repo.DeepCopy()))
	}, retryableOperationTimeout, retryableOperationInterval).Should(Succeed(), "Failed to create ClusterRepo %s", input.Name)

	if u.Scheme == "oci" {
		return
	}

	Eventually(func(g Gomega) {
		current := &unstructured.Unstructured{}
		current.SetGroupVersionKind(gvkClusterRepo)
		g.Expect(input.ClusterProxy.GetClient().Get(ctx, types.NamespacedName{Name: input.Name}, current)).To(Succeed())
		g.Expect(ConditionStatus(current, "Downloaded")).To(Equal("True"))
	}, input.WaitInterval...).Should(Succeed(), "ClusterRepo %s was not downloaded", input.Name)
}

// SetClusterAutoImport toggles auto-import on a single CAPI cluster.
func SetClusterAutoImport(ctx context.Context, proxy framework.ClusterProxy, key types.NamespacedName, enabled bool) {
	Byf("Setting auto-import=%t on cluster %s", enabled, key)

	PatchResource(ctx, PatchResourceInput{
		ClusterProxy:     proxy,
		GroupVersionKind: gvkCAPICluster,
		Name:             key.Name,
		Namespace:        key.Namespace,
		Patch: map[string]interface{}{
			"metadata.labels": map[string]interface{}{AutoImportLabel: strconv.FormatBool(enabled)},
		},
	})
}

func writeTempKubeconfig(content []byte) (string, error) {
	tempFile, err := os.CreateTemp("", "kubeconfig")
	if err != nil {
		return "", err
	}
	defer tempFile.Close()

	if _, err := tempFile.Write(content); err != nil {
		return "", err
	}

	return tempFile.Name(), nil
}
