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
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"sigs.k8s.io/cluster-api/test/framework"

	turtlesframework "github.com/rancher/turtles-e2e/test/framework"
)

const (
	retryableOperationTimeout  = 2 * time.Minute
	retryableOperationInterval = 5 * time.Second
)

// AzureIdentityInput carries the service principal used by CAPZ.
type AzureIdentityInput struct {
	BootstrapClusterProxy framework.ClusterProxy

	ClientID       string `env:"AZURE_CLIENT_ID"`
	ClientSecret   string `env:"AZURE_CLIENT_SECRET"`
	TenantID       string `env:"AZURE_TENANT_ID"`
	SubscriptionID string `env:"AZURE_SUBSCRIPTION_ID"`
	Location       string `env:"AZURE_LOCATION" envDefault:"westeurope"`

	// Namespace holds the AzureClusterIdentity. The secret always lives next to the provider.
	Namespace string `envDefault:"capi-clusters"`
}

// CreateAzureClusterIdentitySecret creates the client secret referenced by the AzureClusterIdentity.
// It is kept out of the class helm values so that cluster deletion doesn't depend on it.
func CreateAzureClusterIdentitySecret(ctx context.Context, input AzureIdentityInput) {
	Expect(turtlesframework.Parse(&input)).To(Succeed(), "Failed to parse environment variables")
	Expect(input.BootstrapClusterProxy).ToNot(BeNil(), "BootstrapClusterProxy is required for CreateAzureClusterIdentitySecret")
	Expect(input.ClientSecret).ToNot(BeEmpty(), "AZURE_CLIENT_SECRET is required for CreateAzureClusterIdentitySecret")

	turtlesframework.Byf("Creating Azure client secret %s/%s", namespaceCAPZSystem, clusterIdentityName)
	turtlesframework.CreateSecret(ctx, turtlesframework.CreateSecretInput{
		Creator:   input.BootstrapClusterProxy.GetClient(),
		Name:      clusterIdentityName,
		Namespace: namespaceCAPZSystem,
		Type:      corev1.SecretTypeOpaque,
		Data:      map[string]string{"clientSecret": input.ClientSecret},
	})
}

// CreateAzureClusterIdentity creates the client secret and a ServicePrincipal AzureClusterIdentity
// usable from any namespace.
func CreateAzureClusterIdentity(ctx context.Context, input AzureIdentityInput) {
	Expect(turtlesframework.Parse(&input)).To(Succeed(), "Failed to parse environment variables")
	Expect(input.ClientID).ToNot(BeEmpty(), "AZURE_CLIENT_ID is required for CreateAzureClusterIdentity")
	Expect(input.TenantID).ToNot(BeEmpty(), "AZURE_TENANT_ID is required for CreateAzureClusterIdentity")

	CreateAzureClusterIdentitySecret(ctx, input)

	By("Creating AzureClusterIdentity")
	createIfMissing(ctx, input.BootstrapClusterProxy, AzureClusterIdentity(input))
}

// AzureClusterIdentity builds the identity object for input.
func AzureClusterIdentity(input AzureIdentityInput) *unstructured.Unstructured {
	identity := &unstructured.Unstructured{Object: map[string]interface{}{
		"spec": map[string]interface{}{
			"type":     "ServicePrincipal",
			"clientID": input.ClientID,
			"tenantID": input.TenantID,
			"clientSecret": map[string]interface{}{
				"name":      clusterIdentityName,
				"namespace": namespaceCAPZSystem,
			},
			"allowedNamespaces": map[string]interface{}{},
		},
	}}
	identity.SetGroupVersionKind(gvkAzureClusterIdentity)
	identity.SetName(clusterIdentityName)
	identity.SetNamespace(input.Namespace)
	identity.SetLabels(map[string]string{"clusterctl.cluster.x-k8s.io/move-hierarchy": "true"})

	return identity
}

// CAPZValuesSecretInput is the input to CreateCAPZValuesSecret.
type CAPZValuesSecretInput struct {
	AzureIdentityInput

	// ValuesTemplate is the helm values document with replace_* placeholders.
	ValuesTemplate []byte

	// SecretTemplate is the Secret manifest with a replace_values placeholder.
	SecretTemplate []byte
}

// CAPZValues renders the helm values of the Azure cloud controller manager.
func CAPZValues(input CAPZValuesSecretInput) []byte {
	return turtlesframework.ReplacePlaceholders(input.ValuesTemplate, map[string]string{
		"replace_location":        input.Location,
		"replace_client_id":       input.ClientID,
		"replace_tenant_id":       input.TenantID,
		"replace_subscription_id": input.SubscriptionID,
	})
}

// CreateCAPZValuesSecret imports a Secret holding the base64 encoded helm values.
func CreateCAPZValuesSecret(ctx context.Context, input CAPZValuesSecretInput) {
	Expect(turtlesframework.Parse(&input.AzureIdentityInput)).To(Succeed(), "Failed to parse environment variables")
	Expect(input.BootstrapClusterProxy).ToNot(BeNil(), "BootstrapClusterProxy is required for CreateCAPZValuesSecret")
	Expect(input.ValuesTemplate).ToNot(BeEmpty(), "ValuesTemplate is required for CreateCAPZValuesSecret")
	Expect(input.SecretTemplate).ToNot(BeEmpty(), "SecretTemplate is required for CreateCAPZValuesSecret")

	secret := turtlesframework.ReplacePlaceholders(input.SecretTemplate, map[string]string{
		"replace_values": turtlesframework.EncodeBase64(string(CAPZValues(input))),
	})

	By("Creating CAPZ helm values secret")
	Eventually(func() error {
		return turtlesframework.Apply(ctx, input.BootstrapClusterProxy, secret)
	}, retryableOperationTimeout, retryableOperationInterval).Should(Succeed())
}

// AWSIdentityInput carries the static credentials used by CAPA.
type AWSIdentityInput struct {
	BootstrapClusterProxy framework.ClusterProxy

	AccessKeyID     string `env:"AWS_ACCESS_KEY"`
	SecretAccessKey string `env:"AWS_SECRET_KEY"`
}

// CreateAWSClusterStaticIdentity creates the credentials secret in the provider namespace and a
// cluster scoped AWSClusterStaticIdentity pointing at it.
func CreateAWSClusterStaticIdentity(ctx context.Context, input AWSIdentityInput) {
	Expect(turtlesframework.Parse(&input)).To(Succeed(), "Failed to parse environment variables")
	Expect(input.BootstrapClusterProxy).ToNot(BeNil(), "BootstrapClusterProxy is required for CreateAWSClusterStaticIdentity")
	Expect(input.AccessKeyID).ToNot(BeEmpty(), "AWS_ACCESS_KEY is required for CreateAWSClusterStaticIdentity")
	Expect(input.SecretAccessKey).ToNot(BeEmpty(), "AWS_SECRET_KEY is required for CreateAWSClusterStaticIdentity")

	turtlesframework.CreateSecret(ctx, turtlesframework.CreateSecretInput{
		Creator:   input.BootstrapClusterProxy.GetClient(),
		Name:      clusterIdentityName,
		Namespace: namespaceCAPASystem,
		Type:      corev1.SecretTypeOpaque,
		Data: map[string]string{
			"AccessKeyID":     input.AccessKeyID,
			"SecretAccessKey": input.SecretAccessKey,
		},
	})

	By("Creating AWSClusterStaticIdentity")
	createIfMissing(ctx, input.BootstrapClusterProxy, AWSClusterStaticIdentity())
}

// AWSClusterStaticIdentity builds the identity object. It is allowed in every namespace.
func AWSClusterStaticIdentity() *unstructured.Unstructured {
	identity := &unstructured.Unstructured{Object: map[string]interface{}{
		"spec": map[string]interface{}{
			"secretRef":         clusterIdentityName,
			"allowedNamespaces": map[string]interface{}{},
		},
	}}
	identity.SetGroupVersionKind(gvkAWSClusterStaticIdentity)
	identity.SetName(clusterIdentityName)

	return identity
}

// DockerAuthSecretInput is the input to CreateDockerAuthSecret.
type DockerAuthSecretInput struct {
	BootstrapClusterProxy framework.ClusterProxy

	Name      string `envDefault:"capd-docker-token"`
	Namespace string `envDefault:"capi-clusters"`

	Username string `env:"DOCKER_AUTH_USERNAME"`
	Password string `env:"DOCKER_AUTH_PASSWORD"`
}

// CreateDockerAuthSecret creates the registry credentials used by class clusters to avoid
// Docker Hub rate limits.
func CreateDockerAuthSecret(ctx context.Context, input DockerAuthSecretInput) {
	Expect(turtlesframework.Parse(&input)).To(Succeed(), "Failed to parse environment variables")
	Expect(input.BootstrapClusterProxy).ToNot(BeNil(), "BootstrapClusterProxy is required for CreateDockerAuthSecret")

	if input.Username == "" || input.Password == "" {
		By("Docker credentials are not set, skipping the auth secret")
		return
	}

	turtlesframework.CreateSecret(ctx, turtlesframework.CreateSecretInput{
		Creator:   input.BootstrapClusterProxy.GetClient(),
		Name:      input.Name,
		Namespace: input.Namespace,
		Type:      corev1.SecretTypeOpaque,
		Data: map[string]string{
			"username": input.Username,
			"password": input.Password,
		},
	})
}

func createIfMissing(ctx context.Context, proxy framework.ClusterProxy, obj *unstructured.Unstructured) {
	Eventually(func() error {
		err := proxy.GetClient().Create(ctx, obj.DeepCopy())
		if apierrors.IsAlreadyExists(err) {
			return nil
		}
		return err
	}, retryableOperationTimeout, retryableOperationInterval).Should(Succeed(), "Failed to create %s %s", obj.GetKind(), obj.GetName())
}
