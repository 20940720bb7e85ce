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

	. "github.com/onsi/gomega"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
	capiframework "sigs.k8s.io/cluster-api/test/framework"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

const (
	// WranglerManagedCertificatesCondition is reported by a CAPIProvider once its webhook
	// certificates are issued by Rancher instead of cert-manager.
	WranglerManagedCertificatesCondition = "WranglerManagedCertificates"

	certManagerInjectAnnotation = "cert-manager.io/inject-ca-from"
)

var webhookKinds = []schema.GroupVersionKind{
	{Group: "apiextensions.k8s.io", Version: "v1", Kind: "CustomResourceDefinition"},
	{Group: "admissionregistration.k8s.io", Version: "v1", Kind: "MutatingWebhookConfiguration"},
	{Group: "admissionregistration.k8s.io", Version: "v1", Kind: "ValidatingWebhookConfiguration"},
}

// VerifyWranglerManagedProviderInput is the input to VerifyWranglerManagedProvider.
type VerifyWranglerManagedProviderInput struct {
	Client client.Client
	// ProviderLabel is the value of the cluster.x-k8s.io/provider label, for example "infrastructure-docker".
	ProviderLabel string
	Namespace     string
}

// VerifyWranglerManagedProvider checks a migrated provider no longer depends on cert-manager.
func VerifyWranglerManagedProvider(ctx context.Context, input VerifyWranglerManagedProviderInput) {
	Expect(input.Client).ToNot(BeNil(), "Invalid argument. input.Client can't be nil when calling VerifyWranglerManagedProvider")

	verifyNoCertManagerObjects(ctx, input.Client, input.Namespace, "Certificate")
	verifyNoCertManagerObjects(ctx, input.Client, input.Namespace, "Issuer")
	verifyNoCertManagerAnnotations(ctx, input.Client, input.ProviderLabel)
	verifyWranglerServiceAnnotations(ctx, input.Client, input.Namespace)
}

// VerifyWranglerManagedCertificates waits until a CAPIProvider reports that its webhook
// certificates are managed by Rancher.
func VerifyWranglerManagedCertificates(ctx context.Context, proxy capiframework.ClusterProxy, key types.NamespacedName, intervals ...interface{}) {
	CAPIProviderYAMLContains(ctx, proxy, key, WranglerManagedCertificatesCondition, intervals...)
}

func verifyNoCertManagerObjects(ctx context.Context, cl client.Client, namespace, kind string) {
	Byf("Verifying no cert-manager %s objects are used in namespace %s", kind, namespace)

	list := &unstructured.UnstructuredList{}
	list.SetGroupVersionKind(schema.GroupVersionKind{Group: "cert-manager.io", Version: "v1", Kind: kind + "List"})

	Expect(cl.List(ctx, list, client.InNamespace(namespace))).Should(Succeed())
	Expect(list.Items).Should(BeEmpty(), "cert-manager %s objects should not have been deployed", kind)
}

func verifyNoCertManagerAnnotations(ctx context.Context, cl client.Client, providerLabel string) {
	for _, kind := range webhookKinds {
		list := &unstructured.UnstructuredList{}
		list.SetGroupVersionKind(kind.GroupVersion().WithKind(kind.Kind + "List"))

		Byf("Verifying %s objects of provider %s have no cert-manager annotations", kind.Kind, providerLabel)
		Expect(cl.List(ctx, list, client.MatchingLabels{"cluster.x-k8s.io/provider": providerLabel})).Should(Succeed())
		Expect(list.Items).ShouldNot(BeEmpty(), "Could not find any %s for provider %s", kind.Kind, providerLabel)

		for i := range list.Items {
			Expect(list.Items[i].GetAnnotations()).ShouldNot(HaveKey(certManagerInjectAnnotation),
				"cert-manager annotation must be not found on %s", list.Items[i].GetName())
		}
	}
}

func verifyWranglerServiceAnnotations(ctx context.Context, cl client.Client, namespace string) {
	Byf("Verifying wrangler annotations on Services in namespace %s", namespace)

	services := &corev1.ServiceList{}
	Expect(cl.List(ctx, services, client.InNamespace(namespace))).Should(Succeed())
	Expect(services.Items).ShouldNot(BeEmpty())

	for _, service := range services.Items {
		Expect(service.GetAnnotations()).Should(HaveKey(WranglerCertAnnotation),
			"%s annotation must be found on Service %s", WranglerCertAnnotation, service.GetName())
	}
}
