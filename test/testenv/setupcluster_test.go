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
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

var _ = Describe("Management cluster", func() {
	It("should build the magic DNS hostname from the internal IP", func() {
		node := corev1.Node{
			ObjectMeta: metav1.ObjectMeta{Name: "bootstrap-control-plane"},
			Status: corev1.NodeStatus{Addresses: []corev1.NodeAddress{
				{Type: corev1.NodeHostName, Address: "bootstrap-control-plane"},
				{Type: corev1.NodeInternalIP, Address: "172.18.0.2"},
			}},
		}

		hostname, err := NodeMagicDNSHostname(node)
		Expect(err).ToNot(HaveOccurred())
		Expect(hostname).To(Equal("172.18.0.2.sslip.io"))
	})

	It("should fail for a node without an internal IP", func() {
		_, err := NodeMagicDNSHostname(corev1.Node{ObjectMeta: metav1.ObjectMeta{Name: "node"}})
		Expect(err).To(MatchError(ContainSubstring("no internal IP")))
	})

	It("should expose HTTP and HTTPS on the host", func() {
		Expect(KindPortMappings()).To(ConsistOf(
			HaveField("HostPort", BeEquivalentTo(80)),
			HaveField("HostPort", BeEquivalentTo(443)),
		))
	})

	It("should randomize the cluster name", func() {
		name := createClusterName("turtles-e2e")
		Expect(name).To(MatchRegexp(`^turtles-e2e-[a-z0-9]{6}$`))
		Expect(createClusterName("turtles-e2e")).ToNot(Equal(name))
	})
})

var _ = Describe("Class clusters", func() {
	It("should export the cluster variables and let callers override them", func() {
		vars := ClassClusterVariables(ImportClassClusterInput{
			ClusterName:                 "turtles-qa-docker-kubeadm-abc",
			Namespace:                   "capi-clusters",
			ClassNamespace:              "capi-classes",
			KubernetesVersion:           "v1.33.1",
			AdditionalTemplateVariables: map[string]string{"WORKER_MACHINE_COUNT": "1"},
		})

		Expect(vars).To(HaveKeyWithValue("CLUSTER_NAME", "turtles-qa-docker-kubeadm-abc"))
		Expect(vars).To(HaveKeyWithValue("TOPOLOGY_NAMESPACE", "capi-classes"))
		Expect(vars).To(HaveKeyWithValue("KUBERNETES_VERSION", "v1.33.1"))
		Expect(vars).To(HaveKeyWithValue("WORKER_MACHINE_COUNT", "1"))
	})
})

var _ = Describe("Provider identities", func() {
	It("should reference the client secret next to the provider", func() {
		identity := AzureClusterIdentity(AzureIdentityInput{ClientID: "client", TenantID: "tenant", Namespace: "capi-clusters"})

		Expect(identity.GetKind()).To(Equal("AzureClusterIdentity"))
		Expect(identity.GetNamespace()).To(Equal("capi-clusters"))
		Expect(identity.Object).To(HaveKeyWithValue("spec", SatisfyAll(
			HaveKeyWithValue("clientID", "client"),
			HaveKeyWithValue("tenantID", "tenant"),
			HaveKeyWithValue("clientSecret", HaveKeyWithValue("namespace", "capz-system")),
		)))
	})

	It("should create a cluster scoped AWS identity", func() {
		identity := AWSClusterStaticIdentity()
		Expect(identity.GetNamespace()).To(BeEmpty())
		Expect(identity.GetAPIVersion()).To(Equal("infrastructure.cluster.x-k8s.io/v1beta2"))
	})

	It("should render the CAPZ helm values", func() {
		values := CAPZValues(CAPZValuesSecretInput{
			AzureIdentityInput: AzureIdentityInput{Location: "westeurope", ClientID: "client", TenantID: "tenant", SubscriptionID: "sub"},
			ValuesTemplate:     []byte("location: replace_location\nclientID: replace_client_id\ntenantID: replace_tenant_id\nsubscriptionID: replace_subscription_id\n"),
		})
		Expect(string(values)).To(Equal("location: westeurope\nclientID: client\ntenantID: tenant\nsubscriptionID: sub\n"))
	})
})
