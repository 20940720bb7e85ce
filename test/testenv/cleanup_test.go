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
	. "github.com/onsi/gomega/gstruct"
	"github.com/onsi/gomega/types"
)

func ref(kind, name, namespace string) types.GomegaMatcher {
	return MatchFields(IgnoreExtras, Fields{
		"GroupVersionKind": HaveField("Kind", kind),
		"Name":             Equal(name),
		"Namespace":        Equal(namespace),
	})
}

var _ = Describe("Provider cleanup", func() {
	It("should remove the Azure identity and its secret", func() {
		Expect(CAPZCleanupRefs()).To(ConsistOf(
			ref("AzureClusterIdentity", "cluster-identity", "capi-clusters"),
			ref("Secret", "cluster-identity", "capz-system"),
		))
	})

	It("should remove the cluster scoped AWS identity", func() {
		Expect(CAPACleanupRefs()).To(ConsistOf(
			ref("Secret", "cluster-identity", "capa-system"),
			ref("AWSClusterStaticIdentity", "cluster-identity", ""),
		))
	})

	It("should remove the docker token only for RKE2 vSphere clusters", func() {
		Expect(CAPVCleanupRefs(CAPVKubeadm)).To(ConsistOf(
			ref("VSphereClusterIdentity", "cluster-identity", ""),
			ref("Secret", "capv-helm-values", "capv-system"),
		))
		Expect(CAPVCleanupRefs(CAPVRKE2)).To(ContainElement(ref("Secret", "capv-docker-token", "capi-clusters")))
	})

	It("should remove the CAPD CNI ClusterResourceSet", func() {
		Expect(CAPDCleanupRefs()).To(ConsistOf(
			ref("ConfigMap", "cni-docker-kubeadm-example-crs-0", "capi-classes"),
			ref("ClusterResourceSet", "docker-kubeadm-example-crs-0", "capi-classes"),
		))
	})

	It("should remove both embedded CAPI webhooks", func() {
		Expect(EmbeddedCAPIWorkaroundRefs()).To(ConsistOf(
			ref("MutatingWebhookConfiguration", "mutating-webhook-configuration", ""),
			ref("ValidatingWebhookConfiguration", "validating-webhook-configuration", ""),
		))
	})
})

var _ = Describe("Artifacts collection", func() {
	It("should pass secrets to crust-gather", func() {
		args := CollectArtifactsArgs(CollectArtifactsInput{
			ArtifactsFolder:      "/artifacts",
			BootstrapClusterName: "bootstrap",
			Path:                 "rancher",
			Secrets:              []string{"AZURE_CLIENT_SECRET"},
			SecretKeyList:        []string{"AWS_SECRET_KEY"},
		}, "/tmp/kubeconfig")

		Expect(args).To(Equal([]string{
			"crust-gather", "collect", "--kubeconfig", "/tmp/kubeconfig", "-f", "/artifacts/bootstrap/rancher", "-v", "ERROR",
			"-s", "AZURE_CLIENT_SECRET", "-s", "AWS_SECRET_KEY",
		}))
	})
})

