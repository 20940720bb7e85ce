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
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"sigs.k8s.io/yaml"
)

func readyProvider(conditionStatus string) (*CAPIProviderState, *unstructured.Unstructured) {
	state := &CAPIProviderState{}
	state.Spec.Name = "kubeadm-control-plane"
	state.Spec.Type = "controlPlane"
	state.Status.Phase = "Ready"
	state.Status.InstalledVersion = "v1.10.6"

	obj := &unstructured.Unstructured{Object: map[string]interface{}{
		"status": map[string]interface{}{
			"conditions": []interface{}{
				map[string]interface{}{"type": "ProviderInstalled", "status": "True"},
				map[string]interface{}{"type": "Ready", "status": conditionStatus},
			},
		},
	}}

	return state, obj
}

var _ = Describe("CAPIProvider", func() {
	check := ProviderCheck{
		Name:         "kubeadm-control-plane",
		Namespace:    "capi-kubeadm-control-plane-system",
		Type:         "controlPlane",
		Version:      "v1.10.6",
		CheckVersion: true,
	}

	It("should accept a ready provider", func() {
		state, obj := readyProvider("True")
		Expect(CheckCAPIProviderState(state, obj, check)).To(Succeed())
	})

	It("should compare the type case-insensitively", func() {
		state, obj := readyProvider("True")
		c := check
		c.Type = "ControlPlane"
		Expect(CheckCAPIProviderState(state, obj, c)).To(Succeed())
	})

	It("should reject a provider that is not ready", func() {
		state, obj := readyProvider("False")
		Expect(CheckCAPIProviderState(state, obj, check)).To(MatchError(ContainSubstring("Ready condition")))

		state, obj = readyProvider("True")
		state.Status.Phase = "Provisioning"
		Expect(CheckCAPIProviderState(state, obj, check)).To(MatchError(ContainSubstring("phase")))
	})

	It("should only check the version when asked", func() {
		state, obj := readyProvider("True")
		state.Status.InstalledVersion = "v1.9.0"
		Expect(CheckCAPIProviderState(state, obj, check)).To(MatchError(ContainSubstring("installed version")))

		c := check
		c.CheckVersion = false
		Expect(CheckCAPIProviderState(state, obj, c)).To(Succeed())
	})

	It("should use ProviderName when the object name differs", func() {
		state, obj := readyProvider("True")
		state.Spec.Name = "docker"
		c := ProviderCheck{Name: "capd", ProviderName: "docker", Type: "infrastructure"}
		state.Spec.Type = "infrastructure"
		Expect(CheckCAPIProviderState(state, obj, c)).To(Succeed())

		c.ProviderName = ""
		Expect(CheckCAPIProviderState(state, obj, c)).To(MatchError(ContainSubstring("provider name")))
	})

	It("should render a custom provider", func() {
		out, err := RenderCAPIProvider(CAPIProviderSpec{
			Name:      "kubeadm-bootstrap",
			Namespace: "capi-kubeadm-bootstrap-system",
			Type:      "bootstrap",
			Version:   "v1.10.6",
			FetchURL:  KubeadmComponentsURL("v1.10.6", "bootstrap"),
			Variables: map[string]string{"EXP_CLUSTER_RESOURCE_SET": "true"},
		})
		Expect(err).NotTo(HaveOccurred())

		obj := &unstructured.Unstructured{}
		Expect(yaml.Unmarshal(out, &obj.Object)).To(Succeed())
		Expect(obj.GetKind()).To(Equal("CAPIProvider"))

		spec := obj.Object["spec"].(map[string]interface{})
		Expect(spec).To(HaveKeyWithValue("name", "kubeadm-bootstrap"))
		Expect(spec).To(HaveKeyWithValue("type", "bootstrap"))
		Expect(spec).To(HaveKeyWithValue("fetchConfig", HaveKeyWithValue("url",
			"https://github.com/kubernetes-sigs/cluster-api/releases/v1.10.6/bootstrap-components.yaml")))
		Expect(spec).To(HaveKeyWithValue("variables", HaveKeyWithValue("EXP_CLUSTER_RESOURCE_SET", "true")))
		Expect(spec).NotTo(HaveKey("credentials"))
	})

	It("should reference the cloud credential", func() {
		out, err := RenderCAPIProvider(CAPIProviderSpec{
			Name:            "aws",
			Namespace:       "capa-system",
			Type:            "infrastructure",
			CloudCredential: "aws-creds",
		})
		Expect(err).NotTo(HaveOccurred())

		obj := map[string]interface{}{}
		Expect(yaml.Unmarshal(out, &obj)).To(Succeed())
		Expect(obj["spec"]).To(HaveKeyWithValue("credentials", HaveKeyWithValue("rancherCloudCredential", "aws-creds")))
		Expect(obj["spec"]).NotTo(HaveKey("version"))
	})

	It("should fetch control planes from the control-plane release asset", func() {
		Expect(KubeadmComponentsURL("v1.10.6", componentsName("controlPlane"))).To(Equal(
			"https://github.com/kubernetes-sigs/cluster-api/releases/v1.10.6/control-plane-components.yaml"))
		Expect(componentsName("bootstrap")).To(Equal("bootstrap"))
	})
})
