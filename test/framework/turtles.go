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
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"

	. "github.com/onsi/gomega"

	appsv1 "k8s.io/api/apps/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/klog/v2"
	capiframework "sigs.k8s.io/cluster-api/test/framework"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

var gvkCAPIProvider = schema.GroupVersionKind{Group: "turtles-capi.cattle.io", Version: "v1alpha1", Kind: "CAPIProvider"}

// CAPIProviderState is the subset of a CAPIProvider the suite looks at.
type CAPIProviderState struct {
	Spec struct {
		Name    string `json:"name"`
		Type    string `json:"type"`
		Version string `json:"version"`
	} `json:"spec"`
	Status struct {
		Phase            string `json:"phase"`
		InstalledVersion string `json:"installedVersion"`
	} `json:"status"`
}

// GetCAPIProvider reads a CAPIProvider into a CAPIProviderState.
func GetCAPIProvider(ctx context.Context, c capiframework.Getter, key types.NamespacedName) (*CAPIProviderState, *unstructured.Unstructured, error) {
	obj := &unstructured.Unstructured{}
	obj.SetGroupVersionKind(gvkCAPIProvider)

	if err := c.Get(ctx, key, obj); err != nil {
		return nil, nil, err
	}

	state := &CAPIProviderState{}
	if err := runtime.DefaultUnstructuredConverter.FromUnstructured(obj.Object, state); err != nil {
		return nil, nil, fmt.Errorf("decoding CAPIProvider %s: %w", key, err)
	}

	return state, obj, nil
}

// ProviderCheck describes the row the dashboard shows for a ready provider.
type ProviderCheck struct {
	// Name is the CAPIProvider object name.
	Name      string
	Namespace string
	// Type is the provider type: infrastructure, bootstrap, controlPlane, addon...
	Type string
	// ProviderName is spec.name, defaulting to the object name.
	ProviderName string
	// Version is compared with status.installedVersion when CheckVersion is set.
	Version      string
	CheckVersion bool
}

// WaitForCAPIProviderReady waits until the provider is Ready both as a condition and as a phase.
func WaitForCAPIProviderReady(ctx context.Context, getter capiframework.Getter, check ProviderCheck, intervals ...interface{}) {
	Expect(getter).ToNot(BeNil(), "Invalid argument. getter can't be nil when calling WaitForCAPIProviderReady")
	Expect(check.Name).ToNot(BeEmpty(), "Invalid argument. check.Name can't be empty when calling WaitForCAPIProviderReady")

	key := types.NamespacedName{Name: check.Name, Namespace: check.Namespace}
	Byf("Waiting for CAPIProvider %s to be Ready", key)

	Eventually(func(g Gomega) {
		state, obj, err := GetCAPIProvider(ctx, getter, key)
		g.Expect(err).NotTo(HaveOccurred())
		g.Expect(CheckCAPIProviderState(state, obj, check)).To(Succeed())
	}, intervals...).Should(Succeed(), "CAPIProvider %s is not Ready", key)
}

// CheckCAPIProviderState compares a provider with the expected values.
func CheckCAPIProviderState(state *CAPIProviderState, obj *unstructured.Unstructured, check ProviderCheck) error {
	providerName := check.ProviderName
	if providerName == "" {
		providerName = check.Name
	}

	switch {
	case ConditionStatus(obj, "Ready") != "True":
		return fmt.Errorf("provider %s: Ready condition is %q", check.Name, ConditionStatus(obj, "Ready"))
	case state.Status.Phase != "Ready":
		return fmt.Errorf("provider %s: phase is %q", check.Name, state.Status.Phase)
	case check.Type != "" && !strings.EqualFold(state.Spec.Type, check.Type):
		return fmt.Errorf("provider %s: type is %q, expected %q", check.Name, state.Spec.Type, check.Type)
	case state.Spec.Name != "" && state.Spec.Name != providerName:
		return fmt.Errorf("provider %s: provider name is %q, expected %q", check.Name, state.Spec.Name, providerName)
	case check.CheckVersion && state.Status.InstalledVersion != check.Version:
		return fmt.Errorf("provider %s: installed version is %q, expected %q", check.Name, state.Status.InstalledVersion, check.Version)
	}

	return nil
}

// WaitForCAPIProviderRolloutInput is the input to WaitForCAPIProviderRollout.
type WaitForCAPIProviderRolloutInput struct {
	capiframework.Getter
	Deployment                      *appsv1.Deployment
	Name, Namespace, Version, Image string
}

// WaitForCAPIProviderRollout waits for the provider to report the version and for its
// controller deployment to run an image with the given prefix.
func WaitForCAPIProviderRollout(ctx context.Context, input WaitForCAPIProviderRolloutInput, intervals ...interface{}) {
	key := types.NamespacedName{
		Name:      input.Name,
		Namespace: input.Namespace,
	}

	if input.Version != "" {
		Byf("Waiting for CAPIProvider %s to be at version %s", key.String(), input.Version)
		Eventually(func(g Gomega) {
			state, _, err := GetCAPIProvider(ctx, input.Getter, key)
			g.Expect(err).NotTo(HaveOccurred())
			g.Expect(state.Status.InstalledVersion).To(Equal(input.Version))
		}, intervals...).Should(Succeed(), "Failed to get CAPIProvider %s with version %s", key.String(), input.Version)
	}

	if input.Deployment != nil && input.Image != "" {
		Byf("Waiting for Deployment %s to contain image %s", client.ObjectKeyFromObject(input.Deployment).String(), input.Image)
		Eventually(func(g Gomega) {
			g.Expect(input.Getter.Get(ctx, client.ObjectKeyFromObject(input.Deployment), input.Deployment)).To(Succeed())
			g.Expect(deploymentImages(input.Deployment)).To(ContainElement(HavePrefix(input.Image)))
		}, intervals...).Should(Succeed(),
			"Failed to get Deployment %s with image %s. Last observed: %s",
			client.ObjectKeyFromObject(input.Deployment).String(), input.Image, klog.KObj(input.Deployment))
	}
}

// VerifyCAPIProviderImageInput is the input to VerifyCAPIProviderImage.
type VerifyCAPIProviderImageInput struct {
	Lister    capiframework.Lister
	Name      string
	Namespace string
	// Registry is the prefix every controller image of the provider must have.
	Registry string `env:"PROVIDER_IMAGE_REGISTRY" envDefault:"registry.suse.com/rancher"`
}

// VerifyCAPIProviderImage checks that the controllers of a provider run images from the
// SUSE registry rather than the upstream ones.
func VerifyCAPIProviderImage(ctx context.Context, input VerifyCAPIProviderImageInput) {
	Expect(Parse(&input)).To(Succeed(), "Failed to parse environment variables")
	Expect(input.Lister).ToNot(BeNil(), "Invalid argument. input.Lister can't be nil when calling VerifyCAPIProviderImage")
	Expect(input.Namespace).ToNot(BeEmpty(), "Invalid argument. input.Namespace can't be empty when calling VerifyCAPIProviderImage")

	Byf("Verifying images of provider %s in %s come from %s", input.Name, input.Namespace, input.Registry)

	deployments := &appsv1.DeploymentList{}
	Expect(input.Lister.List(ctx, deployments, client.InNamespace(input.Namespace))).To(Succeed())
	Expect(deployments.Items).NotTo(BeEmpty(), "No controller deployment found for provider %s", input.Name)

	for i := range deployments.Items {
		for _, image := range deploymentImages(&deployments.Items[i]) {
			Expect(image).To(HavePrefix(input.Registry), "Deployment %s runs image %s", deployments.Items[i].Name, image)
		}
	}
}

func deploymentImages(d *appsv1.Deployment) []string {
	images := make([]string, 0, len(d.Spec.Template.Spec.Containers))
	for _, container := range d.Spec.Template.Spec.Containers {
		images = append(images, container.Image)
	}

	return images
}

// CAPIProviderYAMLContains checks the provider YAML shown by the dashboard contains text.
func CAPIProviderYAMLContains(ctx context.Context, proxy capiframework.ClusterProxy, key types.NamespacedName, text string, intervals ...interface{}) {
	Byf("Checking CAPIProvider %s contains %q", key, text)

	Eventually(func(g Gomega) {
		out, err := KubectlGetYAML(ctx, proxy, "capiproviders.turtles-capi.cattle.io", key.Name, key.Namespace)
		g.Expect(err).NotTo(HaveOccurred())
		g.Expect(out).To(ContainSubstring(text))
	}, intervals...).Should(Succeed())
}

// CAPIProviderSpec is used to render a CAPIProvider.
type CAPIProviderSpec struct {
	Name      string
	Namespace string
	// ProviderName is spec.name, for providers whose object name differs from it.
	ProviderName string
	Type         string
	Version      string
	// FetchURL is set for custom providers whose components come from a URL.
	FetchURL string
	// CloudCredential names a Rancher cloud credential holding the provider secrets.
	CloudCredential string
	Variables       map[string]string
}

// CreateCAPIProvider creates the CAPIProvider the way the dashboard provider form does.
func CreateCAPIProvider(ctx context.Context, proxy capiframework.ClusterProxy, spec CAPIProviderSpec) {
	Expect(proxy).ToNot(BeNil(), "Invalid argument. proxy can't be nil when calling CreateCAPIProvider")
	Expect(spec.Name).ToNot(BeEmpty(), "Invalid argument. spec.Name can't be empty when calling CreateCAPIProvider")

	Byf("Creating %s provider %s/%s", spec.Type, spec.Namespace, spec.Name)

	rendered, err := RenderCAPIProvider(spec)
	Expect(err).NotTo(HaveOccurred())

	Eventually(func() error {
		return Apply(ctx, proxy, rendered)
	}, retryableOperationTimeout, retryableOperationInterval).Should(Succeed(), "Failed to create CAPIProvider %s", spec.Name)
}

// KubeadmComponentsURL is the upstream release asset holding a kubeadm provider.
// providerType is "bootstrap" or "control-plane".
func KubeadmComponentsURL(version, providerType string) string {
	return fmt.Sprintf("https://github.com/kubernetes-sigs/cluster-api/releases/%s/%s-components.yaml", version, providerType)
}

// CreateCustomCAPIProvider creates a kubeadm provider whose components are fetched from the
// upstream release of spec.Version.
func CreateCustomCAPIProvider(ctx context.Context, proxy capiframework.ClusterProxy, spec CAPIProviderSpec) {
	Expect(spec.Version).ToNot(BeEmpty(), "Version is required for CreateCustomCAPIProvider")

	spec.FetchURL = KubeadmComponentsURL(spec.Version, componentsName(spec.Type))
	CreateCAPIProvider(ctx, proxy, spec)
}

// componentsName maps a CAPIProvider type to the prefix of its release asset.
func componentsName(providerType string) string {
	if providerType == "controlPlane" {
		return "control-plane"
	}

	return providerType
}

// RenderCAPIProvider renders a CAPIProvider manifest.
func RenderCAPIProvider(spec CAPIProviderSpec) ([]byte, error) {
	if spec.ProviderName == "" {
		spec.ProviderName = spec.Name
	}

	t, err := template.New("capiprovider").Parse(capiProviderTemplate)
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	if err := t.Execute(&out, spec); err != nil {
		return nil, fmt.Errorf("rendering CAPIProvider %s: %w", spec.Name, err)
	}

	return out.Bytes(), nil
}

// DeleteCAPIProvider removes a provider, ignoring it when already gone.
func DeleteCAPIProvider(ctx context.Context, c client.Client, key types.NamespacedName) {
	DeleteResourcesIfExist(ctx, c, ResourceRef{GroupVersionKind: gvkCAPIProvider, Name: key.Name, Namespace: key.Namespace})
}

const capiProviderTemplate = `apiVersion: turtles-capi.cattle.io/v1alpha1
kind: CAPIProvider
metadata:
  name: {{ .Name }}
  namespace: {{ .Namespace }}
spec:
  name: {{ .ProviderName }}
  type: {{ .Type }}
  {{- if .Version }}
  version: {{ .Version }}
  {{- end }}
  {{- if .FetchURL }}
  fetchConfig:
    url: {{ .FetchURL }}
  {{- end }}
  {{- if .CloudCredential }}
  credentials:
    rancherCloudCredential: {{ .CloudCredential }}
  {{- end }}
  {{- if .Variables }}
  variables:
  {{- range $k, $v := .Variables }}
    {{ $k }}: "{{ $v }}"
  {{- end }}
  {{- end }}
`
