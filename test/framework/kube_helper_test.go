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

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"
)

var _ = Describe("Kubernetes helpers", func() {
	It("should read condition status", func() {
		obj := &unstructured.Unstructured{Object: map[string]interface{}{
			"status": map[string]interface{}{
				"conditions": []interface{}{
					map[string]interface{}{"type": "Ready", "status": "False"},
					"garbage",
				},
			},
		}}

		Expect(ConditionStatus(obj, "Ready")).To(Equal("False"))
		Expect(ConditionStatus(obj, "Available")).To(BeEmpty())
		Expect(ConditionStatus(&unstructured.Unstructured{Object: map[string]interface{}{}}, "Ready")).To(BeEmpty())
	})

	It("should delete existing resources and skip missing ones", func() {
		cm := &corev1.ConfigMap{ObjectMeta: metav1.ObjectMeta{Name: "present", Namespace: "default"}}
		c := fake.NewClientBuilder().WithObjects(cm).Build()

		gvk := corev1.SchemeGroupVersion.WithKind("ConfigMap")
		DeleteResourcesIfExist(ctx, c,
			ResourceRef{GroupVersionKind: gvk, Name: "missing", Namespace: "default"},
			ResourceRef{GroupVersionKind: gvk, Name: "present", Namespace: "default"},
		)

		err := c.Get(ctx, types.NamespacedName{Name: "present", Namespace: "default"}, &corev1.ConfigMap{})
		Expect(apierrors.IsNotFound(err)).To(BeTrue())
	})

	It("should describe resource references", func() {
		gvk := corev1.SchemeGroupVersion.WithKind("Namespace")
		Expect(ResourceRef{GroupVersionKind: gvk, Name: "capi-clusters"}.String()).To(Equal("Namespace capi-clusters"))

		gvk = corev1.SchemeGroupVersion.WithKind("Secret")
		Expect(ResourceRef{GroupVersionKind: gvk, Name: "s", Namespace: "ns"}.String()).To(Equal("Secret ns/s"))
	})

	It("should accept provider images from the expected registry", func() {
		deployment := func(name, image string) *appsv1.Deployment {
			d := &appsv1.Deployment{ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: "capa-system"}}
			d.Spec.Template.Spec.Containers = []corev1.Container{{Name: "manager", Image: image}}
			return d
		}

		c := fake.NewClientBuilder().WithObjects(
			deployment("capa-controller-manager", "registry.suse.com/rancher/cluster-api-aws-controller:v2.8.1"),
		).Build()

		VerifyCAPIProviderImage(ctx, VerifyCAPIProviderImageInput{
			Lister:    c,
			Name:      "aws",
			Namespace: "capa-system",
		})
		Expect(deploymentImages(deployment("d", "a"))).To(Equal([]string{"a"}))
	})
})
