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
	"strconv"
	"time"

	. "github.com/onsi/gomega"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/klog/v2"
	"sigs.k8s.io/cluster-api/test/framework"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

const (
	retryableOperationInterval = 3 * time.Second
	retryableOperationTimeout  = 3 * time.Minute
)

// GetNodeAddressInput is th einput to GetNodeAddress.
type GetNodeAddressInput struct {
	Lister       framework.Lister
	NodeIndex    int
	AddressIndex int
}

// GetNodeAddress gets the address for a node based on index.
func GetNodeAddress(ctx context.Context, input GetNodeAddressInput) string {
	Expect(ctx).NotTo(BeNil(), "ctx is required for GetNodeAddress")
	Expect(input.Lister).ToNot(BeNil(), "Invalid argument. input.Lister can't be nil when calling GetNodeAddress")

	nodeList := &corev1.NodeList{}
	Eventually(func() error {
		return input.Lister.List(ctx, nodeList)
	}, retryableOperationTimeout, retryableOperationInterval).Should(Succeed(), "Failed to list nodes")

	Expect(nodeList.Items).NotTo(BeEmpty(), "Expected there to be at least 1 node")
	Expect(input.NodeIndex).To(BeNumerically("<", len(nodeList.Items)), "Node index is greater than number of nodes")
	node := nodeList.Items[input.NodeIndex]

	Expect(input.AddressIndex).To(BeNumerically("<", len(node.Status.Addresses)), "Address index is greater than number of node addresses")
	return node.Status.Addresses[input.AddressIndex].Address
}

// CreateSecretInput is the input to CreateSecret.
type CreateSecretInput struct {
	Creator     framework.Creator
	Name        string
	Namespace   string
	Type        corev1.SecretType
	Data        map[string]string
	Labels      map[string]string
	Annotations map[string]string
}

// CreateSecret will create a new Kubernetes secret. An existing secret with the same name is kept.
func CreateSecret(ctx context.Context, input CreateSecretInput) {
	Expect(ctx).NotTo(BeNil(), "ctx is required for CreateSecret")
	Expect(input.Creator).ToNot(BeNil(), "Invalid argument. input.Creator can't be nil when calling CreateSecret")
	Expect(input.Name).ToNot(BeEmpty(), "Invalid argument. input.Name can't be empty when calling CreateSecret")

	if input.Namespace == "" {
		input.Namespace = DefaultNamespace
	}

	secret := &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{
			Name:        input.Name,
			Namespace:   input.Namespace,
			Labels:      input.Labels,
			Annotations: input.Annotations,
		},
		StringData: input.Data,
		Type:       input.Type,
	}

	Eventually(func() error {
		err := input.Creator.Create(ctx, secret.DeepCopy())
		if apierrors.IsAlreadyExists(err) {
			return nil
		}
		return err
	}, retryableOperationTimeout, retryableOperationInterval).Should(Succeed(), "Failed to create secret %s", klog.KObj(secret))
}

// SetNamespaceLabelsInput is the input to SetNamespaceLabels.
type SetNamespaceLabelsInput struct {
	ClusterProxy framework.ClusterProxy
	Name         string
	Labels       map[string]string
	// Remove lists label keys to drop from the namespace.
	Remove []string
}

// SetNamespaceLabels adds and removes labels on a namespace.
func SetNamespaceLabels(ctx context.Context, input SetNamespaceLabelsInput) {
	Expect(ctx).NotTo(BeNil(), "ctx is required for SetNamespaceLabels")
	Expect(input.ClusterProxy).ToNot(BeNil(), "Invalid argument. input.ClusterProxy can't be nil when calling SetNamespaceLabels")
	Expect(input.Name).ToNot(BeEmpty(), "Invalid argument. input.Name can't be empty when calling SetNamespaceLabels")

	if len(input.Labels) == 0 && len(input.Remove) == 0 {
		return
	}

	Eventually(func() error {
		ns := &corev1.Namespace{}
		if err := input.ClusterProxy.GetClient().Get(ctx, types.NamespacedName{Name: input.Name}, ns); err != nil {
			return err
		}

		namespaceCopy := ns.DeepCopy()
		if namespaceCopy.Labels == nil {
			namespaceCopy.Labels = map[string]string{}
		}

		for name, val := range input.Labels {
			namespaceCopy.Labels[name] = val
		}
		for _, name := range input.Remove {
			delete(namespaceCopy.Labels, name)
		}

		return input.ClusterProxy.GetClient().Update(ctx, namespaceCopy)
	}, retryableOperationTimeout, retryableOperationInterval).Should(Succeed(), "Failed to update labels of namespace %s", input.Name)
}

// SetNamespaceAutoImportInput is the input to SetNamespaceAutoImport.
type SetNamespaceAutoImportInput struct {
	ClusterProxy framework.ClusterProxy
	Name         string
	Enabled      bool
}

// SetNamespaceAutoImport toggles Rancher auto-import for every CAPI cluster of a namespace.
// This is what the "Enable/Disable Auto-Import" namespace action does in the dashboard.
func SetNamespaceAutoImport(ctx context.Context, input SetNamespaceAutoImportInput) {
	Byf("Setting auto-import=%t on namespace %s", input.Enabled, input.Name)

	SetNamespaceLabels(ctx, SetNamespaceLabelsInput{
		ClusterProxy: input.ClusterProxy,
		Name:         input.Name,
		Labels:       map[string]string{AutoImportLabel: strconv.FormatBool(input.Enabled)},
	})
}

// ResourceRef identifies a namespaced or cluster scoped object by kind.
type ResourceRef struct {
	GroupVersionKind schema.GroupVersionKind
	Name             string
	Namespace        string
}

func (r ResourceRef) String() string {
	if r.Namespace == "" {
		return fmt.Sprintf("%s %s", r.GroupVersionKind.Kind, r.Name)
	}
	return fmt.Sprintf("%s %s/%s", r.GroupVersionKind.Kind, r.Namespace, r.Name)
}

// DeleteResourcesIfExist deletes the objects one by one. Missing objects and kinds that
// are not served by the cluster are skipped, so it can run as a best-effort cleanup.
func DeleteResourcesIfExist(ctx context.Context, c client.Client, refs ...ResourceRef) {
	log := log.FromContext(ctx)

	for _, ref := range refs {
		obj := &unstructured.Unstructured{}
		obj.SetGroupVersionKind(ref.GroupVersionKind)
		obj.SetName(ref.Name)
		obj.SetNamespace(ref.Namespace)

		err := c.Delete(ctx, obj)
		switch {
		case err == nil:
			Byf("Deleted %s", ref)
		case apierrors.IsNotFound(err), meta.IsNoMatchError(err):
			log.Info("Resource already gone", "resource", ref.String())
		default:
			log.Error(err, "Failed to delete resource", "resource", ref.String())
		}
	}
}

// ConditionStatus returns the status of the condition with the given type, or an empty
// string when the object doesn't carry it.
func ConditionStatus(obj *unstructured.Unstructured, conditionType string) string {
	conditions, _, _ := unstructured.NestedSlice(obj.Object, "status", "conditions")
	for _, c := range conditions {
		condition, ok := c.(map[string]interface{})
		if !ok {
			continue
		}

		if condition["type"] == conditionType {
			status, _ := condition["status"].(string)
			return status
		}
	}

	return ""
}

// WaitForResourceConditionInput is the input to WaitForResourceCondition.
type WaitForResourceConditionInput struct {
	ClusterProxy framework.ClusterProxy
	// Resource is the kubectl resource name, for example "deployment/rancher".
	Resource  string
	Namespace string
	Condition string `envDefault:"Available"`
	Timeout   string `envDefault:"300s"`
}

// WaitForResourceCondition waits for the resource to be created and then for the condition,
// both through kubectl wait.
func WaitForResourceCondition(ctx context.Context, input WaitForResourceConditionInput) {
	Expect(Parse(&input)).To(Succeed(), "Failed to parse environment variables")
	Expect(input.ClusterProxy).ToNot(BeNil(), "Invalid argument. input.ClusterProxy can't be nil when calling WaitForResourceCondition")
	Expect(input.Resource).ToNot(BeEmpty(), "Invalid argument. input.Resource can't be empty when calling WaitForResourceCondition")

	base := []string{"wait", "--kubeconfig", input.ClusterProxy.GetKubeconfigPath(), input.Resource, "--timeout=" + input.Timeout}
	if input.Namespace != "" {
		base = append(base, "-n", input.Namespace)
	}

	Byf("Waiting for %s to be created", input.Resource)
	_, err := runKubectl(ctx, nil, append(base, "--for=create")...)
	Expect(withStderr(err)).NotTo(HaveOccurred(), "%s was not created", input.Resource)

	Byf("Waiting for %s to be %s", input.Resource, input.Condition)
	_, err = runKubectl(ctx, nil, append(base, "--for=condition="+input.Condition)...)
	Expect(withStderr(err)).NotTo(HaveOccurred(), "%s did not reach condition %s", input.Resource, input.Condition)
}
