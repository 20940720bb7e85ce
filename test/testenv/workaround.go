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

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"k8s.io/apimachinery/pkg/runtime/schema"
	"sigs.k8s.io/cluster-api/test/framework"

	turtlesframework "github.com/rancher/turtles-e2e/test/framework"
)

var (
	gvkMutatingWebhookConfiguration   = schema.GroupVersionKind{Group: "admissionregistration.k8s.io", Version: "v1", Kind: "MutatingWebhookConfiguration"}
	gvkValidatingWebhookConfiguration = schema.GroupVersionKind{Group: "admissionregistration.k8s.io", Version: "v1", Kind: "ValidatingWebhookConfiguration"}
)

// EmbeddedCAPIWorkaroundInput is the input to ApplyEmbeddedCAPIWorkaround.
type EmbeddedCAPIWorkaroundInput struct {
	BootstrapClusterProxy framework.ClusterProxy
}

// EmbeddedCAPIWorkaroundRefs lists the webhook configurations of the CAPI controllers embedded in Rancher.
func EmbeddedCAPIWorkaroundRefs() []turtlesframework.ResourceRef {
	return []turtlesframework.ResourceRef{
		{GroupVersionKind: gvkMutatingWebhookConfiguration, Name: "mutating-webhook-configuration"},
		{GroupVersionKind: gvkValidatingWebhookConfiguration, Name: "validating-webhook-configuration"},
	}
}

// ApplyEmbeddedCAPIWorkaround disables the CAPI controllers embedded in Rancher and removes their
// webhooks, so that a development Turtles chart can install its own.
func ApplyEmbeddedCAPIWorkaround(ctx context.Context, input EmbeddedCAPIWorkaroundInput) {
	Expect(input.BootstrapClusterProxy).ToNot(BeNil(), "BootstrapClusterProxy is required for ApplyEmbeddedCAPIWorkaround")

	By("Disabling the embedded-cluster-api feature")
	turtlesframework.RancherSetFeature(ctx, turtlesframework.RancherSetFeatureInput{
		ClusterProxy: input.BootstrapClusterProxy,
		Name:         turtlesframework.EmbeddedCAPIFeature,
		Value:        false,
	})

	By("Deleting the embedded CAPI webhook configurations")
	turtlesframework.DeleteResourcesIfExist(ctx, input.BootstrapClusterProxy.GetClient(), EmbeddedCAPIWorkaroundRefs()...)
}
