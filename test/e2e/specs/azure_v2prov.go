//go:build e2e
// +build e2e

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

package specs

import (
	"context"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"sigs.k8s.io/cluster-api/test/framework"
	"sigs.k8s.io/controller-runtime/pkg/envtest/komega"

	"github.com/rancher/turtles-e2e/test/e2e"
	turtlesframework "github.com/rancher/turtles-e2e/test/framework"
)

const azureCloudCredentialName = "azure"

var gvkProvisioningCluster = schema.GroupVersionKind{Group: "provisioning.cattle.io", Version: "v1", Kind: "Cluster"}

type AzureV2ProvSpecInput struct {
	BootstrapClusterProxy framework.ClusterProxy
	RancherServerURL      string
	Vars                  e2e.Vars

	RancherVersion string `env:"RANCHER_VERSION"`

	AzureClientID       string `env:"AZURE_CLIENT_ID"`
	AzureClientSecret   string `env:"AZURE_CLIENT_SECRET"`
	AzureSubscriptionID string `env:"AZURE_SUBSCRIPTION_ID"`

	ClusterName string
}

// AzureV2ProvSpec provisions an RKE2 cluster on Azure through Rancher's own provisioning, which
// runs on CAPI controllers as well. On Rancher 2.13 and newer it flips between the Turtles and the
// embedded CAPI controllers while the cluster exists, and the cluster must stay Ready.
func AzureV2ProvSpec(ctx context.Context, inputGetter func() AzureV2ProvSpecInput) {
	var (
		specName = "azure-v2prov"
		input    AzureV2ProvSpecInput
		userID   string
		ccID     string
	)

	BeforeAll(func() {
		Expect(ctx).NotTo(BeNil(), "ctx is required for %s spec", specName)
		input = inputGetter()
		Expect(turtlesframework.Parse(&input)).To(Succeed(), "Failed to parse environment variables")

		Expect(input.BootstrapClusterProxy).ToNot(BeNil(), "Invalid argument. input.BootstrapClusterProxy can't be nil when calling %s spec", specName)
		Expect(input.RancherServerURL).ToNot(BeEmpty(), "Invalid argument. input.RancherServerURL can't be empty when calling %s spec", specName)
		Expect(input.ClusterName).ToNot(BeEmpty(), "Invalid argument. input.ClusterName can't be empty when calling %s spec", specName)

		if !e2e.IsAPIv1beta1() {
			Skip("Rancher provisioning still runs CAPI v1beta1")
		}

		komega.SetClient(input.BootstrapClusterProxy.GetClient())
		komega.SetContext(ctx)
	})

	It("Should create the Azure cloud credential", func() {
		turtlesframework.RancherCreateCloudCredential(ctx, turtlesframework.RancherCreateCloudCredentialInput{
			ClusterProxy: input.BootstrapClusterProxy,
			Name:         azureCloudCredentialName,
			Driver:       "azure",
			Fields: map[string]string{
				"clientId":       input.AzureClientID,
				"clientSecret":   input.AzureClientSecret,
				"subscriptionId": input.AzureSubscriptionID,
			},
		})
	})

	It("Should look up the user and the cloud credential IDs", func() {
		user := &turtlesframework.RancherLookupUserResult{}
		turtlesframework.RancherLookupUser(ctx, turtlesframework.RancherLookupUserInput{
			ClusterProxy: input.BootstrapClusterProxy,
		}, user)
		userID = user.User

		ccID = turtlesframework.RancherLookupCloudCredential(ctx, input.BootstrapClusterProxy, azureCloudCredentialName)
		turtlesframework.Byf("Using user %s and cloud credential %s", userID, ccID)
	})

	for _, feature := range []string{turtlesframework.TurtlesFeature, turtlesframework.EmbeddedCAPIFeature} {
		It(fmt.Sprintf("Should provision an Azure RKE2 cluster with the %s feature", feature), func() {
			atLeast213 := rancherVersionSatisfies(input.RancherVersion, ">=2.13")
			if feature == turtlesframework.EmbeddedCAPIFeature && !atLeast213 {
				Skip(fmt.Sprintf("Rancher %s has no %s feature to switch to", input.RancherVersion, feature))
			}

			placeholders := map[string]string{
				"replace_user_id":      userID,
				"replace_cluster_name": input.ClusterName,
				"replace_cloudcred_id": ccID,
				"replace_rke2_version": input.Vars.RKE2Version,
			}

			By("Creating the AzureConfig")
			Expect(turtlesframework.Apply(ctx, input.BootstrapClusterProxy, turtlesframework.ReplacePlaceholders(e2e.V2ProvAzureRkeConfig, placeholders))).To(Succeed())

			By("Creating the RKE2 cluster")
			Expect(turtlesframework.Apply(ctx, input.BootstrapClusterProxy, turtlesframework.ReplacePlaceholders(e2e.V2ProvAzureCluster, placeholders))).To(Succeed())

			provisioningCluster := turtlesframework.RancherWaitForProvisioningClusterInput{
				ClusterProxy: input.BootstrapClusterProxy,
				Name:         input.ClusterName,
				WaitInterval: input.Vars.FullIntervals(),
			}
			turtlesframework.RancherWaitForProvisioningClusterReady(ctx, provisioningCluster)

			if !atLeast213 {
				return
			}

			if feature == turtlesframework.TurtlesFeature {
				setFeature(ctx, input.BootstrapClusterProxy, input.RancherServerURL, turtlesframework.EmbeddedCAPIFeature, true)
				setFeature(ctx, input.BootstrapClusterProxy, input.RancherServerURL, turtlesframework.TurtlesFeature, false)
			} else {
				setFeature(ctx, input.BootstrapClusterProxy, input.RancherServerURL, turtlesframework.TurtlesFeature, true)
			}

			turtlesframework.RancherWaitForProvisioningClusterReady(ctx, provisioningCluster)
		})

		It(fmt.Sprintf("Should delete the Azure RKE2 cluster created with the %s feature", feature), func() {
			if !e2e.SkipClusterDeletion() {
				Skip("cluster deletion is disabled")
			}
			if feature == turtlesframework.EmbeddedCAPIFeature && !rancherVersionSatisfies(input.RancherVersion, ">=2.13") {
				Skip(fmt.Sprintf("no cluster was created with the %s feature", feature))
			}

			cluster := &unstructured.Unstructured{}
			cluster.SetGroupVersionKind(gvkProvisioningCluster)
			cluster.SetName(input.ClusterName)
			cluster.SetNamespace(turtlesframework.FleetDefaultNamespace)

			turtlesframework.DeleteResourcesIfExist(ctx, input.BootstrapClusterProxy.GetClient(), turtlesframework.ResourceRef{
				GroupVersionKind: gvkProvisioningCluster,
				Name:             input.ClusterName,
				Namespace:        turtlesframework.FleetDefaultNamespace,
			})

			Eventually(func() bool {
				return apierrors.IsNotFound(komega.Get(cluster)())
			}, input.Vars.FullIntervals()...).Should(BeTrue(), "Cluster %s was not deleted", input.ClusterName)
		})
	}
}

// setFeature flips a Rancher feature flag and waits for Rancher to come back from the restart it may trigger.
func setFeature(ctx context.Context, proxy framework.ClusterProxy, serverURL, name string, value bool) {
	turtlesframework.RancherSetFeature(ctx, turtlesframework.RancherSetFeatureInput{
		ClusterProxy: proxy,
		Name:         name,
		Value:        value,
	})

	turtlesframework.CheckAPIStatus(ctx, turtlesframework.CheckAPIStatusInput{
		ServerURL: serverURL,
	})
}
