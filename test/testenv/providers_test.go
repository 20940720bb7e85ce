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
)

var _ = Describe("Provider helm values", func() {
	It("should enable the selected providers with debug verbosity", func() {
		values := ProviderHelmValues(ctx, "kubeadm, capd")
		Expect(values).To(Equal(map[string]string{
			"providers.bootstrapKubeadm.enabled":               "true",
			"providers.bootstrapKubeadm.manager.verbosity":     "5",
			"providers.controlplaneKubeadm.enabled":            "true",
			"providers.controlplaneKubeadm.manager.verbosity":  "5",
			"providers.infrastructureDocker.enabled":           "true",
			"providers.infrastructureDocker.manager.verbosity": "5",
		}))
	})

	It("should only raise verbosity for RKE2", func() {
		values := ProviderHelmValues(ctx, "rke2")
		Expect(values).To(HaveLen(2))
		Expect(values).ToNot(HaveKey("providers.bootstrapRKE2.enabled"))
	})

	It("should enable every provider for all", func() {
		values := ProviderHelmValues(ctx, "ALL")
		for _, path := range []string{"infrastructureAWS", "infrastructureAzure", "infrastructureGCP", "infrastructureVSphere"} {
			Expect(values).To(HaveKeyWithValue("providers."+path+".enabled", "true"))
		}
	})

	It("should ignore unknown and empty entries", func() {
		Expect(ProviderHelmValues(ctx, "nutanix,,")).To(BeEmpty())
	})

	It("should render sorted flags with string variables", func() {
		flags := providerValueFlags(map[string]string{
			"providers.infrastructureDocker.enabled":               "true",
			"providers.infrastructureAWS.variables.AWS_B64ENCODED": "e30=",
		})
		Expect(flags).To(Equal([]string{
			"--set-string", "providers.infrastructureAWS.variables.AWS_B64ENCODED=e30=",
			"--set", "providers.infrastructureDocker.enabled=true",
		}))
	})

	It("should adopt enabled providers in their namespaces", func() {
		args := getAdoptArgsForEnabledProviders([]string{providerDocker, providerAzure, "unknown"}, map[string]string{
			"providers.infrastructureAzure.namespace": " azure-system ",
		})
		Expect(args).To(Equal([]string{"--adopt", "docker:capd-system", "--adopt", "azure:azure-system"}))
	})
})

var _ = Describe("Providers HelmOp", func() {
	helmOp := []byte(`spec:
  helm:
    values:
      providers:
        infrastructureAzure:
          enabled: false
        infrastructureAWS:
          enabled: false
        infrastructureGCP:
          enabled: false
`)

	It("should only enable the requested providers", func() {
		out := string(EnableProvidersInHelmOp(helmOp, "infrastructureAzure", "infrastructureGCP"))
		Expect(out).To(ContainSubstring("infrastructureAzure:\n          enabled: true"))
		Expect(out).To(ContainSubstring("infrastructureGCP:\n          enabled: true"))
		Expect(out).To(ContainSubstring("infrastructureAWS:\n          enabled: false"))
	})

	It("should leave the document untouched without providers", func() {
		Expect(EnableProvidersInHelmOp(helmOp)).To(Equal(helmOp))
	})
})
