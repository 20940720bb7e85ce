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

package e2e

import (
	"encoding/base64"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/onsi/gomega/gstruct"

	turtlesframework "github.com/rancher/turtles-e2e/test/framework"
)

var _ = Describe("Release dependent variables", func() {
	DescribeTable("should follow the Rancher release",
		func(rancherVersion, branch, k8sVersion, rke2Version string) {
			vars, err := NewVars(rancherVersion)
			Expect(err).NotTo(HaveOccurred())
			Expect(vars).To(MatchFields(IgnoreExtras, Fields{
				"ClassBranch": Equal(branch),
				"K8sVersion":  Equal(k8sVersion),
				"RKE2Version": Equal(rke2Version),
			}))
		},
		Entry("2.12 uses the 0.24 classes", "latest/devel/2.12", "release-0.24", "v1.33.5", "v1.33.5+rke2r1"),
		Entry("2.13 uses the 0.25 classes", "head/2.13", "release/v0.25", "v1.34.1", "v1.34.1+rke2r1"),
		Entry("pre-releases are matched by version", "alpha/2.13.1-rc1", "release/v0.25", "v1.34.1", "v1.34.1+rke2r1"),
		Entry("newer releases use main", "head/2.14", "main", "v1.34.1", "v1.34.1+rke2r1"),
		Entry("older releases use main", "prime/2.11.3", "main", "v1.33.5", "v1.33.5+rke2r1"),
	)

	It("should pick the AMI and GCP image of the release", func() {
		vars, err := NewVars("head/2.13")
		Expect(err).NotTo(HaveOccurred())
		Expect(vars.AMIID).To(Equal("ami-010b4d392889007a3"))
		Expect(vars.GCPImageID).To(Equal("cluster-api-ubuntu-2404-v1-34-1-1762253907"))
		Expect(vars.KindVersion).To(Equal("v1.34.0"))
		Expect(vars.ShortIntervals()).To(Equal([]interface{}{"10m0s", "10s"}))
		Expect(vars.FullIntervals()).To(Equal([]interface{}{"25m0s", "30s"}))
	})

	It("should reject a release without a version", func() {
		_, err := NewVars("latest")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Provider versions", func() {
	It("should differ only in kubeadm between builds", func() {
		prod, err := LoadProviderVersions(BuildTypeProd)
		Expect(err).NotTo(HaveOccurred())
		dev, err := LoadProviderVersions(BuildTypeDev)
		Expect(err).NotTo(HaveOccurred())

		Expect(prod.Kubeadm).To(Equal("v1.10.5"))
		Expect(dev.Kubeadm).To(Equal("v1.10.6"))

		prod.Kubeadm, dev.Kubeadm = "", ""
		Expect(dev).To(Equal(prod))
		Expect(prod.Azure).To(Equal("v1.21.0"))
	})

	It("should fail on an unknown build type", func() {
		_, err := LoadProviderVersions("nightly")
		Expect(err).To(MatchError(ContainSubstring("nightly")))
	})

	It("should detect dev builds from the chartmuseum", func() {
		GinkgoT().Setenv(ChartMuseumRepoVar, "")
		Expect(BuildType()).To(Equal(BuildTypeProd))

		GinkgoT().Setenv(ChartMuseumRepoVar, "chartmuseum.local")
		Expect(BuildType()).To(Equal(BuildTypeDev))
		Expect(IsDevBuild()).To(BeTrue())
	})
})

var _ = Describe("Cluster names and deletion", func() {
	It("should name clusters after the class and suffix", func() {
		GinkgoT().Setenv(ClusterNameSuffixVar, "gh123")
		Expect(GetClusterName("docker-kubeadm")).To(Equal("turtles-qa-docker-kubeadm-gh123"))
		Expect(GetRandomClusterName("azure-aks")).To(MatchRegexp(`^turtles-qa-azure-aks-[a-z0-9]{4}-gh123$`))
	})

	It("should delete clusters only when SKIP_CLUSTER_DELETE is false", func() {
		GinkgoT().Setenv(SkipClusterDeleteVar, "false")
		Expect(SkipClusterDeletion()).To(BeTrue())

		GinkgoT().Setenv(SkipClusterDeleteVar, "true")
		Expect(SkipClusterDeletion()).To(BeFalse())

		Expect(os.Unsetenv(SkipClusterDeleteVar)).To(Succeed())
		Expect(SkipClusterDeletion()).To(BeFalse())
	})

	It("should default to the v1beta1 API", func() {
		GinkgoT().Setenv(CAPIAPIVersionVar, "")
		Expect(IsAPIv1beta1()).To(BeTrue())

		GinkgoT().Setenv(CAPIAPIVersionVar, "v1beta2")
		Expect(IsAPIv1beta1()).To(BeFalse())
	})
})

var _ = Describe("vSphere credentials", func() {
	It("should decode the base64 JSON document", func() {
		encoded := base64.StdEncoding.EncodeToString([]byte(`{"vsphere_username":"admin","vsphere_password":"secret","vsphere_server":"vcenter.example.com"}`))

		creds, err := ParseVSphereCredentials(encoded)
		Expect(err).NotTo(HaveOccurred())
		Expect(creds).To(Equal(VSphereCredentials{
			Username: "admin",
			Password: "secret",
			Server:   "vcenter.example.com",
			Port:     "443",
		}))
	})

	It("should fail on invalid base64", func() {
		_, err := ParseVSphereCredentials("%%%")
		Expect(err).To(MatchError(ContainSubstring("decoding")))
	})
})

var _ = Describe("Fixtures", func() {
	DescribeTable("class clusters should render every variable",
		func(template []byte, extra map[string]string) {
			vars := map[string]string{
				"CLUSTER_NAME":                "turtles-qa-test",
				"NAMESPACE":                   CAPIClustersNamespace,
				"TOPOLOGY_NAMESPACE":          CAPIClassesNamespace,
				"KUBERNETES_VERSION":          "v1.34.1",
				"CONTROL_PLANE_MACHINE_COUNT": "1",
				"WORKER_MACHINE_COUNT":        "3",
			}
			for k, v := range extra {
				vars[k] = v
			}

			out, err := turtlesframework.RenderTemplate(template, vars)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(out)).To(ContainSubstring("name: turtles-qa-test"))
			Expect(string(out)).To(ContainSubstring("classNamespace: capi-classes"))
			Expect(string(out)).NotTo(ContainSubstring("${"))
		},
		Entry("CAPD kubeadm", CAPDKubeadmClassCluster, nil),
		Entry("CAPD RKE2", CAPDRKE2ClassCluster, map[string]string{"RKE2_VERSION": "v1.34.1+rke2r1", "KIND_VERSION": "v1.34.0"}),
		Entry("CAPA RKE2", CAPARKE2ClassCluster, map[string]string{"RKE2_VERSION": "v1.34.1+rke2r1", "AMI_ID": "ami-1", "AWS_REGION": "eu-west-2", "AWS_SSH_KEY_NAME": "key"}),
		Entry("CAPZ kubeadm", CAPZKubeadmClassCluster, map[string]string{"AZURE_SUBSCRIPTION_ID": "sub", "AZURE_LOCATION": "westeurope"}),
		Entry("CAPZ RKE2", CAPZRKE2ClassCluster, map[string]string{"RKE2_VERSION": "v1.34.1+rke2r1", "AZURE_SUBSCRIPTION_ID": "sub", "AZURE_LOCATION": "westeurope"}),
		Entry("CAPZ AKS", CAPZAKSClassCluster, map[string]string{"AZURE_SUBSCRIPTION_ID": "sub", "AZURE_LOCATION": "westeurope"}),
	)

	It("should list every cloud provider of the providers HelmOp as disabled", func() {
		for _, key := range []string{"infrastructureAzure", "infrastructureAWS", "infrastructureGCP", "infrastructureVSphere"} {
			Expect(string(ProvidersChartHelmOp)).To(MatchRegexp(key + `:\n\s*enabled: false`))
		}
	})

	It("should carry the v2prov placeholders", func() {
		Expect(string(V2ProvAzureCluster)).To(ContainSubstring("replace_cloudcred_id"))
		Expect(string(V2ProvAzureRkeConfig)).To(ContainSubstring("nc-replace_cluster_name-pool1"))
	})
})
