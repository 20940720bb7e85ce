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
)

var _ = Describe("Rancher version gating", func() {
	DescribeTable("RancherVersionSatisfies",
		func(version, constraint string, expected bool) {
			ok, err := RancherVersionSatisfies(version, constraint)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(Equal(expected))
		},
		Entry("head at or above 2.12", "head/2.13", ">=2.12", true),
		Entry("head matching exactly", "head/2.13", "2.13", true),
		Entry("head above 2.11", "head/2.13", "<=2.11", false),
		Entry("pre-release suffix is dropped", "latest/devel/2.12-alpha3", "2.12", true),
		Entry("patch version is kept", "prime/2.12.3", ">=2.12.2", true),
		Entry("patch version below constraint", "prime/2.12.1", ">=2.12.2", false),
		Entry("upper bound", "latest/2.13", "<2.13", false),
		Entry("bare major reads as MAJOR.0.0", "head/2", ">=2.0", true),
		Entry("bare major below a minor constraint", "head/2", ">=2.12", false),
		Entry("leading v is accepted", "prime/v2.12.3", "2.12.3", true),
		Entry("build metadata is dropped", "prime/2.12.3+up1", "2.12.3", true),
	)

	It("should reject a channel without a version", func() {
		_, err := RancherVersionSatisfies("latest/devel", ">=2.12")
		Expect(err).To(HaveOccurred())
	})

	It("should reject an invalid constraint", func() {
		_, err := RancherVersionSatisfies("head/2.13", "not a constraint")
		Expect(err).To(HaveOccurred())
	})

	It("should read RANCHER_VERSION from the environment", func() {
		GinkgoT().Setenv(RancherVersionVar, "head/2.12")
		Expect(IsRancherManagerVersion(">=2.12")).To(BeTrue())
		Expect(IsRancherManagerVersion(">=2.13")).To(BeFalse())
	})

	It("should split the channel from the version", func() {
		Expect(ParseRancherVersion("latest/devel/2.13")).To(Equal(RancherVersion{
			Channel:     "latest",
			Version:     "devel",
			HeadVersion: "2.13",
		}))
		Expect(ParseRancherVersion("head/2.12")).To(Equal(RancherVersion{Channel: "head", Version: "2.12"}))
		Expect(ParseRancherVersion("")).To(BeZero())
	})

	It("should match the kubernetes flavour case-insensitively", func() {
		GinkgoT().Setenv(K8sVersionVar, "v1.32.4+rke2r1")
		Expect(IsK8sVersion("RKE2")).To(BeTrue())
		Expect(IsK8sVersion("k3s")).To(BeFalse())
	})

	It("should match the UI extension version", func() {
		GinkgoT().Setenv(CAPIUIVersionVar, "0.8.2")
		Expect(IsUIVersion(`^0\.8`)).To(BeTrue())
		Expect(IsUIVersion(`^0\.9`)).To(BeFalse())
	})
})
