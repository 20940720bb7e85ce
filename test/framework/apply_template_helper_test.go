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

var _ = Describe("Templating", func() {
	It("should prefer overrides over the environment", func() {
		GinkgoT().Setenv("CLUSTER_NAME", "from-env")
		GinkgoT().Setenv("CLUSTER_NS", "capi-clusters")

		out, err := RenderTemplate([]byte("name: ${CLUSTER_NAME}\nnamespace: ${CLUSTER_NS}\n"), map[string]string{
			"CLUSTER_NAME": "turtles-qa-capd",
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(string(out)).To(Equal("name: turtles-qa-capd\nnamespace: capi-clusters\n"))
	})

	It("should apply envsubst defaults", func() {
		out, err := RenderTemplate([]byte("replicas: ${WORKER_REPLICAS:=2}"), nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(out)).To(Equal("replicas: 2"))
	})

	It("should replace longer placeholders first", func() {
		out := ReplacePlaceholders([]byte("replace_cluster_name in replace_cluster_name_ns"), map[string]string{
			"replace_cluster_name":    "c1",
			"replace_cluster_name_ns": "capi-clusters",
		})
		Expect(string(out)).To(Equal("c1 in capi-clusters"))
	})

	It("should encode to standard base64", func() {
		Expect(EncodeBase64("user:pass")).To(Equal("dXNlcjpwYXNz"))
	})
})
