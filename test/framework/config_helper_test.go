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
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

const testE2EConfig = `managementClusterName: turtles-e2e
images:
- name: "ghcr.io/rancher/turtles-e2e:{TAG}"
  loadBehavior: tryLoad
intervals:
  default/wait-rancher: ["15m", "30s"]
variables:
  TAG: "v0.0.1"
  CONFIG_TEST_PRESET: "from-config"
`

var _ = Describe("E2E config", func() {
	var path string

	BeforeEach(func() {
		path = filepath.Join(GinkgoT().TempDir(), "config.yaml")
		Expect(os.WriteFile(path, []byte(testE2EConfig), 0o600)).To(Succeed())
	})

	It("should export unset variables and expand image names", func() {
		GinkgoT().Setenv("TAG", "")

		config, err := ReadE2EConfig(path)
		Expect(err).NotTo(HaveOccurred())

		Expect(os.Getenv("TAG")).To(Equal("v0.0.1"))
		Expect(config.Images[0].Name).To(Equal("ghcr.io/rancher/turtles-e2e:v0.0.1"))
		Expect(config.GetIntervals("default", "wait-rancher")).To(Equal([]interface{}{"15m", "30s"}))
	})

	It("should keep variables already set in the environment", func() {
		GinkgoT().Setenv("CONFIG_TEST_PRESET", "from-env")
		GinkgoT().Setenv("TAG", "dev")

		config, err := ReadE2EConfig(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Getenv("CONFIG_TEST_PRESET")).To(Equal("from-env"))
		Expect(config.Images[0].Name).To(Equal("ghcr.io/rancher/turtles-e2e:dev"))
	})

	It("should reject unknown fields", func() {
		Expect(os.WriteFile(path, []byte("unknownField: true\n"), 0o600)).To(Succeed())
		_, err := ReadE2EConfig(path)
		Expect(err).To(HaveOccurred())
	})

	It("should reject an empty file", func() {
		Expect(os.WriteFile(path, nil, 0o600)).To(Succeed())
		_, err := ReadE2EConfig(path)
		Expect(err).To(HaveOccurred())
	})
})
