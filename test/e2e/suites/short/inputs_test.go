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

package short

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rancher/turtles-e2e/test/e2e"
	turtlesframework "github.com/rancher/turtles-e2e/test/framework"
)

var _ = Describe("Docker import inputs", Label(e2e.ShortTestLabel), func() {
	It("should label the namespace for auto-import and use the main branch", func() {
		input := dockerKubeadmInput()
		Expect(input.NamespaceAutoImport).To(BeTrue())
		Expect(input.ClassBranch).To(Equal(turtlesframework.DefaultBranchName))
	})
})
