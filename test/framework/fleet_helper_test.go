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
	"github.com/go-git/go-git/v5/plumbing"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"sigs.k8s.io/yaml"
)

var _ = Describe("Fleet GitRepo", func() {
	render := func(input FleetCreateGitRepoInput) *unstructured.Unstructured {
		out, err := RenderGitRepo(input)
		Expect(err).NotTo(HaveOccurred())

		obj := &unstructured.Unstructured{}
		Expect(yaml.Unmarshal(out, &obj.Object)).To(Succeed())
		return obj
	}

	It("should default to fleet-local and main", func() {
		obj := render(FleetCreateGitRepoInput{
			Name:  "clusterclasses",
			Repo:  "https://github.com/rancher/turtles",
			Paths: []string{"examples/clusterclasses/docker/kubeadm"},
		})

		Expect(obj.GetKind()).To(Equal("GitRepo"))
		Expect(obj.GetNamespace()).To(Equal("fleet-local"))

		branch, _, _ := unstructured.NestedString(obj.Object, "spec", "branch")
		Expect(branch).To(Equal("main"))

		paths, _, _ := unstructured.NestedStringSlice(obj.Object, "spec", "paths")
		Expect(paths).To(ConsistOf("examples/clusterclasses/docker/kubeadm"))

		Expect(obj.Object["spec"]).NotTo(HaveKey("targetNamespace"))
		Expect(obj.Object["spec"]).NotTo(HaveKey("clientSecretName"))
	})

	It("should set target namespace and client secret when given", func() {
		obj := render(FleetCreateGitRepoInput{
			Name:             "classes",
			Namespace:        "fleet-default",
			Repo:             "https://github.com/rancher/turtles",
			Branch:           "release/v0.25",
			Paths:            []string{"a", "b"},
			TargetNamespace:  "capi-classes",
			ClientSecretName: "basic-auth-secret",
		})

		Expect(obj.GetNamespace()).To(Equal("fleet-default"))
		Expect(obj.Object["spec"]).To(HaveKeyWithValue("targetNamespace", "capi-classes"))
		Expect(obj.Object["spec"]).To(HaveKeyWithValue("clientSecretName", "basic-auth-secret"))
		Expect(obj.Object["spec"]).To(HaveKeyWithValue("branch", "release/v0.25"))
	})
})

var _ = Describe("Git remote branches", func() {
	refs := []*plumbing.Reference{
		plumbing.NewHashReference(plumbing.HEAD, plumbing.ZeroHash),
		plumbing.NewHashReference(plumbing.NewBranchReferenceName("main"), plumbing.ZeroHash),
		plumbing.NewHashReference(plumbing.NewBranchReferenceName("release/v0.25"), plumbing.ZeroHash),
		plumbing.NewHashReference(plumbing.NewTagReferenceName("v0.24.0"), plumbing.ZeroHash),
	}

	It("should find branches", func() {
		Expect(hasBranch(refs, "main")).To(BeTrue())
		Expect(hasBranch(refs, "release/v0.25")).To(BeTrue())
	})

	It("should not mistake tags for branches", func() {
		Expect(hasBranch(refs, "v0.24.0")).To(BeFalse())
		Expect(hasBranch(refs, "release-0.24")).To(BeFalse())
	})
})
