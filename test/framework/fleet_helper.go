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
	"bytes"
	"context"
	"fmt"
	"text/template"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"sigs.k8s.io/cluster-api/test/framework"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

var (
	gvkGitRepo = schema.GroupVersionKind{Group: "fleet.cattle.io", Version: "v1alpha1", Kind: "GitRepo"}
	gvkHelmOp  = schema.GroupVersionKind{Group: "fleet.cattle.io", Version: "v1alpha1", Kind: "HelmOp"}
	// HelmApp is the name HelmOp had before Fleet v0.12.
	gvkHelmApp = schema.GroupVersionKind{Group: "fleet.cattle.io", Version: "v1alpha1", Kind: "HelmApp"}
)

// FleetCreateGitRepoInput represents the input parameters for creating a Git repository in Fleet.
type FleetCreateGitRepoInput struct {
	// Name is the name of the Git repository.
	Name string

	// Namespace is the namespace in which the Git repository will be created.
	Namespace string `envDefault:"fleet-local"`

	// Repo is the URL of the Git repository.
	Repo string

	// Branch is the branch of the Git repository to use.
	Branch string `envDefault:"main"`

	// Paths are the paths within the Git repository to sync.
	Paths []string

	// TargetNamespace forces every resource of the bundle into this namespace.
	TargetNamespace string

	// FleetGeneration is the generation of the Fleet instance.
	FleetGeneration int

	// ClientSecretName is the name of the client secret to use for authentication.
	ClientSecretName string

	// ClusterProxy is the ClusterProxy instance for interacting with the cluster.
	ClusterProxy framework.ClusterProxy
}

// FleetCreateGitRepo will create and apply a GitRepo resource to the cluster. See the Fleet docs
// for further information: https://fleet.rancher.io/gitrepo-add
func FleetCreateGitRepo(ctx context.Context, input FleetCreateGitRepoInput) {
	Expect(Parse(&input)).To(Succeed(), "Failed to parse environment variables")

	Expect(ctx).NotTo(BeNil(), "ctx is required for FleetCreateGitRepo")
	Expect(input.Name).ToNot(BeEmpty(), "Invalid argument. input.Name can't be empty when calling FleetCreateGitRepo")
	Expect(input.Repo).ToNot(BeEmpty(), "Invalid argument. input.Repo can't be empty when calling FleetCreateGitRepo")
	Expect(input.ClusterProxy).ToNot(BeNil(), "Invalid argument. input.Clusterproxy can't be nil when calling FleetCreateGitRepo")

	Byf("Creating GitRepo %s for %s@%s", input.Name, input.Repo, input.Branch)

	rendered, err := RenderGitRepo(input)
	Expect(err).NotTo(HaveOccurred(), "Failed to render GitRepo template")

	By("Applying GitRepo")

	Eventually(func() error {
		return Apply(ctx, input.ClusterProxy, rendered)
	}, retryableOperationTimeout, retryableOperationInterval).Should(Succeed(), "Failed to apply GitRepo")
}

// RenderGitRepo renders the GitRepo manifest for input.
func RenderGitRepo(input FleetCreateGitRepoInput) ([]byte, error) {
	if input.Namespace == "" {
		input.Namespace = FleetLocalNamespace
	}

	if input.Branch == "" {
		input.Branch = DefaultBranchName
	}

	t, err := template.New("fleet-repo-template").Parse(gitRepoTemplate)
	if err != nil {
		return nil, fmt.Errorf("parsing GitRepo template: %w", err)
	}

	var renderedTemplate bytes.Buffer
	if err := t.Execute(&renderedTemplate, input); err != nil {
		return nil, fmt.Errorf("executing GitRepo template: %w", err)
	}

	return renderedTemplate.Bytes(), nil
}

// FleetDeleteGitRepoInput represents the input parameters for deleting a Git repository in the fleet.
type FleetDeleteGitRepoInput struct {
	// Name is the name of the Git repository to be deleted.
	Name string

	// Namespace is the namespace of the Git repository to be deleted.
	Namespace string `envDefault:"fleet-local"`

	// ClusterProxy is the cluster proxy used for interacting with the cluster.
	ClusterProxy framework.ClusterProxy

	// WaitForDeletion waits until the GitRepo object is gone.
	WaitForDeletion bool

	DeleteWaitInterval []interface{} `envDefault:"5m,10s"`
}

// FleetDeleteGitRepo will delete a GitRepo resource from a cluster. Fleet removes the
// resources the repo created.
func FleetDeleteGitRepo(ctx context.Context, input FleetDeleteGitRepoInput) {
	Expect(Parse(&input)).To(Succeed(), "Failed to parse environment variables")

	Expect(ctx).NotTo(BeNil(), "ctx is required for FleetDeleteGitRepoInput")
	Expect(input.Name).ToNot(BeEmpty(), "Invalid argument. input.Name can't be empty when calling FleetDeleteGitRepoInput")
	Expect(input.ClusterProxy).ToNot(BeNil(), "Invalid argument. input.Clusterproxy can't be nil when calling FleetDeleteGitRepoInput")

	Byf("Removing GitRepo %s/%s", input.Namespace, input.Name)

	repo := &unstructured.Unstructured{}
	repo.SetGroupVersionKind(gvkGitRepo)
	key := client.ObjectKey{Namespace: input.Namespace, Name: input.Name}

	err := input.ClusterProxy.GetClient().Get(ctx, key, repo)
	if apierrors.IsNotFound(err) {
		By("Skipping deletion as GitRepo not found")
		return
	}
	Expect(err).ShouldNot(HaveOccurred(), "Failed getting GitRepo")

	Eventually(func() error {
		return client.IgnoreNotFound(input.ClusterProxy.GetClient().Delete(ctx, repo))
	}, retryableOperationTimeout, retryableOperationInterval).Should(Succeed(), "Failed to delete GitRepo")

	if !input.WaitForDeletion {
		return
	}

	Eventually(func() bool {
		return apierrors.IsNotFound(input.ClusterProxy.GetClient().Get(ctx, key, repo.DeepCopy()))
	}, input.DeleteWaitInterval...).Should(BeTrue(), "GitRepo %s was not removed", key)
}

// FleetWaitForGitRepoReadyInput is the input to FleetWaitForGitRepoReady.
type FleetWaitForGitRepoReadyInput struct {
	Name         string
	Namespace    string `envDefault:"fleet-local"`
	ClusterProxy framework.ClusterProxy

	WaitInterval []interface{} `envDefault:"10m,10s"`
}

// FleetWaitForGitRepoReady waits until the GitRepo reports the Ready condition, which means
// every bundle it produced is deployed.
func FleetWaitForGitRepoReady(ctx context.Context, input FleetWaitForGitRepoReadyInput) {
	Expect(Parse(&input)).To(Succeed(), "Failed to parse environment variables")
	Expect(input.Name).ToNot(BeEmpty(), "Invalid argument. input.Name can't be empty when calling FleetWaitForGitRepoReady")
	Expect(input.ClusterProxy).ToNot(BeNil(), "Invalid argument. input.ClusterProxy can't be nil when calling FleetWaitForGitRepoReady")

	Byf("Waiting for GitRepo %s/%s to be Ready", input.Namespace, input.Name)

	Eventually(func(g Gomega) {
		repo := &unstructured.Unstructured{}
		repo.SetGroupVersionKind(gvkGitRepo)
		g.Expect(input.ClusterProxy.GetClient().Get(ctx, client.ObjectKey{Namespace: input.Namespace, Name: input.Name}, repo)).To(Succeed())
		g.Expect(ConditionStatus(repo, "Ready")).To(Equal("True"), "GitRepo %s is not Ready", input.Name)
	}, input.WaitInterval...).Should(Succeed())
}

// FleetCheckHelmOpsInput is the input to FleetCheckHelmOps.
type FleetCheckHelmOpsInput struct {
	Names        []string
	Namespace    string `envDefault:"fleet-local"`
	ClusterProxy framework.ClusterProxy

	WaitInterval []interface{} `envDefault:"10m,10s"`
}

// FleetCheckHelmOps waits for the named HelmOps to exist and become Ready. Fleet releases
// before v0.12 call the kind HelmApp, so that is tried when HelmOp is not served.
func FleetCheckHelmOps(ctx context.Context, input FleetCheckHelmOpsInput) {
	Expect(Parse(&input)).To(Succeed(), "Failed to parse environment variables")
	Expect(input.ClusterProxy).ToNot(BeNil(), "Invalid argument. input.ClusterProxy can't be nil when calling FleetCheckHelmOps")

	for _, name := range input.Names {
		Byf("Checking HelmOp %s/%s", input.Namespace, name)

		Eventually(func(g Gomega) {
			op, err := getHelmOp(ctx, input.ClusterProxy.GetClient(), client.ObjectKey{Namespace: input.Namespace, Name: name})
			g.Expect(err).NotTo(HaveOccurred())
			g.Expect(ConditionStatus(op, "Ready")).To(Equal("True"), "HelmOp %s is not Ready", name)
		}, input.WaitInterval...).Should(Succeed())
	}
}

func getHelmOp(ctx context.Context, c client.Reader, key client.ObjectKey) (*unstructured.Unstructured, error) {
	op := &unstructured.Unstructured{}
	op.SetGroupVersionKind(gvkHelmOp)

	err := c.Get(ctx, key, op)
	if err == nil || apierrors.IsNotFound(err) {
		return op, err
	}

	op.SetGroupVersionKind(gvkHelmApp)

	return op, c.Get(ctx, key, op)
}

const gitRepoTemplate = `
kind: GitRepo
apiVersion: fleet.cattle.io/v1alpha1
metadata:
  name: {{ .Name }}
  namespace: {{ .Namespace }}
spec:
  repo: {{ .Repo }}
  branch: {{ .Branch }}
  forceSyncGeneration: {{ .FleetGeneration }}
  {{- if .TargetNamespace }}
  targetNamespace: {{ .TargetNamespace }}
  {{- end }}
  {{- if .ClientSecretName }}
  clientSecretName: {{ .ClientSecretName }}
  {{- end }}
  paths:
  {{- range .Paths }}
  - {{ . }}
  {{- end }}
`
