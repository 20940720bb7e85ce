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
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	. "github.com/onsi/gomega"
	"sigs.k8s.io/cluster-api/test/framework"
	capiexec "sigs.k8s.io/cluster-api/test/framework/exec"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

const alreadyExistsMessage = "Error from server (AlreadyExists)"

// Apply wraps `kubectl apply ...` and prints the output so we can see what gets applied to the cluster.
// It is the equivalent of pasting the manifest into the dashboard "Import YAML" dialog.
func Apply(ctx context.Context, p framework.ClusterProxy, resources []byte, args ...string) error {
	Expect(ctx).NotTo(BeNil(), "ctx is required for Apply")
	Expect(resources).NotTo(BeNil(), "resources is required for Apply")

	return withStderr(KubectlApply(ctx, p.GetKubeconfigPath(), resources, args...))
}

// ApplyInNamespace imports resources using namespace as the default for objects that don't set one.
func ApplyInNamespace(ctx context.Context, p framework.ClusterProxy, resources []byte, namespace string) error {
	Expect(namespace).NotTo(BeEmpty(), "namespace is required for ApplyInNamespace")

	return Apply(ctx, p, resources, "--namespace", namespace)
}

// KubectlApply shells out to kubectl apply.
func KubectlApply(ctx context.Context, kubeconfigPath string, resources []byte, args ...string) error {
	aargs := append([]string{"apply", "--kubeconfig", kubeconfigPath, "-f", "-"}, args...)
	_, err := runKubectl(ctx, bytes.NewReader(resources), aargs...)

	return err
}

// KubectlDelete deletes the resources described by the manifest, ignoring the ones already gone.
func KubectlDelete(ctx context.Context, p framework.ClusterProxy, resources []byte, args ...string) error {
	aargs := append([]string{"delete", "--kubeconfig", p.GetKubeconfigPath(), "--ignore-not-found", "-f", "-"}, args...)
	_, err := runKubectl(ctx, bytes.NewReader(resources), aargs...)

	return withStderr(err)
}

// KubectlGetYAML returns the YAML of a single object, as shown by the dashboard "Edit YAML" view.
func KubectlGetYAML(ctx context.Context, p framework.ClusterProxy, resource, name, namespace string) (string, error) {
	args := []string{"get", "--kubeconfig", p.GetKubeconfigPath(), resource, name, "-o", "yaml"}
	if namespace != "" {
		args = append(args, "-n", namespace)
	}

	stdout, err := runKubectl(ctx, nil, args...)

	return string(stdout), withStderr(err)
}

// KubectlAnnotate sets annotations on an object, overwriting existing values.
func KubectlAnnotate(ctx context.Context, p framework.ClusterProxy, resource, name, namespace string, annotations map[string]string) error {
	args := []string{"annotate", "--kubeconfig", p.GetKubeconfigPath(), "--overwrite", resource, name}
	if namespace != "" {
		args = append(args, "-n", namespace)
	}

	for k, v := range annotations {
		args = append(args, fmt.Sprintf("%s=%s", k, v))
	}

	_, err := runKubectl(ctx, nil, args...)

	return withStderr(err)
}

// CreateNamespace creates a namespace.
func CreateNamespace(ctx context.Context, p framework.ClusterProxy, namespace string) error {
	_, err := runKubectl(ctx, nil, "--kubeconfig", p.GetKubeconfigPath(), "create", "namespace", namespace)

	return err
}

// DeleteNamespace deletes a namespace and waits for kubectl to report it gone.
func DeleteNamespace(ctx context.Context, p framework.ClusterProxy, namespace string) error {
	_, err := runKubectl(ctx, nil, "--kubeconfig", p.GetKubeconfigPath(), "delete", "namespace", namespace, "--ignore-not-found", "--wait")

	return withStderr(err)
}

func runKubectl(ctx context.Context, stdin io.Reader, args ...string) ([]byte, error) {
	log := log.FromContext(ctx)

	opts := []capiexec.CommandOption{
		capiexec.WithCommand(kubectlPath()),
		capiexec.WithArgs(args...),
	}
	if stdin != nil {
		opts = append(opts, capiexec.WithStdin(stdin))
	}

	log.Info("Running kubectl", "command", strings.Join(args, " "))

	stdout, stderr, err := capiexec.NewCommand(opts...).Run(ctx)
	if len(stderr) > 0 {
		log.Info("Stderr:", "stderr", string(stderr))
	}
	if len(stdout) > 0 {
		log.V(1).Info("Stdout:", "stdout", string(stdout))
	}

	if err != nil && strings.Contains(string(stderr), alreadyExistsMessage) {
		log.Info("Ignoring AlreadyExists error")
		return stdout, nil
	}

	return stdout, err
}

func withStderr(err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Errorf("%s: stderr: %s", err.Error(), exitErr.Stderr)
	}

	return err
}

func kubectlPath() string {
	if kubectlPath, ok := os.LookupEnv("CAPI_KUBECTL_PATH"); ok {
		return kubectlPath
	}
	return "kubectl"
}
