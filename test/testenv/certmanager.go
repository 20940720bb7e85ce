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
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"sigs.k8s.io/cluster-api/test/framework"

	turtlesframework "github.com/rancher/turtles-e2e/test/framework"
)

// DeployCertManagerInput represents the input parameters for deploying Cert Manager.
type DeployCertManagerInput struct {
	// BootstrapClusterProxy is the cluster proxy for bootstrapping.
	BootstrapClusterProxy framework.ClusterProxy

	// HelmBinaryPath is the path to the Helm binary.
	HelmBinaryPath string `env:"HELM_BINARY_PATH" envDefault:"helm"`

	// CertManagerRepoName is the repository name for Cert Manager.
	CertManagerRepoName string `env:"CERT_MANAGER_REPO_NAME" envDefault:"jetstack"`

	// CertManagerUrl is the URL for Cert Manager.
	CertManagerUrl string `env:"CERT_MANAGER_URL" envDefault:"https://charts.jetstack.io"`

	// CertManagerVersion pins the chart version. Empty means latest.
	CertManagerVersion string `env:"CERT_MANAGER_VERSION"`
}

// DeployCertManager installs cert-manager with its CRDs and waits for the controller.
func DeployCertManager(ctx context.Context, input DeployCertManagerInput) {
	Expect(turtlesframework.Parse(&input)).To(Succeed(), "Failed to parse environment variables")

	Expect(ctx).NotTo(BeNil(), "ctx is required for DeployCertManager")
	Expect(input.BootstrapClusterProxy).ToNot(BeNil(), "BootstrapClusterProxy is required for DeployCertManager")

	turtlesframework.HelmRepoAdd(ctx, turtlesframework.HelmRepoAddInput{
		HelmBinaryPath: input.HelmBinaryPath,
		Name:           input.CertManagerRepoName,
		URL:            input.CertManagerUrl,
		Proxy:          input.BootstrapClusterProxy,
	})

	By("Installing cert-manager")
	args := []string{
		"upgrade", "--install", "cert-manager", input.CertManagerRepoName + "/cert-manager",
		"--kubeconfig", input.BootstrapClusterProxy.GetKubeconfigPath(),
	}
	args = append(args, turtlesframework.HelmInstallFlags(turtlesframework.HelmInstallInput{
		Namespace: "cert-manager",
		Version:   input.CertManagerVersion,
	})...)
	args = append(args, turtlesframework.HelmSetFlags(map[string]string{"crds.enabled": "true"})...)
	args = append(args, "--wait", "--wait-for-jobs")

	turtlesframework.RunHelmCmdWithRetry(ctx, turtlesframework.RunHelmCmdWithRetryInput{
		HelmBinaryPath: input.HelmBinaryPath,
		Args:           args,
	})

	turtlesframework.WaitForResourceCondition(ctx, turtlesframework.WaitForResourceConditionInput{
		ClusterProxy: input.BootstrapClusterProxy,
		Resource:     "deployment/cert-manager",
		Namespace:    "cert-manager",
	})
}
