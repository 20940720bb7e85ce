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

const (
	rancherChartsRepoName = "rancher-charts"
	loggingChartName      = "rancher-logging"
	loggingCRDChartName   = "rancher-logging-crd"
)

// InstallLoggingAppInput is the input to InstallLoggingApp.
type InstallLoggingAppInput struct {
	// BootstrapClusterProxy is used to register the chart repository.
	BootstrapClusterProxy framework.ClusterProxy

	// HelmBinaryPath is the path to the Helm binary.
	HelmBinaryPath string `env:"HELM_BINARY_PATH" envDefault:"helm"`

	// Kubeconfig points at the imported cluster through the Rancher proxy.
	Kubeconfig string

	// RepoURL is the Rancher partner charts repository.
	RepoURL string `env:"RANCHER_CHARTS_URL" envDefault:"https://charts.rancher.io"`

	// Namespace is the namespace Rancher installs the Logging app in.
	Namespace string `envDefault:"cattle-logging-system"`

	// Version pins the Logging chart. Empty means latest.
	Version string `env:"RANCHER_LOGGING_VERSION"`
}

// InstallLoggingApp installs the Rancher Logging app, CRDs first, on an imported cluster. Logging
// is used instead of Monitoring because it is lightweight.
func InstallLoggingApp(ctx context.Context, input InstallLoggingAppInput) {
	Expect(turtlesframework.Parse(&input)).To(Succeed(), "Failed to parse environment variables")
	Expect(input.BootstrapClusterProxy).ToNot(BeNil(), "BootstrapClusterProxy is required for InstallLoggingApp")
	Expect(input.Kubeconfig).To(BeAnExistingFile(), "Kubeconfig of the imported cluster is required for InstallLoggingApp")

	turtlesframework.HelmRepoAdd(ctx, turtlesframework.HelmRepoAddInput{
		HelmBinaryPath: input.HelmBinaryPath,
		Name:           rancherChartsRepoName,
		URL:            input.RepoURL,
		Proxy:          input.BootstrapClusterProxy,
	})

	By("Installing the Logging app on the imported cluster")
	for _, chart := range []string{loggingCRDChartName, loggingChartName} {
		turtlesframework.HelmInstall(ctx, turtlesframework.HelmInstallInput{
			HelmBinaryPath: input.HelmBinaryPath,
			ReleaseName:    chart,
			Chart:          rancherChartsRepoName + "/" + chart,
			Namespace:      input.Namespace,
			Version:        input.Version,
			ExtraFlags:     []string{"--timeout", "10m"},
			Kubeconfig:     input.Kubeconfig,
		})
	}
}
