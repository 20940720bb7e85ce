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
	"context"
	"fmt"
	"sort"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	opframework "sigs.k8s.io/cluster-api-operator/test/framework"
	"sigs.k8s.io/cluster-api/test/framework"
)

// ChartMuseumPort is the port the CI chartmuseum instance listens on.
const ChartMuseumPort = 8080

// HelmRepoAddInput represents the input parameters for registering a helm repository.
type HelmRepoAddInput struct {
	// HelmBinaryPath is the path to the Helm binary.
	HelmBinaryPath string `env:"HELM_BINARY_PATH" envDefault:"helm"`

	// Name is the local alias of the repository.
	Name string

	// URL is the repository address.
	URL string

	// Proxy is the cluster proxy whose kubeconfig is passed to helm.
	Proxy framework.ClusterProxy

	// Insecure skips TLS verification for the repository.
	Insecure bool

	// WaitInterval is the interval for retrying the repo add.
	WaitInterval []interface{} `envDefault:"2m,10s"`
}

// HelmRepoAdd adds (or refreshes) a helm repository and updates the local index.
func HelmRepoAdd(ctx context.Context, input HelmRepoAddInput) {
	Expect(Parse(&input)).To(Succeed(), "Failed to parse environment variables")

	Expect(ctx).NotTo(BeNil(), "ctx is required for HelmRepoAdd")
	Expect(input.Name).ToNot(BeEmpty(), "Invalid argument. input.Name can't be empty when calling HelmRepoAdd")
	Expect(input.URL).ToNot(BeEmpty(), "Invalid argument. input.URL can't be empty when calling HelmRepoAdd")
	Expect(input.Proxy).ToNot(BeNil(), "Invalid argument. input.Proxy can't be nil when calling HelmRepoAdd")

	flags := opframework.Flags("--force-update")
	if input.Insecure {
		flags = append(flags, "--insecure-skip-tls-verify")
	}

	Byf("Adding helm repository %s (%s)", input.Name, input.URL)
	addChart := &opframework.HelmChart{
		BinaryPath:      input.HelmBinaryPath,
		Name:            input.Name,
		Path:            input.URL,
		Commands:        opframework.Commands(opframework.Repo, opframework.Add),
		AdditionalFlags: flags,
		Kubeconfig:      input.Proxy.GetKubeconfigPath(),
	}

	Eventually(func() error {
		_, err := addChart.Run(nil)

		return err
	}, input.WaitInterval...).Should(Succeed(), "Failed to add helm repository %s", input.Name)

	updateChart := &opframework.HelmChart{
		BinaryPath: input.HelmBinaryPath,
		Commands:   opframework.Commands(opframework.Repo, opframework.Update),
		Kubeconfig: input.Proxy.GetKubeconfigPath(),
	}
	_, err := updateChart.Run(nil)
	Expect(err).ToNot(HaveOccurred(), "Failed to update helm repositories")
}

// HelmInstallInput represents the input parameters for installing a chart.
type HelmInstallInput struct {
	// HelmBinaryPath is the path to the Helm binary.
	HelmBinaryPath string `env:"HELM_BINARY_PATH" envDefault:"helm"`

	// ReleaseName is the name of the helm release.
	ReleaseName string

	// Chart is the chart reference, either repo/chart, an OCI reference or a local path.
	Chart string

	// Namespace is the release namespace. It is created when missing.
	Namespace string

	// Version pins the chart version. Empty means latest.
	Version string

	// Devel allows pre-release chart versions.
	Devel bool

	// Values are passed with --set.
	Values map[string]string

	// ExtraFlags are appended to the helm command line.
	ExtraFlags []string

	// Proxy is the cluster proxy of the target cluster.
	Proxy framework.ClusterProxy

	// Kubeconfig overrides the proxy kubeconfig, e.g. for a Rancher proxied cluster.
	Kubeconfig string
}

// HelmInstall installs a chart and waits for its resources.
func HelmInstall(ctx context.Context, input HelmInstallInput) {
	Expect(Parse(&input)).To(Succeed(), "Failed to parse environment variables")

	Expect(ctx).NotTo(BeNil(), "ctx is required for HelmInstall")
	Expect(input.ReleaseName).ToNot(BeEmpty(), "Invalid argument. input.ReleaseName can't be empty when calling HelmInstall")
	Expect(input.Chart).ToNot(BeEmpty(), "Invalid argument. input.Chart can't be empty when calling HelmInstall")
	Expect(input.Namespace).ToNot(BeEmpty(), "Invalid argument. input.Namespace can't be empty when calling HelmInstall")

	kubeconfig := input.Kubeconfig
	if kubeconfig == "" {
		Expect(input.Proxy).ToNot(BeNil(), "Either input.Proxy or input.Kubeconfig is required for HelmInstall")
		kubeconfig = input.Proxy.GetKubeconfigPath()
	}

	Byf("Installing chart %s as %s/%s", input.Chart, input.Namespace, input.ReleaseName)
	chart := &opframework.HelmChart{
		BinaryPath:      input.HelmBinaryPath,
		Name:            input.ReleaseName,
		Path:            input.Chart,
		Kubeconfig:      kubeconfig,
		AdditionalFlags: HelmInstallFlags(input),
		Wait:            true,
	}

	out, err := chart.Run(input.Values)
	Expect(err).ToNot(HaveOccurred(), "Failed to install %s: %s", input.Chart, out)
}

// HelmInstallFlags builds the flags of an install command, without the --set values.
func HelmInstallFlags(input HelmInstallInput) []string {
	flags := opframework.Flags(
		"--namespace", input.Namespace,
		"--create-namespace",
	)

	if input.Version != "" {
		flags = append(flags, "--version", input.Version)
	}

	if input.Devel {
		flags = append(flags, "--devel")
	}

	return append(flags, input.ExtraFlags...)
}

// HelmSetFlags renders values as sorted --set flags.
func HelmSetFlags(values map[string]string) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	flags := make([]string, 0, len(keys)*2)
	for _, k := range keys {
		flags = append(flags, "--set", fmt.Sprintf("%s=%s", k, values[k]))
	}

	return flags
}

// HelmUninstallInput represents the input parameters for removing a release.
type HelmUninstallInput struct {
	// HelmBinaryPath is the path to the Helm binary.
	HelmBinaryPath string `env:"HELM_BINARY_PATH" envDefault:"helm"`

	// ReleaseName is the name of the helm release.
	ReleaseName string

	// Namespace is the release namespace.
	Namespace string

	// Proxy is the cluster proxy of the target cluster.
	Proxy framework.ClusterProxy
}

// HelmUninstall removes a release in foreground. A missing release is not an error.
func HelmUninstall(ctx context.Context, input HelmUninstallInput) {
	Expect(Parse(&input)).To(Succeed(), "Failed to parse environment variables")

	Expect(ctx).NotTo(BeNil(), "ctx is required for HelmUninstall")
	Expect(input.Proxy).ToNot(BeNil(), "Invalid argument. input.Proxy can't be nil when calling HelmUninstall")

	By("Removing helm release " + input.ReleaseName)
	removeChart := &opframework.HelmChart{
		BinaryPath: input.HelmBinaryPath,
		Name:       input.ReleaseName,
		Commands:   opframework.HelmCommands{opframework.Uninstall},
		Kubeconfig: input.Proxy.GetKubeconfigPath(),
		AdditionalFlags: opframework.Flags(
			"-n", input.Namespace,
			"--cascade", "foreground",
			"--ignore-not-found",
			"--wait"),
	}

	out, err := removeChart.Run(nil)
	Expect(err).ToNot(HaveOccurred(), "Failed to uninstall %s: %s", input.ReleaseName, out)
}

// ChartMuseumURL returns the http address of the chartmuseum running on repo.
func ChartMuseumURL(repo string) string {
	repo = strings.TrimSuffix(repo, "/")
	if !strings.HasPrefix(repo, "http://") && !strings.HasPrefix(repo, "https://") {
		repo = "http://" + repo
	}

	return fmt.Sprintf("%s:%d", repo, ChartMuseumPort)
}
