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
	"errors"
	"net/url"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"sigs.k8s.io/cluster-api/test/framework"
	"sigs.k8s.io/controller-runtime/pkg/log"

	turtlesframework "github.com/rancher/turtles-e2e/test/framework"
)

const (
	// TurtlesChartName is the name of the standalone Turtles chart and of its release.
	TurtlesChartName = "rancher-turtles"
	// ProvidersChartName is the name of the providers chart and of its release.
	ProvidersChartName = "rancher-turtles-providers"

	// ChartMuseumRepoName is the Rancher repository of the charts built by CI.
	ChartMuseumRepoName = "chartmuseum-repo"
	// TurtlesChartRepoName is the Rancher repository of released Turtles charts.
	TurtlesChartRepoName = "turtles-chart"
	// ProvidersChartRepoName is the Rancher repository of the released providers chart.
	ProvidersChartRepoName = "turtles-providers-chart"

	// TurtlesChartRepoURL is the GitHub Pages repository of released Turtles charts.
	TurtlesChartRepoURL = "https://rancher.github.io/turtles/"
	// ProvidersChartOCI is the released providers chart.
	ProvidersChartOCI = "oci://registry.suse.com/rancher/charts/rancher-turtles-providers"

	// MigrationTurtlesVersion is the last standalone Turtles release, installed before migrating to Rancher 2.13.
	MigrationTurtlesVersion = "0.24.3"
)

// ChartRepository is a chart repository registered in Rancher.
type ChartRepository struct {
	Name string
	URL  string
}

// IsOCI reports whether the repository is an OCI registry.
func (r ChartRepository) IsOCI() bool {
	u, err := url.Parse(r.URL)
	return err == nil && u.Scheme == "oci"
}

// TurtlesChartRepositoriesInput selects the repositories needed for the Turtles charts.
type TurtlesChartRepositoriesInput struct {
	// RancherVersion is channel/version[/headVersion].
	RancherVersion string `env:"RANCHER_VERSION"`

	// DevChart selects the charts built by CI.
	DevChart bool `env:"TURTLES_DEV_CHART"`

	// Migration is set when the run migrates a standalone Turtles install to Rancher 2.13.
	Migration bool `env:"MIGRATION"`

	// ChartMuseumRepo is the host of the CI chartmuseum.
	ChartMuseumRepo string `env:"CHARTMUSEUM_REPO"`
}

// TurtlesChartRepositories lists the chart repositories to register for a Rancher release.
// From 2.13 on Turtles is a system chart and only the providers chart is needed; before
// that the standalone Turtles chart is installed.
func TurtlesChartRepositories(input TurtlesChartRepositoriesInput) ([]ChartRepository, error) {
	chartMuseum := func() (ChartRepository, error) {
		if input.ChartMuseumRepo == "" {
			return ChartRepository{}, errors.New("CHARTMUSEUM_REPO is required for the development chart")
		}

		return ChartRepository{Name: ChartMuseumRepoName, URL: turtlesframework.ChartMuseumURL(input.ChartMuseumRepo)}, nil
	}
	turtles := ChartRepository{Name: TurtlesChartRepoName, URL: TurtlesChartRepoURL}
	providers := ChartRepository{Name: ProvidersChartRepoName, URL: ProvidersChartOCI}

	is213, err := turtlesframework.RancherVersionSatisfies(input.RancherVersion, ">=2.13")
	if err != nil {
		return nil, err
	}

	if is213 {
		if !input.DevChart {
			return []ChartRepository{providers}, nil
		}

		repo, err := chartMuseum()
		if err != nil {
			return nil, err
		}

		return []ChartRepository{repo}, nil
	}

	if !input.DevChart {
		if input.Migration {
			return []ChartRepository{turtles, providers}, nil
		}

		return []ChartRepository{turtles}, nil
	}

	repo, err := chartMuseum()
	if err != nil {
		return nil, err
	}

	// The development chart only exists for the release being migrated to.
	if input.Migration {
		return []ChartRepository{repo, turtles}, nil
	}

	return []ChartRepository{repo}, nil
}

// AddTurtlesChartRepositoriesInput represents the input parameters for AddTurtlesChartRepositories.
type AddTurtlesChartRepositoriesInput struct {
	TurtlesChartRepositoriesInput

	// BootstrapClusterProxy is the cluster proxy of the Rancher management cluster.
	BootstrapClusterProxy framework.ClusterProxy

	// HelmBinaryPath is the path to the Helm binary.
	HelmBinaryPath string `env:"HELM_BINARY_PATH" envDefault:"helm"`
}

// AddTurtlesChartRepositories registers the chart repositories in Rancher Apps and in the local
// helm configuration, so charts can be installed from either side.
func AddTurtlesChartRepositories(ctx context.Context, input AddTurtlesChartRepositoriesInput) []ChartRepository {
	Expect(turtlesframework.Parse(&input)).To(Succeed(), "Failed to parse environment variables")

	Expect(ctx).NotTo(BeNil(), "ctx is required for AddTurtlesChartRepositories")
	Expect(input.BootstrapClusterProxy).ToNot(BeNil(), "BootstrapClusterProxy is required for AddTurtlesChartRepositories")

	repos, err := TurtlesChartRepositories(input.TurtlesChartRepositoriesInput)
	Expect(err).ToNot(HaveOccurred())

	for _, repo := range repos {
		log.FromContext(ctx).Info("Adding chart repository", "name", repo.Name, "url", repo.URL)

		turtlesframework.RancherCreateClusterRepo(ctx, turtlesframework.RancherCreateClusterRepoInput{
			ClusterProxy: input.BootstrapClusterProxy,
			Name:         repo.Name,
			URL:          repo.URL,
		})

		if repo.IsOCI() {
			continue
		}

		turtlesframework.HelmRepoAdd(ctx, turtlesframework.HelmRepoAddInput{
			HelmBinaryPath: input.HelmBinaryPath,
			Name:           repo.Name,
			URL:            repo.URL,
			Proxy:          input.BootstrapClusterProxy,
		})
	}

	return repos
}

// DeployRancherTurtlesInput represents the input parameters for deploying the standalone Rancher Turtles chart.
type DeployRancherTurtlesInput struct {
	// BootstrapClusterProxy is the cluster proxy for the bootstrap cluster.
	BootstrapClusterProxy framework.ClusterProxy

	// HelmBinaryPath is the path to the Helm binary.
	HelmBinaryPath string `env:"HELM_BINARY_PATH" envDefault:"helm"`

	// DevChart selects the chart built by CI.
	DevChart bool `env:"TURTLES_DEV_CHART"`

	// Migration installs the last standalone release so it can be migrated later.
	Migration bool `env:"MIGRATION"`

	// Version is the chart version of a released Turtles chart.
	Version string `env:"TURTLES_CHART_VERSION"`

	// Namespace is the namespace for deploying Rancher Turtles.
	Namespace string `envDefault:"rancher-turtles-system"`

	// WaitDeploymentsReadyInterval is the interval for waiting for deployments to be ready.
	WaitDeploymentsReadyInterval []interface{} `envDefault:"15m,10s"`

	// WaitForDeployments is the list of deployments to wait for on top of the Turtles controller.
	WaitForDeployments []NamespaceName

	// AdditionalValues are the additional values for Rancher Turtles.
	AdditionalValues map[string]string
}

// TurtlesChart returns the chart reference and version to install. The development chart is
// always the latest build; a migration run pins the last standalone release.
func TurtlesChart(devChart, migration bool, version string) (string, string) {
	chart := TurtlesChartRepoName + "/" + TurtlesChartName
	if devChart && !migration {
		chart = ChartMuseumRepoName + "/" + TurtlesChartName
	}

	if devChart {
		version = ""
	}
	if migration {
		version = MigrationTurtlesVersion
	}

	return chart, version
}

// DeployRancherTurtles installs the standalone Turtles chart used with Rancher 2.12 and older and
// waits for its controller.
func DeployRancherTurtles(ctx context.Context, input DeployRancherTurtlesInput) {
	Expect(turtlesframework.Parse(&input)).To(Succeed(), "Failed to parse environment variables")

	Expect(ctx).NotTo(BeNil(), "ctx is required for DeployRancherTurtles")
	Expect(input.BootstrapClusterProxy).ToNot(BeNil(), "BootstrapClusterProxy is required for DeployRancherTurtles")
	Expect(input.WaitDeploymentsReadyInterval).ToNot(BeNil(), "WaitDeploymentsReadyInterval is required for DeployRancherTurtles")

	chart, version := TurtlesChart(input.DevChart, input.Migration, input.Version)

	By("Installing rancher-turtles chart")
	turtlesframework.HelmInstall(ctx, turtlesframework.HelmInstallInput{
		HelmBinaryPath: input.HelmBinaryPath,
		ReleaseName:    TurtlesChartName,
		Chart:          chart,
		Namespace:      input.Namespace,
		Version:        version,
		Devel:          input.DevChart,
		Values:         input.AdditionalValues,
		ExtraFlags:     []string{"--timeout", "10m"},
		Proxy:          input.BootstrapClusterProxy,
	})

	waitForDeployments(ctx, input.BootstrapClusterProxy, append([]NamespaceName{
		{Name: "rancher-turtles-controller-manager", Namespace: input.Namespace},
	}, input.WaitForDeployments...), input.WaitDeploymentsReadyInterval)
}

// UninstallRancherTurtlesInput represents the input parameters for uninstalling Rancher Turtles.
type UninstallRancherTurtlesInput struct {
	// BootstrapClusterProxy is the cluster proxy for the bootstrap cluster.
	BootstrapClusterProxy framework.ClusterProxy

	// HelmBinaryPath is the path to the Helm binary.
	HelmBinaryPath string `env:"HELM_BINARY_PATH" envDefault:"helm"`

	// Namespace is the namespace where Rancher Turtles are installed.
	Namespace string `envDefault:"rancher-turtles-system"`
}

// UninstallRancherTurtles uninstalls the Rancher Turtles chart.
func UninstallRancherTurtles(ctx context.Context, input UninstallRancherTurtlesInput) {
	Expect(turtlesframework.Parse(&input)).To(Succeed(), "Failed to parse environment variables")

	Expect(ctx).NotTo(BeNil(), "ctx is required for UninstallRancherTurtles")
	Expect(input.BootstrapClusterProxy).ToNot(BeNil(), "BootstrapClusterProxy is required for UninstallRancherTurtles")

	turtlesframework.HelmUninstall(ctx, turtlesframework.HelmUninstallInput{
		HelmBinaryPath: input.HelmBinaryPath,
		ReleaseName:    TurtlesChartName,
		Namespace:      input.Namespace,
		Proxy:          input.BootstrapClusterProxy,
	})
}

// TurtlesAdoptedCRDs are the Turtles CRDs that survive the uninstall of the standalone chart and
// are taken over by the Turtles system chart.
var TurtlesAdoptedCRDs = []string{
	"capiproviders.turtles-capi.cattle.io",
	"clusterctlconfigs.turtles-capi.cattle.io",
}

// PrepareTurtlesCRDsForMigration points the Helm ownership of the Turtles CRDs to the namespace
// of the Turtles system chart.
func PrepareTurtlesCRDsForMigration(ctx context.Context, proxy framework.ClusterProxy) {
	Expect(proxy).ToNot(BeNil(), "proxy is required for PrepareTurtlesCRDsForMigration")

	for _, crd := range TurtlesAdoptedCRDs {
		turtlesframework.Byf("Annotating CRD %s for adoption", crd)
		Expect(turtlesframework.KubectlAnnotate(ctx, proxy, "crd", crd, "", map[string]string{
			turtlesframework.HelmReleaseNamespaceAnnotation: turtlesframework.TurtlesNamespace,
		})).To(Succeed(), "Failed to annotate CRD %s", crd)
	}
}
