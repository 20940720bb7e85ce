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

	appsv1 "k8s.io/api/apps/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/cluster-api/test/framework"

	turtlesframework "github.com/rancher/turtles-e2e/test/framework"
)

// OperatorRepoName is the Rancher repository used by the legacy operator install.
const OperatorRepoName = "turtles-operator"

type NamespaceName struct {
	Name      string
	Namespace string
}

// DeployRancherTurtlesOperatorInput represents the input parameters for the legacy Turtles
// operator install, where Turtles is added as a regular app on the local cluster.
type DeployRancherTurtlesOperatorInput struct {
	BootstrapClusterProxy framework.ClusterProxy

	HelmBinaryPath string `env:"HELM_BINARY_PATH" envDefault:"helm"`

	// ChartMuseumRepo is the host of the CI chartmuseum. When set the dev chart is installed.
	ChartMuseumRepo string `env:"CHARTMUSEUM_REPO"`

	// Version is the released operator version, ignored for the dev chart.
	Version string `env:"TURTLES_OPERATOR_VERSION"`

	Namespace string `envDefault:"rancher-turtles-system"`

	WaitDeploymentsReadyInterval []interface{} `envDefault:"15m,10s"`
}

// OperatorChartRepository returns the repository of the operator chart and the version to install.
func OperatorChartRepository(chartMuseumRepo, version string) (ChartRepository, string) {
	if chartMuseumRepo == "" {
		return ChartRepository{Name: OperatorRepoName, URL: TurtlesChartRepoURL}, version
	}

	return ChartRepository{Name: OperatorRepoName, URL: turtlesframework.ChartMuseumURL(chartMuseumRepo)}, ""
}

// DeployRancherTurtlesOperator registers the operator repository in Rancher and installs the
// Turtles chart from it.
func DeployRancherTurtlesOperator(ctx context.Context, input DeployRancherTurtlesOperatorInput) {
	Expect(turtlesframework.Parse(&input)).To(Succeed(), "Failed to parse environment variables")

	Expect(ctx).NotTo(BeNil(), "ctx is required for DeployRancherTurtlesOperator")
	Expect(input.BootstrapClusterProxy).ToNot(BeNil(), "BootstrapClusterProxy is required for DeployRancherTurtlesOperator")

	repo, version := OperatorChartRepository(input.ChartMuseumRepo, input.Version)

	turtlesframework.RancherCreateClusterRepo(ctx, turtlesframework.RancherCreateClusterRepoInput{
		ClusterProxy: input.BootstrapClusterProxy,
		Name:         repo.Name,
		URL:          repo.URL,
	})
	turtlesframework.HelmRepoAdd(ctx, turtlesframework.HelmRepoAddInput{
		HelmBinaryPath: input.HelmBinaryPath,
		Name:           repo.Name,
		URL:            repo.URL,
		Proxy:          input.BootstrapClusterProxy,
	})

	By("Installing Turtles operator")
	turtlesframework.HelmInstall(ctx, turtlesframework.HelmInstallInput{
		HelmBinaryPath: input.HelmBinaryPath,
		ReleaseName:    TurtlesChartName,
		Chart:          repo.Name + "/" + TurtlesChartName,
		Namespace:      input.Namespace,
		Version:        version,
		Devel:          input.ChartMuseumRepo != "",
		Proxy:          input.BootstrapClusterProxy,
	})

	waitForDeployments(ctx, input.BootstrapClusterProxy, []NamespaceName{
		{Name: "rancher-turtles-controller-manager", Namespace: input.Namespace},
	}, input.WaitDeploymentsReadyInterval)
}

func waitForDeployments(ctx context.Context, proxy framework.ClusterProxy, deployments []NamespaceName, intervals []interface{}) {
	if len(deployments) == 0 {
		By("No deployments to wait for")

		return
	}

	Expect(intervals).ToNot(BeNil(), "intervals are required when waiting for deployments")

	for _, nn := range deployments {
		turtlesframework.Byf("Waiting for deployment %s/%s to be available", nn.Namespace, nn.Name)
		framework.WaitForDeploymentsAvailable(ctx, framework.WaitForDeploymentsAvailableInput{
			Getter: proxy.GetClient(),
			Deployment: &appsv1.Deployment{ObjectMeta: metav1.ObjectMeta{
				Name:      nn.Name,
				Namespace: nn.Namespace,
			}},
		}, intervals...)
	}
}
