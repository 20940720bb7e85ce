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
	"fmt"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/cluster-api/test/framework"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/envtest/komega"
	"sigs.k8s.io/controller-runtime/pkg/log"

	turtlesframework "github.com/rancher/turtles-e2e/test/framework"
)

const (
	rancherReleaseName = "rancher"

	primeOptimusChannel = "prime-optimus"
	headChannel         = "head"
	develVersion        = "devel"

	// rancherChartsGitPort is where the CI git server publishes the development Rancher charts.
	rancherChartsGitPort = 4080
)

// rancherChannelRepos maps a channel of RANCHER_VERSION to its chart repository.
var rancherChannelRepos = map[string]string{
	"latest": "https://releases.rancher.com/server-charts/latest",
	"stable": "https://releases.rancher.com/server-charts/stable",
	"alpha":  "https://releases.rancher.com/server-charts/alpha",
	"prime":  "https://charts.rancher.com/server-charts/prime",
}

// DeployRancherInput represents the input parameters for deploying Rancher.
type DeployRancherInput struct {
	// BootstrapClusterProxy is the cluster proxy of the management cluster.
	BootstrapClusterProxy framework.ClusterProxy

	// HelmBinaryPath is the path to the Helm binary.
	HelmBinaryPath string `env:"HELM_BINARY_PATH" envDefault:"helm"`

	// RancherVersion is channel/version[/headVersion], for example "latest/devel/2.13" or "head/2.13".
	RancherVersion string `env:"RANCHER_VERSION"`

	// RancherChartURL overrides the chart repository of the channel. Required for prime-optimus channels.
	RancherChartURL string `env:"RANCHER_CHART_URL"`

	// RancherBaseRegistry is the image registry used by prime-optimus channels.
	RancherBaseRegistry string `env:"RANCHER_BASE_REGISTRY" envDefault:"registry.rancher.com"`

	// RancherNamespace is the namespace for Rancher.
	RancherNamespace string `env:"RANCHER_NAMESPACE" envDefault:"cattle-system"`

	// RancherHost is the host for Rancher.
	RancherHost string `env:"RANCHER_HOSTNAME"`

	// RancherPassword is the bootstrap password of the admin user.
	RancherPassword string `env:"RANCHER_PASSWORD"`

	// RancherFeatures are the features for Rancher.
	RancherFeatures string

	// TurtlesDevChart makes Rancher 2.13+ install the Turtles system chart built by CI.
	TurtlesDevChart bool `env:"TURTLES_DEV_CHART"`

	// RancherChartsBranch is the branch of the development Rancher charts.
	RancherChartsBranch string `env:"RANCHER_CHARTS_BRANCH" envDefault:"dev-v2.13"`

	// TurtlesDevChartVersion is the version of the Turtles system chart built by CI.
	TurtlesDevChartVersion string `env:"TURTLES_DEV_CHART_VERSION" envDefault:"108.0.0+up99.99.99"`

	// RancherWaitInterval is the wait interval for Rancher.
	RancherWaitInterval []interface{} `envDefault:"15m,30s"`
}

// RancherChartSource is where the Rancher chart is installed from.
type RancherChartSource struct {
	RepoName string
	RepoURL  string
	Version  string
	Devel    bool
	ImageTag string
}

// Chart is the repo/chart reference of the source.
func (s RancherChartSource) Chart() string {
	return s.RepoName + "/" + rancherReleaseName
}

// RancherEnvVar is an entry of the extraEnv list of the Rancher chart.
type RancherEnvVar struct {
	Name  string
	Value string
}

// DeployRancher installs or upgrades Rancher from the channel of RANCHER_VERSION and waits for the
// webhook. From Rancher 2.13 on it also waits for the embedded Turtles and CAPI controllers.
func DeployRancher(ctx context.Context, input DeployRancherInput) {
	Expect(turtlesframework.Parse(&input)).To(Succeed(), "Failed to parse environment variables")

	Expect(ctx).NotTo(BeNil(), "ctx is required for DeployRancher")
	Expect(input.BootstrapClusterProxy).ToNot(BeNil(), "BootstrapClusterProxy is required for DeployRancher")
	Expect(input.RancherVersion).ToNot(BeEmpty(), "RancherVersion is required for DeployRancher")
	Expect(input.RancherHost).ToNot(BeEmpty(), "RancherHost is required for DeployRancher")
	Expect(input.RancherPassword).ToNot(BeEmpty(), "RancherPassword is required for DeployRancher")
	Expect(input.RancherWaitInterval).ToNot(BeNil(), "RancherWaitInterval is required for DeployRancher")

	version := turtlesframework.ParseRancherVersion(input.RancherVersion)
	source, err := ResolveRancherChartSource(version, input.RancherChartURL)
	Expect(err).ToNot(HaveOccurred())

	turtlesframework.HelmRepoAdd(ctx, turtlesframework.HelmRepoAddInput{
		HelmBinaryPath: input.HelmBinaryPath,
		Name:           source.RepoName,
		URL:            source.RepoURL,
		Proxy:          input.BootstrapClusterProxy,
	})

	is213, err := turtlesframework.RancherVersionSatisfies(input.RancherVersion, ">=2.13")
	Expect(err).ToNot(HaveOccurred())

	extraEnv := RancherExtraEnv(input, version.Channel, is213 && input.TurtlesDevChart)
	extraFlags := RancherExtraEnvFlags(extraEnv)
	log.FromContext(ctx).Info("Rancher extra environment", "flags", strings.Join(extraFlags, " "))

	values := map[string]string{
		"hostname":                  input.RancherHost,
		"bootstrapPassword":         input.RancherPassword,
		"replicas":                  "1",
		"global.cattle.psp.enabled": "false",
	}
	if source.ImageTag != "" {
		values["rancherImageTag"] = source.ImageTag
	}
	if strings.HasPrefix(version.Channel, primeOptimusChannel) {
		values["rancherImage"] = input.RancherBaseRegistry + "/rancher/rancher"
	}
	if input.RancherFeatures != "" {
		values["features"] = input.RancherFeatures
	}

	args := []string{
		"upgrade", "--install", rancherReleaseName, source.Chart(),
		"--kubeconfig", input.BootstrapClusterProxy.GetKubeconfigPath(),
	}
	args = append(args, turtlesframework.HelmInstallFlags(turtlesframework.HelmInstallInput{
		Namespace: input.RancherNamespace,
		Version:   source.Version,
		Devel:     source.Devel,
	})...)
	args = append(args, turtlesframework.HelmSetFlags(values)...)
	args = append(args, extraFlags...)
	args = append(args, "--wait")

	By("Installing/Upgrading Rancher Manager")
	turtlesframework.RunHelmCmdWithRetry(ctx, turtlesframework.RunHelmCmdWithRetryInput{
		HelmBinaryPath: input.HelmBinaryPath,
		Args:           args,
	})

	By("Waiting for rancher webhook rollout")
	framework.WaitForDeploymentsAvailable(ctx, framework.WaitForDeploymentsAvailableInput{
		Getter:     input.BootstrapClusterProxy.GetClient(),
		Deployment: &appsv1.Deployment{ObjectMeta: metav1.ObjectMeta{Name: "rancher-webhook", Namespace: input.RancherNamespace}},
	}, input.RancherWaitInterval...)

	if !is213 {
		return
	}

	turtlesframework.WaitForResourceCondition(ctx, turtlesframework.WaitForResourceConditionInput{
		ClusterProxy: input.BootstrapClusterProxy,
		Resource:     "deployments/rancher-turtles-controller-manager",
		Namespace:    turtlesframework.TurtlesNamespace,
	})
	turtlesframework.WaitForResourceCondition(ctx, turtlesframework.WaitForResourceConditionInput{
		ClusterProxy: input.BootstrapClusterProxy,
		Resource:     "deployments/capi-controller-manager",
		Namespace:    turtlesframework.CAPINamespace,
	})
}

// ResolveRancherChartSource picks the chart repository, version and image tag for a Rancher release.
func ResolveRancherChartSource(v turtlesframework.RancherVersion, chartURL string) (RancherChartSource, error) {
	if v.Channel == "" {
		return RancherChartSource{}, errors.New("rancher channel is empty")
	}

	source := RancherChartSource{RepoName: "rancher-" + v.Channel}

	switch {
	case chartURL != "":
		source.RepoURL = chartURL
	case v.Channel == headChannel:
		source.RepoName = "rancher-latest"
		source.RepoURL = rancherChannelRepos["latest"]
	case strings.HasPrefix(v.Channel, primeOptimusChannel):
		return RancherChartSource{}, fmt.Errorf("channel %s needs RANCHER_CHART_URL", v.Channel)
	default:
		url, ok := rancherChannelRepos[v.Channel]
		if !ok {
			return RancherChartSource{}, fmt.Errorf("unknown rancher channel %q", v.Channel)
		}
		source.RepoURL = url
	}

	switch {
	case v.Channel == headChannel:
		// head images are built from a branch, the chart of the latest release is used.
		source.Devel = true
		source.ImageTag = fmt.Sprintf("v%s-head", v.Version)
	case v.Version == develVersion:
		source.Devel = true
		if v.HeadVersion != "" {
			source.Version = fmt.Sprintf("~%s.0-0", v.HeadVersion)
		}
	case v.Version != "":
		source.Version = v.Version
		source.Devel = strings.Contains(v.Version, "-")
	}

	if v.Channel == "alpha" || strings.HasSuffix(v.Channel, "-alpha") {
		source.Devel = true
	}

	return source, nil
}

// RancherExtraEnv lists the extraEnv entries of the Rancher chart. The server URL is always
// first; prime-optimus channels add the base registry; the development Turtles chart adds the
// location of the development system charts.
func RancherExtraEnv(input DeployRancherInput, channel string, devChart bool) []RancherEnvVar {
	env := []RancherEnvVar{{Name: "CATTLE_SERVER_URL", Value: "https://" + input.RancherHost}}

	if strings.HasPrefix(channel, primeOptimusChannel) {
		env = append(env, RancherEnvVar{Name: "CATTLE_BASE_REGISTRY", Value: input.RancherBaseRegistry})
	}

	if devChart {
		env = append(env,
			RancherEnvVar{Name: "CATTLE_CHART_DEFAULT_URL", Value: fmt.Sprintf("http://%s:%d/git/charts", input.RancherHost, rancherChartsGitPort)},
			RancherEnvVar{Name: "CATTLE_CHART_DEFAULT_BRANCH", Value: input.RancherChartsBranch},
			RancherEnvVar{Name: "CATTLE_RANCHER_TURTLES_VERSION", Value: input.TurtlesDevChartVersion},
		)
	}

	return env
}

// RancherExtraEnvFlags renders extraEnv entries. Values are set as strings so versions like
// "108.0.0+up99.99.99" are not reinterpreted.
func RancherExtraEnvFlags(env []RancherEnvVar) []string {
	flags := make([]string, 0, len(env)*4)
	for i, e := range env {
		flags = append(flags,
			"--set", fmt.Sprintf("extraEnv[%d].name=%s", i, e.Name),
			"--set-string", fmt.Sprintf("extraEnv[%d].value=%s", i, e.Value),
		)
	}

	return flags
}

// RestartRancherInput represents the input parameters for restarting Rancher.
type RestartRancherInput struct {
	// BootstrapClusterProxy is the cluster proxy for the bootstrap cluster.
	BootstrapClusterProxy framework.ClusterProxy

	// RancherNamespace is the namespace where Rancher is deployed.
	RancherNamespace string `envDefault:"cattle-system"`

	// RancherWaitInterval is the wait interval for Rancher restart.
	RancherWaitInterval []interface{} `envDefault:"15m,10s"`
}

// RestartRancher restarts the Rancher application by killing its pods and waits for the
// deployment to become available again.
func RestartRancher(ctx context.Context, input RestartRancherInput) {
	Expect(turtlesframework.Parse(&input)).To(Succeed(), "Failed to parse environment variables")

	Expect(ctx).NotTo(BeNil(), "ctx is required for RestartRancher")
	Expect(input.BootstrapClusterProxy).ToNot(BeNil(), "BootstrapClusterProxy is required for RestartRancher")

	By("Restarting Rancher by killing its pods")
	Eventually(func() error {
		return input.BootstrapClusterProxy.GetClient().DeleteAllOf(ctx, &corev1.Pod{}, client.InNamespace(input.RancherNamespace), client.MatchingLabels{"app": "rancher"})
	}, input.RancherWaitInterval...).ShouldNot(HaveOccurred())

	framework.WaitForDeploymentsAvailable(ctx, framework.WaitForDeploymentsAvailableInput{
		Getter:     input.BootstrapClusterProxy.GetClient(),
		Deployment: &appsv1.Deployment{ObjectMeta: metav1.ObjectMeta{Name: rancherReleaseName, Namespace: input.RancherNamespace}},
	}, input.RancherWaitInterval...)
}

// RancherDeployIngressInput represents the input parameters for deploying the ingress controller
// that serves Rancher on a kind management cluster.
type RancherDeployIngressInput struct {
	// BootstrapClusterProxy is the cluster proxy for the bootstrap cluster.
	BootstrapClusterProxy framework.ClusterProxy

	// HelmBinaryPath is the path to the Helm binary.
	HelmBinaryPath string `env:"HELM_BINARY_PATH" envDefault:"helm"`

	// IngressNamespace is the namespace for the ingress controller.
	IngressNamespace string `envDefault:"ingress-nginx"`

	// IngressDeployment is the deployment name of the ingress controller.
	IngressDeployment string `envDefault:"ingress-nginx-controller"`

	// IngressChartVersion is the version of the ingress-nginx chart.
	IngressChartVersion string `env:"INGRESS_NGINX_VERSION" envDefault:"4.12.0"`

	// IngressWaitInterval is the wait interval for the ingress deployment.
	IngressWaitInterval []interface{} `envDefault:"15m,30s"`
}

// RancherDeployIngress installs ingress-nginx bound to the host ports of the kind node.
func RancherDeployIngress(ctx context.Context, input RancherDeployIngressInput) {
	Expect(turtlesframework.Parse(&input)).To(Succeed(), "Failed to parse environment variables")

	Expect(ctx).NotTo(BeNil(), "ctx is required for RancherDeployIngress")
	Expect(input.BootstrapClusterProxy).ToNot(BeNil(), "BootstrapClusterProxy is required for RancherDeployIngress")

	komega.SetClient(input.BootstrapClusterProxy.GetClient())
	komega.SetContext(ctx)

	turtlesframework.HelmRepoAdd(ctx, turtlesframework.HelmRepoAddInput{
		HelmBinaryPath: input.HelmBinaryPath,
		Name:           "ingress-nginx",
		URL:            "https://kubernetes.github.io/ingress-nginx",
		Proxy:          input.BootstrapClusterProxy,
	})

	turtlesframework.HelmInstall(ctx, turtlesframework.HelmInstallInput{
		HelmBinaryPath: input.HelmBinaryPath,
		ReleaseName:    "ingress-nginx",
		Chart:          "ingress-nginx/ingress-nginx",
		Namespace:      input.IngressNamespace,
		Version:        input.IngressChartVersion,
		Proxy:          input.BootstrapClusterProxy,
		Values: map[string]string{
			"controller.hostPort.enabled":             "true",
			"controller.service.type":                 "NodePort",
			"controller.ingressClassResource.default": "true",
			"controller.admissionWebhooks.enabled":    "false",
			"controller.watchIngressWithoutClass":     "true",
			"controller.updateStrategy.type":          "Recreate",
		},
	})

	ingressDeployment := &appsv1.Deployment{ObjectMeta: metav1.ObjectMeta{Name: input.IngressDeployment, Namespace: input.IngressNamespace}}
	turtlesframework.Byf("Waiting for %s deployment to be available", input.IngressDeployment)
	Eventually(komega.Object(ingressDeployment), input.IngressWaitInterval...).Should(HaveField("Status.AvailableReplicas", Equal(int32(1))))
}
