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
	"fmt"
	"maps"
	"os"
	"regexp"
	"slices"
	"sort"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/labels"
	"sigs.k8s.io/cluster-api/test/framework"
	crclient "sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"

	turtlesframework "github.com/rancher/turtles-e2e/test/framework"
)

const (
	providerEnabledKey   = "enabled"
	providerVerbosityKey = "manager.verbosity"
	debugVerbosityValue  = "5"

	bootstrapRKE2Path       = "providers.bootstrapRKE2."
	controlplaneRKE2Path    = "providers.controlplaneRKE2."
	bootstrapKubeadmPath    = "providers.bootstrapKubeadm."
	controlplaneKubeadmPath = "providers.controlplaneKubeadm."
	dockerPath              = "providers.infrastructureDocker."
	awsPath                 = "providers.infrastructureAWS."
	azurePath               = "providers.infrastructureAzure."
	gcpPath                 = "providers.infrastructureGCP."
	vspherePath             = "providers.infrastructureVSphere."

	providerKubeadmBootstrap    = "kubeadm-bootstrap"
	providerKubeadmControlPlane = "kubeadm-control-plane"
	providerDocker              = "docker"
	providerAWS                 = "aws"
	providerAzure               = "azure"
	providerGCP                 = "gcp"
	providerVSphere             = "vsphere"

	deployCAPIControllerManager = "capi-controller-manager"
	namespaceCAPISystem         = "cattle-capi-system"

	deployKubeadmBootstrapControllerManager = "capi-kubeadm-bootstrap-controller-manager"
	namespaceKubeadmBootstrapSystem         = "capi-kubeadm-bootstrap-system"

	deployKubeadmControlPlaneControllerManager = "capi-kubeadm-control-plane-controller-manager"
	namespaceKubeadmControlPlaneSystem         = "capi-kubeadm-control-plane-system"

	deployCAPDControllerManager = "capd-controller-manager"
	namespaceCAPDSystem         = "capd-system"

	deployCAPAControllerManager = "capa-controller-manager"
	namespaceCAPASystem         = "capa-system"

	deployCAPZControllerManager = "capz-controller-manager"
	namespaceCAPZSystem         = "capz-system"

	deployCAPGControllerManager = "capg-controller-manager"
	namespaceCAPGSystem         = "capg-system"

	deployCAPVControllerManager = "capv-controller-manager"
	namespaceCAPVSystem         = "capv-system"
)

// DeployRancherTurtlesProvidersInput represents the input parameters for installing the
// rancher-turtles-providers chart.
type DeployRancherTurtlesProvidersInput struct {
	// BootstrapClusterProxy is the cluster proxy for the bootstrap cluster.
	BootstrapClusterProxy framework.ClusterProxy

	// HelmBinaryPath is the path to the Helm binary.
	HelmBinaryPath string `env:"HELM_BINARY_PATH" envDefault:"helm"`

	// DevChart installs the chart built by CI from chartmuseum instead of the released OCI chart.
	DevChart bool `env:"TURTLES_DEV_CHART"`

	// Version is the chart version to install. Empty means latest.
	Version string `env:"TURTLES_PROVIDERS_CHART_VERSION"`

	// Namespace is the release namespace.
	Namespace string `envDefault:"cattle-turtles-system"`

	// AdditionalValues are additional Helm values to pass to the chart (for example to
	// enable specific infrastructure providers).
	AdditionalValues map[string]string

	// WaitDeploymentsReadyInterval is the interval used when waiting for provider
	// deployments to become available (e.g. "15m,10s").
	WaitDeploymentsReadyInterval []interface{} `envDefault:"15m,10s"`

	// ProviderList is an optional comma-separated list of providers to enable.
	// Examples: "all", "azure,aws". Empty keeps the chart defaults.
	ProviderList string `env:"TURTLES_PROVIDERS"`

	// MigrationScriptPath is the path to the providers ownership migration script. When set the
	// script adopts existing provider resources into the new release before the install.
	MigrationScriptPath string `env:"TURTLES_MIGRATION_SCRIPT_PATH"`
}

// ProvidersChart returns the chart reference of the providers chart.
func ProvidersChart(devChart bool) string {
	if devChart {
		return ChartMuseumRepoName + "/" + ProvidersChartName
	}

	return ProvidersChartOCI
}

// DeployRancherTurtlesProviders installs the rancher-turtles-providers chart with provided values and waits for deployments.
func DeployRancherTurtlesProviders(ctx context.Context, input DeployRancherTurtlesProvidersInput) {
	Expect(turtlesframework.Parse(&input)).To(Succeed(), "Failed to parse environment variables")

	Expect(ctx).NotTo(BeNil(), "ctx is required for DeployRancherTurtlesProviders")
	Expect(input.BootstrapClusterProxy).ToNot(BeNil(), "BootstrapClusterProxy is required for DeployRancherTurtlesProviders")

	values := ProviderHelmValues(ctx, input.ProviderList)
	maps.Copy(values, input.AdditionalValues)

	enabledProviders := getEnabledCAPIProviders(values)
	configureProviderDefaults(values, enabledProviders)

	if input.MigrationScriptPath != "" {
		adoptArgs := getAdoptArgsForEnabledProviders(enabledProviders, values)
		log.FromContext(ctx).Info("Providers adoption args prepared", "args", adoptArgs, "enabled", enabledProviders)
		runProviderMigration(ctx, input.MigrationScriptPath, input.BootstrapClusterProxy.GetKubeconfigPath(), input.Namespace, adoptArgs...)
	}

	args := []string{
		"upgrade", "--install", ProvidersChartName, ProvidersChart(input.DevChart),
		"--kubeconfig", input.BootstrapClusterProxy.GetKubeconfigPath(),
	}
	args = append(args, turtlesframework.HelmInstallFlags(turtlesframework.HelmInstallInput{
		Namespace: input.Namespace,
		Version:   input.Version,
		Devel:     input.DevChart,
	})...)
	args = append(args, providerValueFlags(values)...)
	args = append(args, "--wait", "--reuse-values", "--timeout", "10m")

	By("Installing rancher-turtles-providers chart")
	turtlesframework.RunHelmCmdWithRetry(ctx, turtlesframework.RunHelmCmdWithRetryInput{
		HelmBinaryPath: input.HelmBinaryPath,
		Args:           args,
	})

	waitForDeployments(ctx, input.BootstrapClusterProxy, getDeploymentsForEnabledProviders(enabledProviders), input.WaitDeploymentsReadyInterval)

	if slices.Contains(enabledProviders, providerAzure) {
		azureServiceOperatorWaiter(input.BootstrapClusterProxy)(ctx)
	}
}

// UninstallRancherTurtlesProviders removes the providers chart release.
func UninstallRancherTurtlesProviders(ctx context.Context, proxy framework.ClusterProxy) {
	turtlesframework.HelmUninstall(ctx, turtlesframework.HelmUninstallInput{
		ReleaseName: ProvidersChartName,
		Namespace:   turtlesframework.TurtlesNamespace,
		Proxy:       proxy,
	})
}

// ProviderHelmValues turns a comma-separated provider list into chart values. "all" enables every
// provider; unknown names are logged and ignored.
func ProviderHelmValues(ctx context.Context, providerList string) map[string]string {
	values := map[string]string{}

	selectedList := strings.TrimSpace(strings.ToLower(providerList))
	if selectedList == "all" {
		enableAllProviders(values)
		return values
	}

	for _, p := range strings.Split(selectedList, ",") {
		provider := strings.TrimSpace(p)
		switch provider {
		case "rke2":
			values[bootstrapRKE2Path+providerVerbosityKey] = debugVerbosityValue
			values[controlplaneRKE2Path+providerVerbosityKey] = debugVerbosityValue
		case "kubeadm":
			values[bootstrapKubeadmPath+providerEnabledKey] = "true"
			values[bootstrapKubeadmPath+providerVerbosityKey] = debugVerbosityValue
			values[controlplaneKubeadmPath+providerEnabledKey] = "true"
			values[controlplaneKubeadmPath+providerVerbosityKey] = debugVerbosityValue
		case "docker", "capd":
			values[dockerPath+providerEnabledKey] = "true"
			values[dockerPath+providerVerbosityKey] = debugVerbosityValue
		case "aws", "capa":
			values[awsPath+providerEnabledKey] = "true"
			values[awsPath+providerVerbosityKey] = debugVerbosityValue
		case "azure", "capz":
			values[azurePath+providerEnabledKey] = "true"
			values[azurePath+providerVerbosityKey] = debugVerbosityValue
		case "gcp", "capg":
			values[gcpPath+providerEnabledKey] = "true"
			values[gcpPath+providerVerbosityKey] = debugVerbosityValue
		case "vsphere", "capv":
			values[vspherePath+providerEnabledKey] = "true"
			values[vspherePath+providerVerbosityKey] = debugVerbosityValue
		case "":
		default:
			log.FromContext(ctx).Info("Unknown provider in TURTLES_PROVIDERS, ignoring", "provider", provider)
		}
	}

	return values
}

// EnableProvidersInHelmOp flips "enabled: false" to "enabled: true" for the given provider keys
// of the providers chart HelmOp, for example "infrastructureAzure".
func EnableProvidersInHelmOp(helmOp []byte, providerKeys ...string) []byte {
	out := helmOp
	for _, key := range providerKeys {
		re := regexp.MustCompile(`(` + regexp.QuoteMeta(key) + `:\n(\s*))enabled: false`)
		out = re.ReplaceAll(out, []byte("${1}enabled: true"))
	}

	return out
}

// providerValueFlags renders chart values in a stable order. Provider variables must be strings.
func providerValueFlags(values map[string]string) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	flags := make([]string, 0, len(keys)*2)
	for _, k := range keys {
		flag := "--set"
		if strings.Contains(k, ".variables.") {
			flag = "--set-string"
		}
		flags = append(flags, flag, fmt.Sprintf("%s=%s", k, values[k]))
	}

	return flags
}

func runProviderMigration(ctx context.Context, scriptPath, kubeconfigPath, namespace string, extraArgs ...string) {
	if _, err := os.Stat(scriptPath); err != nil {
		Expect(fmt.Errorf("migration script not found: %s", scriptPath)).ToNot(HaveOccurred())
	}

	By("Running providers ownership migration script")
	result := &turtlesframework.RunCommandResult{}
	turtlesframework.RunCommand(ctx, turtlesframework.RunCommandInput{
		Command: scriptPath,
		Args:    append([]string{"--kubeconfig", kubeconfigPath}, extraArgs...),
		EnvironmentVariables: map[string]string{
			"RELEASE_NAME":            ProvidersChartName,
			"RELEASE_NAMESPACE":       namespace,
			"TURTLES_CHART_NAMESPACE": namespace,
		},
	}, result)
	Expect(result.Error).ToNot(HaveOccurred(), "migration script failed: %s", result.Stderr)

	log.FromContext(ctx).Info("migration completed", "output", string(result.Stdout))
}

func enableAllProviders(values map[string]string) {
	values[bootstrapRKE2Path+providerVerbosityKey] = debugVerbosityValue
	values[controlplaneRKE2Path+providerVerbosityKey] = debugVerbosityValue
	values[bootstrapKubeadmPath+providerEnabledKey] = "true"
	values[bootstrapKubeadmPath+providerVerbosityKey] = debugVerbosityValue
	values[controlplaneKubeadmPath+providerEnabledKey] = "true"
	values[controlplaneKubeadmPath+providerVerbosityKey] = debugVerbosityValue
	values[dockerPath+providerEnabledKey] = "true"
	values[dockerPath+providerVerbosityKey] = debugVerbosityValue
	values[awsPath+providerEnabledKey] = "true"
	values[awsPath+providerVerbosityKey] = debugVerbosityValue
	values[azurePath+providerEnabledKey] = "true"
	values[azurePath+providerVerbosityKey] = debugVerbosityValue
	values[gcpPath+providerEnabledKey] = "true"
	values[gcpPath+providerVerbosityKey] = debugVerbosityValue
	values[vspherePath+providerEnabledKey] = "true"
	values[vspherePath+providerVerbosityKey] = debugVerbosityValue
}

func getAdoptArgsForEnabledProviders(enabled []string, values map[string]string) []string {
	adopt := []string{}

	getNamespaceWithDefault := func(key, defaultNamespace string) string { // Try to get namespace from values or use default
		if namespace, ok := values[key]; ok && strings.TrimSpace(namespace) != "" {
			return strings.TrimSpace(namespace)
		}
		return defaultNamespace
	}

	namespaces := map[string]string{
		providerKubeadmBootstrap:    getNamespaceWithDefault("providers.bootstrapKubeadm.namespace", namespaceKubeadmBootstrapSystem),
		providerKubeadmControlPlane: getNamespaceWithDefault("providers.controlplaneKubeadm.namespace", namespaceKubeadmControlPlaneSystem),
		providerDocker:              getNamespaceWithDefault("providers.infrastructureDocker.namespace", namespaceCAPDSystem),
		providerAWS:                 getNamespaceWithDefault("providers.infrastructureAWS.namespace", namespaceCAPASystem),
		providerAzure:               getNamespaceWithDefault("providers.infrastructureAzure.namespace", namespaceCAPZSystem),
		providerGCP:                 getNamespaceWithDefault("providers.infrastructureGCP.namespace", namespaceCAPGSystem),
		providerVSphere:             getNamespaceWithDefault("providers.infrastructureVSphere.namespace", namespaceCAPVSystem),
	}

	for _, name := range enabled {
		if namespace, ok := namespaces[name]; ok && namespace != "" {
			adopt = append(adopt, "--adopt", fmt.Sprintf("%s:%s", name, namespace))
		}
	}

	return adopt
}

func getEnabledCAPIProviders(values map[string]string) []string {
	out := []string{}
	if values[bootstrapKubeadmPath+providerEnabledKey] == "true" {
		out = append(out, providerKubeadmBootstrap)
	}
	if values[controlplaneKubeadmPath+providerEnabledKey] == "true" {
		out = append(out, providerKubeadmControlPlane)
	}
	if values[dockerPath+providerEnabledKey] == "true" {
		out = append(out, providerDocker)
	}
	if values[awsPath+providerEnabledKey] == "true" {
		out = append(out, providerAWS)
	}
	if values[azurePath+providerEnabledKey] == "true" {
		out = append(out, providerAzure)
	}
	if values[gcpPath+providerEnabledKey] == "true" {
		out = append(out, providerGCP)
	}
	if values[vspherePath+providerEnabledKey] == "true" {
		out = append(out, providerVSphere)
	}
	return out
}

func getDeploymentsForEnabledProviders(enabled []string) []NamespaceName {
	deployments := []NamespaceName{
		{Name: deployCAPIControllerManager, Namespace: namespaceCAPISystem},
	}

	for _, name := range enabled {
		switch name {
		case providerKubeadmBootstrap:
			deployments = append(deployments, NamespaceName{Name: deployKubeadmBootstrapControllerManager, Namespace: namespaceKubeadmBootstrapSystem})
		case providerKubeadmControlPlane:
			deployments = append(deployments, NamespaceName{Name: deployKubeadmControlPlaneControllerManager, Namespace: namespaceKubeadmControlPlaneSystem})
		case providerDocker:
			deployments = append(deployments, NamespaceName{Name: deployCAPDControllerManager, Namespace: namespaceCAPDSystem})
		case providerAWS:
			deployments = append(deployments, NamespaceName{Name: deployCAPAControllerManager, Namespace: namespaceCAPASystem})
		case providerAzure:
			deployments = append(deployments, NamespaceName{Name: deployCAPZControllerManager, Namespace: namespaceCAPZSystem})
		case providerGCP:
			deployments = append(deployments, NamespaceName{Name: deployCAPGControllerManager, Namespace: namespaceCAPGSystem})
		case providerVSphere:
			deployments = append(deployments, NamespaceName{Name: deployCAPVControllerManager, Namespace: namespaceCAPVSystem})
		}
	}

	return deployments
}

func configureProviderDefaults(values map[string]string, enabled []string) {
	for _, name := range enabled {
		switch name {
		case providerAWS:
			values["providers.infrastructureAWS.variables.EXP_MACHINE_POOL"] = "true"
			values["providers.infrastructureAWS.variables.EXP_EXTERNAL_RESOURCE_GC"] = "true"
			values["providers.infrastructureAWS.variables.CAPA_LOGLEVEL"] = "5"
			values["providers.infrastructureAWS.manager.syncPeriod"] = "5m"
		}
	}
}

// azureServiceOperatorWaiter watches the azure-service-operator pod for 10 minutes and restarts it
// when it crash loops. See https://github.com/rancher/turtles/issues/1584.
func azureServiceOperatorWaiter(bootstrapClusterProxy framework.ClusterProxy) func(ctx context.Context) {
	return func(ctx context.Context) {
		overallTimeout := 10 * time.Minute
		pollInterval := 5 * time.Second
		overallDeadline := time.Now().Add(overallTimeout)
		podLabels := map[string]string{
			"app.kubernetes.io/name": "azure-service-operator",
			"control-plane":          "controller-manager",
		}
		lastPod := &corev1.Pod{}

		for time.Now().Before(overallDeadline) {
			var podList corev1.PodList
			err := bootstrapClusterProxy.GetClient().List(ctx, &podList, &crclient.ListOptions{
				Namespace:     namespaceCAPZSystem,
				LabelSelector: labels.SelectorFromSet(podLabels),
			})
			Expect(err).ToNot(HaveOccurred(), "Failed to list azure-service-operator pods")

			if len(podList.Items) == 0 {
				By("Waiting for azure-service-operator pod to be created")
				time.Sleep(pollInterval)
				continue
			}

			pod := &podList.Items[0]
			lastPod = pod

			crashloop := false
			for _, cs := range pod.Status.ContainerStatuses {
				if cs.State.Waiting != nil && cs.State.Waiting.Reason == "CrashLoopBackOff" {
					crashloop = true
					break
				}
			}
			if crashloop {
				By("Restarting azure-service-operator pod due to CrashLoopBackOff")
				err := bootstrapClusterProxy.GetClient().Delete(ctx, pod)
				Expect(err).ToNot(HaveOccurred(), "Failed to delete azure-service-operator pod for restart")
				time.Sleep(pollInterval)
				continue
			}

			ready := false
			for _, cs := range pod.Status.ContainerStatuses {
				if cs.Ready {
					ready = true
					break
				}
			}
			if ready && pod.Status.Phase == corev1.PodRunning {
				By("azure-service-operator pod is running and ready, continuing to monitor...")
			}

			time.Sleep(pollInterval)
		}

		Expect(lastPod).ToNot(BeNil(), "azure-service-operator pod should exist after 10 minutes of monitoring")

		By("Performing final azure-service-operator pod status check")
		Expect(lastPod.Status.Phase).To(Equal(corev1.PodRunning), "azure-service-operator pod should be in Running phase after 10 minutes")

		finalReady := false
		for _, cs := range lastPod.Status.ContainerStatuses {
			if cs.Ready {
				finalReady = true
				break
			}
		}
		Expect(lastPod.Status.Phase == corev1.PodRunning && finalReady).To(BeTrue(), "azure-service-operator pod should be both running and ready after 10 minutes")
		By("azure-service-operator pod monitoring completed successfully - pod is running and ready")
	}
}
