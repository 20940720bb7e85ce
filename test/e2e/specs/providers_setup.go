//go:build e2e
// +build e2e

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

package specs

import (
	"context"
	"net/url"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/cluster-api/test/framework"
	"sigs.k8s.io/cluster-api/test/framework/clusterctl"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/rancher/turtles-e2e/test/e2e"
	turtlesframework "github.com/rancher/turtles-e2e/test/framework"
	"github.com/rancher/turtles-e2e/test/testenv"
)

const (
	providerTypeBootstrap      = "bootstrap"
	providerTypeControlPlane   = "controlPlane"
	providerTypeInfrastructure = "infrastructure"
	providerTypeAddon          = "addon"

	appsGitRepoName = "helm-apps"
	appsGitRepoPath = "examples/applications/"
)

type ProvidersSetupSpecInput struct {
	E2EConfig             *clusterctl.E2EConfig
	BootstrapClusterProxy framework.ClusterProxy

	Vars             e2e.Vars
	ProviderVersions e2e.ProviderVersions

	RancherVersion string `env:"RANCHER_VERSION"`

	// ChartMuseumRepo is set for development builds, whose providers come from the providers chart.
	ChartMuseumRepo string `env:"CHARTMUSEUM_REPO"`

	// LocalProviders sets up kubeadm, docker and the fleet addon along with the apps repository.
	LocalProviders bool

	// VSphereProvider sets up the vSphere provider with its cloud credential.
	VSphereProvider bool

	// CloudProviders sets up the AWS, GCP and Azure providers.
	CloudProviders bool

	VSphereSecretsJSON string `env:"VSPHERE_SECRETS_JSON_BASE64"`
	AWSAccessKey       string `env:"AWS_ACCESS_KEY"`
	AWSSecretKey       string `env:"AWS_SECRET_KEY"`
	GCPCredentials     string `env:"GCP_CREDENTIALS"`
}

// ProvidersSetupSpec creates the namespaces and CAPI providers the cluster specs rely on. Released
// builds create each CAPIProvider the way the dashboard forms do. Development builds install them
// through a HelmOp of the providers chart and only check the result.
func ProvidersSetupSpec(ctx context.Context, inputGetter func() ProvidersSetupSpecInput) {
	var (
		specName  = "providers-setup"
		input     ProvidersSetupSpecInput
		devBuild  bool
		intervals []interface{}
	)

	BeforeAll(func() {
		Expect(ctx).NotTo(BeNil(), "ctx is required for %s spec", specName)
		input = inputGetter()
		Expect(turtlesframework.Parse(&input)).To(Succeed(), "Failed to parse environment variables")

		Expect(input.E2EConfig).ToNot(BeNil(), "Invalid argument. input.E2EConfig can't be nil when calling %s spec", specName)
		Expect(input.BootstrapClusterProxy).ToNot(BeNil(), "Invalid argument. input.BootstrapClusterProxy can't be nil when calling %s spec", specName)
		Expect(input.ProviderVersions.Kubeadm).ToNot(BeEmpty(), "Invalid argument. input.ProviderVersions can't be empty when calling %s spec", specName)

		devBuild = input.ChartMuseumRepo != ""
		intervals = input.E2EConfig.GetIntervals(specName, "wait-controllers")
	})

	waitForProvider := func(check turtlesframework.ProviderCheck) {
		check.CheckVersion = devBuild
		turtlesframework.WaitForCAPIProviderReady(ctx, input.BootstrapClusterProxy.GetClient(), check, intervals...)
	}

	verifyImages := func(name, namespace string) {
		turtlesframework.VerifyCAPIProviderImage(ctx, turtlesframework.VerifyCAPIProviderImageInput{
			Lister:    input.BootstrapClusterProxy.GetClient(),
			Name:      name,
			Namespace: namespace,
		})
	}

	applyProvidersHelmOp := func(providerKeys ...string) {
		helmOp, err := turtlesframework.RenderTemplate(testenv.EnableProvidersInHelmOp(e2e.ProvidersChartHelmOp, providerKeys...), map[string]string{
			"CHARTMUSEUM_HOST": chartMuseumHost(input.ChartMuseumRepo),
		})
		Expect(err).NotTo(HaveOccurred(), "Failed to render the providers chart HelmOp")
		Expect(turtlesframework.Apply(ctx, input.BootstrapClusterProxy, helmOp)).To(Succeed(), "Failed to apply the providers chart HelmOp")
	}

	Context("Local providers", Ordered, func() {
		BeforeAll(func() {
			if !input.LocalProviders {
				Skip("local providers are not requested")
			}
		})

		It("Should create the CAPI namespaces", func() {
			namespaces := []string{input.Vars.CAPIClustersNS, input.Vars.CAPIClassesNS}
			if !devBuild {
				namespaces = append(namespaces, e2e.KubeadmBootstrapNamespace, e2e.KubeadmControlPlaneNamespace, e2e.CAPDNamespace)
			}

			ensureNamespaces(ctx, input.BootstrapClusterProxy, namespaces...)
		})

		It("Should create the kubeadm providers", func() {
			if devBuild {
				applyProvidersHelmOp()
			} else {
				turtlesframework.CreateCustomCAPIProvider(ctx, input.BootstrapClusterProxy, turtlesframework.CAPIProviderSpec{
					Name:         "kubeadm-bootstrap",
					Namespace:    e2e.KubeadmBootstrapNamespace,
					ProviderName: "kubeadm",
					Type:         providerTypeBootstrap,
					Version:      input.ProviderVersions.Kubeadm,
				})
				turtlesframework.CreateCustomCAPIProvider(ctx, input.BootstrapClusterProxy, turtlesframework.CAPIProviderSpec{
					Name:         "kubeadm-control-plane",
					Namespace:    e2e.KubeadmControlPlaneNamespace,
					ProviderName: "kubeadm",
					Type:         providerTypeControlPlane,
					Version:      input.ProviderVersions.Kubeadm,
				})
			}

			waitForProvider(turtlesframework.ProviderCheck{
				Name:         "kubeadm-bootstrap",
				Namespace:    e2e.KubeadmBootstrapNamespace,
				Type:         providerTypeBootstrap,
				ProviderName: "kubeadm",
				Version:      input.ProviderVersions.Kubeadm,
			})
			waitForProvider(turtlesframework.ProviderCheck{
				Name:         "kubeadm-control-plane",
				Namespace:    e2e.KubeadmControlPlaneNamespace,
				Type:         providerTypeControlPlane,
				ProviderName: "kubeadm",
				Version:      input.ProviderVersions.Kubeadm,
			})
		})

		It("Should create the docker provider", func() {
			if !devBuild {
				turtlesframework.CreateCAPIProvider(ctx, input.BootstrapClusterProxy, turtlesframework.CAPIProviderSpec{
					Name:      "docker",
					Namespace: e2e.CAPDNamespace,
					Type:      providerTypeInfrastructure,
				})
			}

			waitForProvider(turtlesframework.ProviderCheck{
				Name:         "docker",
				Namespace:    e2e.CAPDNamespace,
				Type:         providerTypeInfrastructure,
				ProviderName: "docker",
				Version:      input.ProviderVersions.Kubeadm,
			})
			verifyImages("docker", e2e.CAPDNamespace)
		})

		It("Should add the applications repository", func() {
			turtlesframework.FleetCreateGitRepo(ctx, turtlesframework.FleetCreateGitRepoInput{
				Name:            appsGitRepoName,
				Repo:            input.Vars.TurtlesRepoURL,
				Branch:          turtlesframework.DefaultBranchName,
				Paths:           []string{appsGitRepoPath},
				TargetNamespace: input.Vars.CAPIClustersNS,
				ClusterProxy:    input.BootstrapClusterProxy,
			})
			turtlesframework.FleetWaitForGitRepoReady(ctx, turtlesframework.FleetWaitForGitRepoReadyInput{
				Name:         appsGitRepoName,
				ClusterProxy: input.BootstrapClusterProxy,
			})
		})

		It("Should have the fleet addon provider ready", func() {
			waitForProvider(turtlesframework.ProviderCheck{
				Name:         "fleet",
				Namespace:    turtlesNamespace(input.RancherVersion),
				Type:         providerTypeAddon,
				ProviderName: "fleet",
				Version:      input.ProviderVersions.Fleet,
			})
		})
	})

	Context("vSphere provider", Ordered, func() {
		BeforeAll(func() {
			if !input.VSphereProvider {
				Skip("vSphere provider is not requested")
			}
			Expect(input.VSphereSecretsJSON).ToNot(BeEmpty(), "Invalid argument. VSPHERE_SECRETS_JSON_BASE64 can't be empty when calling %s spec", specName)
		})

		It("Should create the vSphere provider", func() {
			creds, err := e2e.ParseVSphereCredentials(input.VSphereSecretsJSON)
			Expect(err).NotTo(HaveOccurred())

			turtlesframework.RancherCreateCloudCredential(ctx, turtlesframework.RancherCreateCloudCredentialInput{
				ClusterProxy: input.BootstrapClusterProxy,
				Name:         "vsphere",
				Driver:       "vmwarevsphere",
				Fields: map[string]string{
					"username":    creds.Username,
					"password":    creds.Password,
					"vcenter":     creds.Server,
					"vcenterPort": creds.Port,
				},
			})

			if devBuild {
				applyProvidersHelmOp("infrastructureVSphere")
			} else {
				ensureNamespaces(ctx, input.BootstrapClusterProxy, e2e.CAPVNamespace)
				turtlesframework.CreateCAPIProvider(ctx, input.BootstrapClusterProxy, turtlesframework.CAPIProviderSpec{
					Name:            "vsphere",
					Namespace:       e2e.CAPVNamespace,
					Type:            providerTypeInfrastructure,
					CloudCredential: "vsphere",
				})
			}

			waitForProvider(turtlesframework.ProviderCheck{
				Name:         "vsphere",
				Namespace:    e2e.CAPVNamespace,
				Type:         providerTypeInfrastructure,
				ProviderName: "vsphere",
				Version:      input.ProviderVersions.VSphere,
			})
			verifyImages("vsphere", e2e.CAPVNamespace)
		})
	})

	Context("Cloud providers", Ordered, func() {
		BeforeAll(func() {
			if !input.CloudProviders {
				Skip("cloud providers are not requested")
			}

			if devBuild {
				applyProvidersHelmOp("infrastructureAWS", "infrastructureAzure", "infrastructureGCP")
			} else {
				ensureNamespaces(ctx, input.BootstrapClusterProxy, e2e.CAPANamespace, e2e.CAPGNamespace, e2e.CAPZNamespace)
			}
		})

		It("Should create the AWS provider", func() {
			turtlesframework.RancherCreateCloudCredential(ctx, turtlesframework.RancherCreateCloudCredentialInput{
				ClusterProxy: input.BootstrapClusterProxy,
				Name:         "aws",
				Driver:       "amazonec2",
				Fields: map[string]string{
					"accessKey": input.AWSAccessKey,
					"secretKey": input.AWSSecretKey,
				},
			})

			if !devBuild {
				turtlesframework.CreateCAPIProvider(ctx, input.BootstrapClusterProxy, turtlesframework.CAPIProviderSpec{
					Name:            "aws",
					Namespace:       e2e.CAPANamespace,
					Type:            providerTypeInfrastructure,
					CloudCredential: "aws",
				})
			}

			waitForProvider(turtlesframework.ProviderCheck{
				Name:         "aws",
				Namespace:    e2e.CAPANamespace,
				Type:         providerTypeInfrastructure,
				ProviderName: "aws",
				Version:      input.ProviderVersions.Amazon,
			})
			verifyImages("aws", e2e.CAPANamespace)
		})

		It("Should create the GCP provider", func() {
			turtlesframework.RancherCreateCloudCredential(ctx, turtlesframework.RancherCreateCloudCredentialInput{
				ClusterProxy: input.BootstrapClusterProxy,
				Name:         "gcp",
				Driver:       "google",
				Fields: map[string]string{
					"authEncodedJson": input.GCPCredentials,
				},
			})

			if !devBuild {
				turtlesframework.CreateCAPIProvider(ctx, input.BootstrapClusterProxy, turtlesframework.CAPIProviderSpec{
					Name:            "gcp",
					Namespace:       e2e.CAPGNamespace,
					Type:            providerTypeInfrastructure,
					CloudCredential: "gcp",
				})
			}

			waitForProvider(turtlesframework.ProviderCheck{
				Name:         "gcp",
				Namespace:    e2e.CAPGNamespace,
				Type:         providerTypeInfrastructure,
				ProviderName: "gcp",
				Version:      input.ProviderVersions.Google,
			})
			verifyImages("gcp", e2e.CAPGNamespace)
		})

		It("Should create the Azure provider", func() {
			if !devBuild {
				turtlesframework.CreateCAPIProvider(ctx, input.BootstrapClusterProxy, turtlesframework.CAPIProviderSpec{
					Name:      "azure",
					Namespace: e2e.CAPZNamespace,
					Type:      providerTypeInfrastructure,
				})
			}

			waitForProvider(turtlesframework.ProviderCheck{
				Name:         "azure",
				Namespace:    e2e.CAPZNamespace,
				Type:         providerTypeInfrastructure,
				ProviderName: "azure",
				Version:      input.ProviderVersions.Azure,
			})
			verifyImages("azure", e2e.CAPZNamespace)
		})
	})
}

// ensureNamespaces creates the namespaces that do not exist yet.
func ensureNamespaces(ctx context.Context, proxy framework.ClusterProxy, names ...string) {
	for _, name := range names {
		turtlesframework.Byf("Creating namespace %s", name)
		ns := &corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: name}}
		Eventually(func() error {
			return client.IgnoreAlreadyExists(proxy.GetClient().Create(ctx, ns.DeepCopy()))
		}).Should(Succeed(), "Failed to create namespace %s", name)
	}
}

// chartMuseumHost strips the scheme and port from a chartmuseum repository address.
func chartMuseumHost(repo string) string {
	u, err := url.Parse(repo)
	if err != nil || u.Hostname() == "" {
		return repo
	}

	return u.Hostname()
}
