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

package e2e

import (
	_ "embed"
)

var (
	//go:embed data/cluster-templates/capd-kubeadm-class-cluster.yaml
	CAPDKubeadmClassCluster []byte

	//go:embed data/cluster-templates/capd-rke2-class-cluster.yaml
	CAPDRKE2ClassCluster []byte

	//go:embed data/cluster-templates/capa-rke2-class-cluster.yaml
	CAPARKE2ClassCluster []byte

	//go:embed data/cluster-templates/capz-aks-class-cluster.yaml
	CAPZAKSClassCluster []byte

	//go:embed data/cluster-templates/capz-kubeadm-class-cluster.yaml
	CAPZKubeadmClassCluster []byte

	//go:embed data/cluster-templates/capz-rke2-class-cluster.yaml
	CAPZRKE2ClassCluster []byte

	//go:embed data/cluster-templates/capv-kubeadm-class-cluster.yaml
	CAPVKubeadmClassCluster []byte

	//go:embed data/capz/capz-helm-values.yaml
	CAPZHelmValues []byte

	//go:embed data/capz/capz-helm-values-secret.yaml
	CAPZHelmValuesSecret []byte

	//go:embed data/turtles/providers-chart-helmop.yaml
	ProvidersChartHelmOp []byte

	//go:embed data/turtles/provider-versions.yaml
	providerVersionsYAML []byte

	//go:embed data/capd-kindnet-configmap.yaml
	CAPDKindnetConfigMap []byte

	//go:embed data/rancher/azure-rke-config.yaml
	V2ProvAzureRkeConfig []byte

	//go:embed data/rancher/azure-rke2-cluster.yaml
	V2ProvAzureCluster []byte
)

const (
	CAPIClustersNamespace = "capi-clusters"
	CAPIClassesNamespace  = "capi-classes"

	CAPDNamespace = "capd-system"
	CAPANamespace = "capa-system"
	CAPGNamespace = "capg-system"
	CAPZNamespace = "capz-system"
	CAPVNamespace = "capv-system"

	KubeadmBootstrapNamespace    = "capi-kubeadm-bootstrap-system"
	KubeadmControlPlaneNamespace = "capi-kubeadm-control-plane-system"

	LoggingNamespace = "cattle-logging-system"
)

const (
	RepoURL        = "https://github.com/rancher/rancher-turtles-e2e"
	TurtlesRepoURL = "https://github.com/rancher/turtles"
)

const (
	ArtifactsFolderVar     = "ARTIFACTS_FOLDER"
	UseExistingClusterVar  = "USE_EXISTING_CLUSTER"
	HelmBinaryPathVar      = "HELM_BINARY_PATH"
	SkipResourceCleanupVar = "SKIP_RESOURCE_CLEANUP"

	KubernetesManagementVersionVar = "KUBERNETES_MANAGEMENT_VERSION"

	RancherVersionVar        = "RANCHER_VERSION"
	RancherUpgradeVersionVar = "RANCHER_UPGRADE_VERSION"
	RancherHostnameVar       = "RANCHER_HOSTNAME"
	RancherPasswordVar       = "RANCHER_PASSWORD"

	ChartMuseumRepoVar    = "CHARTMUSEUM_REPO"
	TurtlesDevChartVar    = "TURTLES_DEV_CHART"
	MigrationVar          = "MIGRATION"
	ClusterNameSuffixVar  = "CLUSTER_NAME_SUFFIX"
	SkipClusterDeleteVar  = "SKIP_CLUSTER_DELETE"
	CAPIAPIVersionVar     = "CAPI_API_VERSION"
	VSphereSecretsJSONVar = "VSPHERE_SECRETS_JSON_BASE64"
	GCPCredentialsVar     = "GCP_CREDENTIALS"
)

const (
	InstallTestLabel   = "install"
	OperatorTestLabel  = "operator"
	UpgradeTestLabel   = "upgrade"
	ShortTestLabel     = "short"
	FullTestLabel      = "full"
	VsphereTestLabel   = "vsphere"
	MigrationTestLabel = "migration"
	V2ProvTestLabel    = "v2prov"
)
