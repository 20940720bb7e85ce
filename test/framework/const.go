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

const (
	// DefaultNamespace is the name of the default Kubernetes namespace.
	DefaultNamespace = "default"
	// DefaultBranchName is the name of the default git branch.
	DefaultBranchName = "main"
	// FleetLocalNamespace is the name of the namespace used for local cluster by Fleet.
	FleetLocalNamespace = "fleet-local"
	// MagicDNS is the dns name to use in isolated mode
	MagicDNS = "sslip.io"

	// TurtlesNamespace is the namespace Rancher Turtles runs in from Rancher 2.13 on.
	TurtlesNamespace = "cattle-turtles-system"
	// LegacyTurtlesNamespace is the namespace of the standalone Turtles chart (Rancher 2.12 and older).
	LegacyTurtlesNamespace = "rancher-turtles-system"
	// CAPINamespace is the namespace of the core Cluster API controller.
	CAPINamespace = "cattle-capi-system"
	// CattleSystemNamespace is the namespace Rancher itself runs in.
	CattleSystemNamespace = "cattle-system"
	// CattleGlobalDataNamespace holds cloud credentials.
	CattleGlobalDataNamespace = "cattle-global-data"
	// FleetDefaultNamespace is the Fleet workspace for downstream clusters.
	FleetDefaultNamespace = "fleet-default"

	// AutoImportLabel enables automatic import of CAPI clusters into Rancher.
	AutoImportLabel = "cluster-api.cattle.io/rancher-auto-import"
	// CAPIClusterOwnerLabel names the CAPI cluster a Rancher cluster was imported from.
	CAPIClusterOwnerLabel = "cluster-api.cattle.io/capi-cluster-owner"
	// CAPIClusterOwnerNamespaceLabel holds the namespace of the owning CAPI cluster.
	CAPIClusterOwnerNamespaceLabel = "cluster-api.cattle.io/capi-cluster-owner-ns"
	// OwnedLabel marks Rancher clusters owned by Turtles.
	OwnedLabel = "cluster-api.cattle.io/owned"
	// ExternallyManagedAnnotation is set on Rancher clusters whose lifecycle is handled by CAPI.
	ExternallyManagedAnnotation = "provisioning.cattle.io/externally-managed"
	// HelmReleaseNamespaceAnnotation is the Helm ownership annotation patched on CRDs before a chart takeover.
	HelmReleaseNamespaceAnnotation = "meta.helm.sh/release-namespace"
	// HelmReleaseNameAnnotation is the Helm ownership annotation holding the release name.
	HelmReleaseNameAnnotation = "meta.helm.sh/release-name"
	// WranglerCertAnnotation is put on webhook services whose certificates wrangler manages.
	WranglerCertAnnotation = "need-a-cert.cattle.io/secret-name"

	// EmbeddedCAPIFeature is the Rancher feature flag for the embedded Cluster API controllers.
	EmbeddedCAPIFeature = "embedded-cluster-api"
	// TurtlesFeature is the Rancher feature flag for the Turtles system chart.
	TurtlesFeature = "turtles"
)
