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
	"encoding/base64"
	"fmt"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	"gopkg.in/yaml.v3"
	"sigs.k8s.io/cluster-api/util"
	sigsyaml "sigs.k8s.io/yaml"

	turtlesframework "github.com/rancher/turtles-e2e/test/framework"
)

const (
	BuildTypeDev  = "dev"
	BuildTypeProd = "prod"
)

// Vars are the scenario settings that depend on the Rancher release under test.
type Vars struct {
	ShortTimeout time.Duration
	FullTimeout  time.Duration

	// ClassBranch is the branch of the turtles repository the example ClusterClasses come from.
	ClassBranch string

	CAPIClustersNS string
	CAPIClassesNS  string
	RepoURL        string
	TurtlesRepoURL string

	KindVersion string
	K8sVersion  string
	RKE2Version string
	AMIID       string
	GCPImageID  string
}

// NewVars computes Vars for a channel/version[/headVersion] Rancher release.
func NewVars(rancherVersion string) (Vars, error) {
	is212, err := turtlesframework.RancherVersionSatisfies(rancherVersion, "2.12")
	if err != nil {
		return Vars{}, err
	}

	is213, err := turtlesframework.RancherVersionSatisfies(rancherVersion, "2.13")
	if err != nil {
		return Vars{}, err
	}

	atLeast213, err := turtlesframework.RancherVersionSatisfies(rancherVersion, ">=2.13")
	if err != nil {
		return Vars{}, err
	}

	v := Vars{
		ShortTimeout:   10 * time.Minute,
		FullTimeout:    25 * time.Minute,
		ClassBranch:    "main",
		CAPIClustersNS: CAPIClustersNamespace,
		CAPIClassesNS:  CAPIClassesNamespace,
		RepoURL:        RepoURL,
		TurtlesRepoURL: TurtlesRepoURL,
		KindVersion:    "v1.33.4",
		K8sVersion:     "v1.33.5",
		RKE2Version:    "v1.33.5+rke2r1",
		AMIID:          "ami-07cded2dd011bc687",
		GCPImageID:     "cluster-api-ubuntu-2404-v1-33-5-1762252437",
	}

	switch {
	case is212:
		v.ClassBranch = "release-0.24"
	case is213:
		v.ClassBranch = "release/v0.25"
	}

	if atLeast213 {
		v.KindVersion = "v1.34.0"
		v.K8sVersion = "v1.34.1"
		v.RKE2Version = "v1.34.1+rke2r1"
		// Private copy of ami-055123d49b91c2827 from eu-west-2.
		v.AMIID = "ami-010b4d392889007a3"
		v.GCPImageID = "cluster-api-ubuntu-2404-v1-34-1-1762253907"
	}

	return v, nil
}

// ShortIntervals is the Eventually timeout/polling pair for quick clusters.
func (v Vars) ShortIntervals() []interface{} {
	return turtlesframework.DurationIntervals(v.ShortTimeout, 10*time.Second)
}

// FullIntervals is the Eventually timeout/polling pair for cloud clusters.
func (v Vars) FullIntervals() []interface{} {
	return turtlesframework.DurationIntervals(v.FullTimeout, 30*time.Second)
}

// ProviderVersions are the CAPI provider releases expected for a build type.
type ProviderVersions struct {
	Kubeadm string `yaml:"kubeadm"`
	Fleet   string `yaml:"fleet"`
	VSphere string `yaml:"vsphere"`
	Amazon  string `yaml:"amazon"`
	Google  string `yaml:"google"`
	Azure   string `yaml:"azure"`
}

// LoadProviderVersions reads the provider versions of a build type from the embedded table.
func LoadProviderVersions(buildType string) (ProviderVersions, error) {
	table := map[string]ProviderVersions{}
	if err := yaml.Unmarshal(providerVersionsYAML, &table); err != nil {
		return ProviderVersions{}, fmt.Errorf("reading provider versions: %w", err)
	}

	versions, ok := table[buildType]
	if !ok {
		return ProviderVersions{}, fmt.Errorf("no provider versions for build type %q", buildType)
	}

	return versions, nil
}

// BuildType is "dev" when the charts come from the CI chartmuseum.
func BuildType() string {
	if os.Getenv(ChartMuseumRepoVar) != "" {
		return BuildTypeDev
	}

	return BuildTypeProd
}

// IsDevBuild reports whether BuildType is "dev".
func IsDevBuild() bool {
	return BuildType() == BuildTypeDev
}

// GetClusterName is turtles-qa-<class>-<CLUSTER_NAME_SUFFIX>.
func GetClusterName(class string) string {
	return fmt.Sprintf("turtles-qa-%s-%s", class, os.Getenv(ClusterNameSuffixVar))
}

// GetRandomClusterName adds a random part to GetClusterName, for scenarios that may run
// more than once against the same cloud account.
func GetRandomClusterName(class string) string {
	return GetClusterName(class + "-" + util.RandomString(4))
}

// SkipClusterDeletion mirrors SKIP_CLUSTER_DELETE=="false". Deletion steps run only when it
// returns true, so an unset variable keeps the clusters around.
func SkipClusterDeletion() bool {
	return os.Getenv(SkipClusterDeleteVar) == "false"
}

// IsAPIv1beta1 reports whether the class-cluster fixtures target the v1beta1 CAPI API.
func IsAPIv1beta1() bool {
	v := os.Getenv(CAPIAPIVersionVar)
	return v == "" || v == "v1beta1"
}

// IsUpgrade reports whether the run filters on the migration or upgrade labels.
func IsUpgrade() bool {
	filter := GinkgoLabelFilter()
	return Label(MigrationTestLabel).MatchesLabelFilter(filter) || Label(UpgradeTestLabel).MatchesLabelFilter(filter)
}

// VSphereCredentials are the fields of VSPHERE_SECRETS_JSON_BASE64.
type VSphereCredentials struct {
	Username string `json:"vsphere_username"`
	Password string `json:"vsphere_password"`
	Server   string `json:"vsphere_server"`
	Port     string `json:"-"`
}

// ParseVSphereCredentials decodes the base64 encoded JSON credentials. The port is always 443.
func ParseVSphereCredentials(encoded string) (VSphereCredentials, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return VSphereCredentials{}, fmt.Errorf("decoding vSphere secrets: %w", err)
	}

	creds := VSphereCredentials{}
	if err := sigsyaml.Unmarshal(raw, &creds); err != nil {
		return VSphereCredentials{}, fmt.Errorf("parsing vSphere secrets: %w", err)
	}
	creds.Port = "443"

	return creds, nil
}
