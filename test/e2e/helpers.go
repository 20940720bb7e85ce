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
	"os"
	"strconv"

	. "github.com/onsi/gomega"

	"k8s.io/apimachinery/pkg/runtime"
	clusterv1 "sigs.k8s.io/cluster-api/api/v1beta1"
	expv1 "sigs.k8s.io/cluster-api/exp/api/v1beta1"
	"sigs.k8s.io/cluster-api/test/framework"
	"sigs.k8s.io/cluster-api/test/framework/clusterctl"

	turtlesframework "github.com/rancher/turtles-e2e/test/framework"
)

func InitScheme() *runtime.Scheme {
	scheme := runtime.NewScheme()
	framework.TryAddDefaultSchemes(scheme)
	Expect(clusterv1.AddToScheme(scheme)).To(Succeed())
	Expect(expv1.AddToScheme(scheme)).To(Succeed())
	return scheme
}

// LoadE2EConfig loads the suite configuration and applies the command line flags on top of it.
func LoadE2EConfig(flags *FlagValues) *clusterctl.E2EConfig {
	config := turtlesframework.LoadE2EConfig(flags.ConfigPath)

	overrides := map[string]string{
		ArtifactsFolderVar: flags.ArtifactFolder,
		HelmBinaryPathVar:  flags.HelmBinaryPath,
	}
	if flags.UseExistingCluster {
		overrides[UseExistingClusterVar] = "true"
	}
	if flags.SkipCleanup {
		overrides[SkipResourceCleanupVar] = "true"
	}

	if config.Variables == nil {
		config.Variables = map[string]string{}
	}

	for k, v := range overrides {
		if v == "" {
			continue
		}
		config.Variables[k] = v
		Expect(os.Setenv(k, v)).To(Succeed())
	}

	return config
}

func ValidateE2EConfig(config *clusterctl.E2EConfig) {
	Expect(os.MkdirAll(config.GetVariable(ArtifactsFolderVar), 0o755)).To(Succeed(), "Invalid test suite argument. Can't create artifacts folder %q", config.GetVariable(ArtifactsFolderVar))
	Expect(config.GetVariable(RancherVersionVar)).ToNot(BeEmpty(), "Invalid test suite argument. RANCHER_VERSION can't be empty.")

	_, err := strconv.ParseBool(config.GetVariable(UseExistingClusterVar))
	Expect(err).ToNot(HaveOccurred(), "Invalid test suite argument. Can't parse USE_EXISTING_CLUSTER %q", config.GetVariable(UseExistingClusterVar))

	_, err = strconv.ParseBool(config.GetVariable(SkipResourceCleanupVar))
	Expect(err).ToNot(HaveOccurred(), "Invalid test suite argument. Can't parse SKIP_RESOURCE_CLEANUP %q", config.GetVariable(SkipResourceCleanupVar))
}

// SuiteVars computes Vars from the RANCHER_VERSION of the configuration.
func SuiteVars(config *clusterctl.E2EConfig) Vars {
	vars, err := NewVars(config.GetVariable(RancherVersionVar))
	Expect(err).ToNot(HaveOccurred(), "Invalid test suite argument. Can't parse RANCHER_VERSION")

	return vars
}

// SuiteProviderVersions loads the provider versions of the current build type.
func SuiteProviderVersions() ProviderVersions {
	versions, err := LoadProviderVersions(BuildType())
	Expect(err).ToNot(HaveOccurred())

	return versions
}
