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
	"flag"
)

type FlagValues struct {
	// ConfigPath is the path to the e2e config file.
	ConfigPath string

	// ArtifactFolder is the folder to store e2e test artifacts.
	ArtifactFolder string

	// SkipCleanup prevents cleanup of test resources e.g. for debug purposes.
	SkipCleanup bool

	// UseExistingCluster instructs the test to use the current cluster instead of creating a new one.
	UseExistingCluster bool

	// HelmBinaryPath is the path to the helm binary.
	HelmBinaryPath string
}

// InitFlags is used to specify the standard flags for the e2e tests.
func InitFlags(values *FlagValues) {
	flag.StringVar(&values.ConfigPath, "e2e.config", "../../config/e2e.yaml", "path to the e2e config file")
	flag.StringVar(&values.ArtifactFolder, "e2e.artifacts-folder", "_artifacts", "folder where e2e test artifact should be stored")
	flag.BoolVar(&values.SkipCleanup, "e2e.skip-resource-cleanup", false, "if true, the resource cleanup after tests will be skipped")
	flag.BoolVar(&values.UseExistingCluster, "e2e.use-existing-cluster", false, "if true, the test uses the current cluster instead of creating a new one (default discovery rules apply)")
	flag.StringVar(&values.HelmBinaryPath, "e2e.helm-binary-path", "", "path to the helm binary")
}
