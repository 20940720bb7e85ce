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

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/gomega"
	"k8s.io/apimachinery/pkg/util/yaml"

	"sigs.k8s.io/cluster-api/test/framework/clusterctl"
)

// LoadE2EConfig reads the suite configuration and fails the spec on any error.
func LoadE2EConfig(configPath string) *clusterctl.E2EConfig {
	Expect(configPath).To(BeAnExistingFile(), "Invalid test suite argument. e2e.config should be an existing file.")

	config, err := ReadE2EConfig(configPath)
	Expect(err).ToNot(HaveOccurred(), "Failed to load the e2e test config file")

	return config
}

// ReadE2EConfig parses an E2EConfig file. Variables which are not already present in the
// environment are exported, and {VAR} references in image names are expanded.
func ReadE2EConfig(configPath string) (*clusterctl.E2EConfig, error) {
	configData, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("reading e2e config: %w", err)
	}

	if len(configData) == 0 {
		return nil, errors.New("the e2e test config file should not be empty")
	}

	config := &clusterctl.E2EConfig{}
	if err := yaml.UnmarshalStrict(configData, config); err != nil {
		return nil, fmt.Errorf("converting e2e config to yaml: %w", err)
	}

	config.Defaults()
	config.AbsPaths(filepath.Dir(configPath))

	replaceVars := []string{}
	for k, v := range config.Variables {
		if os.Getenv(k) == "" {
			if err := os.Setenv(k, v); err != nil {
				return nil, fmt.Errorf("exporting %s: %w", k, err)
			}
		}
		replaceVars = append(replaceVars, fmt.Sprintf("{%s}", k), os.Getenv(k))
	}

	imageReplacer := strings.NewReplacer(replaceVars...)
	for i := range config.Images {
		containerImage := &config.Images[i]
		containerImage.Name = imageReplacer.Replace(containerImage.Name)
	}

	return config, nil
}
