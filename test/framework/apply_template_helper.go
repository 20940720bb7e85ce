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
	"context"
	"encoding/base64"
	"os"
	"sort"
	"strings"

	"github.com/drone/envsubst/v2"
	. "github.com/onsi/gomega"
	"sigs.k8s.io/cluster-api/test/framework"
)

// ApplyFromTemplateInput represents the input parameters for applying a template.
type ApplyFromTemplateInput struct {
	// Template is the content of the template to be applied.
	Template []byte

	// AddtionalEnvironmentVariables is a map of additional environment variables to be set during template application.
	AddtionalEnvironmentVariables map[string]string

	// Namespace is the default namespace for objects that don't declare one.
	Namespace string

	// Proxy is the cluster proxy used for applying the template.
	Proxy framework.ClusterProxy

	// OutputFilePath is the path where the output of the template application will be stored.
	OutputFilePath string
}

// ApplyFromTemplate will generate a yaml definition from a given template and apply it in the cluster.
func ApplyFromTemplate(ctx context.Context, input ApplyFromTemplateInput) error {
	Expect(ctx).NotTo(BeNil(), "ctx is required for ApplyFromTemplate.")
	Expect(input.Template).ToNot(BeEmpty(), "Invalid argument. input.Template must be an existing byte array.")
	if input.OutputFilePath == "" {
		Expect(input.Proxy).NotTo(BeNil(), "Cluster proxy is required for ApplyFromTemplate.")
	}

	template, err := RenderTemplate(input.Template, input.AddtionalEnvironmentVariables)
	Expect(err).NotTo(HaveOccurred(), "Failed executing template generate")

	if input.OutputFilePath != "" {
		return os.WriteFile(input.OutputFilePath, template, os.ModePerm)
	}

	if input.Namespace != "" {
		return ApplyInNamespace(ctx, input.Proxy, template, input.Namespace)
	}

	return Apply(ctx, input.Proxy, template)
}

// RenderTemplate substitutes ${VAR} references. Overrides take precedence over the environment.
func RenderTemplate(tpl []byte, overrides map[string]string) ([]byte, error) {
	getter := func(key string) string {
		if val, ok := overrides[key]; ok {
			return val
		}
		return os.Getenv(key)
	}

	out, err := envsubst.Eval(string(tpl), getter)
	if err != nil {
		return nil, err
	}

	return []byte(out), nil
}

// ReplacePlaceholders performs literal replacements on a manifest. Longer keys are replaced first
// so that a key which is a prefix of another one can't clobber it.
func ReplacePlaceholders(data []byte, replacements map[string]string) []byte {
	keys := make([]string, 0, len(replacements))
	for k := range replacements {
		keys = append(keys, k)
	}

	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})

	out := string(data)
	for _, k := range keys {
		out = strings.ReplaceAll(out, k, replacements[k])
	}

	return []byte(out)
}

// EncodeBase64 returns the standard base64 encoding of value.
func EncodeBase64(value string) string {
	return base64.StdEncoding.EncodeToString([]byte(value))
}
