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
	"fmt"
	"sort"
	"strings"

	"dario.cat/mergo"
	. "github.com/onsi/gomega"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"sigs.k8s.io/cluster-api/test/framework"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/yaml"
)

// NestedYAMLMarker, set to true in a patch map, means the value found at that key is a
// YAML document stored as a string and the rest of the map is merged into that document.
const NestedYAMLMarker = "isNestedIn"

// PatchYAML applies patch to a YAML document and returns the result.
//
// Patch keys are dotted paths; missing intermediate maps are created. Map values are deep
// merged into what is already there and anything else replaces it. A key of the form
// "data.<entry>.<path>" patches the YAML document stored under data.<entry>, and is
// ignored when that entry does not exist.
func PatchYAML(doc []byte, patch map[string]interface{}) ([]byte, error) {
	obj := map[string]interface{}{}
	if err := yaml.Unmarshal(doc, &obj); err != nil {
		return nil, fmt.Errorf("parsing document: %w", err)
	}

	if err := PatchObject(obj, patch); err != nil {
		return nil, err
	}

	return yaml.Marshal(obj)
}

// PatchObject applies patch in place. See PatchYAML for the patch format.
func PatchObject(obj map[string]interface{}, patch map[string]interface{}) error {
	// Sorted so that overlapping keys are applied in a stable order.
	keys := make([]string, 0, len(patch))
	for k := range patch {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := patch[key]

		if strings.HasPrefix(key, "data.") {
			if err := patchDataEntry(obj, strings.TrimPrefix(key, "data."), value); err != nil {
				return fmt.Errorf("patching %s: %w", key, err)
			}
			continue
		}

		if err := setPath(obj, strings.Split(key, "."), value); err != nil {
			return fmt.Errorf("patching %s: %w", key, err)
		}
	}

	return nil
}

func patchDataEntry(obj map[string]interface{}, nestedKey string, value interface{}) error {
	data, ok := obj["data"].(map[string]interface{})
	if !ok {
		return nil
	}

	path := strings.Split(nestedKey, ".")
	raw, ok := data[path[0]].(string)
	if !ok {
		return nil
	}

	updated, err := patchEmbeddedDocument(raw, path[1:], value)
	if err != nil {
		return err
	}

	data[path[0]] = updated

	return nil
}

func patchEmbeddedDocument(raw string, path []string, value interface{}) (string, error) {
	nested := map[string]interface{}{}
	if err := yaml.Unmarshal([]byte(raw), &nested); err != nil {
		return "", fmt.Errorf("parsing embedded document: %w", err)
	}

	if len(path) == 0 {
		patch, ok := value.(map[string]interface{})
		if !ok {
			return "", fmt.Errorf("embedded document can only be merged with a map, got %T", value)
		}
		if err := mergeMaps(nested, patch); err != nil {
			return "", err
		}
	} else if err := setPath(nested, path, value); err != nil {
		return "", err
	}

	out, err := yaml.Marshal(nested)
	if err != nil {
		return "", err
	}

	return string(out), nil
}

func setPath(obj map[string]interface{}, path []string, value interface{}) error {
	current := obj
	for _, k := range path[:len(path)-1] {
		next, ok := current[k].(map[string]interface{})
		if !ok {
			next = map[string]interface{}{}
			current[k] = next
		}
		current = next
	}

	leaf := path[len(path)-1]

	patch, ok := value.(map[string]interface{})
	if !ok {
		current[leaf] = value
		return nil
	}

	if isNestedPatch(patch) {
		raw, _ := current[leaf].(string)
		updated, err := patchEmbeddedDocument(raw, nil, withoutMarker(patch))
		if err != nil {
			return err
		}
		current[leaf] = updated
		return nil
	}

	existing, ok := current[leaf].(map[string]interface{})
	if !ok {
		current[leaf] = value
		return nil
	}

	return mergeMaps(existing, patch)
}

// mergeMaps deep merges patch into dst, patch values winning.
func mergeMaps(dst, patch map[string]interface{}) error {
	if !containsNestedPatch(patch) {
		return mergo.Merge(&dst, patch, mergo.WithOverride)
	}

	for k, v := range patch {
		if err := setPath(dst, []string{k}, v); err != nil {
			return err
		}
	}

	return nil
}

func isNestedPatch(m map[string]interface{}) bool {
	marker, _ := m[NestedYAMLMarker].(bool)
	return marker
}

func containsNestedPatch(m map[string]interface{}) bool {
	if isNestedPatch(m) {
		return true
	}

	for _, v := range m {
		if child, ok := v.(map[string]interface{}); ok && containsNestedPatch(child) {
			return true
		}
	}

	return false
}

func withoutMarker(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		if k != NestedYAMLMarker {
			out[k] = v
		}
	}

	return out
}

// PatchResourceInput is the input to PatchResource.
type PatchResourceInput struct {
	ClusterProxy     framework.ClusterProxy
	GroupVersionKind schema.GroupVersionKind
	Name             string
	Namespace        string
	Patch            map[string]interface{}
}

// PatchResource edits a live object with a PatchYAML style patch, the way the dashboard
// "Edit YAML" action would.
func PatchResource(ctx context.Context, input PatchResourceInput) {
	Expect(ctx).NotTo(BeNil(), "ctx is required for PatchResource")
	Expect(input.ClusterProxy).ToNot(BeNil(), "Invalid argument. input.ClusterProxy can't be nil when calling PatchResource")
	Expect(input.Name).ToNot(BeEmpty(), "Invalid argument. input.Name can't be empty when calling PatchResource")

	Byf("Patching %s %s", input.GroupVersionKind.Kind, input.Name)

	Eventually(func() error {
		obj := &unstructured.Unstructured{}
		obj.SetGroupVersionKind(input.GroupVersionKind)

		c := input.ClusterProxy.GetClient()
		if err := c.Get(ctx, client.ObjectKey{Namespace: input.Namespace, Name: input.Name}, obj); err != nil {
			return err
		}

		if err := PatchObject(obj.Object, input.Patch); err != nil {
			return StopTrying(err.Error())
		}

		return c.Update(ctx, obj)
	}, retryableOperationTimeout, retryableOperationInterval).Should(Succeed(), "Failed to patch %s %s", input.GroupVersionKind.Kind, input.Name)
}
