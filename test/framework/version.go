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
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
	. "github.com/onsi/gomega"
)

const (
	// RancherVersionVar holds the Rancher release under test as channel/version[/headVersion].
	RancherVersionVar = "RANCHER_VERSION"
	// K8sVersionVar holds the Kubernetes flavour of the management cluster, for example "k3s" or "rke2".
	K8sVersionVar = "K8S_VERSION"
	// CAPIUIVersionVar holds the version of the CAPI dashboard extension.
	CAPIUIVersionVar = "CAPI_UI_VERSION"
)

var coerceRegexp = regexp.MustCompile(`^v?(\d+)(?:\.(\d+))?(?:\.(\d+))?`)

// RancherVersion is the parsed form of RANCHER_VERSION, for example "latest/devel/2.13"
// or "head/2.13".
type RancherVersion struct {
	Channel     string
	Version     string
	HeadVersion string
}

// ParseRancherVersion splits channel/version[/headVersion].
func ParseRancherVersion(s string) RancherVersion {
	if s == "" {
		return RancherVersion{}
	}

	parts := strings.Split(s, "/")
	v := RancherVersion{Channel: parts[0]}
	if len(parts) > 1 {
		v.Version = parts[1]
	}
	if len(parts) > 2 {
		v.HeadVersion = parts[2]
	}

	return v
}

// RancherVersionSatisfies reports whether the Rancher release satisfies a semver constraint.
// The version is the segment after the last "/". It is coerced the way loose version
// strings usually are: anything after the leading MAJOR[.MINOR[.PATCH]] is dropped and
// missing parts are zero, so "2" reads as 2.0.0 and "2.12-alpha3" as 2.12.0.
func RancherVersionSatisfies(rancherVersion, constraint string) (bool, error) {
	v, err := coerceVersion(rancherVersion)
	if err != nil {
		return false, err
	}

	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return false, fmt.Errorf("parsing constraint %q: %w", constraint, err)
	}

	return c.Check(v), nil
}

func coerceVersion(rancherVersion string) (*semver.Version, error) {
	parts := strings.Split(rancherVersion, "/")
	versionStr := strings.TrimSpace(parts[len(parts)-1])

	m := coerceRegexp.FindStringSubmatch(versionStr)
	if m == nil {
		return nil, fmt.Errorf("%q does not end with a version", rancherVersion)
	}

	for i := 2; i < len(m); i++ {
		if m[i] == "" {
			m[i] = "0"
		}
	}

	v, err := semver.NewVersion(fmt.Sprintf("%s.%s.%s", m[1], m[2], m[3]))
	if err != nil {
		return nil, fmt.Errorf("parsing Rancher version %q: %w", versionStr, err)
	}

	return v, nil
}

// IsRancherManagerVersion checks RANCHER_VERSION against a semver constraint.
// For RANCHER_VERSION=head/2.13, ">=2.12" and "2.13" are true and "<=2.11" is false.
func IsRancherManagerVersion(constraint string) bool {
	rancherVersion := os.Getenv(RancherVersionVar)
	Expect(rancherVersion).ToNot(BeEmpty(), "%s environment variable not set", RancherVersionVar)

	ok, err := RancherVersionSatisfies(rancherVersion, constraint)
	Expect(err).NotTo(HaveOccurred())

	return ok
}

// IsK8sVersion matches the pattern, lower-cased, against K8S_VERSION.
func IsK8sVersion(pattern string) bool {
	return matchEnv(strings.ToLower(pattern), K8sVersionVar)
}

// IsUIVersion matches the pattern against CAPI_UI_VERSION.
func IsUIVersion(pattern string) bool {
	return matchEnv(pattern, CAPIUIVersionVar)
}

func matchEnv(pattern, name string) bool {
	re, err := regexp.Compile(pattern)
	Expect(err).NotTo(HaveOccurred(), "Invalid pattern %q", pattern)

	return re.MatchString(os.Getenv(name))
}
