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

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rancher/turtles-e2e/test/dashboard"
	turtlesframework "github.com/rancher/turtles-e2e/test/framework"
)

// openDashboard logs into Rancher in a new browser tab that is closed when the current node ends.
func openDashboard(ctx context.Context, serverURL string) *dashboard.Session {
	session, err := dashboard.NewSession(ctx, dashboard.Options{URL: serverURL})
	Expect(err).NotTo(HaveOccurred(), "Failed to start browser session")
	DeferCleanup(session.Close)

	Expect(session.Login()).To(Succeed(), "Failed to log into Rancher")

	return session
}

// rancherVersionSatisfies fails the spec on an unparsable version.
func rancherVersionSatisfies(rancherVersion, constraint string) bool {
	ok, err := turtlesframework.RancherVersionSatisfies(rancherVersion, constraint)
	Expect(err).NotTo(HaveOccurred(), "Invalid Rancher version %q", rancherVersion)

	return ok
}

// turtlesNamespace is where the Turtles controller and its fleet addon provider run.
func turtlesNamespace(rancherVersion string) string {
	if rancherVersionSatisfies(rancherVersion, ">=2.13") {
		return turtlesframework.TurtlesNamespace
	}

	return turtlesframework.LegacyTurtlesNamespace
}
