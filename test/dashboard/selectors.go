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

package dashboard

import (
	"fmt"
	"regexp"
	"strings"
)

// data-testid values used by the Rancher dashboard.
const (
	loginUsername = "local-login-username"
	loginPassword = "local-login-password"
	loginSubmit   = "login-submit"
	userMenu      = "nav_header_showUserMenu"
	burgerMenu    = "top-level-menu"
)

const (
	sideMenuScope   = `//div[contains(@class,"side-menu")]`
	navScope        = `//nav[contains(@class,"side-nav")]`
	headerScope     = `//div[contains(@class,"header")]`
	dropdownScope   = `//ul[contains(@class,"dropdown-menu")]`
	preferenceScope = `//div[contains(@class,"prefs")]`
)

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

func bySelector(testID string) string {
	return fmt.Sprintf(`[data-testid=%q]`, testID)
}

// LoginURL is the local authentication page of a Rancher server.
func LoginURL(serverURL string) string {
	return strings.TrimSuffix(serverURL, "/") + "/dashboard/auth/login"
}

// NavIconSelector matches the side menu icon of a product, for example "cluster-management".
func NavIconSelector(name string) string {
	return ".side-menu .option .icon.group-icon.icon-" + name
}

// containsText builds an XPath matching elements under scope whose normalized text is text.
// An empty scope searches the whole document.
func containsText(scope, text string) string {
	return fmt.Sprintf(`%s//*[normalize-space(text())=%s]`, scope, xpathLiteral(text))
}

// xpathLiteral quotes s for XPath 1.0, which has no escape sequences.
func xpathLiteral(s string) string {
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}

	parts := strings.Split(s, `"`)
	quoted := make([]string, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `'"'`)
		}
		quoted = append(quoted, `"`+p+`"`)
	}

	return "concat(" + strings.Join(quoted, ",") + ")"
}

// ScreenshotFileName turns a spec description into a file name.
func ScreenshotFileName(name string) string {
	name = strings.Trim(unsafeFileChars.ReplaceAllString(name, "_"), "_")
	if name == "" {
		name = "screenshot"
	}

	return name + ".png"
}
