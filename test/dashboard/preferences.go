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
	"strings"

	"github.com/chromedp/chromedp"
)

const includePrerelease = "Include Prerelease Versions"

// IncludePrereleaseVersions enables pre-release chart versions in the user preferences,
// so that development charts show up in Apps. It has to run before chart repositories
// are added.
func (s *Session) IncludePrereleaseVersions() error {
	if err := s.BurgerMenu(false); err != nil {
		return err
	}

	if err := s.Run(chromedp.Click(bySelector(userMenu), chromedp.ByQuery)); err != nil {
		return fmt.Errorf("opening user menu: %w", err)
	}

	if err := s.ClickText(dropdownScope, "Preferences"); err != nil {
		return err
	}

	enabled, err := s.prereleaseEnabled()
	if err != nil {
		return err
	}

	if !enabled {
		if err := s.ClickText(preferenceScope, includePrerelease); err != nil {
			return err
		}
	}

	if err := s.Run(chromedp.Reload()); err != nil {
		return err
	}

	enabled, err = s.prereleaseEnabled()
	if err != nil {
		return err
	}

	if !enabled {
		return fmt.Errorf("%q is still disabled after reload", includePrerelease)
	}

	return nil
}

func (s *Session) prereleaseEnabled() (bool, error) {
	var (
		class string
		ok    bool
	)

	sel := containsText(preferenceScope, includePrerelease)
	if err := s.Run(
		chromedp.WaitVisible(sel, chromedp.BySearch),
		chromedp.AttributeValue(sel, "class", &class, &ok, chromedp.BySearch),
	); err != nil {
		return false, fmt.Errorf("reading %q: %w", includePrerelease, err)
	}

	return !IsDisabledClass(class), nil
}

// IsDisabledClass reports whether a button-group class list marks the option as off.
func IsDisabledClass(class string) bool {
	for _, c := range strings.Fields(class) {
		if c == "bg-disabled" {
			return true
		}
	}

	return false
}
