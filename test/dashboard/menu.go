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

	"github.com/chromedp/chromedp"
)

// CAPIMenuEntries are the side navigation entries of the CAPI product.
var CAPIMenuEntries = []string{"Clusters", "Machine Deployments", "Machine Sets", "Cluster Classes", "Providers"}

// BurgerMenu opens or closes the top level menu.
func (s *Session) BurgerMenu(open bool) error {
	var nodes int
	if err := s.Run(chromedp.Evaluate(`document.querySelectorAll(".side-menu.menu-open").length`, &nodes)); err != nil {
		return err
	}

	if (nodes > 0) == open {
		return nil
	}

	return s.Run(chromedp.Click(bySelector(burgerMenu), chromedp.ByQuery))
}

// CheckNavIcon checks the side menu shows the icon of a product.
func (s *Session) CheckNavIcon(name string) error {
	if err := s.BurgerMenu(true); err != nil {
		return err
	}

	if err := s.Run(chromedp.WaitReady(NavIconSelector(name), chromedp.ByQuery)); err != nil {
		return fmt.Errorf("nav icon %s not found: %w", name, err)
	}

	return nil
}

// AccessMenu clicks an entry of the top level menu.
func (s *Session) AccessMenu(name string) error {
	if err := s.BurgerMenu(true); err != nil {
		return err
	}

	return s.ClickText(sideMenuScope, name)
}

// CheckCAPIMenu opens Cluster Management, switches to the CAPI group and checks its
// navigation entries.
func (s *Session) CheckCAPIMenu() error {
	if err := s.AccessMenu("Cluster Management"); err != nil {
		return err
	}

	if err := s.ClickText(headerScope, "CAPI"); err != nil {
		return err
	}

	for _, entry := range CAPIMenuEntries {
		if err := s.Run(chromedp.WaitVisible(containsText(navScope, entry), chromedp.BySearch)); err != nil {
			return fmt.Errorf("CAPI menu entry %q not shown: %w", entry, err)
		}
	}

	return nil
}

// OpenCAPIPage opens one of CAPIMenuEntries.
func (s *Session) OpenCAPIPage(entry string) error {
	if err := s.CheckCAPIMenu(); err != nil {
		return err
	}

	return s.ClickText(navScope, entry)
}

// CheckCAPIClusterState checks the CAPI Clusters list shows clusterName with state, for
// example "Provisioned".
func (s *Session) CheckCAPIClusterState(clusterName, state string) error {
	if err := s.OpenCAPIPage("Clusters"); err != nil {
		return err
	}

	return s.waitForRow(state, clusterName)
}

// CheckCAPIClusterActive walks the CAPI pages the way an operator would after a cluster
// came up: Provisioned cluster, Running machine deployments, Active machine sets.
func (s *Session) CheckCAPIClusterActive(clusterName string) error {
	if err := s.CheckCAPIClusterState(clusterName, "Provisioned"); err != nil {
		return err
	}

	if err := s.ClickText(navScope, "Machine Deployments"); err != nil {
		return err
	}
	if err := s.waitForRow("Running", clusterName); err != nil {
		return err
	}

	if err := s.ClickText(navScope, "Machine Sets"); err != nil {
		return err
	}

	return s.waitForRow("Active", clusterName)
}

func (s *Session) waitForRow(state, name string) error {
	sel := RowSelector(state, name)
	if err := s.Run(chromedp.WaitVisible(sel, chromedp.BySearch)); err != nil {
		return fmt.Errorf("no %s row for %s: %w", state, name, err)
	}

	return nil
}

// RowSelector matches a list table row showing state and a name starting with name.
func RowSelector(state, name string) string {
	return fmt.Sprintf(`//tr[.//*[normalize-space(text())=%s] and .//*[starts-with(normalize-space(text()),%s)]]`,
		xpathLiteral(state), xpathLiteral(name))
}
