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

// Package dashboard drives the Rancher dashboard with a headless Chrome.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"sigs.k8s.io/controller-runtime/pkg/log"

	turtlesframework "github.com/rancher/turtles-e2e/test/framework"
)

// Options configures a dashboard session.
type Options struct {
	// URL is the Rancher server, for example https://rancher.example.com.
	URL string `env:"RANCHER_URL"`

	// Username is the local user to log in with.
	Username string `env:"RANCHER_USERNAME" envDefault:"admin"`

	// Password is the password of Username.
	Password string `env:"RANCHER_PASSWORD"`

	// Headless runs Chrome without a window. Set BROWSER_HEADLESS=false to watch a run.
	Headless bool `env:"BROWSER_HEADLESS" envDefault:"true"`

	// ChromePath overrides the browser binary.
	ChromePath string `env:"CHROME_PATH"`

	// Timeout bounds every single browser action.
	Timeout time.Duration `env:"BROWSER_ACTION_TIMEOUT" envDefault:"90s"`

	// ScreenshotsFolder receives screenshots taken by Screenshot.
	ScreenshotsFolder string `env:"ARTIFACTS_FOLDER"`
}

// Session is a logged out browser tab pointed at a Rancher server.
type Session struct {
	opts Options

	ctx    context.Context
	cancel []context.CancelFunc
}

// NewSession starts Chrome. Certificate errors are ignored since test installs run with
// self-signed certificates.
func NewSession(ctx context.Context, opts Options) (*Session, error) {
	if err := turtlesframework.Parse(&opts); err != nil {
		return nil, fmt.Errorf("parsing dashboard options: %w", err)
	}

	if opts.URL == "" {
		host := os.Getenv("RANCHER_HOSTNAME")
		if host == "" {
			return nil, errors.New("either RANCHER_URL or RANCHER_HOSTNAME must be set")
		}
		opts.URL = "https://" + host
	}
	opts.URL = strings.TrimSuffix(opts.URL, "/")

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocatorOptions(opts)...)
	logger := log.FromContext(ctx).WithName("chromedp")
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			logger.Info(fmt.Sprintf(format, args...))
		}),
	)

	s := &Session{
		opts:   opts,
		ctx:    browserCtx,
		cancel: []context.CancelFunc{cancelBrowser, cancelAlloc},
	}

	chromedp.ListenTarget(browserCtx, s.logConsole(ctx))

	// The first Run starts the browser.
	if err := chromedp.Run(browserCtx); err != nil {
		s.Close()
		return nil, fmt.Errorf("starting browser: %w", err)
	}

	return s, nil
}

func allocatorOptions(opts Options) []chromedp.ExecAllocatorOption {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("ignore-certificate-errors", true),
		chromedp.WindowSize(1920, 1080),
	)

	if opts.ChromePath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ChromePath))
	}

	return allocOpts
}

func (s *Session) logConsole(ctx context.Context) func(ev interface{}) {
	logger := log.FromContext(ctx).WithName("dashboard")

	return func(ev interface{}) {
		switch ev := ev.(type) {
		case *runtime.EventExceptionThrown:
			logger.Info("Dashboard exception", "text", ev.ExceptionDetails.Text)
		case *runtime.EventConsoleAPICalled:
			if ev.Type != runtime.APITypeError {
				return
			}
			args := make([]string, 0, len(ev.Args))
			for _, arg := range ev.Args {
				args = append(args, string(arg.Value))
			}
			logger.Info("Dashboard console error", "args", strings.Join(args, " "))
		}
	}
}

// Close shuts the browser down.
func (s *Session) Close() {
	_ = chromedp.Cancel(s.ctx)
	for _, cancel := range s.cancel {
		cancel()
	}
}

// URL returns the Rancher server URL the session points at.
func (s *Session) URL() string {
	return s.opts.URL
}

// Run executes actions with the per-action timeout.
func (s *Session) Run(actions ...chromedp.Action) error {
	ctx, cancel := context.WithTimeout(s.ctx, s.opts.Timeout)
	defer cancel()

	return chromedp.Run(ctx, actions...)
}

// Visit opens a dashboard path, for example "/dashboard/home".
func (s *Session) Visit(path string) error {
	return s.Run(chromedp.Navigate(s.opts.URL + path))
}

// Login signs in with the local provider and waits for the home page.
func (s *Session) Login() error {
	if s.opts.Password == "" {
		return errors.New("no password configured for the dashboard session")
	}

	err := s.Run(
		chromedp.Navigate(LoginURL(s.opts.URL)),
		chromedp.WaitVisible(bySelector(loginUsername), chromedp.ByQuery),
		chromedp.SendKeys(bySelector(loginUsername), s.opts.Username, chromedp.ByQuery),
		chromedp.SendKeys(bySelector(loginPassword), s.opts.Password, chromedp.ByQuery),
		chromedp.Click(bySelector(loginSubmit), chromedp.ByQuery),
		chromedp.WaitVisible(bySelector(userMenu), chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("logging in as %s: %w", s.opts.Username, err)
	}

	return nil
}

// WaitForText waits until text is displayed anywhere on the page.
func (s *Session) WaitForText(text string) error {
	if err := s.Run(chromedp.WaitVisible(containsText("", text), chromedp.BySearch)); err != nil {
		return fmt.Errorf("waiting for %q: %w", text, err)
	}

	return nil
}

// ClickText clicks the first visible element inside scope whose text is text.
func (s *Session) ClickText(scope, text string) error {
	sel := containsText(scope, text)
	if err := s.Run(
		chromedp.WaitVisible(sel, chromedp.BySearch),
		chromedp.Click(sel, chromedp.BySearch),
	); err != nil {
		return fmt.Errorf("clicking %q: %w", text, err)
	}

	return nil
}

// Screenshot writes a full page PNG named name into the artifacts folder.
func (s *Session) Screenshot(name string) (string, error) {
	if s.opts.ScreenshotsFolder == "" {
		return "", nil
	}

	var buf []byte
	if err := s.Run(chromedp.FullScreenshot(&buf, 90)); err != nil {
		return "", fmt.Errorf("taking screenshot: %w", err)
	}

	dir := filepath.Join(s.opts.ScreenshotsFolder, "screenshots")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", err
	}

	path := filepath.Join(dir, ScreenshotFileName(name))

	return path, os.WriteFile(path, buf, 0o600)
}
