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
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	. "github.com/onsi/gomega"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

// RunCommandInput is the input to RunCommand.
type RunCommandInput struct {
	Command              string
	Args                 []string
	EnvironmentVariables map[string]string
}

// RunCommandResult is the result of RunCommand.
type RunCommandResult struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
	Error    error
}

// RunCommand will run a command with the given args and environment variables.
// Extra variables are added on top of the current process environment.
func RunCommand(ctx context.Context, input RunCommandInput, result *RunCommandResult) {
	Expect(ctx).NotTo(BeNil(), "ctx is required for RunCommand")
	Expect(input.Command).ToNot(BeEmpty(), "Invalid argument. input.Command can't be empty when calling RunCommand")
	Expect(result).ToNot(BeNil(), "Invalid argument. result can't be nil when calling RunCommand")

	cmd := exec.CommandContext(ctx, input.Command, input.Args...)

	if len(input.EnvironmentVariables) > 0 {
		cmd.Env = os.Environ()
		for name, val := range input.EnvironmentVariables {
			cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", name, val))
		}
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	result.Error = err
	result.Stdout = stdout.Bytes()
	result.Stderr = stderr.Bytes()
	result.ExitCode = 0

	var exitError *exec.ExitError
	if errors.As(err, &exitError) {
		result.ExitCode = exitError.ExitCode()
	}
}

// RunHelmCmdWithRetryInput is the input to RunHelmCmdWithRetry.
type RunHelmCmdWithRetryInput struct {
	HelmBinaryPath string `env:"HELM_BINARY_PATH" envDefault:"helm"`
	Args           []string
	Timeout        time.Duration
	Interval       time.Duration
}

// RunHelmCmdWithRetry runs helm until it succeeds. Chart repositories served from inside the
// cluster are often not reachable right after they are installed.
func RunHelmCmdWithRetry(ctx context.Context, input RunHelmCmdWithRetryInput) []byte {
	Expect(Parse(&input)).To(Succeed(), "Failed to parse environment variables")
	Expect(input.Args).ToNot(BeEmpty(), "Invalid argument. input.Args can't be empty when calling RunHelmCmdWithRetry")

	if input.Timeout == 0 {
		input.Timeout = 2 * time.Minute
	}
	if input.Interval == 0 {
		input.Interval = 20 * time.Second
	}

	log := log.FromContext(ctx)

	var out []byte
	Eventually(func() error {
		result := &RunCommandResult{}
		RunCommand(ctx, RunCommandInput{Command: input.HelmBinaryPath, Args: input.Args}, result)
		if result.Error != nil {
			log.Info("Helm command failed, retrying", "args", strings.Join(input.Args, " "), "stderr", string(result.Stderr))
			return fmt.Errorf("helm %s: %w: %s", input.Args[0], result.Error, result.Stderr)
		}
		out = result.Stdout
		return nil
	}, input.Timeout, input.Interval).Should(Succeed(), "helm %s did not succeed", strings.Join(input.Args, " "))

	return out
}
