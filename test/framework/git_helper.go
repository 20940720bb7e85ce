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

	. "github.com/onsi/gomega"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/storage/memory"
)

// GitRemoteBranchInput is the input to GitRemoteBranchExists.
type GitRemoteBranchInput struct {
	// Address is the URL of the remote repository.
	Address string

	// Branch is the branch to look for.
	Branch string `envDefault:"main"`

	// Username is the username for authentication (optional).
	Username string `env:"GIT_USER_NAME"`

	// Password is the password for authentication (optional).
	Password string `env:"GIT_USER_PWD"`

	WaitInterval []interface{} `envDefault:"1m,10s"`
}

// GitRemoteBranchExists lists the remote references without cloning and reports whether
// the branch is there. Fleet keeps retrying a GitRepo pointing at a missing branch, so
// specs check this before registering one.
func GitRemoteBranchExists(ctx context.Context, input GitRemoteBranchInput) bool {
	Expect(Parse(&input)).To(Succeed(), "Failed to parse environment variables")
	Expect(ctx).NotTo(BeNil(), "ctx is required for GitRemoteBranchExists")
	Expect(input.Address).ToNot(BeEmpty(), "Invalid argument. input.Address can't be empty when calling GitRemoteBranchExists")

	var refs []*plumbing.Reference
	Eventually(func() error {
		var err error
		refs, err = gitListRemote(ctx, input)
		return err
	}, input.WaitInterval...).Should(Succeed(), "Failed listing references of %s", input.Address)

	return hasBranch(refs, input.Branch)
}

func gitListRemote(ctx context.Context, input GitRemoteBranchInput) ([]*plumbing.Reference, error) {
	remote := git.NewRemote(memory.NewStorage(), &gitconfig.RemoteConfig{
		Name: "origin",
		URLs: []string{input.Address},
	})

	opts := &git.ListOptions{}
	if input.Username != "" {
		opts.Auth = &http.BasicAuth{
			Username: input.Username,
			Password: input.Password,
		}
	}

	refs, err := remote.ListContext(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", input.Address, err)
	}

	return refs, nil
}

func hasBranch(refs []*plumbing.Reference, branch string) bool {
	want := plumbing.NewBranchReferenceName(branch)
	for _, ref := range refs {
		if ref.Name() == want {
			return true
		}
	}

	return false
}
