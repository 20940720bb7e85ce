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
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type envTestInput struct {
	Name         string        `env:"ENV_TEST_NAME" envDefault:"default-name"`
	Namespace    string        `envDefault:"fleet-local"`
	Timeout      time.Duration `envDefault:"30s"`
	WaitInterval []interface{} `envDefault:"15m, 10s"`
}

var _ = Describe("Parse", func() {
	It("should fill defaults", func() {
		input := envTestInput{}
		Expect(Parse(&input)).To(Succeed())

		Expect(input.Name).To(Equal("default-name"))
		Expect(input.Namespace).To(Equal("fleet-local"))
		Expect(input.Timeout).To(Equal(30 * time.Second))
		Expect(input.WaitInterval).To(Equal([]interface{}{"15m", "10s"}))
	})

	It("should read environment variables", func() {
		GinkgoT().Setenv("ENV_TEST_NAME", "from-env")

		input := envTestInput{}
		Expect(Parse(&input)).To(Succeed())
		Expect(input.Name).To(Equal("from-env"))
	})

	It("should keep values set by the caller", func() {
		GinkgoT().Setenv("ENV_TEST_NAME", "from-env")

		input := envTestInput{Name: "explicit", WaitInterval: []interface{}{"1m", "1s"}}
		Expect(Parse(&input)).To(Succeed())
		Expect(input.Name).To(Equal("explicit"))
		Expect(input.WaitInterval).To(Equal([]interface{}{"1m", "1s"}))
	})

	It("should build duration intervals", func() {
		Expect(DurationIntervals(10*time.Minute, 10*time.Second)).To(Equal([]interface{}{"10m0s", "10s"}))
	})
})
