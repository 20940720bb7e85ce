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
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/utils/ptr"
	clusterv1 "sigs.k8s.io/cluster-api/api/v1beta1"
	expv1 "sigs.k8s.io/cluster-api/exp/api/v1beta1"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"
)

var _ = Describe("Cluster from ClusterClass", func() {
	It("should build a topology cluster with sorted workers", func() {
		cluster := BuildClusterFromClass(ClusterFromClassInput{
			Name:      "turtles-qa-capd-kubeadm",
			Namespace: "capi-clusters",
			Class:     "docker-kubeadm-example",
			Version:   "v1.32.0",
			Workers: map[string]string{
				"md-1": "default-worker",
				"md-0": "default-worker",
			},
			PodCIDRs:     []string{"192.168.0.0/16"},
			ServiceCIDRs: []string{"10.96.0.0/12"},
			Labels:       map[string]string{"cni": "calico"},
		})

		Expect(cluster.Name).To(Equal("turtles-qa-capd-kubeadm"))
		Expect(cluster.Labels).To(HaveKeyWithValue("cni", "calico"))
		Expect(cluster.Spec.ClusterNetwork.Pods.CIDRBlocks).To(Equal([]string{"192.168.0.0/16"}))
		Expect(cluster.Spec.ClusterNetwork.Services.CIDRBlocks).To(Equal([]string{"10.96.0.0/12"}))
		Expect(cluster.Spec.Topology.Class).To(Equal("docker-kubeadm-example"))
		Expect(cluster.Spec.Topology.Version).To(Equal("v1.32.0"))

		mds := cluster.Spec.Topology.Workers.MachineDeployments
		Expect(mds).To(HaveLen(2))
		Expect(mds[0].Name).To(Equal("md-0"))
		Expect(mds[1].Name).To(Equal("md-1"))
		Expect(mds[0].Class).To(Equal("default-worker"))
		Expect(mds[0].Replicas).To(Equal(ptr.To[int32](1)))
	})

	It("should honour the replica count", func() {
		cluster := BuildClusterFromClass(ClusterFromClassInput{
			Name:     "c",
			Class:    "cc",
			Workers:  map[string]string{"md-0": "w"},
			Replicas: 3,
		})
		Expect(*cluster.Spec.Topology.Workers.MachineDeployments[0].Replicas).To(BeEquivalentTo(3))
	})
})

var _ = Describe("Active clusters", func() {
	var scheme *runtime.Scheme

	objectMeta := func(name string) metav1.ObjectMeta {
		return metav1.ObjectMeta{
			Name:      name,
			Namespace: "capi-clusters",
			Labels:    map[string]string{clusterv1.ClusterNameLabel: "turtles-qa-azure-aks"},
		}
	}

	provisioned := func() *clusterv1.Cluster {
		return &clusterv1.Cluster{
			ObjectMeta: metav1.ObjectMeta{Name: "turtles-qa-azure-aks", Namespace: "capi-clusters"},
			Status:     clusterv1.ClusterStatus{Phase: string(clusterv1.ClusterPhaseProvisioned)},
		}
	}

	input := func(c *fake.ClientBuilder, machinePools bool) CAPIClusterInput {
		return CAPIClusterInput{
			Lister:       c.Build(),
			Name:         "turtles-qa-azure-aks",
			Namespace:    "capi-clusters",
			WaitInterval: []interface{}{"2s", "100ms"},
			MachinePools: machinePools,
		}
	}

	BeforeEach(func() {
		scheme = runtime.NewScheme()
		Expect(clusterv1.AddToScheme(scheme)).To(Succeed())
		Expect(expv1.AddToScheme(scheme)).To(Succeed())
	})

	It("should accept a cluster whose workers are running MachinePools", func() {
		pool := &expv1.MachinePool{
			ObjectMeta: objectMeta("pool0"),
			Spec:       expv1.MachinePoolSpec{Replicas: ptr.To[int32](2)},
			Status:     expv1.MachinePoolStatus{Phase: string(expv1.MachinePoolPhaseRunning), ReadyReplicas: 2},
		}

		WaitForClusterActive(ctx, input(fake.NewClientBuilder().WithScheme(scheme).WithObjects(provisioned(), pool), true))
	})

	It("should not look for MachineDeployments of a MachinePool cluster", func() {
		failures := InterceptGomegaFailures(func() {
			WaitForClusterActive(ctx, input(fake.NewClientBuilder().WithScheme(scheme).WithObjects(provisioned()), true))
		})
		Expect(failures).NotTo(BeEmpty())
		Expect(failures[0]).NotTo(ContainSubstring("MachineDeployment"))
	})

	It("should require MachineDeployments and MachineSets otherwise", func() {
		md := &clusterv1.MachineDeployment{
			ObjectMeta: objectMeta("md-0"),
			Status:     clusterv1.MachineDeploymentStatus{Phase: string(clusterv1.MachineDeploymentPhaseRunning)},
		}
		ms := &clusterv1.MachineSet{
			ObjectMeta: objectMeta("md-0-abcde"),
			Spec:       clusterv1.MachineSetSpec{Replicas: ptr.To[int32](1)},
			Status:     clusterv1.MachineSetStatus{ReadyReplicas: 1},
		}

		WaitForClusterActive(ctx, input(fake.NewClientBuilder().WithScheme(scheme).WithObjects(provisioned(), md, ms), false))
	})
})
