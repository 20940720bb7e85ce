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
	"sort"
	"strings"

	. "github.com/onsi/gomega"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/utils/ptr"
	clusterv1 "sigs.k8s.io/cluster-api/api/v1beta1"
	expv1 "sigs.k8s.io/cluster-api/exp/api/v1beta1"
	capiframework "sigs.k8s.io/cluster-api/test/framework"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

var gvkCAPICluster = clusterv1.GroupVersion.WithKind("Cluster")

// CAPIClusterInput identifies a CAPI cluster and how long to wait for it.
type CAPIClusterInput struct {
	Lister       capiframework.GetLister
	Name         string
	Namespace    string
	WaitInterval []interface{} `envDefault:"25m,10s"`

	// MachinePools is set for clusters whose workers are MachinePools, such as AKS.
	MachinePools bool
}

// WaitForClusterProvisioned waits for the Cluster phase to be Provisioned.
func WaitForClusterProvisioned(ctx context.Context, input CAPIClusterInput) *clusterv1.Cluster {
	Expect(Parse(&input)).To(Succeed(), "Failed to parse environment variables")
	Expect(input.Lister).ToNot(BeNil(), "Invalid argument. input.Lister can't be nil when calling WaitForClusterProvisioned")

	Byf("Waiting for CAPI cluster %s/%s to be Provisioned", input.Namespace, input.Name)

	cluster := &clusterv1.Cluster{}
	Eventually(func(g Gomega) {
		g.Expect(input.Lister.Get(ctx, types.NamespacedName{Namespace: input.Namespace, Name: input.Name}, cluster)).To(Succeed())
		g.Expect(cluster.Status.Phase).To(Equal(string(clusterv1.ClusterPhaseProvisioned)))
	}, input.WaitInterval...).Should(Succeed(), "Cluster %s/%s is not Provisioned", input.Namespace, input.Name)

	return cluster
}

// WaitForMachineDeploymentsRunning waits for every MachineDeployment of the cluster to be Running.
func WaitForMachineDeploymentsRunning(ctx context.Context, input CAPIClusterInput) {
	Expect(Parse(&input)).To(Succeed(), "Failed to parse environment variables")

	Byf("Waiting for MachineDeployments of %s/%s to be Running", input.Namespace, input.Name)

	Eventually(func(g Gomega) {
		mds := &clusterv1.MachineDeploymentList{}
		g.Expect(input.Lister.List(ctx, mds, clusterSelector(input)...)).To(Succeed())
		g.Expect(mds.Items).NotTo(BeEmpty())

		for _, md := range mds.Items {
			g.Expect(md.Status.Phase).To(Equal(string(clusterv1.MachineDeploymentPhaseRunning)), "MachineDeployment %s", md.Name)
		}
	}, input.WaitInterval...).Should(Succeed())
}

// WaitForMachineSetsActive waits for every MachineSet of the cluster to have all its replicas ready.
func WaitForMachineSetsActive(ctx context.Context, input CAPIClusterInput) {
	Expect(Parse(&input)).To(Succeed(), "Failed to parse environment variables")

	Byf("Waiting for MachineSets of %s/%s to be Active", input.Namespace, input.Name)

	Eventually(func(g Gomega) {
		sets := &clusterv1.MachineSetList{}
		g.Expect(input.Lister.List(ctx, sets, clusterSelector(input)...)).To(Succeed())
		g.Expect(sets.Items).NotTo(BeEmpty())

		for _, ms := range sets.Items {
			g.Expect(ms.Status.ReadyReplicas).To(Equal(ptr.Deref(ms.Spec.Replicas, 1)), "MachineSet %s", ms.Name)
		}
	}, input.WaitInterval...).Should(Succeed())
}

// WaitForMachinePoolsRunning waits for every MachinePool of the cluster to be Running with all
// its replicas ready.
func WaitForMachinePoolsRunning(ctx context.Context, input CAPIClusterInput) {
	Expect(Parse(&input)).To(Succeed(), "Failed to parse environment variables")

	Byf("Waiting for MachinePools of %s/%s to be Running", input.Namespace, input.Name)

	Eventually(func(g Gomega) {
		pools := &expv1.MachinePoolList{}
		g.Expect(input.Lister.List(ctx, pools, clusterSelector(input)...)).To(Succeed())
		g.Expect(pools.Items).NotTo(BeEmpty())

		for _, mp := range pools.Items {
			g.Expect(mp.Status.Phase).To(Equal(string(expv1.MachinePoolPhaseRunning)), "MachinePool %s", mp.Name)
			g.Expect(mp.Status.ReadyReplicas).To(Equal(ptr.Deref(mp.Spec.Replicas, 1)), "MachinePool %s", mp.Name)
		}
	}, input.WaitInterval...).Should(Succeed())
}

// WaitForClusterActive is what the dashboard CAPI views show for a healthy cluster: the
// cluster Provisioned, its MachineDeployments Running and its MachineSets Active.
// MachinePool clusters only have their pools checked.
func WaitForClusterActive(ctx context.Context, input CAPIClusterInput) {
	WaitForClusterProvisioned(ctx, input)

	if input.MachinePools {
		WaitForMachinePoolsRunning(ctx, input)
		return
	}

	WaitForMachineDeploymentsRunning(ctx, input)
	WaitForMachineSetsActive(ctx, input)
}

// WaitForMachineDeploymentReplicas waits for the cluster's MachineDeployments to have n ready replicas in total.
func WaitForMachineDeploymentReplicas(ctx context.Context, input CAPIClusterInput, n int32) {
	Expect(Parse(&input)).To(Succeed(), "Failed to parse environment variables")

	Byf("Waiting for %d ready machines in the MachineDeployments of %s/%s", n, input.Namespace, input.Name)

	Eventually(func(g Gomega) {
		mds := &clusterv1.MachineDeploymentList{}
		g.Expect(input.Lister.List(ctx, mds, clusterSelector(input)...)).To(Succeed())

		var ready int32
		for _, md := range mds.Items {
			ready += md.Status.ReadyReplicas
		}
		g.Expect(ready).To(Equal(n))
	}, input.WaitInterval...).Should(Succeed())
}

// WaitForClusterDeleted waits until the Cluster object is gone.
func WaitForClusterDeleted(ctx context.Context, input CAPIClusterInput) {
	Expect(Parse(&input)).To(Succeed(), "Failed to parse environment variables")

	Byf("Waiting for CAPI cluster %s/%s to be deleted", input.Namespace, input.Name)

	Eventually(func() bool {
		err := input.Lister.Get(ctx, types.NamespacedName{Namespace: input.Namespace, Name: input.Name}, &clusterv1.Cluster{})
		return apierrors.IsNotFound(err)
	}, input.WaitInterval...).Should(BeTrue(), "Cluster %s/%s was not deleted", input.Namespace, input.Name)
}

// CAPIClusterExists reports whether the Cluster object is present.
func CAPIClusterExists(ctx context.Context, getter capiframework.Getter, key types.NamespacedName) bool {
	err := getter.Get(ctx, key, &clusterv1.Cluster{})
	if apierrors.IsNotFound(err) {
		return false
	}
	Expect(err).NotTo(HaveOccurred(), "Failed to get cluster %s", key)

	return true
}

// WaitForClusterClassInput is the input to WaitForClusterClass.
type WaitForClusterClassInput struct {
	Lister       capiframework.Lister
	Namespace    string
	Prefix       string
	WaitInterval []interface{} `envDefault:"5m,10s"`
}

// WaitForClusterClass waits for a ClusterClass whose name starts with Prefix and returns its name.
func WaitForClusterClass(ctx context.Context, input WaitForClusterClassInput) string {
	Expect(Parse(&input)).To(Succeed(), "Failed to parse environment variables")
	Expect(input.Lister).ToNot(BeNil(), "Invalid argument. input.Lister can't be nil when calling WaitForClusterClass")

	Byf("Waiting for a ClusterClass %s* in %s", input.Prefix, input.Namespace)

	var name string
	Eventually(func(g Gomega) {
		classes := &clusterv1.ClusterClassList{}
		g.Expect(input.Lister.List(ctx, classes, client.InNamespace(input.Namespace))).To(Succeed())

		for _, cc := range classes.Items {
			if strings.HasPrefix(cc.Name, input.Prefix) {
				name = cc.Name
				return
			}
		}
		g.Expect(name).NotTo(BeEmpty(), "no ClusterClass with prefix %s", input.Prefix)
	}, input.WaitInterval...).Should(Succeed())

	return name
}

// ClusterFromClassInput describes a topology cluster created from a ClusterClass.
type ClusterFromClassInput struct {
	Creator   capiframework.Creator
	Name      string
	Namespace string
	Class     string
	Version   string
	// Workers maps MachineDeployment names to worker classes.
	Workers      map[string]string
	Replicas     int32
	PodCIDRs     []string
	ServiceCIDRs []string
	Labels       map[string]string
}

// CreateClusterFromClass creates a Cluster with a managed topology, as the dashboard
// "Create from ClusterClass" form does.
func CreateClusterFromClass(ctx context.Context, input ClusterFromClassInput) *clusterv1.Cluster {
	Expect(input.Creator).ToNot(BeNil(), "Invalid argument. input.Creator can't be nil when calling CreateClusterFromClass")
	Expect(input.Class).ToNot(BeEmpty(), "Invalid argument. input.Class can't be empty when calling CreateClusterFromClass")

	cluster := BuildClusterFromClass(input)

	Byf("Creating cluster %s/%s from ClusterClass %s", input.Namespace, input.Name, input.Class)
	Eventually(func() error {
		return client.IgnoreAlreadyExists(input.Creator.Create(ctx, cluster.DeepCopy()))
	}, retryableOperationTimeout, retryableOperationInterval).Should(Succeed(), "Failed to create cluster %s", input.Name)

	return cluster
}

// BuildClusterFromClass builds the Cluster object for CreateClusterFromClass.
func BuildClusterFromClass(input ClusterFromClassInput) *clusterv1.Cluster {
	if input.Replicas == 0 {
		input.Replicas = 1
	}

	cluster := &clusterv1.Cluster{
		ObjectMeta: metav1.ObjectMeta{
			Name:      input.Name,
			Namespace: input.Namespace,
			Labels:    input.Labels,
		},
		Spec: clusterv1.ClusterSpec{
			ClusterNetwork: &clusterv1.ClusterNetwork{
				Pods:     &clusterv1.NetworkRanges{CIDRBlocks: input.PodCIDRs},
				Services: &clusterv1.NetworkRanges{CIDRBlocks: input.ServiceCIDRs},
			},
			Topology: &clusterv1.Topology{
				Class:   input.Class,
				Version: input.Version,
				Workers: &clusterv1.WorkersTopology{},
			},
		},
	}

	names := make([]string, 0, len(input.Workers))
	for name := range input.Workers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		cluster.Spec.Topology.Workers.MachineDeployments = append(cluster.Spec.Topology.Workers.MachineDeployments, clusterv1.MachineDeploymentTopology{
			Class:    input.Workers[name],
			Name:     name,
			Replicas: ptr.To(input.Replicas),
		})
	}

	return cluster
}

func clusterSelector(input CAPIClusterInput) []client.ListOption {
	return []client.ListOption{
		client.InNamespace(input.Namespace),
		client.MatchingLabels{clusterv1.ClusterNameLabel: input.Name},
	}
}
