// Package kube reads and patches the cluster objects remediation touches.
package kube

import (
	"context"
	"encoding/json"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/kubernetes"

	"github.com/raycarroll/k8s-selfheal-engine/pkg/models"
)

// Store reads workload state and applies remediation patches. Reads return
// snapshots; patches carry the snapshot's resourceVersion so concurrent
// writers surface as conflicts instead of lost updates.
type Store interface {
	GetInstance(ctx context.Context, namespace, name string) (models.Instance, error)
	GetReplicaGroup(ctx context.Context, namespace, name string) (models.ReplicaGroup, error)
	GetDeploymentSpec(ctx context.Context, namespace, name string) (models.ResourceSpec, error)
	PatchDeploymentMemory(ctx context.Context, spec models.ResourceSpec, newLimit string) error
	PatchDeploymentScale(ctx context.Context, spec models.ResourceSpec, replicas int32) error
}

// Client implements Store against the Kubernetes API.
type Client struct {
	clientset kubernetes.Interface
}

var _ Store = (*Client)(nil)

// NewClient creates a new cluster store backed by the given clientset.
func NewClient(clientset kubernetes.Interface) (*Client, error) {
	if clientset == nil {
		return nil, fmt.Errorf("Kubernetes clientset is required")
	}
	return &Client{clientset: clientset}, nil
}

// GetInstance reads a pod, reduced to its ownership view.
func (c *Client) GetInstance(ctx context.Context, namespace, name string) (models.Instance, error) {
	pod, err := c.clientset.CoreV1().Pods(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return models.Instance{}, fmt.Errorf("reading pod %s/%s: %w", namespace, name, err)
	}
	return models.Instance{
		Name:      pod.Name,
		Namespace: pod.Namespace,
		Owners:    ownershipChain(pod.OwnerReferences),
	}, nil
}

// GetReplicaGroup reads a ReplicaSet, reduced to its ownership view.
func (c *Client) GetReplicaGroup(ctx context.Context, namespace, name string) (models.ReplicaGroup, error) {
	rs, err := c.clientset.AppsV1().ReplicaSets(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return models.ReplicaGroup{}, fmt.Errorf("reading replicaset %s/%s: %w", namespace, name, err)
	}
	return models.ReplicaGroup{
		Name:      rs.Name,
		Namespace: rs.Namespace,
		Owners:    ownershipChain(rs.OwnerReferences),
	}, nil
}

// GetDeploymentSpec reads a deployment and snapshots the fields remediation
// decides from: the first container's memory limit, the desired replica
// count and the resourceVersion that gates the following patch.
func (c *Client) GetDeploymentSpec(ctx context.Context, namespace, name string) (models.ResourceSpec, error) {
	deploy, err := c.clientset.AppsV1().Deployments(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return models.ResourceSpec{}, fmt.Errorf("reading deployment %s/%s: %w", namespace, name, err)
	}

	spec := models.ResourceSpec{
		Name:            deploy.Name,
		Namespace:       deploy.Namespace,
		ResourceVersion: deploy.ResourceVersion,
	}
	if deploy.Spec.Replicas != nil {
		replicas := *deploy.Spec.Replicas
		spec.Replicas = &replicas
	}
	if containers := deploy.Spec.Template.Spec.Containers; len(containers) > 0 {
		spec.ContainerName = containers[0].Name
		if limit, ok := containers[0].Resources.Limits[corev1.ResourceMemory]; ok {
			spec.MemoryLimit = &limit
		}
	}
	return spec, nil
}

// PatchDeploymentMemory raises the memory limit of the snapshot's container
// with a strategic merge patch. The containers list merges by name, so only
// the one limit changes.
func (c *Client) PatchDeploymentMemory(ctx context.Context, spec models.ResourceSpec, newLimit string) error {
	body, err := json.Marshal(map[string]any{
		"metadata": map[string]any{"resourceVersion": spec.ResourceVersion},
		"spec": map[string]any{
			"template": map[string]any{
				"spec": map[string]any{
					"containers": []map[string]any{{
						"name": spec.ContainerName,
						"resources": map[string]any{
							"limits": map[string]any{"memory": newLimit},
						},
					}},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("encoding memory patch: %w", err)
	}

	_, err = c.clientset.AppsV1().Deployments(spec.Namespace).Patch(ctx, spec.Name, types.StrategicMergePatchType, body, metav1.PatchOptions{})
	if err != nil {
		return fmt.Errorf("patching deployment %s/%s memory: %w", spec.Namespace, spec.Name, err)
	}
	return nil
}

// PatchDeploymentScale sets the desired replica count through the scale
// subresource.
func (c *Client) PatchDeploymentScale(ctx context.Context, spec models.ResourceSpec, replicas int32) error {
	body, err := json.Marshal(map[string]any{
		"metadata": map[string]any{"resourceVersion": spec.ResourceVersion},
		"spec":     map[string]any{"replicas": replicas},
	})
	if err != nil {
		return fmt.Errorf("encoding scale patch: %w", err)
	}

	_, err = c.clientset.AppsV1().Deployments(spec.Namespace).Patch(ctx, spec.Name, types.MergePatchType, body, metav1.PatchOptions{}, "scale")
	if err != nil {
		return fmt.Errorf("patching deployment %s/%s scale: %w", spec.Namespace, spec.Name, err)
	}
	return nil
}

// ownershipChain copies owner references into the domain form, preserving
// the nil/empty distinction.
func ownershipChain(refs []metav1.OwnerReference) models.OwnershipChain {
	if refs == nil {
		return nil
	}
	chain := make(models.OwnershipChain, 0, len(refs))
	for _, ref := range refs {
		chain = append(chain, models.OwnerRef{Kind: ref.Kind, Name: ref.Name})
	}
	return chain
}
