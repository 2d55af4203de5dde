// Package policy computes remediation target values from observed state.
package policy

import (
	"github.com/virtual-kubelet/virtual-kubelet/errdefs"

	"github.com/raycarroll/k8s-selfheal-engine/pkg/models"
	"github.com/raycarroll/k8s-selfheal-engine/pkg/quantity"
)

const (
	// DefaultMemoryLimitMiB is assumed when the target container sets no
	// memory limit.
	DefaultMemoryLimitMiB = 256

	// DefaultReplicas is assumed when the target sets no replica count.
	DefaultReplicas = 1

	// memoryGrowthFactor is the multiplicative step for vertical remediation.
	memoryGrowthFactor = 1.25

	// minReplicasAfterScaleOut is the floor every scale-out lands on; a
	// workload running fewer than two replicas jumps straight to two.
	minReplicasAfterScaleOut = 2
)

// IncrementMemory returns the next memory limit in MiB for a container
// currently limited to currentMiB. The product is truncated, and the result
// is always strictly greater than the input so repeated remediation makes
// progress even from tiny limits.
func IncrementMemory(currentMiB int64) int64 {
	next := int64(float64(currentMiB) * memoryGrowthFactor)
	if next <= currentMiB {
		next = currentMiB + 1
	}
	return next
}

// ScaleOut returns the next replica count for a workload currently running
// current replicas.
func ScaleOut(current int32) int32 {
	if current >= minReplicasAfterScaleOut {
		return current + 1
	}
	return minReplicasAfterScaleOut
}

// Decide computes the target state for one action from one snapshot. Equal
// snapshots produce equal decisions, which is what makes patch retries safe:
// a recomputed decision converges instead of compounding the previous one.
func Decide(action models.Action, spec models.ResourceSpec) (models.Decision, error) {
	switch action {
	case models.ActionIncrementMemory:
		current := int64(DefaultMemoryLimitMiB)
		if spec.MemoryLimit != nil {
			current = quantity.ParseMiB(spec.MemoryLimit.String())
		}
		return models.Decision{
			Action:          action,
			PrevMemoryLimit: quantity.FormatMiB(current),
			NewMemoryLimit:  quantity.FormatMiB(IncrementMemory(current)),
		}, nil
	case models.ActionScaleOut:
		current := int32(DefaultReplicas)
		if spec.Replicas != nil {
			current = *spec.Replicas
		}
		return models.Decision{
			Action:       action,
			PrevReplicas: current,
			NewReplicas:  ScaleOut(current),
		}, nil
	default:
		return models.Decision{}, errdefs.InvalidInputf("unsupported action %q", action)
	}
}
