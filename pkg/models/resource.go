package models

import (
	"k8s.io/apimachinery/pkg/api/resource"
)

// ResourceSpec represents a point-in-time snapshot of the scalable resource
// a remediation targets. It is read fresh before every write attempt and
// never cached across requests.
type ResourceSpec struct {
	// Identity
	Name      string
	Namespace string

	// ContainerName is the first container of the workload's template, the
	// one whose memory limit vertical remediation adjusts.
	ContainerName string

	// MemoryLimit is the observed memory limit of that container; nil when
	// the container sets none.
	MemoryLimit *resource.Quantity

	// Replicas is the observed desired replica count; nil when unset.
	Replicas *int32

	// ResourceVersion is the concurrency token observed at read time. Every
	// patch carries it so a concurrent writer turns into a conflict instead
	// of a lost update.
	ResourceVersion string
}
