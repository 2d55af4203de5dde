package models

const (
	// ReplicaSetKind represents the ReplicaSet object kind.
	ReplicaSetKind = "ReplicaSet"
	// DeploymentKind represents the Deployment object kind.
	DeploymentKind = "Deployment"
)

// OwnerRef represents one typed link in an ownership chain.
type OwnerRef struct {
	Kind string
	Name string
}

// OwnershipChain represents the owner references of an object in API order.
// A nil chain (owner metadata unreadable) and an empty chain (object has no
// owners) are distinct states, though resolution treats both as the end of
// the walk.
type OwnershipChain []OwnerRef

// FirstOfKind returns the name of the first owner with the given kind.
func (c OwnershipChain) FirstOfKind(kind string) (string, bool) {
	for _, ref := range c {
		if ref.Kind == kind {
			return ref.Name, true
		}
	}
	return "", false
}

// Instance represents the lowest-level scheduled unit (a Pod), reduced to
// the fields ownership resolution needs.
type Instance struct {
	Name      string
	Namespace string
	Owners    OwnershipChain
}

// ReplicaGroup represents the mid-level controller (a ReplicaSet) owning a
// set of instances.
type ReplicaGroup struct {
	Name      string
	Namespace string
	Owners    OwnershipChain
}
