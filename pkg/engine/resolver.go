package engine

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/raycarroll/k8s-selfheal-engine/pkg/kube"
	"github.com/raycarroll/k8s-selfheal-engine/pkg/metrics"
	"github.com/raycarroll/k8s-selfheal-engine/pkg/models"
)

// Fallback reasons recorded when resolution keeps the caller's name.
const (
	fallbackNoInstance      = "no_instance"
	fallbackChainAbsent     = "chain_absent"
	fallbackGroupUnreadable = "group_unreadable"
	fallbackNoDeployment    = "no_deployment_ancestor"
)

// Resolver maps remediation targets to the deployment that owns them.
type Resolver struct {
	store   kube.Store
	metrics *metrics.Set
	log     *logrus.Entry
}

// NewResolver creates a new ownership resolver.
func NewResolver(store kube.Store, set *metrics.Set, log *logrus.Entry) *Resolver {
	return &Resolver{store: store, metrics: set, log: log}
}

// Resolve walks owner references upward from the named object: pod to
// ReplicaSet to Deployment, exactly two hops. Only the first ReplicaSet
// owner reference is followed, and its first Deployment owner wins, so a
// resolution costs at most two reads. Deeper ownership topologies (custom
// controllers owning Deployments, and so on) are not walked. The walk is
// best effort because callers may already pass a deployment name: each read
// failure or missing link is a normal branch that ends the walk, and the
// caller's name is returned. Resolution never fails a remediation.
// Fallbacks are counted by reason so a permission or connectivity problem
// shows up even though the behavior degrades silently.
func (r *Resolver) Resolve(ctx context.Context, namespace, name string) string {
	inst, err := r.store.GetInstance(ctx, namespace, name)
	if err != nil {
		r.metrics.IncResolutionFallback(fallbackNoInstance)
		r.log.Debugf("No pod %s/%s (%v), treating the target as a deployment name", namespace, name, err)
		return name
	}

	if len(inst.Owners) == 0 {
		r.metrics.IncResolutionFallback(fallbackChainAbsent)
		r.log.Debugf("Pod %s/%s has no owner references, using its name directly", namespace, name)
		return name
	}

	groupName, ok := inst.Owners.FirstOfKind(models.ReplicaSetKind)
	if !ok {
		r.metrics.IncResolutionFallback(fallbackNoDeployment)
		r.log.Debugf("Pod %s/%s has no deployment ancestor, using its name directly", namespace, name)
		return name
	}

	rg, err := r.store.GetReplicaGroup(ctx, namespace, groupName)
	if err != nil {
		r.metrics.IncResolutionFallback(fallbackGroupUnreadable)
		r.log.Debugf("Owner replicaset %s/%s unreadable (%v), keeping %s", namespace, groupName, err, name)
		return name
	}

	deployment, ok := rg.Owners.FirstOfKind(models.DeploymentKind)
	if !ok {
		r.metrics.IncResolutionFallback(fallbackNoDeployment)
		r.log.Debugf("Pod %s/%s has no deployment ancestor, using its name directly", namespace, name)
		return name
	}
	return deployment
}
