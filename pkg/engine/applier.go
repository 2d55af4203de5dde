package engine

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/virtual-kubelet/virtual-kubelet/errdefs"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/raycarroll/k8s-selfheal-engine/pkg/kube"
	"github.com/raycarroll/k8s-selfheal-engine/pkg/metrics"
	"github.com/raycarroll/k8s-selfheal-engine/pkg/models"
	"github.com/raycarroll/k8s-selfheal-engine/pkg/policy"
)

// DefaultMaxAttempts bounds the read-decide-patch rounds per remediation.
const DefaultMaxAttempts = 3

// Applier executes remediation decisions against the cluster store. Writes
// are conflict-gated: each patch carries the resourceVersion of the read it
// was decided from, so a stale write is rejected rather than applied.
type Applier struct {
	store       kube.Store
	metrics     *metrics.Set
	maxAttempts int

	// backoff spaces retry rounds. Step advances the struct, so each Apply
	// call works on its own copy.
	backoff wait.Backoff

	log *logrus.Entry
}

// NewApplier creates a new applier. maxAttempts values below one fall back
// to DefaultMaxAttempts.
func NewApplier(store kube.Store, set *metrics.Set, maxAttempts int, log *logrus.Entry) *Applier {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Applier{
		store:       store,
		metrics:     set,
		maxAttempts: maxAttempts,
		backoff:     wait.Backoff{Duration: 50 * time.Millisecond, Factor: 2, Steps: maxAttempts},
		log:         log,
	}
}

// Apply runs read-decide-patch rounds against the named deployment until a
// patch lands or the attempt bound is hit. Every round re-reads the object
// and recomputes the decision from that fresh snapshot, so a retry after a
// conflict converges on the concurrent writer's state instead of compounding
// its own previous decision. Retry rounds are spaced by a short exponential
// backoff that honors context cancellation. The returned count is the
// number of rounds spent, including the final one.
func (a *Applier) Apply(ctx context.Context, action models.Action, namespace, name string) (models.Decision, int, error) {
	backoff := a.backoff
	var lastErr error
	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return models.Decision{}, attempt - 1, fmt.Errorf("remediating %s/%s: %w", namespace, name, ctx.Err())
			case <-time.After(backoff.Step()):
			}
			a.metrics.IncPatchRetry()
		}

		spec, err := a.store.GetDeploymentSpec(ctx, namespace, name)
		if err != nil {
			if apierrors.IsNotFound(err) {
				return models.Decision{}, attempt, errdefs.AsNotFound(err)
			}
			if !retryable(err) {
				return models.Decision{}, attempt, err
			}
			lastErr = err
			a.log.Debugf("Transient error reading %s/%s (attempt %d/%d): %v", namespace, name, attempt, a.maxAttempts, err)
			continue
		}

		decision, err := policy.Decide(action, spec)
		if err != nil {
			return models.Decision{}, attempt, err
		}

		err = a.patch(ctx, spec, decision)
		if err == nil {
			return decision, attempt, nil
		}
		if apierrors.IsNotFound(err) {
			return models.Decision{}, attempt, errdefs.AsNotFound(err)
		}
		if !retryable(err) {
			return models.Decision{}, attempt, err
		}
		lastErr = err
		if apierrors.IsConflict(err) {
			a.log.Debugf("Write conflict on %s/%s (attempt %d/%d), re-reading", namespace, name, attempt, a.maxAttempts)
		} else {
			a.log.Debugf("Transient error patching %s/%s (attempt %d/%d): %v", namespace, name, attempt, a.maxAttempts, err)
		}
	}
	return models.Decision{}, a.maxAttempts, fmt.Errorf("remediating %s/%s: retries exhausted after %d attempts: %w", namespace, name, a.maxAttempts, lastErr)
}

func (a *Applier) patch(ctx context.Context, spec models.ResourceSpec, decision models.Decision) error {
	switch decision.Action {
	case models.ActionIncrementMemory:
		if spec.ContainerName == "" {
			return fmt.Errorf("deployment %s/%s has no containers to adjust", spec.Namespace, spec.Name)
		}
		return a.store.PatchDeploymentMemory(ctx, spec, decision.NewMemoryLimit)
	case models.ActionScaleOut:
		return a.store.PatchDeploymentScale(ctx, spec, decision.NewReplicas)
	default:
		return errdefs.InvalidInputf("unsupported action %q", decision.Action)
	}
}

// retryable reports whether a failed round may be retried with a fresh
// read. Write conflicts and transient transport failures qualify; a missing
// target or any other rejection is final.
func retryable(err error) bool {
	if apierrors.IsConflict(err) || apierrors.IsServerTimeout(err) || apierrors.IsTimeout(err) ||
		apierrors.IsTooManyRequests(err) || apierrors.IsServiceUnavailable(err) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
