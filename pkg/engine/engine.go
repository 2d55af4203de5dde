// Package engine executes self-healing remediations: resolve the canonical
// deployment behind a target, decide the mutation from freshly read state,
// and apply it with conflict-gated, bounded retries.
package engine

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/virtual-kubelet/virtual-kubelet/errdefs"

	"github.com/raycarroll/k8s-selfheal-engine/pkg/kube"
	"github.com/raycarroll/k8s-selfheal-engine/pkg/logger"
	"github.com/raycarroll/k8s-selfheal-engine/pkg/metrics"
	"github.com/raycarroll/k8s-selfheal-engine/pkg/models"
)

// Config holds engine configuration.
type Config struct {
	// MaxAttempts bounds the read-decide-patch rounds per request. Zero
	// means DefaultMaxAttempts.
	MaxAttempts int
}

// Engine executes remediation requests end to end. It keeps no state
// between requests: ownership chains and resource specs are re-read from
// the cluster on every request, and concurrent requests do not share
// anything mutable.
type Engine struct {
	resolver *Resolver
	applier  *Applier
	metrics  *metrics.Set
	log      *logrus.Entry
}

// New creates an engine on top of the given cluster store.
func New(store kube.Store, set *metrics.Set, cfg Config, log *logrus.Logger) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("cluster store is required")
	}
	if set == nil {
		set = metrics.NewSet()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	entry := logger.WithComponent(log, "engine")
	return &Engine{
		resolver: NewResolver(store, set, entry),
		applier:  NewApplier(store, set, cfg.MaxAttempts, entry),
		metrics:  set,
		log:      entry,
	}, nil
}

// Metrics returns the engine's counter set, for mounting a scrape handler.
func (e *Engine) Metrics() *metrics.Set {
	return e.metrics
}

// Remediate executes one request and always returns a terminal outcome. The
// outcome's Err carries the failure class for callers that classify.
func (e *Engine) Remediate(ctx context.Context, req models.RemediationRequest) models.Outcome {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return e.finish(models.Outcome{
			Status:    models.OutcomeFailure,
			Action:    req.Action,
			Resource:  req.Target,
			Namespace: req.Namespace,
			Err:       errdefs.AsInvalidInput(err),
		})
	}

	target := e.resolver.Resolve(ctx, req.Namespace, req.Target)
	if target != req.Target {
		e.log.Infof("Resolved %s/%s to deployment %s", req.Namespace, req.Target, target)
	}

	decision, attempts, err := e.applier.Apply(ctx, req.Action, req.Namespace, target)
	if err != nil {
		return e.finish(models.Outcome{
			Status:    models.OutcomeFailure,
			Action:    req.Action,
			Resource:  target,
			Namespace: req.Namespace,
			Attempts:  attempts,
			Err:       err,
		})
	}

	return e.finish(models.Outcome{
		Status:        models.OutcomeSuccess,
		Action:        req.Action,
		Resource:      target,
		Namespace:     req.Namespace,
		PreviousValue: decision.PreviousValue(),
		NewValue:      decision.NewValue(),
		Attempts:      attempts,
	})
}

func (e *Engine) finish(out models.Outcome) models.Outcome {
	// Unknown actions share one label value so callers cannot mint
	// unbounded metric cardinality.
	action := string(out.Action)
	if !out.Action.Known() {
		action = "invalid"
	}
	e.metrics.IncRemediation(action, string(out.Status))
	if out.Succeeded() {
		e.log.Info(out.Message())
	} else {
		e.log.WithError(out.Err).Error(out.Message())
	}
	return out
}
