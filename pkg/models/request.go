package models

import "fmt"

// Action represents the corrective mutation a remediation request asks for.
type Action string

const (
	// ActionIncrementMemory raises the memory limit of the target's first
	// container by the configured growth factor.
	ActionIncrementMemory Action = "increment_memory"
	// ActionScaleOut raises the replica count of the target.
	ActionScaleOut Action = "scale"
)

// Known reports whether the action belongs to the closed set of remediation
// procedures.
func (a Action) Known() bool {
	switch a {
	case ActionIncrementMemory, ActionScaleOut:
		return true
	}
	return false
}

// DefaultNamespace is assumed when a request does not name a namespace.
const DefaultNamespace = "default"

// RemediationRequest represents a caller's demand for a corrective mutation.
// Callers state intent only; target values are always computed from cluster
// state observed at apply time, never taken from the request.
type RemediationRequest struct {
	Action    Action `json:"action"`
	Target    string `json:"target"`
	Namespace string `json:"namespace"`
}

// Normalize fills in defaults for optional fields.
func (r *RemediationRequest) Normalize() {
	if r.Namespace == "" {
		r.Namespace = DefaultNamespace
	}
}

// Validate checks if the request is well-formed.
func (r *RemediationRequest) Validate() error {
	if !r.Action.Known() {
		return ErrInvalidRequest(fmt.Sprintf("unknown action %q", r.Action))
	}
	if r.Target == "" {
		return ErrInvalidRequest("target is required")
	}
	if r.Namespace == "" {
		return ErrInvalidRequest("namespace is required")
	}
	return nil
}

// ErrInvalidRequest is returned when a remediation request is invalid.
type ErrInvalidRequest string

func (e ErrInvalidRequest) Error() string {
	return "invalid remediation request: " + string(e)
}
