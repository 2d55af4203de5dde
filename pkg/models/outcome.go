package models

import "fmt"

// OutcomeStatus represents the terminal state of a remediation.
type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeFailure OutcomeStatus = "failure"
)

// Outcome represents the terminal result of one remediation request.
type Outcome struct {
	Status    OutcomeStatus
	Action    Action
	Resource  string // resolved scalable resource, not the requested target
	Namespace string

	// Observed and applied values, rendered for audit messages.
	PreviousValue string
	NewValue      string

	// Attempts counts read-decide-patch rounds, including the successful one.
	Attempts int

	// Err is set when Status is OutcomeFailure.
	Err error
}

// Succeeded returns true if the remediation was applied.
func (o *Outcome) Succeeded() bool {
	return o.Status == OutcomeSuccess
}

// Message renders the human-readable summary consumed by dashboards.
func (o *Outcome) Message() string {
	if o.Status == OutcomeFailure {
		if o.Err != nil {
			return fmt.Sprintf("Remediation failed for %s/%s: %v", o.Namespace, o.Resource, o.Err)
		}
		return fmt.Sprintf("Remediation failed for %s/%s.", o.Namespace, o.Resource)
	}
	switch o.Action {
	case ActionScaleOut:
		return fmt.Sprintf("Horizontal scaling: %s scaled from %s to %s replicas.", o.Resource, o.PreviousValue, o.NewValue)
	default:
		return fmt.Sprintf("Vertical scaling: %s memory limit increased from %s to %s.", o.Resource, o.PreviousValue, o.NewValue)
	}
}
