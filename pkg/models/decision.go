package models

import "strconv"

// Decision represents the computed next state for one remediation. It is a
// pure function of a single ResourceSpec snapshot: equal snapshots always
// produce equal decisions, so a retried attempt converges instead of
// compounding.
type Decision struct {
	Action Action

	// Memory values, as integer-MiB quantity strings (increment_memory).
	PrevMemoryLimit string
	NewMemoryLimit  string

	// Replica counts (scale).
	PrevReplicas int32
	NewReplicas  int32
}

// PreviousValue returns the observed value the decision started from,
// rendered for messages and audit records.
func (d Decision) PreviousValue() string {
	if d.Action == ActionScaleOut {
		return strconv.FormatInt(int64(d.PrevReplicas), 10)
	}
	return d.PrevMemoryLimit
}

// NewValue returns the target value the decision settled on.
func (d Decision) NewValue() string {
	if d.Action == ActionScaleOut {
		return strconv.FormatInt(int64(d.NewReplicas), 10)
	}
	return d.NewMemoryLimit
}
