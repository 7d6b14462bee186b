// SPDX-License-Identifier: MPL-2.0

package runner

import (
	"time"
)

// Session outcome statuses.
const (
	// StatusSuccess marks a session whose function returned normally.
	StatusSuccess Status = "success"
	// StatusFailed marks a failed session.
	StatusFailed Status = "failed"
	// StatusSkipped marks a session that skipped itself or was skipped by
	// the missing-interpreter policy.
	StatusSkipped Status = "skipped"
	// StatusAborted marks a session that never ran because an earlier
	// failure or interrupt stopped the invocation.
	StatusAborted Status = "aborted"
)

type (
	// Status is a session outcome.
	Status string

	// Result is the recorded outcome of one session instance.
	Result struct {
		// Name is the instance's canonical name.
		Name string
		// Status is the outcome.
		Status Status
		// Reason is the optional human-readable cause (skip message,
		// failure description).
		Reason string
		// Duration is the wall-clock session time.
		Duration time.Duration
		// Args is the instance's call spec as a plain map, for reports.
		Args map[string]any
		// LogExcerpt holds captured command output for reports. The runner
		// loop does not set it; it stays empty.
		LogExcerpt string
	}
)

// OK reports whether the status counts as passing: success and skipped pass,
// failed and aborted do not.
func (s Status) OK() bool {
	return s == StatusSuccess || s == StatusSkipped
}

// AllOK reports whether every result passes.
func AllOK(results []*Result) bool {
	for _, r := range results {
		if !r.Status.OK() {
			return false
		}
	}
	return true
}
