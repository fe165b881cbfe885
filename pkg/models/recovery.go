package models

import "time"

// RecoveryActionType discriminates the variants of a RecoveryAction.
type RecoveryActionType string

const (
	// RecoveryRetry re-runs the task, possibly with an adjusted timeout.
	RecoveryRetry RecoveryActionType = "retry"
	// RecoveryDecompose splits the task into smaller subtasks.
	RecoveryDecompose RecoveryActionType = "decompose"
	// RecoverySubstitute replaces the task with an alternative one.
	RecoverySubstitute RecoveryActionType = "substitute"
	// RecoveryEscalate gives up on automatic recovery and surfaces the
	// failure with a reason.
	RecoveryEscalate RecoveryActionType = "escalate"
)

// RecoveryAction is the tagged result of applying a recovery strategy to
// a failed task. Exactly the fields relevant to Type are populated.
type RecoveryAction struct {
	// Type selects the variant.
	Type RecoveryActionType `json:"type"`
	// Timeout is the adjusted timeout for retry actions.
	Timeout time.Duration `json:"timeout,omitempty"`
	// Delay is how long to wait before retrying, for backoff retries.
	Delay time.Duration `json:"delay,omitempty"`
	// Subtasks are the replacement tasks for decompose actions. For a
	// missing-resource recovery the prerequisite task comes first.
	Subtasks []*Task `json:"subtasks,omitempty"`
	// Substitute is the replacement task for substitute actions.
	Substitute *Task `json:"substitute,omitempty"`
	// Reason explains an escalation.
	Reason string `json:"reason,omitempty"`
}
