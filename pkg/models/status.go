package models

// Task statuses used throughout the codebase. "unknown" is a read-side
// sentinel for tasks that were never recorded; it is never stored.
const (
	StatusWaiting    = "waiting_for_dependencies"
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusPaused     = "paused"
	StatusCompleted  = "completed"
	StatusBlocked    = "blocked" // advisory conflict marker; does not gate transitions
	StatusUnknown    = "unknown"
)

// ValidTaskStatus reports whether s is a storable task status.
func ValidTaskStatus(s string) bool {
	switch s {
	case StatusWaiting, StatusPending, StatusInProgress, StatusPaused, StatusCompleted, StatusBlocked:
		return true
	}
	return false
}

// TaskAssigned reports whether a task in status s counts toward a member's
// current workload.
func TaskAssigned(s string) bool {
	return s != StatusCompleted && s != StatusUnknown
}

// Session statuses.
const (
	SessionActive      = "active"
	SessionCompleted   = "completed"
	SessionInterrupted = "interrupted"
	SessionAbandoned   = "abandoned"
)

// ValidSessionClose reports whether s is a terminal session status.
func ValidSessionClose(s string) bool {
	switch s {
	case SessionCompleted, SessionInterrupted, SessionAbandoned:
		return true
	}
	return false
}

// Checkpoint kinds.
const (
	CheckpointAuto   = "auto"
	CheckpointManual = "manual"
)

// Uncommitted-change policies for manual pause.
const (
	PauseCommit    = "commit"
	PauseStashDiff = "stash-diff"
)

// SoloMember is used when no worker pool is configured.
const SoloMember = "solo"

// ResolverAgent is recorded on status rows written by the readiness cascade.
const ResolverAgent = "resolver"

// Default limits.
const (
	DefaultMemberLimit       = 5
	DefaultSessionListLimit  = 100
	DefaultConflictWindow    = 24 // hours
	DefaultRecentLogEntries  = 5
	DefaultOverloadThreshold = 2 // assigned count >= mean + threshold flags a member
)

// SchemaVersion is written into exported state documents.
const SchemaVersion = "1.0"
