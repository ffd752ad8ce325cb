// Package store defines the persistence interface and shared models for the
// dependency graph, task status records, sessions, and checkpoint index.
package store

import "time"

// Task is a status record for a uniquely keyed unit of work. Tasks are
// created implicitly on first status write and never deleted.
type Task struct {
	Key       string    `json:"key"`
	Status    string    `json:"status"`
	Agent     *string   `json:"agent,omitempty"`
	SessionID *string   `json:"session_id,omitempty"`
	Member    *string   `json:"member,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Session is one process-lifetime unit of work by a member against a task.
// Sessions are appended, never deleted; closed sessions keep their record
// for audit and conflict analysis.
type Session struct {
	SessionID   string     `json:"session_id"`
	Member      string     `json:"member"`
	TaskKey     string     `json:"task_key"`
	Tool        *string    `json:"tool,omitempty"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Checkpoint is the store-side index entry for a checkpoint artifact set on
// disk. Immutable once written; keyed by session id + creation time.
type Checkpoint struct {
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"` // nanosecond precision; names are monotonically increasing per session
	Kind      string    `json:"kind"` // models.CheckpointAuto or models.CheckpointManual
	Reason    *string   `json:"reason,omitempty"`
	Branch    *string   `json:"branch,omitempty"`
	CommitSHA *string   `json:"commit_sha,omitempty"`
	Committed bool      `json:"committed"` // manual pause with "commit" policy produced a commit
	Dir       string    `json:"dir"`
	Stamp     string    `json:"stamp"` // timestamp fragment embedded in artifact file names
}

// StateDocument is the portable JSON form of the dependency graph and task
// records (schema_version 1.0). Used by `coord state export|import`.
type StateDocument struct {
	Dependencies  map[string][]string     `json:"dependencies"`
	Tasks         map[string]TaskDocument `json:"tasks"`
	LastUpdated   string                  `json:"last_updated"`
	SchemaVersion string                  `json:"schema_version"`
}

// TaskDocument is one task entry in a StateDocument.
type TaskDocument struct {
	Status  string `json:"status"`
	Agent   string `json:"agent,omitempty"`
	Session string `json:"session,omitempty"`
	Member  string `json:"member,omitempty"`
	Updated string `json:"updated"`
}
