package store

import (
	"context"
	"time"
)

// Store is the persistence interface for tasks, dependency edges, sessions,
// and the checkpoint index. Implementations: the SQLite store returned by
// Open and *postgres.Store (PostgreSQL).
//
// Write operations on an absent task key create the record; read operations
// on an absent key return empty/neutral results, never an error.
type Store interface {
	// Tasks
	UpsertTaskStatus(ctx context.Context, key, status string, agent, session, member *string) error
	GetTask(ctx context.Context, key string) (*Task, error)
	ListTasks(ctx context.Context) ([]Task, error)
	ListTasksByStatus(ctx context.Context, status string) ([]Task, error)
	ListTasksByMember(ctx context.Context, member string) ([]Task, error)
	CountTasksByStatus(ctx context.Context) (map[string]int64, error)

	// Dependency edges (task -> depends_on adjacency, duplicates suppressed)
	AddDependency(ctx context.Context, task, dependsOn string) error
	RemoveDependency(ctx context.Context, task, dependsOn string) error
	ListDependencies(ctx context.Context, task string) ([]string, error)
	AllDependencies(ctx context.Context) (map[string][]string, error)
	ListDependents(ctx context.Context, dependsOn string) ([]string, error)

	// Sessions
	CreateSession(ctx context.Context, s Session) error
	CloseSession(ctx context.Context, sessionID, status string) error
	GetSession(ctx context.Context, sessionID string) (*Session, error)
	ListSessions(ctx context.Context, limit int) ([]Session, error)
	ListSessionsByMember(ctx context.Context, member string, limit int) ([]Session, error)
	ListSessionsByStatus(ctx context.Context, status string, limit int) ([]Session, error)
	ListSessionsForTask(ctx context.Context, task string, since time.Time) ([]Session, error)

	// Checkpoint index
	RecordCheckpoint(ctx context.Context, c Checkpoint) error
	LatestCheckpoint(ctx context.Context, sessionID string) (*Checkpoint, error)
	ListCheckpoints(ctx context.Context, sessionID string) ([]Checkpoint, error)

	// State document interop
	Snapshot(ctx context.Context) (*StateDocument, error)
	Restore(ctx context.Context, doc *StateDocument) error

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error
}
