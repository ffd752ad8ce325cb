// Package session tracks units of work: which member is working on which
// task, with what tool, and when. Session records are append-only and feed
// conflict analysis.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ankittk/coord/internal/store"
	"github.com/ankittk/coord/pkg/models"
)

// Registry opens and closes sessions and answers conflict queries.
type Registry struct {
	Store store.Store
	// ConflictWindow is the recency window for conflict detection; zero
	// falls back to the default.
	ConflictWindow time.Duration
}

// NewID returns a fresh session identifier.
func NewID() string {
	return uuid.NewString()
}

// Open creates an active session for member working on task. An empty id
// generates one; an empty member defaults to "solo".
func (r *Registry) Open(ctx context.Context, id, member, task, tool string) (*store.Session, error) {
	if task == "" {
		return nil, errors.New("task required to open a session")
	}
	if id == "" {
		id = NewID()
	}
	if member == "" {
		member = models.SoloMember
	}
	sess := store.Session{
		SessionID: id,
		Member:    member,
		TaskKey:   task,
		Status:    models.SessionActive,
		StartedAt: time.Now().UTC(),
	}
	if tool != "" {
		sess.Tool = &tool
	}
	if err := r.Store.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("open session for task %s: %w", task, err)
	}
	return &sess, nil
}

// Close stamps the session with a terminal status and completion time.
func (r *Registry) Close(ctx context.Context, id, status string) error {
	if status == "" {
		status = models.SessionCompleted
	}
	return r.Store.CloseSession(ctx, id, status)
}

// Conflict is two or more members recently active on the same task.
type Conflict struct {
	Task     string
	Members  []string
	Sessions []store.Session
	Window   time.Duration
}

func (c *Conflict) String() string {
	return fmt.Sprintf("coordination conflict on %s: members %v active within %s", c.Task, c.Members, c.Window)
}

// CheckConflict scans recent session records for the task; sessions owned by
// different members inside the recency window are reported as an advisory
// coordination conflict. This is not a lock.
func (r *Registry) CheckConflict(ctx context.Context, task string) (*Conflict, error) {
	if task == "" {
		return nil, errors.New("task required for conflict check")
	}
	window := r.ConflictWindow
	if window <= 0 {
		window = models.DefaultConflictWindow * time.Hour
	}
	since := time.Now().UTC().Add(-window)
	sessions, err := r.Store.ListSessionsForTask(ctx, task, since)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var members []string
	for _, s := range sessions {
		if !seen[s.Member] {
			seen[s.Member] = true
			members = append(members, s.Member)
		}
	}
	if len(members) < 2 {
		return nil, nil
	}
	return &Conflict{Task: task, Members: members, Sessions: sessions, Window: window}, nil
}
