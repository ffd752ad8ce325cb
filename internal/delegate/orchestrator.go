// Package delegate is the top-level entry point external callers use to hand
// a task to a worker. It composes the store, readiness resolver, session
// registry, and checkpoint availability probe.
package delegate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ankittk/coord/internal/config"
	"github.com/ankittk/coord/internal/otel"
	"github.com/ankittk/coord/internal/session"
	"github.com/ankittk/coord/internal/store"
	"github.com/ankittk/coord/pkg/models"
)

// Orchestrator hands tasks to members.
type Orchestrator struct {
	Home     string
	SpecsDir string // optional override; default <home>/specs
	Store    store.Store
	Sessions *session.Registry
}

// Request is one delegation: hand task (or a task range label) to member.
type Request struct {
	Task      string
	Member    string
	SessionID string // empty generates one
	Tool      string
	TaskRange string // optional range label recorded on the session summary
	Force     bool   // proceed past unmet dependencies with a warning
}

// Summary is the structured result returned to the caller.
type Summary struct {
	Task        string   `json:"task"`
	Member      string   `json:"member"`
	SessionID   string   `json:"session_id"`
	TaskRange   string   `json:"task_range,omitempty"`
	Mode        string   `json:"mode"`
	ModeReason  string   `json:"mode_reason,omitempty"`
	SpecsLoaded []string `json:"specs_loaded,omitempty"`
	UnmetDeps   []string `json:"unmet_dependencies,omitempty"`
	Warnings    []string `json:"warnings,omitempty"`
}

// Delegate runs the full hand-off: probe coordination availability, load spec
// artifacts, gate on dependencies, then mark the task in_progress owned by
// the member and session.
func (o *Orchestrator) Delegate(ctx context.Context, req Request) (*Summary, error) {
	if req.Task == "" {
		return nil, errors.New("task required")
	}
	member := req.Member
	if member == "" {
		member = models.SoloMember
	}

	sum := &Summary{Task: req.Task, Member: member, TaskRange: req.TaskRange}

	strategy := Probe(ctx, o.Store, o.Home)
	sum.Mode = strategy.Name()
	if reason := DegradedReason(strategy); reason != "" {
		sum.ModeReason = reason
		sum.Warnings = append(sum.Warnings, "coordination degraded: "+reason+"; durability relies on version-control commits")
	}

	specs, err := o.loadSpecs(req.Task)
	if err != nil {
		return nil, err
	}
	sum.SpecsLoaded = specs
	if len(specs) == 0 {
		sum.Warnings = append(sum.Warnings, fmt.Sprintf("no specification artifacts found for %s", req.Task))
	}

	unmet, err := o.unmetDependencies(ctx, req.Task)
	if err != nil {
		return nil, err
	}
	sum.UnmetDeps = unmet
	if len(unmet) > 0 {
		if !req.Force {
			return sum, fmt.Errorf("task %s has unmet dependencies: %s (use --force to override)", req.Task, strings.Join(unmet, ", "))
		}
		sum.Warnings = append(sum.Warnings, fmt.Sprintf("proceeding despite unmet dependencies: %s", strings.Join(unmet, ", ")))
	}

	sess, err := o.Sessions.Open(ctx, req.SessionID, member, req.Task, req.Tool)
	if err != nil {
		return sum, err
	}
	sum.SessionID = sess.SessionID

	agent := member
	if err := o.Store.UpsertTaskStatus(ctx, req.Task, models.StatusInProgress, &agent, &sess.SessionID, &member); err != nil {
		return sum, fmt.Errorf("mark task %s in_progress: %w", req.Task, err)
	}
	otel.RecordDelegation(ctx, sum.Mode)
	return sum, nil
}

func (o *Orchestrator) unmetDependencies(ctx context.Context, task string) ([]string, error) {
	deps, err := o.Store.ListDependencies(ctx, task)
	if err != nil {
		return nil, err
	}
	var unmet []string
	for _, d := range deps {
		rec, err := o.Store.GetTask(ctx, d)
		if err != nil {
			return nil, err
		}
		if rec == nil || rec.Status != models.StatusCompleted {
			unmet = append(unmet, d)
		}
	}
	return unmet, nil
}

// loadSpecs lists the planning layer's spec artifacts for the task's feature.
// Task keys follow "<feature>-task-<n>"; the feature directory holds the
// artifacts. A missing directory is not an error.
func (o *Orchestrator) loadSpecs(task string) ([]string, error) {
	dir := o.SpecsDir
	if dir == "" {
		dir = config.SpecsDir(o.Home)
	}
	feature := FeatureOf(task)
	entries, err := os.ReadDir(filepath.Join(dir, feature))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		out = append(out, filepath.Join(dir, feature, e.Name()))
	}
	return out, nil
}

// FeatureOf strips the "-task-<n>" suffix from a task key; a key without the
// suffix is its own feature.
func FeatureOf(task string) string {
	if i := strings.LastIndex(task, "-task-"); i > 0 {
		return task[:i]
	}
	return task
}
