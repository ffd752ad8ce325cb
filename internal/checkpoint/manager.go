// Package checkpoint captures point-in-time snapshots of a session's working
// state: an automatic checkpoint before a context-destroying event, and a
// manual pause/resume pair. Artifacts are plain files keyed by session id and
// a monotonically increasing timestamp; an index row goes into the store so
// resume can find the latest artifact set without scanning the filesystem.
package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ankittk/coord/internal/config"
	"github.com/ankittk/coord/internal/git"
	"github.com/ankittk/coord/internal/otel"
	"github.com/ankittk/coord/internal/store"
	"github.com/ankittk/coord/pkg/models"
)

// Manager writes and restores checkpoints for sessions working in Repo.
type Manager struct {
	Home  string
	Repo  string
	Store store.Store

	mu        sync.Mutex
	lastStamp time.Time
}

// GitState is the repository state captured into a snapshot.
type GitState struct {
	Branch        string   `json:"branch,omitempty"`
	Commit        string   `json:"commit,omitempty"`
	HasChanges    bool     `json:"has_changes"`
	ModifiedFiles []string `json:"modified_files,omitempty"`
	Committed     bool     `json:"committed,omitempty"`
	Error         string   `json:"error,omitempty"`
}

// Snapshot is the checkpoint-<stamp>.json document.
type Snapshot struct {
	SessionID       string    `json:"session_id"`
	Timestamp       string    `json:"timestamp"`
	Kind            string    `json:"kind"`
	Trigger         string    `json:"trigger,omitempty"`
	Reason          string    `json:"reason,omitempty"`
	Task            string    `json:"task,omitempty"`
	Member          string    `json:"member,omitempty"`
	TaskRange       string    `json:"task_range,omitempty"`
	ContextMode     string    `json:"context_mode,omitempty"`
	Git             *GitState `json:"git_state,omitempty"`
	TranscriptSaved bool      `json:"transcript_saved"`
	SchemaVersion   string    `json:"schema_version"`
}

// AutoOptions configures an automatic (pre-compaction) checkpoint.
type AutoOptions struct {
	SessionID      string
	TranscriptPath string // optional; copied into the artifact set when present
	Trigger        string // e.g. "auto", "manual" per the host environment
	Task           string
	Member         string
	TaskRange      string
	ContextMode    string
}

// PauseOptions configures a manual pause.
type PauseOptions struct {
	SessionID string
	Task      string
	Reason    string
	Policy    string // models.PauseCommit or models.PauseStashDiff; required when changes exist
	Member    string
}

// Result describes a written checkpoint artifact set.
type Result struct {
	SessionID    string
	Stamp        string
	Dir          string
	Snapshot     string // path to checkpoint-<stamp>.json
	Instructions string // path to instructions-<stamp>.md
	DiffPath     string // empty when no diff artifact was written
	Committed    bool
	CommitSHA    string
}

// stamp returns a timestamp fragment that increases strictly even within one
// process; file names sort in creation order.
func (m *Manager) stamp() (time.Time, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	if !now.After(m.lastStamp) {
		now = m.lastStamp.Add(time.Nanosecond)
	}
	m.lastStamp = now
	return now, now.Format("20060102T150405") + fmt.Sprintf(".%09d", now.Nanosecond())
}

// Auto writes an automatic checkpoint: snapshot document, working-tree diff,
// transcript copy, and continuation instructions. This is the last line of
// defense against losing in-flight work, so every write failure is returned
// as a hard error.
func (m *Manager) Auto(ctx context.Context, opts AutoOptions) (*Result, error) {
	if opts.SessionID == "" {
		return nil, errors.New("session id required for checkpoint")
	}
	now, stamp := m.stamp()
	dir := config.CheckpointDir(m.Home, opts.SessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create checkpoint dir: %w", err)
	}

	snap := Snapshot{
		SessionID:     opts.SessionID,
		Timestamp:     now.Format(time.RFC3339Nano),
		Kind:          models.CheckpointAuto,
		Trigger:       opts.Trigger,
		Task:          opts.Task,
		Member:        opts.Member,
		TaskRange:     opts.TaskRange,
		ContextMode:   opts.ContextMode,
		SchemaVersion: models.SchemaVersion,
	}
	res := &Result{SessionID: opts.SessionID, Stamp: stamp, Dir: dir}

	gs := m.captureGit(ctx)
	snap.Git = gs
	if gs.HasChanges {
		diff, err := git.Diff(ctx, m.Repo)
		if err != nil {
			return nil, fmt.Errorf("capture diff: %w", err)
		}
		res.DiffPath = filepath.Join(dir, "diff-"+stamp+".patch")
		if err := os.WriteFile(res.DiffPath, []byte(diff), 0o644); err != nil {
			return nil, fmt.Errorf("write diff artifact: %w", err)
		}
	}

	if opts.TranscriptPath != "" {
		if err := copyFile(opts.TranscriptPath, filepath.Join(dir, "transcript-"+stamp+".txt")); err != nil {
			return nil, fmt.Errorf("copy transcript: %w", err)
		}
		snap.TranscriptSaved = true
	}

	res.Snapshot = filepath.Join(dir, "checkpoint-"+stamp+".json")
	if err := writeJSON(res.Snapshot, &snap); err != nil {
		return nil, err
	}

	instr := autoInstructions(&snap, m.resumeCommand(opts.SessionID), stamp)
	res.Instructions = filepath.Join(dir, "instructions-"+stamp+".md")
	if err := os.WriteFile(res.Instructions, []byte(instr), 0o644); err != nil {
		return nil, fmt.Errorf("write instructions: %w", err)
	}

	if err := m.record(ctx, snap, now, stamp, dir, false, ""); err != nil {
		return nil, err
	}
	return res, nil
}

// Pause performs a manual pause: resolves the uncommitted-change policy,
// writes the artifact set, and sets the owning task to paused. Pausing with
// local changes and no explicit policy is a validation error — there is no
// silent default that discards work.
func (m *Manager) Pause(ctx context.Context, opts PauseOptions) (*Result, error) {
	if opts.SessionID == "" || opts.Task == "" {
		return nil, errors.New("session id and task required for pause")
	}
	if opts.Reason == "" {
		return nil, errors.New("pause reason required")
	}
	now, stamp := m.stamp()
	dir := config.CheckpointDir(m.Home, opts.SessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create checkpoint dir: %w", err)
	}

	snap := Snapshot{
		SessionID:     opts.SessionID,
		Timestamp:     now.Format(time.RFC3339Nano),
		Kind:          models.CheckpointManual,
		Reason:        opts.Reason,
		Task:          opts.Task,
		Member:        opts.Member,
		SchemaVersion: models.SchemaVersion,
	}
	res := &Result{SessionID: opts.SessionID, Stamp: stamp, Dir: dir}

	gs := m.captureGit(ctx)
	snap.Git = gs
	if gs.HasChanges {
		switch opts.Policy {
		case models.PauseCommit:
			sha, err := git.CommitAll(ctx, m.Repo, pauseCommitMessage(opts.SessionID, opts.Reason))
			if err != nil {
				return nil, fmt.Errorf("commit changes for session %s: %w", opts.SessionID, err)
			}
			gs.Committed = true
			gs.Commit = sha
			res.Committed = true
			res.CommitSHA = sha
		case models.PauseStashDiff:
			diff, err := git.Diff(ctx, m.Repo)
			if err != nil {
				return nil, fmt.Errorf("capture diff: %w", err)
			}
			res.DiffPath = filepath.Join(dir, "diff-"+stamp+".patch")
			if err := os.WriteFile(res.DiffPath, []byte(diff), 0o644); err != nil {
				return nil, fmt.Errorf("write diff artifact: %w", err)
			}
		default:
			return nil, fmt.Errorf("uncommitted changes in %s: choose a policy, %q or %q", m.Repo, models.PauseCommit, models.PauseStashDiff)
		}
	}

	res.Snapshot = filepath.Join(dir, "checkpoint-"+stamp+".json")
	if err := writeJSON(res.Snapshot, &snap); err != nil {
		return nil, err
	}

	log, _ := git.RecentLog(ctx, m.Repo, models.DefaultRecentLogEntries)
	instr := pauseInstructions(&snap, m.resumeCommand(opts.SessionID), log)
	res.Instructions = filepath.Join(dir, "instructions-"+stamp+".md")
	if err := os.WriteFile(res.Instructions, []byte(instr), 0o644); err != nil {
		return nil, fmt.Errorf("write instructions: %w", err)
	}

	if err := m.record(ctx, snap, now, stamp, dir, res.Committed, res.CommitSHA); err != nil {
		return nil, err
	}

	session := opts.SessionID
	var member *string
	if opts.Member != "" {
		member = &opts.Member
	}
	if err := m.Store.UpsertTaskStatus(ctx, opts.Task, models.StatusPaused, nil, &session, member); err != nil {
		return nil, fmt.Errorf("mark task %s paused: %w", opts.Task, err)
	}
	return res, nil
}

// Resumption is what a caller needs to pick up a paused or checkpointed session.
type Resumption struct {
	SessionID    string
	Task         string
	Reason       string
	Instructions string
	Checkpoint   store.Checkpoint
}

// Resume loads the most recent checkpoint for the session, restores the
// owning task to in_progress, and returns the continuation instructions.
func (m *Manager) Resume(ctx context.Context, sessionID string) (*Resumption, error) {
	if sessionID == "" {
		return nil, errors.New("session id required for resume")
	}
	cp, err := m.Store.LatestCheckpoint(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if cp == nil {
		return nil, fmt.Errorf("no checkpoint recorded for session %s", sessionID)
	}

	var snap Snapshot
	if err := readJSON(filepath.Join(cp.Dir, "checkpoint-"+cp.Stamp+".json"), &snap); err != nil {
		return nil, fmt.Errorf("load checkpoint snapshot for session %s: %w", sessionID, err)
	}
	instr, err := os.ReadFile(filepath.Join(cp.Dir, "instructions-"+cp.Stamp+".md"))
	if err != nil {
		return nil, fmt.Errorf("load continuation instructions for session %s: %w", sessionID, err)
	}

	if snap.Task != "" {
		session := sessionID
		var member *string
		if snap.Member != "" {
			member = &snap.Member
		}
		if err := m.Store.UpsertTaskStatus(ctx, snap.Task, models.StatusInProgress, nil, &session, member); err != nil {
			return nil, fmt.Errorf("restore task %s to in_progress: %w", snap.Task, err)
		}
	}

	return &Resumption{
		SessionID:    sessionID,
		Task:         snap.Task,
		Reason:       snap.Reason,
		Instructions: string(instr),
		Checkpoint:   *cp,
	}, nil
}

func (m *Manager) captureGit(ctx context.Context) *GitState {
	gs := &GitState{}
	branch, err := git.CurrentBranch(ctx, m.Repo)
	if err != nil {
		gs.Error = "git not available"
		return gs
	}
	gs.Branch = branch
	if sha, err := git.HeadSHA(ctx, m.Repo); err == nil {
		gs.Commit = sha
	}
	if status, err := git.StatusPorcelain(ctx, m.Repo); err == nil && status != "" {
		gs.HasChanges = true
		gs.ModifiedFiles = strings.Split(status, "\n")
	}
	return gs
}

func (m *Manager) record(ctx context.Context, snap Snapshot, at time.Time, stamp, dir string, committed bool, sha string) error {
	cp := store.Checkpoint{
		SessionID: snap.SessionID,
		CreatedAt: at,
		Kind:      snap.Kind,
		Committed: committed,
		Dir:       dir,
		Stamp:     stamp,
	}
	if snap.Reason != "" {
		cp.Reason = &snap.Reason
	}
	if snap.Git != nil && snap.Git.Branch != "" {
		cp.Branch = &snap.Git.Branch
	}
	if sha != "" {
		cp.CommitSHA = &sha
	} else if snap.Git != nil && snap.Git.Commit != "" {
		cp.CommitSHA = &snap.Git.Commit
	}
	if err := m.Store.RecordCheckpoint(ctx, cp); err != nil {
		return fmt.Errorf("index checkpoint for session %s: %w", snap.SessionID, err)
	}
	otel.RecordCheckpoint(ctx, snap.Kind)
	return nil
}

func (m *Manager) resumeCommand(sessionID string) string {
	return "coord resume " + sessionID
}

func pauseCommitMessage(sessionID, reason string) string {
	return fmt.Sprintf("coord pause [%s]: %s", sessionID, reason)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
