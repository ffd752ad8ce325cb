package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ankittk/coord/internal/store"
	"github.com/ankittk/coord/pkg/models"
)

const taskColumns = `task_key, status, agent, session_id, member, updated_at`

func (s *Store) UpsertTaskStatus(ctx context.Context, key, status string, agent, session, member *string) error {
	if key == "" {
		return errors.New("task key required")
	}
	if !models.ValidTaskStatus(status) {
		return fmt.Errorf("invalid task status %q for task %s", status, key)
	}
	_, err := s.Pool.Exec(ctx, `INSERT INTO tasks(task_key, status, agent, session_id, member, updated_at) VALUES($1, $2, $3, $4, $5, $6)
ON CONFLICT (task_key) DO UPDATE SET status=EXCLUDED.status, agent=EXCLUDED.agent, session_id=EXCLUDED.session_id, member=EXCLUDED.member, updated_at=EXCLUDED.updated_at`,
		key, status, agent, session, member, time.Now().UTC().Unix())
	return err
}

func (s *Store) GetTask(ctx context.Context, key string) (*store.Task, error) {
	if key == "" {
		return nil, errors.New("task key required")
	}
	row := s.Pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE task_key = $1`, key)
	t, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return t, err
}

func (s *Store) ListTasks(ctx context.Context) ([]store.Task, error) {
	rows, err := s.Pool.Query(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY task_key ASC`)
	if err != nil {
		return nil, err
	}
	return collectTasks(rows)
}

func (s *Store) ListTasksByStatus(ctx context.Context, status string) ([]store.Task, error) {
	rows, err := s.Pool.Query(ctx, `SELECT `+taskColumns+` FROM tasks WHERE status = $1 ORDER BY task_key ASC`, status)
	if err != nil {
		return nil, err
	}
	return collectTasks(rows)
}

func (s *Store) ListTasksByMember(ctx context.Context, member string) ([]store.Task, error) {
	rows, err := s.Pool.Query(ctx, `SELECT `+taskColumns+` FROM tasks WHERE member = $1 ORDER BY task_key ASC`, member)
	if err != nil {
		return nil, err
	}
	return collectTasks(rows)
}

func (s *Store) CountTasksByStatus(ctx context.Context) (map[string]int64, error) {
	rows, err := s.Pool.Query(ctx, `SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[status] = n
	}
	return out, rows.Err()
}

func (s *Store) AddDependency(ctx context.Context, task, dependsOn string) error {
	if task == "" || dependsOn == "" {
		return errors.New("task and depends_on keys required")
	}
	if task == dependsOn {
		return fmt.Errorf("task %s cannot depend on itself", task)
	}
	_, err := s.Pool.Exec(ctx, `INSERT INTO dependencies(task_key, depends_on, created_at) VALUES($1, $2, $3) ON CONFLICT (task_key, depends_on) DO NOTHING`,
		task, dependsOn, time.Now().UTC().Unix())
	return err
}

func (s *Store) RemoveDependency(ctx context.Context, task, dependsOn string) error {
	if task == "" || dependsOn == "" {
		return errors.New("task and depends_on keys required")
	}
	_, err := s.Pool.Exec(ctx, `DELETE FROM dependencies WHERE task_key = $1 AND depends_on = $2`, task, dependsOn)
	return err
}

func (s *Store) ListDependencies(ctx context.Context, task string) ([]string, error) {
	if task == "" {
		return nil, errors.New("task key required")
	}
	rows, err := s.Pool.Query(ctx, `SELECT depends_on FROM dependencies WHERE task_key = $1 ORDER BY depends_on ASC`, task)
	if err != nil {
		return nil, err
	}
	return collectStrings(rows)
}

func (s *Store) AllDependencies(ctx context.Context) (map[string][]string, error) {
	rows, err := s.Pool.Query(ctx, `SELECT task_key, depends_on FROM dependencies ORDER BY task_key, depends_on ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string][]string)
	for rows.Next() {
		var task, dep string
		if err := rows.Scan(&task, &dep); err != nil {
			return nil, err
		}
		out[task] = append(out[task], dep)
	}
	return out, rows.Err()
}

func (s *Store) ListDependents(ctx context.Context, dependsOn string) ([]string, error) {
	if dependsOn == "" {
		return nil, errors.New("depends_on key required")
	}
	rows, err := s.Pool.Query(ctx, `SELECT task_key FROM dependencies WHERE depends_on = $1 ORDER BY task_key ASC`, dependsOn)
	if err != nil {
		return nil, err
	}
	return collectStrings(rows)
}

const sessionColumns = `session_id, member, task_key, tool, status, started_at, completed_at`

func (s *Store) CreateSession(ctx context.Context, sess store.Session) error {
	if sess.SessionID == "" || sess.Member == "" || sess.TaskKey == "" {
		return errors.New("session_id, member, and task required")
	}
	if sess.Status == "" {
		sess.Status = models.SessionActive
	}
	if sess.StartedAt.IsZero() {
		sess.StartedAt = time.Now().UTC()
	}
	_, err := s.Pool.Exec(ctx, `INSERT INTO sessions(session_id, member, task_key, tool, status, started_at, completed_at) VALUES($1, $2, $3, $4, $5, $6, NULL)`,
		sess.SessionID, sess.Member, sess.TaskKey, sess.Tool, sess.Status, sess.StartedAt.Unix())
	return err
}

func (s *Store) CloseSession(ctx context.Context, sessionID, status string) error {
	if sessionID == "" {
		return errors.New("session_id required")
	}
	if !models.ValidSessionClose(status) {
		return fmt.Errorf("invalid terminal session status %q for session %s", status, sessionID)
	}
	tag, err := s.Pool.Exec(ctx, `UPDATE sessions SET status=$1, completed_at=$2 WHERE session_id=$3`,
		status, time.Now().UTC().Unix(), sessionID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("session not found: %s", sessionID)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (*store.Session, error) {
	if sessionID == "" {
		return nil, errors.New("session_id required")
	}
	row := s.Pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE session_id = $1`, sessionID)
	sess, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return sess, err
}

func (s *Store) ListSessions(ctx context.Context, limit int) ([]store.Session, error) {
	if limit <= 0 {
		limit = models.DefaultSessionListLimit
	}
	rows, err := s.Pool.Query(ctx, `SELECT `+sessionColumns+` FROM sessions ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return collectSessions(rows)
}

func (s *Store) ListSessionsByMember(ctx context.Context, member string, limit int) ([]store.Session, error) {
	if limit <= 0 {
		limit = models.DefaultSessionListLimit
	}
	rows, err := s.Pool.Query(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE member = $1 ORDER BY started_at DESC LIMIT $2`, member, limit)
	if err != nil {
		return nil, err
	}
	return collectSessions(rows)
}

func (s *Store) ListSessionsByStatus(ctx context.Context, status string, limit int) ([]store.Session, error) {
	if limit <= 0 {
		limit = models.DefaultSessionListLimit
	}
	rows, err := s.Pool.Query(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE status = $1 ORDER BY started_at DESC LIMIT $2`, status, limit)
	if err != nil {
		return nil, err
	}
	return collectSessions(rows)
}

func (s *Store) ListSessionsForTask(ctx context.Context, task string, since time.Time) ([]store.Session, error) {
	if task == "" {
		return nil, errors.New("task key required")
	}
	rows, err := s.Pool.Query(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE task_key = $1 AND started_at >= $2 ORDER BY started_at DESC`, task, since.Unix())
	if err != nil {
		return nil, err
	}
	return collectSessions(rows)
}

const checkpointColumns = `session_id, created_at, kind, reason, branch, commit_sha, committed, dir, stamp`

func (s *Store) RecordCheckpoint(ctx context.Context, c store.Checkpoint) error {
	if c.SessionID == "" || c.Dir == "" || c.Stamp == "" {
		return errors.New("session_id, dir, and stamp required")
	}
	if c.Kind != models.CheckpointAuto && c.Kind != models.CheckpointManual {
		return fmt.Errorf("invalid checkpoint kind %q", c.Kind)
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	committed := 0
	if c.Committed {
		committed = 1
	}
	_, err := s.Pool.Exec(ctx, `INSERT INTO checkpoints(session_id, created_at, kind, reason, branch, commit_sha, committed, dir, stamp) VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		c.SessionID, c.CreatedAt.UnixNano(), c.Kind, c.Reason, c.Branch, c.CommitSHA, committed, c.Dir, c.Stamp)
	return err
}

func (s *Store) LatestCheckpoint(ctx context.Context, sessionID string) (*store.Checkpoint, error) {
	if sessionID == "" {
		return nil, errors.New("session_id required")
	}
	row := s.Pool.QueryRow(ctx, `SELECT `+checkpointColumns+` FROM checkpoints WHERE session_id = $1 ORDER BY created_at DESC LIMIT 1`, sessionID)
	c, err := scanCheckpoint(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

func (s *Store) ListCheckpoints(ctx context.Context, sessionID string) ([]store.Checkpoint, error) {
	if sessionID == "" {
		return nil, errors.New("session_id required")
	}
	rows, err := s.Pool.Query(ctx, `SELECT `+checkpointColumns+` FROM checkpoints WHERE session_id = $1 ORDER BY created_at ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []store.Checkpoint
	for rows.Next() {
		c, err := scanCheckpoint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (s *Store) Snapshot(ctx context.Context) (*store.StateDocument, error) {
	deps, err := s.AllDependencies(ctx)
	if err != nil {
		return nil, err
	}
	tasks, err := s.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	doc := &store.StateDocument{
		Dependencies:  deps,
		Tasks:         make(map[string]store.TaskDocument, len(tasks)),
		LastUpdated:   time.Now().UTC().Format(time.RFC3339),
		SchemaVersion: models.SchemaVersion,
	}
	for _, t := range tasks {
		doc.Tasks[t.Key] = store.TaskDocument{
			Status:  t.Status,
			Agent:   deref(t.Agent),
			Session: deref(t.SessionID),
			Member:  deref(t.Member),
			Updated: t.UpdatedAt.Format(time.RFC3339),
		}
	}
	return doc, nil
}

func (s *Store) Restore(ctx context.Context, doc *store.StateDocument) error {
	if doc == nil {
		return errors.New("state document required")
	}
	if doc.SchemaVersion != "" && doc.SchemaVersion != models.SchemaVersion {
		return fmt.Errorf("unsupported schema_version %q (want %s)", doc.SchemaVersion, models.SchemaVersion)
	}
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM dependencies`); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM tasks`); err != nil {
		return err
	}
	now := time.Now().UTC().Unix()
	for task, deps := range doc.Dependencies {
		for _, dep := range deps {
			if task == dep {
				return fmt.Errorf("state document: task %s depends on itself", task)
			}
			if _, err := tx.Exec(ctx, `INSERT INTO dependencies(task_key, depends_on, created_at) VALUES($1, $2, $3) ON CONFLICT (task_key, depends_on) DO NOTHING`, task, dep, now); err != nil {
				return err
			}
		}
	}
	for key, t := range doc.Tasks {
		if !models.ValidTaskStatus(t.Status) {
			return fmt.Errorf("state document: invalid status %q for task %s", t.Status, key)
		}
		updated := now
		if t.Updated != "" {
			if ts, err := time.Parse(time.RFC3339, t.Updated); err == nil {
				updated = ts.Unix()
			}
		}
		if _, err := tx.Exec(ctx, `INSERT INTO tasks(task_key, status, agent, session_id, member, updated_at) VALUES($1, $2, $3, $4, $5, $6)`,
			key, t.Status, nilIfEmpty(t.Agent), nilIfEmpty(t.Session), nilIfEmpty(t.Member), updated); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(r rowScanner) (*store.Task, error) {
	var t store.Task
	var updated int64
	if err := r.Scan(&t.Key, &t.Status, &t.Agent, &t.SessionID, &t.Member, &updated); err != nil {
		return nil, err
	}
	t.UpdatedAt = time.Unix(updated, 0).UTC()
	return &t, nil
}

func collectTasks(rows pgx.Rows) ([]store.Task, error) {
	defer rows.Close()
	var out []store.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func scanSession(r rowScanner) (*store.Session, error) {
	var sess store.Session
	var started int64
	var completed *int64
	if err := r.Scan(&sess.SessionID, &sess.Member, &sess.TaskKey, &sess.Tool, &sess.Status, &started, &completed); err != nil {
		return nil, err
	}
	sess.StartedAt = time.Unix(started, 0).UTC()
	if completed != nil {
		t := time.Unix(*completed, 0).UTC()
		sess.CompletedAt = &t
	}
	return &sess, nil
}

func collectSessions(rows pgx.Rows) ([]store.Session, error) {
	defer rows.Close()
	var out []store.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func scanCheckpoint(r rowScanner) (*store.Checkpoint, error) {
	var c store.Checkpoint
	var created int64
	var committed int
	if err := r.Scan(&c.SessionID, &created, &c.Kind, &c.Reason, &c.Branch, &c.CommitSHA, &committed, &c.Dir, &c.Stamp); err != nil {
		return nil, err
	}
	c.CreatedAt = time.Unix(0, created).UTC()
	c.Committed = committed != 0
	return &c, nil
}

func collectStrings(rows pgx.Rows) ([]string, error) {
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
