package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ankittk/coord/pkg/models"
)

// UpsertTaskStatus overwrites the task's status record with a fresh timestamp.
// The task is created implicitly on first write.
func (s *sqliteStore) UpsertTaskStatus(ctx context.Context, key, status string, agent, session, member *string) error {
	if key == "" {
		return errors.New("task key required")
	}
	if !models.ValidTaskStatus(status) {
		return fmt.Errorf("invalid task status %q for task %s", status, key)
	}
	_, err := s.stmtUpsertTask.ExecContext(ctx, key, status, agent, session, member, time.Now().UTC().Unix())
	return err
}

func (s *sqliteStore) GetTask(ctx context.Context, key string) (*Task, error) {
	if key == "" {
		return nil, errors.New("task key required")
	}
	row := s.stmtGetTask.QueryRowContext(ctx, key)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return t, err
}

func (s *sqliteStore) ListTasks(ctx context.Context) ([]Task, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY task_key ASC`)
	if err != nil {
		return nil, err
	}
	return collectTasks(rows)
}

func (s *sqliteStore) ListTasksByStatus(ctx context.Context, status string) ([]Task, error) {
	rows, err := s.stmtListByStatus.QueryContext(ctx, status)
	if err != nil {
		return nil, err
	}
	return collectTasks(rows)
}

func (s *sqliteStore) ListTasksByMember(ctx context.Context, member string) ([]Task, error) {
	rows, err := s.stmtListByMember.QueryContext(ctx, member)
	if err != nil {
		return nil, err
	}
	return collectTasks(rows)
}

func (s *sqliteStore) CountTasksByStatus(ctx context.Context) (map[string]int64, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
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

// AddDependency inserts dependsOn into task's dependency set. Idempotent:
// duplicates are suppressed. A self-reference is a validation error.
func (s *sqliteStore) AddDependency(ctx context.Context, task, dependsOn string) error {
	if task == "" || dependsOn == "" {
		return errors.New("task and depends_on keys required")
	}
	if task == dependsOn {
		return fmt.Errorf("task %s cannot depend on itself", task)
	}
	_, err := s.stmtAddDep.ExecContext(ctx, task, dependsOn, time.Now().UTC().Unix())
	return err
}

// RemoveDependency deletes the edge if present; removing an absent edge is a no-op.
func (s *sqliteStore) RemoveDependency(ctx context.Context, task, dependsOn string) error {
	if task == "" || dependsOn == "" {
		return errors.New("task and depends_on keys required")
	}
	_, err := s.stmtRemoveDep.ExecContext(ctx, task, dependsOn)
	return err
}

func (s *sqliteStore) ListDependencies(ctx context.Context, task string) ([]string, error) {
	if task == "" {
		return nil, errors.New("task key required")
	}
	rows, err := s.stmtListDeps.QueryContext(ctx, task)
	if err != nil {
		return nil, err
	}
	return collectStrings(rows)
}

func (s *sqliteStore) AllDependencies(ctx context.Context) (map[string][]string, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT task_key, depends_on FROM dependencies ORDER BY task_key, depends_on ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
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

func (s *sqliteStore) ListDependents(ctx context.Context, dependsOn string) ([]string, error) {
	if dependsOn == "" {
		return nil, errors.New("depends_on key required")
	}
	rows, err := s.stmtListDependents.QueryContext(ctx, dependsOn)
	if err != nil {
		return nil, err
	}
	return collectStrings(rows)
}

func (s *sqliteStore) CreateSession(ctx context.Context, sess Session) error {
	if sess.SessionID == "" || sess.Member == "" || sess.TaskKey == "" {
		return errors.New("session_id, member, and task required")
	}
	if sess.Status == "" {
		sess.Status = models.SessionActive
	}
	if sess.StartedAt.IsZero() {
		sess.StartedAt = time.Now().UTC()
	}
	_, err := s.DB.ExecContext(ctx, `INSERT INTO sessions(session_id, member, task_key, tool, status, started_at, completed_at) VALUES(?, ?, ?, ?, ?, ?, NULL)`,
		sess.SessionID, sess.Member, sess.TaskKey, sess.Tool, sess.Status, sess.StartedAt.Unix())
	return err
}

func (s *sqliteStore) CloseSession(ctx context.Context, sessionID, status string) error {
	if sessionID == "" {
		return errors.New("session_id required")
	}
	if !models.ValidSessionClose(status) {
		return fmt.Errorf("invalid terminal session status %q for session %s", status, sessionID)
	}
	res, err := s.DB.ExecContext(ctx, `UPDATE sessions SET status=?, completed_at=? WHERE session_id=?`,
		status, time.Now().UTC().Unix(), sessionID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("session not found: %s", sessionID)
	}
	return nil
}

func (s *sqliteStore) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	if sessionID == "" {
		return nil, errors.New("session_id required")
	}
	row := s.DB.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE session_id = ?`, sessionID)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return sess, err
}

const sessionColumns = `session_id, member, task_key, tool, status, started_at, completed_at`

func (s *sqliteStore) ListSessions(ctx context.Context, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = models.DefaultSessionListLimit
	}
	rows, err := s.DB.QueryContext(ctx, `SELECT `+sessionColumns+` FROM sessions ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	return collectSessions(rows)
}

func (s *sqliteStore) ListSessionsByMember(ctx context.Context, member string, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = models.DefaultSessionListLimit
	}
	rows, err := s.DB.QueryContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE member = ? ORDER BY started_at DESC LIMIT ?`, member, limit)
	if err != nil {
		return nil, err
	}
	return collectSessions(rows)
}

func (s *sqliteStore) ListSessionsByStatus(ctx context.Context, status string, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = models.DefaultSessionListLimit
	}
	rows, err := s.DB.QueryContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE status = ? ORDER BY started_at DESC LIMIT ?`, status, limit)
	if err != nil {
		return nil, err
	}
	return collectSessions(rows)
}

func (s *sqliteStore) ListSessionsForTask(ctx context.Context, task string, since time.Time) ([]Session, error) {
	if task == "" {
		return nil, errors.New("task key required")
	}
	rows, err := s.DB.QueryContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE task_key = ? AND started_at >= ? ORDER BY started_at DESC`, task, since.Unix())
	if err != nil {
		return nil, err
	}
	return collectSessions(rows)
}

func (s *sqliteStore) RecordCheckpoint(ctx context.Context, c Checkpoint) error {
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
	_, err := s.DB.ExecContext(ctx, `INSERT INTO checkpoints(session_id, created_at, kind, reason, branch, commit_sha, committed, dir, stamp) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.SessionID, c.CreatedAt.UnixNano(), c.Kind, c.Reason, c.Branch, c.CommitSHA, committed, c.Dir, c.Stamp)
	return err
}

const checkpointColumns = `session_id, created_at, kind, reason, branch, commit_sha, committed, dir, stamp`

func (s *sqliteStore) LatestCheckpoint(ctx context.Context, sessionID string) (*Checkpoint, error) {
	if sessionID == "" {
		return nil, errors.New("session_id required")
	}
	row := s.DB.QueryRowContext(ctx, `SELECT `+checkpointColumns+` FROM checkpoints WHERE session_id = ? ORDER BY created_at DESC LIMIT 1`, sessionID)
	c, err := scanCheckpoint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

func (s *sqliteStore) ListCheckpoints(ctx context.Context, sessionID string) ([]Checkpoint, error) {
	if sessionID == "" {
		return nil, errors.New("session_id required")
	}
	rows, err := s.DB.QueryContext(ctx, `SELECT `+checkpointColumns+` FROM checkpoints WHERE session_id = ? ORDER BY created_at ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []Checkpoint
	for rows.Next() {
		c, err := scanCheckpoint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// Snapshot exports the dependency graph and task records as a portable state document.
func (s *sqliteStore) Snapshot(ctx context.Context) (*StateDocument, error) {
	deps, err := s.AllDependencies(ctx)
	if err != nil {
		return nil, err
	}
	tasks, err := s.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	doc := &StateDocument{
		Dependencies:  deps,
		Tasks:         make(map[string]TaskDocument, len(tasks)),
		LastUpdated:   time.Now().UTC().Format(time.RFC3339),
		SchemaVersion: models.SchemaVersion,
	}
	for _, t := range tasks {
		doc.Tasks[t.Key] = TaskDocument{
			Status:  t.Status,
			Agent:   deref(t.Agent),
			Session: deref(t.SessionID),
			Member:  deref(t.Member),
			Updated: t.UpdatedAt.Format(time.RFC3339),
		}
	}
	return doc, nil
}

// Restore replaces the dependency graph and task records with the document's
// contents in one transaction. Sessions and checkpoints are untouched.
func (s *sqliteStore) Restore(ctx context.Context, doc *StateDocument) error {
	if doc == nil {
		return errors.New("state document required")
	}
	if doc.SchemaVersion != "" && doc.SchemaVersion != models.SchemaVersion {
		return fmt.Errorf("unsupported schema_version %q (want %s)", doc.SchemaVersion, models.SchemaVersion)
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM dependencies`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks`); err != nil {
		return err
	}
	now := time.Now().UTC().Unix()
	for task, deps := range doc.Dependencies {
		for _, dep := range deps {
			if task == dep {
				return fmt.Errorf("state document: task %s depends on itself", task)
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO dependencies(task_key, depends_on, created_at) VALUES(?, ?, ?) ON CONFLICT(task_key, depends_on) DO NOTHING`, task, dep, now); err != nil {
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
		if _, err := tx.ExecContext(ctx, `INSERT INTO tasks(task_key, status, agent, session_id, member, updated_at) VALUES(?, ?, ?, ?, ?, ?)`,
			key, t.Status, nilIfEmpty(t.Agent), nilIfEmpty(t.Session), nilIfEmpty(t.Member), updated); err != nil {
			return err
		}
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(r rowScanner) (*Task, error) {
	var t Task
	var agent, session, member sql.NullString
	var updated int64
	if err := r.Scan(&t.Key, &t.Status, &agent, &session, &member, &updated); err != nil {
		return nil, err
	}
	t.Agent = fromNull(agent)
	t.SessionID = fromNull(session)
	t.Member = fromNull(member)
	t.UpdatedAt = time.Unix(updated, 0).UTC()
	return &t, nil
}

func collectTasks(rows *sql.Rows) ([]Task, error) {
	defer func() { _ = rows.Close() }()
	var out []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func scanSession(r rowScanner) (*Session, error) {
	var s Session
	var tool sql.NullString
	var started int64
	var completed sql.NullInt64
	if err := r.Scan(&s.SessionID, &s.Member, &s.TaskKey, &tool, &s.Status, &started, &completed); err != nil {
		return nil, err
	}
	s.Tool = fromNull(tool)
	s.StartedAt = time.Unix(started, 0).UTC()
	if completed.Valid {
		t := time.Unix(completed.Int64, 0).UTC()
		s.CompletedAt = &t
	}
	return &s, nil
}

func collectSessions(rows *sql.Rows) ([]Session, error) {
	defer func() { _ = rows.Close() }()
	var out []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func scanCheckpoint(r rowScanner) (*Checkpoint, error) {
	var c Checkpoint
	var reason, branch, sha sql.NullString
	var created int64
	var committed int
	if err := r.Scan(&c.SessionID, &created, &c.Kind, &reason, &branch, &sha, &committed, &c.Dir, &c.Stamp); err != nil {
		return nil, err
	}
	c.CreatedAt = time.Unix(0, created).UTC()
	c.Reason = fromNull(reason)
	c.Branch = fromNull(branch)
	c.CommitSHA = fromNull(sha)
	c.Committed = committed != 0
	return &c, nil
}

func collectStrings(rows *sql.Rows) ([]string, error) {
	defer func() { _ = rows.Close() }()
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

func fromNull(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
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
