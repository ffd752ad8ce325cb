package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func initRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not on PATH")
	}
	dir := t.TempDir()
	if err := Init(context.Background(), dir); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return dir
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestCommitAndStatus(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := initRepo(t)

	dirty, err := HasUncommittedChanges(ctx, dir)
	if err != nil {
		t.Fatalf("HasUncommittedChanges: %v", err)
	}
	if dirty {
		t.Fatal("fresh repo should be clean")
	}

	writeFile(t, dir, "a.txt", "hello\n")
	dirty, err = HasUncommittedChanges(ctx, dir)
	if err != nil {
		t.Fatal(err)
	}
	if !dirty {
		t.Fatal("expected uncommitted changes after writing a file")
	}

	sha, err := CommitAll(ctx, dir, "add a.txt")
	if err != nil {
		t.Fatalf("CommitAll: %v", err)
	}
	if len(sha) < 7 {
		t.Fatalf("CommitAll sha: got %q", sha)
	}

	dirty, _ = HasUncommittedChanges(ctx, dir)
	if dirty {
		t.Fatal("repo should be clean after commit")
	}

	head, err := HeadSHA(ctx, dir)
	if err != nil {
		t.Fatalf("HeadSHA: %v", err)
	}
	if head != sha {
		t.Fatalf("HeadSHA: got %s, want %s", head, sha)
	}

	msg, err := LastCommitMessage(ctx, dir)
	if err != nil {
		t.Fatalf("LastCommitMessage: %v", err)
	}
	if msg != "add a.txt" {
		t.Fatalf("LastCommitMessage: got %q", msg)
	}
}

func TestDiffAgainstHead(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := initRepo(t)

	writeFile(t, dir, "a.txt", "one\n")
	if _, err := CommitAll(ctx, dir, "initial"); err != nil {
		t.Fatal(err)
	}

	writeFile(t, dir, "a.txt", "two\n")
	diff, err := Diff(ctx, dir)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if !strings.Contains(diff, "-one") || !strings.Contains(diff, "+two") {
		t.Fatalf("Diff content: got %q", diff)
	}
}

func TestRecentLog(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := initRepo(t)

	writeFile(t, dir, "a.txt", "1\n")
	if _, err := CommitAll(ctx, dir, "first"); err != nil {
		t.Fatal(err)
	}
	writeFile(t, dir, "a.txt", "2\n")
	if _, err := CommitAll(ctx, dir, "second"); err != nil {
		t.Fatal(err)
	}

	lines, err := RecentLog(ctx, dir, 5)
	if err != nil {
		t.Fatalf("RecentLog: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("RecentLog: got %d lines, want 2", len(lines))
	}
	if !strings.Contains(lines[0], "second") {
		t.Fatalf("RecentLog order: got %q first", lines[0])
	}
}

func TestCommitAllRequiresMessage(t *testing.T) {
	t.Parallel()
	dir := initRepo(t)
	if _, err := CommitAll(context.Background(), dir, ""); err == nil {
		t.Fatal("expected error for empty commit message")
	}
}

func TestErrorsIncludeGitOutput(t *testing.T) {
	t.Parallel()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not on PATH")
	}
	// Not a repository: the wrapped error should carry git's stderr.
	_, err := HeadSHA(context.Background(), t.TempDir())
	if err == nil {
		t.Fatal("expected error outside a repository")
	}
	if !strings.Contains(err.Error(), "git rev-parse HEAD") {
		t.Fatalf("error should name the command: %v", err)
	}
}
