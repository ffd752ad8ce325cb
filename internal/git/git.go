// Package git wraps the git binary for the repository operations the
// checkpoint manager needs: change detection, diff capture, commit, and
// history for continuation instructions.
package git

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

func run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

// StatusPorcelain returns `git status --porcelain` output for dir.
func StatusPorcelain(ctx context.Context, dir string) (string, error) {
	out, err := run(ctx, dir, "status", "--porcelain")
	if err != nil {
		return "", err
	}
	return strings.TrimRight(out, "\n"), nil
}

// HasUncommittedChanges reports whether the working tree at dir has local
// modifications (staged or not).
func HasUncommittedChanges(ctx context.Context, dir string) (bool, error) {
	out, err := StatusPorcelain(ctx, dir)
	if err != nil {
		return false, err
	}
	return out != "", nil
}

// Diff returns the working-tree diff for dir (unstaged and staged combined
// against HEAD). Empty string when the tree is clean.
func Diff(ctx context.Context, dir string) (string, error) {
	return run(ctx, dir, "diff", "HEAD")
}

// CommitAll stages everything and commits with the given message. Returns the
// new commit SHA.
func CommitAll(ctx context.Context, dir, message string) (string, error) {
	if message == "" {
		return "", fmt.Errorf("commit message required")
	}
	if _, err := run(ctx, dir, "add", "-A"); err != nil {
		return "", err
	}
	if _, err := run(ctx, dir, "commit", "-m", message); err != nil {
		return "", err
	}
	return HeadSHA(ctx, dir)
}

// CurrentBranch returns the checked-out branch name; empty on detached HEAD.
func CurrentBranch(ctx context.Context, dir string) (string, error) {
	out, err := run(ctx, dir, "branch", "--show-current")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// HeadSHA returns the commit SHA of HEAD.
func HeadSHA(ctx context.Context, dir string) (string, error) {
	out, err := run(ctx, dir, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// RecentLog returns the last n `git log --oneline` entries for orientation in
// continuation instructions.
func RecentLog(ctx context.Context, dir string, n int) ([]string, error) {
	if n <= 0 {
		n = 5
	}
	out, err := run(ctx, dir, "log", "--oneline", "-n", strconv.Itoa(n))
	if err != nil {
		return nil, err
	}
	var lines []string
	for _, l := range strings.Split(strings.TrimRight(out, "\n"), "\n") {
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines, nil
}

// LastCommitMessage returns the subject of the most recent commit.
func LastCommitMessage(ctx context.Context, dir string) (string, error) {
	out, err := run(ctx, dir, "log", "-1", "--pretty=%s")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Init initializes a repository at dir. Used by tests.
func Init(ctx context.Context, dir string) error {
	if _, err := run(ctx, dir, "init"); err != nil {
		return err
	}
	// Commits need an identity; set a repo-local one if none is configured.
	if _, err := run(ctx, dir, "config", "user.email", "coord@localhost"); err != nil {
		return err
	}
	_, err := run(ctx, dir, "config", "user.name", "coord")
	return err
}
