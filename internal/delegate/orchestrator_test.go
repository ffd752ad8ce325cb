package delegate

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ankittk/coord/internal/session"
	"github.com/ankittk/coord/internal/store"
	"github.com/ankittk/coord/pkg/models"
)

func newOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	home := t.TempDir()
	st, err := store.Open(home)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return &Orchestrator{
		Home:     home,
		Store:    st,
		Sessions: &session.Registry{Store: st},
	}
}

func TestDelegateHappyPath(t *testing.T) {
	t.Parallel()
	o := newOrchestrator(t)
	ctx := context.Background()

	sum, err := o.Delegate(ctx, Request{Task: "auth-task-1", Member: "dev-1", Tool: "editor"})
	if err != nil {
		t.Fatalf("Delegate: %v", err)
	}
	if sum.Mode != "full" {
		t.Fatalf("mode: got %s (%s)", sum.Mode, sum.ModeReason)
	}
	if sum.SessionID == "" {
		t.Fatal("expected a session id")
	}

	rec, _ := o.Store.GetTask(ctx, "auth-task-1")
	if rec == nil || rec.Status != models.StatusInProgress {
		t.Fatalf("task after delegate: got %+v", rec)
	}
	if rec.Member == nil || *rec.Member != "dev-1" {
		t.Fatalf("task member: got %+v", rec.Member)
	}

	sess, _ := o.Store.GetSession(ctx, sum.SessionID)
	if sess == nil || sess.Status != models.SessionActive || sess.TaskKey != "auth-task-1" {
		t.Fatalf("session: got %+v", sess)
	}
}

func TestDelegateDefaultsToSolo(t *testing.T) {
	t.Parallel()
	o := newOrchestrator(t)

	sum, err := o.Delegate(context.Background(), Request{Task: "auth-task-1"})
	if err != nil {
		t.Fatal(err)
	}
	if sum.Member != models.SoloMember {
		t.Fatalf("member: got %s, want solo", sum.Member)
	}
}

func TestDelegateRefusesUnmetDependencies(t *testing.T) {
	t.Parallel()
	o := newOrchestrator(t)
	ctx := context.Background()

	if err := o.Store.AddDependency(ctx, "auth-task-2", "auth-task-1"); err != nil {
		t.Fatal(err)
	}

	sum, err := o.Delegate(ctx, Request{Task: "auth-task-2", Member: "dev-1"})
	if err == nil {
		t.Fatal("expected unmet-dependency error")
	}
	if !strings.Contains(err.Error(), "auth-task-1") {
		t.Fatalf("error should name the unmet dependency: %v", err)
	}
	if len(sum.UnmetDeps) != 1 || sum.UnmetDeps[0] != "auth-task-1" {
		t.Fatalf("unmet deps: got %v", sum.UnmetDeps)
	}
	// Task must not be touched on refusal.
	rec, _ := o.Store.GetTask(ctx, "auth-task-2")
	if rec != nil {
		t.Fatalf("refused delegation wrote a status: %+v", rec)
	}
}

func TestDelegateForceOverridesWithWarning(t *testing.T) {
	t.Parallel()
	o := newOrchestrator(t)
	ctx := context.Background()

	_ = o.Store.AddDependency(ctx, "auth-task-2", "auth-task-1")

	sum, err := o.Delegate(ctx, Request{Task: "auth-task-2", Member: "dev-1", Force: true})
	if err != nil {
		t.Fatalf("Delegate --force: %v", err)
	}
	found := false
	for _, w := range sum.Warnings {
		if strings.Contains(w, "unmet dependencies") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected unmet-dependency warning, got %v", sum.Warnings)
	}
	rec, _ := o.Store.GetTask(ctx, "auth-task-2")
	if rec == nil || rec.Status != models.StatusInProgress {
		t.Fatalf("task after forced delegate: got %+v", rec)
	}
}

func TestDelegateCompletedDependencySatisfies(t *testing.T) {
	t.Parallel()
	o := newOrchestrator(t)
	ctx := context.Background()

	_ = o.Store.AddDependency(ctx, "auth-task-2", "auth-task-1")
	_ = o.Store.UpsertTaskStatus(ctx, "auth-task-1", models.StatusCompleted, nil, nil, nil)

	sum, err := o.Delegate(ctx, Request{Task: "auth-task-2", Member: "dev-1"})
	if err != nil {
		t.Fatalf("Delegate: %v", err)
	}
	if len(sum.UnmetDeps) != 0 {
		t.Fatalf("unmet deps: got %v", sum.UnmetDeps)
	}
}

func TestDelegateLoadsSpecs(t *testing.T) {
	t.Parallel()
	o := newOrchestrator(t)
	ctx := context.Background()

	specDir := filepath.Join(o.Home, "specs", "auth")
	if err := os.MkdirAll(specDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(specDir, "design.md"), []byte("# auth\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	sum, err := o.Delegate(ctx, Request{Task: "auth-task-1", Member: "dev-1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(sum.SpecsLoaded) != 1 || !strings.HasSuffix(sum.SpecsLoaded[0], "design.md") {
		t.Fatalf("specs loaded: got %v", sum.SpecsLoaded)
	}
}

func TestDelegateWarnsOnMissingSpecs(t *testing.T) {
	t.Parallel()
	o := newOrchestrator(t)

	sum, err := o.Delegate(context.Background(), Request{Task: "auth-task-1", Member: "dev-1"})
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, w := range sum.Warnings {
		if strings.Contains(w, "no specification artifacts") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected missing-specs warning, got %v", sum.Warnings)
	}
}

func TestDelegateRequiresTask(t *testing.T) {
	t.Parallel()
	o := newOrchestrator(t)
	if _, err := o.Delegate(context.Background(), Request{}); err == nil {
		t.Fatal("expected error without task")
	}
}

func TestFeatureOf(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"auth-task-1":     "auth",
		"auth-task-12":    "auth",
		"api-v2-task-3":   "api-v2",
		"standalone":      "standalone",
		"weird-task-":     "weird",
		"-task-1":         "-task-1",
	}
	for in, want := range cases {
		if got := FeatureOf(in); got != want {
			t.Errorf("FeatureOf(%q) = %q, want %q", in, got, want)
		}
	}
}
