package cli

import (
	"bytes"
	"strings"
	"testing"
)

func execute(t *testing.T, home string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd("test")
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(append([]string{"--home", home}, args...))
	err := root.Execute()
	return buf.String(), err
}

func TestNewRootCmd_hasSubcommands(t *testing.T) {
	root := NewRootCmd("test")
	if root == nil {
		t.Fatal("NewRootCmd returned nil")
	}
	names := make(map[string]bool)
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{
		"dep", "status", "list", "cycles", "resolve",
		"session", "conflicts", "workload",
		"checkpoint", "pause", "resume", "delegate",
		"state", "serve", "doctor",
	} {
		if !names[want] {
			t.Errorf("expected subcommand %q", want)
		}
	}
}

func TestNewRootCmd_versionFlag(t *testing.T) {
	root := NewRootCmd("1.2.3")
	if root.Version != "1.2.3" {
		t.Errorf("Version: got %q", root.Version)
	}
}

func TestNewRootCmd_hasHomeFlag(t *testing.T) {
	root := NewRootCmd("")
	if root.PersistentFlags().Lookup("home") == nil {
		t.Fatal("expected --home persistent flag")
	}
}

func TestDepAddListRemove(t *testing.T) {
	home := t.TempDir()

	out, err := execute(t, home, "dep", "add", "auth-task-2", "auth-task-1")
	if err != nil {
		t.Fatalf("dep add: %v", err)
	}
	if !strings.Contains(out, "auth-task-2 now depends on auth-task-1") {
		t.Fatalf("dep add output: %s", out)
	}

	out, err = execute(t, home, "dep", "list", "auth-task-2")
	if err != nil {
		t.Fatalf("dep list: %v", err)
	}
	if !strings.Contains(out, "auth-task-1") || !strings.Contains(out, "unknown") {
		t.Fatalf("dep list output: %s", out)
	}

	if _, err := execute(t, home, "dep", "add", "x", "x"); err == nil {
		t.Fatal("self-dependency should fail")
	}

	out, err = execute(t, home, "dep", "remove", "auth-task-2", "auth-task-1")
	if err != nil {
		t.Fatalf("dep remove: %v", err)
	}
	if !strings.Contains(out, "no longer depends") {
		t.Fatalf("dep remove output: %s", out)
	}
}

func TestDepAddCheckRefusesCycle(t *testing.T) {
	home := t.TempDir()

	if _, err := execute(t, home, "dep", "add", "x", "y"); err != nil {
		t.Fatal(err)
	}
	// Without --check the reverse edge is accepted (lazy detection).
	if _, err := execute(t, home, "dep", "add", "y", "x"); err != nil {
		t.Fatal(err)
	}
	if _, err := execute(t, home, "dep", "remove", "y", "x"); err != nil {
		t.Fatal(err)
	}
	// With --check it is refused up front.
	if _, err := execute(t, home, "dep", "add", "--check", "y", "x"); err == nil {
		t.Fatal("expected cycle refusal with --check")
	}
}

func TestStatusUpdateAndCascade(t *testing.T) {
	home := t.TempDir()

	if _, err := execute(t, home, "dep", "add", "auth-task-2", "auth-task-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := execute(t, home, "status", "update", "auth-task-2", "waiting_for_dependencies"); err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, home, "status", "update", "auth-task-1", "completed")
	if err != nil {
		t.Fatalf("status update: %v", err)
	}
	if !strings.Contains(out, "auth-task-2: waiting_for_dependencies -> pending") {
		t.Fatalf("cascade output: %s", out)
	}

	out, err = execute(t, home, "status", "get", "auth-task-2")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "pending") {
		t.Fatalf("status get output: %s", out)
	}

	if _, err := execute(t, home, "status", "update", "t", "bogus"); err == nil {
		t.Fatal("invalid status should fail")
	}
}

func TestStatusGetUnknown(t *testing.T) {
	home := t.TempDir()
	out, err := execute(t, home, "status", "get", "ghost")
	if err != nil {
		t.Fatalf("status get: %v", err)
	}
	if !strings.Contains(out, "unknown") {
		t.Fatalf("expected unknown sentinel, got: %s", out)
	}
}

func TestCyclesCommand(t *testing.T) {
	home := t.TempDir()

	out, err := execute(t, home, "cycles")
	if err != nil {
		t.Fatalf("cycles on empty graph: %v", err)
	}
	if !strings.Contains(out, "no cycles") {
		t.Fatalf("cycles output: %s", out)
	}

	_, _ = execute(t, home, "dep", "add", "x", "y")
	_, _ = execute(t, home, "dep", "add", "y", "x")
	out, err = execute(t, home, "cycles")
	if err == nil {
		t.Fatal("cycles should exit non-zero when cycles exist")
	}
	if !strings.Contains(out, "cycle: ") {
		t.Fatalf("cycles output: %s", out)
	}
}

func TestSessionLifecycleAndConflicts(t *testing.T) {
	home := t.TempDir()

	out, err := execute(t, home, "session", "start", "auth-task-1", "--id", "s1", "--member", "dev-1")
	if err != nil {
		t.Fatalf("session start: %v", err)
	}
	if !strings.Contains(out, "session s1 started") {
		t.Fatalf("session start output: %s", out)
	}

	out, err = execute(t, home, "conflicts", "auth-task-1")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "no conflict") {
		t.Fatalf("conflicts output: %s", out)
	}

	// A second member on the same task triggers the advisory warning.
	out, err = execute(t, home, "session", "start", "auth-task-1", "--id", "s2", "--member", "dev-2")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "coordination conflict") {
		t.Fatalf("expected conflict warning, got: %s", out)
	}

	out, err = execute(t, home, "session", "list")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "s1") || !strings.Contains(out, "s2") {
		t.Fatalf("session list output: %s", out)
	}

	if _, err := execute(t, home, "session", "end", "s1"); err != nil {
		t.Fatalf("session end: %v", err)
	}
	if _, err := execute(t, home, "session", "end", "missing"); err == nil {
		t.Fatal("ending an unknown session should fail")
	}
	if _, err := execute(t, home, "session", "end", "s2", "--status", "nope"); err == nil {
		t.Fatal("invalid terminal status should fail")
	}
}

func TestWorkloadCommand(t *testing.T) {
	home := t.TempDir()

	_, _ = execute(t, home, "status", "update", "t1", "in_progress", "--member", "dev-1")
	_, _ = execute(t, home, "status", "update", "t2", "pending", "--member", "dev-1")

	out, err := execute(t, home, "workload")
	if err != nil {
		t.Fatalf("workload: %v", err)
	}
	if !strings.Contains(out, "dev-1\t2") {
		t.Fatalf("workload output: %s", out)
	}

	out, err = execute(t, home, "workload", "--member", "dev-1")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "t1") || !strings.Contains(out, "t2") {
		t.Fatalf("member workload output: %s", out)
	}
}

func TestDelegateCommand(t *testing.T) {
	home := t.TempDir()

	out, err := execute(t, home, "delegate", "auth-task-1", "--member", "dev-1", "--json")
	if err != nil {
		t.Fatalf("delegate: %v", err)
	}
	if !strings.Contains(out, `"mode": "full"`) {
		t.Fatalf("delegate output: %s", out)
	}

	// Unmet dependency refuses without --force.
	_, _ = execute(t, home, "dep", "add", "auth-task-2", "x")
	if _, err := execute(t, home, "delegate", "auth-task-2"); err == nil {
		t.Fatal("expected unmet-dependency refusal")
	}
	if _, err := execute(t, home, "delegate", "auth-task-2", "--force"); err != nil {
		t.Fatalf("delegate --force: %v", err)
	}
}

func TestStateExportImport(t *testing.T) {
	home := t.TempDir()

	_, _ = execute(t, home, "status", "update", "t1", "completed")
	_, _ = execute(t, home, "dep", "add", "t2", "t1")

	exportPath := home + "/state.json"
	if _, err := execute(t, home, "state", "export", "--out", exportPath); err != nil {
		t.Fatalf("state export: %v", err)
	}

	home2 := t.TempDir()
	out, err := execute(t, home2, "state", "import", exportPath)
	if err != nil {
		t.Fatalf("state import: %v", err)
	}
	if !strings.Contains(out, "state imported") {
		t.Fatalf("import output: %s", out)
	}
	got, err := execute(t, home2, "status", "get", "t1")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "completed") {
		t.Fatalf("imported task status: %s", got)
	}
}

func TestPauseRequiresReason(t *testing.T) {
	home := t.TempDir()
	if _, err := execute(t, home, "pause", "s1", "--task", "t1"); err == nil {
		t.Fatal("pause without --reason should fail")
	}
}

func TestResumeWithoutCheckpointFails(t *testing.T) {
	home := t.TempDir()
	if _, err := execute(t, home, "resume", "ghost"); err == nil {
		t.Fatal("resume without checkpoint should fail")
	}
}
