package workload

import (
	"context"
	"testing"

	"github.com/ankittk/coord/internal/store"
	"github.com/ankittk/coord/pkg/models"
)

func newCoordinator(t *testing.T, pool ...string) (*Coordinator, store.Store) {
	t.Helper()
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return &Coordinator{Store: st, Pool: pool}, st
}

func ptr(s string) *string { return &s }

func TestReportImbalanceAndIdle(t *testing.T) {
	t.Parallel()
	c, st := newCoordinator(t, "dev-1", "dev-2")
	ctx := context.Background()

	_ = st.UpsertTaskStatus(ctx, "t1", models.StatusInProgress, nil, nil, ptr("dev-1"))
	_ = st.UpsertTaskStatus(ctx, "t2", models.StatusPending, nil, nil, ptr("dev-1"))

	rep, err := c.Report(ctx)
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if len(rep.Members) != 2 {
		t.Fatalf("members: got %+v", rep.Members)
	}
	if rep.Imbalance != 2 {
		t.Fatalf("imbalance: got %d, want 2", rep.Imbalance)
	}
	if len(rep.Idle) != 1 || rep.Idle[0] != "dev-2" {
		t.Fatalf("idle: got %v, want [dev-2]", rep.Idle)
	}
}

func TestReportExcludesCompleted(t *testing.T) {
	t.Parallel()
	c, st := newCoordinator(t, "dev-1")
	ctx := context.Background()

	_ = st.UpsertTaskStatus(ctx, "t1", models.StatusCompleted, nil, nil, ptr("dev-1"))
	_ = st.UpsertTaskStatus(ctx, "t2", models.StatusPaused, nil, nil, ptr("dev-1"))

	rep, err := c.Report(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Members[0].Assigned != 1 {
		t.Fatalf("assigned: got %d, want 1 (completed excluded, paused counted)", rep.Members[0].Assigned)
	}
}

func TestReportIncludesUnconfiguredMembers(t *testing.T) {
	t.Parallel()
	c, st := newCoordinator(t, "dev-1")
	ctx := context.Background()

	// Observed on a task but not in the configured pool.
	_ = st.UpsertTaskStatus(ctx, "t1", models.StatusInProgress, nil, nil, ptr("guest"))

	rep, err := c.Report(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Members) != 2 {
		t.Fatalf("members: got %+v, want dev-1 and guest", rep.Members)
	}
}

func TestReportOverloaded(t *testing.T) {
	t.Parallel()
	c, st := newCoordinator(t, "dev-1", "dev-2", "dev-3")
	ctx := context.Background()

	// dev-1 carries 4, the others 0: mean ~1.33, threshold 2 flags dev-1.
	for _, k := range []string{"t1", "t2", "t3", "t4"} {
		_ = st.UpsertTaskStatus(ctx, k, models.StatusInProgress, nil, nil, ptr("dev-1"))
	}

	rep, err := c.Report(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Overloaded) != 1 || rep.Overloaded[0] != "dev-1" {
		t.Fatalf("overloaded: got %v", rep.Overloaded)
	}
	if rep.Imbalance != 4 {
		t.Fatalf("imbalance: got %d", rep.Imbalance)
	}
}

func TestReportEmpty(t *testing.T) {
	t.Parallel()
	c, _ := newCoordinator(t)
	rep, err := c.Report(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Members) != 0 || rep.Imbalance != 0 {
		t.Fatalf("empty report: got %+v", rep)
	}
}

func TestMemberTasks(t *testing.T) {
	t.Parallel()
	c, st := newCoordinator(t, "dev-1")
	ctx := context.Background()

	_ = st.UpsertTaskStatus(ctx, "t1", models.StatusInProgress, nil, nil, ptr("dev-1"))
	_ = st.UpsertTaskStatus(ctx, "t2", models.StatusCompleted, nil, nil, ptr("dev-1"))

	tasks, err := c.MemberTasks(ctx, "dev-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 1 || tasks[0].Key != "t1" {
		t.Fatalf("MemberTasks: got %+v", tasks)
	}
}
