package delegate

import (
	"context"
	"strings"
	"testing"

	"github.com/ankittk/coord/internal/store"
)

func TestProbeFull(t *testing.T) {
	t.Parallel()
	home := t.TempDir()
	st, err := store.Open(home)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = st.Close() }()

	s := Probe(context.Background(), st, home)
	if s.Name() != "full" || !s.Checkpointing() {
		t.Fatalf("Probe healthy: got %s", s.Name())
	}
	if DegradedReason(s) != "" {
		t.Fatalf("full strategy has a degraded reason: %s", DegradedReason(s))
	}
}

func TestProbeDegradedOnClosedStore(t *testing.T) {
	t.Parallel()
	home := t.TempDir()
	st, err := store.Open(home)
	if err != nil {
		t.Fatal(err)
	}
	_ = st.Close()

	s := Probe(context.Background(), st, home)
	if s.Name() != "degraded" || s.Checkpointing() {
		t.Fatalf("Probe on closed store: got %s", s.Name())
	}
	if !strings.Contains(DegradedReason(s), "store unreachable") {
		t.Fatalf("degraded reason: got %q", DegradedReason(s))
	}
}

func TestDegradedCarriesReason(t *testing.T) {
	t.Parallel()
	s := Degraded("checkpoint dir not writable: boom")
	if DegradedReason(s) != "checkpoint dir not writable: boom" {
		t.Fatalf("reason: got %q", DegradedReason(s))
	}
}
