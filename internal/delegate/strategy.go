package delegate

import (
	"context"
	"os"

	"github.com/ankittk/coord/internal/config"
	"github.com/ankittk/coord/internal/store"
)

// CoordinationStrategy describes how much of the coordination subsystem is
// available to a delegation. Full mode checkpoints automatically; degraded
// mode records status only and relies on version-control commits for
// durability. The mode is always explicit in the delegation summary.
type CoordinationStrategy interface {
	Name() string
	// Checkpointing reports whether automatic checkpoints are taken.
	Checkpointing() bool
}

type fullStrategy struct{}

func (fullStrategy) Name() string        { return "full" }
func (fullStrategy) Checkpointing() bool { return true }

type degradedStrategy struct{ reason string }

func (degradedStrategy) Name() string        { return "degraded" }
func (degradedStrategy) Checkpointing() bool { return false }

// Full returns the full-coordination strategy.
func Full() CoordinationStrategy { return fullStrategy{} }

// Degraded returns the reduced strategy with the probe failure that caused it.
func Degraded(reason string) CoordinationStrategy { return degradedStrategy{reason: reason} }

// DegradedReason returns the probe failure behind a degraded strategy, or "".
func DegradedReason(s CoordinationStrategy) string {
	if d, ok := s.(degradedStrategy); ok {
		return d.reason
	}
	return ""
}

// Probe checks that the store is reachable and the checkpoint area is
// writable; any failure selects the degraded strategy rather than aborting,
// so a delegation can still record status.
func Probe(ctx context.Context, st store.Store, home string) CoordinationStrategy {
	if err := st.Ping(ctx); err != nil {
		return Degraded("store unreachable: " + err.Error())
	}
	dir := config.CheckpointDir(home, ".probe")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Degraded("checkpoint dir not writable: " + err.Error())
	}
	probe := dir + "/probe"
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return Degraded("checkpoint dir not writable: " + err.Error())
	}
	_ = os.Remove(probe)
	_ = os.Remove(dir)
	return Full()
}
