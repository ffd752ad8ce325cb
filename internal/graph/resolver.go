// Package graph implements the readiness cascade and cycle detection over the
// dependency relation held in the store.
package graph

import (
	"context"
	"fmt"
	"sort"

	"github.com/ankittk/coord/internal/otel"
	"github.com/ankittk/coord/internal/store"
	"github.com/ankittk/coord/pkg/models"
)

// Transition records one task moved by the cascade.
type Transition struct {
	Task string
	From string
	To   string
}

// Resolver cascades readiness when tasks complete and detects dependency cycles.
type Resolver struct {
	Store store.Store
}

// UpdateStatus writes the status record and, when the new status is
// completed, runs the one-hop readiness cascade over direct dependents.
// Returns the cascade transitions (empty for non-completing updates).
func (r *Resolver) UpdateStatus(ctx context.Context, task, status string, agent, session, member *string) ([]Transition, error) {
	if err := r.Store.UpsertTaskStatus(ctx, task, status, agent, session, member); err != nil {
		return nil, err
	}
	otel.RecordStatusUpdate(ctx, status)
	if status != models.StatusCompleted {
		return nil, nil
	}
	transitions, err := r.TaskCompleted(ctx, task)
	otel.RecordCascade(ctx, len(transitions))
	return transitions, err
}

// TaskCompleted re-checks every direct dependent of the completed task: a
// dependent waiting on dependencies becomes pending once all of its
// dependencies are completed. The cascade is one hop deep; a dependent
// becoming pending is not a completion event, so transitive dependents are
// only re-checked when their own prerequisites later complete (or via ResolveAll).
func (r *Resolver) TaskCompleted(ctx context.Context, task string) ([]Transition, error) {
	dependents, err := r.Store.ListDependents(ctx, task)
	if err != nil {
		return nil, err
	}
	var out []Transition
	for _, dep := range dependents {
		tr, err := r.promoteIfReady(ctx, dep)
		if err != nil {
			return out, err
		}
		if tr != nil {
			out = append(out, *tr)
		}
	}
	return out, nil
}

// ResolveTask re-runs the readiness check for a single task regardless of
// what event triggered it (the `resolve <task>` verb).
func (r *Resolver) ResolveTask(ctx context.Context, task string) ([]Transition, error) {
	tr, err := r.promoteIfReady(ctx, task)
	if err != nil {
		return nil, err
	}
	if tr == nil {
		return nil, nil
	}
	return []Transition{*tr}, nil
}

// ResolveAll sweeps every waiting task to a fixpoint: any task whose
// dependencies are all completed becomes pending, repeatedly, until no task
// changes. This is the explicit transitive variant of the cascade.
func (r *Resolver) ResolveAll(ctx context.Context) ([]Transition, error) {
	var out []Transition
	for {
		waiting, err := r.Store.ListTasksByStatus(ctx, models.StatusWaiting)
		if err != nil {
			return out, err
		}
		changed := false
		for _, t := range waiting {
			tr, err := r.promoteIfReady(ctx, t.Key)
			if err != nil {
				return out, err
			}
			if tr != nil {
				out = append(out, *tr)
				changed = true
			}
		}
		if !changed {
			return out, nil
		}
	}
}

func (r *Resolver) promoteIfReady(ctx context.Context, task string) (*Transition, error) {
	rec, err := r.Store.GetTask(ctx, task)
	if err != nil {
		return nil, err
	}
	if rec == nil || rec.Status != models.StatusWaiting {
		return nil, nil
	}
	deps, err := r.Store.ListDependencies(ctx, task)
	if err != nil {
		return nil, err
	}
	for _, d := range deps {
		depRec, err := r.Store.GetTask(ctx, d)
		if err != nil {
			return nil, err
		}
		// Unrecorded dependencies count as unmet.
		if depRec == nil || depRec.Status != models.StatusCompleted {
			return nil, nil
		}
	}
	agent := models.ResolverAgent
	if err := r.Store.UpsertTaskStatus(ctx, task, models.StatusPending, &agent, rec.SessionID, rec.Member); err != nil {
		return nil, err
	}
	return &Transition{Task: task, From: models.StatusWaiting, To: models.StatusPending}, nil
}

// Cycle is one offending dependency chain, e.g. [x y x]. A task that lists
// itself as a dependency appears as the degenerate chain [t t].
type Cycle []string

func (c Cycle) String() string {
	out := ""
	for i, t := range c {
		if i > 0 {
			out += " -> "
		}
		out += t
	}
	return out
}

// DetectCycles walks the adjacency list depth-first; a back-edge to a node on
// the current path is reported as a cycle. Read-only: never mutates state.
func (r *Resolver) DetectCycles(ctx context.Context) ([]Cycle, error) {
	adj, err := r.Store.AllDependencies(ctx)
	if err != nil {
		return nil, err
	}
	return DetectCyclesIn(adj), nil
}

// DetectCyclesIn runs cycle detection over an in-memory adjacency map.
func DetectCyclesIn(adj map[string][]string) []Cycle {
	keys := make([]string, 0, len(adj))
	for k := range adj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	const (
		unvisited = 0
		onPath    = 1
		done      = 2
	)
	state := make(map[string]int)
	var cycles []Cycle
	var path []string

	var visit func(node string)
	visit = func(node string) {
		state[node] = onPath
		path = append(path, node)
		for _, dep := range adj[node] {
			switch state[dep] {
			case onPath:
				// Slice the current path from the first occurrence of dep.
				start := 0
				for i, p := range path {
					if p == dep {
						start = i
						break
					}
				}
				chain := make(Cycle, 0, len(path)-start+1)
				chain = append(chain, path[start:]...)
				chain = append(chain, dep)
				cycles = append(cycles, chain)
			case unvisited:
				visit(dep)
			}
		}
		path = path[:len(path)-1]
		state[node] = done
	}

	for _, k := range keys {
		if state[k] == unvisited {
			visit(k)
		}
	}
	return cycles
}

// CheckEdge reports whether adding task -> dependsOn would close a cycle,
// used by the eager `dep add --check` path. It simulates the edge over the
// current adjacency map without mutating the store.
func (r *Resolver) CheckEdge(ctx context.Context, task, dependsOn string) error {
	if task == dependsOn {
		return fmt.Errorf("task %s cannot depend on itself", task)
	}
	adj, err := r.Store.AllDependencies(ctx)
	if err != nil {
		return err
	}
	adj[task] = append(adj[task], dependsOn)
	for _, c := range DetectCyclesIn(adj) {
		for _, n := range c {
			if n == task {
				return fmt.Errorf("dependency %s -> %s would create cycle: %s", task, dependsOn, c)
			}
		}
	}
	return nil
}
