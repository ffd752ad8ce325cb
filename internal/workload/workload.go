// Package workload derives assignment and balance views over the task records.
package workload

import (
	"context"
	"sort"

	"github.com/ankittk/coord/internal/store"
	"github.com/ankittk/coord/pkg/models"
)

// MemberLoad is one member's current assignment count.
type MemberLoad struct {
	Member   string `json:"member"`
	Assigned int    `json:"assigned"`
}

// Report is the workload balance view: per-member counts, the max-min
// imbalance score, and advisory idle/overloaded flags.
type Report struct {
	Members    []MemberLoad `json:"members"`
	Imbalance  int          `json:"imbalance"`
	Idle       []string     `json:"idle,omitempty"`
	Overloaded []string     `json:"overloaded,omitempty"`
}

// Coordinator computes workload reports. Pool is the configured member pool;
// members observed on tasks are included even when not configured.
type Coordinator struct {
	Store store.Store
	Pool  []string
}

// Report counts currently-assigned (non-completed) tasks per member. The
// imbalance score is max-min across members; members with zero assignments
// are idle, and members at or above mean+threshold are overloaded.
func (c *Coordinator) Report(ctx context.Context) (*Report, error) {
	tasks, err := c.Store.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, m := range c.Pool {
		counts[m] = 0
	}
	for _, t := range tasks {
		if t.Member == nil || *t.Member == "" {
			continue
		}
		if !models.TaskAssigned(t.Status) {
			continue
		}
		counts[*t.Member]++
	}
	if len(counts) == 0 {
		return &Report{}, nil
	}

	members := make([]string, 0, len(counts))
	for m := range counts {
		members = append(members, m)
	}
	sort.Strings(members)

	rep := &Report{}
	minLoad, maxLoad, total := -1, 0, 0
	for _, m := range members {
		n := counts[m]
		rep.Members = append(rep.Members, MemberLoad{Member: m, Assigned: n})
		total += n
		if n > maxLoad {
			maxLoad = n
		}
		if minLoad < 0 || n < minLoad {
			minLoad = n
		}
	}
	rep.Imbalance = maxLoad - minLoad

	mean := float64(total) / float64(len(members))
	for _, m := range members {
		n := counts[m]
		if n == 0 {
			rep.Idle = append(rep.Idle, m)
		}
		if float64(n) >= mean+models.DefaultOverloadThreshold {
			rep.Overloaded = append(rep.Overloaded, m)
		}
	}
	return rep, nil
}

// MemberTasks returns the non-completed tasks currently assigned to member.
func (c *Coordinator) MemberTasks(ctx context.Context, member string) ([]store.Task, error) {
	tasks, err := c.Store.ListTasksByMember(ctx, member)
	if err != nil {
		return nil, err
	}
	var out []store.Task
	for _, t := range tasks {
		if models.TaskAssigned(t.Status) {
			out = append(out, t)
		}
	}
	return out, nil
}
