package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ankittk/coord/internal/graph"
)

func newCyclesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cycles",
		Short: "Report dependency cycles (read-only; exits non-zero when found)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, _, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			resolver := &graph.Resolver{Store: st}
			cycles, err := resolver.DetectCycles(cmd.Context())
			if err != nil {
				return err
			}
			if len(cycles) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no cycles")
				return nil
			}
			for _, c := range cycles {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "cycle: %s\n", c)
			}
			return errors.New("dependency graph contains cycles")
		},
	}
	return cmd
}

func newResolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve [task]",
		Short: "Re-run the readiness check: one task, or sweep all waiting tasks to a fixpoint",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, _, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			resolver := &graph.Resolver{Store: st}
			var transitions []graph.Transition
			if len(args) == 1 {
				transitions, err = resolver.ResolveTask(cmd.Context(), args[0])
			} else {
				transitions, err = resolver.ResolveAll(cmd.Context())
			}
			if err != nil {
				return err
			}
			if len(transitions) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "nothing to promote")
				return nil
			}
			for _, tr := range transitions {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: %s -> %s\n", tr.Task, tr.From, tr.To)
			}
			return nil
		},
	}
	return cmd
}
