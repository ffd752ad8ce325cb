package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ankittk/coord/internal/graph"
	"github.com/ankittk/coord/pkg/models"
)

func newDepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dep",
		Short: "Manage dependency edges between tasks",
	}
	cmd.AddCommand(newDepAddCmd())
	cmd.AddCommand(newDepRemoveCmd())
	cmd.AddCommand(newDepListCmd())
	return cmd
}

func newDepAddCmd() *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "add <task> <depends-on>",
		Short: "Record that a task depends on another (idempotent)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			task, dependsOn := args[0], args[1]
			st, _, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			if check {
				resolver := &graph.Resolver{Store: st}
				if err := resolver.CheckEdge(cmd.Context(), task, dependsOn); err != nil {
					return err
				}
			}
			if err := st.AddDependency(cmd.Context(), task, dependsOn); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s now depends on %s\n", task, dependsOn)
			return nil
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "Refuse the edge if it would close a dependency cycle")
	return cmd
}

func newDepRemoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove <task> <depends-on>",
		Short: "Remove a dependency edge (no-op if absent)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			task, dependsOn := args[0], args[1]
			st, _, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			if err := st.RemoveDependency(cmd.Context(), task, dependsOn); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s no longer depends on %s\n", task, dependsOn)
			return nil
		},
	}
	return cmd
}

func newDepListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <task>",
		Short: "List what a task depends on, with each dependency's status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			task := args[0]
			st, _, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			deps, err := st.ListDependencies(cmd.Context(), task)
			if err != nil {
				return err
			}
			if len(deps) == 0 {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s has no dependencies\n", task)
				return nil
			}
			for _, d := range deps {
				rec, err := st.GetTask(cmd.Context(), d)
				if err != nil {
					return err
				}
				status := models.StatusUnknown
				if rec != nil {
					status = rec.Status
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", d, status)
			}
			return nil
		},
	}
	return cmd
}
