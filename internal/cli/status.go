package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ankittk/coord/internal/graph"
	"github.com/ankittk/coord/pkg/models"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Read and write task status",
	}
	cmd.AddCommand(newStatusUpdateCmd())
	cmd.AddCommand(newStatusGetCmd())
	return cmd
}

func newStatusUpdateCmd() *cobra.Command {
	var (
		agent   string
		session string
		member  string
	)

	cmd := &cobra.Command{
		Use:   "update <task> <status>",
		Short: "Set a task's status; completion cascades readiness to dependents",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			task, status := args[0], args[1]
			if !models.ValidTaskStatus(status) {
				return fmt.Errorf("unknown status %q (valid: %s)", status, strings.Join([]string{
					models.StatusWaiting, models.StatusPending, models.StatusInProgress,
					models.StatusPaused, models.StatusCompleted, models.StatusBlocked,
				}, ", "))
			}
			st, _, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			resolver := &graph.Resolver{Store: st}
			transitions, err := resolver.UpdateStatus(cmd.Context(), task,
				status, nilIfEmpty(agent), nilIfEmpty(session), nilIfEmpty(member))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", task, status)
			for _, tr := range transitions {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: %s -> %s (dependencies met)\n", tr.Task, tr.From, tr.To)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&agent, "agent", "", "Agent recording the update")
	cmd.Flags().StringVar(&session, "session", "", "Session the update belongs to")
	cmd.Flags().StringVar(&member, "member", "", "Member owning the task")
	return cmd
}

func newStatusGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <task>",
		Short: "Show a task's status and ownership",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			task := args[0]
			st, _, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			rec, err := st.GetTask(cmd.Context(), task)
			if err != nil {
				return err
			}
			if rec == nil {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", task, models.StatusUnknown)
				return nil
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "%s\t%s\n", rec.Key, rec.Status)
			if rec.Member != nil && *rec.Member != "" {
				_, _ = fmt.Fprintf(out, "member:\t%s\n", *rec.Member)
			}
			if rec.Agent != nil && *rec.Agent != "" {
				_, _ = fmt.Fprintf(out, "agent:\t%s\n", *rec.Agent)
			}
			if rec.SessionID != nil && *rec.SessionID != "" {
				_, _ = fmt.Fprintf(out, "session:\t%s\n", *rec.SessionID)
			}
			_, _ = fmt.Fprintf(out, "updated:\t%s\n", rec.UpdatedAt.Format("2006-01-02 15:04:05 MST"))
			return nil
		},
	}
	return cmd
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
