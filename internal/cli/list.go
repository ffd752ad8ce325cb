package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ankittk/coord/internal/store"
	"github.com/ankittk/coord/pkg/models"
)

func newListCmd() *cobra.Command {
	var (
		status string
		member string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks, optionally filtered by status or member",
		RunE: func(cmd *cobra.Command, args []string) error {
			if status != "" && !models.ValidTaskStatus(status) {
				return fmt.Errorf("unknown status %q", status)
			}
			st, _, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			var tasks []store.Task
			switch {
			case status != "":
				tasks, err = st.ListTasksByStatus(cmd.Context(), status)
			case member != "":
				tasks, err = st.ListTasksByMember(cmd.Context(), member)
			default:
				tasks, err = st.ListTasks(cmd.Context())
			}
			if err != nil {
				return err
			}
			if len(tasks) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no tasks")
				return nil
			}
			for _, t := range tasks {
				owner := "-"
				if t.Member != nil && *t.Member != "" {
					owner = *t.Member
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", t.Key, t.Status, owner)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Filter by task status")
	cmd.Flags().StringVar(&member, "member", "", "Filter by owning member")
	return cmd
}
