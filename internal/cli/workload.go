package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ankittk/coord/internal/config"
	"github.com/ankittk/coord/internal/workload"
)

func newWorkloadCmd() *cobra.Command {
	var member string

	cmd := &cobra.Command{
		Use:   "workload",
		Short: "Show the member workload balance (or one member's tasks)",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, home, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			settings, err := config.LoadSettings(home)
			if err != nil {
				return err
			}
			coordinator := &workload.Coordinator{Store: st, Pool: settings.Members}

			if member != "" {
				tasks, err := coordinator.MemberTasks(cmd.Context(), member)
				if err != nil {
					return err
				}
				if len(tasks) == 0 {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s has no assigned tasks\n", member)
					return nil
				}
				for _, t := range tasks {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", t.Key, t.Status)
				}
				return nil
			}

			report, err := coordinator.Report(cmd.Context())
			if err != nil {
				return err
			}
			if len(report.Members) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no members with assignments")
				return nil
			}
			out := cmd.OutOrStdout()
			for _, m := range report.Members {
				_, _ = fmt.Fprintf(out, "%s\t%d\n", m.Member, m.Assigned)
			}
			_, _ = fmt.Fprintf(out, "imbalance:\t%d\n", report.Imbalance)
			if len(report.Idle) > 0 {
				_, _ = fmt.Fprintf(out, "idle:\t%s\n", strings.Join(report.Idle, ", "))
			}
			if len(report.Overloaded) > 0 {
				_, _ = fmt.Fprintf(out, "overloaded:\t%s\n", strings.Join(report.Overloaded, ", "))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&member, "member", "", "Show one member's assigned tasks instead of the balance view")
	return cmd
}
