package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ankittk/coord/internal/config"
	"github.com/ankittk/coord/internal/delegate"
	"github.com/ankittk/coord/internal/session"
)

func newDelegateCmd() *cobra.Command {
	var (
		member    string
		sessionID string
		tool      string
		taskRange string
		force     bool
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "delegate <task>",
		Short: "Hand a task to a member: probe coordination, gate on dependencies, open a session",
		Args:  cobra.ExactArgs(1),
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
			orch := &delegate.Orchestrator{
				Home:     home,
				SpecsDir: settings.SpecsDir,
				Store:    st,
				Sessions: &session.Registry{Store: st, ConflictWindow: settings.ConflictWindow()},
			}

			sum, err := orch.Delegate(cmd.Context(), delegate.Request{
				Task:      args[0],
				Member:    member,
				SessionID: sessionID,
				Tool:      tool,
				TaskRange: taskRange,
				Force:     force,
			})
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(sum)
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "%s delegated to %s (session %s, mode %s)\n", sum.Task, sum.Member, sum.SessionID, sum.Mode)
			for _, w := range sum.Warnings {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&member, "member", "", "Member to hand the task to (default: solo)")
	cmd.Flags().StringVar(&sessionID, "session", "", "Session ID (generated when empty)")
	cmd.Flags().StringVar(&tool, "tool", "", "Tool the member will drive")
	cmd.Flags().StringVar(&taskRange, "task-range", "", "Task range label recorded on the summary")
	cmd.Flags().BoolVar(&force, "force", false, "Proceed past unmet dependencies with a warning")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the delegation summary as JSON")
	return cmd
}
