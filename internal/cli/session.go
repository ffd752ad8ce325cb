package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ankittk/coord/internal/config"
	"github.com/ankittk/coord/internal/session"
	"github.com/ankittk/coord/internal/store"
	"github.com/ankittk/coord/pkg/models"
)

func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Track work sessions",
	}
	cmd.AddCommand(newSessionStartCmd())
	cmd.AddCommand(newSessionEndCmd())
	cmd.AddCommand(newSessionListCmd())
	return cmd
}

func newSessionStartCmd() *cobra.Command {
	var (
		id     string
		member string
		tool   string
	)

	cmd := &cobra.Command{
		Use:   "start <task>",
		Short: "Open an active session for a task",
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
			registry := &session.Registry{Store: st, ConflictWindow: settings.ConflictWindow()}

			sess, err := registry.Open(cmd.Context(), id, member, args[0], tool)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "session %s started: %s working on %s\n", sess.SessionID, sess.Member, sess.TaskKey)

			// Advisory only; the session opens either way.
			if conflict, err := registry.CheckConflict(cmd.Context(), args[0]); err == nil && conflict != nil {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", conflict)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Session ID (generated when empty)")
	cmd.Flags().StringVar(&member, "member", "", "Member opening the session (default: solo)")
	cmd.Flags().StringVar(&tool, "tool", "", "Tool driving the session")
	return cmd
}

func newSessionEndCmd() *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "end <session-id>",
		Short: "Close a session with a terminal status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if status != "" && !models.ValidSessionClose(status) {
				return fmt.Errorf("unknown terminal status %q (valid: %s)", status, strings.Join([]string{
					models.SessionCompleted, models.SessionInterrupted, models.SessionAbandoned,
				}, ", "))
			}
			st, _, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			registry := &session.Registry{Store: st}
			if err := registry.Close(cmd.Context(), args[0], status); err != nil {
				return err
			}
			if status == "" {
				status = models.SessionCompleted
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "session %s closed: %s\n", args[0], status)
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Terminal status: completed (default), interrupted, or abandoned")
	return cmd
}

func newSessionListCmd() *cobra.Command {
	var (
		member string
		status string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent sessions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, _, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			if limit <= 0 {
				limit = models.DefaultSessionListLimit
			}
			var sessions []store.Session
			switch {
			case member != "":
				sessions, err = st.ListSessionsByMember(cmd.Context(), member, limit)
			case status != "":
				sessions, err = st.ListSessionsByStatus(cmd.Context(), status, limit)
			default:
				sessions, err = st.ListSessions(cmd.Context(), limit)
			}
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no sessions")
				return nil
			}
			for _, s := range sessions {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\t%s\n",
					s.SessionID, s.Member, s.TaskKey, s.Status, s.StartedAt.Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&member, "member", "", "Filter by member")
	cmd.Flags().StringVar(&status, "status", "", "Filter by session status")
	cmd.Flags().IntVar(&limit, "limit", 0, "Max sessions to list (default 100)")
	return cmd
}

func newConflictsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conflicts <task>",
		Short: "Check whether multiple members were recently active on a task",
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
			registry := &session.Registry{Store: st, ConflictWindow: settings.ConflictWindow()}
			conflict, err := registry.CheckConflict(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if conflict == nil {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "no conflict on %s\n", args[0])
				return nil
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), conflict)
			return nil
		},
	}
	return cmd
}
