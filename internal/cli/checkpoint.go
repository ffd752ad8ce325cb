package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ankittk/coord/internal/checkpoint"
	"github.com/ankittk/coord/internal/config"
)

// newManager builds a checkpoint manager from settings; the working repo
// defaults to the current directory when not configured.
func newManager(cmd *cobra.Command, repoOverride string) (*checkpoint.Manager, func(), error) {
	st, home, err := openStore(cmd)
	if err != nil {
		return nil, nil, err
	}
	settings, err := config.LoadSettings(home)
	if err != nil {
		_ = st.Close()
		return nil, nil, err
	}
	repo := repoOverride
	if repo == "" {
		repo = settings.Repo
	}
	if repo == "" {
		repo, err = os.Getwd()
		if err != nil {
			_ = st.Close()
			return nil, nil, err
		}
	}
	m := &checkpoint.Manager{Home: home, Repo: repo, Store: st}
	return m, func() { _ = st.Close() }, nil
}

func newCheckpointCmd() *cobra.Command {
	var (
		repo        string
		transcript  string
		trigger     string
		task        string
		member      string
		taskRange   string
		contextMode string
	)

	cmd := &cobra.Command{
		Use:   "checkpoint <session-id>",
		Short: "Write an automatic checkpoint (snapshot, diff, transcript, instructions)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, closeStore, err := newManager(cmd, repo)
			if err != nil {
				return err
			}
			defer closeStore()

			res, err := m.Auto(cmd.Context(), checkpoint.AutoOptions{
				SessionID:      args[0],
				TranscriptPath: transcript,
				Trigger:        trigger,
				Task:           task,
				Member:         member,
				TaskRange:      taskRange,
				ContextMode:    contextMode,
			})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "checkpoint %s written to %s\n", res.Stamp, res.Dir)
			return nil
		},
	}
	cmd.Flags().StringVar(&repo, "repo", "", "Working repository (default: configured repo or current directory)")
	cmd.Flags().StringVar(&transcript, "transcript", "", "Transcript file to copy into the artifact set")
	cmd.Flags().StringVar(&trigger, "trigger", "auto", "What triggered the checkpoint")
	cmd.Flags().StringVar(&task, "task", "", "Task the session is working on")
	cmd.Flags().StringVar(&member, "member", "", "Member owning the session")
	cmd.Flags().StringVar(&taskRange, "task-range", "", "Task range label for the session")
	cmd.Flags().StringVar(&contextMode, "context-mode", "", "Host context mode at checkpoint time")
	return cmd
}

func newPauseCmd() *cobra.Command {
	var (
		repo   string
		task   string
		reason string
		policy string
		member string
	)

	cmd := &cobra.Command{
		Use:   "pause <session-id>",
		Short: "Pause a session: checkpoint, apply the uncommitted-change policy, mark the task paused",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, closeStore, err := newManager(cmd, repo)
			if err != nil {
				return err
			}
			defer closeStore()

			res, err := m.Pause(cmd.Context(), checkpoint.PauseOptions{
				SessionID: args[0],
				Task:      task,
				Reason:    reason,
				Policy:    policy,
				Member:    member,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "session %s paused (%s)\n", args[0], reason)
			if res.Committed {
				_, _ = fmt.Fprintf(out, "changes committed: %s\n", res.CommitSHA)
			}
			if res.DiffPath != "" {
				_, _ = fmt.Fprintf(out, "diff saved: %s\n", res.DiffPath)
			}
			_, _ = fmt.Fprintf(out, "resume with: coord resume %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&repo, "repo", "", "Working repository (default: configured repo or current directory)")
	cmd.Flags().StringVar(&task, "task", "", "Task being paused")
	cmd.Flags().StringVar(&reason, "reason", "", "Why the session is pausing (required)")
	cmd.Flags().StringVar(&policy, "policy", "", "Uncommitted-change policy: commit or stash-diff (required when changes exist)")
	cmd.Flags().StringVar(&member, "member", "", "Member owning the session")
	_ = cmd.MarkFlagRequired("task")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func newResumeCmd() *cobra.Command {
	var repo string

	cmd := &cobra.Command{
		Use:   "resume <session-id>",
		Short: "Resume from the latest checkpoint and print the continuation instructions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, closeStore, err := newManager(cmd, repo)
			if err != nil {
				return err
			}
			defer closeStore()

			res, err := m.Resume(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if res.Task != "" {
				_, _ = fmt.Fprintf(out, "task %s restored to in_progress\n", res.Task)
			}
			_, _ = fmt.Fprintln(out, res.Instructions)
			return nil
		},
	}
	cmd.Flags().StringVar(&repo, "repo", "", "Working repository (default: configured repo or current directory)")
	return cmd
}
