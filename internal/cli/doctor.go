package cli

import (
	"errors"
	"fmt"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/ankittk/coord/internal/config"
	"github.com/ankittk/coord/internal/store"
)

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Verify runtime dependencies and store health",
		RunE: func(cmd *cobra.Command, args []string) error {
			home := config.MustHomeFrom(cmd.Context())

			var problems []string

			// git is required for checkpoint diff/commit capture.
			if _, err := exec.LookPath("git"); err != nil {
				problems = append(problems, "missing dependency: git (not found on PATH)")
			}

			if _, err := config.LoadSettings(home); err != nil {
				problems = append(problems, "config: "+err.Error())
			}

			st, err := store.Open(home)
			if err != nil {
				problems = append(problems, "store: "+err.Error())
			} else {
				if err := st.Ping(cmd.Context()); err != nil {
					problems = append(problems, "store ping: "+err.Error())
				}
				_ = st.Close()
			}

			if len(problems) > 0 {
				for _, p := range problems {
					_, _ = fmt.Fprintln(cmd.ErrOrStderr(), p)
				}
				return errors.New("doctor checks failed")
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
	return cmd
}
