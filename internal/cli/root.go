package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ankittk/coord/internal/config"
	"github.com/ankittk/coord/internal/store"
)

func NewRootCmd(version string) *cobra.Command {
	var homeOverride string

	cmd := &cobra.Command{
		Use:          "coord",
		Short:        "coord — task dependency and session coordination engine",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			home, err := config.ResolveHome(homeOverride)
			if err != nil {
				return err
			}
			cmd.SetContext(config.WithHome(cmd.Context(), home))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&homeOverride, "home", "", "Override coord home directory (default: ~/.coord, env: COORD_HOME)")

	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newServeCmd())

	cmd.AddCommand(newDepCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newCyclesCmd())
	cmd.AddCommand(newResolveCmd())

	cmd.AddCommand(newSessionCmd())
	cmd.AddCommand(newConflictsCmd())
	cmd.AddCommand(newWorkloadCmd())

	cmd.AddCommand(newCheckpointCmd())
	cmd.AddCommand(newPauseCmd())
	cmd.AddCommand(newResumeCmd())
	cmd.AddCommand(newDelegateCmd())

	cmd.AddCommand(newStateCmd())

	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	cmd.SetVersionTemplate("{{.Version}}\n")
	if version != "" {
		cmd.Version = version
	} else {
		cmd.Version = "dev"
	}

	return cmd
}

// openStore opens the engine store at the home directory held in the command
// context. The caller closes it.
func openStore(cmd *cobra.Command) (store.Store, string, error) {
	home := config.MustHomeFrom(cmd.Context())
	st, err := store.Open(home)
	if err != nil {
		return nil, "", err
	}
	return st, home, nil
}
