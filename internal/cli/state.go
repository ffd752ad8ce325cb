package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ankittk/coord/internal/store"
)

func newStateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Export and import the coordination state document",
	}
	cmd.AddCommand(newStateExportCmd())
	cmd.AddCommand(newStateImportCmd())
	return cmd
}

func newStateExportCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the state document (dependencies, tasks) as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, _, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			doc, err := st.Snapshot(cmd.Context())
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(doc, "", "  ")
			if err != nil {
				return err
			}
			data = append(data, '\n')
			if out == "" || out == "-" {
				_, _ = cmd.OutOrStdout().Write(data)
				return nil
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "state exported to %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "Output file (default: stdout)")
	return cmd
}

func newStateImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the store contents with a previously exported state document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var doc store.StateDocument
			if err := json.Unmarshal(data, &doc); err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}
			st, _, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			if err := st.Restore(cmd.Context(), &doc); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "state imported: %d tasks, %d dependency lists\n",
				len(doc.Tasks), len(doc.Dependencies))
			return nil
		},
	}
	return cmd
}
