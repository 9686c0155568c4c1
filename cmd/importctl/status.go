package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/JonMunkholm/PostImport/internal/core"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the active import",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			st, err := app.Runner.Status(cmd.Context())
			if errors.Is(err, core.ErrNoActiveRun) {
				fmt.Fprintln(cmd.OutOrStdout(), "no import running")
				return nil
			}
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(st)
			}
			printState(cmd.OutOrStdout(), st)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw state as JSON")
	return cmd
}

func newCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel",
		Short: "Cancel the active import; imported rows are kept",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			st, err := app.Runner.Cancel(cmd.Context())
			if err != nil {
				return userError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "import %s cancelled at row %d: %s\n",
				st.RunID, st.RowCursor, core.Summary(st.Counters))
			return nil
		},
	}
}

func printState(w io.Writer, st *core.ImportState) {
	fmt.Fprintf(w, "run:      %s\n", st.RunID)
	fmt.Fprintf(w, "file:     %s\n", filepath.Base(st.SourceFile))
	fmt.Fprintf(w, "phase:    %s\n", st.Phase)
	fmt.Fprintf(w, "next row: %d\n", st.RowCursor)
	fmt.Fprintf(w, "result:   %s\n", core.Summary(st.Counters))
	fmt.Fprintf(w, "updated:  %s\n", st.UpdatedAt.Format("2006-01-02 15:04:05"))
}
