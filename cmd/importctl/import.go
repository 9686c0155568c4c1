package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/JonMunkholm/PostImport/internal/application"
	"github.com/JonMunkholm/PostImport/internal/config"
	"github.com/JonMunkholm/PostImport/internal/core"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type importOptions struct {
	skipExisting bool
	delimiter    string
	chunkSize    int
	dryRun       bool
}

func newImportCmd() *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import a CSV file and wait for it to finish",
		Long: `Copies the CSV file into the import directory, starts a run over the
copy and processes chunks until the end of the file. The original file is
left untouched.

With --dry-run the run uses in-memory stores: nothing is written to the
database, but images are still downloaded to report fetch errors.`,
		Example: `  # Import, updating posts that already exist
  importctl import posts.csv

  # Semicolon-separated file, keep existing posts as they are
  importctl import --delimiter ';' --skip-existing posts.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.skipExisting, "skip-existing", false, "skip rows whose post already exists")
	cmd.Flags().StringVar(&opts.delimiter, "delimiter", "", "field delimiter (default from IMPORT_DELIMITER)")
	cmd.Flags().IntVar(&opts.chunkSize, "chunk-size", 0, "rows per chunk (default from IMPORT_CHUNK_SIZE)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "use in-memory stores")

	return cmd
}

func runImport(cmd *cobra.Command, path string, opts importOptions) error {
	ctx := cmd.Context()

	var (
		app *application.App
		err error
	)
	if opts.dryRun {
		var cfg *config.Config
		if cfg, err = config.LoadOffline(); err == nil {
			app, err = application.NewDryRun(cfg)
		}
	} else {
		app, err = openApp(ctx)
	}
	if err != nil {
		return err
	}
	defer app.Close()

	req := core.StartRequest{
		SkipExisting: opts.skipExisting,
		Delimiter:    app.Config.Import.DelimiterRune(),
		ChunkSize:    opts.chunkSize,
	}
	if opts.delimiter != "" {
		if utf8.RuneCountInString(opts.delimiter) != 1 {
			return fmt.Errorf("unsupported delimiter %q", opts.delimiter)
		}
		req.Delimiter, _ = utf8.DecodeRuneInString(opts.delimiter)
	}

	req.SourceFile, err = copySource(path, app.Config.Import.Dir)
	if err != nil {
		return err
	}

	st, err := app.Runner.Start(ctx, req)
	if err != nil {
		_ = os.Remove(req.SourceFile)
		return userError(err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "import %s started\n", st.RunID)

	res, err := app.Runner.RunToCompletion(ctx, st.RunID)
	if err != nil {
		return userError(err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "import %s %s: %s\n", res.RunID, res.Phase, core.Summary(res.Counters))
	return nil
}

// copySource copies src into dir under a fresh name. The run deletes its
// source when it ends, so it never gets the caller's file.
func copySource(src, dir string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create import dir: %w", err)
	}
	dst := filepath.Join(dir, uuid.New().String()+filepath.Ext(src))
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", dst, err)
	}

	_, err = io.Copy(out, in)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(dst)
		return "", fmt.Errorf("copy %s: %w", src, err)
	}
	return dst, nil
}
