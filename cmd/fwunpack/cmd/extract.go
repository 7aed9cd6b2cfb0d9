package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/javi11/fwunpack/internal/extract"
	"github.com/javi11/fwunpack/internal/pathutil"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

func init() {
	extractCmd := &cobra.Command{
		Use:   "extract <input>",
		Short: "Extract every named partition of a container",
		Long: `Extract every named partition or component of an APP or BIN container
into a fresh output directory. Blocks sharing a name are concatenated in
stream order. The output directory must not exist. A run that aborts
keeps the files written so far; when nothing was written the output
directory is removed again.`,
		Args: cobra.ExactArgs(1),
		RunE: runExtract,
	}

	f := extractCmd.Flags()
	f.StringP("output-dir", "o", "", `output directory (default "extracted_files" next to the input)`)
	f.String("format", "auto", "container format: auto, app, bin")
	f.Bool("verify", false, "verify payload checksums (APP) or digests (BIN)")

	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	sess, err := setup(cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx := cmd.Context()
	input := args[0]

	outDir := sess.cfg.Extract.OutputDir
	if outDir == "" {
		outDir = extract.DefaultOutputPath(input)
	}

	view, dec, engine, err := sess.openDecoder(ctx, input, sess.cfg.Extract.Verify)
	if err != nil {
		return err
	}
	defer view.Close()

	fs := afero.NewOsFs()
	if err := extract.EnsureFreshOutputDir(fs, outDir); err != nil {
		return err
	}

	log := sess.logger.With("component", "extract")
	log.InfoContext(ctx, "Exporting files",
		"input", input,
		"output", outDir,
		"format", dec.Format(),
		"verify", sess.cfg.Extract.Verify,
		"backend", engine.Strategy().Name())

	sink := extract.NewDirSink(fs, outDir)
	summary, err := extract.NewRunner(sess.logger).Run(ctx, dec, view, sink)
	if err != nil {
		if len(sink.Files()) == 0 {
			pathutil.RemoveEmptyDirs(fs, filepath.Dir(outDir), outDir)
		}
		return fmt.Errorf("extraction of %s aborted after %d units: %w", input, summary.Units, err)
	}

	stats := engine.Stats().Snapshot()
	log.InfoContext(ctx, "Parsing complete",
		"files", len(sink.Files()),
		"fragments", summary.Extracted,
		"skipped", summary.Skipped,
		"verified", summary.Verified,
		"bytes", summary.Bytes,
		"chunks", stats.Chunks,
		"duration", summary.Duration)

	fmt.Fprintf(cmd.OutOrStdout(), "Parsing complete. Total file fragments processed: %d\n", summary.Extracted)
	return nil
}
