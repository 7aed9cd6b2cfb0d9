// Package cmd implements the fwunpack command line.
package cmd

import (
	"context"
	"fmt"

	"github.com/javi11/fwunpack/internal/checksum"
	"github.com/javi11/fwunpack/internal/config"
	fwerrors "github.com/javi11/fwunpack/internal/errors"
	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "fwunpack",
	Short: "Extract partitions from APP and BIN firmware update containers",
	Long: `fwunpack walks firmware update containers and writes every named
partition or component to an output directory.

Two container formats are supported: APP block streams (UPDATE.APP) with
per-block CRC16 checksums, and BIN packages (update.bin) with a component
table and SHA-256 digests.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "config file (default ./fwunpack.yaml)")
	pf.String("log-level", config.LogLevelInfo, "log level: debug, info, warn, error")
	pf.String("log-file", "", "also write logs to this rotating file")
	pf.String("checksum-backend", checksum.BackendAuto, "payload checksum backend: auto, accelerated, parallel")
	pf.Int("checksum-workers", 0, "parallel checksum workers (0 uses the CPU count)")
}

// Execute runs the command line and returns the process exit status.
func Execute(ctx context.Context) int {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		return fwerrors.ExitCode(err)
	}
	return fwerrors.ExitOK
}
