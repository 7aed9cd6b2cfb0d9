package cmd

import (
	"fmt"

	"github.com/javi11/fwunpack/internal/checksum"
	"github.com/spf13/cobra"
)

func init() {
	probeCmd := &cobra.Command{
		Use:   "probe",
		Short: "Report which payload checksum backend would be used",
		Args:  cobra.NoArgs,
		RunE:  runProbe,
	}

	rootCmd.AddCommand(probeCmd)
}

func runProbe(cmd *cobra.Command, _ []string) error {
	sess, err := setup(cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	out := cmd.OutOrStdout()

	if _, err := checksum.NewAccelerated(nil); err != nil {
		fmt.Fprintf(out, "accelerated: unavailable (%v)\n", err)
	} else {
		fmt.Fprintln(out, "accelerated: available")
	}

	engine, err := sess.newEngine(cmd.Context(), "probe")
	if err != nil {
		return err
	}

	selected := engine.Strategy()
	fmt.Fprintf(out, "configured:  %s\n", sess.cfg.Checksum.Backend)
	fmt.Fprintf(out, "selected:    %s\n", selected.Name())
	if p, ok := selected.(*checksum.Parallel); ok {
		fmt.Fprintf(out, "workers:     %d\n", p.Workers())
	}
	return nil
}
