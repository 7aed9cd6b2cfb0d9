package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/javi11/fwunpack/internal/extract"
	"github.com/javi11/fwunpack/internal/format"
	"github.com/javi11/fwunpack/internal/format/app"
	"github.com/javi11/fwunpack/internal/format/bin"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Output formats of the list command.
const (
	outputText = "text"
	outputYAML = "yaml"
)

// manifest is the listing of one container.
type manifest struct {
	Input   string          `yaml:"input"`
	Format  string          `yaml:"format"`
	RunID   string          `yaml:"run_id"`
	Units   []manifestUnit  `yaml:"units"`
	Summary extract.Summary `yaml:"summary"`
}

type manifestUnit struct {
	Index    int    `yaml:"index"`
	Name     string `yaml:"name"`
	Kind     string `yaml:"kind"`
	Offset   int64  `yaml:"offset"`
	Length   int64  `yaml:"length"`
	Verified bool   `yaml:"verified"`

	// APP block details.
	Sequence  *uint32 `yaml:"sequence,omitempty"`
	ChunkSize *uint16 `yaml:"chunk_size,omitempty"`
	Date      string  `yaml:"date,omitempty"`
	Time      string  `yaml:"time,omitempty"`

	// BIN component details.
	ComponentID *uint16 `yaml:"component_id,omitempty"`
	Version     string  `yaml:"version,omitempty"`
}

func init() {
	listCmd := &cobra.Command{
		Use:   "list <input>",
		Short: "List the blocks or components of a container without extracting",
		Args:  cobra.ExactArgs(1),
		RunE:  runList,
	}

	f := listCmd.Flags()
	f.String("format", "auto", "container format: auto, app, bin")
	f.Bool("verify", false, "verify payload checksums (APP) or digests (BIN)")
	f.String("output", outputText, "listing format: text, yaml")

	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")
	if output != outputText && output != outputYAML {
		return fmt.Errorf("unknown output format %q", output)
	}

	sess, err := setup(cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx := cmd.Context()
	input := args[0]

	view, dec, _, err := sess.openDecoder(ctx, input, sess.cfg.Extract.Verify)
	if err != nil {
		return err
	}
	defer view.Close()

	m := manifest{Input: input, Format: dec.Format(), RunID: sess.runID}

	runner := extract.NewRunner(sess.logger)
	runner.OnUnit = func(u format.Unit, _ extract.Action) {
		m.Units = append(m.Units, describeUnit(dec, u))
	}

	summary, runErr := runner.Run(ctx, dec, view, nil)
	m.Summary = summary

	// Print what was decoded even when the walk aborted.
	if err := writeManifest(cmd.OutOrStdout(), m, output); err != nil {
		return err
	}
	if runErr != nil {
		return fmt.Errorf("listing of %s aborted after %d units: %w", input, summary.Units, runErr)
	}
	return nil
}

func describeUnit(dec format.Decoder, u format.Unit) manifestUnit {
	mu := manifestUnit{
		Index:    u.Index,
		Name:     u.Name,
		Kind:     u.Kind.String(),
		Offset:   u.Range.Offset,
		Length:   u.Range.Length,
		Verified: u.Verified,
	}

	switch d := dec.(type) {
	case *app.Decoder:
		h := d.LastHeader()
		mu.Sequence = &h.Sequence
		mu.ChunkSize = &h.ChunkSize
		mu.Date = h.DateString()
		mu.Time = h.TimeString()
	case *bin.Decoder:
		if u.Index < len(d.Components()) {
			c := d.Components()[u.Index]
			mu.ComponentID = &c.ID
			mu.Version = c.VersionString()
		}
	}
	return mu
}

func writeManifest(w io.Writer, m manifest, output string) error {
	if output == outputYAML {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(m); err != nil {
			return fmt.Errorf("failed to encode manifest: %w", err)
		}
		return enc.Close()
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "#\tNAME\tKIND\tOFFSET\tBYTES\tVERIFIED\n")
	for _, u := range m.Units {
		name := u.Name
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%t\n", u.Index, name, u.Kind, u.Offset, u.Length, u.Verified)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%s container, %d units, %d extracted, %d skipped, %d bytes\n",
		m.Format, m.Summary.Units, m.Summary.Extracted, m.Summary.Skipped, m.Summary.Bytes)
	return err
}
