package cmd

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	fwerrors "github.com/javi11/fwunpack/internal/errors"
	"github.com/javi11/fwunpack/internal/fixture"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func execute(t *testing.T, args ...string) (string, string, int) {
	t.Helper()

	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	resetFlags(rootCmd)
	configFile = ""

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)

	code := Execute(context.Background())
	return stdout.String(), stderr.String(), code
}

func writeInput(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func pattern(n int, seed byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = seed + byte(i*3)
	}
	return b
}

func appContainer() []byte {
	return fixture.App(
		fixture.AppBlock{Name: "SYSTEM", Payload: pattern(300, 1), ChunkSize: 64, Sequence: 1},
		fixture.AppBlock{Name: "", Payload: pattern(10, 2), ChunkSize: 64},
		fixture.AppBlock{Name: "SYSTEM", Payload: pattern(45, 3), ChunkSize: 64, Sequence: 2},
	)
}

func TestExtract_App(t *testing.T) {
	input := writeInput(t, "UPDATE.APP", appContainer())

	stdout, stderr, code := execute(t, "extract", input, "--verify")
	require.Equal(t, fwerrors.ExitOK, code, stderr)
	assert.Contains(t, stdout, "Total file fragments processed: 2")
	assert.Contains(t, stderr, "Appending to")

	got, err := os.ReadFile(filepath.Join(filepath.Dir(input), "extracted_files", "SYSTEM"))
	require.NoError(t, err)
	assert.Equal(t, append(pattern(300, 1), pattern(45, 3)...), got)
}

func TestExtract_BinWithOutputDirAndParallel(t *testing.T) {
	input := writeInput(t, "update.bin", fixture.Bin(fixture.BinPackage{
		Components: []fixture.BinComponent{
			{Name: "", Payload: pattern(50, 1)},
			{Name: "boot", Payload: pattern(100, 2)},
		},
		Signature: pattern(32, 4),
	}))
	out := filepath.Join(t.TempDir(), "nested", "out")

	_, stderr, code := execute(t, "extract", input, "-o", out, "--verify",
		"--checksum-backend", "parallel", "--checksum-workers", "2")
	require.Equal(t, fwerrors.ExitOK, code, stderr)

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "boot", entries[0].Name())
}

func TestExtract_OutputDirExists(t *testing.T) {
	input := writeInput(t, "UPDATE.APP", appContainer())
	require.NoError(t, os.Mkdir(filepath.Join(filepath.Dir(input), "extracted_files"), 0755))

	_, stderr, code := execute(t, "extract", input)
	assert.Equal(t, fwerrors.ExitPrecondition, code)
	assert.Contains(t, stderr, "already exists")
}

func TestExtract_MissingInput(t *testing.T) {
	_, _, code := execute(t, "extract", filepath.Join(t.TempDir(), "missing.app"), "--format", "app")
	assert.Equal(t, fwerrors.ExitPrecondition, code)
}

func TestExtract_MalformedWritesNothing(t *testing.T) {
	input := writeInput(t, "UPDATE.APP", fixture.App(fixture.AppBlock{
		Name:      "SYSTEM",
		Payload:   pattern(20, 1),
		ChunkSize: 8,
		Signature: []byte{1, 2, 3, 4},
	}))
	out := filepath.Join(t.TempDir(), "out")

	_, _, code := execute(t, "extract", input, "--format", "app", "-o", out)
	assert.Equal(t, fwerrors.ExitStructural, code)

	// Nothing was written, so the fresh output directory is removed again.
	_, err := os.Stat(out)
	assert.True(t, os.IsNotExist(err))
}

func TestExtract_AutoDetectMalformed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{
			name: "app bad signature",
			data: fixture.App(fixture.AppBlock{
				Name:      "SYSTEM",
				Payload:   pattern(20, 1),
				ChunkSize: 8,
				Signature: []byte{1, 2, 3, 4},
			}),
		},
		{
			name: "bin bad tag",
			data: fixture.Bin(fixture.BinPackage{
				Components:   []fixture.BinComponent{{Name: "boot", Payload: pattern(100, 2)}},
				TimestampTag: 9,
			}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := writeInput(t, "firmware", tt.data)
			out := filepath.Join(t.TempDir(), "out")

			_, stderr, code := execute(t, "extract", input, "-o", out)
			assert.Equal(t, fwerrors.ExitStructural, code, stderr)
			assert.Contains(t, stderr, "unrecognized container format")

			_, err := os.Stat(out)
			assert.True(t, os.IsNotExist(err))
		})
	}
}

func TestExtract_RelativeOutputDirRemovedWhenNothingWritten(t *testing.T) {
	input := writeInput(t, "UPDATE.APP", fixture.App(
		fixture.AppBlock{Name: "SYSTEM", Payload: pattern(64, 2), ChunkSize: 16, Blob: make([]byte, 8)},
	))
	t.Chdir(t.TempDir())

	_, _, code := execute(t, "extract", input, "-o", "out", "--verify")
	assert.Equal(t, fwerrors.ExitDataChecksum, code)

	_, err := os.Stat("out")
	assert.True(t, os.IsNotExist(err))

	// The rerun is not blocked by a leftover directory.
	_, stderr, code := execute(t, "extract", input, "-o", "out")
	require.Equal(t, fwerrors.ExitOK, code, stderr)
	got, err := os.ReadFile(filepath.Join("out", "SYSTEM"))
	require.NoError(t, err)
	assert.Equal(t, pattern(64, 2), got)
}

func TestExtract_AbortKeepsWrittenFiles(t *testing.T) {
	data := fixture.App(
		fixture.AppBlock{Name: "BOOT", Payload: pattern(64, 1), ChunkSize: 16},
		fixture.AppBlock{Name: "SYSTEM", Payload: pattern(64, 2), ChunkSize: 16, Blob: make([]byte, 8)},
	)
	input := writeInput(t, "UPDATE.APP", data)
	out := filepath.Join(t.TempDir(), "out")

	_, _, code := execute(t, "extract", input, "-o", out, "--verify")
	assert.Equal(t, fwerrors.ExitDataChecksum, code)

	got, err := os.ReadFile(filepath.Join(out, "BOOT"))
	require.NoError(t, err)
	assert.Equal(t, pattern(64, 1), got)
}

func TestExtract_DataChecksum(t *testing.T) {
	data := appContainer()
	data[len(data)-10] ^= 0xFF
	input := writeInput(t, "UPDATE.APP", data)

	_, _, code := execute(t, "extract", input, "--verify")
	assert.Equal(t, fwerrors.ExitDataChecksum, code)
}

func TestExtract_InvalidBackend(t *testing.T) {
	input := writeInput(t, "UPDATE.APP", appContainer())

	_, stderr, code := execute(t, "extract", input, "--checksum-backend", "gpu")
	assert.Equal(t, fwerrors.ExitFailure, code)
	assert.Contains(t, stderr, "checksum backend")
}

func TestList_YAML(t *testing.T) {
	input := writeInput(t, "UPDATE.APP", appContainer())

	stdout, stderr, code := execute(t, "list", input, "--output", "yaml", "--verify")
	require.Equal(t, fwerrors.ExitOK, code, stderr)

	var m manifest
	require.NoError(t, yaml.Unmarshal([]byte(stdout), &m))

	assert.Equal(t, "app", m.Format)
	require.Len(t, m.Units, 3)
	assert.Equal(t, "SYSTEM", m.Units[0].Name)
	assert.Equal(t, "extracted", m.Units[0].Kind)
	assert.True(t, m.Units[0].Verified)
	require.NotNil(t, m.Units[0].ChunkSize)
	assert.Equal(t, uint16(64), *m.Units[0].ChunkSize)
	assert.Equal(t, "skipped", m.Units[1].Kind)
	require.NotNil(t, m.Units[2].Sequence)
	assert.Equal(t, uint32(2), *m.Units[2].Sequence)
	assert.Equal(t, 2, m.Summary.Extracted)

	// Listing never creates the output directory.
	_, err := os.Stat(filepath.Join(filepath.Dir(input), "extracted_files"))
	assert.True(t, os.IsNotExist(err))
}

func TestList_TextBin(t *testing.T) {
	input := writeInput(t, "update.bin", fixture.Bin(fixture.BinPackage{
		Components: []fixture.BinComponent{{Name: "kernel", Payload: pattern(64, 1)}},
	}))

	stdout, stderr, code := execute(t, "list", input)
	require.Equal(t, fwerrors.ExitOK, code, stderr)
	assert.Contains(t, stdout, "NAME")
	assert.Contains(t, stdout, "kernel")
	assert.Contains(t, stdout, "bin container, 1 units")
}

func TestList_UnknownOutput(t *testing.T) {
	input := writeInput(t, "UPDATE.APP", appContainer())
	_, _, code := execute(t, "list", input, "--output", "json")
	assert.Equal(t, fwerrors.ExitFailure, code)
}

func TestVerify_MultipleInputs(t *testing.T) {
	good := writeInput(t, "good.APP", appContainer())

	bad := appContainer()
	bad[len(bad)-10] ^= 0xFF
	corrupt := writeInput(t, "bad.APP", bad)

	stdout, _, code := execute(t, "verify", good, corrupt, "--jobs", "2")
	assert.Equal(t, fwerrors.ExitDataChecksum, code)
	assert.Contains(t, stdout, "OK    "+good)
	assert.Contains(t, stdout, "FAIL  "+corrupt)
}

func TestVerify_AllGood(t *testing.T) {
	a := writeInput(t, "a.APP", appContainer())
	b := writeInput(t, "b.bin", fixture.Bin(fixture.BinPackage{
		Components: []fixture.BinComponent{{Name: "boot", Payload: pattern(10, 1)}},
	}))

	stdout, stderr, code := execute(t, "verify", a, b)
	require.Equal(t, fwerrors.ExitOK, code, stderr)
	assert.Contains(t, stdout, "OK    "+a+" (app")
	assert.Contains(t, stdout, "OK    "+b+" (bin")
}

func TestProbe(t *testing.T) {
	stdout, stderr, code := execute(t, "probe")
	require.Equal(t, fwerrors.ExitOK, code, stderr)
	assert.Contains(t, stdout, "accelerated: available")
	assert.Contains(t, stdout, "selected:    accelerated")

	stdout, stderr, code = execute(t, "probe", "--checksum-backend", "parallel", "--checksum-workers", "3")
	require.Equal(t, fwerrors.ExitOK, code, stderr)
	assert.Contains(t, stdout, "selected:    parallel")
	assert.Contains(t, stdout, "workers:     3")
}
