// Package extract persists decoded units to an output directory.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	fwerrors "github.com/javi11/fwunpack/internal/errors"
	"github.com/spf13/afero"
)

// DefaultOutputDir is the directory name used next to the input file when no
// output directory is given.
const DefaultOutputDir = "extracted_files"

// Action describes what a sink write did to the target file.
type Action string

const (
	ActionCreate Action = "create"
	ActionAppend Action = "append"
)

// Sink persists named byte ranges.
type Sink interface {
	Write(name string, data []byte) (Action, error)
}

// DefaultOutputPath returns the default output directory for input.
func DefaultOutputPath(input string) string {
	return filepath.Join(filepath.Dir(input), DefaultOutputDir)
}

// EnsureFreshOutputDir creates path with its parents. The directory must not
// exist yet so results of separate runs are never mixed.
func EnsureFreshOutputDir(fs afero.Fs, path string) error {
	exists, err := afero.Exists(fs, path)
	if err != nil {
		return fmt.Errorf("failed to stat output directory %s: %w", path, err)
	}
	if exists {
		return &fwerrors.PreconditionError{Path: path, Reason: "output directory already exists"}
	}
	if err := fs.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", path, err)
	}
	return nil
}

// FileInfo describes one output file written by a DirSink.
type FileInfo struct {
	Name  string `yaml:"name"`
	Bytes int64  `yaml:"bytes"`
	Parts int    `yaml:"parts"`
}

// DirSink writes units as files in a directory. The first write of a name
// creates the file; later writes of the same name append to it.
type DirSink struct {
	fs    afero.Fs
	dir   string
	files map[string]*FileInfo
	order []string
}

// NewDirSink creates a sink writing below dir.
func NewDirSink(fs afero.Fs, dir string) *DirSink {
	return &DirSink{
		fs:    fs,
		dir:   dir,
		files: make(map[string]*FileInfo),
	}
}

// Dir returns the output directory.
func (s *DirSink) Dir() string {
	return s.dir
}

// Write implements Sink.
func (s *DirSink) Write(name string, data []byte) (Action, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}

	path := filepath.Join(s.dir, name)
	info, seen := s.files[name]

	action := ActionCreate
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if seen {
		action = ActionAppend
		flags = os.O_WRONLY | os.O_APPEND
	}

	f, err := s.fs.OpenFile(path, flags, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", path, err)
	}

	if !seen {
		info = &FileInfo{Name: name}
		s.files[name] = info
		s.order = append(s.order, name)
	}
	info.Bytes += int64(len(data))
	info.Parts++

	return action, nil
}

// Files returns the written files in creation order.
func (s *DirSink) Files() []FileInfo {
	out := make([]FileInfo, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, *s.files[name])
	}
	return out
}

// ValidateName rejects names that would escape the output directory.
func ValidateName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return &fwerrors.MalformedContainerError{Reason: fmt.Sprintf("invalid output name %q", name)}
	case strings.ContainsAny(name, "/\\\x00"):
		return &fwerrors.MalformedContainerError{Reason: fmt.Sprintf("output name %q contains a path separator", name)}
	}
	return nil
}
