// Package pathutil provides directory checks and cleanup for output and log
// paths.
package pathutil

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

const writeTestName = ".fwunpack-write-test"

// CheckDirectoryWritable checks if a directory exists and is writable.
// If the directory doesn't exist, it attempts to create it.
func CheckDirectoryWritable(fs afero.Fs, path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	isDir, err := afero.IsDir(fs, absPath)
	switch {
	case err == nil && !isDir:
		return fmt.Errorf("path %s exists but is not a directory", absPath)
	case err != nil:
		exists, statErr := afero.Exists(fs, absPath)
		if statErr != nil || exists {
			return fmt.Errorf("cannot access directory %s: %w", absPath, err)
		}
		if err := fs.MkdirAll(absPath, 0o755); err != nil {
			return fmt.Errorf("directory %s does not exist and cannot be created: %w", absPath, err)
		}
	}

	testFile := filepath.Join(absPath, writeTestName)
	if err := afero.WriteFile(fs, testFile, []byte("test"), 0o644); err != nil {
		return fmt.Errorf("directory %s is not writable: %w", absPath, err)
	}
	_ = fs.Remove(testFile)

	return nil
}

// CheckFileDirectoryWritable checks if the directory containing a file path is writable.
func CheckFileDirectoryWritable(fs afero.Fs, filePath string, fileType string) error {
	if filePath == "" {
		return nil
	}

	dir := filepath.Dir(filePath)
	if dir == "" || dir == "." {
		dir = "./"
	}

	if err := CheckDirectoryWritable(fs, dir); err != nil {
		return fmt.Errorf("%s file directory check failed: %w", fileType, err)
	}
	return nil
}

// RemoveEmptyDirs removes path and then its empty parents up to root
// (exclusive). It stops at the first directory that is not empty.
func RemoveEmptyDirs(fs afero.Fs, root, path string) {
	if root == "" || path == "" {
		return
	}

	root, err := filepath.Abs(root)
	if err != nil {
		return
	}
	path, err = filepath.Abs(path)
	if err != nil {
		return
	}

	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return
	}

	empty, err := afero.IsEmpty(fs, path)
	if err != nil || !empty {
		return
	}
	if err := fs.Remove(path); err != nil {
		return
	}

	RemoveEmptyDirs(fs, root, filepath.Dir(path))
}
