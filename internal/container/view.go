// Package container provides the read-only, memory-mapped view over an
// update package that every decoder and the checksum engine read from.
package container

import (
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
)

// Range is a half-open byte range [Offset, Offset+Length) within a View.
type Range struct {
	Offset int64
	Length int64
}

// End returns the first offset past the range.
func (r Range) End() int64 {
	return r.Offset + r.Length
}

// View is an immutable byte-addressable view over an input file. The bytes
// returned by Bytes and Slice must never be written to.
type View struct {
	path string
	file *os.File
	data mmap.MMap
	buf  []byte
}

// Open maps the file at path read-only. Empty files are represented without
// a mapping since a zero-length region cannot be mapped.
func Open(path string) (*View, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open container: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to stat container: %w", err)
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, fmt.Errorf("container %s is a directory", path)
	}

	v := &View{path: path, file: f}
	if info.Size() == 0 {
		return v, nil
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to map container: %w", err)
	}
	v.data = m
	v.buf = m

	return v, nil
}

// FromBytes wraps an in-memory buffer. The returned view has no backing path,
// so workers that need their own mapping read from buf directly.
func FromBytes(buf []byte) *View {
	return &View{buf: buf}
}

// Path returns the backing file path, or "" for in-memory views.
func (v *View) Path() string {
	return v.path
}

// Len returns the size of the view in bytes.
func (v *View) Len() int64 {
	return int64(len(v.buf))
}

// Bytes returns the whole view.
func (v *View) Bytes() []byte {
	return v.buf
}

// Contains reports whether r lies entirely inside the view.
func (v *View) Contains(r Range) bool {
	return r.Offset >= 0 && r.Length >= 0 && r.End() <= v.Len()
}

// Slice returns the bytes covered by r.
func (v *View) Slice(r Range) ([]byte, error) {
	if !v.Contains(r) {
		return nil, fmt.Errorf("range [%d, %d) outside container of %d bytes", r.Offset, r.End(), v.Len())
	}
	return v.buf[r.Offset:r.End()], nil
}

// Close unmaps the view and closes the backing file.
func (v *View) Close() error {
	var err error
	if v.data != nil {
		if uerr := v.data.Unmap(); uerr != nil {
			err = fmt.Errorf("failed to unmap container: %w", uerr)
		}
		v.data = nil
	}
	if v.file != nil {
		if cerr := v.file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close container: %w", cerr)
		}
		v.file = nil
	}
	v.buf = nil
	return err
}
