// Package bin decodes BIN update packages: a TLV package header, a table of
// fixed-size component descriptors, a signature TLV and then the component
// payloads back to back.
package bin

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/javi11/fwunpack/internal/checksum"
)

// TLV tags required by the package layout.
const (
	TagPackageHeader = 1
	TagTimestamp     = 2
	TagComponentInfo = 5
	TagSignature     = 8
)

const (
	// PackageHeaderSize is the size of the fixed package header.
	PackageHeaderSize = 180

	// DescriptorSize is the stride of the component descriptor table.
	DescriptorSize = 87

	// PackageIDSize is the size of the describe-package id after the table.
	PackageIDSize = 16

	// SignatureTLVSize is the size of the signature tag and length fields.
	SignatureTLVSize = 6
)

// PackageHeader is the fixed header at offset 0.
type PackageHeader struct {
	HeaderTag        uint16
	HeaderSize       uint16
	PackageInfoLen   uint32
	FileVersion      uint32
	ProductUpdateID  [64]byte
	SoftwareVersion  [64]byte
	TimestampTag     uint16
	TimestampSize    uint16
	Date             [16]byte
	Time             [16]byte
	ComponentInfoTag uint16
	ComponentInfoLen uint16
}

// DecodePackageHeader decodes the header at the start of b. It checks only
// the length; use Validate for the tags.
func DecodePackageHeader(b []byte) (PackageHeader, error) {
	var h PackageHeader
	if len(b) < PackageHeaderSize {
		return h, fmt.Errorf("package header needs %d bytes, got %d", PackageHeaderSize, len(b))
	}

	le := binary.LittleEndian
	h.HeaderTag = le.Uint16(b[0:])
	h.HeaderSize = le.Uint16(b[2:])
	h.PackageInfoLen = le.Uint32(b[4:])
	h.FileVersion = le.Uint32(b[8:])
	copy(h.ProductUpdateID[:], b[12:76])
	copy(h.SoftwareVersion[:], b[76:140])
	h.TimestampTag = le.Uint16(b[140:])
	h.TimestampSize = le.Uint16(b[142:])
	copy(h.Date[:], b[144:160])
	copy(h.Time[:], b[160:176])
	h.ComponentInfoTag = le.Uint16(b[176:])
	h.ComponentInfoLen = le.Uint16(b[178:])

	return h, nil
}

// Encode writes the header into a new slice of PackageHeaderSize bytes.
func (h PackageHeader) Encode() []byte {
	b := make([]byte, PackageHeaderSize)
	le := binary.LittleEndian
	le.PutUint16(b[0:], h.HeaderTag)
	le.PutUint16(b[2:], h.HeaderSize)
	le.PutUint32(b[4:], h.PackageInfoLen)
	le.PutUint32(b[8:], h.FileVersion)
	copy(b[12:76], h.ProductUpdateID[:])
	copy(b[76:140], h.SoftwareVersion[:])
	le.PutUint16(b[140:], h.TimestampTag)
	le.PutUint16(b[142:], h.TimestampSize)
	copy(b[144:160], h.Date[:])
	copy(b[160:176], h.Time[:])
	le.PutUint16(b[176:], h.ComponentInfoTag)
	le.PutUint16(b[178:], h.ComponentInfoLen)
	return b
}

// Validate checks the three TLV tags.
func (h PackageHeader) Validate() error {
	if h.HeaderTag != TagPackageHeader {
		return fmt.Errorf("package header tag %d, expected %d", h.HeaderTag, TagPackageHeader)
	}
	if h.TimestampTag != TagTimestamp {
		return fmt.Errorf("timestamp tag %d, expected %d", h.TimestampTag, TagTimestamp)
	}
	if h.ComponentInfoTag != TagComponentInfo {
		return fmt.Errorf("component info tag %d, expected %d", h.ComponentInfoTag, TagComponentInfo)
	}
	return nil
}

// ComponentCount returns how many descriptors the table holds.
func (h PackageHeader) ComponentCount() int {
	return int(h.ComponentInfoLen) / DescriptorSize
}

// SoftwareVersionString returns the software version with NUL padding removed.
func (h PackageHeader) SoftwareVersionString() string {
	return cString(h.SoftwareVersion[:])
}

// ComponentDescriptor is one entry of the component table.
type ComponentDescriptor struct {
	RawName      [32]byte
	ID           uint16
	ResourceType uint8
	Flag         uint8
	Type         uint8
	Version      [10]byte
	Size         uint32
	OriginalSize uint32
	Digest       [checksum.DigestSize]byte
}

// DecodeComponentDescriptor decodes one descriptor at the start of b.
func DecodeComponentDescriptor(b []byte) (ComponentDescriptor, error) {
	var c ComponentDescriptor
	if len(b) < DescriptorSize {
		return c, fmt.Errorf("component descriptor needs %d bytes, got %d", DescriptorSize, len(b))
	}

	le := binary.LittleEndian
	copy(c.RawName[:], b[0:32])
	c.ID = le.Uint16(b[32:])
	c.ResourceType = b[34]
	c.Flag = b[35]
	c.Type = b[36]
	copy(c.Version[:], b[37:47])
	c.Size = le.Uint32(b[47:])
	c.OriginalSize = le.Uint32(b[51:])
	copy(c.Digest[:], b[55:87])

	return c, nil
}

// Encode writes the descriptor into a new slice of DescriptorSize bytes.
func (c ComponentDescriptor) Encode() []byte {
	b := make([]byte, DescriptorSize)
	le := binary.LittleEndian
	copy(b[0:32], c.RawName[:])
	le.PutUint16(b[32:], c.ID)
	b[34] = c.ResourceType
	b[35] = c.Flag
	b[36] = c.Type
	copy(b[37:47], c.Version[:])
	le.PutUint32(b[47:], c.Size)
	le.PutUint32(b[51:], c.OriginalSize)
	copy(b[55:87], c.Digest[:])
	return b
}

// Name returns the component name: everything before the first NUL with path
// separators removed. An empty name marks a placeholder component.
func (c ComponentDescriptor) Name() string {
	raw := c.RawName[:]
	if i := bytes.IndexByte(raw, 0); i >= 0 {
		raw = raw[:i]
	}
	name := strings.ToValidUTF8(string(raw), "")
	return strings.NewReplacer("/", "", "\\", "").Replace(name)
}

// VersionString returns the version field with NUL padding removed.
func (c ComponentDescriptor) VersionString() string {
	return cString(c.Version[:])
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return strings.ToValidUTF8(string(b), "")
}
