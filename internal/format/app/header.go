// Package app decodes APP update containers: a 92-byte lead pad followed by
// a stream of self-describing blocks.
//
// Block layout (little-endian):
//
//	+--------------------+-----------------+-----------+-------------+
//	| header (98 bytes)  | checksum blob   | payload   | pad to 4    |
//	|                    | headerLen - 98  | dataLen   | 0..3 bytes  |
//	+--------------------+-----------------+-----------+-------------+
package app

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/javi11/fwunpack/internal/checksum"
)

const (
	// LeadPadding is the number of bytes before the first block.
	LeadPadding = 92

	// HeaderSize is the size of the fixed block header.
	HeaderSize = checksum.HeaderSize

	// MagicNumber is the required value of the format magic field.
	MagicNumber = 1
)

// Signature opens every block header.
var Signature = [4]byte{0x55, 0xAA, 0x5A, 0xA5}

// Field offsets within the block header.
const (
	offSignature     = 0
	offHeaderLength  = 4
	offMagic         = 8
	offHardwareID    = 12
	offSequence      = 20
	offPayloadLength = 24
	offDate          = 28
	offTime          = 44
	offName          = 60
	offReserved      = 76
	offChecksum      = checksum.HeaderChecksumOffset
	offConstant      = 94
	// Some UPDATE.APP unpackers read the chunk size from 94 instead.
	offChunkSize     = 96
)

// BlockHeader is the fixed header of one APP block.
type BlockHeader struct {
	Signature      [4]byte
	HeaderLength   uint32
	Magic          uint32
	HardwareID     uint64
	Sequence       uint32
	PayloadLength  uint32
	Date           [16]byte
	Time           [16]byte
	Name           [16]byte
	Reserved       [16]byte
	HeaderChecksum uint16
	Constant       uint16
	ChunkSize      uint16
}

// DecodeBlockHeader decodes the fixed header at the start of b. It checks
// only the length; use Validate for the structural invariants.
func DecodeBlockHeader(b []byte) (BlockHeader, error) {
	var h BlockHeader
	if len(b) < HeaderSize {
		return h, fmt.Errorf("block header needs %d bytes, got %d", HeaderSize, len(b))
	}

	le := binary.LittleEndian
	copy(h.Signature[:], b[offSignature:])
	h.HeaderLength = le.Uint32(b[offHeaderLength:])
	h.Magic = le.Uint32(b[offMagic:])
	h.HardwareID = le.Uint64(b[offHardwareID:])
	h.Sequence = le.Uint32(b[offSequence:])
	h.PayloadLength = le.Uint32(b[offPayloadLength:])
	copy(h.Date[:], b[offDate:])
	copy(h.Time[:], b[offTime:])
	copy(h.Name[:], b[offName:])
	copy(h.Reserved[:], b[offReserved:])
	h.HeaderChecksum = le.Uint16(b[offChecksum:])
	h.Constant = le.Uint16(b[offConstant:])
	h.ChunkSize = le.Uint16(b[offChunkSize:])

	return h, nil
}

// Encode writes the header into a new 98-byte slice. The checksum field is
// written as stored in h.
func (h BlockHeader) Encode() []byte {
	b := make([]byte, HeaderSize)
	le := binary.LittleEndian
	copy(b[offSignature:], h.Signature[:])
	le.PutUint32(b[offHeaderLength:], h.HeaderLength)
	le.PutUint32(b[offMagic:], h.Magic)
	le.PutUint64(b[offHardwareID:], h.HardwareID)
	le.PutUint32(b[offSequence:], h.Sequence)
	le.PutUint32(b[offPayloadLength:], h.PayloadLength)
	copy(b[offDate:offDate+16], h.Date[:])
	copy(b[offTime:offTime+16], h.Time[:])
	copy(b[offName:offName+16], h.Name[:])
	copy(b[offReserved:offReserved+16], h.Reserved[:])
	le.PutUint16(b[offChecksum:], h.HeaderChecksum)
	le.PutUint16(b[offConstant:], h.Constant)
	le.PutUint16(b[offChunkSize:], h.ChunkSize)
	return b
}

// Validate checks the signature, the magic number and the header length.
func (h BlockHeader) Validate() error {
	if h.Signature != Signature {
		return fmt.Errorf("bad block signature % X", h.Signature[:])
	}
	if h.Magic != MagicNumber {
		return fmt.Errorf("bad format magic number %d", h.Magic)
	}
	if h.HeaderLength < HeaderSize {
		return fmt.Errorf("header length %d shorter than %d", h.HeaderLength, HeaderSize)
	}
	return nil
}

// PartitionName returns the name with NUL padding removed. Invalid UTF-8 is
// dropped. An empty result marks an anonymous block.
func (h BlockHeader) PartitionName() string {
	return cString(h.Name[:])
}

// DateString returns the build date field.
func (h BlockHeader) DateString() string {
	return cString(h.Date[:])
}

// TimeString returns the build time field.
func (h BlockHeader) TimeString() string {
	return cString(h.Time[:])
}

// BlobSize returns the size of the checksum blob that follows the header.
func (h BlockHeader) BlobSize() int64 {
	return int64(h.HeaderLength) - HeaderSize
}

// BlockSize returns header, blob and payload size without padding.
func (h BlockHeader) BlockSize() int64 {
	return int64(h.HeaderLength) + int64(h.PayloadLength)
}

// Padding returns the bytes needed to align a block of n bytes to 4.
func Padding(n int64) int64 {
	return (4 - n%4) % 4
}

func cString(b []byte) string {
	return strings.ToValidUTF8(string(bytes.Trim(b, "\x00")), "")
}
