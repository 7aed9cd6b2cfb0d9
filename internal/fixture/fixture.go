// Package fixture builds small APP and BIN containers for tests.
package fixture

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/javi11/fwunpack/internal/checksum"
)

const (
	appLeadPadding = 92
	appHeaderSize  = checksum.HeaderSize
)

// AppBlock describes one block of an APP container.
type AppBlock struct {
	Name      string
	Payload   []byte
	ChunkSize uint16
	Sequence  uint32

	// Blob overrides the checksum blob. When nil the blob is computed from
	// Payload and ChunkSize.
	Blob []byte
	// NoBlob writes a zero-length checksum blob.
	NoBlob bool

	// Signature overrides the block signature when non-nil.
	Signature []byte
	// Magic overrides the format magic number when non-zero.
	Magic uint32
	// BadHeaderChecksum stores a wrong header CRC.
	BadHeaderChecksum bool
}

// ChunkSums returns the packed chunk checksums of payload.
func ChunkSums(payload []byte, chunkSize int) []byte {
	var sums []uint16
	for start := 0; start < len(payload); start += chunkSize {
		end := min(start+chunkSize, len(payload))
		sums = append(sums, checksum.Checksum(payload[start:end]))
	}
	return checksum.PackSums(sums)
}

// AppHeader encodes the fixed header for b with a valid header CRC unless
// BadHeaderChecksum is set.
func AppHeader(b AppBlock, blobSize int) []byte {
	h := make([]byte, appHeaderSize)
	le := binary.LittleEndian

	sig := []byte{0x55, 0xAA, 0x5A, 0xA5}
	if b.Signature != nil {
		sig = b.Signature
	}
	copy(h[0:4], sig)
	le.PutUint32(h[4:], uint32(appHeaderSize+blobSize))
	magic := uint32(1)
	if b.Magic != 0 {
		magic = b.Magic
	}
	le.PutUint32(h[8:], magic)
	le.PutUint64(h[12:], 0x48574944)
	le.PutUint32(h[20:], b.Sequence)
	le.PutUint32(h[24:], uint32(len(b.Payload)))
	copy(h[28:44], "2025.01.01")
	copy(h[44:60], "12.00.00")
	copy(h[60:76], b.Name)
	le.PutUint16(h[94:], 0xFFFF)
	le.PutUint16(h[96:], b.ChunkSize)

	sum, _ := checksum.HeaderChecksum(h)
	if b.BadHeaderChecksum {
		sum ^= 0x5A5A
	}
	le.PutUint16(h[checksum.HeaderChecksumOffset:], sum)
	return h
}

// App builds an APP container holding blocks in order.
func App(blocks ...AppBlock) []byte {
	out := make([]byte, appLeadPadding)
	for _, b := range blocks {
		blob := b.Blob
		switch {
		case b.NoBlob:
			blob = nil
		case blob == nil:
			blob = ChunkSums(b.Payload, int(max(b.ChunkSize, 1)))
		}

		out = append(out, AppHeader(b, len(blob))...)
		out = append(out, blob...)
		out = append(out, b.Payload...)

		n := appHeaderSize + len(blob) + len(b.Payload)
		out = append(out, make([]byte, (4-n%4)%4)...)
	}
	return out
}

// BinComponent describes one component of a BIN package.
type BinComponent struct {
	Name    string
	Payload []byte
	// Digest overrides the SHA-256 digest when non-nil.
	Digest []byte
	// RawName overrides the encoded name field when non-nil.
	RawName []byte
}

// BinPackage describes a BIN package.
type BinPackage struct {
	Components []BinComponent
	Signature  []byte
	Version    string

	// Tag overrides; zero keeps the valid value.
	HeaderTag        uint16
	TimestampTag     uint16
	ComponentInfoTag uint16
	SignatureTag     uint16
}

const (
	binHeaderSize     = 180
	binDescriptorSize = 87
)

// Bin builds a BIN package.
func Bin(p BinPackage) []byte {
	le := binary.LittleEndian
	pick := func(v, def uint16) uint16 {
		if v != 0 {
			return v
		}
		return def
	}

	h := make([]byte, binHeaderSize)
	le.PutUint16(h[0:], pick(p.HeaderTag, 1))
	le.PutUint16(h[2:], 8)
	le.PutUint32(h[4:], binHeaderSize)
	le.PutUint32(h[8:], 1)
	copy(h[12:76], "UPDATE-0001")
	copy(h[76:140], p.Version)
	le.PutUint16(h[140:], pick(p.TimestampTag, 2))
	le.PutUint16(h[142:], 32)
	copy(h[144:160], "2025.01.01")
	copy(h[160:176], "12.00.00")
	le.PutUint16(h[176:], pick(p.ComponentInfoTag, 5))
	le.PutUint16(h[178:], uint16(len(p.Components)*binDescriptorSize))

	out := h
	for i, c := range p.Components {
		d := make([]byte, binDescriptorSize)
		name := c.RawName
		if name == nil {
			name = []byte(c.Name)
		}
		copy(d[0:32], name)
		le.PutUint16(d[32:], uint16(i+1))
		copy(d[37:47], "1.0.0")
		le.PutUint32(d[47:], uint32(len(c.Payload)))
		le.PutUint32(d[51:], uint32(len(c.Payload)))
		digest := c.Digest
		if digest == nil {
			sum := sha256.Sum256(c.Payload)
			digest = sum[:]
		}
		copy(d[55:87], digest)
		out = append(out, d...)
	}

	out = append(out, make([]byte, 16)...)

	tlv := make([]byte, 6)
	le.PutUint16(tlv[0:], pick(p.SignatureTag, 8))
	le.PutUint32(tlv[2:], uint32(len(p.Signature)))
	out = append(out, tlv...)
	out = append(out, p.Signature...)

	for _, c := range p.Components {
		out = append(out, c.Payload...)
	}
	return out
}
