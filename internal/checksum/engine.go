package checksum

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/javi11/fwunpack/internal/container"
	fwerrors "github.com/javi11/fwunpack/internal/errors"
)

// DigestSize is the size of a BIN component digest.
const DigestSize = sha256.Size

// Engine runs every integrity check of a decode: header CRCs, chunked payload
// CRCs through the selected Strategy, and SHA-256 digests.
type Engine struct {
	strategy Strategy
	stats    *Stats
}

// NewEngine wraps a payload strategy. A nil strategy is allowed when payload
// verification is never requested.
func NewEngine(strategy Strategy) *Engine {
	return &Engine{strategy: strategy, stats: &Stats{}}
}

// Strategy returns the payload strategy.
func (e *Engine) Strategy() Strategy {
	return e.strategy
}

// Stats returns the engine counters.
func (e *Engine) Stats() *Stats {
	return e.stats
}

// VerifyHeader checks the embedded CRC of the APP header stored at offset.
func (e *Engine) VerifyHeader(offset int64, header []byte) error {
	expected, actual, ok, err := VerifyHeader(header)
	if err != nil {
		return &fwerrors.TruncatedInputError{Format: "app", Offset: offset, Need: HeaderSize, Have: int64(len(header))}
	}
	e.stats.Headers.Add(1)
	if !ok {
		return &fwerrors.HeaderChecksumError{Offset: offset, Expected: expected, Actual: actual}
	}
	return nil
}

// VerifyPartition computes the chunk checksums of r and compares them with
// the expected checksum blob.
func (e *Engine) VerifyPartition(ctx context.Context, name string, view *container.View, r container.Range, chunkSize int64, expected []byte) error {
	if e.strategy == nil {
		return &fwerrors.ChecksumEngineError{Backend: "none", Err: errors.New("no payload checksum backend selected")}
	}

	got, err := e.strategy.ComputePartition(ctx, view, r, chunkSize)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &fwerrors.ChecksumEngineError{Backend: e.strategy.Name(), Err: err}
	}

	e.stats.Partitions.Add(1)
	e.stats.Chunks.Add(int64(len(got) / 2))
	e.stats.Bytes.Add(r.Length)

	if !bytes.Equal(got, expected) {
		return &fwerrors.DataChecksumError{
			Name:   name,
			Offset: r.Offset,
			Length: r.Length,
			Detail: describeMismatch(got, expected),
		}
	}
	return nil
}

// VerifyDigest compares the SHA-256 of data with digest.
func (e *Engine) VerifyDigest(name string, r container.Range, data, digest []byte) error {
	sum := sha256.Sum256(data)
	e.stats.Digests.Add(1)
	e.stats.Bytes.Add(int64(len(data)))
	if !bytes.Equal(sum[:], digest) {
		return &fwerrors.DataChecksumError{
			Name:   name,
			Offset: r.Offset,
			Length: r.Length,
			Detail: fmt.Sprintf("sha256 %x, expected %x", sum[:], digest),
		}
	}
	return nil
}

func describeMismatch(got, expected []byte) string {
	if len(got) != len(expected) {
		return fmt.Sprintf("computed %d chunk checksums, checksum blob holds %d bytes", len(got)/2, len(expected))
	}
	for i := 0; i+1 < len(got); i += 2 {
		g := binary.LittleEndian.Uint16(got[i:])
		x := binary.LittleEndian.Uint16(expected[i:])
		if g != x {
			return fmt.Sprintf("chunk %d: computed 0x%04X, expected 0x%04X", i/2, g, x)
		}
	}
	return "checksum blob differs"
}
