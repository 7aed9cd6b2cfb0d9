package checksum

import (
	"encoding/binary"
	"fmt"

	"github.com/javi11/fwunpack/internal/container"
)

// Chunk is one independently checksummed slice of a payload.
type Chunk struct {
	Index int
	Range container.Range
}

// ChunkCount returns how many chunks a payload of length bytes splits into.
func ChunkCount(length, chunkSize int64) int64 {
	if length <= 0 || chunkSize <= 0 {
		return 0
	}
	return (length + chunkSize - 1) / chunkSize
}

// PlanChunks splits r into consecutive chunks of chunkSize bytes. The last
// chunk holds the remainder. An empty range yields no chunks.
func PlanChunks(r container.Range, chunkSize int64) ([]Chunk, error) {
	if r.Length < 0 {
		return nil, fmt.Errorf("negative payload length %d", r.Length)
	}
	if r.Length == 0 {
		return nil, nil
	}
	if chunkSize <= 0 {
		return nil, fmt.Errorf("invalid chunk size %d for %d byte payload", chunkSize, r.Length)
	}

	n := ChunkCount(r.Length, chunkSize)
	chunks := make([]Chunk, 0, n)
	for i := range n {
		start := i * chunkSize
		length := min(chunkSize, r.Length-start)
		chunks = append(chunks, Chunk{
			Index: int(i),
			Range: container.Range{Offset: r.Offset + start, Length: length},
		})
	}
	return chunks, nil
}

// PackSums encodes chunk checksums as a little-endian uint16 array.
func PackSums(sums []uint16) []byte {
	out := make([]byte, 2*len(sums))
	for i, s := range sums {
		binary.LittleEndian.PutUint16(out[2*i:], s)
	}
	return out
}
