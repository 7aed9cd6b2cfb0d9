package checksum

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"

	"github.com/javi11/fwunpack/internal/container"
	"github.com/javi11/fwunpack/internal/progress"
)

// slicing8 extends the byte table so eight input bytes are folded per step.
// slicing8[k][v] is the CRC contribution of byte v followed by k zero bytes.
var slicing8 = buildSlicing8(updateCRC)

func buildSlicing8(c *CRC16) *[8][256]uint16 {
	t := new([8][256]uint16)
	t[0] = c.table
	for i := range 256 {
		v := t[0][i]
		for k := 1; k < 8; k++ {
			v = (v >> 8) ^ t[0][byte(v)]
			t[k][i] = v
		}
	}
	return t
}

func checksumSlicing8(data []byte) uint16 {
	crc := DefaultInitial
	tab := slicing8
	for len(data) >= 8 {
		crc ^= uint16(data[0]) | uint16(data[1])<<8
		crc = tab[0][data[7]] ^ tab[1][data[6]] ^ tab[2][data[5]] ^ tab[3][data[4]] ^
			tab[4][data[3]] ^ tab[5][data[2]] ^ tab[6][crc>>8] ^ tab[7][crc&0xFF]
		data = data[8:]
	}
	return updateCRC.update(crc, data) ^ DefaultXorOut
}

// probeAccelerated self-tests the accelerated kernel before it is selected.
// Tests replace it to simulate an unavailable backend.
var probeAccelerated = func() error {
	if got := checksumSlicing8([]byte("123456789")); got != CheckValue {
		return fmt.Errorf("check value mismatch: got 0x%04X, expected 0x%04X", got, CheckValue)
	}
	sample := bytes.Repeat([]byte{0x55, 0xAA, 0x5A, 0xA5, 0x00, 0xFF, 0x13}, 37)
	if checksumSlicing8(sample) != Checksum(sample) {
		return fmt.Errorf("kernel disagrees with reference table")
	}
	return nil
}

// Accelerated computes all chunk checksums in a single pass over the
// in-process mapping with the slicing-by-8 kernel.
type Accelerated struct {
	progress progress.ProgressTracker
}

// NewAccelerated probes the kernel and returns the strategy, or an error when
// it is unavailable on this platform.
func NewAccelerated(tracker progress.ProgressTracker) (*Accelerated, error) {
	if err := probeAccelerated(); err != nil {
		return nil, fmt.Errorf("accelerated checksum backend unavailable: %w", err)
	}
	if tracker == nil {
		tracker = progress.Noop{}
	}
	return &Accelerated{progress: tracker}, nil
}

// Name implements Strategy.
func (a *Accelerated) Name() string {
	return BackendAccelerated
}

// ComputePartition implements Strategy.
func (a *Accelerated) ComputePartition(ctx context.Context, view *container.View, r container.Range, chunkSize int64) ([]byte, error) {
	chunks, err := PlanChunks(r, chunkSize)
	if err != nil {
		return nil, err
	}
	data, err := view.Slice(r)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 2*len(chunks))
	for i, c := range chunks {
		if i%DefaultCancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		rel := c.Range.Offset - r.Offset
		sum := checksumSlicing8(data[rel : rel+c.Range.Length])
		binary.LittleEndian.PutUint16(out[2*i:], sum)
		a.progress.Update(i+1, len(chunks))
	}
	return out, nil
}
