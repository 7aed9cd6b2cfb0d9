package app

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/javi11/fwunpack/internal/container"
	fwerrors "github.com/javi11/fwunpack/internal/errors"
	"github.com/javi11/fwunpack/internal/format"
)

// FormatName is the registry name of the APP decoder.
const FormatName = "app"

func init() {
	format.RegisterFormat(FormatName, func(view *container.View, opts format.Options) (format.Decoder, error) {
		return NewDecoder(view, opts)
	}, Sniff)
}

// Sniff reports whether the view starts with an APP block after the lead pad.
func Sniff(view *container.View) bool {
	b := view.Bytes()
	if len(b) < LeadPadding+HeaderSize {
		return false
	}
	return bytes.Equal(b[LeadPadding:LeadPadding+len(Signature)], Signature[:])
}

// Decoder walks the block stream of an APP container.
type Decoder struct {
	view   *container.View
	opts   format.Options
	log    *slog.Logger
	offset int64
	index  int
	err    error

	// Header of the last decoded block, for listings.
	last BlockHeader
}

// NewDecoder creates a decoder positioned at the first block.
func NewDecoder(view *container.View, opts format.Options) (*Decoder, error) {
	if opts.Engine == nil {
		return nil, fmt.Errorf("app decoder requires a checksum engine")
	}
	return &Decoder{
		view:   view,
		opts:   opts,
		log:    slog.Default().With("component", "app-decoder"),
		offset: LeadPadding,
	}, nil
}

// Format implements format.Decoder.
func (d *Decoder) Format() string {
	return FormatName
}

// Offset returns the offset of the next block header.
func (d *Decoder) Offset() int64 {
	return d.offset
}

// LastHeader returns the header of the block behind the last returned unit.
func (d *Decoder) LastHeader() BlockHeader {
	return d.last
}

// Next implements format.Decoder.
func (d *Decoder) Next(ctx context.Context) (format.Unit, error) {
	if d.err != nil {
		return format.Unit{}, d.err
	}
	unit, err := d.next(ctx)
	if err != nil {
		d.err = err
	}
	return unit, err
}

func (d *Decoder) next(ctx context.Context) (format.Unit, error) {
	if err := ctx.Err(); err != nil {
		return format.Unit{}, err
	}

	start := d.offset
	size := d.view.Len()
	if size-start < HeaderSize {
		return format.Unit{}, io.EOF
	}

	raw, err := d.view.Slice(container.Range{Offset: start, Length: HeaderSize})
	if err != nil {
		return format.Unit{}, err
	}
	if err := d.opts.Engine.VerifyHeader(start, raw); err != nil {
		return format.Unit{}, err
	}

	h, err := DecodeBlockHeader(raw)
	if err != nil {
		return format.Unit{}, err
	}
	if err := h.Validate(); err != nil {
		return format.Unit{}, &fwerrors.MalformedContainerError{Format: FormatName, Offset: start, Reason: err.Error()}
	}

	blob := container.Range{Offset: start + HeaderSize, Length: h.BlobSize()}
	payload := container.Range{Offset: blob.End(), Length: int64(h.PayloadLength)}
	if payload.End() > size {
		return format.Unit{}, &fwerrors.TruncatedInputError{
			Format: FormatName,
			Offset: start,
			Need:   h.BlockSize(),
			Have:   size - start,
		}
	}

	d.last = h
	d.offset = payload.End() + Padding(h.BlockSize())

	unit := format.Unit{
		Index: d.index,
		Name:  h.PartitionName(),
		Range: payload,
	}
	d.index++

	if unit.Name == "" {
		d.log.WarnContext(ctx, "Found a block with no partition name, skipping",
			"offset", start,
			"bytes", payload.Length)
		unit.Kind = format.UnitSkipped
		return unit, nil
	}

	if d.opts.Verify {
		if h.ChunkSize == 0 && payload.Length > 0 {
			return format.Unit{}, &fwerrors.MalformedContainerError{
				Format: FormatName,
				Offset: start,
				Reason: fmt.Sprintf("block %q declares chunk size 0 for %d payload bytes", unit.Name, payload.Length),
			}
		}
		expected, err := d.view.Slice(blob)
		if err != nil {
			return format.Unit{}, err
		}
		if err := d.opts.Engine.VerifyPartition(ctx, unit.Name, d.view, payload, int64(h.ChunkSize), expected); err != nil {
			return format.Unit{}, err
		}
		unit.Verified = true
	}

	unit.Kind = format.UnitExtracted
	return unit, nil
}
