package bin

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"

	"github.com/javi11/fwunpack/internal/container"
	fwerrors "github.com/javi11/fwunpack/internal/errors"
	"github.com/javi11/fwunpack/internal/format"
)

// FormatName is the registry name of the BIN decoder.
const FormatName = "bin"

func init() {
	format.RegisterFormat(FormatName, func(view *container.View, opts format.Options) (format.Decoder, error) {
		return NewDecoder(view, opts)
	}, Sniff)
}

// Sniff reports whether the view starts with a valid package header.
func Sniff(view *container.View) bool {
	b := view.Bytes()
	if len(b) < PackageHeaderSize {
		return false
	}
	h, err := DecodePackageHeader(b)
	return err == nil && h.Validate() == nil
}

// Decoder yields the components of a BIN package. The header and the whole
// descriptor table are decoded when the decoder is created.
type Decoder struct {
	view       *container.View
	opts       format.Options
	log        *slog.Logger
	header     PackageHeader
	components []ComponentDescriptor
	signature  container.Range
	offset     int64
	index      int
	err        error
}

// NewDecoder decodes the package header, the component table and the
// signature TLV, leaving the decoder positioned at the first payload.
func NewDecoder(view *container.View, opts format.Options) (*Decoder, error) {
	if opts.Engine == nil {
		return nil, fmt.Errorf("bin decoder requires a checksum engine")
	}

	d := &Decoder{
		view: view,
		opts: opts,
		log:  slog.Default().With("component", "bin-decoder"),
	}
	if err := d.readTable(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Decoder) readTable() error {
	raw, err := d.read(0, PackageHeaderSize)
	if err != nil {
		return err
	}
	h, err := DecodePackageHeader(raw)
	if err != nil {
		return err
	}
	if err := h.Validate(); err != nil {
		return &fwerrors.MalformedContainerError{Format: FormatName, Offset: 0, Reason: err.Error()}
	}
	d.header = h

	off := int64(PackageHeaderSize)
	count := h.ComponentCount()
	d.components = make([]ComponentDescriptor, 0, count)
	for range count {
		raw, err := d.read(off, DescriptorSize)
		if err != nil {
			return err
		}
		c, err := DecodeComponentDescriptor(raw)
		if err != nil {
			return err
		}
		d.components = append(d.components, c)
		off += DescriptorSize
	}

	off += PackageIDSize

	tlv, err := d.read(off, SignatureTLVSize)
	if err != nil {
		return err
	}
	tag := binary.LittleEndian.Uint16(tlv[0:])
	length := binary.LittleEndian.Uint32(tlv[2:])
	if tag != TagSignature {
		return &fwerrors.MalformedContainerError{
			Format: FormatName,
			Offset: off,
			Reason: fmt.Sprintf("signature tag %d, expected %d", tag, TagSignature),
		}
	}
	d.signature = container.Range{Offset: off + SignatureTLVSize, Length: int64(length)}
	d.offset = d.signature.End()

	return nil
}

// read returns n bytes at off or a TruncatedInputError.
func (d *Decoder) read(off, n int64) ([]byte, error) {
	r := container.Range{Offset: off, Length: n}
	if !d.view.Contains(r) {
		return nil, &fwerrors.TruncatedInputError{
			Format: FormatName,
			Offset: off,
			Need:   n,
			Have:   max(d.view.Len()-off, 0),
		}
	}
	return d.view.Slice(r)
}

// Format implements format.Decoder.
func (d *Decoder) Format() string {
	return FormatName
}

// Header returns the decoded package header.
func (d *Decoder) Header() PackageHeader {
	return d.header
}

// Components returns the decoded descriptor table.
func (d *Decoder) Components() []ComponentDescriptor {
	return d.components
}

// Signature returns the range of the signature payload.
func (d *Decoder) Signature() container.Range {
	return d.signature
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
	if d.index >= len(d.components) {
		return format.Unit{}, io.EOF
	}

	c := d.components[d.index]
	data, err := d.read(d.offset, int64(c.Size))
	if err != nil {
		return format.Unit{}, err
	}

	unit := format.Unit{
		Index: d.index,
		Name:  c.Name(),
		Range: container.Range{Offset: d.offset, Length: int64(c.Size)},
	}
	d.index++
	d.offset = unit.Range.End()

	if unit.Name == "" {
		d.log.WarnContext(ctx, "Found a component with no name, skipping",
			"offset", unit.Range.Offset,
			"bytes", unit.Range.Length)
		unit.Kind = format.UnitSkipped
		return unit, nil
	}

	if d.opts.Verify {
		if err := d.opts.Engine.VerifyDigest(unit.Name, unit.Range, data, c.Digest[:]); err != nil {
			return format.Unit{}, err
		}
		unit.Verified = true
	}

	unit.Kind = format.UnitExtracted
	return unit, nil
}
