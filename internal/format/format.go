// Package format defines the unit model shared by the container decoders, the
// registry the decoders add themselves to, and format detection.
package format

import (
	"context"
	"fmt"
	"sort"

	"github.com/javi11/fwunpack/internal/checksum"
	"github.com/javi11/fwunpack/internal/container"
	fwerrors "github.com/javi11/fwunpack/internal/errors"
)

// UnitKind tells whether a unit carries a named payload or is a placeholder.
type UnitKind int

const (
	// UnitExtracted is a named payload that is handed to the sink.
	UnitExtracted UnitKind = iota
	// UnitSkipped is an anonymous block or component. It is not an error.
	UnitSkipped
)

func (k UnitKind) String() string {
	switch k {
	case UnitExtracted:
		return "extracted"
	case UnitSkipped:
		return "skipped"
	default:
		return fmt.Sprintf("UnitKind(%d)", int(k))
	}
}

// Unit is one logical entry of a container.
type Unit struct {
	Index    int
	Name     string
	Range    container.Range
	Kind     UnitKind
	Verified bool
}

// Decoder is a forward-only cursor over a container. Next returns io.EOF once
// the container is exhausted. After any other error the decoder must not be
// used again.
type Decoder interface {
	Format() string
	Next(ctx context.Context) (Unit, error)
}

// Options configures a decoder.
type Options struct {
	// Verify enables payload checksum or digest verification. Header CRCs
	// of APP blocks are always checked.
	Verify bool
	// Engine runs the integrity checks. Required.
	Engine *checksum.Engine
}

// Factory creates a decoder over view.
type Factory func(view *container.View, opts Options) (Decoder, error)

type registration struct {
	factory Factory
	sniff   func(view *container.View) bool
}

var formats = map[string]registration{}

// RegisterFormat registers a decoder factory under name. sniff reports whether
// a view looks like this format and may be nil.
func RegisterFormat(name string, f Factory, sniff func(view *container.View) bool) {
	if _, ok := formats[name]; ok {
		panic("attempt to register duplicate format " + name)
	}
	formats[name] = registration{factory: f, sniff: sniff}
}

// GetFormat gets a decoder factory.
func GetFormat(name string) (Factory, bool) {
	r, ok := formats[name]
	return r.factory, ok
}

// GetFormats gets all registered format names in sorted order.
func GetFormats() []string {
	f := []string{}
	for n := range formats {
		f = append(f, n)
	}
	sort.Strings(f)
	return f
}

// Detect returns the name of the first registered format whose sniffer
// accepts the view. A view no sniffer accepts is a malformed container.
func Detect(view *container.View) (string, error) {
	for _, name := range GetFormats() {
		if s := formats[name].sniff; s != nil && s(view) {
			return name, nil
		}
	}
	return "", &fwerrors.MalformedContainerError{
		Format: "auto",
		Reason: fmt.Sprintf("unrecognized container format (%d bytes)", view.Len()),
	}
}

// NewDecoder creates a decoder for name. "auto" or "" runs Detect first.
func NewDecoder(name string, view *container.View, opts Options) (Decoder, error) {
	if opts.Engine == nil {
		return nil, fmt.Errorf("decoder requires a checksum engine")
	}
	if name == "" || name == "auto" {
		detected, err := Detect(view)
		if err != nil {
			return nil, err
		}
		name = detected
	}
	f, ok := GetFormat(name)
	if !ok {
		return nil, fmt.Errorf("no format called '%s'", name)
	}
	return f(view, opts)
}
