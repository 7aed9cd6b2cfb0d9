package checksum

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/javi11/fwunpack/internal/container"
	"github.com/javi11/fwunpack/internal/progress"
)

// Backend names accepted by Select.
const (
	BackendAuto        = "auto"
	BackendAccelerated = "accelerated"
	BackendParallel    = "parallel"
)

// DefaultCancelCheckInterval is how many chunks are processed between two
// context checks in the sequential path.
const DefaultCancelCheckInterval = 1024

// Strategy computes the per-chunk checksums of a payload range and returns
// them concatenated in offset order as little-endian uint16 values.
// Every implementation must produce byte-identical output for the same input.
type Strategy interface {
	Name() string
	ComputePartition(ctx context.Context, view *container.View, r container.Range, chunkSize int64) ([]byte, error)
}

// Options configures strategy selection.
type Options struct {
	Backend  string
	Workers  int
	Progress progress.ProgressTracker
	Logger   *slog.Logger
}

// Backends returns the accepted backend names.
func Backends() []string {
	return []string{BackendAuto, BackendAccelerated, BackendParallel}
}

// Select picks the payload checksum strategy. BackendAuto probes the
// accelerated kernel and falls back to the parallel pool when it is
// unavailable; BackendAccelerated fails instead of falling back.
func Select(opts Options) (Strategy, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "checksum")

	switch opts.Backend {
	case "", BackendAuto:
		acc, err := NewAccelerated(opts.Progress)
		if err == nil {
			log.Debug("Using accelerated checksum backend")
			return acc, nil
		}
		p := NewParallel(opts.Workers, opts.Progress)
		log.Warn("Accelerated checksum backend unavailable, falling back to parallel workers",
			"workers", p.Workers(), "error", err)
		return p, nil

	case BackendAccelerated:
		return NewAccelerated(opts.Progress)

	case BackendParallel:
		p := NewParallel(opts.Workers, opts.Progress)
		log.Debug("Using parallel checksum backend", "workers", p.Workers())
		return p, nil

	default:
		return nil, fmt.Errorf("unknown checksum backend %q", opts.Backend)
	}
}
