package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/javi11/fwunpack/internal/container"
	"github.com/javi11/fwunpack/internal/format"
)

// Summary describes a finished or aborted run.
type Summary struct {
	Format    string        `yaml:"format"`
	Units     int           `yaml:"units"`
	Extracted int           `yaml:"extracted"`
	Skipped   int           `yaml:"skipped"`
	Verified  int           `yaml:"verified"`
	Bytes     int64         `yaml:"bytes"`
	Duration  time.Duration `yaml:"duration"`
}

// Runner drains a decoder into a sink.
type Runner struct {
	log *slog.Logger

	// OnUnit is called for every unit after it has been handled. action is
	// empty for skipped units and when no sink is set.
	OnUnit func(u format.Unit, action Action)
}

// NewRunner creates a runner logging through logger.
func NewRunner(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{log: logger.With("component", "extract")}
}

// Run decodes every unit of view and writes the extracted ones to sink. A nil
// sink only decodes and verifies. The first error aborts the run; files
// already written stay on disk.
func (r *Runner) Run(ctx context.Context, dec format.Decoder, view *container.View, sink Sink) (Summary, error) {
	start := time.Now()
	sum := Summary{Format: dec.Format()}

	for {
		u, err := dec.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			sum.Duration = time.Since(start)
			return sum, err
		}
		sum.Units++

		if u.Kind == format.UnitSkipped {
			sum.Skipped++
			r.notify(u, "")
			continue
		}

		var action Action
		if sink != nil {
			data, err := view.Slice(u.Range)
			if err != nil {
				sum.Duration = time.Since(start)
				return sum, fmt.Errorf("unit %q: %w", u.Name, err)
			}
			action, err = sink.Write(u.Name, data)
			if err != nil {
				sum.Duration = time.Since(start)
				return sum, err
			}
			verb := "Creating"
			if action == ActionAppend {
				verb = "Appending to"
			}
			r.log.InfoContext(ctx, fmt.Sprintf("%s %q", verb, u.Name),
				"name", u.Name,
				"bytes", u.Range.Length,
				"action", action,
				"verified", u.Verified)
		}

		sum.Extracted++
		sum.Bytes += u.Range.Length
		if u.Verified {
			sum.Verified++
		}
		r.notify(u, action)
	}

	sum.Duration = time.Since(start)
	return sum, nil
}

func (r *Runner) notify(u format.Unit, action Action) {
	if r.OnUnit != nil {
		r.OnUnit(u, action)
	}
}
