package checksum

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"github.com/javi11/fwunpack/internal/container"
	"github.com/javi11/fwunpack/internal/progress"
	"golang.org/x/sync/errgroup"
)

const defaultQueueSize = 128

type chunkResult struct {
	offset int64
	length int64
	sum    uint16
}

// Parallel partitions chunk tasks across a fixed worker pool. Every worker
// maps the backing file on its own and only shares the path and offsets with
// the decoder. Results arrive unordered and are sorted by absolute offset.
type Parallel struct {
	workers   int
	queueSize int
	progress  progress.ProgressTracker
	open      func(path string) (*container.View, error)
}

// NewParallel creates the fallback strategy. workers <= 0 uses the CPU count.
func NewParallel(workers int, tracker progress.ProgressTracker) *Parallel {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if tracker == nil {
		tracker = progress.Noop{}
	}
	return &Parallel{
		workers:   workers,
		queueSize: defaultQueueSize,
		progress:  tracker,
		open:      container.Open,
	}
}

// Name implements Strategy.
func (p *Parallel) Name() string {
	return BackendParallel
}

// Workers returns the pool size.
func (p *Parallel) Workers() int {
	return p.workers
}

// ComputePartition implements Strategy.
func (p *Parallel) ComputePartition(ctx context.Context, view *container.View, r container.Range, chunkSize int64) ([]byte, error) {
	chunks, err := PlanChunks(r, chunkSize)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return []byte{}, nil
	}
	if !view.Contains(r) {
		return nil, fmt.Errorf("range [%d, %d) outside container of %d bytes", r.Offset, r.End(), view.Len())
	}

	tasks := make(chan Chunk, p.queueSize)
	results := make(chan chunkResult, p.queueSize)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(tasks)
		for _, c := range chunks {
			select {
			case tasks <- c:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	var workersDone sync.WaitGroup
	for range min(p.workers, len(chunks)) {
		workersDone.Add(1)
		g.Go(func() error {
			defer workersDone.Done()
			return p.work(gctx, view, tasks, results)
		})
	}

	go func() {
		workersDone.Wait()
		close(results)
	}()

	collected := make([]chunkResult, 0, len(chunks))
	for res := range results {
		collected = append(collected, res)
		p.progress.Update(len(collected), len(chunks))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return mergeResults(r, collected, len(chunks))
}

// work drains the task queue. The mapping is opened once per worker.
func (p *Parallel) work(ctx context.Context, view *container.View, tasks <-chan Chunk, results chan<- chunkResult) error {
	data, release, err := p.mapping(view)
	if err != nil {
		return err
	}
	defer release()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c, ok := <-tasks:
			if !ok {
				return nil
			}
			if c.Range.End() > int64(len(data)) {
				return fmt.Errorf("chunk %d [%d, %d) outside worker mapping of %d bytes",
					c.Index, c.Range.Offset, c.Range.End(), len(data))
			}
			res := chunkResult{
				offset: c.Range.Offset,
				length: c.Range.Length,
				sum:    Checksum(data[c.Range.Offset:c.Range.End()]),
			}
			select {
			case results <- res:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// mapping returns a read-only mapping private to the calling worker. Views
// without a backing file are shared directly since they are never written.
func (p *Parallel) mapping(view *container.View) ([]byte, func(), error) {
	if view.Path() == "" {
		return view.Bytes(), func() {}, nil
	}
	v, err := p.open(view.Path())
	if err != nil {
		return nil, nil, fmt.Errorf("worker failed to map %s: %w", view.Path(), err)
	}
	return v.Bytes(), func() { _ = v.Close() }, nil
}

// mergeResults orders chunk results by absolute offset and checks that they
// tile r exactly before packing them.
func mergeResults(r container.Range, results []chunkResult, want int) ([]byte, error) {
	if len(results) != want {
		return nil, fmt.Errorf("collected %d chunk results, expected %d", len(results), want)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].offset < results[j].offset
	})

	covered := container.NewRangeSet()
	sums := make([]uint16, len(results))
	for i, res := range results {
		if covered.Insert(container.Range{Offset: res.offset, Length: res.length}) {
			return nil, fmt.Errorf("chunk at offset %d overlaps another chunk", res.offset)
		}
		sums[i] = res.sum
	}
	if covered.Count() != 1 || !covered.Present(r) || covered.Size() != r.Length {
		return nil, fmt.Errorf("chunk results do not cover [%d, %d) exactly", r.Offset, r.End())
	}

	return PackSums(sums), nil
}
