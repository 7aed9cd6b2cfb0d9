package checksum

import "sync/atomic"

// Stats tracks checksum engine work across a run.
type Stats struct {
	Headers    atomic.Int64
	Partitions atomic.Int64
	Chunks     atomic.Int64
	Bytes      atomic.Int64
	Digests    atomic.Int64
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Headers    int64 `json:"headers" yaml:"headers"`
	Partitions int64 `json:"partitions" yaml:"partitions"`
	Chunks     int64 `json:"chunks" yaml:"chunks"`
	Bytes      int64 `json:"bytes" yaml:"bytes"`
	Digests    int64 `json:"digests" yaml:"digests"`
}

// Snapshot creates a point-in-time copy of the stats.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Headers:    s.Headers.Load(),
		Partitions: s.Partitions.Load(),
		Chunks:     s.Chunks.Load(),
		Bytes:      s.Bytes.Load(),
		Digests:    s.Digests.Load(),
	}
}
