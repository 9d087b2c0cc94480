// Package stats implements the Stats Reporter: a 1-second sampler that
// turns Connection Registry counter deltas into an instantaneous
// bit-rate and renders one line to the terminal.
//
// Grounded on the teacher's StatsTracker.backgroundUpdater (ticker-driven
// rolling window over a byte counter) and its formatBytes helper, reused
// here as a throughput renderer instead of a JSON API backend — the wire
// protocol this proxy implements has no stats HTTP surface.
package stats

import (
	"fmt"
	"time"

	"dpiproxy/internal/registry"
	"dpiproxy/internal/ui"
)

const sampleInterval = 1 * time.Second

// Reporter periodically samples a Registry and prints a throughput line.
// Construct with New and run with Start; it has no influence on
// correctness and can be silenced entirely with quiet.
type Reporter struct {
	registry *registry.Registry
	quiet    bool

	lastBytesIn  uint64
	lastBytesOut uint64
}

// New builds a Reporter over reg. When quiet is true, Start still samples
// but never prints.
func New(reg *registry.Registry, quiet bool) *Reporter {
	return &Reporter{registry: reg, quiet: quiet}
}

// Start runs the sampling loop until done is closed. Each tick computes the
// bit-rate delta since the previous sample and renders it.
func (r *Reporter) Start(done <-chan struct{}) {
	ticker := time.NewTicker(sampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.sample()
		case <-done:
			return
		}
	}
}

func (r *Reporter) sample() {
	snap := r.registry.Snapshot()

	inDelta := snap.BytesIn - r.lastBytesIn
	outDelta := snap.BytesOut - r.lastBytesOut
	r.lastBytesIn = snap.BytesIn
	r.lastBytesOut = snap.BytesOut

	if r.quiet {
		return
	}

	counters := ui.PadRight(fmt.Sprintf("conns=%d allowed=%d blocked=%d",
		snap.TotalConnections, snap.AllowedConnections, snap.BlockedConnections), 36)
	line := fmt.Sprintf("%s %s/s in  %s/s out", counters, formatBitrate(inDelta), formatBitrate(outDelta))
	ui.LogMetric("throughput", line, "")
}

// formatBitrate converts a per-second byte delta into a human-readable
// bits-per-second figure.
func formatBitrate(bytesPerSec uint64) string {
	bits := bytesPerSec * 8
	switch {
	case bits >= 1_000_000_000:
		return fmt.Sprintf("%.1fGb", float64(bits)/1_000_000_000)
	case bits >= 1_000_000:
		return fmt.Sprintf("%.1fMb", float64(bits)/1_000_000)
	case bits >= 1_000:
		return fmt.Sprintf("%.1fKb", float64(bits)/1_000)
	default:
		return fmt.Sprintf("%db", bits)
	}
}
