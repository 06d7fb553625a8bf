package importer

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/prg-tools/prgload/internal/loader"
)

// Skip reasons accumulated in the run summary.
const (
	SkipMalformedPosition = "malformed_position"
	SkipInvalidCoordinate = "invalid_coordinate"
)

// Summary is the user-facing report of one import run.
type Summary struct {
	RunID              string              `yaml:"run_id"`
	Files              []loader.FileResult `yaml:"files"`
	ChunksProcessed    int                 `yaml:"chunks_processed"`
	ChunksFailed       int                 `yaml:"chunks_failed"`
	RecordsSplit       int64               `yaml:"records_split"`
	RecordsExtracted   int64               `yaml:"records_extracted"`
	RecordsTransformed int64               `yaml:"records_transformed"`
	Skipped            map[string]int64    `yaml:"skipped,omitempty"`
	Load               loader.Result       `yaml:"load"`
}

// WriteFile renders the summary as YAML.
func (s *Summary) WriteFile(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return eris.Wrap(err, "importer: marshal summary")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "importer: write summary %s", path)
	}
	return nil
}

// String renders a terminal-friendly report.
func (s *Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s\n", s.RunID)
	fmt.Fprintf(&b, "  files:       %d\n", len(s.Files))
	fmt.Fprintf(&b, "  chunks:      %d ok, %d failed\n", s.ChunksProcessed, s.ChunksFailed)
	fmt.Fprintf(&b, "  split:       %d records\n", s.RecordsSplit)
	fmt.Fprintf(&b, "  extracted:   %d\n", s.RecordsExtracted)
	fmt.Fprintf(&b, "  transformed: %d\n", s.RecordsTransformed)
	for reason, n := range s.Skipped {
		fmt.Fprintf(&b, "  skipped (%s): %d\n", reason, n)
	}
	fmt.Fprintf(&b, "  committed:   %d of %d submitted\n", s.Load.Committed, s.Load.Submitted)
	for _, f := range s.Load.Failures {
		fmt.Fprintf(&b, "  failed batch %d (%d records): %s\n", f.Index, f.Size, f.Error)
	}
	return b.String()
}

// stats aggregates counters across chunk workers.
type stats struct {
	mu sync.Mutex

	chunksProcessed    int
	chunksFailed       int
	recordsSplit       int64
	recordsExtracted   int64
	recordsTransformed int64
	skipped            map[string]int64
}

func newStats() *stats {
	return &stats{skipped: make(map[string]int64)}
}

func (s *stats) chunkDone(records int, failed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if failed {
		s.chunksFailed++
		return
	}
	s.chunksProcessed++
	s.recordsSplit += int64(records)
}

// applyChunk folds one successful chunk's counters in atomically.
func (s *stats) applyChunk(extracted, transformed, skipPosition, skipCoordinate int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordsExtracted += extracted
	s.recordsTransformed += transformed
	if skipPosition > 0 {
		s.skipped[SkipMalformedPosition] += skipPosition
	}
	if skipCoordinate > 0 {
		s.skipped[SkipInvalidCoordinate] += skipCoordinate
	}
}

func (s *stats) skippedTotal() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total int64
	for _, n := range s.skipped {
		total += n
	}
	return total
}

func (s *stats) fill(sum *Summary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum.ChunksProcessed = s.chunksProcessed
	sum.ChunksFailed = s.chunksFailed
	sum.RecordsSplit = s.recordsSplit
	sum.RecordsExtracted = s.recordsExtracted
	sum.RecordsTransformed = s.recordsTransformed
	if len(s.skipped) > 0 {
		sum.Skipped = make(map[string]int64, len(s.skipped))
		for k, v := range s.skipped {
			sum.Skipped[k] = v
		}
	}
}
