// Package importer orchestrates an import run: split source files into
// fragments under a scoped workdir, process chunks on a worker pool,
// and drain geocoded records through a single batch writer.
package importer

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/prg-tools/prgload/internal/db"
	"github.com/prg-tools/prgload/internal/extractor"
	"github.com/prg-tools/prgload/internal/loader"
	"github.com/prg-tools/prgload/internal/model"
	"github.com/prg-tools/prgload/internal/projection"
	"github.com/prg-tools/prgload/internal/splitter"
)

// Config is the immutable run configuration. Components receive it as
// an argument; nothing reads ambient globals.
type Config struct {
	SourceDir   string
	Schema      string
	RecordTag   string
	ChunkSize   int
	BatchSize   int
	Concurrency int
	TempRoot    string
	Prefixes    []string // namespace prefixes to normalize; nil = defaults
}

// runner carries the shared pieces of one run.
type runner struct {
	cfg   Config
	recCh chan<- model.AddressPoint
	stats *stats
	wd    *Workdir
	log   *zap.Logger
}

// Run executes a full import and returns its summary. The summary is
// returned even when the run fails partway, so callers can report what
// did happen.
func Run(ctx context.Context, pool db.Pool, cfg Config) (*Summary, error) {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}

	runID := uuid.NewString()
	log := zap.L().With(
		zap.String("component", "importer"),
		zap.String("run_id", runID),
	)
	summary := &Summary{RunID: runID}

	files, err := sourceFiles(cfg.SourceDir)
	if err != nil {
		return summary, err
	}
	if len(files) == 0 {
		log.Warn("no source files found", zap.String("dir", cfg.SourceDir))
		return summary, nil
	}

	if err := Migrate(ctx, pool, cfg.Schema); err != nil {
		return summary, err
	}

	wd, err := NewWorkdir(cfg.TempRoot)
	if err != nil {
		return summary, err
	}

	// Single writer task owns all bulk inserts; chunk workers feed it
	// over a bounded channel.
	w := loader.NewWriter(pool, cfg.Schema, cfg.BatchSize)
	recCh := make(chan model.AddressPoint, cfg.BatchSize)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for p := range recCh {
			if err := w.Add(ctx, p); err != nil {
				// Cancelled: discard buffered records without a
				// final partial flush.
				for range recCh {
				}
				return
			}
		}
		if ctx.Err() == nil {
			w.Flush(ctx)
		}
	}()

	r := &runner{
		cfg:   cfg,
		recCh: recCh,
		stats: newStats(),
		wd:    wd,
		log:   log,
	}

	var runErr error
	for _, name := range files {
		skippedBefore := r.stats.skippedTotal()

		fr, err := r.processFile(ctx, filepath.Join(cfg.SourceDir, name))
		if err != nil {
			runErr = err
			break
		}

		fr.Skipped = r.stats.skippedTotal() - skippedBefore
		summary.Files = append(summary.Files, fr)
	}

	close(recCh)
	<-writerDone

	r.stats.fill(summary)
	summary.Load = w.Result()

	for _, fr := range summary.Files {
		if err := loader.RecordImport(ctx, pool, cfg.Schema, runID, fr); err != nil {
			log.Warn("failed to record import log", zap.String("file", fr.File), zap.Error(err))
		}
	}

	// The workdir goes away on every exit path; a removal failure is
	// itself fatal, surfaced after processing.
	if cerr := wd.Remove(); cerr != nil && runErr == nil {
		runErr = cerr
	}

	if runErr != nil {
		return summary, runErr
	}

	log.Info("run complete",
		zap.Int("files", len(summary.Files)),
		zap.Int64("committed", summary.Load.Committed),
		zap.Int("failed_batches", len(summary.Load.Failures)),
	)
	return summary, nil
}

// processFile splits one source file and fans its chunks out to the
// worker pool. Splitting errors are fatal for the run: later chunks of
// a structurally broken file cannot be trusted.
func (r *runner) processFile(ctx context.Context, path string) (loader.FileResult, error) {
	name := filepath.Base(path)
	start := time.Now()
	fr := loader.FileResult{File: name}

	f, err := os.Open(path)
	if err != nil {
		return fr, eris.Wrapf(err, "importer: open source file %s", name)
	}
	defer f.Close()

	dir, err := r.wd.FileDir(name)
	if err != nil {
		return fr, err
	}

	outCh, errCh := splitter.Split(ctx, f, splitter.Options{
		RecordTag:  r.cfg.RecordTag,
		ChunkSize:  r.cfg.ChunkSize,
		Dir:        dir,
		SourceName: name,
	})

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)

	for ch := range outCh {
		fr.Chunks++
		fr.Records += int64(ch.Records)
		g.Go(func() error {
			return r.processChunk(gCtx, ch)
		})
	}
	splitErr := <-errCh

	if err := g.Wait(); err != nil {
		return fr, err
	}
	if splitErr != nil {
		return fr, splitErr
	}

	fr.Duration = time.Since(start)
	r.log.Info("file processed",
		zap.String("file", name),
		zap.Int("chunks", fr.Chunks),
		zap.Int64("records", fr.Records),
		zap.Duration("duration", fr.Duration),
	)
	return fr, nil
}

// processChunk takes one fragment end to end: normalize, parse,
// transform. Its records are buffered and only handed to the writer
// once the whole fragment parsed, so a fragment that fails to parse is
// skipped in full. The only error returned is cancellation; parse
// failures are chunk-level and recorded in the stats.
func (r *runner) processChunk(ctx context.Context, ch splitter.Chunk) error {
	log := r.log.With(
		zap.String("file", ch.SourceFile),
		zap.Int("chunk", ch.Index),
	)

	cleanPath, err := splitter.Normalize(ch.Path, r.cfg.Prefixes)
	if err != nil {
		return err
	}

	f, err := os.Open(cleanPath)
	if err != nil {
		return eris.Wrapf(err, "importer: open fragment %s", cleanPath)
	}
	defer f.Close()

	var (
		points                 []model.AddressPoint
		extracted, transformed int64
		skipPosition, skipCrd  int64
	)

	items, errCh := extractor.Stream(ctx, f)
	for it := range items {
		if it.Err != nil {
			skipPosition++
			continue
		}
		extracted++

		geo, err := projection.ToGeo(it.Record.Position)
		if err != nil {
			skipCrd++
			continue
		}
		transformed++

		points = append(points, model.AddressPoint{
			PostalCode:  it.Record.PostalCode,
			Locality:    it.Record.Locality,
			Street:      it.Record.Street,
			HouseNumber: it.Record.HouseNumber,
			Coord:       geo,
		})
	}

	if perr := <-errCh; perr != nil {
		if ctx.Err() != nil {
			return perr
		}
		// Malformed fragment: drop the chunk, keep the run going.
		r.stats.chunkDone(0, true)
		log.Warn("chunk failed to parse, skipping", zap.Error(perr))
		return nil
	}

	for _, p := range points {
		select {
		case r.recCh <- p:
		case <-ctx.Done():
			return eris.Wrap(ctx.Err(), "importer: context cancelled")
		}
	}

	r.stats.chunkDone(ch.Records, false)
	r.stats.applyChunk(extracted, transformed, skipPosition, skipCrd)

	// Fragments are one-shot; drop them as soon as they are consumed.
	if err := os.Remove(ch.Path); err != nil {
		log.Debug("failed to remove raw fragment", zap.Error(err))
	}
	if err := os.Remove(cleanPath); err != nil {
		log.Debug("failed to remove normalized fragment", zap.Error(err))
	}

	return nil
}

// sourceFiles lists XML files in the source directory in name order.
func sourceFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "importer: read source dir %s", dir)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".xml") {
			continue
		}
		files = append(files, e.Name())
	}
	sort.Strings(files)
	return files, nil
}
