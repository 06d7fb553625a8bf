// Package splitter partitions an arbitrarily large tag-delimited XML
// stream into size-bounded, independently parseable fragments. A
// fragment boundary never falls inside a record.
package splitter

import (
	"bufio"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrUnterminatedRecord marks a stream that ended inside an open
// record. Downstream fragments from such a file cannot be trusted, so
// this is fatal for the file.
var ErrUnterminatedRecord = eris.New("splitter: stream ended inside a record")

// maxLineBytes bounds a single scanned line. PRG lines are short; the
// margin covers embedded geometry blobs.
const maxLineBytes = 4 * 1024 * 1024

// Options configures a split.
type Options struct {
	RecordTag  string // namespaced record tag, e.g. "prg-ad:PRG_PunktAdresowy"
	ChunkSize  int    // max records per fragment
	Dir        string // directory fragments are written to
	SourceName string // source file name, for fragment naming and traceability
}

// Chunk describes one emitted fragment.
type Chunk struct {
	SourceFile string
	Index      int // 1-based, monotonic per source file
	Records    int
	Path       string // raw fragment on disk
}

// Split scans r line by line and emits fragments of at most
// opts.ChunkSize records, each wrapped in a synthetic <chunk> root.
// Chunks are sent as they are written; both channels close when the
// scan completes. The sequence is finite, in source order, and covers
// every record exactly once.
//
// The splitter assumes the source format opens and closes each record
// at the start of a trimmed line. That holds for PRG exports; it is not
// a general XML guarantee.
func Split(ctx context.Context, r io.Reader, opts Options) (<-chan Chunk, <-chan error) {
	outCh := make(chan Chunk, 4)
	errCh := make(chan error, 1)

	go func() {
		defer close(outCh)
		defer close(errCh)

		log := zap.L().With(
			zap.String("component", "splitter"),
			zap.String("source", opts.SourceName),
		)

		openPrefix := "<" + opts.RecordTag
		closePrefix := "</" + opts.RecordTag + ">"

		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

		var (
			buf          bytes.Buffer
			inside       bool
			chunkIndex   int
			chunkRecords int
			totalRecords int
		)

		flush := func() error {
			chunkIndex++
			ch, err := writeFragment(opts, chunkIndex, chunkRecords, &buf)
			if err != nil {
				return err
			}
			log.Debug("chunk written",
				zap.Int("index", ch.Index),
				zap.Int("records", ch.Records),
			)
			buf.Reset()
			chunkRecords = 0

			select {
			case outCh <- ch:
				return nil
			case <-ctx.Done():
				return eris.Wrap(ctx.Err(), "splitter: context cancelled")
			}
		}

		for scanner.Scan() {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "splitter: context cancelled")
				return
			}

			line := scanner.Text()
			trimmed := strings.TrimSpace(line)

			if !inside {
				if !hasTagPrefix(trimmed, openPrefix) {
					// Prolog, envelope, or whitespace between records.
					continue
				}
				if strings.HasSuffix(trimmed, "/>") {
					// Self-closing record on one line.
					buf.WriteString(line)
					buf.WriteByte('\n')
					chunkRecords++
					totalRecords++
				} else {
					inside = true
					buf.WriteString(line)
					buf.WriteByte('\n')
				}
			} else {
				buf.WriteString(line)
				buf.WriteByte('\n')
				if strings.HasPrefix(trimmed, closePrefix) {
					inside = false
					chunkRecords++
					totalRecords++
				}
			}

			// Flush only between records so a boundary never splits one.
			if !inside && chunkRecords >= opts.ChunkSize {
				if err := flush(); err != nil {
					errCh <- err
					return
				}
			}
		}

		if err := scanner.Err(); err != nil {
			errCh <- eris.Wrapf(err, "splitter: read %s", opts.SourceName)
			return
		}

		if inside {
			errCh <- eris.Wrapf(ErrUnterminatedRecord, "%s: record open at end of stream", opts.SourceName)
			return
		}

		// Final partial fragment; skipped when nothing is pending.
		if chunkRecords > 0 {
			if err := flush(); err != nil {
				errCh <- err
				return
			}
		}

		log.Info("split complete",
			zap.Int("chunks", chunkIndex),
			zap.Int("records", totalRecords),
		)
	}()

	return outCh, errCh
}

// writeFragment serializes the buffered records under a synthetic root
// so the fragment parses on its own.
func writeFragment(opts Options, index, records int, buf *bytes.Buffer) (Chunk, error) {
	path := filepath.Join(opts.Dir, fmt.Sprintf("chunk_%06d.xml", index))

	var frag bytes.Buffer
	frag.Grow(buf.Len() + 64)
	frag.WriteString(xml.Header)
	frag.WriteString("<chunk>\n")
	frag.Write(buf.Bytes())
	frag.WriteString("</chunk>\n")

	if err := os.WriteFile(path, frag.Bytes(), 0o644); err != nil {
		return Chunk{}, eris.Wrapf(err, "splitter: write fragment %s", path)
	}

	return Chunk{
		SourceFile: opts.SourceName,
		Index:      index,
		Records:    records,
		Path:       path,
	}, nil
}

// hasTagPrefix reports whether line begins with prefix as a complete
// tag name, not merely as a name prefix of a longer tag.
func hasTagPrefix(line, prefix string) bool {
	if !strings.HasPrefix(line, prefix) {
		return false
	}
	if len(line) == len(prefix) {
		return false
	}
	switch line[len(prefix)] {
	case '>', ' ', '\t', '/':
		return true
	}
	return false
}
