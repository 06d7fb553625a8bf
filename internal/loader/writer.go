// Package loader groups geocoded records into bounded batches and bulk
// writes them, isolating failures per batch.
package loader

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/prg-tools/prgload/internal/db"
	"github.com/prg-tools/prgload/internal/model"
)

// TableAddressPoints is the destination table inside the target schema.
const TableAddressPoints = "address_points"

// addressColumns is the column order AddressPoint.Row follows.
var addressColumns = []string{"postal_code", "locality", "street", "house_number", "latitude", "longitude"}

// BatchFailure records one failed bulk write.
type BatchFailure struct {
	Index int    `yaml:"index"`
	Size  int    `yaml:"size"`
	Error string `yaml:"error"`
}

// Result reports what a writer did over a run.
type Result struct {
	Submitted int64          `yaml:"submitted"`
	Committed int64          `yaml:"committed"`
	Failures  []BatchFailure `yaml:"failed_batches,omitempty"`
}

// Writer accumulates address points and issues one COPY per full
// batch. It owns all bulk writes for a run and is driven by a single
// goroutine; it is not safe for concurrent use.
type Writer struct {
	pool      db.Pool
	schema    string
	batchSize int

	batch      []model.AddressPoint
	batchIndex int
	result     Result
	log        *zap.Logger
}

// NewWriter creates a batch writer targeting schema.address_points.
func NewWriter(pool db.Pool, schema string, batchSize int) *Writer {
	return &Writer{
		pool:      pool,
		schema:    schema,
		batchSize: batchSize,
		batch:     make([]model.AddressPoint, 0, batchSize),
		log: zap.L().With(
			zap.String("component", "loader"),
			zap.String("schema", schema),
		),
	}
}

// Add buffers one record, flushing when the batch reaches its bound.
// The only error it returns is cancellation; write failures are
// recorded per batch and do not stop the run.
func (w *Writer) Add(ctx context.Context, p model.AddressPoint) error {
	if err := ctx.Err(); err != nil {
		return eris.Wrap(err, "loader: context cancelled")
	}

	w.batch = append(w.batch, p)
	if len(w.batch) >= w.batchSize {
		w.writeBatch(ctx)
	}
	return nil
}

// Flush writes any residual partial batch. A run with an exact
// multiple of the batch size leaves nothing pending and no write is
// issued.
func (w *Writer) Flush(ctx context.Context) {
	if len(w.batch) > 0 {
		w.writeBatch(ctx)
	}
}

// Result returns the totals accumulated so far.
func (w *Writer) Result() Result {
	return w.result
}

// writeBatch issues one COPY for the buffered batch and releases it,
// recording a failure instead of propagating it.
func (w *Writer) writeBatch(ctx context.Context) {
	w.batchIndex++
	size := len(w.batch)
	w.result.Submitted += int64(size)

	rows := make([][]any, size)
	for i, p := range w.batch {
		rows[i] = p.Row()
	}
	w.batch = w.batch[:0]

	n, err := db.CopyFromSchema(ctx, w.pool, w.schema, TableAddressPoints, addressColumns, rows)
	if err != nil {
		w.result.Failures = append(w.result.Failures, BatchFailure{
			Index: w.batchIndex,
			Size:  size,
			Error: err.Error(),
		})
		w.log.Warn("batch write failed",
			zap.Int("batch", w.batchIndex),
			zap.Int("size", size),
			zap.Error(err),
		)
		return
	}

	w.result.Committed += n
	w.log.Debug("batch committed",
		zap.Int("batch", w.batchIndex),
		zap.Int64("rows", n),
	)
}
