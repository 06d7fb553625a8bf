package loader

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/prg-tools/prgload/internal/db"
)

// FileResult summarizes one processed source file for the import log.
// Committed counts are a property of the run's writer, not of a file,
// so they live in Result instead.
type FileResult struct {
	File     string        `yaml:"file"`
	Chunks   int           `yaml:"chunks"`
	Records  int64         `yaml:"records"`
	Skipped  int64         `yaml:"skipped"`
	Duration time.Duration `yaml:"duration"`
}

// LogRow is one row of the import_log table.
type LogRow struct {
	RunID      string
	File       string
	Chunks     int
	Records    int64
	Skipped    int64
	LoadedAt   time.Time
	DurationMs int
}

// RecordImport inserts an import_log row for a completed file.
func RecordImport(ctx context.Context, pool db.Pool, schema, runID string, fr FileResult) error {
	sql := "INSERT INTO " + pgx.Identifier{schema, "import_log"}.Sanitize() +
		" (run_id, file, chunks, records, skipped, duration_ms) VALUES ($1, $2, $3, $4, $5, $6)"

	_, err := pool.Exec(ctx, sql,
		runID, fr.File, fr.Chunks, fr.Records, fr.Skipped, int(fr.Duration.Milliseconds()),
	)
	if err != nil {
		return eris.Wrapf(err, "loader: record import of %s", fr.File)
	}
	return nil
}

// ImportLog returns past import runs, newest first.
func ImportLog(ctx context.Context, pool db.Pool, schema string) ([]LogRow, error) {
	sql := "SELECT run_id, file, chunks, records, skipped, loaded_at, COALESCE(duration_ms, 0) FROM " +
		pgx.Identifier{schema, "import_log"}.Sanitize() + " ORDER BY loaded_at DESC, file"

	rows, err := pool.Query(ctx, sql)
	if err != nil {
		return nil, eris.Wrap(err, "loader: query import log")
	}
	defer rows.Close()

	var log []LogRow
	for rows.Next() {
		var lr LogRow
		if err := rows.Scan(&lr.RunID, &lr.File, &lr.Chunks, &lr.Records, &lr.Skipped, &lr.LoadedAt, &lr.DurationMs); err != nil {
			return nil, eris.Wrap(err, "loader: scan import log row")
		}
		log = append(log, lr)
	}
	return log, rows.Err()
}
