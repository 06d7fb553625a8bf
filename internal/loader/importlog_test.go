package loader

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordImport(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO "prg"\."import_log"`).
		WithArgs("run-1", "points.xml", 3, int64(250), int64(2), 1500).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	fr := FileResult{
		File:     "points.xml",
		Chunks:   3,
		Records:  250,
		Skipped:  2,
		Duration: 1500 * time.Millisecond,
	}
	require.NoError(t, RecordImport(context.Background(), mock, "prg", "run-1", fr))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordImport_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO "prg"\."import_log"`).
		WillReturnError(fmt.Errorf("connection refused"))

	err = RecordImport(context.Background(), mock, "prg", "run-1", FileResult{File: "points.xml"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record import of points.xml")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestImportLog(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	loadedAt := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT run_id, file, chunks, records, skipped, loaded_at, COALESCE\(duration_ms, 0\) FROM "prg"\."import_log"`).
		WillReturnRows(pgxmock.NewRows([]string{"run_id", "file", "chunks", "records", "skipped", "loaded_at", "duration_ms"}).
			AddRow("run-1", "a.xml", 2, int64(100), int64(0), loadedAt, 900).
			AddRow("run-1", "b.xml", 1, int64(40), int64(2), loadedAt, 400))

	log, err := ImportLog(context.Background(), mock, "prg")
	require.NoError(t, err)
	require.Len(t, log, 2)
	assert.Equal(t, "a.xml", log[0].File)
	assert.Equal(t, int64(100), log[0].Records)
	assert.Equal(t, "b.xml", log[1].File)
	assert.Equal(t, 400, log[1].DurationMs)
	assert.NoError(t, mock.ExpectationsWereMet())
}
