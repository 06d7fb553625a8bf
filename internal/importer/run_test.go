package importer

import (
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prg-tools/prgload/internal/splitter"
)

var copyTarget = pgx.Identifier{"prg", "address_points"}

var addressColumns = []string{"postal_code", "locality", "street", "house_number", "latitude", "longitude"}

// sourceRecord renders one PRG record with a valid grid position.
func sourceRecord(i int) string {
	return fmt.Sprintf(`  <prg-ad:PRG_PunktAdresowy gml:id="PA.%d">
    <prg-ad:jednostkaAdmnistracyjna>Polska</prg-ad:jednostkaAdmnistracyjna>
    <prg-ad:jednostkaAdmnistracyjna>mazowieckie</prg-ad:jednostkaAdmnistracyjna>
    <prg-ad:jednostkaAdmnistracyjna>Warszawa</prg-ad:jednostkaAdmnistracyjna>
    <prg-ad:jednostkaAdmnistracyjna>Warszawa</prg-ad:jednostkaAdmnistracyjna>
    <prg-ad:kodPocztowy>00-0%02d</prg-ad:kodPocztowy>
    <prg-ad:numerPorzadkowy>%d</prg-ad:numerPorzadkowy>
    <prg-ad:pozycja><gml:pos>5000%02d.00 5000%02d.00</gml:pos></prg-ad:pozycja>
  </prg-ad:PRG_PunktAdresowy>
`, i, i%100, i, i%100, i%100)
}

// writeSource creates a PRG-style document with the given record bodies.
func writeSource(t *testing.T, dir, name string, records ...string) {
	t.Helper()
	var b strings.Builder
	b.WriteString(xml.Header)
	b.WriteString("<prg-ad:Dane xmlns:prg-ad=\"urn:prg\" xmlns:gml=\"urn:gml\">\n")
	for _, r := range records {
		b.WriteString(r)
	}
	b.WriteString("</prg-ad:Dane>\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(b.String()), 0o644))
}

func testConfig(srcDir, tempRoot string, chunkSize, batchSize int) Config {
	return Config{
		SourceDir:   srcDir,
		Schema:      "prg",
		RecordTag:   "prg-ad:PRG_PunktAdresowy",
		ChunkSize:   chunkSize,
		BatchSize:   batchSize,
		Concurrency: 2,
		TempRoot:    tempRoot,
	}
}

func expectMigration(mock pgxmock.PgxPoolIface) {
	mock.ExpectExec(`CREATE SCHEMA IF NOT EXISTS "prg"`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
}

func TestRun_EndToEnd(t *testing.T) {
	srcDir := t.TempDir()
	tempRoot := t.TempDir()

	records := make([]string, 7)
	for i := range records {
		records[i] = sourceRecord(i + 1)
	}
	writeSource(t, srcDir, "points.xml", records...)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	expectMigration(mock)
	// 7 records, batch size 4: one full batch plus the final partial.
	mock.ExpectCopyFrom(copyTarget, addressColumns).WillReturnResult(4)
	mock.ExpectCopyFrom(copyTarget, addressColumns).WillReturnResult(3)
	mock.ExpectExec(`INSERT INTO "prg"\."import_log"`).WillReturnResult(pgxmock.NewResult("INSERT", 1))

	sum, err := Run(context.Background(), mock, testConfig(srcDir, tempRoot, 3, 4))
	require.NoError(t, err)

	assert.Equal(t, 3, sum.ChunksProcessed)
	assert.Zero(t, sum.ChunksFailed)
	assert.Equal(t, int64(7), sum.RecordsSplit)
	assert.Equal(t, int64(7), sum.RecordsExtracted)
	assert.Equal(t, int64(7), sum.RecordsTransformed)
	assert.Empty(t, sum.Skipped)
	assert.Equal(t, int64(7), sum.Load.Submitted)
	assert.Equal(t, int64(7), sum.Load.Committed)
	require.Len(t, sum.Files, 1)
	assert.Equal(t, "points.xml", sum.Files[0].File)
	assert.Equal(t, 3, sum.Files[0].Chunks)

	// The workdir is gone on the success path.
	entries, err := os.ReadDir(tempRoot)
	require.NoError(t, err)
	assert.Empty(t, entries)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRun_SkipsBadRecords(t *testing.T) {
	srcDir := t.TempDir()

	noPosition := `  <prg-ad:PRG_PunktAdresowy gml:id="PA.2">
    <prg-ad:kodPocztowy>11-111</prg-ad:kodPocztowy>
    <prg-ad:pozycja><gml:pos></gml:pos></prg-ad:pozycja>
  </prg-ad:PRG_PunktAdresowy>
`
	outOfDomain := `  <prg-ad:PRG_PunktAdresowy gml:id="PA.3">
    <prg-ad:kodPocztowy>22-222</prg-ad:kodPocztowy>
    <prg-ad:pozycja><gml:pos>99999999 99999999</gml:pos></prg-ad:pozycja>
  </prg-ad:PRG_PunktAdresowy>
`
	writeSource(t, srcDir, "points.xml", sourceRecord(1), noPosition, outOfDomain)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	expectMigration(mock)
	mock.ExpectCopyFrom(copyTarget, addressColumns).WillReturnResult(1)
	mock.ExpectExec(`INSERT INTO "prg"\."import_log"`).WillReturnResult(pgxmock.NewResult("INSERT", 1))

	sum, err := Run(context.Background(), mock, testConfig(srcDir, t.TempDir(), 10, 10))
	require.NoError(t, err)

	assert.Equal(t, int64(3), sum.RecordsSplit)
	assert.Equal(t, int64(2), sum.RecordsExtracted, "the record without a position never extracts")
	assert.Equal(t, int64(1), sum.RecordsTransformed)
	assert.Equal(t, int64(1), sum.Skipped[SkipMalformedPosition])
	assert.Equal(t, int64(1), sum.Skipped[SkipInvalidCoordinate])
	assert.Equal(t, int64(1), sum.Load.Committed)
	require.Len(t, sum.Files, 1)
	assert.Equal(t, int64(2), sum.Files[0].Skipped)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRun_BatchFailureIsolation(t *testing.T) {
	srcDir := t.TempDir()
	records := make([]string, 6)
	for i := range records {
		records[i] = sourceRecord(i + 1)
	}
	writeSource(t, srcDir, "points.xml", records...)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	expectMigration(mock)
	mock.ExpectCopyFrom(copyTarget, addressColumns).WillReturnError(fmt.Errorf("deadlock detected"))
	mock.ExpectCopyFrom(copyTarget, addressColumns).WillReturnResult(2)
	mock.ExpectCopyFrom(copyTarget, addressColumns).WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "prg"\."import_log"`).WillReturnResult(pgxmock.NewResult("INSERT", 1))

	// Single chunk keeps batch order deterministic.
	sum, err := Run(context.Background(), mock, testConfig(srcDir, t.TempDir(), 10, 2))
	require.NoError(t, err, "a failed batch must not abort the run")

	assert.Equal(t, int64(6), sum.Load.Submitted)
	assert.Equal(t, int64(4), sum.Load.Committed)
	require.Len(t, sum.Load.Failures, 1)
	assert.Equal(t, 1, sum.Load.Failures[0].Index)
	assert.Equal(t, 2, sum.Load.Failures[0].Size)
	assert.Contains(t, sum.Load.Failures[0].Error, "deadlock")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRun_ZeroRecordFile(t *testing.T) {
	srcDir := t.TempDir()
	writeSource(t, srcDir, "empty.xml")

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	expectMigration(mock)
	mock.ExpectExec(`INSERT INTO "prg"\."import_log"`).WillReturnResult(pgxmock.NewResult("INSERT", 1))

	sum, err := Run(context.Background(), mock, testConfig(srcDir, t.TempDir(), 5, 5))
	require.NoError(t, err)

	assert.Zero(t, sum.ChunksProcessed)
	assert.Zero(t, sum.RecordsSplit)
	assert.Zero(t, sum.Load.Submitted)
	require.Len(t, sum.Files, 1)
	assert.Zero(t, sum.Files[0].Chunks)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRun_NoSourceFiles(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	sum, err := Run(context.Background(), mock, testConfig(t.TempDir(), t.TempDir(), 5, 5))
	require.NoError(t, err)
	assert.Empty(t, sum.Files)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRun_MissingSourceDir(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cfg := testConfig(filepath.Join(t.TempDir(), "absent"), t.TempDir(), 5, 5)
	_, err = Run(context.Background(), mock, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read source dir")
}

func TestRun_UnterminatedRecordIsFatal(t *testing.T) {
	srcDir := t.TempDir()
	tempRoot := t.TempDir()

	truncated := xml.Header +
		"<prg-ad:Dane>\n" +
		"  <prg-ad:PRG_PunktAdresowy gml:id=\"PA.1\">\n" +
		"    <prg-ad:kodPocztowy>00-001</prg-ad:kodPocztowy>\n"
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "broken.xml"), []byte(truncated), 0o644))

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	expectMigration(mock)

	_, err = Run(context.Background(), mock, testConfig(srcDir, tempRoot, 5, 5))
	require.Error(t, err)
	assert.True(t, eris.Is(err, splitter.ErrUnterminatedRecord))

	// Cleanup still ran on the failure path.
	entries, readErr := os.ReadDir(tempRoot)
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}
