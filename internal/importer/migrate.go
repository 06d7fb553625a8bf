package importer

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/prg-tools/prgload/internal/db"
)

// migrationDDL creates the target schema and tables. {{schema}} is
// replaced with the sanitized schema identifier; everything else is
// static DDL.
const migrationDDL = `
CREATE SCHEMA IF NOT EXISTS {{schema}};

CREATE TABLE IF NOT EXISTS {{schema}}.address_points (
	postal_code  TEXT NOT NULL DEFAULT '',
	locality     TEXT NOT NULL DEFAULT '',
	street       TEXT NOT NULL DEFAULT '',
	house_number TEXT NOT NULL DEFAULT '',
	latitude     DOUBLE PRECISION NOT NULL,
	longitude    DOUBLE PRECISION NOT NULL
);

CREATE TABLE IF NOT EXISTS {{schema}}.import_log (
	run_id      TEXT NOT NULL,
	file        TEXT NOT NULL,
	chunks      INTEGER NOT NULL,
	records     BIGINT NOT NULL,
	skipped     BIGINT NOT NULL DEFAULT 0,
	loaded_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	duration_ms INTEGER
);
`

// Migrate applies the destination DDL. It is idempotent; load runs it
// implicitly before writing.
func Migrate(ctx context.Context, pool db.Pool, schema string) error {
	ddl := strings.ReplaceAll(migrationDDL, "{{schema}}", pgx.Identifier{schema}.Sanitize())

	if _, err := pool.Exec(ctx, ddl); err != nil {
		return eris.Wrapf(err, "importer: migrate schema %s", schema)
	}
	return nil
}
