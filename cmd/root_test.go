package main

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prg-tools/prgload/internal/config"
)

func TestExactArgs(t *testing.T) {
	check := exactArgs(5)

	assert.NoError(t, check(nil, []string{"a", "b", "c", "d", "e"}))

	err := check(nil, []string{"a", "b"})
	require.Error(t, err)
	assert.True(t, eris.Is(err, errUsage))
	assert.Contains(t, err.Error(), "expected 5 arguments, got 2")
}

func TestQuoteDSN(t *testing.T) {
	assert.Equal(t, "'plain'", quoteDSN("plain"))
	assert.Equal(t, `'with space'`, quoteDSN("with space"))
	assert.Equal(t, `'it\'s'`, quoteDSN("it's"))
	assert.Equal(t, `'back\\slash'`, quoteDSN(`back\slash`))
}

func TestConnString(t *testing.T) {
	cfg = &config.Config{DB: config.DBConfig{Port: 5433, Name: "prg", SSLMode: "disable"}}

	got := connString("db.example.com", "importer", "s3cret pass")
	assert.Equal(t,
		"host='db.example.com' port=5433 user='importer' password='s3cret pass' dbname='prg' sslmode='disable'",
		got)
}
