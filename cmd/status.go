package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/prg-tools/prgload/internal/db"
	"github.com/prg-tools/prgload/internal/loader"
)

var statusCmd = &cobra.Command{
	Use:   "status DB_HOST DB_USER DB_PASSWORD SCHEMA",
	Short: "Show past imports recorded in the import log",
	Args:  exactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		host, user, password, schema := args[0], args[1], args[2], args[3]

		pool, err := openPool(ctx, host, user, password)
		if err != nil {
			return err
		}
		defer pool.Close()

		return printImportLog(ctx, pool, schema)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

// printImportLog renders the import_log table.
func printImportLog(ctx context.Context, pool db.Pool, schema string) error {
	log, err := loader.ImportLog(ctx, pool, schema)
	if err != nil {
		return eris.Wrap(err, "status")
	}

	if len(log) == 0 {
		fmt.Println("No imports recorded yet")
		return nil
	}

	fmt.Printf("%-36s %-30s %7s %12s %8s %10s %s\n",
		"Run", "File", "Chunks", "Records", "Skipped", "Duration", "Loaded At")
	fmt.Println(strings.Repeat("-", 120))

	for _, r := range log {
		fmt.Printf("%-36s %-30s %7d %12d %8d %8dms %s\n",
			r.RunID, r.File, r.Chunks, r.Records, r.Skipped,
			r.DurationMs, r.LoadedAt.Format("2006-01-02 15:04"))
	}

	return nil
}
