package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/prg-tools/prgload/internal/importer"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate DB_HOST DB_USER DB_PASSWORD SCHEMA",
	Short: "Create the destination schema and tables",
	Long: `Applies the destination DDL: SCHEMA itself, the address_points
table, and the import_log table. Idempotent; load runs it implicitly.`,
	Args: exactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		host, user, password, schema := args[0], args[1], args[2], args[3]

		pool, err := openPool(ctx, host, user, password)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := importer.Migrate(ctx, pool, schema); err != nil {
			return eris.Wrap(err, "migrate")
		}

		fmt.Printf("schema %s migrated\n", schema)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
