package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/prg-tools/prgload/internal/importer"
)

var loadCmd = &cobra.Command{
	Use:   "load SOURCE_DIR DB_HOST DB_USER DB_PASSWORD SCHEMA",
	Short: "Import PRG address points into Postgres",
	Long: `Reads every *.xml document in SOURCE_DIR, splits it into bounded
well-formed fragments, extracts and reprojects address points, and bulk-loads
them into SCHEMA.address_points on the given database.

Chunk and batch sizing come from configuration (PRGLOAD_SPLIT_CHUNK_SIZE,
PRGLOAD_LOAD_BATCH_SIZE or config.yaml), not from arguments.`,
	Args: exactArgs(5),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		sourceDir, host, user, password, schema := args[0], args[1], args[2], args[3], args[4]

		info, err := os.Stat(sourceDir)
		if err != nil || !info.IsDir() {
			return eris.Wrapf(errUsage, "source directory %s does not exist", sourceDir)
		}

		pool, err := openPool(ctx, host, user, password)
		if err != nil {
			return err
		}
		defer pool.Close()

		concurrency, _ := cmd.Flags().GetInt("concurrency")
		if concurrency <= 0 {
			concurrency = cfg.Load.Concurrency
		}
		summaryFile, _ := cmd.Flags().GetString("summary-file")

		runCfg := importer.Config{
			SourceDir:   sourceDir,
			Schema:      schema,
			RecordTag:   cfg.Split.RecordTag,
			ChunkSize:   cfg.Split.ChunkSize,
			BatchSize:   cfg.Load.BatchSize,
			Concurrency: concurrency,
			TempRoot:    cfg.Split.TempDir,
		}

		zap.L().Info("starting import",
			zap.String("source_dir", sourceDir),
			zap.String("schema", schema),
			zap.Int("chunk_size", runCfg.ChunkSize),
			zap.Int("batch_size", runCfg.BatchSize),
			zap.Int("concurrency", runCfg.Concurrency),
		)

		sum, runErr := importer.Run(ctx, pool, runCfg)
		if sum != nil {
			fmt.Print(sum.String())
			if summaryFile != "" {
				if err := sum.WriteFile(summaryFile); err != nil {
					zap.L().Warn("failed to write summary file", zap.Error(err))
				}
			}
		}
		if runErr != nil {
			return eris.Wrap(runErr, "load")
		}
		return nil
	},
}

func init() {
	loadCmd.Flags().Int("concurrency", 0, "parallel chunk workers (default: from config)")
	loadCmd.Flags().String("summary-file", "", "write the run summary as YAML to this path")
	rootCmd.AddCommand(loadCmd)
}
