package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/prg-tools/prgload/internal/config"
)

var cfg *config.Config

// errUsage marks an invalid invocation. Usage problems exit with a
// status distinct from runtime failures.
var errUsage = eris.New("invalid usage")

const (
	exitRuntime = 1
	exitUsage   = 2
)

var rootCmd = &cobra.Command{
	Use:   "prgload",
	Short: "PRG address-point importer",
	Long: `Splits oversized PRG address-point XML exports into well-formed
fragments, reprojects PUWG 1992 grid coordinates to WGS84, and bulk-loads
the result into a PostgreSQL schema.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if eris.Is(err, errUsage) {
			os.Exit(exitUsage)
		}
		os.Exit(exitRuntime)
	}
}

// exactArgs is like cobra.ExactArgs but classifies the failure as a
// usage error so main can pick the right exit status.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return eris.Wrapf(errUsage, "expected %d arguments, got %d", n, len(args))
		}
		return nil
	}
}

// connString builds a keyword/value DSN from the positional connection
// arguments and the configured pool settings.
func connString(host, user, password string) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		quoteDSN(host), cfg.DB.Port, quoteDSN(user), quoteDSN(password), quoteDSN(cfg.DB.Name), quoteDSN(cfg.DB.SSLMode))
}

// quoteDSN single-quotes a DSN value so spaces and quotes survive.
func quoteDSN(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// openPool connects a pgx pool using the positional credentials.
func openPool(ctx context.Context, host, user, password string) (*pgxpool.Pool, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString(host, user, password))
	if err != nil {
		return nil, eris.Wrap(err, "parse connection config")
	}

	if cfg.DB.MaxConns > 0 {
		pgxCfg.MaxConns = cfg.DB.MaxConns
	}
	if cfg.DB.MinConns > 0 {
		pgxCfg.MinConns = cfg.DB.MinConns
	}
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrapf(err, "ping %s", host)
	}
	return pool, nil
}
