// Command loader ingests job-posting CSV files and runs reports from the
// command line against the configured store.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/Jobalyzer/internal/cache"
	"github.com/JonMunkholm/Jobalyzer/internal/config"
	"github.com/JonMunkholm/Jobalyzer/internal/core"
	"github.com/JonMunkholm/Jobalyzer/internal/logging"
	"github.com/JonMunkholm/Jobalyzer/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// env is shared by every subcommand. Logs go to stderr so stdout carries
// only command output.
type env struct {
	stdout io.Writer
	stderr io.Writer

	dryRun bool
	cfg    *config.Config
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	e := &env{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "loader",
		Short: "Ingest job-posting files and run reports",
		Long: `
Loader reads configuration from the environment (and a .env file in the
working directory), the same way the API server does.
`,
		SilenceUsage: true,
		PersistentPreRunE: func(c *cobra.Command, args []string) error {
			return e.load()
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().BoolVar(&e.dryRun, "dry-run", false, "use an in-memory store; nothing is persisted")

	root.AddCommand(newIngestCommand(e))
	root.AddCommand(newReportCommand(e))
	root.AddCommand(newSchemaCommand(e))
	return root
}

func (e *env) load() error {
	if err := godotenv.Overload(); err == nil {
		fmt.Fprintln(e.stderr, "loaded .env file")
	}

	getenv := os.Getenv
	if e.dryRun {
		getenv = func(k string) string {
			if k == "STORE_DRIVER" {
				return config.DriverMemory
			}
			return os.Getenv(k)
		}
	}

	cfg, err := config.LoadFrom(getenv)
	if err != nil {
		return err
	}
	e.cfg = cfg

	slog.SetDefault(slog.New(logging.NewHandler(e.stderr, cfg.Logging.Level, cfg.Logging.Format)))
	return nil
}

// openService opens the store and, if enabled, the report cache. The
// returned func closes both.
func (e *env) openService(ctx context.Context, svcCfg core.ServiceConfig) (*core.Service, func(), error) {
	st, err := store.Open(ctx, e.cfg.Store)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s store: %w", e.cfg.Store.Driver, err)
	}
	closers := []func() error{st.Close}

	if e.cfg.Cache.Enabled {
		reports := cache.New(cache.Options{
			Addr:     e.cfg.Cache.Addr,
			Password: e.cfg.Cache.Password,
			DB:       e.cfg.Cache.DB,
			Prefix:   e.cfg.Cache.Prefix,
		})
		closers = append(closers, reports.Close)
		if err := reports.Ping(ctx); err != nil {
			slog.Warn("report cache unreachable, continuing without it", "error", err)
		} else {
			svcCfg.Cache = reports
		}
	}

	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				slog.Warn("close failed", "error", err)
			}
		}
	}
	return core.NewService(st, svcCfg), closeAll, nil
}
