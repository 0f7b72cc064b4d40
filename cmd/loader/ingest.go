package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/Jobalyzer/internal/core"
)

func newIngestCommand(e *env) *cobra.Command {
	var (
		path       string
		maxRecords int
		workers    int
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest a job-posting CSV file",
		Long: `
Ingests a CSV file with a header row. Records are upserted by Job ID, so
running the same file twice leaves the store unchanged. The ingestion
report is written to stdout as JSON.
`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			ctx := c.Context()

			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()

			info, err := f.Stat()
			if err != nil {
				return err
			}

			svcCfg := e.cfg.ServiceConfig()
			if workers > 0 {
				svcCfg.Pipeline.Workers = workers
			}
			svc, closeAll, err := e.openService(ctx, svcCfg)
			if err != nil {
				return err
			}
			defer closeAll()

			src, err := core.NewCSVSource(f, info.Size())
			if err != nil {
				return err
			}

			report, runErr := svc.Ingest(ctx, src, core.RunOptions{
				Source:     filepath.Base(path),
				MaxRecords: maxRecords,
			})
			if report != nil {
				enc := json.NewEncoder(e.stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return err
				}
			}
			if runErr != nil {
				return runErr
			}
			if report.Terminal() {
				return fmt.Errorf("run aborted: %s", report.Error)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&path, "file", "f", "", "CSV file to ingest")
	flags.IntVar(&maxRecords, "max", 0, "maximum records to admit; 0 uses INGEST_MAX_RECORDS, -1 disables the cap")
	flags.IntVar(&workers, "workers", 0, "records processed in parallel; 0 uses INGEST_WORKERS")
	cmd.MarkFlagRequired("file")
	return cmd
}
