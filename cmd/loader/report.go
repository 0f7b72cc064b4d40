package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/Jobalyzer/internal/core"
)

func newReportCommand(e *env) *cobra.Command {
	var (
		format string
		list   bool
	)

	cmd := &cobra.Command{
		Use:   "report [NAME]",
		Short: "Print a grouped-count report",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			if list {
				for _, spec := range core.Reports() {
					fmt.Fprintln(e.stdout, spec.Name)
				}
				return nil
			}
			if len(args) != 1 {
				return errors.New("report name required (see --list)")
			}

			svc, closeAll, err := e.openService(c.Context(), e.cfg.ServiceConfig())
			if err != nil {
				return err
			}
			defer closeAll()

			report, err := svc.GetReport(c.Context(), args[0])
			if err != nil {
				return err
			}

			switch format {
			case "json":
				enc := json.NewEncoder(e.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(report.Records())
			case "table":
				tw := tabwriter.NewWriter(e.stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintf(tw, "%s\tcount\n", report.KeyLabel)
				for _, row := range report.Rows {
					key := "(none)"
					if row.Key != nil {
						key = *row.Key
					}
					fmt.Fprintf(tw, "%s\t%d\n", key, row.Count)
				}
				fmt.Fprintf(tw, "total\t%d\n", report.Total())
				return tw.Flush()
			default:
				return fmt.Errorf("unknown format %q: use json or table", format)
			}
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "output format: table or json")
	cmd.Flags().BoolVar(&list, "list", false, "list report names")
	return cmd
}
