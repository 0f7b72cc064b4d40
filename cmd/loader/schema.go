package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/Jobalyzer/internal/store"
)

func newSchemaCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Create tables, collections and indexes",
		Long: `
Creates the organizations and postings tables (postgres) or indexes
(mongo). Safe to run repeatedly.
`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			cfg := e.cfg.Store
			cfg.EnsureSchema = true

			st, err := store.Open(c.Context(), cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			fmt.Fprintf(e.stdout, "schema ready (%s)\n", cfg.Driver)
			return nil
		},
	}
}
