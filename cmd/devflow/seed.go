package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"devflow/internal/seed"
)

func seedCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load users and sample data from a YAML fixture",
		Long: `Load users and an optional organization tree from a YAML fixture.
Users whose email already exists are skipped. Without --file the built-in
fixture creates one admin, one team lead and one developer.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			fixture, err := seed.ParseFile(file)
			if err != nil {
				return err
			}
			store, err := openStore(cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			report, err := seed.ForStore(store, logger).Apply(cmd.Context(), fixture)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "users: %d created, %d skipped; teams: %d; projects: %d; sprints: %d; tasks: %d\n",
				report.UsersCreated, report.UsersSkipped, report.Teams, report.Projects, report.Sprints, report.Tasks)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Fixture file (defaults to the built-in users)")
	cmd.Flags().String("db", "data/devflow.db", "Database path (sqlite3) or DSN (postgres)")
	return cmd
}
