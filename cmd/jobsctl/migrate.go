package main

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func (a *app) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the job tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.open()
			if err != nil {
				return err
			}
			defer closeStore(store)

			if err := store.Migrate(cmd.Context()); err != nil {
				return err
			}
			pterm.Success.WithWriter(cmd.OutOrStdout()).Println("Job tables are up to date")
			return nil
		},
	}
}
