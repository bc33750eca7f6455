package main

import (
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the pgvector extension, chunk table and indexes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		services, err := openServices(cmd.Context())
		if err != nil {
			return err
		}
		defer services.Close()

		if err := services.Migrate(cmd.Context()); err != nil {
			return err
		}
		cmd.Println("Migrations completed successfully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
