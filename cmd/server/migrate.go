package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/iliyamo/tradeflow/internal/config"
	"github.com/iliyamo/tradeflow/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		store, err := database.Open(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Migrate(cmd.Context()); err != nil {
			return err
		}
		log.Printf("schema migrated (%s)", cfg.DBDriver)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
