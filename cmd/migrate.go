package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"domiflash/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, err := db.ConnectWithRetry(cfg, 5, 5*time.Second, log)
		if err != nil {
			return err
		}
		if err := db.Migrate(conn); err != nil {
			return err
		}
		log.Info("database schema up to date")
		return nil
	},
}
