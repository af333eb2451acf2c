package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"domiflash/internal/db"
	"domiflash/internal/models"
	"domiflash/internal/session"
	"domiflash/internal/utils"
)

var adminEmail string

// adminTokenCmd opens a long-lived session for an existing administrator
// and prints a bearer token for it.
var adminTokenCmd = &cobra.Command{
	Use:   "admin-token",
	Short: "Print a bearer token for an administrator",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET must be set")
		}

		conn, err := db.ConnectWithRetry(cfg, 1, time.Second, log)
		if err != nil {
			return err
		}
		var admin models.User
		if err := conn.Where("email = ? AND role = ?", strings.ToLower(adminEmail), models.RoleAdmin).First(&admin).Error; err != nil {
			return fmt.Errorf("administrator %s: %w", adminEmail, err)
		}

		redisClient, err := db.NewRedisClient(cfg)
		if err != nil {
			return err
		}
		defer redisClient.Close()

		sessions := session.NewManager(redisClient, cfg.SessionTimeout(), cfg.SessionWarning(), cfg.RememberMeLifetime())
		sess, err := sessions.Start(context.Background(), admin.ID, admin.Role, true)
		if err != nil {
			return err
		}

		token, err := utils.GenerateJWT(cfg.JWTSecret, admin.ID, string(admin.Role), sess.ID, cfg.RememberMeLifetime())
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

func init() {
	adminTokenCmd.Flags().StringVar(&adminEmail, "email", "admin@domiflash.co", "administrator email")
}
