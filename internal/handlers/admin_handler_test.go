package handlers

import (
	"context"
	"errors"
	"testing"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"domiflash/internal/models"
	"domiflash/internal/session"
)

// dryRunDB builds statements without a server, so updates succeed and only
// gorm's in-memory side effects on the model remain.
func dryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=localhost user=domiflash dbname=domiflash sslmode=disable",
	}), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
		Logger:               logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open dry-run db: %v", err)
	}
	return conn
}

func TestApplyUserUpdateSessions(t *testing.T) {
	tests := []struct {
		name    string
		updates map[string]interface{}
		ended   bool
	}{
		{"role changed", map[string]interface{}{"role": string(models.RoleCustomer)}, true},
		{"same role", map[string]interface{}{"role": string(models.RoleAdmin)}, false},
		{"profile only", map[string]interface{}{"name": "Ana María"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDeps(t)
			d.DB = dryRunDB(t)
			_, sess := startSession(t, d, 7, models.RoleAdmin)

			user := &models.User{ID: 7, Name: "Ana", Role: models.RoleAdmin}
			if err := applyUserUpdate(context.Background(), d, user, tt.updates); err != nil {
				t.Fatalf("applyUserUpdate: %v", err)
			}

			_, err := d.Sessions.Get(context.Background(), sess.ID)
			if tt.ended && !errors.Is(err, session.ErrNotFound) {
				t.Fatalf("session after role change: err = %v, want ErrNotFound", err)
			}
			if !tt.ended && err != nil {
				t.Fatalf("session should survive: %v", err)
			}
		})
	}
}
