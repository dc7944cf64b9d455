package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/Wikid82/phishguard/internal/config"
	"github.com/Wikid82/phishguard/internal/database"
	"github.com/Wikid82/phishguard/internal/services"
)

// openAuth connects to the database for the account maintenance commands.
func openAuth(cfg config.Config) (*services.AuthService, *gorm.DB, error) {
	db, err := database.Connect(cfg.DatabasePath)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		return nil, nil, err
	}
	return services.NewAuthService(db, cfg), db, nil
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func newResetPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset-password <email> <new-password>",
		Short: "Set a new password for an account and clear its lockout",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closer, err := loadConfig("phishguard")
			if err != nil {
				return err
			}
			defer closer.Close()

			auth, db, err := openAuth(cfg)
			if err != nil {
				return err
			}
			defer closeDB(db)

			if len(args[1]) < 8 {
				return fmt.Errorf("password must be at least 8 characters")
			}
			if err := auth.ResetPassword(args[0], args[1]); err != nil {
				return fmt.Errorf("reset password for %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Password updated successfully for user %s\n", args[0])
			return nil
		},
	}
}

func newIssueTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "issue-token <email>",
		Short: "Print a bearer token for an existing account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closer, err := loadConfig("phishguard")
			if err != nil {
				return err
			}
			defer closer.Close()

			auth, db, err := openAuth(cfg)
			if err != nil {
				return err
			}
			defer closeDB(db)

			user, err := auth.GetUserByEmail(args[0])
			if err != nil {
				return fmt.Errorf("find user %s: %w", args[0], err)
			}
			if !user.Enabled {
				return fmt.Errorf("account %s is disabled", args[0])
			}
			token, err := auth.GenerateToken(user)
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
}
