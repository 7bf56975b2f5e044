package main

import (
	"errors"
	"fmt"

	"cashregister/internal/infra"
	"cashregister/internal/model"
	"cashregister/internal/repository"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 12

func newSeedUserCmd() *cobra.Command {
	var (
		username string
		name     string
		password string
		role     string
		inactive bool
	)
	cmd := &cobra.Command{
		Use:   "seed-user",
		Short: "Create or update an operator account",
		RunE: func(cmd *cobra.Command, args []string) error {
			switch role {
			case model.RoleCashier, model.RoleSupervisor, model.RoleAdmin:
			default:
				return fmt.Errorf("unknown role %q", role)
			}
			if username == "" || password == "" {
				return errors.New("--username and --password are required")
			}

			cfg, db, err := bootstrap()
			if err != nil {
				return err
			}
			if err := infra.RunMigrations(db); err != nil {
				return err
			}

			hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
			if err != nil {
				return fmt.Errorf("bcrypt: %w", err)
			}
			if name == "" {
				name = username
			}
			u := &model.User{
				Username:     username,
				Name:         name,
				PasswordHash: string(hash),
				Role:         role,
				Active:       !inactive,
			}
			guard := infra.NewDBGuard(infra.RetryPolicy{Attempts: cfg.DBRetryAttempts})
			users := repository.NewUserRepository(db, guard)
			if err := users.Upsert(cmd.Context(), u); err != nil {
				return err
			}
			stored, err := users.FindByUsername(cmd.Context(), username)
			if err != nil {
				return err
			}
			log.Info().
				Str("user_id", stored.ID.String()).
				Str("username", stored.Username).
				Str("role", stored.Role).
				Bool("active", stored.Active).
				Msg("user created/updated")
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "login name (unique)")
	cmd.Flags().StringVar(&name, "name", "", "display name (defaults to username)")
	cmd.Flags().StringVar(&password, "password", "", "password to hash with bcrypt")
	cmd.Flags().StringVar(&role, "role", model.RoleCashier, "cashier | supervisor | admin")
	cmd.Flags().BoolVar(&inactive, "inactive", false, "create the account disabled")
	return cmd
}
