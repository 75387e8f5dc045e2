package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nerrad567/homytech-core/internal/auth"
	"github.com/nerrad567/homytech-core/internal/infrastructure/config"
)

func newUserCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage dashboard accounts",
	}

	var email, name, password string
	add := &cobra.Command{
		Use:   "add",
		Short: "Create a dashboard account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load(resolveConfigPath(*configPath))
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			db, err := openDatabase(ctx, cfg)
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck // Short-lived CLI connection

			svc := auth.NewService(auth.NewUserRepository(db.DB), cfg.Security.JWT.Secret, cfg.Security.JWT.AccessTokenTTL)
			user, err := svc.Register(ctx, email, name, password)
			if errors.Is(err, auth.ErrEmailTaken) {
				return fmt.Errorf("user %s already exists", auth.NormalizeEmail(email))
			}
			if err != nil {
				return fmt.Errorf("creating user: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %s (%s)\n", user.Email, user.ID)
			return nil
		},
	}
	add.Flags().StringVar(&email, "email", "", "account email (required)")
	add.Flags().StringVar(&name, "name", "", "display name")
	add.Flags().StringVar(&password, "password", "", "account password, at least 8 characters (required)")
	_ = add.MarkFlagRequired("email")    //nolint:errcheck // Flag defined above
	_ = add.MarkFlagRequired("password") //nolint:errcheck // Flag defined above

	cmd.AddCommand(add)
	return cmd
}
