package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/noah-isme/cbt-go-api/internal/config"
	"github.com/noah-isme/cbt-go-api/internal/database"
	"github.com/noah-isme/cbt-go-api/internal/repository"
	"github.com/noah-isme/cbt-go-api/internal/service"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "cbtctl",
		Short:        "Operator tooling for the CBT platform",
		SilenceUsage: true,
	}
	root.AddCommand(migrateCmd(), createSuperAdminCmd())
	return root
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			db, err := database.ConnectPostgres(cfg.DatabaseURL, logger)
			if err != nil {
				return err
			}
			if err := database.Migrate(db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			logger.Info().Msg("schema is up to date")
			return nil
		},
	}
}

func createSuperAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create-superadmin",
		Short: "Provision a platform super admin account",
		RunE:  runCreateSuperAdmin,
	}
	f := cmd.Flags()
	f.String("name", "", "Display name (required)")
	f.String("email", "", "Login email (required)")
	f.String("password", "", "Initial password (or set CBT_ADMIN_PASSWORD)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func runCreateSuperAdmin(cmd *cobra.Command, args []string) error {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())
	v.SetEnvPrefix("CBT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	_ = v.BindEnv("password", "CBT_ADMIN_PASSWORD")

	password := v.GetString("password")
	if password == "" {
		return fmt.Errorf("password is required (--password or CBT_ADMIN_PASSWORD)")
	}

	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	db, err := database.ConnectPostgres(cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	activity := service.NewActivityService(repository.NewActivityLogRepository(db), validate, logger)
	auth := service.NewAuthService(
		repository.NewUserRepository(db),
		repository.NewSchoolRepository(db),
		repository.NewStudentRepository(db),
		repository.NewTeacherRepository(db),
		activity,
		cfg.JWTSecret,
		cfg.JWTTTL,
		validate,
		logger,
	)

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	user, err := auth.CreateSuperAdmin(ctx, v.GetString("name"), v.GetString("email"), password)
	if err != nil {
		return err
	}

	logger.Info().Uint("user_id", user.ID).Str("email", user.Email).Msg("super admin created")
	return nil
}

func setup() (config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, zerolog.Logger{}, fmt.Errorf("load configuration: %w", err)
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Str("service", "cbtctl").Logger()
	return cfg, logger, nil
}
