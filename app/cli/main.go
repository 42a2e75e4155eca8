package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"adBudgetEngine/internal/bootstrap"
	"adBudgetEngine/pkg/config"
	"adBudgetEngine/pkg/database"
	redisdb "adBudgetEngine/pkg/database/redis"
	"adBudgetEngine/pkg/logger"
	"adBudgetEngine/pkg/utils"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "adbudget",
		Short:        "Operator CLI for the ad budget engine.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.AddCommand(
		newMigrateCmd(),
		newTickCmd(),
		newAllocateCmd(),
		newTokenCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger.Init(cfg.App.Environment)
	return cfg, nil
}

func buildEngine(cfg *config.Config) (*bootstrap.Engine, func(), error) {
	db, err := database.InitPostgres(cfg)
	if err != nil {
		return nil, nil, err
	}
	rdb, err := redisdb.NewRedisClient(cfg)
	if err != nil {
		return nil, nil, err
	}
	engine, err := bootstrap.Build(cfg, db, rdb, clockwork.NewRealClock())
	if err != nil {
		_ = redisdb.CloseRedisClient(rdb)
		return nil, nil, err
	}
	cleanup := func() {
		engine.Loop.Stop()
		_ = redisdb.CloseRedisClient(rdb)
		logger.Sync()
	}
	return engine, cleanup, nil
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := database.InitPostgres(cfg)
			if err != nil {
				return err
			}
			if err := database.Migrate(db); err != nil {
				return err
			}
			logger.Info("Schema migrated", "tables", len(database.Models()))
			return nil
		},
	}
}

func newTickCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "tick",
		Short: "Run one reinvestment evaluation over every running campaign",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			engine, cleanup, err := buildEngine(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			failed := 0
			for _, out := range engine.Loop.Tick(ctx) {
				switch {
				case out.Err != nil:
					failed++
					fmt.Fprintf(cmd.OutOrStdout(), "%s\terror\t%v\n", out.CampaignID, out.Err)
				case out.Skipped != "":
					fmt.Fprintf(cmd.OutOrStdout(), "%s\tskipped\t%s\n", out.CampaignID, out.Skipped)
				default:
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\tduplicate=%t\n", out.CampaignID, out.Status, out.Duplicate)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d campaign(s) failed", failed)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "overall deadline for the tick")
	return cmd
}

func newAllocateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "allocate <campaign-id>",
		Short: "Recompute and store the geo budget allocation for a campaign",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			engine, cleanup, err := buildEngine(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			allocs, err := engine.Geo.Recompute(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, a := range allocs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%.4f\t%.2f\n", a.Geo, a.Fraction, a.Amount)
			}
			return nil
		},
	}
}

func newTokenCmd() *cobra.Command {
	var (
		userID string
		role   string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an operator bearer token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			utils.SetJWTSecret(cfg.JWT.SecretKey)

			token, err := utils.GenerateJWT(userID, role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "operator id")
	cmd.Flags().StringVar(&role, "role", "operator", "operator or admin")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
