package main

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	inats "github.com/treinoia/treinoia/internal/nats"
	"github.com/treinoia/treinoia/internal/profiles"
	"github.com/treinoia/treinoia/internal/quota"
)

var quotaUser string

var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Inspect usage counters",
}

var quotaShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the plan and today's counters of a user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := uuid.Parse(quotaUser)
		if err != nil {
			return fmt.Errorf("invalid --user: %w", err)
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		pool, err := openPool(ctx, cfg)
		if err != nil {
			return err
		}
		defer pool.Close()

		profileSvc := profiles.NewService(profiles.NewRepository(pool), inats.NopPublisher{}, cfg.Quota.DefaultCredits)
		// No burst limiter: the CLI reads counters and never consumes.
		svc := quota.NewService(quota.NewRepository(pool), profileSvc, nil, inats.NopPublisher{}, cfg.Quota)

		st, err := svc.Status(ctx, userID)
		if err != nil {
			return fmt.Errorf("reading quota: %w", err)
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	},
}

func init() {
	quotaShowCmd.Flags().StringVar(&quotaUser, "user", "", "user ID")
	_ = quotaShowCmd.MarkFlagRequired("user")

	quotaCmd.AddCommand(quotaShowCmd)
}
