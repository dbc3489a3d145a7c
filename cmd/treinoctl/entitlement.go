package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/treinoia/treinoia/internal/config"
	inats "github.com/treinoia/treinoia/internal/nats"
	"github.com/treinoia/treinoia/internal/profiles"
)

var (
	entUser    string
	entTier    string
	entRole    string
	entCredits int
)

var entitlementCmd = &cobra.Command{
	Use:   "entitlement",
	Short: "Manage user plans",
}

var entitlementSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Set the tier, and optionally credits and role, of a user",
	Example: `  treinoctl entitlement set --user 7d0c... --tier premium
  treinoctl entitlement set --user 7d0c... --tier free --credits 20 --role admin`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := uuid.Parse(entUser)
		if err != nil {
			return fmt.Errorf("invalid --user: %w", err)
		}
		req, err := buildEntitlement(entTier, entRole, entCredits, cmd.Flags().Changed("credits"))
		if err != nil {
			return err
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

		events, closeEvents := eventPublisher(ctx, cfg.NATS.URL)
		defer closeEvents()

		svc := profiles.NewService(profiles.NewRepository(pool), events, cfg.Quota.DefaultCredits)
		p, err := svc.SetEntitlement(ctx, uuid.Nil, userID, req)
		if err != nil {
			return fmt.Errorf("setting entitlement: %w", err)
		}
		if p == nil {
			return fmt.Errorf("user %s has no profile", userID)
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	},
}

func init() {
	entitlementSetCmd.Flags().StringVar(&entUser, "user", "", "user ID")
	entitlementSetCmd.Flags().StringVar(&entTier, "tier", "", "free, plus, premium or unlimited")
	entitlementSetCmd.Flags().StringVar(&entRole, "role", "", "admin or user (unchanged when empty)")
	entitlementSetCmd.Flags().IntVar(&entCredits, "credits", 0, "photo credit balance")
	_ = entitlementSetCmd.MarkFlagRequired("user")
	_ = entitlementSetCmd.MarkFlagRequired("tier")

	entitlementCmd.AddCommand(entitlementSetCmd)
}

// buildEntitlement applies the same validation rules as the admin endpoint.
func buildEntitlement(tier, role string, credits int, creditsSet bool) (*profiles.EntitlementRequest, error) {
	req := &profiles.EntitlementRequest{Tier: tier, Role: role}
	if creditsSet {
		req.Credits = &credits
	}
	if err := validator.New().Struct(req); err != nil {
		return nil, fmt.Errorf("invalid entitlement: %w", err)
	}
	return req, nil
}

// eventPublisher connects to NATS when configured so plan changes made from
// the CLI reach the audit trail like those made through the API.
func eventPublisher(ctx context.Context, url string) (inats.EventPublisher, func()) {
	if url == "" {
		return inats.NopPublisher{}, func() {}
	}
	client, err := inats.NewClient(ctx, config.NATSConfig{URL: url})
	if err != nil {
		slog.Warn("nats unavailable, audit event skipped", "error", err)
		return inats.NopPublisher{}, func() {}
	}
	return inats.NewPublisher(client.JetStream()), client.Close
}
