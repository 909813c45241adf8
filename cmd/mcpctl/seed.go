package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/ayerhssb/mcpSystem/internal/auth"
	"github.com/ayerhssb/mcpSystem/internal/domain"
	"github.com/ayerhssb/mcpSystem/internal/ledger"
	"github.com/ayerhssb/mcpSystem/internal/partners"
	"github.com/ayerhssb/mcpSystem/internal/wallet"
	"github.com/ayerhssb/mcpSystem/pkg/idgen"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	seedName        string
	seedEmail       string
	seedPassword    string
	seedPartners    int
	seedMCPBalance  int64
	seedPartnerFund int64
)

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create a demo MCP with funded pickup partners",
		Long: `Create (or reuse) a demo MCP account, add funds to its wallet, and create
pickup partners on a fixed payment of 50, each funded by a transfer from the MCP.
All money moves through the ledger, so the seeded balances have a full history.

Examples:
  mcpctl seed
  mcpctl seed --email ops@example.com --partners 5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			env, err := openEnvironment(ctx)
			if err != nil {
				return err
			}
			defer env.close()

			l := ledger.New(env.repo, idgen.New(env.repo), ledger.Options{Currency: env.cfg.DefaultCurrency, Logger: env.log})
			secret := env.cfg.JWTSecret
			if secret == "" {
				secret = uuid.NewString()
			}
			return runSeed(ctx, l, auth.NewTokens(secret, env.cfg.JWTTTL()))
		},
	}

	cmd.Flags().StringVar(&seedName, "name", "Demo MCP", "MCP display name")
	cmd.Flags().StringVar(&seedEmail, "email", "demo@mcp.example", "MCP login email")
	cmd.Flags().StringVar(&seedPassword, "password", "password123", "MCP login password")
	cmd.Flags().IntVarP(&seedPartners, "partners", "n", 3, "number of pickup partners")
	cmd.Flags().Int64Var(&seedMCPBalance, "mcp-balance", 5000, "MCP balance after seeding, in major units")
	cmd.Flags().Int64Var(&seedPartnerFund, "partner-balance", 500, "opening balance of each partner, in major units")

	return cmd
}

func runSeed(ctx context.Context, l *ledger.Ledger, tokens *auth.Tokens) error {
	authService := auth.NewService(l, tokens, nil)
	walletService := wallet.NewService(l, nil)
	partnerService := partners.NewService(l, nil)

	session, err := authService.Register(ctx, domain.RegisterRequest{Name: seedName, Email: seedEmail, Password: seedPassword})
	created := err == nil
	if errors.Is(err, domain.ErrEmailTaken) {
		session, err = authService.Login(ctx, domain.LoginRequest{Email: seedEmail, Password: seedPassword})
	}
	if err != nil {
		return fmt.Errorf("seed mcp: %w", err)
	}
	mcpID := session.User.ID
	fmt.Printf("MCP %s (%s)\n", session.User.Email, mcpID)

	if created && seedMCPBalance > 0 {
		if _, err := walletService.AddFunds(ctx, mcpID, domain.AddFundsRequest{Amount: domain.Major(seedMCPBalance), PaymentMethod: "Seed"}); err != nil {
			return fmt.Errorf("seed funds: %w", err)
		}
	}

	fee := decimal.NewFromInt(50)
	for i := 1; i <= seedPartners; i++ {
		partner, err := partnerService.Create(ctx, mcpID, domain.CreatePartnerRequest{
			Name:          fmt.Sprintf("Partner %d", i),
			Phone:         fmt.Sprintf("90000000%02d", i),
			Email:         fmt.Sprintf("partner%d@example.com", i),
			Address:       "Local City",
			PaymentType:   domain.PaymentFixed,
			PaymentAmount: &fee,
		})
		if errors.Is(err, domain.ErrDuplicatePartner) {
			fmt.Printf("Partner %d already exists, skipping\n", i)
			continue
		}
		if err != nil {
			return fmt.Errorf("seed partner %d: %w", i, err)
		}
		if seedPartnerFund > 0 {
			// Top up first so the partner float does not eat into the MCP balance.
			if _, err := walletService.AddFunds(ctx, mcpID, domain.AddFundsRequest{Amount: domain.Major(seedPartnerFund), PaymentMethod: "Seed"}); err != nil {
				return fmt.Errorf("seed funds for partner %d: %w", i, err)
			}
			if _, err := walletService.TransferToPartner(ctx, mcpID, domain.TransferToPartnerRequest{
				PartnerID: partner.ID,
				Amount:    domain.Major(seedPartnerFund),
			}); err != nil {
				return fmt.Errorf("fund partner %d: %w", i, err)
			}
		}
		fmt.Printf("Partner %s (%s)\n", partner.Name, partner.ID)
	}

	balance, err := walletService.Balance(ctx, mcpID)
	if err != nil {
		return err
	}
	fmt.Printf("MCP balance %s %s\n", balance.Balance.String(), balance.Currency)
	return nil
}
