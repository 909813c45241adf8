/**
 * @description
 * The wallet service is the MCP-facing side of the ledger: adding funds, paying a
 * pickup partner directly and withdrawing to a bank account, plus balance and
 * history queries. Insufficient funds is a hard failure for every operation here;
 * nothing is written when it occurs.
 *
 * @dependencies
 * - internal/ledger: primitives and transactional Tx.
 * - github.com/xuri/excelize/v2: transaction history export (export.go).
 */

package wallet

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ayerhssb/mcpSystem/internal/domain"
	"github.com/ayerhssb/mcpSystem/internal/ledger"
	"github.com/ayerhssb/mcpSystem/internal/store"
	"github.com/ayerhssb/mcpSystem/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

type Service struct {
	repo      store.Repository
	ledger    *ledger.Ledger
	log       *zap.SugaredLogger
	exportCap int
}

func NewService(l *ledger.Ledger, log *zap.SugaredLogger) *Service {
	return &Service{repo: l.Repo(), ledger: l, log: logger.Component(log, "wallet"), exportCap: exportMaxRows}
}

type TransactionPage struct {
	Transactions []domain.Transaction `json:"transactions"`
	Total        int                  `json:"total"`
	Page         int                  `json:"page"`
	Limit        int                  `json:"limit"`
	Pages        int                  `json:"pages"`
}

// HistoryQuery narrows the MCP's transaction history.
type HistoryQuery struct {
	Kind   domain.TransactionKind
	Status domain.TransactionStatus
	From   *time.Time
	To     *time.Time
	Page   int
	Limit  int
}

func (s *Service) mcpName(ctx context.Context, mcpID uuid.UUID) string {
	user, err := s.repo.FindUserByID(ctx, mcpID)
	if err != nil {
		return ""
	}
	return user.Name
}

func (s *Service) Balance(ctx context.Context, mcpID uuid.UUID) (*domain.Wallet, error) {
	return s.repo.FindWallet(ctx, domain.MCPOwner(mcpID))
}

// AddFunds deposits into the MCP wallet from an external payment method.
func (s *Service) AddFunds(ctx context.Context, mcpID uuid.UUID, req domain.AddFundsRequest) (*ledger.Result, error) {
	return s.ledger.Deposit(ctx, ledger.DepositRequest{
		Owner:     domain.MCPOwner(mcpID),
		OwnerName: s.mcpName(ctx, mcpID),
		Amount:    req.Amount,
		Source:    strings.TrimSpace(req.PaymentMethod),
	})
}

// TransferToPartner pays one of the MCP's partners directly. The debit, credit and
// transaction record commit together; the partner's wallet is created if missing.
func (s *Service) TransferToPartner(ctx context.Context, mcpID uuid.UUID, req domain.TransferToPartnerRequest) (*ledger.TransferResult, error) {
	if err := req.Amount.Validate(); err != nil {
		return nil, err
	}
	if req.PartnerID == uuid.Nil {
		return nil, domain.NewValidationError("partnerId", "is required")
	}
	mcpName := s.mcpName(ctx, mcpID)

	var result *ledger.TransferResult
	err := s.ledger.Within(ctx, func(tx *ledger.Tx) error {
		repo := tx.Repo()
		partner, err := repo.FindPartner(ctx, mcpID, req.PartnerID)
		if err != nil {
			return err
		}
		wallet, created, err := tx.EnsureWallet(ctx, partner.Owner())
		if err != nil {
			return err
		}
		if created || partner.WalletID == nil {
			if err := repo.SetPartnerWallet(ctx, partner.ID, wallet.ID); err != nil {
				return fmt.Errorf("link partner wallet: %w", err)
			}
		}

		description := strings.TrimSpace(req.Description)
		if description == "" {
			description = "Funds transferred to partner " + partner.Name
		}
		result, err = tx.Move(ctx, ledger.MoveRequest{
			From:        domain.MCPOwner(mcpID),
			FromName:    mcpName,
			To:          partner.Owner(),
			ToName:      partner.Name,
			Amount:      req.Amount,
			Kind:        domain.TransactionTransfer,
			Description: description,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Infow("partner transfer",
		"mcp_id", mcpID,
		"partner_id", req.PartnerID,
		"amount", req.Amount.String(),
		"reference", result.Transaction.Reference,
	)
	return result, nil
}

// Withdraw moves funds out to the MCP's bank account.
func (s *Service) Withdraw(ctx context.Context, mcpID uuid.UUID, req domain.WithdrawRequest) (*ledger.Result, error) {
	if err := req.Amount.Validate(); err != nil {
		return nil, err
	}
	if req.BankDetails == nil || strings.TrimSpace(req.BankDetails.AccountNumber) == "" {
		return nil, domain.NewValidationError("bankDetails", "bank account details are required")
	}
	return s.ledger.Withdraw(ctx, ledger.WithdrawRequest{
		Owner:     domain.MCPOwner(mcpID),
		OwnerName: s.mcpName(ctx, mcpID),
		Amount:    req.Amount,
	})
}

// Transactions lists the history of the MCP wallet, newest first.
func (s *Service) Transactions(ctx context.Context, mcpID uuid.UUID, q HistoryQuery) (*TransactionPage, error) {
	if q.Kind != "" && !q.Kind.Valid() {
		return nil, domain.NewValidationError("type", fmt.Sprintf("unknown transaction type %q", q.Kind))
	}
	page, limit := q.Page, q.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	txs, total, err := s.repo.ListTransactions(ctx, domain.TransactionFilter{
		Party:  domain.MCPOwner(mcpID),
		Kind:   q.Kind,
		Status: q.Status,
		From:   q.From,
		To:     q.To,
		Limit:  limit,
		Offset: (page - 1) * limit,
	})
	if err != nil {
		return nil, err
	}
	if txs == nil {
		txs = []domain.Transaction{}
	}
	pages := 0
	if total > 0 {
		pages = (total + limit - 1) / limit
	}
	return &TransactionPage{Transactions: txs, Total: total, Page: page, Limit: limit, Pages: pages}, nil
}
