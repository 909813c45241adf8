/**
 * @description
 * The settlement engine pays a pickup partner when an order moves into `completed`.
 * It runs exactly once per completion transition: the MCP wallet is debited, the
 * partner wallet credited and a `payment` transaction appended. When the MCP cannot
 * cover the amount the order still completes and the payment is recorded as `pending`
 * for later reconciliation. Partner counters move in the same storage transaction.
 *
 * @dependencies
 * - internal/ledger: debit/credit/record inside a shared storage transaction.
 * - github.com/shopspring/decimal: commission arithmetic.
 */

package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ayerhssb/mcpSystem/internal/domain"
	"github.com/ayerhssb/mcpSystem/internal/ledger"
	"github.com/ayerhssb/mcpSystem/pkg/logger"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Status string

const (
	StatusSettled Status = "settled"
	StatusPending Status = "pending"
	StatusSkipped Status = "skipped"
)

const (
	reasonNotCompleting = "no completion transition"
	reasonNoPartner     = "no partner assigned"
	reasonNoPartnerRow  = "assigned partner no longer exists"
	reasonNothingOwed   = "nothing owed"
	reasonInsufficient  = "insufficient funds"
)

var hundred = decimal.NewFromInt(100)

// Settlement is the payment outcome attached to an order completion.
type Settlement struct {
	Status      Status              `json:"status"`
	Amount      domain.Amount       `json:"amount"`
	Reason      string              `json:"reason,omitempty"`
	Transaction *domain.Transaction `json:"transaction,omitempty"`
}

func skipped(reason string) *Settlement {
	return &Settlement{Status: StatusSkipped, Reason: reason}
}

// PartnerOwed computes what the partner earns for the order under its current
// payment policy. Fixed partners get their flat amount; commission partners get
// paymentAmount percent of the order value, rounded half up to two decimals.
func PartnerOwed(partner *domain.Partner, order *domain.Order) (domain.Amount, error) {
	if partner.PaymentAmount.IsNegative() {
		return 0, fmt.Errorf("%w: partner payment amount %s", domain.ErrInvalidAmount, partner.PaymentAmount)
	}
	switch partner.PaymentType {
	case domain.PaymentFixed:
		return domain.NewAmountFromDecimal(partner.PaymentAmount.Round(domain.MinorUnitScale))
	case domain.PaymentCommission:
		owed := order.PaymentAmount.Decimal().Mul(partner.PaymentAmount).Div(hundred).Round(domain.MinorUnitScale)
		return domain.NewAmountFromDecimal(owed)
	default:
		return 0, fmt.Errorf("unknown payment type %q", partner.PaymentType)
	}
}

// Engine settles completed orders against the ledger.
type Engine struct {
	ledger *ledger.Ledger
	log    *zap.SugaredLogger
	now    func() time.Time
}

func NewEngine(l *ledger.Ledger, log *zap.SugaredLogger) *Engine {
	return &Engine{ledger: l, log: logger.Component(log, "settlement"), now: time.Now}
}

// WithClock overrides the clock used for completedAt.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// SettleOrder settles and persists order in its own storage transaction. order must
// already carry its new status; previous is the status it had before this update.
func (e *Engine) SettleOrder(ctx context.Context, order *domain.Order, previous domain.OrderStatus) (*Settlement, error) {
	var result *Settlement
	err := e.ledger.Within(ctx, func(tx *ledger.Tx) error {
		var err error
		result, err = e.SettleWithin(ctx, tx, order, previous)
		if err != nil {
			return err
		}
		return tx.Repo().UpdateOrder(ctx, order)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SettleWithin runs the settlement inside the caller's transaction. It sets
// order.CompletedAt but does not write the order.
func (e *Engine) SettleWithin(ctx context.Context, tx *ledger.Tx, order *domain.Order, previous domain.OrderStatus) (*Settlement, error) {
	if order.Status != domain.OrderCompleted || previous == domain.OrderCompleted {
		return skipped(reasonNotCompleting), nil
	}

	completedAt := e.now().UTC()
	order.CompletedAt = &completedAt

	if order.PickupPartnerID == nil {
		return skipped(reasonNoPartner), nil
	}

	repo := tx.Repo()
	partner, err := repo.FindPartner(ctx, order.MCPID, *order.PickupPartnerID)
	if errors.Is(err, domain.ErrPartnerNotFound) {
		e.log.Warnw("settlement skipped", "order_number", order.OrderNumber, "reason", reasonNoPartnerRow)
		return skipped(reasonNoPartnerRow), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load partner: %w", err)
	}

	owed, err := PartnerOwed(partner, order)
	if err != nil {
		return nil, err
	}

	counters := domain.CounterDelta{Completed: 1, Pending: -1}
	if owed == 0 {
		if _, err := repo.AdjustPartnerCounters(ctx, partner.ID, counters); err != nil {
			return nil, fmt.Errorf("adjust partner counters: %w", err)
		}
		return skipped(reasonNothingOwed), nil
	}

	if err := e.ensurePartnerWallet(ctx, tx, partner); err != nil {
		return nil, err
	}

	mcpOwner := domain.MCPOwner(order.MCPID)
	mcpName := ""
	if user, err := repo.FindUserByID(ctx, order.MCPID); err == nil {
		mcpName = user.Name
	}
	entry := ledger.Entry{
		Kind:           domain.TransactionPayment,
		Amount:         owed,
		From:           domain.OwnerParty(mcpOwner, mcpName),
		To:             domain.OwnerParty(partner.Owner(), partner.Name),
		RelatedOrderID: &order.ID,
	}

	result := &Settlement{Amount: owed}
	_, err = tx.Debit(ctx, mcpOwner, owed)
	switch {
	case err == nil:
		if _, err := tx.Credit(ctx, partner.Owner(), owed); err != nil {
			return nil, fmt.Errorf("credit partner: %w", err)
		}
		entry.Status = domain.TransactionCompleted
		entry.Description = "Payment for order #" + order.OrderNumber
		result.Status = StatusSettled
	case errors.Is(err, domain.ErrInsufficientFunds):
		entry.Status = domain.TransactionPending
		entry.Description = "Payment for order #" + order.OrderNumber + " (Pending due to insufficient funds)"
		result.Status = StatusPending
		result.Reason = reasonInsufficient
	default:
		return nil, err
	}

	if _, err := repo.AdjustPartnerCounters(ctx, partner.ID, counters); err != nil {
		return nil, fmt.Errorf("adjust partner counters: %w", err)
	}
	record, err := tx.Record(ctx, entry)
	if err != nil {
		return nil, err
	}
	result.Transaction = record

	e.log.Infow("order settled",
		"order_number", order.OrderNumber,
		"partner_id", partner.ID,
		"amount", owed.String(),
		"outcome", string(result.Status),
		"reference", record.Reference,
	)
	return result, nil
}

func (e *Engine) ensurePartnerWallet(ctx context.Context, tx *ledger.Tx, partner *domain.Partner) error {
	wallet, created, err := tx.EnsureWallet(ctx, partner.Owner())
	if err != nil {
		return err
	}
	if created || partner.WalletID == nil || *partner.WalletID != wallet.ID {
		if err := tx.Repo().SetPartnerWallet(ctx, partner.ID, wallet.ID); err != nil {
			return fmt.Errorf("link partner wallet: %w", err)
		}
		partner.WalletID = &wallet.ID
	}
	return nil
}
