/**
 * @description
 * The ledger is the only sanctioned way to change a wallet balance. Every primitive
 * validates the amount before touching storage, and every recorded money movement
 * gets an immutable Transaction with a date-coded reference. Multi-step operations
 * (transfers, settlements) run through Within so that all of their writes share one
 * storage transaction; ledger events are published only after that transaction commits.
 *
 * @dependencies
 * - internal/store: Repository and its transactional view.
 * - pkg/idgen: TXN-YYMMDD-NNNN references.
 * - go.uber.org/zap: structured logging.
 */

package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/ayerhssb/mcpSystem/internal/domain"
	"github.com/ayerhssb/mcpSystem/internal/store"
	"github.com/ayerhssb/mcpSystem/pkg/idgen"
	"github.com/ayerhssb/mcpSystem/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultCurrency = "INR"
	DefaultExchange = "mcp.events"

	defaultDepositSource      = "Bank Transfer"
	defaultWithdrawalSink     = "Bank Account"
	defaultWithdrawalDescText = "Withdrawal to bank account"
)

// EventPublisher is implemented by pkg/rabbitmq producers.
type EventPublisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body interface{}) error
}

type Options struct {
	Currency string
	Exchange string
	Events   EventPublisher
	Logger   *zap.SugaredLogger
}

// Ledger wraps a Repository with the ledger primitives.
type Ledger struct {
	repo     store.Repository
	refs     *idgen.Generator
	events   EventPublisher
	exchange string
	currency string
	log      *zap.SugaredLogger
}

func New(repo store.Repository, refs *idgen.Generator, opts Options) *Ledger {
	if opts.Currency == "" {
		opts.Currency = DefaultCurrency
	}
	if opts.Exchange == "" {
		opts.Exchange = DefaultExchange
	}
	return &Ledger{
		repo:     repo,
		refs:     refs,
		events:   opts.Events,
		exchange: opts.Exchange,
		currency: opts.Currency,
		log:      logger.Component(opts.Logger, "ledger"),
	}
}

// Repo exposes the underlying repository for read paths.
func (l *Ledger) Repo() store.Repository {
	return l.repo
}

func (l *Ledger) Currency() string {
	return l.currency
}

// Within runs fn inside one storage transaction. Transactions recorded through the
// Tx are published once the storage transaction has committed.
func (l *Ledger) Within(ctx context.Context, fn func(tx *Tx) error) error {
	var handle *Tx
	err := l.repo.InTx(ctx, func(repo store.Repository) error {
		handle = &Tx{ledger: l, repo: repo}
		return fn(handle)
	})
	if err != nil {
		return err
	}
	l.publish(ctx, handle.recorded)
	return nil
}

func (l *Ledger) publish(ctx context.Context, recorded []*domain.Transaction) {
	if l.events == nil {
		return
	}
	for _, tx := range recorded {
		event := domain.NewLedgerEvent(tx)
		routingKey := "ledger.transaction." + string(tx.Kind)
		if err := l.events.Publish(ctx, l.exchange, routingKey, event); err != nil {
			l.log.Warnw("ledger event publish failed", "reference", tx.Reference, "routing_key", routingKey, "err", err)
		}
		if tx.Kind == domain.TransactionPayment && tx.Status == domain.TransactionPending {
			if err := l.events.Publish(ctx, l.exchange, "ledger.settlement.pending", event); err != nil {
				l.log.Warnw("pending settlement event publish failed", "reference", tx.Reference, "err", err)
			}
		}
	}
}

// Result is the outcome of a single-wallet ledger operation.
type Result struct {
	Wallet      *domain.Wallet      `json:"wallet"`
	Transaction *domain.Transaction `json:"transaction"`
}

// TransferResult is the outcome of a two-wallet movement.
type TransferResult struct {
	From        *domain.Wallet      `json:"fromWallet"`
	To          *domain.Wallet      `json:"toWallet"`
	Transaction *domain.Transaction `json:"transaction"`
}

type DepositRequest struct {
	Owner       domain.Owner
	OwnerName   string
	Amount      domain.Amount
	Source      string
	Description string
}

// Deposit credits funds arriving from outside the system and records a completed
// deposit whose from side is a system party named after the source.
func (l *Ledger) Deposit(ctx context.Context, req DepositRequest) (*Result, error) {
	if err := req.Amount.Validate(); err != nil {
		return nil, err
	}
	if req.Source == "" {
		req.Source = defaultDepositSource
	}
	if req.Description == "" {
		req.Description = "Funds added via " + req.Source
	}

	var res Result
	err := l.Within(ctx, func(tx *Tx) error {
		wallet, err := tx.Deposit(ctx, req.Owner, req.Amount)
		if err != nil {
			return err
		}
		record, err := tx.Record(ctx, Entry{
			Kind:        domain.TransactionDeposit,
			Status:      domain.TransactionCompleted,
			Amount:      req.Amount,
			From:        domain.SystemParty(req.Source),
			To:          domain.OwnerParty(req.Owner, req.OwnerName),
			Description: req.Description,
		})
		if err != nil {
			return err
		}
		res = Result{Wallet: wallet, Transaction: record}
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.log.Infow("deposit recorded", "owner", req.Owner.String(), "amount", req.Amount.String(), "reference", res.Transaction.Reference)
	return &res, nil
}

type WithdrawRequest struct {
	Owner       domain.Owner
	OwnerName   string
	Amount      domain.Amount
	Destination string
	Description string
}

// Withdraw moves funds out of the system. It fails with ErrInsufficientFunds and
// writes nothing when the balance does not cover the amount.
func (l *Ledger) Withdraw(ctx context.Context, req WithdrawRequest) (*Result, error) {
	if err := req.Amount.Validate(); err != nil {
		return nil, err
	}
	if req.Destination == "" {
		req.Destination = defaultWithdrawalSink
	}
	if req.Description == "" {
		req.Description = defaultWithdrawalDescText
	}

	var res Result
	err := l.Within(ctx, func(tx *Tx) error {
		wallet, err := tx.Withdraw(ctx, req.Owner, req.Amount)
		if err != nil {
			return err
		}
		record, err := tx.Record(ctx, Entry{
			Kind:        domain.TransactionWithdrawal,
			Status:      domain.TransactionCompleted,
			Amount:      req.Amount,
			From:        domain.OwnerParty(req.Owner, req.OwnerName),
			To:          domain.SystemParty(req.Destination),
			Description: req.Description,
		})
		if err != nil {
			return err
		}
		res = Result{Wallet: wallet, Transaction: record}
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.log.Infow("withdrawal recorded", "owner", req.Owner.String(), "amount", req.Amount.String(), "reference", res.Transaction.Reference)
	return &res, nil
}

// Debit is the bare primitive: decrement if the balance covers amount.
func (l *Ledger) Debit(ctx context.Context, owner domain.Owner, amount domain.Amount) (*domain.Wallet, error) {
	var wallet *domain.Wallet
	err := l.Within(ctx, func(tx *Tx) error {
		var err error
		wallet, err = tx.Debit(ctx, owner, amount)
		return err
	})
	return wallet, err
}

// Credit is the bare primitive: increment the balance.
func (l *Ledger) Credit(ctx context.Context, owner domain.Owner, amount domain.Amount) (*domain.Wallet, error) {
	var wallet *domain.Wallet
	err := l.Within(ctx, func(tx *Tx) error {
		var err error
		wallet, err = tx.Credit(ctx, owner, amount)
		return err
	})
	return wallet, err
}

// Transfer moves funds between two wallets in one unit, provisioning the
// destination wallet if it does not exist yet.
func (l *Ledger) Transfer(ctx context.Context, req MoveRequest) (*TransferResult, error) {
	if err := req.Amount.Validate(); err != nil {
		return nil, err
	}
	var res *TransferResult
	err := l.Within(ctx, func(tx *Tx) error {
		if _, _, err := tx.EnsureWallet(ctx, req.To); err != nil {
			return err
		}
		var err error
		res, err = tx.Move(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Tx exposes the ledger primitives inside a caller-owned storage transaction.
type Tx struct {
	ledger   *Ledger
	repo     store.Repository
	recorded []*domain.Transaction
}

// Repo is the transactional repository; use it for non-ledger writes that must
// commit or roll back together with the money movement.
func (t *Tx) Repo() store.Repository {
	return t.repo
}

// EnsureWallet returns the owner's wallet, creating an empty one if needed.
func (t *Tx) EnsureWallet(ctx context.Context, owner domain.Owner) (*domain.Wallet, bool, error) {
	if !owner.Kind.Valid() || owner.ID == uuid.Nil {
		return nil, false, fmt.Errorf("ensure wallet: invalid owner %s", owner)
	}
	wallet, err := t.repo.FindWallet(ctx, owner)
	if err == nil {
		return wallet, false, nil
	}
	if !errors.Is(err, domain.ErrWalletNotFound) {
		return nil, false, fmt.Errorf("find wallet: %w", err)
	}

	wallet = &domain.Wallet{
		OwnerID:   owner.ID,
		OwnerKind: owner.Kind,
		Currency:  t.ledger.currency,
	}
	if err := t.repo.CreateWallet(ctx, wallet); err != nil {
		if errors.Is(err, domain.ErrWalletExists) {
			existing, findErr := t.repo.FindWallet(ctx, owner)
			return existing, false, findErr
		}
		return nil, false, fmt.Errorf("create wallet: %w", err)
	}
	t.ledger.log.Infow("wallet provisioned", "owner", owner.String(), "wallet_id", wallet.ID)
	return wallet, true, nil
}

func (t *Tx) Deposit(ctx context.Context, owner domain.Owner, amount domain.Amount) (*domain.Wallet, error) {
	if err := amount.Validate(); err != nil {
		return nil, err
	}
	return t.repo.DepositWallet(ctx, owner, amount)
}

func (t *Tx) Debit(ctx context.Context, owner domain.Owner, amount domain.Amount) (*domain.Wallet, error) {
	if err := amount.Validate(); err != nil {
		return nil, err
	}
	return t.repo.DebitWallet(ctx, owner, amount)
}

func (t *Tx) Credit(ctx context.Context, owner domain.Owner, amount domain.Amount) (*domain.Wallet, error) {
	if err := amount.Validate(); err != nil {
		return nil, err
	}
	return t.repo.CreditWallet(ctx, owner, amount)
}

func (t *Tx) Withdraw(ctx context.Context, owner domain.Owner, amount domain.Amount) (*domain.Wallet, error) {
	if err := amount.Validate(); err != nil {
		return nil, err
	}
	return t.repo.WithdrawWallet(ctx, owner, amount)
}

// Entry describes a transaction to append.
type Entry struct {
	Kind           domain.TransactionKind
	Status         domain.TransactionStatus
	Amount         domain.Amount
	From           *domain.Party
	To             *domain.Party
	Description    string
	RelatedOrderID *uuid.UUID
}

// Record appends an immutable transaction. The reference is assigned here.
func (t *Tx) Record(ctx context.Context, entry Entry) (*domain.Transaction, error) {
	if err := entry.Amount.Validate(); err != nil {
		return nil, err
	}
	if !entry.Kind.Valid() {
		return nil, fmt.Errorf("record transaction: unknown kind %q", entry.Kind)
	}
	if entry.Status == "" {
		entry.Status = domain.TransactionCompleted
	}

	reference, err := t.ledger.refs.TransactionReference(ctx)
	if err != nil {
		return nil, err
	}
	record := &domain.Transaction{
		ID:             uuid.New(),
		Reference:      reference,
		Amount:         entry.Amount,
		Kind:           entry.Kind,
		Status:         entry.Status,
		From:           entry.From,
		To:             entry.To,
		Description:    entry.Description,
		RelatedOrderID: entry.RelatedOrderID,
	}
	if err := t.repo.CreateTransaction(ctx, record); err != nil {
		return nil, fmt.Errorf("append transaction %s: %w", reference, err)
	}
	t.recorded = append(t.recorded, record)
	return record, nil
}

// MoveRequest describes a wallet to wallet movement.
type MoveRequest struct {
	From           domain.Owner
	FromName       string
	To             domain.Owner
	ToName         string
	Amount         domain.Amount
	Kind           domain.TransactionKind
	Description    string
	RelatedOrderID *uuid.UUID
}

// Move debits From, credits To and appends one completed transaction. Any failure
// is returned as is; the caller's transaction rolls everything back.
func (t *Tx) Move(ctx context.Context, req MoveRequest) (*TransferResult, error) {
	if err := req.Amount.Validate(); err != nil {
		return nil, err
	}
	if req.Kind == "" {
		req.Kind = domain.TransactionTransfer
	}
	if req.From == req.To {
		return nil, domain.NewValidationError("to", "source and destination wallets must differ")
	}

	from, err := t.Debit(ctx, req.From, req.Amount)
	if err != nil {
		return nil, err
	}
	to, err := t.Credit(ctx, req.To, req.Amount)
	if err != nil {
		return nil, err
	}
	record, err := t.Record(ctx, Entry{
		Kind:           req.Kind,
		Status:         domain.TransactionCompleted,
		Amount:         req.Amount,
		From:           domain.OwnerParty(req.From, req.FromName),
		To:             domain.OwnerParty(req.To, req.ToName),
		Description:    req.Description,
		RelatedOrderID: req.RelatedOrderID,
	})
	if err != nil {
		return nil, err
	}
	return &TransferResult{From: from, To: to, Transaction: record}, nil
}
