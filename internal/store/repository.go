/**
 * @description
 * This file defines the `Repository` interface, the contract for every data access
 * operation of the service. Business logic in ledger, settlement, orders and partners
 * depends only on this interface; PostgreSQL backs it in production and an in-memory
 * implementation backs tests and local runs.
 *
 * @dependencies
 * - github.com/google/uuid: identifiers.
 * - internal/domain: domain models and sentinel errors.
 */

package store

import (
	"context"
	"time"

	"github.com/ayerhssb/mcpSystem/internal/domain"
	"github.com/google/uuid"
)

// Repository defines the set of methods for interacting with storage.
type Repository interface {
	// InTx runs fn against a Repository bound to a single storage transaction.
	// The transaction commits when fn returns nil and rolls back otherwise.
	// Calling InTx on a Repository that is already transactional reuses it.
	InTx(ctx context.Context, fn func(Repository) error) error

	// NextSequence returns the next value of a per (scope, day) counter. It is not
	// rolled back with the surrounding transaction.
	NextSequence(ctx context.Context, scope string, day string) (int64, error)

	// Wallet methods
	CreateWallet(ctx context.Context, wallet *domain.Wallet) error
	FindWallet(ctx context.Context, owner domain.Owner) (*domain.Wallet, error)
	DepositWallet(ctx context.Context, owner domain.Owner, amount domain.Amount) (*domain.Wallet, error)
	// DebitWallet decrements the balance only if it covers amount, in one statement.
	DebitWallet(ctx context.Context, owner domain.Owner, amount domain.Amount) (*domain.Wallet, error)
	CreditWallet(ctx context.Context, owner domain.Owner, amount domain.Amount) (*domain.Wallet, error)
	// WithdrawWallet is DebitWallet plus the lifetime withdrawn total.
	WithdrawWallet(ctx context.Context, owner domain.Owner, amount domain.Amount) (*domain.Wallet, error)
	DeleteWallet(ctx context.Context, owner domain.Owner) error

	// Transaction methods
	CreateTransaction(ctx context.Context, tx *domain.Transaction) error
	FindTransactionByReference(ctx context.Context, reference string) (*domain.Transaction, error)
	ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, int, error)
	FindTransactionsByOrder(ctx context.Context, orderID uuid.UUID) ([]domain.Transaction, error)
	SummarizePendingPayments(ctx context.Context) ([]domain.PendingPaymentSummary, error)

	// User methods
	CreateUser(ctx context.Context, user *domain.User) error
	FindUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	FindUserByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdateUser(ctx context.Context, user *domain.User) error

	// Partner methods
	CreatePartner(ctx context.Context, partner *domain.Partner) error
	FindPartner(ctx context.Context, mcpID uuid.UUID, partnerID uuid.UUID) (*domain.Partner, error)
	FindPartnerByContact(ctx context.Context, mcpID uuid.UUID, email string, phone string, excludeID *uuid.UUID) (*domain.Partner, error)
	ListPartners(ctx context.Context, filter domain.PartnerFilter) ([]domain.Partner, int, error)
	UpdatePartner(ctx context.Context, partner *domain.Partner) error
	DeletePartner(ctx context.Context, mcpID uuid.UUID, partnerID uuid.UUID) error
	// AdjustPartnerCounters applies delta atomically and returns the updated partner.
	AdjustPartnerCounters(ctx context.Context, partnerID uuid.UUID, delta domain.CounterDelta) (*domain.Partner, error)
	SetPartnerWallet(ctx context.Context, partnerID uuid.UUID, walletID uuid.UUID) error
	CountActiveOrdersForPartner(ctx context.Context, partnerID uuid.UUID) (int, error)
	PartnerStatistics(ctx context.Context, mcpID uuid.UUID, top int) (*domain.PartnerStatistics, error)

	// Order methods
	CreateOrder(ctx context.Context, order *domain.Order) error
	FindOrder(ctx context.Context, mcpID uuid.UUID, orderID uuid.UUID) (*domain.Order, error)
	// FindOrderForUpdate locks the order row for the rest of the transaction.
	FindOrderForUpdate(ctx context.Context, mcpID uuid.UUID, orderID uuid.UUID) (*domain.Order, error)
	UpdateOrder(ctx context.Context, order *domain.Order) error
	ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, int, error)
	OrderStatistics(ctx context.Context, mcpID uuid.UUID) (*domain.OrderStatistics, error)
	OrderCountsByMonth(ctx context.Context, mcpID uuid.UUID, since time.Time) ([]domain.MonthlyOrderCount, error)
}
