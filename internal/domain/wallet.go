/**
 * @description
 * Wallet and Transaction models. A wallet is keyed by its owner (id + kind); a
 * transaction is an immutable audit record of one money movement.
 *
 * @dependencies
 * - github.com/google/uuid: identifiers for wallets, owners and transactions.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// OwnerKind distinguishes the two kinds of wallet holders.
type OwnerKind string

const (
	OwnerMCP     OwnerKind = "mcp-user"
	OwnerPartner OwnerKind = "pickup-partner"
)

func (k OwnerKind) Valid() bool {
	return k == OwnerMCP || k == OwnerPartner
}

// Owner identifies a wallet holder.
type Owner struct {
	ID   uuid.UUID `json:"id"`
	Kind OwnerKind `json:"kind"`
}

func MCPOwner(id uuid.UUID) Owner     { return Owner{ID: id, Kind: OwnerMCP} }
func PartnerOwner(id uuid.UUID) Owner { return Owner{ID: id, Kind: OwnerPartner} }

func (o Owner) String() string {
	return string(o.Kind) + ":" + o.ID.String()
}

// Wallet is the persisted balance record for one owner.
type Wallet struct {
	ID             uuid.UUID `json:"id"`
	OwnerID        uuid.UUID `json:"ownerId"`
	OwnerKind      OwnerKind `json:"ownerKind"`
	Balance        Amount    `json:"balance"`
	TotalAdded     Amount    `json:"totalAdded"`
	TotalWithdrawn Amount    `json:"totalWithdrawn"`
	Currency       string    `json:"currency"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func (w *Wallet) Owner() Owner {
	return Owner{ID: w.OwnerID, Kind: w.OwnerKind}
}

// PartyKind is the kind of a transaction endpoint.
type PartyKind string

const (
	PartyMCP     PartyKind = "mcp-user"
	PartyPartner PartyKind = "pickup-partner"
	PartySystem  PartyKind = "system"
)

// Party is one side of a transaction. ID is nil for system parties.
type Party struct {
	ID   *uuid.UUID `json:"id,omitempty"`
	Kind PartyKind  `json:"kind"`
	Name string     `json:"name,omitempty"`
}

// OwnerParty builds a Party for a wallet owner.
func OwnerParty(owner Owner, name string) *Party {
	id := owner.ID
	return &Party{ID: &id, Kind: PartyKind(owner.Kind), Name: name}
}

// SystemParty builds a Party for an external source or sink (bank, payment method).
func SystemParty(name string) *Party {
	return &Party{Kind: PartySystem, Name: name}
}

type TransactionKind string

const (
	TransactionDeposit    TransactionKind = "deposit"
	TransactionWithdrawal TransactionKind = "withdrawal"
	TransactionTransfer   TransactionKind = "transfer"
	TransactionPayment    TransactionKind = "payment"
	TransactionRefund     TransactionKind = "refund"
)

func (k TransactionKind) Valid() bool {
	switch k {
	case TransactionDeposit, TransactionWithdrawal, TransactionTransfer, TransactionPayment, TransactionRefund:
		return true
	}
	return false
}

type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionCompleted TransactionStatus = "completed"
	TransactionFailed    TransactionStatus = "failed"
)

// Transaction is an append-only ledger record. Status is fixed at creation.
type Transaction struct {
	ID             uuid.UUID         `json:"id"`
	Reference      string            `json:"transactionId"`
	Amount         Amount            `json:"amount"`
	Kind           TransactionKind   `json:"type"`
	Status         TransactionStatus `json:"status"`
	From           *Party            `json:"from,omitempty"`
	To             *Party            `json:"to,omitempty"`
	Description    string            `json:"description"`
	RelatedOrderID *uuid.UUID        `json:"relatedOrder,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
}

// Involves reports whether owner appears on either side of the transaction.
func (t *Transaction) Involves(owner Owner) bool {
	for _, p := range []*Party{t.From, t.To} {
		if p != nil && p.ID != nil && *p.ID == owner.ID && p.Kind == PartyKind(owner.Kind) {
			return true
		}
	}
	return false
}

// TransactionFilter narrows a transaction listing to one party.
type TransactionFilter struct {
	Party  Owner
	Kind   TransactionKind
	Status TransactionStatus
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

// PendingPaymentSummary aggregates unsettled payment transactions owed by one MCP.
type PendingPaymentSummary struct {
	MCPID  uuid.UUID `json:"mcpId"`
	Count  int       `json:"count"`
	Amount Amount    `json:"amount"`
	Oldest time.Time `json:"oldest"`
}
