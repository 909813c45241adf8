package domain

import (
	"time"

	"github.com/google/uuid"
)

// LedgerEvent is published on the events exchange after a transaction commits.
type LedgerEvent struct {
	TransactionID  uuid.UUID         `json:"transaction_id"`
	Reference      string            `json:"reference"`
	Kind           TransactionKind   `json:"kind"`
	Status         TransactionStatus `json:"status"`
	Amount         Amount            `json:"amount"`
	From           *Party            `json:"from,omitempty"`
	To             *Party            `json:"to,omitempty"`
	RelatedOrderID *uuid.UUID        `json:"related_order_id,omitempty"`
	OccurredAt     time.Time         `json:"occurred_at"`
}

// NewLedgerEvent snapshots a committed transaction.
func NewLedgerEvent(tx *Transaction) LedgerEvent {
	return LedgerEvent{
		TransactionID:  tx.ID,
		Reference:      tx.Reference,
		Kind:           tx.Kind,
		Status:         tx.Status,
		Amount:         tx.Amount,
		From:           tx.From,
		To:             tx.To,
		RelatedOrderID: tx.RelatedOrderID,
		OccurredAt:     tx.CreatedAt,
	}
}

// OrderStatusCommand asks the service to move an order to a new status.
// It is consumed from the broker and follows the same rules as the HTTP update.
type OrderStatusCommand struct {
	MCPID   uuid.UUID   `json:"mcp_id"`
	OrderID uuid.UUID   `json:"order_id"`
	Status  OrderStatus `json:"status"`
}

// PendingSettlementReport is published by the pending settlement job.
type PendingSettlementReport struct {
	GeneratedAt time.Time               `json:"generated_at"`
	Summaries   []PendingPaymentSummary `json:"summaries"`
}
