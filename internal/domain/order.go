package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderInProgress OrderStatus = "in-progress"
	OrderCompleted  OrderStatus = "completed"
	OrderCancelled  OrderStatus = "cancelled"
)

// orderTransitions lists the allowed moves out of each status. Completed is terminal.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:    {OrderInProgress, OrderCompleted, OrderCancelled},
	OrderInProgress: {OrderPending, OrderCompleted, OrderCancelled},
	OrderCancelled:  {OrderPending},
	OrderCompleted:  {},
}

func (s OrderStatus) Valid() bool {
	_, ok := orderTransitions[s]
	return ok
}

// Active reports whether the order still occupies a partner slot.
func (s OrderStatus) Active() bool {
	return s == OrderPending || s == OrderInProgress
}

// CanTransition reports whether the order may move from s to next.
// Re-submitting the current status is always allowed and is a no-op.
func (s OrderStatus) CanTransition(next OrderStatus) error {
	if !next.Valid() {
		return NewValidationError("status", fmt.Sprintf("unknown order status %q", next))
	}
	if s == next {
		return nil
	}
	if s == OrderCompleted {
		return ErrOrderAlreadyCompleted
	}
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, s, next)
}

type Customer struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

type Location struct {
	Address string   `json:"address,omitempty"`
	Lat     *float64 `json:"lat,omitempty"`
	Lng     *float64 `json:"lng,omitempty"`
}

// Order is a customer pickup owned by one MCP.
type Order struct {
	ID              uuid.UUID   `json:"id"`
	OrderNumber     string      `json:"orderNumber"`
	MCPID           uuid.UUID   `json:"mcp"`
	Customer        Customer    `json:"customer"`
	PickupPartnerID *uuid.UUID  `json:"pickupPartner,omitempty"`
	Status          OrderStatus `json:"status"`
	PaymentAmount   Amount      `json:"paymentAmount"`
	Description     string      `json:"description,omitempty"`
	PickupLocation  *Location   `json:"pickupLocation,omitempty"`
	DropLocation    *Location   `json:"dropLocation,omitempty"`
	AssignedAt      *time.Time  `json:"assignedAt,omitempty"`
	CompletedAt     *time.Time  `json:"completedAt,omitempty"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}

type OrderFilter struct {
	MCPID     uuid.UUID
	Status    OrderStatus
	PartnerID *uuid.UUID
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}

type OrderStatistics struct {
	Total      int `json:"totalOrders"`
	Pending    int `json:"pendingOrders"`
	InProgress int `json:"inProgressOrders"`
	Completed  int `json:"completedOrders"`
	Cancelled  int `json:"cancelledOrders"`
}

// MonthlyOrderCount is the raw per-month aggregate returned by storage.
type MonthlyOrderCount struct {
	Year      int
	Month     time.Month
	Total     int
	Completed int
}

// MonthlyOrderStat is one bucket of the dashboard's order chart.
type MonthlyOrderStat struct {
	Year      int    `json:"year"`
	Month     string `json:"month"`
	Total     int    `json:"totalOrders"`
	Completed int    `json:"completedOrders"`
}
