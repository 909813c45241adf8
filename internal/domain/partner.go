package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PartnerStatus string

const (
	PartnerActive   PartnerStatus = "active"
	PartnerInactive PartnerStatus = "inactive"
)

func (s PartnerStatus) Valid() bool {
	return s == PartnerActive || s == PartnerInactive
}

type PaymentType string

const (
	PaymentFixed      PaymentType = "fixed"
	PaymentCommission PaymentType = "commission"
)

func (p PaymentType) Valid() bool {
	return p == PaymentFixed || p == PaymentCommission
}

// Partner is a pickup partner working for one MCP. PaymentAmount is a flat
// major-unit amount for fixed partners and a percentage for commission partners.
type Partner struct {
	ID              uuid.UUID       `json:"id"`
	MCPID           uuid.UUID       `json:"mcp"`
	Name            string          `json:"name"`
	Phone           string          `json:"phone"`
	Email           string          `json:"email,omitempty"`
	Address         string          `json:"address,omitempty"`
	Status          PartnerStatus   `json:"status"`
	PaymentType     PaymentType     `json:"paymentType"`
	PaymentAmount   decimal.Decimal `json:"paymentAmount"`
	WalletID        *uuid.UUID      `json:"wallet,omitempty"`
	TotalOrders     int             `json:"totalOrders"`
	CompletedOrders int             `json:"completedOrders"`
	PendingOrders   int             `json:"pendingOrders"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

func (p *Partner) Owner() Owner {
	return PartnerOwner(p.ID)
}

// CounterDelta is an atomic adjustment of a partner's order counters.
type CounterDelta struct {
	Total     int
	Completed int
	Pending   int
}

func (d CounterDelta) IsZero() bool {
	return d.Total == 0 && d.Completed == 0 && d.Pending == 0
}

type PartnerFilter struct {
	MCPID  uuid.UUID
	Status PartnerStatus
	Search string
	Limit  int
	Offset int
}

type PartnerStatistics struct {
	Total       int       `json:"totalPartners"`
	Active      int       `json:"activePartners"`
	Inactive    int       `json:"inactivePartners"`
	TopPartners []Partner `json:"topPartners"`
}
