package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AddFundsRequest is the body of POST /api/wallet/add-funds.
type AddFundsRequest struct {
	Amount        Amount `json:"amount"`
	PaymentMethod string `json:"paymentMethod"`
}

// TransferToPartnerRequest is the body of POST /api/wallet/transfer-to-partner.
type TransferToPartnerRequest struct {
	PartnerID   uuid.UUID `json:"partnerId"`
	Amount      Amount    `json:"amount"`
	Description string    `json:"description"`
}

type BankDetails struct {
	AccountName   string `json:"accountName"`
	AccountNumber string `json:"accountNumber"`
	BankName      string `json:"bankName"`
	IFSC          string `json:"ifsc,omitempty"`
}

// WithdrawRequest is the body of POST /api/wallet/withdraw.
type WithdrawRequest struct {
	Amount      Amount       `json:"amount"`
	BankDetails *BankDetails `json:"bankDetails"`
}

type CreateOrderRequest struct {
	Customer        Customer   `json:"customer"`
	PaymentAmount   Amount     `json:"paymentAmount"`
	Description     string     `json:"description"`
	PickupLocation  *Location  `json:"pickupLocation"`
	DropLocation    *Location  `json:"dropLocation"`
	PickupPartnerID *uuid.UUID `json:"pickupPartnerId"`
}

// UpdateOrderRequest carries optional edits; nil fields are left unchanged.
type UpdateOrderRequest struct {
	Customer       *Customer    `json:"customer"`
	PaymentAmount  *Amount      `json:"paymentAmount"`
	Description    *string      `json:"description"`
	PickupLocation *Location    `json:"pickupLocation"`
	DropLocation   *Location    `json:"dropLocation"`
	Status         *OrderStatus `json:"status"`
}

// HasFieldEdits reports whether anything other than the status is being changed.
func (r UpdateOrderRequest) HasFieldEdits() bool {
	return r.Customer != nil || r.PaymentAmount != nil || r.Description != nil ||
		r.PickupLocation != nil || r.DropLocation != nil
}

type AssignOrderRequest struct {
	PartnerID uuid.UUID `json:"partnerId"`
}

type CreatePartnerRequest struct {
	Name          string           `json:"name"`
	Phone         string           `json:"phone"`
	Email         string           `json:"email"`
	Address       string           `json:"address"`
	PaymentType   PaymentType      `json:"paymentType"`
	PaymentAmount *decimal.Decimal `json:"paymentAmount"`
}

type UpdatePartnerRequest struct {
	Name          *string          `json:"name"`
	Phone         *string          `json:"phone"`
	Email         *string          `json:"email"`
	Address       *string          `json:"address"`
	Status        *PartnerStatus   `json:"status"`
	PaymentType   *PaymentType     `json:"paymentType"`
	PaymentAmount *decimal.Decimal `json:"paymentAmount"`
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UpdateProfileRequest struct {
	Name     *string `json:"name"`
	Phone    *string `json:"phone"`
	Address  *string `json:"address"`
	Password *string `json:"password"`
}
