package partners

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/ayerhssb/mcpSystem/internal/domain"
	"github.com/ayerhssb/mcpSystem/internal/ledger"
	"github.com/ayerhssb/mcpSystem/internal/store"
	"github.com/ayerhssb/mcpSystem/pkg/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultPageSize  = 10
	maxPageSize      = 100
	topPartnerCount  = 5
	recentOrderCount = 5
)

var maxCommission = decimal.NewFromInt(100)

// Service manages the pickup partners of an MCP.
type Service struct {
	repo   store.Repository
	ledger *ledger.Ledger
	log    *zap.SugaredLogger
}

func NewService(l *ledger.Ledger, log *zap.SugaredLogger) *Service {
	return &Service{repo: l.Repo(), ledger: l, log: logger.Component(log, "partners")}
}

type Page struct {
	Partners []domain.Partner `json:"partners"`
	Total    int              `json:"total"`
	Page     int              `json:"page"`
	Limit    int              `json:"limit"`
	Pages    int              `json:"pages"`
}

// Details is a partner with its wallet, order counts and latest orders.
type Details struct {
	Partner      *domain.Partner `json:"partner"`
	Wallet       *domain.Wallet  `json:"wallet,omitempty"`
	Statistics   OrderCounts     `json:"statistics"`
	RecentOrders []domain.Order  `json:"recentOrders"`
}

// OrderCounts are counted from the orders table, not the partner counters.
// Pending includes in-progress orders.
type OrderCounts struct {
	Completed int `json:"completedOrders"`
	Pending   int `json:"pendingOrders"`
	Total     int `json:"totalOrders"`
}

func validatePayment(kind domain.PaymentType, amount decimal.Decimal) error {
	if !kind.Valid() {
		return domain.NewValidationError("paymentType", fmt.Sprintf("must be %q or %q", domain.PaymentFixed, domain.PaymentCommission))
	}
	if amount.IsNegative() {
		return domain.NewValidationError("paymentAmount", "must not be negative")
	}
	if kind == domain.PaymentCommission && amount.GreaterThan(maxCommission) {
		return domain.NewValidationError("paymentAmount", "commission cannot exceed 100 percent")
	}
	if kind == domain.PaymentFixed && !amount.Equal(amount.Round(domain.MinorUnitScale)) {
		return domain.NewValidationError("paymentAmount", "fixed amount has more than 2 decimal places")
	}
	return nil
}

func validateEmail(email string) error {
	if email == "" {
		return nil
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return domain.NewValidationError("email", "is not a valid address")
	}
	return nil
}

// Create adds an active partner and its zero-balance wallet in one transaction.
func (s *Service) Create(ctx context.Context, mcpID uuid.UUID, req domain.CreatePartnerRequest) (*domain.Partner, error) {
	partner := &domain.Partner{
		MCPID:       mcpID,
		Name:        strings.TrimSpace(req.Name),
		Phone:       strings.TrimSpace(req.Phone),
		Email:       strings.ToLower(strings.TrimSpace(req.Email)),
		Address:     strings.TrimSpace(req.Address),
		Status:      domain.PartnerActive,
		PaymentType: req.PaymentType,
	}
	if partner.PaymentType == "" {
		partner.PaymentType = domain.PaymentFixed
	}
	if req.PaymentAmount != nil {
		partner.PaymentAmount = *req.PaymentAmount
	}

	switch {
	case partner.Name == "":
		return nil, domain.NewValidationError("name", "is required")
	case partner.Phone == "":
		return nil, domain.NewValidationError("phone", "is required")
	}
	if err := validateEmail(partner.Email); err != nil {
		return nil, err
	}
	if err := validatePayment(partner.PaymentType, partner.PaymentAmount); err != nil {
		return nil, err
	}

	err := s.ledger.Within(ctx, func(tx *ledger.Tx) error {
		repo := tx.Repo()
		if err := s.checkDuplicate(ctx, repo, partner, nil); err != nil {
			return err
		}
		if err := repo.CreatePartner(ctx, partner); err != nil {
			return err
		}
		wallet, _, err := tx.EnsureWallet(ctx, partner.Owner())
		if err != nil {
			return err
		}
		partner.WalletID = &wallet.ID
		return repo.SetPartnerWallet(ctx, partner.ID, wallet.ID)
	})
	if err != nil {
		return nil, err
	}
	s.log.Infow("partner created", "partner_id", partner.ID, "mcp_id", mcpID, "payment_type", string(partner.PaymentType))
	return partner, nil
}

func (s *Service) checkDuplicate(ctx context.Context, repo store.Repository, partner *domain.Partner, exclude *uuid.UUID) error {
	_, err := repo.FindPartnerByContact(ctx, partner.MCPID, partner.Email, partner.Phone, exclude)
	switch {
	case err == nil:
		return domain.ErrDuplicatePartner
	case errors.Is(err, domain.ErrPartnerNotFound):
		return nil
	default:
		return fmt.Errorf("check duplicate partner: %w", err)
	}
}

func (s *Service) Get(ctx context.Context, mcpID, partnerID uuid.UUID) (*Details, error) {
	partner, err := s.repo.FindPartner(ctx, mcpID, partnerID)
	if err != nil {
		return nil, err
	}
	wallet, err := s.repo.FindWallet(ctx, partner.Owner())
	if err != nil && !errors.Is(err, domain.ErrWalletNotFound) {
		return nil, err
	}

	details := &Details{Partner: partner, Wallet: wallet}
	count := func(status domain.OrderStatus) (int, error) {
		_, n, err := s.repo.ListOrders(ctx, domain.OrderFilter{MCPID: mcpID, PartnerID: &partner.ID, Status: status, Limit: 1})
		return n, err
	}
	for status, into := range map[domain.OrderStatus]*int{
		domain.OrderCompleted:  &details.Statistics.Completed,
		domain.OrderPending:    &details.Statistics.Pending,
		domain.OrderInProgress: &details.Statistics.Pending,
	} {
		n, err := count(status)
		if err != nil {
			return nil, fmt.Errorf("count %s orders: %w", status, err)
		}
		*into += n
	}
	details.Statistics.Total = details.Statistics.Completed + details.Statistics.Pending

	details.RecentOrders, _, err = s.repo.ListOrders(ctx, domain.OrderFilter{MCPID: mcpID, PartnerID: &partner.ID, Limit: recentOrderCount})
	if err != nil {
		return nil, fmt.Errorf("list recent orders: %w", err)
	}
	if details.RecentOrders == nil {
		details.RecentOrders = []domain.Order{}
	}
	return details, nil
}

// List returns one page of partners. page is 1-based.
func (s *Service) List(ctx context.Context, filter domain.PartnerFilter, page, limit int) (*Page, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, domain.NewValidationError("status", fmt.Sprintf("unknown partner status %q", filter.Status))
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	filter.Limit = limit
	filter.Offset = (page - 1) * limit

	partners, total, err := s.repo.ListPartners(ctx, filter)
	if err != nil {
		return nil, err
	}
	if partners == nil {
		partners = []domain.Partner{}
	}
	pages := 0
	if total > 0 {
		pages = (total + limit - 1) / limit
	}
	return &Page{Partners: partners, Total: total, Page: page, Limit: limit, Pages: pages}, nil
}

// Update edits contact, payment policy and status. Counters and the wallet link
// are never touched here.
func (s *Service) Update(ctx context.Context, mcpID, partnerID uuid.UUID, req domain.UpdatePartnerRequest) (*domain.Partner, error) {
	var partner *domain.Partner
	err := s.ledger.Within(ctx, func(tx *ledger.Tx) error {
		repo := tx.Repo()
		var err error
		partner, err = repo.FindPartner(ctx, mcpID, partnerID)
		if err != nil {
			return err
		}

		if req.Name != nil {
			if partner.Name = strings.TrimSpace(*req.Name); partner.Name == "" {
				return domain.NewValidationError("name", "is required")
			}
		}
		if req.Phone != nil {
			if partner.Phone = strings.TrimSpace(*req.Phone); partner.Phone == "" {
				return domain.NewValidationError("phone", "is required")
			}
		}
		if req.Email != nil {
			partner.Email = strings.ToLower(strings.TrimSpace(*req.Email))
			if err := validateEmail(partner.Email); err != nil {
				return err
			}
		}
		if req.Address != nil {
			partner.Address = strings.TrimSpace(*req.Address)
		}
		if req.Status != nil {
			if !req.Status.Valid() {
				return domain.NewValidationError("status", fmt.Sprintf("unknown partner status %q", *req.Status))
			}
			partner.Status = *req.Status
		}
		if req.PaymentType != nil {
			partner.PaymentType = *req.PaymentType
		}
		if req.PaymentAmount != nil {
			partner.PaymentAmount = *req.PaymentAmount
		}
		if err := validatePayment(partner.PaymentType, partner.PaymentAmount); err != nil {
			return err
		}

		if req.Email != nil || req.Phone != nil {
			if err := s.checkDuplicate(ctx, repo, partner, &partner.ID); err != nil {
				return err
			}
		}
		return repo.UpdatePartner(ctx, partner)
	})
	if err != nil {
		return nil, err
	}
	return partner, nil
}

// Delete removes a partner and its wallet. Partners still holding pending or
// in-progress orders, a non-zero balance, or unsettled payments cannot be deleted.
func (s *Service) Delete(ctx context.Context, mcpID, partnerID uuid.UUID) error {
	err := s.ledger.Within(ctx, func(tx *ledger.Tx) error {
		repo := tx.Repo()
		partner, err := repo.FindPartner(ctx, mcpID, partnerID)
		if err != nil {
			return err
		}
		active, err := repo.CountActiveOrdersForPartner(ctx, partner.ID)
		if err != nil {
			return err
		}
		if active > 0 {
			return domain.ErrPartnerHasActiveOrders
		}
		wallet, err := repo.FindWallet(ctx, partner.Owner())
		switch {
		case errors.Is(err, domain.ErrWalletNotFound):
		case err != nil:
			return err
		case wallet.Balance > 0:
			return domain.ErrPartnerHasFunds
		}
		_, pending, err := repo.ListTransactions(ctx, domain.TransactionFilter{
			Party:  partner.Owner(),
			Kind:   domain.TransactionPayment,
			Status: domain.TransactionPending,
			Limit:  1,
		})
		if err != nil {
			return fmt.Errorf("check pending payments: %w", err)
		}
		if pending > 0 {
			return domain.ErrPartnerHasPendingPay
		}
		if err := repo.DeleteWallet(ctx, partner.Owner()); err != nil && !errors.Is(err, domain.ErrWalletNotFound) {
			return fmt.Errorf("delete partner wallet: %w", err)
		}
		return repo.DeletePartner(ctx, mcpID, partner.ID)
	})
	if err != nil {
		return err
	}
	s.log.Infow("partner deleted", "partner_id", partnerID, "mcp_id", mcpID)
	return nil
}

func (s *Service) Statistics(ctx context.Context, mcpID uuid.UUID) (*domain.PartnerStatistics, error) {
	stats, err := s.repo.PartnerStatistics(ctx, mcpID, topPartnerCount)
	if err != nil {
		return nil, err
	}
	if stats.TopPartners == nil {
		stats.TopPartners = []domain.Partner{}
	}
	return stats, nil
}
