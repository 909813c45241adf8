/**
 * @description
 * The order service owns the order lifecycle for one MCP: creation, field edits,
 * assignment and reassignment to pickup partners, and status transitions. Every
 * state change that touches partner counters or money runs in a single ledger
 * transaction so counters, balances and the order row commit together.
 *
 * Key features:
 * - Explicit status machine (see domain.OrderStatus.CanTransition).
 * - Completion hands off to the settlement engine inside the same transaction.
 * - Completed orders are frozen; re-submitting `completed` is a no-op.
 *
 * @dependencies
 * - internal/ledger, internal/settlement
 * - pkg/idgen: ORDER-YYMMDD-NNNN order numbers.
 */

package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ayerhssb/mcpSystem/internal/domain"
	"github.com/ayerhssb/mcpSystem/internal/ledger"
	"github.com/ayerhssb/mcpSystem/internal/settlement"
	"github.com/ayerhssb/mcpSystem/internal/store"
	"github.com/ayerhssb/mcpSystem/pkg/idgen"
	"github.com/ayerhssb/mcpSystem/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

type Service struct {
	repo   store.Repository
	ledger *ledger.Ledger
	engine *settlement.Engine
	refs   *idgen.Generator
	log    *zap.SugaredLogger
	now    func() time.Time
}

func NewService(l *ledger.Ledger, engine *settlement.Engine, refs *idgen.Generator, log *zap.SugaredLogger) *Service {
	return &Service{
		repo:   l.Repo(),
		ledger: l,
		engine: engine,
		refs:   refs,
		log:    logger.Component(log, "orders"),
		now:    time.Now,
	}
}

// WithClock overrides the clock used for assignedAt.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Update is the result of an order update. Settlement is set whenever the update
// went through the completion path, including skipped settlements.
type Update struct {
	Order      *domain.Order          `json:"order"`
	Settlement *settlement.Settlement `json:"settlement,omitempty"`
}

// Details is an order together with the ledger records that reference it.
type Details struct {
	Order        *domain.Order        `json:"order"`
	Transactions []domain.Transaction `json:"transactions"`
}

type Page struct {
	Orders []domain.Order `json:"orders"`
	Total  int            `json:"total"`
	Page   int            `json:"page"`
	Limit  int            `json:"limit"`
	Pages  int            `json:"pages"`
}

type Statistics struct {
	domain.OrderStatistics
	CompletionRate float64        `json:"completionRate"`
	RecentOrders   []domain.Order `json:"recentOrders"`
}

func validateCustomer(c domain.Customer) error {
	switch {
	case strings.TrimSpace(c.Name) == "":
		return domain.NewValidationError("customer.name", "is required")
	case strings.TrimSpace(c.Phone) == "":
		return domain.NewValidationError("customer.phone", "is required")
	case strings.TrimSpace(c.Address) == "":
		return domain.NewValidationError("customer.address", "is required")
	}
	return nil
}

// Create stores a new pending order. When the request names a pickup partner the
// order is assigned in the same transaction.
func (s *Service) Create(ctx context.Context, mcpID uuid.UUID, req domain.CreateOrderRequest) (*domain.Order, error) {
	if err := validateCustomer(req.Customer); err != nil {
		return nil, err
	}
	if err := req.PaymentAmount.Validate(); err != nil {
		return nil, err
	}

	number, err := s.refs.OrderNumber(ctx)
	if err != nil {
		return nil, err
	}
	order := &domain.Order{
		ID:             uuid.New(),
		OrderNumber:    number,
		MCPID:          mcpID,
		Customer:       req.Customer,
		Status:         domain.OrderPending,
		PaymentAmount:  req.PaymentAmount,
		Description:    req.Description,
		PickupLocation: req.PickupLocation,
		DropLocation:   req.DropLocation,
	}

	err = s.ledger.Within(ctx, func(tx *ledger.Tx) error {
		repo := tx.Repo()
		if req.PickupPartnerID != nil {
			if err := s.assign(ctx, repo, order, *req.PickupPartnerID); err != nil {
				return err
			}
		}
		return repo.CreateOrder(ctx, order)
	})
	if err != nil {
		return nil, err
	}
	s.log.Infow("order created", "order_number", order.OrderNumber, "mcp_id", mcpID, "assigned", order.PickupPartnerID != nil)
	return order, nil
}

// Assign binds the order to partnerID, moving counters off any previous partner.
func (s *Service) Assign(ctx context.Context, mcpID, orderID, partnerID uuid.UUID) (*domain.Order, error) {
	var order *domain.Order
	err := s.ledger.Within(ctx, func(tx *ledger.Tx) error {
		repo := tx.Repo()
		var err error
		order, err = repo.FindOrderForUpdate(ctx, mcpID, orderID)
		if err != nil {
			return err
		}
		if err := s.assign(ctx, repo, order, partnerID); err != nil {
			return err
		}
		return repo.UpdateOrder(ctx, order)
	})
	if err != nil {
		return nil, err
	}
	s.log.Infow("order assigned", "order_number", order.OrderNumber, "partner_id", partnerID)
	return order, nil
}

// assign applies the assignment rules to order in memory and adjusts counters
// through repo. Only orders that are still active hold a pending slot.
func (s *Service) assign(ctx context.Context, repo store.Repository, order *domain.Order, partnerID uuid.UUID) error {
	if order.Status == domain.OrderCompleted {
		return domain.ErrOrderAlreadyCompleted
	}
	partner, err := repo.FindPartner(ctx, order.MCPID, partnerID)
	if err != nil {
		return err
	}
	if partner.Status != domain.PartnerActive {
		return domain.ErrPartnerInactive
	}
	if order.PickupPartnerID != nil && *order.PickupPartnerID == partnerID {
		return nil
	}

	holdsSlot := order.Status.Active()
	if order.PickupPartnerID != nil && holdsSlot {
		_, err := repo.AdjustPartnerCounters(ctx, *order.PickupPartnerID, domain.CounterDelta{Pending: -1})
		if err != nil && !errors.Is(err, domain.ErrPartnerNotFound) {
			return fmt.Errorf("release previous partner: %w", err)
		}
	}

	delta := domain.CounterDelta{Total: 1}
	if holdsSlot {
		delta.Pending = 1
	}
	if _, err := repo.AdjustPartnerCounters(ctx, partnerID, delta); err != nil {
		return fmt.Errorf("adjust partner counters: %w", err)
	}

	now := s.now().UTC()
	order.PickupPartnerID = &partnerID
	order.AssignedAt = &now
	return nil
}

// Update applies field edits and an optional status transition.
func (s *Service) Update(ctx context.Context, mcpID, orderID uuid.UUID, req domain.UpdateOrderRequest) (*Update, error) {
	if req.Customer != nil {
		if err := validateCustomer(*req.Customer); err != nil {
			return nil, err
		}
	}
	if req.PaymentAmount != nil {
		if err := req.PaymentAmount.Validate(); err != nil {
			return nil, err
		}
	}
	if req.Status != nil && !req.Status.Valid() {
		return nil, domain.NewValidationError("status", fmt.Sprintf("unknown order status %q", *req.Status))
	}

	var result Update
	err := s.ledger.Within(ctx, func(tx *ledger.Tx) error {
		repo := tx.Repo()
		order, err := repo.FindOrderForUpdate(ctx, mcpID, orderID)
		if err != nil {
			return err
		}
		result.Order = order

		previous := order.Status
		if previous == domain.OrderCompleted {
			if req.HasFieldEdits() || (req.Status != nil && *req.Status != domain.OrderCompleted) {
				return domain.ErrOrderAlreadyCompleted
			}
			if req.Status != nil {
				result.Settlement = &settlement.Settlement{Status: settlement.StatusSkipped, Reason: "order already completed"}
			}
			return nil
		}

		applyEdits(order, req)
		if req.Status != nil && *req.Status != previous {
			if err := previous.CanTransition(*req.Status); err != nil {
				return err
			}
			order.Status = *req.Status
			if err := s.moveSlot(ctx, repo, order, previous); err != nil {
				return err
			}
			if order.Status == domain.OrderCompleted {
				result.Settlement, err = s.engine.SettleWithin(ctx, tx, order, previous)
				if err != nil {
					return err
				}
			}
		}
		return repo.UpdateOrder(ctx, order)
	})
	if err != nil {
		return nil, err
	}

	if result.Settlement != nil {
		s.log.Infow("order completed",
			"order_number", result.Order.OrderNumber,
			"settlement", string(result.Settlement.Status),
			"reason", result.Settlement.Reason,
		)
	}
	return &result, nil
}

// ApplyStatus moves an order to status; it follows exactly the rules of Update.
func (s *Service) ApplyStatus(ctx context.Context, cmd domain.OrderStatusCommand) (*Update, error) {
	status := cmd.Status
	return s.Update(ctx, cmd.MCPID, cmd.OrderID, domain.UpdateOrderRequest{Status: &status})
}

// moveSlot keeps pendingOrders in step with cancel and reopen. Completion is
// handled by the settlement engine.
func (s *Service) moveSlot(ctx context.Context, repo store.Repository, order *domain.Order, previous domain.OrderStatus) error {
	if order.PickupPartnerID == nil || order.Status == domain.OrderCompleted {
		return nil
	}
	var delta domain.CounterDelta
	switch {
	case previous.Active() && !order.Status.Active():
		delta.Pending = -1
	case !previous.Active() && order.Status.Active():
		delta.Pending = 1
	default:
		return nil
	}
	_, err := repo.AdjustPartnerCounters(ctx, *order.PickupPartnerID, delta)
	if errors.Is(err, domain.ErrPartnerNotFound) {
		return nil
	}
	return err
}

func applyEdits(order *domain.Order, req domain.UpdateOrderRequest) {
	if req.Customer != nil {
		order.Customer = *req.Customer
	}
	if req.PaymentAmount != nil {
		order.PaymentAmount = *req.PaymentAmount
	}
	if req.Description != nil {
		order.Description = *req.Description
	}
	if req.PickupLocation != nil {
		order.PickupLocation = req.PickupLocation
	}
	if req.DropLocation != nil {
		order.DropLocation = req.DropLocation
	}
}

func (s *Service) Get(ctx context.Context, mcpID, orderID uuid.UUID) (*Details, error) {
	order, err := s.repo.FindOrder(ctx, mcpID, orderID)
	if err != nil {
		return nil, err
	}
	txs, err := s.repo.FindTransactionsByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order transactions: %w", err)
	}
	if txs == nil {
		txs = []domain.Transaction{}
	}
	return &Details{Order: order, Transactions: txs}, nil
}

// List returns one page of orders. page is 1-based.
func (s *Service) List(ctx context.Context, filter domain.OrderFilter, page, limit int) (*Page, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, domain.NewValidationError("status", fmt.Sprintf("unknown order status %q", filter.Status))
	}
	page, limit = normalizePage(page, limit)
	filter.Limit = limit
	filter.Offset = (page - 1) * limit

	orders, total, err := s.repo.ListOrders(ctx, filter)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	return &Page{Orders: orders, Total: total, Page: page, Limit: limit, Pages: pages(total, limit)}, nil
}

func (s *Service) Statistics(ctx context.Context, mcpID uuid.UUID) (*Statistics, error) {
	counts, err := s.repo.OrderStatistics(ctx, mcpID)
	if err != nil {
		return nil, err
	}
	recent, _, err := s.repo.ListOrders(ctx, domain.OrderFilter{MCPID: mcpID, Limit: 5})
	if err != nil {
		return nil, err
	}
	if recent == nil {
		recent = []domain.Order{}
	}
	return &Statistics{
		OrderStatistics: *counts,
		CompletionRate:  CompletionRate(counts),
		RecentOrders:    recent,
	}, nil
}

// CompletionRate is the share of completed orders in percent, rounded to one decimal.
func CompletionRate(stats *domain.OrderStatistics) float64 {
	if stats == nil || stats.Total == 0 {
		return 0
	}
	rate := float64(stats.Completed) * 1000 / float64(stats.Total)
	return float64(int64(rate+0.5)) / 10
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit
}

func pages(total, limit int) int {
	if total == 0 {
		return 0
	}
	return (total + limit - 1) / limit
}
