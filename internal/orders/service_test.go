package orders

import (
	"context"
	"testing"
	"time"

	"github.com/ayerhssb/mcpSystem/internal/domain"
	"github.com/ayerhssb/mcpSystem/internal/ledger"
	"github.com/ayerhssb/mcpSystem/internal/settlement"
	"github.com/ayerhssb/mcpSystem/internal/store"
	"github.com/ayerhssb/mcpSystem/pkg/idgen"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	repo  *store.MemoryRepository
	svc   *Service
	mcpID uuid.UUID
}

func newHarness(t *testing.T, mcpBalance domain.Amount) *harness {
	t.Helper()
	ctx := context.Background()
	repo := store.NewMemoryRepository()
	refs := idgen.New(repo)
	l := ledger.New(repo, refs, ledger.Options{})
	svc := NewService(l, settlement.NewEngine(l, nil), refs, nil)

	mcp := &domain.User{Name: "MCP One", Email: "one@example.com", Role: domain.RoleMCP}
	require.NoError(t, repo.CreateUser(ctx, mcp))
	require.NoError(t, repo.CreateWallet(ctx, &domain.Wallet{OwnerID: mcp.ID, OwnerKind: domain.OwnerMCP, Balance: mcpBalance, Currency: "INR"}))
	return &harness{repo: repo, svc: svc, mcpID: mcp.ID}
}

func (h *harness) partner(t *testing.T, name string, balance domain.Amount) *domain.Partner {
	t.Helper()
	ctx := context.Background()
	p := &domain.Partner{
		MCPID:         h.mcpID,
		Name:          name,
		Phone:         name + "-phone",
		Status:        domain.PartnerActive,
		PaymentType:   domain.PaymentFixed,
		PaymentAmount: decimal.NewFromInt(50),
	}
	require.NoError(t, h.repo.CreatePartner(ctx, p))
	require.NoError(t, h.repo.CreateWallet(ctx, &domain.Wallet{OwnerID: p.ID, OwnerKind: domain.OwnerPartner, Balance: balance, Currency: "INR"}))
	return p
}

func (h *harness) reload(t *testing.T, id uuid.UUID) *domain.Partner {
	t.Helper()
	p, err := h.repo.FindPartner(context.Background(), h.mcpID, id)
	require.NoError(t, err)
	return p
}

func (h *harness) order(t *testing.T, amount domain.Amount, partnerID *uuid.UUID) *domain.Order {
	t.Helper()
	o, err := h.svc.Create(context.Background(), h.mcpID, domain.CreateOrderRequest{
		Customer:        domain.Customer{Name: "Ravi", Phone: "98100", Address: "4 Hill St"},
		PaymentAmount:   amount,
		PickupPartnerID: partnerID,
	})
	require.NoError(t, err)
	return o
}

func statusPtr(s domain.OrderStatus) *domain.OrderStatus { return &s }

func TestCreateValidates(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()

	_, err := h.svc.Create(ctx, h.mcpID, domain.CreateOrderRequest{PaymentAmount: domain.Major(10)})
	assert.True(t, domain.IsValidation(err))

	_, err = h.svc.Create(ctx, h.mcpID, domain.CreateOrderRequest{
		Customer: domain.Customer{Name: "a", Phone: "b", Address: "c"},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = h.svc.Create(ctx, h.mcpID, domain.CreateOrderRequest{
		Customer:        domain.Customer{Name: "a", Phone: "b", Address: "c"},
		PaymentAmount:   domain.Major(10),
		PickupPartnerID: func() *uuid.UUID { id := uuid.New(); return &id }(),
	})
	assert.ErrorIs(t, err, domain.ErrPartnerNotFound)

	list, err := h.svc.List(ctx, domain.OrderFilter{MCPID: h.mcpID}, 1, 10)
	require.NoError(t, err)
	assert.Zero(t, list.Total, "a failed assignment leaves no order behind")
}

func TestCreateAssignsOrderNumber(t *testing.T) {
	h := newHarness(t, 0)
	o := h.order(t, domain.Major(210), nil)
	prefix, _, n, err := idgen.Parse(o.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, idgen.OrderPrefix, prefix)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, domain.OrderPending, o.Status)
}

func TestCounterConsistencyThroughCompletion(t *testing.T) {
	h := newHarness(t, domain.Major(5000))
	p := h.partner(t, "Partner 1", domain.Major(500))
	o := h.order(t, domain.Major(210), nil)

	_, err := h.svc.Assign(context.Background(), h.mcpID, o.ID, p.ID)
	require.NoError(t, err)
	got := h.reload(t, p.ID)
	assert.Equal(t, 1, got.TotalOrders)
	assert.Equal(t, 1, got.PendingOrders)

	res, err := h.svc.Update(context.Background(), h.mcpID, o.ID, domain.UpdateOrderRequest{Status: statusPtr(domain.OrderCompleted)})
	require.NoError(t, err)
	require.NotNil(t, res.Settlement)
	assert.Equal(t, settlement.StatusSettled, res.Settlement.Status)
	assert.NotNil(t, res.Order.CompletedAt)

	got = h.reload(t, p.ID)
	assert.Equal(t, 1, got.TotalOrders)
	assert.Equal(t, 1, got.CompletedOrders)
	assert.Equal(t, 0, got.PendingOrders)

	mcpWallet, err := h.repo.FindWallet(context.Background(), domain.MCPOwner(h.mcpID))
	require.NoError(t, err)
	assert.Equal(t, domain.Major(4950), mcpWallet.Balance)
	partnerWallet, err := h.repo.FindWallet(context.Background(), p.Owner())
	require.NoError(t, err)
	assert.Equal(t, domain.Major(550), partnerWallet.Balance)
}

func TestReassignmentMovesPendingSlot(t *testing.T) {
	h := newHarness(t, 0)
	a := h.partner(t, "A", 0)
	b := h.partner(t, "B", 0)
	o := h.order(t, domain.Major(100), &a.ID)
	assert.Equal(t, 1, h.reload(t, a.ID).PendingOrders)

	updated, err := h.svc.Assign(context.Background(), h.mcpID, o.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, *updated.PickupPartnerID)

	gotA, gotB := h.reload(t, a.ID), h.reload(t, b.ID)
	assert.Equal(t, 0, gotA.PendingOrders)
	assert.Equal(t, 1, gotA.TotalOrders)
	assert.Equal(t, 1, gotB.PendingOrders)
	assert.Equal(t, 1, gotB.TotalOrders)

	// Assigning to the current holder changes nothing.
	_, err = h.svc.Assign(context.Background(), h.mcpID, o.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, h.reload(t, b.ID).TotalOrders)
}

func TestAssignRejectsInactivePartner(t *testing.T) {
	h := newHarness(t, 0)
	p := h.partner(t, "Sleepy", 0)
	p.Status = domain.PartnerInactive
	require.NoError(t, h.repo.UpdatePartner(context.Background(), p))
	o := h.order(t, domain.Major(100), nil)

	_, err := h.svc.Assign(context.Background(), h.mcpID, o.ID, p.ID)
	assert.ErrorIs(t, err, domain.ErrPartnerInactive)
}

func TestCompletedOrderIsFrozen(t *testing.T) {
	h := newHarness(t, domain.Major(1000))
	a := h.partner(t, "A", 0)
	b := h.partner(t, "B", 0)
	o := h.order(t, domain.Major(100), &a.ID)
	ctx := context.Background()

	_, err := h.svc.Update(ctx, h.mcpID, o.ID, domain.UpdateOrderRequest{Status: statusPtr(domain.OrderCompleted)})
	require.NoError(t, err)

	_, err = h.svc.Assign(ctx, h.mcpID, o.ID, b.ID)
	assert.ErrorIs(t, err, domain.ErrOrderAlreadyCompleted)

	desc := "changed"
	_, err = h.svc.Update(ctx, h.mcpID, o.ID, domain.UpdateOrderRequest{Description: &desc})
	assert.ErrorIs(t, err, domain.ErrOrderAlreadyCompleted)

	_, err = h.svc.Update(ctx, h.mcpID, o.ID, domain.UpdateOrderRequest{Status: statusPtr(domain.OrderPending)})
	assert.ErrorIs(t, err, domain.ErrOrderAlreadyCompleted)

	// Re-submitting completed is a no-op and pays nothing twice.
	res, err := h.svc.Update(ctx, h.mcpID, o.ID, domain.UpdateOrderRequest{Status: statusPtr(domain.OrderCompleted)})
	require.NoError(t, err)
	assert.Equal(t, settlement.StatusSkipped, res.Settlement.Status)

	mcpWallet, err := h.repo.FindWallet(ctx, domain.MCPOwner(h.mcpID))
	require.NoError(t, err)
	assert.Equal(t, domain.Major(950), mcpWallet.Balance)
	assert.Equal(t, 1, h.reload(t, a.ID).CompletedOrders)
}

func TestInsufficientFundsStillCompletes(t *testing.T) {
	h := newHarness(t, domain.Major(10))
	p := h.partner(t, "A", 0)
	o := h.order(t, domain.Major(100), &p.ID)

	res, err := h.svc.Update(context.Background(), h.mcpID, o.ID, domain.UpdateOrderRequest{Status: statusPtr(domain.OrderCompleted)})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderCompleted, res.Order.Status)
	assert.Equal(t, settlement.StatusPending, res.Settlement.Status)

	details, err := h.svc.Get(context.Background(), h.mcpID, o.ID)
	require.NoError(t, err)
	require.Len(t, details.Transactions, 1)
	assert.Equal(t, domain.TransactionPending, details.Transactions[0].Status)
}

func TestCancelAndReopenMoveSlot(t *testing.T) {
	h := newHarness(t, 0)
	p := h.partner(t, "A", 0)
	o := h.order(t, domain.Major(100), &p.ID)
	ctx := context.Background()

	_, err := h.svc.Update(ctx, h.mcpID, o.ID, domain.UpdateOrderRequest{Status: statusPtr(domain.OrderInProgress)})
	require.NoError(t, err)
	assert.Equal(t, 1, h.reload(t, p.ID).PendingOrders)

	_, err = h.svc.Update(ctx, h.mcpID, o.ID, domain.UpdateOrderRequest{Status: statusPtr(domain.OrderCancelled)})
	require.NoError(t, err)
	assert.Equal(t, 0, h.reload(t, p.ID).PendingOrders)

	_, err = h.svc.Update(ctx, h.mcpID, o.ID, domain.UpdateOrderRequest{Status: statusPtr(domain.OrderCompleted)})
	assert.ErrorIs(t, err, domain.ErrInvalidStatusTransition)

	_, err = h.svc.Update(ctx, h.mcpID, o.ID, domain.UpdateOrderRequest{Status: statusPtr(domain.OrderPending)})
	require.NoError(t, err)
	assert.Equal(t, 1, h.reload(t, p.ID).PendingOrders)
}

func TestUpdateRejectsUnknownStatus(t *testing.T) {
	h := newHarness(t, 0)
	o := h.order(t, domain.Major(100), nil)
	_, err := h.svc.Update(context.Background(), h.mcpID, o.ID, domain.UpdateOrderRequest{Status: statusPtr("shipped")})
	assert.True(t, domain.IsValidation(err))

	_, err = h.svc.Update(context.Background(), uuid.New(), o.ID, domain.UpdateOrderRequest{})
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestApplyStatusCommand(t *testing.T) {
	h := newHarness(t, domain.Major(100))
	p := h.partner(t, "A", 0)
	o := h.order(t, domain.Major(100), &p.ID)

	res, err := h.svc.ApplyStatus(context.Background(), domain.OrderStatusCommand{MCPID: h.mcpID, OrderID: o.ID, Status: domain.OrderCompleted})
	require.NoError(t, err)
	assert.Equal(t, settlement.StatusSettled, res.Settlement.Status)
}

func TestListAndStatistics(t *testing.T) {
	base := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	clock := base
	repo := store.NewMemoryRepository().WithClock(func() time.Time { return clock })
	refs := idgen.New(repo)
	l := ledger.New(repo, refs, ledger.Options{})
	svc := NewService(l, settlement.NewEngine(l, nil), refs, nil)
	mcpID := uuid.New()
	require.NoError(t, repo.CreateWallet(context.Background(), &domain.Wallet{OwnerID: mcpID, OwnerKind: domain.OwnerMCP}))

	var created []*domain.Order
	for i := 0; i < 12; i++ {
		clock = base.Add(time.Duration(i) * time.Hour)
		o, err := svc.Create(context.Background(), mcpID, domain.CreateOrderRequest{
			Customer:      domain.Customer{Name: "c", Phone: "p", Address: "a"},
			PaymentAmount: domain.Major(10),
		})
		require.NoError(t, err)
		created = append(created, o)
	}
	_, err := svc.Update(context.Background(), mcpID, created[0].ID, domain.UpdateOrderRequest{Status: statusPtr(domain.OrderCompleted)})
	require.NoError(t, err)

	page, err := svc.List(context.Background(), domain.OrderFilter{MCPID: mcpID}, 2, 5)
	require.NoError(t, err)
	assert.Equal(t, 12, page.Total)
	assert.Equal(t, 3, page.Pages)
	require.Len(t, page.Orders, 5)
	assert.Equal(t, created[6].ID, page.Orders[0].ID)

	completed, err := svc.List(context.Background(), domain.OrderFilter{MCPID: mcpID, Status: domain.OrderCompleted}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, completed.Total)

	stats, err := svc.Statistics(context.Background(), mcpID)
	require.NoError(t, err)
	assert.Equal(t, 12, stats.Total)
	assert.Equal(t, 1, stats.Completed)
	assert.Equal(t, 11, stats.Pending)
	assert.Equal(t, 8.3, stats.CompletionRate)
	assert.Len(t, stats.RecentOrders, 5)
}
