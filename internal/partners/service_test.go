package partners

import (
	"context"
	"fmt"
	"testing"

	"github.com/ayerhssb/mcpSystem/internal/domain"
	"github.com/ayerhssb/mcpSystem/internal/ledger"
	"github.com/ayerhssb/mcpSystem/internal/store"
	"github.com/ayerhssb/mcpSystem/pkg/idgen"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService() (*Service, *store.MemoryRepository) {
	repo := store.NewMemoryRepository()
	l := ledger.New(repo, idgen.New(repo), ledger.Options{})
	return NewService(l, nil), repo
}

func amount(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func TestCreateProvisionsWallet(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	mcpID := uuid.New()

	p, err := svc.Create(ctx, mcpID, domain.CreatePartnerRequest{
		Name:          " Partner 1 ",
		Phone:         "900000001",
		Email:         "Partner1@Example.com",
		PaymentAmount: amount("50"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Partner 1", p.Name)
	assert.Equal(t, "partner1@example.com", p.Email)
	assert.Equal(t, domain.PartnerActive, p.Status)
	assert.Equal(t, domain.PaymentFixed, p.PaymentType)
	require.NotNil(t, p.WalletID)

	wallet, err := repo.FindWallet(ctx, p.Owner())
	require.NoError(t, err)
	assert.Equal(t, *p.WalletID, wallet.ID)
	assert.Equal(t, domain.Amount(0), wallet.Balance)

	details, err := svc.Get(ctx, mcpID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, wallet.ID, details.Wallet.ID)
}

func TestGetIncludesOrderCountsAndRecentOrders(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	mcpID := uuid.New()
	p, err := svc.Create(ctx, mcpID, domain.CreatePartnerRequest{Name: "A", Phone: "111"})
	require.NoError(t, err)
	other, err := svc.Create(ctx, mcpID, domain.CreatePartnerRequest{Name: "B", Phone: "222"})
	require.NoError(t, err)

	statuses := []domain.OrderStatus{
		domain.OrderCompleted, domain.OrderCompleted, domain.OrderPending,
		domain.OrderInProgress, domain.OrderCancelled, domain.OrderCompleted, domain.OrderPending,
	}
	for i, status := range statuses {
		require.NoError(t, repo.CreateOrder(ctx, &domain.Order{
			OrderNumber:     fmt.Sprintf("ORDER-240101-%04d", i+1),
			MCPID:           mcpID,
			PickupPartnerID: &p.ID,
			Status:          status,
			PaymentAmount:   domain.Major(10),
		}))
	}
	require.NoError(t, repo.CreateOrder(ctx, &domain.Order{
		OrderNumber:     "ORDER-240101-0100",
		MCPID:           mcpID,
		PickupPartnerID: &other.ID,
		Status:          domain.OrderCompleted,
		PaymentAmount:   domain.Major(10),
	}))

	details, err := svc.Get(ctx, mcpID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, OrderCounts{Completed: 3, Pending: 3, Total: 6}, details.Statistics)
	require.Len(t, details.RecentOrders, recentOrderCount)
	for _, o := range details.RecentOrders {
		assert.Equal(t, p.ID, *o.PickupPartnerID)
	}

	empty, err := svc.Get(ctx, mcpID, other.ID)
	require.NoError(t, err)
	assert.Equal(t, OrderCounts{Completed: 1, Total: 1}, empty.Statistics)
	assert.Len(t, empty.RecentOrders, 1)
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	mcpID := uuid.New()

	cases := map[string]domain.CreatePartnerRequest{
		"missing name":     {Phone: "1"},
		"missing phone":    {Name: "x"},
		"bad email":        {Name: "x", Phone: "1", Email: "not-an-email"},
		"bad payment type": {Name: "x", Phone: "1", PaymentType: "hourly"},
		"negative amount":  {Name: "x", Phone: "1", PaymentAmount: amount("-5")},
		"commission > 100": {Name: "x", Phone: "1", PaymentType: domain.PaymentCommission, PaymentAmount: amount("120")},
		"fixed sub-paisa":  {Name: "x", Phone: "1", PaymentAmount: amount("10.005")},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Create(ctx, mcpID, req)
			assert.True(t, domain.IsValidation(err), "got %v", err)
		})
	}
}

func TestCreateRejectsDuplicateContact(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	mcpID := uuid.New()

	_, err := svc.Create(ctx, mcpID, domain.CreatePartnerRequest{Name: "A", Phone: "111", Email: "a@example.com"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, mcpID, domain.CreatePartnerRequest{Name: "B", Phone: "111"})
	assert.ErrorIs(t, err, domain.ErrDuplicatePartner)

	_, err = svc.Create(ctx, mcpID, domain.CreatePartnerRequest{Name: "B", Phone: "222", Email: "A@example.com"})
	assert.ErrorIs(t, err, domain.ErrDuplicatePartner)

	// Another MCP may reuse the same contact details.
	_, err = svc.Create(ctx, uuid.New(), domain.CreatePartnerRequest{Name: "A", Phone: "111"})
	assert.NoError(t, err)
}

func TestUpdate(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	mcpID := uuid.New()
	a, err := svc.Create(ctx, mcpID, domain.CreatePartnerRequest{Name: "A", Phone: "111"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, mcpID, domain.CreatePartnerRequest{Name: "B", Phone: "222"})
	require.NoError(t, err)

	inactive := domain.PartnerInactive
	commission := domain.PaymentCommission
	updated, err := svc.Update(ctx, mcpID, a.ID, domain.UpdatePartnerRequest{
		Status:        &inactive,
		PaymentType:   &commission,
		PaymentAmount: amount("12.5"),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PartnerInactive, updated.Status)
	assert.True(t, decimal.RequireFromString("12.5").Equal(updated.PaymentAmount))

	phone := "222"
	_, err = svc.Update(ctx, mcpID, a.ID, domain.UpdatePartnerRequest{Phone: &phone})
	assert.ErrorIs(t, err, domain.ErrDuplicatePartner)

	_, err = svc.Update(ctx, uuid.New(), a.ID, domain.UpdatePartnerRequest{})
	assert.ErrorIs(t, err, domain.ErrPartnerNotFound)
}

func TestDeleteGuardedByActiveOrders(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	mcpID := uuid.New()
	p, err := svc.Create(ctx, mcpID, domain.CreatePartnerRequest{Name: "A", Phone: "111"})
	require.NoError(t, err)

	order := &domain.Order{
		OrderNumber:     "ORDER-240101-0001",
		MCPID:           mcpID,
		PickupPartnerID: &p.ID,
		Status:          domain.OrderInProgress,
		PaymentAmount:   domain.Major(10),
	}
	require.NoError(t, repo.CreateOrder(ctx, order))

	err = svc.Delete(ctx, mcpID, p.ID)
	require.ErrorIs(t, err, domain.ErrPartnerHasActiveOrders)

	order.Status = domain.OrderCancelled
	require.NoError(t, repo.UpdateOrder(ctx, order))
	require.NoError(t, svc.Delete(ctx, mcpID, p.ID))

	_, err = repo.FindWallet(ctx, p.Owner())
	assert.ErrorIs(t, err, domain.ErrWalletNotFound)
	_, err = svc.Get(ctx, mcpID, p.ID)
	assert.ErrorIs(t, err, domain.ErrPartnerNotFound)
}

func TestDeleteGuardedByFundsAndPendingPayments(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	mcpID := uuid.New()
	p, err := svc.Create(ctx, mcpID, domain.CreatePartnerRequest{Name: "A", Phone: "111"})
	require.NoError(t, err)

	_, err = repo.CreditWallet(ctx, p.Owner(), domain.Major(550))
	require.NoError(t, err)
	err = svc.Delete(ctx, mcpID, p.ID)
	require.ErrorIs(t, err, domain.ErrPartnerHasFunds)

	_, err = repo.DebitWallet(ctx, p.Owner(), domain.Major(550))
	require.NoError(t, err)
	require.NoError(t, repo.CreateTransaction(ctx, &domain.Transaction{
		Reference: "TXN-240101-0001",
		Amount:    domain.Major(50),
		Kind:      domain.TransactionPayment,
		Status:    domain.TransactionPending,
		From:      domain.OwnerParty(domain.MCPOwner(mcpID), "MCP"),
		To:        domain.OwnerParty(p.Owner(), p.Name),
	}))
	err = svc.Delete(ctx, mcpID, p.ID)
	require.ErrorIs(t, err, domain.ErrPartnerHasPendingPay)

	wallet, err := repo.FindWallet(ctx, p.Owner())
	require.NoError(t, err)
	assert.Equal(t, domain.Amount(0), wallet.Balance)
	_, err = svc.Get(ctx, mcpID, p.ID)
	assert.NoError(t, err)
}

func TestListAndStatistics(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	mcpID := uuid.New()
	for _, name := range []string{"Alpha", "Beta", "Gamma"} {
		_, err := svc.Create(ctx, mcpID, domain.CreatePartnerRequest{Name: name, Phone: name})
		require.NoError(t, err)
	}
	page, err := svc.List(ctx, domain.PartnerFilter{MCPID: mcpID, Search: "et"}, 1, 10)
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)
	assert.Equal(t, "Beta", page.Partners[0].Name)

	_, err = repo.AdjustPartnerCounters(ctx, page.Partners[0].ID, domain.CounterDelta{Total: 2, Completed: 2})
	require.NoError(t, err)

	stats, err := svc.Statistics(ctx, mcpID)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 3, stats.Active)
	require.NotEmpty(t, stats.TopPartners)
	assert.Equal(t, "Beta", stats.TopPartners[0].Name)
}
