package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/ayerhssb/mcpSystem/internal/domain"
	"github.com/ayerhssb/mcpSystem/internal/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDashboardAggregates(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	repo := store.NewMemoryRepository().WithClock(func() time.Time { return clock })
	mcpID := uuid.New()

	require.NoError(t, repo.CreateWallet(ctx, &domain.Wallet{OwnerID: mcpID, OwnerKind: domain.OwnerMCP, Balance: domain.Major(750), TotalAdded: domain.Major(1000), Currency: "INR"}))
	require.NoError(t, repo.CreatePartner(ctx, &domain.Partner{MCPID: mcpID, Name: "A", Phone: "1", Status: domain.PartnerActive, PaymentType: domain.PaymentFixed}))
	require.NoError(t, repo.CreatePartner(ctx, &domain.Partner{MCPID: mcpID, Name: "B", Phone: "2", Status: domain.PartnerInactive, PaymentType: domain.PaymentFixed}))

	// Two orders in November, one completed; one in January.
	for i, at := range []time.Time{
		time.Date(2023, 11, 3, 0, 0, 0, 0, time.UTC),
		time.Date(2023, 11, 20, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	} {
		clock = at
		status := domain.OrderPending
		if i == 0 {
			status = domain.OrderCompleted
		}
		require.NoError(t, repo.CreateOrder(ctx, &domain.Order{
			OrderNumber:   "ORDER-" + at.Format("060102") + "-0001",
			MCPID:         mcpID,
			Status:        status,
			PaymentAmount: domain.Major(100),
		}))
	}
	clock = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	d, err := NewService(repo).WithClock(func() time.Time { return clock }).Get(ctx, mcpID)
	require.NoError(t, err)

	assert.Equal(t, domain.Major(750), d.Wallet.Balance)
	assert.Equal(t, 2, d.PartnerStats.Total)
	assert.Equal(t, 1, d.PartnerStats.Active)
	assert.Equal(t, 3, d.OrderStats.Total)
	assert.Equal(t, 1, d.OrderStats.Completed)
	assert.Equal(t, 33.3, d.OrderStats.CompletionRate)
	assert.Len(t, d.RecentOrders, 3)
	assert.Empty(t, d.RecentTransactions)

	require.Len(t, d.MonthlyStats, 6)
	assert.Equal(t, "Aug", d.MonthlyStats[0].Month)
	assert.Equal(t, 2023, d.MonthlyStats[0].Year)
	assert.Equal(t, "Nov", d.MonthlyStats[3].Month)
	assert.Equal(t, 2, d.MonthlyStats[3].Total)
	assert.Equal(t, 1, d.MonthlyStats[3].Completed)
	assert.Equal(t, 0, d.MonthlyStats[4].Total)
	assert.Equal(t, "Jan", d.MonthlyStats[5].Month)
	assert.Equal(t, 1, d.MonthlyStats[5].Total)
}

func TestDashboardWithoutWallet(t *testing.T) {
	d, err := NewService(store.NewMemoryRepository()).Get(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, domain.Amount(0), d.Wallet.Balance)
	assert.NotNil(t, d.RecentOrders)
	assert.Len(t, d.MonthlyStats, 6)
}
