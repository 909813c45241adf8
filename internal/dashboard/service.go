package dashboard

import (
	"context"
	"errors"
	"time"

	"github.com/ayerhssb/mcpSystem/internal/domain"
	"github.com/ayerhssb/mcpSystem/internal/orders"
	"github.com/ayerhssb/mcpSystem/internal/store"
	"github.com/google/uuid"
)

const (
	recentCount   = 5
	monthsCharted = 6
	topPartners   = 5
)

type WalletSummary struct {
	Balance        domain.Amount `json:"balance"`
	TotalAdded     domain.Amount `json:"totalAdded"`
	TotalWithdrawn domain.Amount `json:"totalWithdrawn"`
	Currency       string        `json:"currency"`
}

type OrderSummary struct {
	domain.OrderStatistics
	CompletionRate float64 `json:"completionRate"`
}

// Dashboard is the MCP landing page payload.
type Dashboard struct {
	Wallet             WalletSummary             `json:"wallet"`
	PartnerStats       domain.PartnerStatistics  `json:"partnerStats"`
	OrderStats         OrderSummary              `json:"orderStats"`
	RecentOrders       []domain.Order            `json:"recentOrders"`
	RecentTransactions []domain.Transaction      `json:"recentTransactions"`
	MonthlyStats       []domain.MonthlyOrderStat `json:"monthlyStats"`
}

type Service struct {
	repo store.Repository
	now  func() time.Time
}

func NewService(repo store.Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) Get(ctx context.Context, mcpID uuid.UUID) (*Dashboard, error) {
	var d Dashboard

	wallet, err := s.repo.FindWallet(ctx, domain.MCPOwner(mcpID))
	switch {
	case err == nil:
		d.Wallet = WalletSummary{
			Balance:        wallet.Balance,
			TotalAdded:     wallet.TotalAdded,
			TotalWithdrawn: wallet.TotalWithdrawn,
			Currency:       wallet.Currency,
		}
	case errors.Is(err, domain.ErrWalletNotFound):
	default:
		return nil, err
	}

	partnerStats, err := s.repo.PartnerStatistics(ctx, mcpID, topPartners)
	if err != nil {
		return nil, err
	}
	d.PartnerStats = *partnerStats
	if d.PartnerStats.TopPartners == nil {
		d.PartnerStats.TopPartners = []domain.Partner{}
	}

	orderStats, err := s.repo.OrderStatistics(ctx, mcpID)
	if err != nil {
		return nil, err
	}
	d.OrderStats = OrderSummary{OrderStatistics: *orderStats, CompletionRate: orders.CompletionRate(orderStats)}

	d.RecentOrders, _, err = s.repo.ListOrders(ctx, domain.OrderFilter{MCPID: mcpID, Limit: recentCount})
	if err != nil {
		return nil, err
	}
	if d.RecentOrders == nil {
		d.RecentOrders = []domain.Order{}
	}

	d.RecentTransactions, _, err = s.repo.ListTransactions(ctx, domain.TransactionFilter{Party: domain.MCPOwner(mcpID), Limit: recentCount})
	if err != nil {
		return nil, err
	}
	if d.RecentTransactions == nil {
		d.RecentTransactions = []domain.Transaction{}
	}

	d.MonthlyStats, err = s.monthly(ctx, mcpID)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// monthly returns one bucket per calendar month (UTC) for the last six months,
// oldest first, with empty months filled in.
func (s *Service) monthly(ctx context.Context, mcpID uuid.UUID) ([]domain.MonthlyOrderStat, error) {
	now := s.now().UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(monthsCharted - 1), 0)

	counts, err := s.repo.OrderCountsByMonth(ctx, mcpID, start)
	if err != nil {
		return nil, err
	}
	byMonth := make(map[time.Time]domain.MonthlyOrderCount, len(counts))
	for _, c := range counts {
		byMonth[time.Date(c.Year, c.Month, 1, 0, 0, 0, 0, time.UTC)] = c
	}

	stats := make([]domain.MonthlyOrderStat, 0, monthsCharted)
	for i := 0; i < monthsCharted; i++ {
		month := start.AddDate(0, i, 0)
		c := byMonth[month]
		stats = append(stats, domain.MonthlyOrderStat{
			Year:      month.Year(),
			Month:     month.Month().String()[:3],
			Total:     c.Total,
			Completed: c.Completed,
		})
	}
	return stats, nil
}
