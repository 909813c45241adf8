package jobs

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ayerhssb/mcpSystem/internal/domain"
	"github.com/ayerhssb/mcpSystem/internal/store"
	"github.com/ayerhssb/mcpSystem/pkg/logger"
	"github.com/google/uuid"
)

type summaryRepoStub struct {
	summaries []domain.PendingPaymentSummary
	err       error
}

func (s *summaryRepoStub) SummarizePendingPayments(ctx context.Context) ([]domain.PendingPaymentSummary, error) {
	return s.summaries, s.err
}

type publisherStub struct {
	keys   []string
	bodies []interface{}
}

func (p *publisherStub) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	p.keys = append(p.keys, exchange+"/"+routingKey)
	p.bodies = append(p.bodies, body)
	return nil
}

func TestReportPendingSettlementsFromStore(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemoryRepository()
	mcpID := uuid.New()
	partnerID := uuid.New()

	for i, status := range []domain.TransactionStatus{domain.TransactionPending, domain.TransactionPending, domain.TransactionCompleted} {
		err := repo.CreateTransaction(ctx, &domain.Transaction{
			Reference: fmt.Sprintf("TXN-240101-%04d", i+1),
			Amount:    domain.Major(50),
			Kind:      domain.TransactionPayment,
			Status:    status,
			From:      domain.OwnerParty(domain.MCPOwner(mcpID), "MCP"),
			To:        domain.OwnerParty(domain.PartnerOwner(partnerID), "Partner"),
		})
		if err != nil {
			t.Fatalf("create transaction: %v", err)
		}
	}

	pub := &publisherStub{}
	jobs := NewJobs(repo, pub, "mcp.events", logger.Nop())
	report, err := jobs.ReportPendingSettlements(ctx)
	if err != nil {
		t.Fatalf("ReportPendingSettlements returned error: %v", err)
	}
	if len(report.Summaries) != 1 {
		t.Fatalf("expected one summary, got %d", len(report.Summaries))
	}
	got := report.Summaries[0]
	if got.MCPID != mcpID || got.Count != 2 || got.Amount != domain.Major(100) {
		t.Fatalf("unexpected summary %+v", got)
	}
	if len(pub.keys) != 1 || pub.keys[0] != "mcp.events/ledger.settlement.report" {
		t.Fatalf("unexpected published keys %v", pub.keys)
	}

	// The report never touches the pending records.
	_, total, err := repo.ListTransactions(ctx, domain.TransactionFilter{Party: domain.MCPOwner(mcpID), Status: domain.TransactionPending})
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected pending transactions to be left alone, got %d", total)
	}
}

func TestReportSkipsPublishWhenNothingPending(t *testing.T) {
	pub := &publisherStub{}
	jobs := NewJobs(&summaryRepoStub{}, pub, "mcp.events", nil)
	report, err := jobs.ReportPendingSettlements(context.Background())
	if err != nil {
		t.Fatalf("ReportPendingSettlements returned error: %v", err)
	}
	if len(report.Summaries) != 0 {
		t.Fatalf("expected no summaries, got %v", report.Summaries)
	}
	if len(pub.keys) != 0 {
		t.Fatal("expected nothing to be published when no settlement is pending")
	}
}

func TestPendingSettlementReportSwallowsErrors(t *testing.T) {
	pub := &publisherStub{}
	jobs := NewJobs(&summaryRepoStub{err: errors.New("db unavailable")}, pub, "mcp.events", nil)
	jobs.timeout = time.Second
	jobs.PendingSettlementReport()
	if len(pub.keys) != 0 {
		t.Fatal("expected no publish after a store error")
	}
}

func TestSchedulerRejectsBadSchedule(t *testing.T) {
	jobs := NewJobs(&summaryRepoStub{}, nil, "mcp.events", nil)

	if err := NewScheduler(jobs, "every tuesday").Start(); err == nil {
		t.Fatal("expected an invalid schedule to be rejected")
	}

	good := NewScheduler(jobs, "@hourly")
	if err := good.Start(); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if good.Entries() != 1 {
		t.Fatalf("expected one cron entry, got %d", good.Entries())
	}
	<-good.Stop().Done()
}
