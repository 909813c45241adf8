/**
 * @description
 * Scheduled jobs. The pending settlement report summarizes payment transactions
 * left `pending` by insufficient MCP funds and publishes the summary for
 * operators. It only reads; reconciliation stays a manual step.
 */
package jobs

import (
	"context"
	"time"

	"github.com/ayerhssb/mcpSystem/internal/domain"
	"github.com/ayerhssb/mcpSystem/pkg/logger"
	"go.uber.org/zap"
)

const reportRoutingKey = "ledger.settlement.report"

// Repository defines the storage reads needed by the jobs.
type Repository interface {
	SummarizePendingPayments(ctx context.Context) ([]domain.PendingPaymentSummary, error)
}

// Publisher is implemented by pkg/rabbitmq producers.
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body interface{}) error
}

// Jobs contains the logic for all scheduled tasks.
type Jobs struct {
	repo      Repository
	publisher Publisher
	exchange  string
	log       *zap.SugaredLogger
	now       func() time.Time
	timeout   time.Duration
}

func NewJobs(repo Repository, publisher Publisher, exchange string, log *zap.SugaredLogger) *Jobs {
	return &Jobs{
		repo:      repo,
		publisher: publisher,
		exchange:  exchange,
		log:       logger.Component(log, "jobs"),
		now:       time.Now,
		timeout:   time.Minute,
	}
}

// ReportPendingSettlements runs the report once and returns it.
func (j *Jobs) ReportPendingSettlements(ctx context.Context) (*domain.PendingSettlementReport, error) {
	summaries, err := j.repo.SummarizePendingPayments(ctx)
	if err != nil {
		return nil, err
	}
	if summaries == nil {
		summaries = []domain.PendingPaymentSummary{}
	}
	report := &domain.PendingSettlementReport{GeneratedAt: j.now().UTC(), Summaries: summaries}

	var count int
	var total domain.Amount
	for _, s := range summaries {
		count += s.Count
		total += s.Amount
		j.log.Infow("pending settlements", "mcp_id", s.MCPID, "count", s.Count, "amount", s.Amount.String(), "oldest", s.Oldest)
	}
	j.log.Infow("pending settlement report", "mcps", len(summaries), "count", count, "amount", total.String())

	if j.publisher != nil && len(summaries) > 0 {
		if err := j.publisher.Publish(ctx, j.exchange, reportRoutingKey, report); err != nil {
			j.log.Warnw("pending settlement report publish failed", "err", err)
		}
	}
	return report, nil
}

// PendingSettlementReport is the cron entry point.
func (j *Jobs) PendingSettlementReport() {
	j.log.Infow("starting pending settlement report job")
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	if _, err := j.ReportPendingSettlements(ctx); err != nil {
		j.log.Errorw("pending settlement report failed", "err", err)
		return
	}
	j.log.Infow("pending settlement report job finished")
}
