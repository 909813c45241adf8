/**
 * @description
 * Consumer side of the order status command. Other systems (driver apps, the
 * operations console) publish `order.status.update` messages; each one is applied
 * through the order service, so it follows the same state machine and settlement
 * path as an HTTP update.
 *
 * Ack policy: malformed messages and business rejections are acked (redelivery
 * would fail the same way); anything else is requeued.
 */
package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/ayerhssb/mcpSystem/internal/domain"
	"github.com/ayerhssb/mcpSystem/internal/orders"
	"github.com/ayerhssb/mcpSystem/pkg/logger"
	"github.com/ayerhssb/mcpSystem/pkg/rabbitmq"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const OrderStatusRoutingKey = "order.status.update"

// StatusApplier applies a status command. *orders.Service implements it.
type StatusApplier interface {
	ApplyStatus(ctx context.Context, cmd domain.OrderStatusCommand) (*orders.Update, error)
}

type OrderStatusConsumer struct {
	orders  StatusApplier
	log     *zap.SugaredLogger
	timeout time.Duration
}

func NewOrderStatusConsumer(applier StatusApplier, log *zap.SugaredLogger) *OrderStatusConsumer {
	return &OrderStatusConsumer{orders: applier, log: logger.Component(log, "order_status_consumer"), timeout: 30 * time.Second}
}

// Bindings returns the routing key to handler map for rabbitmq.Consumer.
func (c *OrderStatusConsumer) Bindings() map[string]rabbitmq.Handler {
	return map[string]rabbitmq.Handler{OrderStatusRoutingKey: c.Handle}
}

// Handle processes one message body and reports whether it may be acked.
func (c *OrderStatusConsumer) Handle(body []byte) bool {
	var cmd domain.OrderStatusCommand
	if err := json.Unmarshal(body, &cmd); err != nil {
		c.log.Warnw("dropping malformed order status command", "err", err)
		return true
	}
	if cmd.MCPID == uuid.Nil || cmd.OrderID == uuid.Nil || !cmd.Status.Valid() {
		c.log.Warnw("dropping invalid order status command", "mcp_id", cmd.MCPID, "order_id", cmd.OrderID, "status", string(cmd.Status))
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	update, err := c.orders.ApplyStatus(ctx, cmd)
	if err != nil {
		if permanent(err) {
			c.log.Warnw("order status command rejected", "order_id", cmd.OrderID, "status", string(cmd.Status), "reason", err.Error())
			return true
		}
		c.log.Errorw("order status command failed; will retry", "order_id", cmd.OrderID, "err", err)
		return false
	}

	fields := []interface{}{"order_id", cmd.OrderID, "status", string(update.Order.Status)}
	if update.Settlement != nil {
		fields = append(fields, "settlement", string(update.Settlement.Status))
	}
	c.log.Infow("order status command applied", fields...)
	return true
}

func permanent(err error) bool {
	return domain.IsValidation(err) ||
		errors.Is(err, domain.ErrOrderNotFound) ||
		errors.Is(err, domain.ErrOrderAlreadyCompleted) ||
		errors.Is(err, domain.ErrInvalidStatusTransition) ||
		errors.Is(err, domain.ErrPartnerNotFound) ||
		errors.Is(err, domain.ErrWalletNotFound) ||
		errors.Is(err, domain.ErrInvalidAmount)
}
