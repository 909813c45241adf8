package ratelimit

import (
	"context"
	"time"
)

// Operation is a wallet mutation counted in its own window.
type Operation string

const (
	AddFunds          Operation = "add_funds"
	TransferToPartner Operation = "transfer_to_partner"
	Withdraw          Operation = "withdraw"
)

// Rule is the allowance for one operation. A non-positive Limit disables it.
type Rule struct {
	Limit  int
	Window time.Duration
}

// WalletPolicy holds the allowance of every wallet mutation, applied per MCP.
type WalletPolicy map[Operation]Rule

// NewWalletPolicy counts deposits and partner transfers per minute and
// withdrawals per hour.
func NewWalletPolicy(perMinute, withdrawalsPerHour int) WalletPolicy {
	return WalletPolicy{
		AddFunds:          {Limit: perMinute, Window: time.Minute},
		TransferToPartner: {Limit: perMinute, Window: time.Minute},
		Withdraw:          {Limit: withdrawalsPerHour, Window: time.Hour},
	}
}

// Scope is the limiter scope of op, so each operation has its own counter.
func (op Operation) Scope() string {
	return "wallet:" + string(op)
}

// Decision is the outcome of one counted request.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter int
}

// Check counts one op request by mcpID. Operations without a rule, and a nil
// limiter, are always allowed.
func (p WalletPolicy) Check(ctx context.Context, limiter Limiter, op Operation, mcpID string) (Decision, error) {
	rule, ok := p[op]
	if !ok || rule.Limit <= 0 || limiter == nil {
		return Decision{Allowed: true}, nil
	}

	count, retryAfter, err := limiter.ConsumeRateLimit(ctx, op.Scope(), mcpID, rule.Limit, rule.Window)
	if err != nil {
		return Decision{Allowed: true, Limit: rule.Limit}, err
	}
	remaining := rule.Limit - count
	if remaining < 0 {
		remaining = 0
	}
	d := Decision{Allowed: count <= rule.Limit, Limit: rule.Limit, Remaining: remaining}
	if !d.Allowed {
		d.RetryAfter = retryAfter
	}
	return d, nil
}
