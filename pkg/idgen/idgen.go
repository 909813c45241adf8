/**
 * @description
 * Human-readable, date-coded references for transactions and orders, in the
 * shape PREFIX-YYMMDD-NNNN. The suffix is a per-prefix, per-day counter drawn
 * from a Sequencer so that references never collide within a day; it is
 * zero-padded to four digits and simply grows wider past 9999.
 */

package idgen

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	TransactionPrefix = "TXN"
	OrderPrefix       = "ORDER"

	dayLayout = "060102"
)

// Sequencer hands out strictly increasing numbers per (scope, day), starting at 1.
type Sequencer interface {
	NextSequence(ctx context.Context, scope string, day string) (int64, error)
}

// Generator formats references from a Sequencer.
type Generator struct {
	seq Sequencer
	now func() time.Time
}

func New(seq Sequencer) *Generator {
	return &Generator{seq: seq, now: time.Now}
}

// WithClock overrides the clock; the day component uses the clock's UTC date.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

func (g *Generator) TransactionReference(ctx context.Context) (string, error) {
	return g.next(ctx, TransactionPrefix)
}

func (g *Generator) OrderNumber(ctx context.Context) (string, error) {
	return g.next(ctx, OrderPrefix)
}

func (g *Generator) next(ctx context.Context, prefix string) (string, error) {
	day := g.now().UTC().Format(dayLayout)
	n, err := g.seq.NextSequence(ctx, prefix, day)
	if err != nil {
		return "", fmt.Errorf("next %s sequence: %w", strings.ToLower(prefix), err)
	}
	return Format(prefix, day, n), nil
}

// Format renders PREFIX-DAY-NNNN.
func Format(prefix, day string, n int64) string {
	return fmt.Sprintf("%s-%s-%04d", prefix, day, n)
}

// Parse splits a reference back into its prefix, day and sequence number.
func Parse(ref string) (prefix string, day string, n int64, err error) {
	parts := strings.Split(ref, "-")
	if len(parts) != 3 || len(parts[1]) != len(dayLayout) || len(parts[2]) < 4 {
		return "", "", 0, fmt.Errorf("malformed reference %q", ref)
	}
	if _, err := time.Parse(dayLayout, parts[1]); err != nil {
		return "", "", 0, fmt.Errorf("malformed reference date %q: %w", ref, err)
	}
	n, err = strconv.ParseInt(parts[2], 10, 64)
	if err != nil || n <= 0 {
		return "", "", 0, fmt.Errorf("malformed reference sequence %q", ref)
	}
	return parts[0], parts[1], n, nil
}

// MemorySequencer is an in-process Sequencer.
type MemorySequencer struct {
	mu       sync.Mutex
	counters map[string]int64
}

func NewMemorySequencer() *MemorySequencer {
	return &MemorySequencer{counters: make(map[string]int64)}
}

func (m *MemorySequencer) NextSequence(_ context.Context, scope string, day string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := scope + "/" + day
	m.counters[key]++
	return m.counters[key], nil
}
