package idgen

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() time.Time {
	return time.Date(2024, time.March, 7, 10, 30, 0, 0, time.UTC)
}

func TestTransactionReference_Format(t *testing.T) {
	gen := New(NewMemorySequencer()).WithClock(fixedClock)

	ref, err := gen.TransactionReference(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "TXN-240307-0001", ref)

	num, err := gen.OrderNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ORDER-240307-0001", num)
}

func TestTransactionReference_TenThousandInOneDayAreUnique(t *testing.T) {
	gen := New(NewMemorySequencer()).WithClock(fixedClock)
	seen := make(map[string]struct{}, 10000)

	for i := 0; i < 10000; i++ {
		ref, err := gen.TransactionReference(context.Background())
		require.NoError(t, err)
		if _, dup := seen[ref]; dup {
			t.Fatalf("duplicate reference %s after %d generations", ref, i)
		}
		seen[ref] = struct{}{}
	}
	assert.Len(t, seen, 10000)
}

func TestTransactionReference_ConcurrentCallersNeverCollide(t *testing.T) {
	gen := New(NewMemorySequencer()).WithClock(fixedClock)
	var (
		mu   sync.Mutex
		seen = make(map[string]struct{})
		wg   sync.WaitGroup
	)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				ref, err := gen.TransactionReference(context.Background())
				if err != nil {
					t.Errorf("generate: %v", err)
					return
				}
				mu.Lock()
				seen[ref] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 4000)
}

func TestFormat_GrowsPastFourDigits(t *testing.T) {
	assert.Equal(t, "TXN-240307-10001", Format(TransactionPrefix, "240307", 10001))
}

func TestParse(t *testing.T) {
	prefix, day, n, err := Parse("ORDER-240307-0042")
	require.NoError(t, err)
	assert.Equal(t, OrderPrefix, prefix)
	assert.Equal(t, "240307", day)
	assert.Equal(t, int64(42), n)

	for _, bad := range []string{"", "TXN-240307", "TXN-24030-0001", "TXN-241399-0001", "TXN-240307-00x1"} {
		_, _, _, err := Parse(bad)
		assert.Error(t, err, bad)
	}
}

func TestSequencer_ResetsPerDay(t *testing.T) {
	day := fixedClock()
	gen := New(NewMemorySequencer()).WithClock(func() time.Time { return day })

	first, err := gen.TransactionReference(context.Background())
	require.NoError(t, err)
	day = day.Add(24 * time.Hour)
	second, err := gen.TransactionReference(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "TXN-240307-0001", first)
	assert.Equal(t, "TXN-240308-0001", second)
}
