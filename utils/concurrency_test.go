package utils

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestURLSetNoDuplicates(t *testing.T) {
	s := NewURLSet()

	assert.True(t, s.Add("https://example.com/1"), "first Add should return true")
	assert.False(t, s.Add("https://example.com/1"), "second Add of same URL should return false")
	assert.True(t, s.Contains("https://example.com/1"))
	assert.False(t, s.Contains("https://example.com/2"))
	assert.Equal(t, 1, s.Size())
}

func TestURLSetConcurrency(t *testing.T) {
	s := NewURLSet()
	var added int64

	pool := NewWorkerPool(10, 0)
	for i := 0; i < 100; i++ {
		pool.Submit(func() error {
			if s.Add("https://example.com/same") {
				atomic.AddInt64(&added, 1)
			}
			return nil
		})
	}
	require.NoError(t, pool.Wait())

	assert.Equal(t, int64(1), added, "expected exactly 1 successful add")
}

func TestWorkerPoolRateLimit(t *testing.T) {
	rateLimitMs := 100
	pool := NewWorkerPool(1, rateLimitMs)

	var mu sync.Mutex
	var timestamps []time.Time

	for i := 0; i < 3; i++ {
		pool.Submit(func() error {
			mu.Lock()
			timestamps = append(timestamps, time.Now())
			mu.Unlock()
			return nil
		})
	}
	require.NoError(t, pool.Wait())
	require.Len(t, timestamps, 3)

	minGap := time.Duration(rateLimitMs) * time.Millisecond
	for i := 1; i < len(timestamps); i++ {
		gap := timestamps[i].Sub(timestamps[i-1])
		assert.GreaterOrEqual(t, gap, minGap, "gap between job %d and %d", i-1, i)
	}
}

func TestWorkerPoolCollectsErrors(t *testing.T) {
	pool := NewWorkerPool(2, 0)
	errA := errors.New("earnings failed")
	errB := errors.New("attendees failed")

	pool.Submit(func() error { return errA })
	pool.Submit(func() error { return nil })
	pool.Submit(func() error { return errB })

	err := pool.Wait()
	require.Error(t, err)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)

	// errors are reset between batches
	pool.Submit(func() error { return nil })
	assert.NoError(t, pool.Wait())
}
