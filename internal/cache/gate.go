package cache

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Gate bounds the number of fetches in flight. Callers beyond the limit wait
// and are admitted in arrival order.
type Gate struct {
	sem      *semaphore.Weighted
	limit    int64
	waiting  atomic.Int64
	inFlight atomic.Int64
}

// NewGate creates a gate admitting at most limit concurrent holders.
func NewGate(limit int) *Gate {
	if limit <= 0 {
		limit = 8
	}
	return &Gate{
		sem:   semaphore.NewWeighted(int64(limit)),
		limit: int64(limit),
	}
}

// Acquire blocks until a slot frees up or ctx is done.
func (g *Gate) Acquire(ctx context.Context) error {
	g.waiting.Add(1)
	err := g.sem.Acquire(ctx, 1)
	g.waiting.Add(-1)
	if err != nil {
		return fmt.Errorf("acquire fetch slot: %w", err)
	}
	g.inFlight.Add(1)
	return nil
}

// Release frees a slot taken by Acquire.
func (g *Gate) Release() {
	g.inFlight.Add(-1)
	g.sem.Release(1)
}

// Limit returns the configured concurrency.
func (g *Gate) Limit() int {
	return int(g.limit)
}

// InFlight returns the number of holders.
func (g *Gate) InFlight() int {
	return int(g.inFlight.Load())
}

// Waiting returns the number of queued callers.
func (g *Gate) Waiting() int {
	return int(g.waiting.Load())
}
