package pipeline

import (
	"context"
	"sync"
)

// Sink consumes per-frame results outside the core: storage, streaming,
// web monitor. Consume is called from a single goroutine in frame order.
type Sink interface {
	Name() string
	Consume(ctx context.Context, res *FrameResult) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc struct {
	Label string
	Fn    func(ctx context.Context, res *FrameResult) error
}

// Name returns the label used in logs and metrics.
func (s SinkFunc) Name() string { return s.Label }

// Consume calls Fn.
func (s SinkFunc) Consume(ctx context.Context, res *FrameResult) error { return s.Fn(ctx, res) }

// Collector is an in-memory sink that keeps every result.
type Collector struct {
	mu      sync.Mutex
	results []*FrameResult
}

// Name implements Sink.
func (c *Collector) Name() string { return "collector" }

// Consume implements Sink.
func (c *Collector) Consume(_ context.Context, res *FrameResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, res)
	return nil
}

// Results returns a copy of the collected results.
func (c *Collector) Results() []*FrameResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*FrameResult(nil), c.results...)
}
