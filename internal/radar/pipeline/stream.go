package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/banshee-data/radarchain/internal/radar/l1frame"
)

// Outcome pairs a frame with its result or fatal error. Frame is returned
// so the caller can recycle it.
type Outcome struct {
	Frame  *l1frame.Frame
	Result *FrameResult
	Err    error
}

// Stream processes frames from in with at most MaxInFlight frames running
// at once and emits outcomes in input order. The output channel closes
// after in closes and every started frame has been emitted, or when ctx
// ends.
func (p *Processor) Stream(ctx context.Context, in <-chan *l1frame.Frame) <-chan Outcome {
	limit := p.MaxInFlight()
	out := make(chan Outcome)
	order := make(chan chan Outcome, limit)
	slots := make(chan struct{}, limit)

	go func() {
		defer close(order)
		for {
			var f *l1frame.Frame
			var ok bool
			select {
			case <-ctx.Done():
				return
			case f, ok = <-in:
				if !ok {
					return
				}
			}
			select {
			case <-ctx.Done():
				return
			case slots <- struct{}{}:
			}

			done := make(chan Outcome, 1)
			select {
			case <-ctx.Done():
				<-slots
				return
			case order <- done:
			}
			go func(f *l1frame.Frame) {
				defer func() { <-slots }()
				res, err := p.Process(ctx, f)
				done <- Outcome{Frame: f, Result: res, Err: err}
			}(f)
		}
	}()

	go func() {
		defer close(out)
		for done := range order {
			var o Outcome
			select {
			case <-ctx.Done():
				return
			case o = <-done:
			}
			select {
			case <-ctx.Done():
				return
			case out <- o:
			}
		}
	}()
	return out
}

// MaxInFlight returns the frame concurrency limit of Stream.
func (p *Processor) MaxInFlight() int {
	if p.maxInFlight < 1 {
		return 1
	}
	return p.maxInFlight
}

// Summary counts what Run saw.
type Summary struct {
	Frames  int
	Aborted int
	Targets int
	Ghosts  int
}

// Run streams frames from in and delivers every successful result to each
// sink in order. Aborted frames are logged and counted but do not stop the
// run. release, when non-nil, receives every frame once its outcome has been
// delivered. Run returns when in is drained or ctx ends.
func (p *Processor) Run(ctx context.Context, in <-chan *l1frame.Frame, release func(*l1frame.Frame), sinks ...Sink) (Summary, error) {
	var sum Summary
	for o := range p.Stream(ctx, in) {
		sum.Frames++
		if o.Err != nil {
			sum.Aborted++
		} else {
			sum.Targets += len(o.Result.Filtered)
			sum.Ghosts += len(o.Result.Ghosts)
			p.deliver(ctx, o.Result, sinks)
		}
		if release != nil {
			release(o.Frame)
		}
	}
	if err := ctx.Err(); err != nil {
		return sum, fmt.Errorf("run interrupted after %d frames: %w", sum.Frames, err)
	}
	return sum, nil
}

func (p *Processor) deliver(ctx context.Context, res *FrameResult, sinks []Sink) {
	for _, s := range sinks {
		if err := s.Consume(ctx, res); err != nil {
			p.metrics.SinkError(s.Name())
			if !errors.Is(err, context.Canceled) {
				opsf("sink %s frame %d: %v", s.Name(), res.FrameIndex, err)
			}
		}
	}
}
