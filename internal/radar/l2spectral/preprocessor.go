package l2spectral

import (
	"context"
	"fmt"
	"sync"

	"github.com/banshee-data/radarchain/internal/radar/l1frame"
	"github.com/banshee-data/radarchain/internal/radar/workers"
	"gonum.org/v1/gonum/dsp/fourier"
)

// Config selects the declared frame shape and the taper on each axis.
type Config struct {
	Shape         l1frame.Shape
	RangeWindow   string
	DopplerWindow string
}

// Preprocessor applies the windowed range transform along fast time and
// the windowed Doppler transform along slow time. It is safe for
// concurrent use by multiple frames.
type Preprocessor struct {
	shape      l1frame.Shape
	rangeWin   []float64
	dopplerWin []float64
	pool       *workers.Pool

	rangePlans   sync.Pool
	dopplerPlans sync.Pool
}

// New builds a Preprocessor. Transform plans are created lazily per worker
// because a gonum plan carries mutable scratch.
func New(cfg Config, pool *workers.Pool) (*Preprocessor, error) {
	rw, err := Taper(cfg.RangeWindow, cfg.Shape.Samples)
	if err != nil {
		return nil, fmt.Errorf("range window: %w", err)
	}
	dw, err := Taper(cfg.DopplerWindow, cfg.Shape.Chirps)
	if err != nil {
		return nil, fmt.Errorf("doppler window: %w", err)
	}
	p := &Preprocessor{
		shape:      cfg.Shape,
		rangeWin:   rw,
		dopplerWin: dw,
		pool:       pool,
	}
	ns, nc := cfg.Shape.Samples, cfg.Shape.Chirps
	p.rangePlans.New = func() interface{} { return fourier.NewCmplxFFT(ns) }
	p.dopplerPlans.New = func() interface{} { return fourier.NewCmplxFFT(nc) }
	return p, nil
}

// RangeGain returns the coherent gain of the range window.
func (p *Preprocessor) RangeGain() float64 { return CoherentGain(p.rangeWin) }

// DopplerGain returns the coherent gain of the Doppler window.
func (p *Preprocessor) DopplerGain() float64 { return CoherentGain(p.dopplerWin) }

// ZeroDopplerBin returns the Doppler bin that holds zero radial velocity.
func (p *Preprocessor) ZeroDopplerBin() int { return p.shape.Chirps / 2 }

// Process transforms f in place. On return f.Domain is RangeDoppler,
// f.Row(rx, d) is the range profile of Doppler bin d, and Doppler bins are
// shifted so ZeroDopplerBin is stationary. A shape mismatch returns a
// *l1frame.ConfigMismatchError and leaves f untouched.
func (p *Preprocessor) Process(ctx context.Context, f *l1frame.Frame) error {
	if err := f.CheckShape(p.shape); err != nil {
		return err
	}
	if f.Domain != l1frame.TimeDomain {
		return fmt.Errorf("frame %d already in %s domain", f.Index, f.Domain)
	}

	if err := p.rangePass(ctx, f); err != nil {
		return fmt.Errorf("range transform: %w", err)
	}
	if err := p.dopplerPass(ctx, f); err != nil {
		return fmt.Errorf("doppler transform: %w", err)
	}
	f.Domain = l1frame.RangeDoppler
	return nil
}

func (p *Preprocessor) rangePass(ctx context.Context, f *l1frame.Frame) error {
	nc := f.Shape.Chirps
	rows := f.Shape.Receivers * nc
	return p.pool.For(ctx, rows, func(lo, hi int) error {
		plan := p.rangePlans.Get().(*fourier.CmplxFFT)
		defer p.rangePlans.Put(plan)
		for i := lo; i < hi; i++ {
			row := f.Row(i/nc, i%nc)
			for s, w := range p.rangeWin {
				row[s] *= complex(w, 0)
			}
			plan.Coefficients(row, row)
		}
		return nil
	})
}

func (p *Preprocessor) dopplerPass(ctx context.Context, f *l1frame.Frame) error {
	ns := f.Shape.Samples
	cols := f.Shape.Receivers * ns
	return p.pool.For(ctx, cols, func(lo, hi int) error {
		plan := p.dopplerPlans.Get().(*fourier.CmplxFFT)
		defer p.dopplerPlans.Put(plan)
		col := make([]complex128, f.Shape.Chirps)
		shifted := make([]complex128, f.Shape.Chirps)
		for i := lo; i < hi; i++ {
			rx, s := i/ns, i%ns
			col = f.Column(rx, s, col)
			for c, w := range p.dopplerWin {
				col[c] *= complex(w, 0)
			}
			plan.Coefficients(col, col)
			for d := range shifted {
				shifted[d] = col[plan.ShiftIdx(d)]
			}
			f.SetColumn(rx, s, shifted)
		}
		return nil
	})
}
