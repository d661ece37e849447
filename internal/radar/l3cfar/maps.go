package l3cfar

import (
	"context"

	"github.com/banshee-data/radarchain/internal/radar/l1frame"
	"github.com/banshee-data/radarchain/internal/radar/workers"
)

// Map is a dense range × Doppler grid of real values. Cells are stored
// range-major: Data[Idx(r, d)].
type Map struct {
	RangeBins   int
	DopplerBins int
	Data        []float64
}

// NewMap allocates a zeroed map.
func NewMap(rangeBins, dopplerBins int) *Map {
	return &Map{RangeBins: rangeBins, DopplerBins: dopplerBins, Data: make([]float64, rangeBins*dopplerBins)}
}

// Idx returns the flat index of (r, d).
func (m *Map) Idx(r, d int) int { return r*m.DopplerBins + d }

// At returns the value at range bin r, Doppler bin d.
func (m *Map) At(r, d int) float64 { return m.Data[r*m.DopplerBins+d] }

// Set stores v at (r, d).
func (m *Map) Set(r, d int, v float64) { m.Data[r*m.DopplerBins+d] = v }

// Integrate computes NCI[r,d] = Σ_rx |X[rx,d,r]|² for a range-Doppler frame.
func Integrate(ctx context.Context, pool *workers.Pool, f *l1frame.Frame) (*Map, error) {
	nr, nd := f.Shape.Samples, f.Shape.Chirps
	nci := NewMap(nr, nd)
	err := pool.For(ctx, nr, func(lo, hi int) error {
		for r := lo; r < hi; r++ {
			for d := 0; d < nd; d++ {
				var sum float64
				for rx := 0; rx < f.Shape.Receivers; rx++ {
					v := f.Data[f.Idx(rx, d, r)]
					sum += real(v)*real(v) + imag(v)*imag(v)
				}
				nci.Data[nci.Idx(r, d)] = sum
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return nci, nil
}

// Fold averages each cell with its mirror across the zero-Doppler bin
// (DopplerBins/2). Cells whose mirror falls outside the grid are copied.
func Fold(nci *Map) *Map {
	out := NewMap(nci.RangeBins, nci.DopplerBins)
	nd := nci.DopplerBins
	for r := 0; r < nci.RangeBins; r++ {
		for d := 0; d < nd; d++ {
			v := nci.At(r, d)
			if m := nd - d; m >= 0 && m < nd {
				v = 0.5 * (v + nci.At(r, m))
			}
			out.Set(r, d, v)
		}
	}
	return out
}

// integralImage is a summed-area table with one row and column of padding.
type integralImage struct {
	rows, cols int
	sum        []float64
}

func newIntegralImage(m *Map) *integralImage {
	ii := &integralImage{rows: m.RangeBins + 1, cols: m.DopplerBins + 1}
	ii.sum = make([]float64, ii.rows*ii.cols)
	for r := 0; r < m.RangeBins; r++ {
		var rowSum float64
		for d := 0; d < m.DopplerBins; d++ {
			rowSum += m.At(r, d)
			ii.sum[(r+1)*ii.cols+d+1] = ii.sum[r*ii.cols+d+1] + rowSum
		}
	}
	return ii
}

// box returns the sum and cell count of the inclusive rectangle
// [r0,r1] × [d0,d1] clipped to the grid.
func (ii *integralImage) box(r0, r1, d0, d1 int) (float64, int) {
	r0, d0 = max(r0, 0), max(d0, 0)
	r1, d1 = min(r1, ii.rows-2), min(d1, ii.cols-2)
	if r0 > r1 || d0 > d1 {
		return 0, 0
	}
	c := ii.cols
	s := ii.sum[(r1+1)*c+d1+1] - ii.sum[r0*c+d1+1] - ii.sum[(r1+1)*c+d0] + ii.sum[r0*c+d0]
	return s, (r1 - r0 + 1) * (d1 - d0 + 1)
}
