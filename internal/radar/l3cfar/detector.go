package l3cfar

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/banshee-data/radarchain/internal/radar/l1frame"
	"github.com/banshee-data/radarchain/internal/radar/workers"
	"gonum.org/v1/gonum/stat"
)

// Noise estimation methods.
const (
	MethodCellAveraging  = "ca"
	MethodOrderStatistic = "os"
)

// Config holds the CFAR window and false-alarm settings. Widths are
// half-widths in cells on each side of the cell under test.
type Config struct {
	Method          string
	GuardRange      int
	GuardDoppler    int
	TrainingRange   int
	TrainingDoppler int
	FalseAlarmRate  float64
	ScaleFactor     float64 // used as-is when > 0, otherwise derived from FalseAlarmRate
	OSRank          float64 // order-statistic rank as a fraction of the training set
}

// Peak is one detection: a range bin, a Doppler bin and the receiver with
// the strongest return in that cell.
type Peak struct {
	RangeBin   int
	DopplerBin int
	Channel    int
}

// Result carries every intermediate product of one detection pass.
type Result struct {
	NCI       *Map
	Folded    *Map
	Noise     *Map
	Threshold *Map
	Scale     float64
	Peaks     []Peak
}

// Detector runs CFAR over range-Doppler frames. It holds only read-only
// settings and may be shared across frames.
type Detector struct {
	cfg      Config
	scale    float64
	training int
	osRank   int
	pool     *workers.Pool
}

// New validates cfg and derives the threshold scale.
func New(cfg Config, pool *workers.Pool) (*Detector, error) {
	switch cfg.Method {
	case MethodCellAveraging, MethodOrderStatistic:
	default:
		return nil, fmt.Errorf("unknown cfar method %q", cfg.Method)
	}
	if cfg.GuardRange < 0 || cfg.GuardDoppler < 0 || cfg.TrainingRange < 0 || cfg.TrainingDoppler < 0 {
		return nil, fmt.Errorf("cfar widths must be non-negative: %+v", cfg)
	}
	if cfg.Method == MethodOrderStatistic && (cfg.OSRank <= 0 || cfg.OSRank > 1) {
		return nil, fmt.Errorf("cfar os rank must be in (0, 1], got %g", cfg.OSRank)
	}
	d := &Detector{cfg: cfg, pool: pool}
	d.training = trainingCells(cfg)
	if d.training == 0 {
		return nil, fmt.Errorf("cfar window has no training cells")
	}
	d.osRank = orderIndex(cfg.OSRank, d.training) + 1

	switch {
	case cfg.ScaleFactor > 0:
		d.scale = cfg.ScaleFactor
	case cfg.FalseAlarmRate > 0 && cfg.FalseAlarmRate < 1:
		if cfg.Method == MethodOrderStatistic {
			d.scale = osScale(cfg.FalseAlarmRate, d.training, d.osRank)
		} else {
			d.scale = caScale(cfg.FalseAlarmRate, d.training)
		}
	default:
		return nil, fmt.Errorf("cfar needs a scale factor or a false alarm rate in (0, 1)")
	}
	// The threshold may never sit below the noise floor.
	d.scale = math.Max(d.scale, 1)
	return d, nil
}

// Scale returns the threshold multiplier applied to the noise estimate.
func (d *Detector) Scale() float64 { return d.scale }

// TrainingCells returns the number of training cells around an interior cell.
func (d *Detector) TrainingCells() int { return d.training }

// Margins returns how many range and Doppler bins at each edge are excluded
// from detection.
func (d *Detector) Margins() (rangeMargin, dopplerMargin int) {
	return d.cfg.GuardRange + d.cfg.TrainingRange, d.cfg.GuardDoppler + d.cfg.TrainingDoppler
}

// Detect runs the full CFAR chain on a range-Doppler frame. An empty peak
// list is a valid outcome.
func (d *Detector) Detect(ctx context.Context, f *l1frame.Frame) (*Result, error) {
	if f.Domain != l1frame.RangeDoppler {
		return nil, fmt.Errorf("cfar needs a range-doppler frame, frame %d is in %s domain", f.Index, f.Domain)
	}
	nci, err := Integrate(ctx, d.pool, f)
	if err != nil {
		return nil, fmt.Errorf("integrate: %w", err)
	}
	folded := Fold(nci)
	noise, err := d.EstimateNoise(ctx, folded)
	if err != nil {
		return nil, fmt.Errorf("noise estimate: %w", err)
	}
	threshold := d.Threshold(noise)
	peaks, err := d.FindPeaks(ctx, f, nci, threshold)
	if err != nil {
		return nil, fmt.Errorf("peak search: %w", err)
	}
	return &Result{
		NCI:       nci,
		Folded:    folded,
		Noise:     noise,
		Threshold: threshold,
		Scale:     d.scale,
		Peaks:     MergeDuplicates(peaks),
	}, nil
}

// EstimateNoise computes the per-cell noise floor from the training ring
// around each cell, skipping the guard box. Windows are clipped at the grid
// edge.
func (d *Detector) EstimateNoise(ctx context.Context, folded *Map) (*Map, error) {
	noise := NewMap(folded.RangeBins, folded.DopplerBins)
	gr, gd := d.cfg.GuardRange, d.cfg.GuardDoppler
	wr, wd := gr+d.cfg.TrainingRange, gd+d.cfg.TrainingDoppler

	if d.cfg.Method == MethodCellAveraging {
		ii := newIntegralImage(folded)
		err := d.pool.For(ctx, folded.RangeBins, func(lo, hi int) error {
			for r := lo; r < hi; r++ {
				for c := 0; c < folded.DopplerBins; c++ {
					outer, nOuter := ii.box(r-wr, r+wr, c-wd, c+wd)
					inner, nInner := ii.box(r-gr, r+gr, c-gd, c+gd)
					v := folded.At(r, c)
					if n := nOuter - nInner; n > 0 {
						v = math.Max((outer-inner)/float64(n), 0)
					}
					noise.Set(r, c, v)
				}
			}
			return nil
		})
		return noise, err
	}

	err := d.pool.For(ctx, folded.RangeBins, func(lo, hi int) error {
		buf := make([]float64, 0, d.training)
		for r := lo; r < hi; r++ {
			for c := 0; c < folded.DopplerBins; c++ {
				buf = buf[:0]
				for rr := max(r-wr, 0); rr <= min(r+wr, folded.RangeBins-1); rr++ {
					for cc := max(c-wd, 0); cc <= min(c+wd, folded.DopplerBins-1); cc++ {
						if abs(rr-r) <= gr && abs(cc-c) <= gd {
							continue
						}
						buf = append(buf, folded.At(rr, cc))
					}
				}
				v := folded.At(r, c)
				if len(buf) > 0 {
					sort.Float64s(buf)
					v = stat.Quantile(d.cfg.OSRank, stat.Empirical, buf, nil)
				}
				noise.Set(r, c, v)
			}
		}
		return nil
	})
	return noise, err
}

// Threshold scales the noise map. Every threshold is at least its noise.
func (d *Detector) Threshold(noise *Map) *Map {
	th := NewMap(noise.RangeBins, noise.DopplerBins)
	for i, v := range noise.Data {
		th.Data[i] = v * d.scale
	}
	return th
}

// FindPeaks returns the interior cells whose NCI exceeds the threshold and
// is a local maximum in the surrounding 3×3 block, in range-then-Doppler
// order. On a plateau the first cell in scan order wins.
func (d *Detector) FindPeaks(ctx context.Context, f *l1frame.Frame, nci, threshold *Map) ([]Peak, error) {
	mr, md := d.Margins()
	rows := make([][]Peak, nci.RangeBins)
	err := d.pool.For(ctx, nci.RangeBins, func(lo, hi int) error {
		for r := max(lo, mr); r < min(hi, nci.RangeBins-mr); r++ {
			for c := md; c < nci.DopplerBins-md; c++ {
				v := nci.At(r, c)
				if !(v > threshold.At(r, c)) || !isLocalMax(nci, r, c) {
					continue
				}
				rows[r] = append(rows[r], Peak{RangeBin: r, DopplerBin: c, Channel: strongestChannel(f, r, c)})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	var peaks []Peak
	for _, row := range rows {
		peaks = append(peaks, row...)
	}
	return peaks, nil
}

func isLocalMax(m *Map, r, c int) bool {
	v := m.At(r, c)
	for dr := -1; dr <= 1; dr++ {
		for dc := -1; dc <= 1; dc++ {
			if dr == 0 && dc == 0 {
				continue
			}
			rr, cc := r+dr, c+dc
			if rr < 0 || rr >= m.RangeBins || cc < 0 || cc >= m.DopplerBins {
				continue
			}
			n := m.At(rr, cc)
			earlier := dr < 0 || (dr == 0 && dc < 0)
			if earlier && !(v > n) {
				return false
			}
			if !earlier && v < n {
				return false
			}
		}
	}
	return true
}

func strongestChannel(f *l1frame.Frame, r, c int) int {
	best, bestPow := 0, -1.0
	for rx := 0; rx < f.Shape.Receivers; rx++ {
		v := f.Data[f.Idx(rx, c, r)]
		if p := real(v)*real(v) + imag(v)*imag(v); p > bestPow {
			best, bestPow = rx, p
		}
	}
	return best
}

// MergeDuplicates removes peaks at a (range, Doppler) cell already seen,
// keeping the first. Order is otherwise preserved.
func MergeDuplicates(peaks []Peak) []Peak {
	if len(peaks) < 2 {
		return peaks
	}
	type cell struct{ r, d int }
	seen := make(map[cell]struct{}, len(peaks))
	out := peaks[:0:0]
	for _, p := range peaks {
		k := cell{p.RangeBin, p.DopplerBin}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, p)
	}
	return out
}

func trainingCells(cfg Config) int {
	outer := (2*(cfg.GuardRange+cfg.TrainingRange) + 1) * (2*(cfg.GuardDoppler+cfg.TrainingDoppler) + 1)
	inner := (2*cfg.GuardRange + 1) * (2*cfg.GuardDoppler + 1)
	return outer - inner
}

// orderIndex mirrors stat.Empirical: the zero-based index of the rank
// fraction p within n sorted samples.
func orderIndex(p float64, n int) int {
	k := int(math.Ceil(p*float64(n))) - 1
	return min(max(k, 0), n-1)
}

// caScale is the cell-averaging multiplier for exponentially distributed
// noise power: α = N·(Pfa^(-1/N) − 1).
func caScale(pfa float64, n int) float64 {
	return float64(n) * (math.Pow(pfa, -1/float64(n)) - 1)
}

// osScale solves Π_{i=0}^{k-1} (N−i)/(N−i+α) = Pfa for α by bisection.
func osScale(pfa float64, n, k int) float64 {
	pf := func(alpha float64) float64 {
		p := 1.0
		for i := 0; i < k; i++ {
			p *= float64(n-i) / (float64(n-i) + alpha)
		}
		return p
	}
	lo, hi := 0.0, 1.0
	for pf(hi) > pfa && hi < 1e12 {
		hi *= 2
	}
	for i := 0; i < 200 && hi-lo > 1e-12*hi; i++ {
		mid := 0.5 * (lo + hi)
		if pf(mid) > pfa {
			lo = mid
		} else {
			hi = mid
		}
	}
	return hi
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
