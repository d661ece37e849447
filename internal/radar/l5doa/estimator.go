package l5doa

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"sort"

	"github.com/banshee-data/radarchain/internal/radar/l4array"
	"github.com/banshee-data/radarchain/internal/radar/workers"
)

// rankTolerance separates signal eigenvalues from numerical zero.
const rankTolerance = 1e-10

// ErrDegenerateAperture is matched by every DegenerateApertureError.
var ErrDegenerateAperture = errors.New("degenerate aperture")

// DegenerateApertureError reports a snapshot whose covariance cannot support
// the requested number of sources. The result still carries Effective
// angles.
type DegenerateApertureError struct {
	Peak      int
	Requested int
	Effective int
}

func (e *DegenerateApertureError) Error() string {
	return fmt.Sprintf("peak %d: degenerate aperture, %d sources requested, %d resolvable", e.Peak, e.Requested, e.Effective)
}

// Is makes errors.Is(err, ErrDegenerateAperture) succeed.
func (e *DegenerateApertureError) Is(target error) bool {
	return target == ErrDegenerateAperture
}

// Angle is a direction of arrival in radians. Azimuth is positive towards
// +y, elevation positive towards +z.
type Angle struct {
	Azimuth   float64
	Elevation float64
}

// Result is the DOA outcome for one peak.
type Result struct {
	Angles      []Angle
	Eigenvalues []float64 // descending
	Spectrum    []float64 // pseudo-spectrum over Estimator.Grid
	Err         error     // *DegenerateApertureError when fewer angles than requested
}

// Config describes the virtual lattice and the search.
type Config struct {
	Lattice          *l4array.Lattice
	Sources          int
	AzimuthFOVDeg    float64
	ElevationFOVDeg  float64
	GridStepDeg      float64
	MinSeparationDeg float64
	SubarrayCols     int // 0 disables spatial smoothing
}

// Estimator runs MUSIC for each snapshot. Steering vectors are computed
// once at construction, so an Estimator is read-only and shareable.
type Estimator struct {
	cfg      Config
	grid     []Angle
	azSteps  int
	steering [][]complex128
	subCols  int
	pool     *workers.Pool
}

// New validates cfg and precomputes the steering matrix.
func New(cfg Config, pool *workers.Pool) (*Estimator, error) {
	if cfg.Lattice == nil || cfg.Lattice.Size() == 0 {
		return nil, fmt.Errorf("doa needs a non-empty lattice")
	}
	if cfg.Sources < 1 {
		return nil, fmt.Errorf("doa sources must be at least 1, got %d", cfg.Sources)
	}
	if cfg.GridStepDeg <= 0 || cfg.AzimuthFOVDeg <= 0 {
		return nil, fmt.Errorf("doa grid needs positive step and azimuth field of view")
	}
	subCols := cfg.Lattice.Cols
	if cfg.SubarrayCols > 0 {
		if cfg.SubarrayCols > cfg.Lattice.Cols {
			return nil, fmt.Errorf("subarray of %d columns exceeds lattice width %d", cfg.SubarrayCols, cfg.Lattice.Cols)
		}
		subCols = cfg.SubarrayCols
	}

	e := &Estimator{cfg: cfg, subCols: subCols, pool: pool}
	az := axis(cfg.AzimuthFOVDeg, cfg.GridStepDeg)
	el := []float64{0}
	if cfg.Lattice.Rows > 1 && cfg.ElevationFOVDeg > 0 {
		el = axis(cfg.ElevationFOVDeg, cfg.GridStepDeg)
	}
	e.azSteps = len(az)
	for _, elDeg := range el {
		for _, azDeg := range az {
			e.grid = append(e.grid, Angle{Azimuth: deg2rad(azDeg), Elevation: deg2rad(elDeg)})
		}
	}

	e.steering = make([][]complex128, len(e.grid))
	for g, a := range e.grid {
		e.steering[g] = e.steer(a)
	}
	return e, nil
}

// Grid returns the searched directions, azimuth varying fastest.
func (e *Estimator) Grid() []Angle { return e.grid }

// GridShape returns the azimuth and elevation grid sizes.
func (e *Estimator) GridShape() (azimuths, elevations int) {
	return e.azSteps, len(e.grid) / e.azSteps
}

// ApertureSize returns the number of elements the covariance spans.
func (e *Estimator) ApertureSize() int { return e.subCols * e.cfg.Lattice.Rows }

// Estimate runs MUSIC on every snapshot. The returned slice is index-aligned
// with snaps; per-peak problems are reported in Result.Err. The error return
// is non-nil only when ctx ends.
func (e *Estimator) Estimate(ctx context.Context, snaps [][]complex128) ([]Result, error) {
	out := make([]Result, len(snaps))
	err := e.pool.Each(ctx, len(snaps), func(i int) error {
		out[i] = e.EstimateOne(snaps[i])
		if dae, ok := out[i].Err.(*DegenerateApertureError); ok {
			dae.Peak = i
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// EstimateOne runs MUSIC on a single lattice snapshot.
func (e *Estimator) EstimateOne(snap []complex128) Result {
	if len(snap) != e.cfg.Lattice.Size() {
		return Result{Err: fmt.Errorf("snapshot has %d elements, lattice has %d", len(snap), e.cfg.Lattice.Size())}
	}
	dec, err := Decompose(Covariance(e.subarrays(snap)...))
	if err != nil {
		return Result{Err: err}
	}
	res := Result{Eigenvalues: dec.Values}

	m := e.ApertureSize()
	n := min(e.cfg.Sources, dec.Rank(rankTolerance), m-1)
	if n < e.cfg.Sources {
		res.Err = &DegenerateApertureError{Requested: e.cfg.Sources, Effective: max(n, 0)}
	}
	if n <= 0 {
		return res
	}

	res.Spectrum = make([]float64, len(e.grid))
	for g, a := range e.steering {
		proj := dec.NoiseProjection(a, n)
		res.Spectrum[g] = 1 / math.Max(proj, 1e-12*float64(len(a)))
	}
	for _, g := range e.pick(res.Spectrum, n) {
		res.Angles = append(res.Angles, e.grid[g])
	}
	return res
}

// subarrays splits a lattice snapshot into the overlapping sub-apertures
// used for smoothing. Without smoothing it returns the snapshot itself.
func (e *Estimator) subarrays(snap []complex128) [][]complex128 {
	l := e.cfg.Lattice
	if e.subCols == l.Cols {
		return [][]complex128{snap}
	}
	k := l.Cols - e.subCols + 1
	out := make([][]complex128, k)
	for s := range out {
		sub := make([]complex128, 0, e.subCols*l.Rows)
		for z := 0; z < l.Rows; z++ {
			start := l.Slot(s, z)
			sub = append(sub, snap[start:start+e.subCols]...)
		}
		out[s] = sub
	}
	return out
}

// steer returns the steering vector for direction a over the (sub)aperture.
// Element phase is π·(x·sin az·cos el + z·sin el) with x, z in half
// wavelengths.
func (e *Estimator) steer(a Angle) []complex128 {
	l := e.cfg.Lattice
	u := math.Sin(a.Azimuth) * math.Cos(a.Elevation)
	w := math.Sin(a.Elevation)
	v := make([]complex128, 0, e.subCols*l.Rows)
	for z := 0; z < l.Rows; z++ {
		for x := 0; x < e.subCols; x++ {
			v = append(v, cmplx.Rect(1, math.Pi*(float64(x)*u+float64(z)*w)))
		}
	}
	return v
}

// pick selects n grid indices: local maxima first, strongest first, each
// at least MinSeparationDeg from those already chosen, then the best
// remaining cells if too few lobes exist.
func (e *Estimator) pick(spec []float64, n int) []int {
	order := make([]int, len(spec))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool { return spec[order[i]] > spec[order[j]] })

	chosen := make([]int, 0, n)
	taken := make(map[int]bool, n)
	accept := func(g int, sep bool) {
		if len(chosen) >= n || taken[g] {
			return
		}
		if sep {
			for _, c := range chosen {
				if e.separationDeg(g, c) < e.cfg.MinSeparationDeg {
					return
				}
			}
		}
		chosen = append(chosen, g)
		taken[g] = true
	}
	for _, g := range order {
		if e.isLocalMax(spec, g) {
			accept(g, true)
		}
	}
	for _, g := range order {
		accept(g, true)
	}
	for _, g := range order {
		accept(g, false)
	}
	return chosen
}

func (e *Estimator) isLocalMax(spec []float64, g int) bool {
	azN, elN := e.GridShape()
	ai, ei := g%azN, g/azN
	for de := -1; de <= 1; de++ {
		for da := -1; da <= 1; da++ {
			a, el := ai+da, ei+de
			if (da == 0 && de == 0) || a < 0 || a >= azN || el < 0 || el >= elN {
				continue
			}
			if spec[el*azN+a] > spec[g] {
				return false
			}
		}
	}
	return true
}

func (e *Estimator) separationDeg(a, b int) float64 {
	ga, gb := e.grid[a], e.grid[b]
	return rad2deg(math.Hypot(ga.Azimuth-gb.Azimuth, ga.Elevation-gb.Elevation))
}

// axis returns -fov..fov in steps, inclusive of both ends when they fall on
// the grid.
func axis(fov, step float64) []float64 {
	n := int(math.Floor(2*fov/step+1e-9)) + 1
	out := make([]float64, n)
	for i := range out {
		out[i] = -fov + float64(i)*step
	}
	return out
}

func deg2rad(d float64) float64 { return d * math.Pi / 180 }
func rad2deg(r float64) float64 { return r * 180 / math.Pi }
