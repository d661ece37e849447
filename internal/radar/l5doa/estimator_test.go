package l5doa

import (
	"context"
	"errors"
	"math"
	"math/cmplx"
	"math/rand"
	"sort"
	"testing"

	"github.com/banshee-data/radarchain/internal/radar/l4array"
	"github.com/banshee-data/radarchain/internal/radar/workers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func ula(t *testing.T, n int) *l4array.Lattice {
	t.Helper()
	rx := make([][2]int, n)
	for i := range rx {
		rx[i] = [2]int{i, 0}
	}
	l, err := l4array.NewLattice(l4array.Geometry{Tx: [][2]int{{0, 0}}, Rx: rx})
	require.NoError(t, err)
	return l
}

// wave builds the lattice snapshot of a unit far-field source.
func wave(l *l4array.Lattice, azDeg, elDeg float64, amp complex128) []complex128 {
	az, el := deg2rad(azDeg), deg2rad(elDeg)
	out := make([]complex128, l.Size())
	for i, e := range l.Elements {
		ph := math.Pi * (float64(e.X)*math.Sin(az)*math.Cos(el) + float64(e.Z)*math.Sin(el))
		out[i] = amp * cmplx.Rect(1, ph)
	}
	return out
}

func baseConfig(l *l4array.Lattice, sources int) Config {
	return Config{
		Lattice:          l,
		Sources:          sources,
		AzimuthFOVDeg:    60,
		ElevationFOVDeg:  20,
		GridStepDeg:      1,
		MinSeparationDeg: 4,
	}
}

func TestSingleSourceAzimuth(t *testing.T) {
	l := ula(t, 8)
	e, err := New(baseConfig(l, 1), workers.New(1))
	require.NoError(t, err)

	for _, az := range []float64{-37, 0, 10, 52} {
		res := e.EstimateOne(wave(l, az, 0, 3-1i))
		require.NoError(t, res.Err)
		require.Len(t, res.Angles, 1)
		assert.InDelta(t, az, rad2deg(res.Angles[0].Azimuth), 1e-9)
		assert.Equal(t, 0.0, res.Angles[0].Elevation)
	}
}

func TestEigenvaluesDescending(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	snaps := make([][]complex128, 6)
	for k := range snaps {
		snaps[k] = make([]complex128, 5)
		for i := range snaps[k] {
			snaps[k][i] = complex(rng.NormFloat64(), rng.NormFloat64())
		}
	}
	r := Covariance(snaps...)
	dec, err := Decompose(r)
	require.NoError(t, err)
	require.Len(t, dec.Values, 5)
	assert.True(t, sort.IsSorted(sort.Reverse(sort.Float64Slice(dec.Values))))

	var trace, sum float64
	for i := 0; i < 5; i++ {
		trace += real(r.At(i, i))
		sum += dec.Values[i]
	}
	assert.InDelta(t, trace, sum, 1e-9*trace)
}

func TestDecomposeKnownMatrix(t *testing.T) {
	r := mat.NewCDense(2, 2, []complex128{2, 1i, -1i, 2})
	dec, err := Decompose(r)
	require.NoError(t, err)
	assert.InDelta(t, 3, dec.Values[0], 1e-12)
	assert.InDelta(t, 1, dec.Values[1], 1e-12)
	assert.Equal(t, 2, dec.Rank(rankTolerance))

	_, err = Decompose(mat.NewCDense(2, 3, nil))
	assert.Error(t, err)
}

func TestNoiseEigenvaluesMatchInjectedPower(t *testing.T) {
	const (
		elements  = 4
		snapshots = 400
		sigma     = 0.1
	)
	l := ula(t, elements)
	rng := rand.New(rand.NewSource(42))
	steer := wave(l, 12, 0, 1)
	snaps := make([][]complex128, snapshots)
	for k := range snaps {
		s := cmplx.Rect(1, 2*math.Pi*rng.Float64())
		snaps[k] = make([]complex128, elements)
		for i := range snaps[k] {
			n := complex(rng.NormFloat64(), rng.NormFloat64()) * complex(sigma/math.Sqrt2, 0)
			snaps[k][i] = s*steer[i] + n
		}
	}
	dec, err := Decompose(Covariance(snaps...))
	require.NoError(t, err)

	var noise float64
	for _, v := range dec.Values[1:] {
		noise += v
	}
	want := float64(elements-1) * sigma * sigma
	assert.InEpsilon(t, want, noise, 0.25, "noise subspace power %g, injected %g", noise, want)
	assert.Greater(t, dec.Values[0], 10*dec.Values[1])
}

func TestDegenerateApertureReducesSources(t *testing.T) {
	l := ula(t, 8)
	e, err := New(baseConfig(l, 2), nil)
	require.NoError(t, err)

	res := e.EstimateOne(wave(l, -20, 0, 1))
	var dae *DegenerateApertureError
	require.True(t, errors.As(res.Err, &dae))
	assert.True(t, errors.Is(res.Err, ErrDegenerateAperture))
	assert.Equal(t, 2, dae.Requested)
	assert.Equal(t, 1, dae.Effective)
	require.Len(t, res.Angles, 1)
	assert.InDelta(t, -20, rad2deg(res.Angles[0].Azimuth), 1e-9)
}

func TestZeroSnapshotYieldsNoAngles(t *testing.T) {
	l := ula(t, 4)
	e, err := New(baseConfig(l, 1), nil)
	require.NoError(t, err)
	res := e.EstimateOne(make([]complex128, 4))
	assert.ErrorIs(t, res.Err, ErrDegenerateAperture)
	assert.Empty(t, res.Angles)
}

func TestSpatialSmoothingResolvesCoherentSources(t *testing.T) {
	l := ula(t, 8)
	cfg := baseConfig(l, 2)
	cfg.SubarrayCols = 5
	e, err := New(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, e.ApertureSize())

	a, b := wave(l, -20, 0, 1), wave(l, 25, 0, 0.8i)
	snap := make([]complex128, len(a))
	for i := range snap {
		snap[i] = a[i] + b[i]
	}
	res := e.EstimateOne(snap)
	require.NoError(t, res.Err)
	require.Len(t, res.Angles, 2)

	got := []float64{rad2deg(res.Angles[0].Azimuth), rad2deg(res.Angles[1].Azimuth)}
	sort.Float64s(got)
	assert.InDelta(t, -20, got[0], 1.0)
	assert.InDelta(t, 25, got[1], 1.0)
}

func TestElevationOnPlanarLattice(t *testing.T) {
	g := l4array.Geometry{
		Tx: [][2]int{{0, 0}, {0, 1}},
		Rx: [][2]int{{0, 0}, {1, 0}, {2, 0}, {3, 0}},
	}
	l, err := l4array.NewLattice(g)
	require.NoError(t, err)
	require.Equal(t, 2, l.Rows)

	e, err := New(baseConfig(l, 1), nil)
	require.NoError(t, err)
	azN, elN := e.GridShape()
	assert.Equal(t, 121, azN)
	assert.Equal(t, 41, elN)

	res := e.EstimateOne(wave(l, 15, 6, 1))
	require.NoError(t, res.Err)
	require.Len(t, res.Angles, 1)
	assert.InDelta(t, 15, rad2deg(res.Angles[0].Azimuth), 1e-6)
	assert.InDelta(t, 6, rad2deg(res.Angles[0].Elevation), 1e-6)
}

func TestEstimateKeepsIndexCorrespondence(t *testing.T) {
	l := ula(t, 6)
	e, err := New(baseConfig(l, 1), workers.New(3))
	require.NoError(t, err)

	azimuths := []float64{-30, 5, 0, 44}
	snaps := make([][]complex128, len(azimuths))
	for i, az := range azimuths {
		snaps[i] = wave(l, az, 0, 1)
	}
	snaps[2] = make([]complex128, 6)

	res, err := e.Estimate(context.Background(), snaps)
	require.NoError(t, err)
	require.Len(t, res, len(snaps))
	for i, az := range azimuths {
		if i == 2 {
			var dae *DegenerateApertureError
			require.True(t, errors.As(res[i].Err, &dae))
			assert.Equal(t, 2, dae.Peak)
			continue
		}
		require.NoError(t, res[i].Err)
		assert.InDelta(t, az, rad2deg(res[i].Angles[0].Azimuth), 1e-9)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Estimate(ctx, snaps)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewRejectsBadConfig(t *testing.T) {
	l := ula(t, 4)
	bad := []Config{
		{Sources: 1, AzimuthFOVDeg: 60, GridStepDeg: 1},
		{Lattice: l, Sources: 0, AzimuthFOVDeg: 60, GridStepDeg: 1},
		{Lattice: l, Sources: 1, AzimuthFOVDeg: 60},
		{Lattice: l, Sources: 1, AzimuthFOVDeg: 60, GridStepDeg: 1, SubarrayCols: 5},
	}
	for i, cfg := range bad {
		_, err := New(cfg, nil)
		assert.Errorf(t, err, "config %d", i)
	}
}

func TestAxis(t *testing.T) {
	got := axis(2, 1)
	assert.Equal(t, []float64{-2, -1, 0, 1, 2}, got)
	assert.Len(t, axis(60, 0.5), 241)
}
