package l4array

import (
	"context"
	"errors"
	"math"
	"math/cmplx"
	"testing"

	"github.com/banshee-data/radarchain/internal/radar/l1frame"
	"github.com/banshee-data/radarchain/internal/radar/l3cfar"
	"github.com/banshee-data/radarchain/internal/radar/workers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func linear(n, step int) [][2]int {
	out := make([][2]int, n)
	for i := range out {
		out[i] = [2]int{i * step, 0}
	}
	return out
}

// planeWave returns the phase a far-field source at azimuth az produces at
// horizontal position x (in half wavelengths).
func planeWave(x int, az float64) complex128 {
	return cmplx.Rect(1, math.Pi*float64(x)*math.Sin(az))
}

func TestLatticeUniform(t *testing.T) {
	l, err := NewLattice(Geometry{Tx: linear(1, 0), Rx: linear(4, 1)})
	require.NoError(t, err)
	assert.Equal(t, 4, l.Cols)
	assert.Equal(t, 1, l.Rows)
	assert.Equal(t, 0, l.Gaps())
	assert.Equal(t, []int{2}, l.Channels[2])
}

func TestLatticeMIMO(t *testing.T) {
	l, err := NewLattice(Geometry{Tx: linear(2, 4), Rx: linear(4, 1)})
	require.NoError(t, err)
	assert.Equal(t, 8, l.Size())
	assert.Equal(t, 0, l.Gaps())
	assert.Equal(t, []int{5}, l.Channels[5], "tx1 rx1 lands on column 5")
}

func TestLatticeRedundant(t *testing.T) {
	l, err := NewLattice(Geometry{Tx: linear(2, 1), Rx: linear(2, 1)})
	require.NoError(t, err)
	assert.Equal(t, 3, l.Size())
	assert.Equal(t, 1, l.Redundant())
	assert.Equal(t, []int{1, 2}, l.Channels[1])
}

func TestLatticeTwoDimensional(t *testing.T) {
	g := Geometry{
		Tx: [][2]int{{0, 0}},
		Rx: [][2]int{{1, 1}, {0, 0}, {1, 0}, {0, 1}},
	}
	l, err := NewLattice(g)
	require.NoError(t, err)
	assert.Equal(t, 2, l.Rows)
	assert.Equal(t, 2, l.Cols)
	// Row-major: (0,0), (1,0), (0,1), (1,1)
	assert.Equal(t, [][]int{{1}, {2}, {3}, {0}}, l.Channels)
	assert.Equal(t, Element{X: 1, Z: 1}, l.Elements[3])
}

func TestLatticeEmpty(t *testing.T) {
	_, err := NewLattice(Geometry{Rx: linear(4, 1)})
	assert.Error(t, err)
}

func TestGapFillPolicies(t *testing.T) {
	g := Geometry{Tx: linear(1, 0), Rx: [][2]int{{0, 0}, {1, 0}, {3, 0}, {4, 0}}}
	az := 20 * math.Pi / 180
	cell := make([]complex128, 4)
	for c, rp := range g.Rx {
		cell[c] = planeWave(rp[0], az)
	}

	interp, err := New(Config{Geometry: g, Chirps: 16, GapFill: GapInterpolate}, workers.New(1))
	require.NoError(t, err)
	require.Equal(t, 1, interp.Lattice().Gaps())
	snap := interp.Snapshot(append([]complex128(nil), cell...), 8, nil)
	require.Len(t, snap, 5)
	assert.Equal(t, cell[1], snap[1])
	assert.Equal(t, cell[2], snap[3])
	want := (cell[1] + cell[2]) / 2
	assert.InDelta(t, 0, cmplx.Abs(snap[2]-want), 1e-12)

	zero, err := New(Config{Geometry: g, Chirps: 16, GapFill: GapZero}, workers.New(1))
	require.NoError(t, err)
	snap = zero.Snapshot(append([]complex128(nil), cell...), 8, nil)
	assert.Equal(t, complex128(0), snap[2])
	assert.Equal(t, cell[3], snap[4])
}

func TestGapWithoutBothNeighboursIsZero(t *testing.T) {
	row := []complex128{1, 2, 99, 99}
	fillRow(row, []bool{true, true, false, false}, GapInterpolate)
	assert.Equal(t, []complex128{1, 2, 0, 0}, row)

	row = []complex128{99, 4, 99, 8}
	fillRow(row, []bool{false, true, false, true}, GapInterpolate)
	assert.Equal(t, []complex128{0, 4, 6, 8}, row)
}

func TestRedundantSlotsAveraged(t *testing.T) {
	s, err := New(Config{Geometry: Geometry{Tx: linear(2, 1), Rx: linear(2, 1)}, Chirps: 8, GapFill: GapZero}, nil)
	require.NoError(t, err)
	snap := s.Snapshot([]complex128{1, 2, 4, 8}, 4, nil)
	assert.Equal(t, []complex128{1, 3, 8}, snap)
}

func TestTDMCompensation(t *testing.T) {
	const chirps = 64
	g := Geometry{Tx: linear(2, 4), Rx: linear(4, 1)}
	az := -15 * math.Pi / 180
	dopplerBin := 40
	fd := float64(dopplerBin - chirps/2)

	cell := make([]complex128, g.Channels())
	for tx := range g.Tx {
		slip := cmplx.Rect(1, 2*math.Pi*float64(tx)*fd/float64(chirps*len(g.Tx)))
		for rx := range g.Rx {
			x := g.Tx[tx][0] + g.Rx[rx][0]
			cell[tx*len(g.Rx)+rx] = planeWave(x, az) * slip
		}
	}

	s, err := New(Config{Geometry: g, Chirps: chirps, GapFill: GapInterpolate, TDMCompensation: true}, nil)
	require.NoError(t, err)
	snap := s.Snapshot(append([]complex128(nil), cell...), dopplerBin, nil)
	for x, v := range snap {
		assert.InDeltaf(t, 0, cmplx.Abs(v-planeWave(x, az)), 1e-12, "slot %d", x)
	}

	off, err := New(Config{Geometry: g, Chirps: chirps, GapFill: GapInterpolate}, nil)
	require.NoError(t, err)
	raw := off.Snapshot(append([]complex128(nil), cell...), dopplerBin, nil)
	assert.Greater(t, cmplx.Abs(raw[5]-planeWave(5, az)), 0.1)
}

func TestSynthesize(t *testing.T) {
	g := Geometry{Tx: linear(1, 0), Rx: linear(4, 1)}
	shape := l1frame.Shape{Receivers: 4, Chirps: 8, Samples: 16}
	f := l1frame.New(0, shape)
	f.Domain = l1frame.RangeDoppler
	peaks := []l3cfar.Peak{{RangeBin: 3, DopplerBin: 2}, {RangeBin: 9, DopplerBin: 5}}
	for i, p := range peaks {
		for rx := 0; rx < 4; rx++ {
			f.Set(rx, p.DopplerBin, p.RangeBin, complex(float64(10*i+rx), 0))
		}
	}

	s, err := New(Config{Geometry: g, Chirps: 8, GapFill: GapInterpolate}, workers.New(2))
	require.NoError(t, err)
	snaps, err := s.Synthesize(context.Background(), f, peaks)
	require.NoError(t, err)
	require.Len(t, snaps, len(peaks))
	assert.Equal(t, []complex128{0, 1, 2, 3}, snaps[0])
	assert.Equal(t, []complex128{10, 11, 12, 13}, snaps[1])

	empty, err := s.Synthesize(context.Background(), f, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	bad := l1frame.New(0, l1frame.Shape{Receivers: 2, Chirps: 8, Samples: 16})
	_, err = s.Synthesize(context.Background(), bad, peaks)
	assert.True(t, errors.Is(err, l1frame.ErrConfigMismatch))
}

func TestNewRejectsBadConfig(t *testing.T) {
	g := Geometry{Tx: linear(1, 0), Rx: linear(4, 1)}
	_, err := New(Config{Geometry: g, Chirps: 8, GapFill: "nearest"}, nil)
	assert.Error(t, err)
	_, err = New(Config{Geometry: g, GapFill: GapZero}, nil)
	assert.Error(t, err)
}
