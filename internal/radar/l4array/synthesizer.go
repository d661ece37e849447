package l4array

import (
	"context"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/banshee-data/radarchain/internal/radar/l1frame"
	"github.com/banshee-data/radarchain/internal/radar/l3cfar"
	"github.com/banshee-data/radarchain/internal/radar/workers"
	"gonum.org/v1/gonum/cmplxs"
)

// Config selects the array geometry and the per-peak processing options.
type Config struct {
	Geometry        Geometry
	Chirps          int
	GapFill         string
	TDMCompensation bool
}

// Synthesizer turns detected peaks into virtual-array snapshots. It only
// reads the frame and the peak list.
type Synthesizer struct {
	cfg     Config
	lattice *Lattice
	pool    *workers.Pool
}

// New builds the lattice for cfg.Geometry.
func New(cfg Config, pool *workers.Pool) (*Synthesizer, error) {
	switch cfg.GapFill {
	case GapInterpolate, GapZero:
	default:
		return nil, fmt.Errorf("unknown gap fill policy %q", cfg.GapFill)
	}
	if cfg.Chirps <= 0 {
		return nil, fmt.Errorf("chirps must be positive, got %d", cfg.Chirps)
	}
	l, err := NewLattice(cfg.Geometry)
	if err != nil {
		return nil, err
	}
	return &Synthesizer{cfg: cfg, lattice: l, pool: pool}, nil
}

// Lattice returns the virtual aperture shared by every snapshot.
func (s *Synthesizer) Lattice() *Lattice { return s.lattice }

// Synthesize returns one snapshot per peak, in peak order.
func (s *Synthesizer) Synthesize(ctx context.Context, f *l1frame.Frame, peaks []l3cfar.Peak) ([][]complex128, error) {
	if want := s.cfg.Geometry.Channels(); f.Shape.Receivers != want {
		return nil, &l1frame.ConfigMismatchError{Dimension: "receivers", Declared: want, Actual: f.Shape.Receivers}
	}
	snaps := make([][]complex128, len(peaks))
	err := s.pool.For(ctx, len(peaks), func(lo, hi int) error {
		cell := make([]complex128, f.Shape.Receivers)
		for i := lo; i < hi; i++ {
			cell = f.Cell(peaks[i].RangeBin, peaks[i].DopplerBin, cell)
			snaps[i] = s.Snapshot(cell, peaks[i].DopplerBin, nil)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snaps, nil
}

// Snapshot maps one cell's channel values onto the lattice. cell is
// modified when TDM compensation is enabled. dst is reused when large
// enough.
func (s *Synthesizer) Snapshot(cell []complex128, dopplerBin int, dst []complex128) []complex128 {
	if s.cfg.TDMCompensation {
		s.compensate(cell, dopplerBin)
	}

	l := s.lattice
	if cap(dst) < l.Size() {
		dst = make([]complex128, l.Size())
	}
	dst = dst[:l.Size()]
	populated := make([]bool, l.Size())
	var shared []complex128
	for slot, chans := range l.Channels {
		switch len(chans) {
		case 0:
			dst[slot] = 0
			continue
		case 1:
			dst[slot] = cell[chans[0]]
			populated[slot] = true
			continue
		}
		shared = shared[:0]
		for _, c := range chans {
			shared = append(shared, cell[c])
		}
		dst[slot] = cmplxs.Sum(shared) / complex(float64(len(chans)), 0)
		populated[slot] = true
	}
	if l.Gaps() > 0 {
		for z := 0; z < l.Rows; z++ {
			lo, hi := l.Slot(0, z), l.Slot(0, z)+l.Cols
			fillRow(dst[lo:hi], populated[lo:hi], s.cfg.GapFill)
		}
	}
	return dst
}

// compensate removes the Doppler phase a target accrues between
// transmitter slots: transmitter k fires k/NumTx of a chirp period late.
func (s *Synthesizer) compensate(cell []complex128, dopplerBin int) {
	numTx, numRx := len(s.cfg.Geometry.Tx), len(s.cfg.Geometry.Rx)
	if numTx < 2 {
		return
	}
	fd := float64(dopplerBin - s.cfg.Chirps/2)
	for k := 1; k < numTx; k++ {
		rot := cmplx.Rect(1, -2*math.Pi*float64(k)*fd/float64(s.cfg.Chirps*numTx))
		cmplxs.Scale(rot, cell[k*numRx:(k+1)*numRx])
	}
}
