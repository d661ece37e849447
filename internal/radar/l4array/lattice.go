package l4array

import (
	"fmt"
	"math"
	"sort"
)

// Gap fill policies for lattice slots with no physical measurement.
const (
	GapInterpolate = "interpolate"
	GapZero        = "zero"
)

// Geometry describes a TDM-MIMO array. Positions are [horizontal, vertical]
// integer multiples of half a wavelength. Frame channel c belongs to
// transmitter c / len(Rx) and receiver c % len(Rx).
type Geometry struct {
	Tx [][2]int
	Rx [][2]int
}

// Channels returns the number of virtual channels in a frame.
func (g Geometry) Channels() int { return len(g.Tx) * len(g.Rx) }

// Element is one virtual lattice slot, relative to the lattice origin.
type Element struct {
	X int // columns of λ/2 from the leftmost slot
	Z int // rows of λ/2 from the lowest slot
}

// Lattice is the rectangular virtual aperture spanned by every tx+rx sum.
// Slots are ordered by row, then column.
type Lattice struct {
	Cols     int
	Rows     int
	Elements []Element
	// Channels lists the frame channels that land on each slot; empty for
	// a gap.
	Channels [][]int
}

// NewLattice places every channel of g on the virtual lattice.
func NewLattice(g Geometry) (*Lattice, error) {
	if len(g.Tx) == 0 || len(g.Rx) == 0 {
		return nil, fmt.Errorf("geometry needs at least one transmitter and receiver")
	}
	type pos struct{ x, z int }
	byPos := map[pos][]int{}
	minX, minZ := math.MaxInt, math.MaxInt
	maxX, maxZ := math.MinInt, math.MinInt
	for t, tp := range g.Tx {
		for r, rp := range g.Rx {
			p := pos{tp[0] + rp[0], tp[1] + rp[1]}
			byPos[p] = append(byPos[p], t*len(g.Rx)+r)
			minX, maxX = min(minX, p.x), max(maxX, p.x)
			minZ, maxZ = min(minZ, p.z), max(maxZ, p.z)
		}
	}

	l := &Lattice{Cols: maxX - minX + 1, Rows: maxZ - minZ + 1}
	l.Elements = make([]Element, 0, l.Cols*l.Rows)
	l.Channels = make([][]int, 0, l.Cols*l.Rows)
	for z := 0; z < l.Rows; z++ {
		for x := 0; x < l.Cols; x++ {
			chans := byPos[pos{x + minX, z + minZ}]
			sort.Ints(chans)
			l.Elements = append(l.Elements, Element{X: x, Z: z})
			l.Channels = append(l.Channels, chans)
		}
	}
	return l, nil
}

// Size returns the snapshot length.
func (l *Lattice) Size() int { return len(l.Elements) }

// Slot returns the snapshot index of (x, z).
func (l *Lattice) Slot(x, z int) int { return z*l.Cols + x }

// Gaps returns the number of slots with no physical measurement.
func (l *Lattice) Gaps() int {
	n := 0
	for _, c := range l.Channels {
		if len(c) == 0 {
			n++
		}
	}
	return n
}

// Redundant returns the number of slots fed by more than one channel.
func (l *Lattice) Redundant() int {
	n := 0
	for _, c := range l.Channels {
		if len(c) > 1 {
			n++
		}
	}
	return n
}

// fillRow applies the gap policy to one lattice row in place. populated
// marks slots that carry a measurement.
func fillRow(row []complex128, populated []bool, policy string) {
	if policy != GapInterpolate {
		for i, ok := range populated {
			if !ok {
				row[i] = 0
			}
		}
		return
	}
	left := -1
	for i := range row {
		if populated[i] {
			left = i
			continue
		}
		right := -1
		for j := i + 1; j < len(row); j++ {
			if populated[j] {
				right = j
				break
			}
		}
		if left < 0 || right < 0 {
			row[i] = 0
			continue
		}
		t := float64(i-left) / float64(right-left)
		row[i] = row[left] + (row[right]-row[left])*complex(t, 0)
	}
}
