package l1frame

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"
)

// ErrConfigMismatch is matched by every ConfigMismatchError via errors.Is.
var ErrConfigMismatch = errors.New("frame shape does not match configuration")

// ConfigMismatchError reports a frame dimension that disagrees with the
// declared configuration. It is fatal for the frame.
type ConfigMismatchError struct {
	Dimension string // "receivers", "chirps", "samples" or "data"
	Declared  int
	Actual    int
}

func (e *ConfigMismatchError) Error() string {
	return fmt.Sprintf("config mismatch: %s declared %d, frame has %d", e.Dimension, e.Declared, e.Actual)
}

// Is makes errors.Is(err, ErrConfigMismatch) succeed.
func (e *ConfigMismatchError) Is(target error) bool {
	return target == ErrConfigMismatch
}

// Shape is the (receivers, chirps, samples) extent of a frame.
type Shape struct {
	Receivers int
	Chirps    int
	Samples   int
}

// Len returns the number of complex cells in a frame of this shape.
func (s Shape) Len() int { return s.Receivers * s.Chirps * s.Samples }

func (s Shape) String() string {
	return fmt.Sprintf("%dx%dx%d", s.Receivers, s.Chirps, s.Samples)
}

// Domain records which transform stage a frame's contents are in.
type Domain uint8

const (
	// TimeDomain: axes are (receiver, chirp, fast-time sample).
	TimeDomain Domain = iota
	// RangeDoppler: axes are (receiver, Doppler bin, range bin), with the
	// Doppler axis shifted so bin Chirps/2 is zero velocity.
	RangeDoppler
)

func (d Domain) String() string {
	switch d {
	case TimeDomain:
		return "time"
	case RangeDoppler:
		return "range-doppler"
	default:
		return fmt.Sprintf("Domain(%d)", uint8(d))
	}
}

// Frame is a flat, arena-owned block of complex samples. Cells are addressed
// by index: Data[Idx(rx, chirp, sample)]. After spectral preprocessing the
// same storage holds (rx, Doppler bin, range bin).
//
// A Frame is owned by exactly one pipeline invocation and must not be shared
// across goroutines except through disjoint index ranges.
type Frame struct {
	Index  uint64
	Shape  Shape
	Domain Domain
	Data   []complex128
}

// New allocates a zeroed frame.
func New(index uint64, shape Shape) *Frame {
	return &Frame{
		Index: index,
		Shape: shape,
		Data:  make([]complex128, shape.Len()),
	}
}

// Idx returns the flat index of (rx, chirp, sample).
func (f *Frame) Idx(rx, chirp, sample int) int {
	return (rx*f.Shape.Chirps+chirp)*f.Shape.Samples + sample
}

// At returns the cell at (rx, chirp, sample).
func (f *Frame) At(rx, chirp, sample int) complex128 {
	return f.Data[f.Idx(rx, chirp, sample)]
}

// Set stores v at (rx, chirp, sample).
func (f *Frame) Set(rx, chirp, sample int, v complex128) {
	f.Data[f.Idx(rx, chirp, sample)] = v
}

// Row returns the contiguous fast-time (or range) slice for one receiver and
// chirp (or Doppler bin). The slice aliases the frame.
func (f *Frame) Row(rx, chirp int) []complex128 {
	start := f.Idx(rx, chirp, 0)
	return f.Data[start : start+f.Shape.Samples : start+f.Shape.Samples]
}

// Column copies the slow-time (or Doppler) sequence for one receiver and
// sample into dst, growing it if needed.
func (f *Frame) Column(rx, sample int, dst []complex128) []complex128 {
	dst = grow(dst, f.Shape.Chirps)
	for c := range dst {
		dst[c] = f.Data[f.Idx(rx, c, sample)]
	}
	return dst
}

// SetColumn writes a slow-time sequence back into the frame.
func (f *Frame) SetColumn(rx, sample int, src []complex128) {
	for c, v := range src[:f.Shape.Chirps] {
		f.Data[f.Idx(rx, c, sample)] = v
	}
}

// Cell gathers the value at (rangeBin, dopplerBin) from every receiver into
// dst, ordered by receiver index.
func (f *Frame) Cell(rangeBin, dopplerBin int, dst []complex128) []complex128 {
	dst = grow(dst, f.Shape.Receivers)
	for rx := range dst {
		dst[rx] = f.Data[f.Idx(rx, dopplerBin, rangeBin)]
	}
	return dst
}

// SizeBytes returns the memory held by the sample arena.
func (f *Frame) SizeBytes() int {
	return len(f.Data) * int(unsafe.Sizeof(complex128(0)))
}

// CheckShape fails fast when the frame does not match the declared shape.
func (f *Frame) CheckShape(declared Shape) error {
	switch {
	case f.Shape.Receivers != declared.Receivers:
		return &ConfigMismatchError{Dimension: "receivers", Declared: declared.Receivers, Actual: f.Shape.Receivers}
	case f.Shape.Chirps != declared.Chirps:
		return &ConfigMismatchError{Dimension: "chirps", Declared: declared.Chirps, Actual: f.Shape.Chirps}
	case f.Shape.Samples != declared.Samples:
		return &ConfigMismatchError{Dimension: "samples", Declared: declared.Samples, Actual: f.Shape.Samples}
	case len(f.Data) != declared.Len():
		return &ConfigMismatchError{Dimension: "data", Declared: declared.Len(), Actual: len(f.Data)}
	}
	return nil
}

// Clone returns a deep copy of the frame.
func (f *Frame) Clone() *Frame {
	out := &Frame{Index: f.Index, Shape: f.Shape, Domain: f.Domain, Data: make([]complex128, len(f.Data))}
	copy(out.Data, f.Data)
	return out
}

func grow(dst []complex128, n int) []complex128 {
	if cap(dst) < n {
		return make([]complex128, n)
	}
	return dst[:n]
}

// Pool recycles frame arenas of a single shape so the frame loop does not
// allocate a fresh cube per frame.
type Pool struct {
	shape Shape
	pool  sync.Pool
}

// NewPool returns a pool of frames with the given shape.
func NewPool(shape Shape) *Pool {
	p := &Pool{shape: shape}
	p.pool.New = func() interface{} {
		return New(0, shape)
	}
	return p
}

// Get returns a zeroed time-domain frame tagged with index.
func (p *Pool) Get(index uint64) *Frame {
	f := p.pool.Get().(*Frame)
	clear(f.Data)
	f.Index = index
	f.Domain = TimeDomain
	return f
}

// Put returns a frame to the pool. Frames of another shape are dropped.
func (p *Pool) Put(f *Frame) {
	if f == nil || f.Shape != p.shape || len(f.Data) != p.shape.Len() {
		return
	}
	p.pool.Put(f)
}
