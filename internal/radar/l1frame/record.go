package l1frame

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// Frame record layout, all little-endian:
//
//	magic    [4]byte "RDRF"
//	version  uint16
//	reserved uint16
//	index    uint64
//	rx       uint32
//	chirps   uint32
//	samples  uint32
//	payload  rx*chirps*samples × (float32 re, float32 im), receiver-major
const (
	recordMagic      = "RDRF"
	recordVersion    = 1
	recordHeaderSize = 28
	maxRecordCells   = 64 << 20
)

// ErrBadRecord is returned for records with the wrong magic or version.
var ErrBadRecord = errors.New("malformed frame record")

// Writer appends frame records to an underlying stream.
type Writer struct {
	w   *bufio.Writer
	buf []byte
}

// NewWriter returns a Writer that buffers output to w. Call Flush when done.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Write encodes one time-domain frame. Samples are narrowed to complex64.
func (w *Writer) Write(f *Frame) error {
	var hdr [recordHeaderSize]byte
	copy(hdr[0:4], recordMagic)
	binary.LittleEndian.PutUint16(hdr[4:6], recordVersion)
	binary.LittleEndian.PutUint64(hdr[8:16], f.Index)
	binary.LittleEndian.PutUint32(hdr[16:20], uint32(f.Shape.Receivers))
	binary.LittleEndian.PutUint32(hdr[20:24], uint32(f.Shape.Chirps))
	binary.LittleEndian.PutUint32(hdr[24:28], uint32(f.Shape.Samples))
	if _, err := w.w.Write(hdr[:]); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}

	if cap(w.buf) < 8*len(f.Data) {
		w.buf = make([]byte, 8*len(f.Data))
	}
	buf := w.buf[:8*len(f.Data)]
	for i, v := range f.Data {
		binary.LittleEndian.PutUint32(buf[8*i:], math.Float32bits(float32(real(v))))
		binary.LittleEndian.PutUint32(buf[8*i+4:], math.Float32bits(float32(imag(v))))
	}
	if _, err := w.w.Write(buf); err != nil {
		return fmt.Errorf("write frame %d payload: %w", f.Index, err)
	}
	return nil
}

// Flush writes any buffered data.
func (w *Writer) Flush() error {
	return w.w.Flush()
}

// Reader decodes consecutive frame records.
type Reader struct {
	r   *bufio.Reader
	buf []byte
}

// NewReader returns a Reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Next decodes the next record into a newly allocated frame. It returns
// io.EOF at a clean end of stream and io.ErrUnexpectedEOF for a truncated
// record.
func (r *Reader) Next() (*Frame, error) {
	return r.NextInto(nil)
}

// NextInto decodes the next record, reusing dst when its shape matches.
func (r *Reader) NextInto(dst *Frame) (*Frame, error) {
	var hdr [recordHeaderSize]byte
	if _, err := io.ReadFull(r.r, hdr[:]); err != nil {
		return nil, err
	}
	if string(hdr[0:4]) != recordMagic {
		return nil, fmt.Errorf("%w: magic %q", ErrBadRecord, hdr[0:4])
	}
	if v := binary.LittleEndian.Uint16(hdr[4:6]); v != recordVersion {
		return nil, fmt.Errorf("%w: version %d", ErrBadRecord, v)
	}
	rx := binary.LittleEndian.Uint32(hdr[16:20])
	chirps := binary.LittleEndian.Uint32(hdr[20:24])
	samples := binary.LittleEndian.Uint32(hdr[24:28])
	if !recordCellsOK(rx, chirps, samples) {
		return nil, fmt.Errorf("%w: shape %dx%dx%d", ErrBadRecord, rx, chirps, samples)
	}
	shape := Shape{Receivers: int(rx), Chirps: int(chirps), Samples: int(samples)}

	f := dst
	if f == nil || f.Shape != shape || len(f.Data) != shape.Len() {
		f = New(0, shape)
	}
	f.Index = binary.LittleEndian.Uint64(hdr[8:16])
	f.Domain = TimeDomain

	n := 8 * shape.Len()
	if cap(r.buf) < n {
		r.buf = make([]byte, n)
	}
	buf := r.buf[:n]
	if _, err := io.ReadFull(r.r, buf); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("read frame %d payload: %w", f.Index, err)
	}
	for i := range f.Data {
		re := math.Float32frombits(binary.LittleEndian.Uint32(buf[8*i:]))
		im := math.Float32frombits(binary.LittleEndian.Uint32(buf[8*i+4:]))
		f.Data[i] = complex(float64(re), float64(im))
	}
	return f, nil
}

// recordCellsOK reports whether a header's dimensions are non-zero and their
// product stays within maxRecordCells. Each step is checked before the next
// multiplication so no intermediate can wrap.
func recordCellsOK(rx, chirps, samples uint32) bool {
	if rx == 0 || chirps == 0 || samples == 0 {
		return false
	}
	n := uint64(rx) * uint64(chirps)
	if n > maxRecordCells {
		return false
	}
	return n*uint64(samples) <= maxRecordCells
}
