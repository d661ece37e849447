package l1frame

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"testing"
)

func TestFrameIndexing(t *testing.T) {
	f := New(3, Shape{Receivers: 2, Chirps: 3, Samples: 4})

	if len(f.Data) != 24 {
		t.Fatalf("len(Data) = %d, want 24", len(f.Data))
	}
	f.Set(1, 2, 3, complex(5, -1))
	if got := f.Data[len(f.Data)-1]; got != complex(5, -1) {
		t.Errorf("last cell = %v, want (5-1i)", got)
	}
	if got := f.At(1, 2, 3); got != complex(5, -1) {
		t.Errorf("At = %v", got)
	}

	row := f.Row(1, 2)
	if len(row) != 4 || row[3] != complex(5, -1) {
		t.Errorf("Row = %v", row)
	}
	row[0] = 7
	if f.At(1, 2, 0) != 7 {
		t.Error("Row should alias the frame")
	}

	col := f.Column(1, 3, nil)
	if len(col) != 3 || col[2] != complex(5, -1) {
		t.Errorf("Column = %v", col)
	}
	col[0] = 9i
	f.SetColumn(1, 3, col)
	if f.At(1, 0, 3) != 9i {
		t.Error("SetColumn did not write back")
	}

	f.Set(0, 2, 3, 1)
	cell := f.Cell(3, 2, make([]complex128, 0, 8))
	if len(cell) != 2 || cell[0] != 1 || cell[1] != complex(5, -1) {
		t.Errorf("Cell = %v", cell)
	}
}

func TestSizeBytes(t *testing.T) {
	f := New(0, Shape{Receivers: 4, Chirps: 64, Samples: 256})
	if got, want := f.SizeBytes(), 4*64*256*16; got != want {
		t.Errorf("SizeBytes() = %d, want %d", got, want)
	}
}

func TestCheckShape(t *testing.T) {
	declared := Shape{Receivers: 4, Chirps: 64, Samples: 256}

	ok := New(0, declared)
	if err := ok.CheckShape(declared); err != nil {
		t.Fatalf("CheckShape() = %v", err)
	}

	tests := []struct {
		name  string
		frame *Frame
		dim   string
	}{
		{"receivers", New(0, Shape{Receivers: 3, Chirps: 64, Samples: 256}), "receivers"},
		{"chirps", New(0, Shape{Receivers: 4, Chirps: 32, Samples: 256}), "chirps"},
		{"samples", New(0, Shape{Receivers: 4, Chirps: 64, Samples: 100}), "samples"},
		{"truncated data", &Frame{Shape: declared, Data: make([]complex128, 10)}, "data"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.frame.CheckShape(declared)
			if !errors.Is(err, ErrConfigMismatch) {
				t.Fatalf("expected ErrConfigMismatch, got %v", err)
			}
			var cm *ConfigMismatchError
			if !errors.As(err, &cm) || cm.Dimension != tt.dim {
				t.Errorf("dimension = %v, want %s", cm, tt.dim)
			}
		})
	}
}

func TestPool(t *testing.T) {
	shape := Shape{Receivers: 1, Chirps: 2, Samples: 2}
	p := NewPool(shape)

	f := p.Get(1)
	f.Data[0] = 42
	f.Domain = RangeDoppler
	p.Put(f)

	g := p.Get(2)
	if g.Index != 2 || g.Domain != TimeDomain {
		t.Errorf("Get returned index %d domain %v", g.Index, g.Domain)
	}
	for i, v := range g.Data {
		if v != 0 {
			t.Fatalf("pooled frame not cleared at %d: %v", i, v)
		}
	}

	// Wrong shape is silently dropped.
	p.Put(New(0, Shape{Receivers: 2, Chirps: 2, Samples: 2}))
	p.Put(nil)
}

func TestRecordRoundTrip(t *testing.T) {
	shape := Shape{Receivers: 2, Chirps: 4, Samples: 8}
	var buf bytes.Buffer
	w := NewWriter(&buf)
	for i := uint64(0); i < 3; i++ {
		f := New(i, shape)
		for j := range f.Data {
			f.Data[j] = complex(float64(j)+0.5, -float64(i))
		}
		if err := w.Write(f); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if got, want := buf.Len(), 3*(recordHeaderSize+8*shape.Len()); got != want {
		t.Fatalf("stream length = %d, want %d", got, want)
	}

	r := NewReader(&buf)
	var f *Frame
	for i := uint64(0); i < 3; i++ {
		var err error
		f, err = r.NextInto(f)
		if err != nil {
			t.Fatalf("Next(%d): %v", i, err)
		}
		if f.Index != i || f.Shape != shape {
			t.Errorf("frame %d: index %d shape %v", i, f.Index, f.Shape)
		}
		if got := f.Data[5]; got != complex(5.5, -float64(i)) {
			t.Errorf("frame %d cell 5 = %v", i, got)
		}
	}
	if _, err := r.Next(); err != io.EOF {
		t.Errorf("expected io.EOF at end, got %v", err)
	}
}

func TestRecordErrors(t *testing.T) {
	t.Run("bad magic", func(t *testing.T) {
		data := make([]byte, recordHeaderSize)
		copy(data, "NOPE")
		_, err := NewReader(bytes.NewReader(data)).Next()
		if !errors.Is(err, ErrBadRecord) {
			t.Errorf("expected ErrBadRecord, got %v", err)
		}
	})

	t.Run("truncated payload", func(t *testing.T) {
		var buf bytes.Buffer
		w := NewWriter(&buf)
		if err := w.Write(New(0, Shape{Receivers: 1, Chirps: 2, Samples: 2})); err != nil {
			t.Fatal(err)
		}
		if err := w.Flush(); err != nil {
			t.Fatal(err)
		}
		short := buf.Bytes()[:buf.Len()-3]
		_, err := NewReader(bytes.NewReader(short)).Next()
		if !errors.Is(err, io.ErrUnexpectedEOF) {
			t.Errorf("expected io.ErrUnexpectedEOF, got %v", err)
		}
	})

	t.Run("truncated header", func(t *testing.T) {
		_, err := NewReader(bytes.NewReader([]byte("RDRF"))).Next()
		if !errors.Is(err, io.ErrUnexpectedEOF) {
			t.Errorf("expected io.ErrUnexpectedEOF, got %v", err)
		}
	})
}

func TestRecordRejectsOversizedShape(t *testing.T) {
	header := func(rx, chirps, samples uint32) []byte {
		data := make([]byte, recordHeaderSize)
		copy(data, recordMagic)
		binary.LittleEndian.PutUint16(data[4:6], recordVersion)
		binary.LittleEndian.PutUint32(data[16:20], rx)
		binary.LittleEndian.PutUint32(data[20:24], chirps)
		binary.LittleEndian.PutUint32(data[24:28], samples)
		return data
	}

	tests := []struct {
		name                string
		rx, chirps, samples uint32
	}{
		{"product wraps int", 1 << 31, 1 << 31, 3},
		{"max dimensions", math.MaxUint32, math.MaxUint32, math.MaxUint32},
		{"one huge axis", 1, 1, maxRecordCells + 1},
		{"just over limit", 4, 1 << 20, 17},
		{"zero receivers", 0, 64, 256},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewReader(bytes.NewReader(header(tt.rx, tt.chirps, tt.samples))).NextInto(nil)
			if !errors.Is(err, ErrBadRecord) {
				t.Errorf("expected ErrBadRecord, got %v", err)
			}
		})
	}
}
