package l3cfar

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/banshee-data/radarchain/internal/radar/l1frame"
	"github.com/banshee-data/radarchain/internal/radar/workers"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(method string) Config {
	return Config{
		Method:          method,
		GuardRange:      2,
		GuardDoppler:    2,
		TrainingRange:   4,
		TrainingDoppler: 4,
		FalseAlarmRate:  1e-9,
		OSRank:          0.75,
	}
}

// noiseFrame returns a range-Doppler frame filled with unit complex
// Gaussian noise from a fixed seed.
func noiseFrame(seed int64, shape l1frame.Shape) *l1frame.Frame {
	rng := rand.New(rand.NewSource(seed))
	f := l1frame.New(0, shape)
	for i := range f.Data {
		f.Data[i] = complex(rng.NormFloat64(), rng.NormFloat64()) * complex(math.Sqrt(0.5), 0)
	}
	f.Domain = l1frame.RangeDoppler
	return f
}

func TestDetectSingleTarget(t *testing.T) {
	for _, method := range []string{MethodCellAveraging, MethodOrderStatistic} {
		t.Run(method, func(t *testing.T) {
			shape := l1frame.Shape{Receivers: 4, Chirps: 32, Samples: 64}
			f := noiseFrame(1, shape)
			for rx := 0; rx < 4; rx++ {
				f.Set(rx, 10, 30, complex(40+20*float64(rx), 0))
			}

			d, err := New(testConfig(method), workers.New(4))
			require.NoError(t, err)
			res, err := d.Detect(context.Background(), f)
			require.NoError(t, err)

			require.Len(t, res.Peaks, 1)
			assert.Equal(t, Peak{RangeBin: 30, DopplerBin: 10, Channel: 3}, res.Peaks[0])
		})
	}
}

func TestThresholdInvariants(t *testing.T) {
	shape := l1frame.Shape{Receivers: 2, Chirps: 32, Samples: 48}
	f := noiseFrame(2, shape)
	f.Set(0, 20, 20, 30)
	f.Set(1, 12, 35, 25i)

	d, err := New(testConfig(MethodCellAveraging), workers.New(3))
	require.NoError(t, err)
	res, err := d.Detect(context.Background(), f)
	require.NoError(t, err)
	require.NotEmpty(t, res.Peaks)

	for i := range res.Noise.Data {
		if res.Noise.Data[i] > res.Threshold.Data[i] {
			t.Fatalf("noise %g above threshold %g at %d", res.Noise.Data[i], res.Threshold.Data[i], i)
		}
	}
	for _, p := range res.Peaks {
		assert.Greater(t, res.NCI.At(p.RangeBin, p.DopplerBin), res.Threshold.At(p.RangeBin, p.DopplerBin))
	}
}

func TestDetectDeterministic(t *testing.T) {
	shape := l1frame.Shape{Receivers: 4, Chirps: 32, Samples: 64}
	base := noiseFrame(3, shape)
	for _, cell := range [][2]int{{12, 8}, {40, 20}, {41, 22}} {
		base.Set(0, cell[1], cell[0], 25)
	}

	d, err := New(testConfig(MethodOrderStatistic), workers.New(4))
	require.NoError(t, err)
	first, err := d.Detect(context.Background(), base.Clone())
	require.NoError(t, err)
	second, err := d.Detect(context.Background(), base.Clone())
	require.NoError(t, err)
	if diff := cmp.Diff(first.Peaks, second.Peaks); diff != "" {
		t.Errorf("peak list changed between runs (-first +second):\n%s", diff)
	}

	again, err := d.FindPeaks(context.Background(), base, first.NCI, first.Threshold)
	require.NoError(t, err)
	if diff := cmp.Diff(first.Peaks, again); diff != "" {
		t.Errorf("FindPeaks not idempotent (-detect +again):\n%s", diff)
	}

	sorted := sort.SliceIsSorted(first.Peaks, func(i, j int) bool {
		a, b := first.Peaks[i], first.Peaks[j]
		if a.RangeBin != b.RangeBin {
			return a.RangeBin < b.RangeBin
		}
		return a.DopplerBin < b.DopplerBin
	})
	assert.True(t, sorted, "peaks should be ordered by range then Doppler")
}

func TestDetectEmpty(t *testing.T) {
	shape := l1frame.Shape{Receivers: 2, Chirps: 16, Samples: 32}
	f := l1frame.New(0, shape)
	f.Domain = l1frame.RangeDoppler

	d, err := New(testConfig(MethodCellAveraging), workers.New(2))
	require.NoError(t, err)
	res, err := d.Detect(context.Background(), f)
	require.NoError(t, err)
	assert.Empty(t, res.Peaks)
}

func TestDetectExcludesEdges(t *testing.T) {
	shape := l1frame.Shape{Receivers: 1, Chirps: 32, Samples: 64}
	f := noiseFrame(4, shape)
	f.Set(0, 16, 2, 100) // inside the range margin of 6
	f.Set(0, 1, 30, 100) // inside the Doppler margin of 6

	d, err := New(testConfig(MethodCellAveraging), workers.New(1))
	require.NoError(t, err)
	res, err := d.Detect(context.Background(), f)
	require.NoError(t, err)
	assert.Empty(t, res.Peaks)
}

func TestDetectRequiresRangeDoppler(t *testing.T) {
	d, err := New(testConfig(MethodCellAveraging), workers.New(1))
	require.NoError(t, err)
	_, err = d.Detect(context.Background(), l1frame.New(0, l1frame.Shape{Receivers: 1, Chirps: 8, Samples: 8}))
	assert.Error(t, err)
}

func TestPlateauYieldsOnePeak(t *testing.T) {
	nci := NewMap(20, 20)
	th := NewMap(20, 20)
	nci.Set(10, 10, 5)
	nci.Set(10, 11, 5)
	nci.Set(11, 10, 5)

	f := l1frame.New(0, l1frame.Shape{Receivers: 1, Chirps: 20, Samples: 20})
	d, err := New(Config{Method: MethodCellAveraging, TrainingRange: 1, TrainingDoppler: 1, ScaleFactor: 2}, workers.New(2))
	require.NoError(t, err)
	peaks, err := d.FindPeaks(context.Background(), f, nci, th)
	require.NoError(t, err)
	require.Len(t, peaks, 1)
	assert.Equal(t, 10, peaks[0].RangeBin)
	assert.Equal(t, 10, peaks[0].DopplerBin)
}

func TestFold(t *testing.T) {
	nci := NewMap(1, 4)
	copy(nci.Data, []float64{1, 2, 3, 6})
	got := Fold(nci)
	// zero Doppler is bin 2; bin 0 has no mirror, bins 1 and 3 pair up.
	assert.Equal(t, []float64{1, 4, 3, 4}, got.Data)
}

func TestEstimateNoiseMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	m := NewMap(17, 13)
	for i := range m.Data {
		m.Data[i] = rng.ExpFloat64()
	}

	for _, method := range []string{MethodCellAveraging, MethodOrderStatistic} {
		t.Run(method, func(t *testing.T) {
			cfg := Config{Method: method, GuardRange: 1, GuardDoppler: 2, TrainingRange: 3, TrainingDoppler: 1, ScaleFactor: 3, OSRank: 0.5}
			d, err := New(cfg, workers.New(3))
			require.NoError(t, err)
			noise, err := d.EstimateNoise(context.Background(), m)
			require.NoError(t, err)

			for r := 0; r < m.RangeBins; r++ {
				for c := 0; c < m.DopplerBins; c++ {
					var ring []float64
					for rr := r - 4; rr <= r+4; rr++ {
						for cc := c - 3; cc <= c+3; cc++ {
							if rr < 0 || rr >= m.RangeBins || cc < 0 || cc >= m.DopplerBins {
								continue
							}
							if abs(rr-r) <= 1 && abs(cc-c) <= 2 {
								continue
							}
							ring = append(ring, m.At(rr, cc))
						}
					}
					var want float64
					if method == MethodCellAveraging {
						for _, v := range ring {
							want += v
						}
						want /= float64(len(ring))
					} else {
						sort.Float64s(ring)
						want = ring[orderIndex(0.5, len(ring))]
					}
					if got := noise.At(r, c); math.Abs(got-want) > 1e-9 {
						t.Fatalf("noise(%d,%d) = %g, want %g", r, c, got, want)
					}
				}
			}
		})
	}
}

func TestScaleFromFalseAlarmRate(t *testing.T) {
	ca, err := New(testConfig(MethodCellAveraging), workers.New(1))
	require.NoError(t, err)
	n := float64(ca.TrainingCells())
	require.Equal(t, 144.0, n)
	// CA-CFAR: Pfa = (1 + α/N)^-N
	assert.InDelta(t, 1e-9, math.Pow(1+ca.Scale()/n, -n), 1e-12)

	os, err := New(testConfig(MethodOrderStatistic), workers.New(1))
	require.NoError(t, err)
	k := orderIndex(0.75, 144) + 1
	p := 1.0
	for i := 0; i < k; i++ {
		p *= (n - float64(i)) / (n - float64(i) + os.Scale())
	}
	assert.InEpsilon(t, 1e-9, p, 1e-6)

	fixed, err := New(Config{Method: MethodCellAveraging, TrainingRange: 2, ScaleFactor: 7}, nil)
	require.NoError(t, err)
	assert.Equal(t, 7.0, fixed.Scale())
}

func TestNewRejectsBadConfig(t *testing.T) {
	tests := map[string]Config{
		"method":      {Method: "median", TrainingRange: 1, ScaleFactor: 2},
		"negative":    {Method: MethodCellAveraging, GuardRange: -1, TrainingRange: 1, ScaleFactor: 2},
		"no training": {Method: MethodCellAveraging, GuardRange: 1, ScaleFactor: 2},
		"no scale":    {Method: MethodCellAveraging, TrainingRange: 1},
		"os rank":     {Method: MethodOrderStatistic, TrainingRange: 1, ScaleFactor: 2},
	}
	for name, cfg := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := New(cfg, nil)
			assert.Error(t, err)
		})
	}
}

func TestMergeDuplicates(t *testing.T) {
	in := []Peak{{1, 2, 0}, {3, 4, 1}, {1, 2, 3}, {5, 6, 0}, {3, 4, 0}}
	got := MergeDuplicates(in)
	want := []Peak{{1, 2, 0}, {3, 4, 1}, {5, 6, 0}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("MergeDuplicates mismatch (-want +got):\n%s", diff)
	}
}
