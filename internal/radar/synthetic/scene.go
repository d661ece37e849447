// Package synthetic generates time-domain radar frames for point
// reflectors, used by tests, benchmarks and the command's demo mode.
package synthetic

import (
	"math"
	"math/cmplx"
	"math/rand"

	"github.com/banshee-data/radarchain/internal/config"
	"github.com/banshee-data/radarchain/internal/radar/l1frame"
	"github.com/banshee-data/radarchain/internal/radar/l6targets"
)

// Reflector is a point scatterer in the sensor frame.
type Reflector struct {
	Range       float64 // m
	Azimuth     float64 // rad
	Elevation   float64 // rad
	RadialSpeed float64 // m/s, negative when closing
	RCS         float64 // m²
	Phase       float64 // rad, carrier phase at the first sample
}

// Generator renders reflectors into frames with additive complex Gaussian
// noise. It is not safe for concurrent use.
type Generator struct {
	shape    l1frame.Shape
	tx, rx   [][2]int
	rangeRes float64
	velRes   float64
	link     l6targets.RadarEquation
	sigma    float64
	rng      *rand.Rand
}

// NewGenerator builds a generator for cfg. noiseSigma is the RMS complex
// noise amplitude per sample; seed fixes the noise sequence.
func NewGenerator(cfg *config.RadarConfig, noiseSigma float64, seed int64) *Generator {
	return &Generator{
		shape: l1frame.Shape{
			Receivers: cfg.GetReceivers(),
			Chirps:    cfg.GetChirps(),
			Samples:   cfg.GetSamples(),
		},
		tx:       cfg.GetTxPositions(),
		rx:       cfg.GetRxPositions(),
		rangeRes: cfg.RangeResolution(),
		velRes:   cfg.VelocityResolution(),
		link: l6targets.RadarEquation{
			TransmittedPower: cfg.GetTransmittedPowerW(),
			TxGain:           cfg.TxGainLinear(),
			RxGain:           cfg.RxGainLinear(),
			Wavelength:       cfg.Wavelength(),
		},
		sigma: noiseSigma,
		rng:   rand.New(rand.NewSource(seed)),
	}
}

// Shape returns the frame shape the generator produces.
func (g *Generator) Shape() l1frame.Shape { return g.shape }

// AtBins places a reflector exactly on a range bin and a (shifted) Doppler
// bin, so its energy lands on-grid after preprocessing.
func (g *Generator) AtBins(rangeBin, dopplerBin int, az, el, rcs float64) Reflector {
	return Reflector{
		Range:       float64(rangeBin) * g.rangeRes,
		Azimuth:     az,
		Elevation:   el,
		RadialSpeed: float64(dopplerBin-g.shape.Chirps/2) * g.velRes,
		RCS:         rcs,
	}
}

// Amplitude returns the per-sample voltage amplitude of a reflector.
func (g *Generator) Amplitude(r Reflector) float64 {
	return math.Sqrt(g.link.ReceivedPower(r.RCS, r.Range))
}

// Frame renders a new frame.
func (g *Generator) Frame(index uint64, scene []Reflector) *l1frame.Frame {
	f := l1frame.New(index, g.shape)
	g.Render(f, scene)
	return f
}

// Render overwrites f with the scene plus noise. f must have the
// generator's shape.
func (g *Generator) Render(f *l1frame.Frame, scene []Reflector) {
	clear(f.Data)
	f.Domain = l1frame.TimeDomain
	nc, ns := float64(g.shape.Chirps), float64(g.shape.Samples)
	numRx, numTx := len(g.rx), float64(len(g.tx))

	for _, r := range scene {
		amp := g.Amplitude(r)
		// Beat cycles per chirp and Doppler cycles per frame.
		rangeCycles := r.Range / g.rangeRes
		dopplerCycles := r.RadialSpeed / g.velRes
		u := math.Sin(r.Azimuth) * math.Cos(r.Elevation)
		w := math.Sin(r.Elevation)

		for c := 0; c < g.shape.Receivers; c++ {
			t, rx := c/numRx, c%numRx
			x := float64(g.tx[t][0] + g.rx[rx][0])
			z := float64(g.tx[t][1] + g.rx[rx][1])
			spatial := math.Pi * (x*u + z*w)
			slot := float64(t) / numTx
			for chirp := 0; chirp < g.shape.Chirps; chirp++ {
				slow := 2 * math.Pi * dopplerCycles * (float64(chirp) + slot) / nc
				row := f.Row(c, chirp)
				for s := range row {
					fast := 2 * math.Pi * rangeCycles * float64(s) / ns
					row[s] += cmplx.Rect(amp, r.Phase+spatial+slow+fast)
				}
			}
		}
	}

	if g.sigma > 0 {
		k := g.sigma / math.Sqrt2
		for i := range f.Data {
			f.Data[i] += complex(k*g.rng.NormFloat64(), k*g.rng.NormFloat64())
		}
	}
}
