package l6targets

import (
	"math"

	"github.com/banshee-data/radarchain/internal/radar/l3cfar"
	"github.com/banshee-data/radarchain/internal/radar/l5doa"
)

// Target is one detected reflector in the sensor frame: x forward, y left,
// z up. Angles are radians, speeds m/s (negative when closing).
type Target struct {
	Peak          int // index into the frame's peak list
	RangeBin      int
	DopplerBin    int
	X             float64
	Y             float64
	Z             float64
	Range         float64
	Azimuth       float64
	Elevation     float64
	Strength      float64 // linear received power
	RelativeSpeed float64
	RCS           float64 // m², NaN until estimated
}

// BuilderConfig carries the bin-to-physical conversions.
type BuilderConfig struct {
	RangeResolution    float64 // metres per range bin
	VelocityResolution float64 // m/s per Doppler bin
	ZeroDopplerBin     int
	// ProcessingGain divides NCI so a unit-amplitude on-bin tone has
	// strength 1: channels × (Σ range window)² × (Σ Doppler window)².
	ProcessingGain float64
}

// Builder turns (peak, angle) pairs into targets. It does not filter.
type Builder struct {
	cfg BuilderConfig
}

// NewBuilder returns a Builder. A non-positive processing gain is treated
// as 1.
func NewBuilder(cfg BuilderConfig) *Builder {
	if cfg.ProcessingGain <= 0 {
		cfg.ProcessingGain = 1
	}
	return &Builder{cfg: cfg}
}

// Build emits one target per angle of each peak, in peak order. peaks and
// doa must be index-aligned.
func (b *Builder) Build(peaks []l3cfar.Peak, doa []l5doa.Result, nci *l3cfar.Map) []Target {
	targets := make([]Target, 0, len(peaks))
	for i, p := range peaks {
		if i >= len(doa) {
			break
		}
		rng := float64(p.RangeBin) * b.cfg.RangeResolution
		speed := float64(p.DopplerBin-b.cfg.ZeroDopplerBin) * b.cfg.VelocityResolution
		var strength float64
		if nci != nil {
			strength = nci.At(p.RangeBin, p.DopplerBin) / b.cfg.ProcessingGain
		}
		for _, a := range doa[i].Angles {
			x, y, z := ToCartesian(rng, a.Azimuth, a.Elevation)
			targets = append(targets, Target{
				Peak:          i,
				RangeBin:      p.RangeBin,
				DopplerBin:    p.DopplerBin,
				X:             x,
				Y:             y,
				Z:             z,
				Range:         rng,
				Azimuth:       a.Azimuth,
				Elevation:     a.Elevation,
				Strength:      strength,
				RelativeSpeed: speed,
				RCS:           math.NaN(),
			})
		}
	}
	return targets
}

// ToCartesian converts range, azimuth and elevation to sensor coordinates.
func ToCartesian(r, az, el float64) (x, y, z float64) {
	ce := math.Cos(el)
	return r * ce * math.Cos(az), r * ce * math.Sin(az), r * math.Sin(el)
}
