package synthetic

import (
	"math"

	"github.com/banshee-data/radarchain/internal/config"
	"github.com/banshee-data/radarchain/internal/radar/l6targets"
)

// DemoEgoBins is the platform speed of DemoScene in Doppler bins.
const DemoEgoBins = 8

// DemoScene returns four static reflectors seen from a platform moving at
// DemoEgoBins velocity bins, plus one mover whose speed does not fit the
// rigid-scene model. Azimuths are chosen so every reflector sits on an
// integer Doppler bin. Range bins scale with the sample count.
func DemoScene(cfg *config.RadarConfig) []Reflector {
	rangeRes := cfg.RangeResolution()
	velRes := cfg.VelocityResolution()
	eighth := float64(cfg.GetSamples()) / 8
	ego := DemoEgoBins * velRes

	static := func(slot int, az float64) Reflector {
		return Reflector{
			Range:       math.Round(float64(slot)*eighth) * rangeRes,
			Azimuth:     az,
			RadialSpeed: l6targets.ExpectedSpeed(ego, az),
			RCS:         2,
		}
	}
	return []Reflector{
		static(1, 0),
		static(2, math.Acos(0.875)),
		static(3, -math.Acos(0.75)),
		{Range: math.Round(4*eighth) * rangeRes, Azimuth: 20 * math.Pi / 180, RadialSpeed: 10 * velRes, RCS: 2},
		static(5, math.Acos(0.625)),
	}
}

// DemoEgoSpeed is the platform speed DemoScene is built for.
func DemoEgoSpeed(cfg *config.RadarConfig) float64 {
	return DemoEgoBins * cfg.VelocityResolution()
}
