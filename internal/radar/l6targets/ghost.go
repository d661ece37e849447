package l6targets

import "math"

// ExpectedSpeed is the relative radial speed a static reflector at azimuth
// az shows when the platform moves forward at egoSpeed.
func ExpectedSpeed(egoSpeed, az float64) float64 {
	return -egoSpeed * math.Cos(az)
}

// GhostFilter removes targets whose measured speed disagrees with the
// rigid-scene model by more than Tolerance m/s.
type GhostFilter struct {
	Tolerance float64
}

// Filter splits targets into kept and ghosts, preserving order in both.
// When the ego estimate is not confident every target is kept.
func (g GhostFilter) Filter(targets []Target, ego EgoEstimate) (kept, ghosts []Target) {
	if !ego.Confident {
		return append([]Target(nil), targets...), nil
	}
	kept = make([]Target, 0, len(targets))
	for _, t := range targets {
		if math.Abs(t.RelativeSpeed-ExpectedSpeed(ego.Speed, t.Azimuth)) > g.Tolerance {
			ghosts = append(ghosts, t)
			continue
		}
		kept = append(kept, t)
	}
	return kept, ghosts
}
