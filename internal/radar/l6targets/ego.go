package l6targets

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// ErrLowConfidenceEgo is matched by every LowConfidenceEgoEstimate.
var ErrLowConfidenceEgo = errors.New("low confidence ego estimate")

// LowConfidenceEgoEstimate is informational: too few static candidates
// agreed on a platform speed, so the speed is reported as 0.
type LowConfidenceEgoEstimate struct {
	Candidates int
	Inliers    int
	Required   int
}

func (e *LowConfidenceEgoEstimate) Error() string {
	return fmt.Sprintf("low confidence ego estimate: %d candidates, %d inliers, %d required", e.Candidates, e.Inliers, e.Required)
}

// Is makes errors.Is(err, ErrLowConfidenceEgo) succeed.
func (e *LowConfidenceEgoEstimate) Is(target error) bool { return target == ErrLowConfidenceEgo }

// EgoConfig tunes the robust fit.
type EgoConfig struct {
	MaxAzimuth      float64 // radians; candidates must satisfy |az| ≤ MaxAzimuth
	MinTargets      int
	InlierTolerance float64 // m/s residual for the least-squares refit
}

// EgoEstimate is the per-frame platform speed along the sensor boresight.
type EgoEstimate struct {
	Speed      float64
	Candidates int
	Inliers    int
	Confident  bool
}

// EstimateEgo fits v = −V·cos(az) over the targets inside the azimuth
// cutoff. It seeds V with the median of −v/cos(az), keeps targets within
// InlierTolerance of that model and refits V by least squares. With fewer
// than MinTargets candidates or inliers it returns Speed 0 and a
// *LowConfidenceEgoEstimate.
func EstimateEgo(targets []Target, cfg EgoConfig) (EgoEstimate, error) {
	minTargets := max(cfg.MinTargets, 1)
	var cosines, speeds, ratios []float64
	for _, t := range targets {
		if math.Abs(t.Azimuth) > cfg.MaxAzimuth {
			continue
		}
		c := math.Cos(t.Azimuth)
		if c <= 1e-6 {
			continue
		}
		cosines = append(cosines, c)
		speeds = append(speeds, t.RelativeSpeed)
		ratios = append(ratios, -t.RelativeSpeed/c)
	}

	est := EgoEstimate{Candidates: len(ratios)}
	if len(ratios) < minTargets {
		return est, &LowConfidenceEgoEstimate{Candidates: est.Candidates, Required: minTargets}
	}

	sorted := append([]float64(nil), ratios...)
	sort.Float64s(sorted)
	seed := stat.Quantile(0.5, stat.Empirical, sorted, nil)

	var num, den float64
	for i, c := range cosines {
		if math.Abs(speeds[i]+seed*c) > cfg.InlierTolerance {
			continue
		}
		num += speeds[i] * c
		den += c * c
		est.Inliers++
	}
	if est.Inliers < minTargets || den == 0 {
		return est, &LowConfidenceEgoEstimate{Candidates: est.Candidates, Inliers: est.Inliers, Required: minTargets}
	}
	est.Speed = -num / den
	est.Confident = true
	return est, nil
}
