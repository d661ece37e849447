package l6targets

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidRange is matched by every InvalidRangeError.
var ErrInvalidRange = errors.New("invalid range")

// InvalidRangeError reports a target whose range makes the radar equation
// undefined. The target keeps RCS = NaN.
type InvalidRangeError struct {
	Target int
	Range  float64
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("target %d: invalid range %g m for rcs", e.Target, e.Range)
}

// Is makes errors.Is(err, ErrInvalidRange) succeed.
func (e *InvalidRangeError) Is(target error) bool { return target == ErrInvalidRange }

var fourPiCubed = math.Pow(4*math.Pi, 3)

// RadarEquation holds the monostatic link budget. Gains are linear power
// ratios, not dB.
type RadarEquation struct {
	TransmittedPower float64 // W
	TxGain           float64
	RxGain           float64
	Wavelength       float64 // m
}

// RCS inverts the radar equation for one measurement.
func (q RadarEquation) RCS(strength, rng float64) (float64, error) {
	if !(rng > 0) || math.IsInf(rng, 0) {
		return math.NaN(), &InvalidRangeError{Range: rng}
	}
	r2 := rng * rng
	return strength * fourPiCubed * r2 * r2 / (q.TransmittedPower * q.TxGain * q.RxGain * q.Wavelength * q.Wavelength), nil
}

// ReceivedPower is the forward radar equation: the power returned by a
// reflector of cross-section rcs at range rng.
func (q RadarEquation) ReceivedPower(rcs, rng float64) float64 {
	r2 := rng * rng
	return q.TransmittedPower * q.TxGain * q.RxGain * q.Wavelength * q.Wavelength * rcs / (fourPiCubed * r2 * r2)
}

// Estimate writes RCS into every target with a valid range. Targets with a
// non-physical range keep NaN and are reported; the rest are unaffected.
func (q RadarEquation) Estimate(targets []Target) []error {
	var errs []error
	for i := range targets {
		rcs, err := q.RCS(targets[i].Strength, targets[i].Range)
		if err != nil {
			var ire *InvalidRangeError
			if errors.As(err, &ire) {
				ire.Target = i
			}
			errs = append(errs, err)
		}
		targets[i].RCS = rcs
	}
	return errs
}
