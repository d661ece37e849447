package l2spectral

import (
	"fmt"

	"gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/floats"
)

// Window names accepted by the configuration.
const (
	WindowHann        = "hann"
	WindowHamming     = "hamming"
	WindowBlackman    = "blackman"
	WindowRectangular = "rectangular"
)

// Taper returns the periodic form of the named window with n weights.
// The periodic form places an integer number of periods across the
// transform so an on-bin tone leaks into a fixed, small set of bins.
func Taper(name string, n int) ([]float64, error) {
	if n < 1 {
		return nil, fmt.Errorf("window length must be positive, got %d", n)
	}
	var fn func([]float64) []float64
	switch name {
	case WindowHann:
		fn = window.Hann
	case WindowHamming:
		fn = window.Hamming
	case WindowBlackman:
		fn = window.Blackman
	case WindowRectangular:
		fn = window.Rectangular
	default:
		return nil, fmt.Errorf("unknown window %q", name)
	}
	if n == 1 {
		return []float64{1}, nil
	}
	// gonum's windows are symmetric over len-1; build n+1 and drop the last
	// weight to obtain the periodic version.
	w := make([]float64, n+1)
	for i := range w {
		w[i] = 1
	}
	return fn(w)[:n], nil
}

// CoherentGain returns Σw, the amplitude gain a window applies to an
// on-bin tone after an unnormalised transform.
func CoherentGain(w []float64) float64 {
	return floats.Sum(w)
}
